package processor

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"cbird/pkg/colordesc"
	"cbird/pkg/hash"
	"cbird/pkg/media"
)

// minKeypointSize is the smallest ORB keypoint diameter worth hashing;
// below it the DCT hash of the cropped patch is mostly noise. Matches
// the reference's makeKeyPointHashes cutoff (original_source/src/media.cpp).
const minKeypointSize = 31

// ImageResult is everything the processor extracts from one still image.
// Only Media is persisted through pkg/store; ColorDescriptor and
// CVDescriptors are consumed directly by the D3/D4 indices and are the
// caller's responsibility to keep alive/close (§4.G).
type ImageResult struct {
	Media           media.Media
	ColorDescriptor colordesc.Descriptor
	CVDescriptors   gocv.Mat
}

// ImageOptions configures feature extraction, mirroring the scan-time
// subset of the reference's IndexParams relevant to stills (§4.F/§4.G).
type ImageOptions struct {
	Autocrop          bool
	AutocropRange     int
	ResizeLongestSide int
	NumFeatures       int
	ColorSeed         int64
}

// DefaultImageOptions mirrors scanner.DefaultParams' image-relevant
// fields.
func DefaultImageOptions() ImageOptions {
	return ImageOptions{
		Autocrop:          true,
		AutocropRange:     20,
		ResizeLongestSide: 400,
		NumFeatures:       400,
		ColorSeed:         1,
	}
}

// ProcessImage decodes path, fills in the identity fields of a Media
// record and computes its DCT hash, ORB keypoint hashes and color
// descriptor (§4.A/§4.C/§4.D2/§4.G). The caller must Close the returned
// CVDescriptors Mat once it has handed them to an index.
func ProcessImage(path string, opts ImageOptions) (ImageResult, error) {
	full, width, height, err := decodeAndPrepare(path, opts)
	if err != nil {
		return ImageResult{}, err
	}
	defer full.Close()

	dctHash := hash.DCTHash64(full)

	digest, err := digestFile(path)
	if err != nil {
		return ImageResult{}, fmt.Errorf("processor: digest %s: %w", path, err)
	}

	keypointHashes, cvDescriptors := extractKeypoints(full, opts.NumFeatures)

	colorDesc := colordesc.Create(full, opts.ColorSeed)

	m := media.Media{
		Type:           media.TypeImage,
		Path:           path,
		Digest:         digest,
		Width:          width,
		Height:         height,
		DCTHash:        dctHash,
		KeypointHashes: keypointHashes,
	}

	return ImageResult{Media: m, ColorDescriptor: colorDesc, CVDescriptors: cvDescriptors}, nil
}

// decodeAndPrepare decodes path, autocrops it if requested and returns
// the resized working Mat plus the original (pre-resize) pixel
// dimensions; every extraction step downstream (DCT hash, keypoints,
// color clustering) shares this one decoded/cropped/resized Mat rather
// than repeating IMRead per descriptor (§4.A/§4.G). The caller must
// Close the returned Mat.
func decodeAndPrepare(path string, opts ImageOptions) (gocv.Mat, int, int, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		// OpenCV's stock build commonly ships without WebP support, so
		// IMRead returns an empty Mat for a perfectly valid file rather
		// than an error. Fall back to the Go-native decoder for that one
		// format before giving up (§4.G, decoders otherwise stay opaque).
		decoded, ok, decodeErr := decodeWebPFallback(path)
		if !ok {
			return gocv.Mat{}, 0, 0, fmt.Errorf("processor: decode image %s: empty or unsupported", path)
		}
		if decodeErr != nil {
			return gocv.Mat{}, 0, 0, fmt.Errorf("processor: decode webp %s: %w", path, decodeErr)
		}
		img = decoded
	}
	defer img.Close()

	if opts.Autocrop {
		hash.Autocrop(&img, opts.AutocropRange)
	}
	width, height := img.Cols(), img.Rows()

	full := img.Clone()
	if opts.ResizeLongestSide > 0 {
		hash.ResizeLongestSide(&full, opts.ResizeLongestSide, hash.InterLanczos4)
	}
	return full, width, height, nil
}

// ExtractColorDescriptor re-decodes path and computes its color
// descriptor, for Engine.Query's color-backend search path: a queried
// Media carries no color descriptor of its own, since it isn't persisted
// on media.Media (§4.D4, §4.G).
func (p *Processor) ExtractColorDescriptor(path string) (colordesc.Descriptor, error) {
	full, _, _, err := decodeAndPrepare(path, p.opts.Image)
	if err != nil {
		return colordesc.Descriptor{}, err
	}
	defer full.Close()
	return colordesc.Create(full, p.opts.Image.ColorSeed), nil
}

// ExtractMirroredColorDescriptor re-decodes path, flips it (gocv.Flip
// codes: 1 horizontal, 0 vertical, -1 both) and computes the color
// descriptor of the mirrored image, since color is the only §4.D backend
// that recognizes a mirrored match (SearchParams.MirrorMask, §4.D4/§4.H).
func (p *Processor) ExtractMirroredColorDescriptor(path string, flipCode int) (colordesc.Descriptor, error) {
	full, _, _, err := decodeAndPrepare(path, p.opts.Image)
	if err != nil {
		return colordesc.Descriptor{}, err
	}
	defer full.Close()

	mirrored := gocv.NewMat()
	defer mirrored.Close()
	gocv.Flip(full, &mirrored, flipCode)

	return colordesc.Create(mirrored, p.opts.Image.ColorSeed), nil
}

// ExtractCVDescriptors re-decodes path and recomputes its ORB keypoint
// descriptor matrix, for Engine.Query's cv-features-backend search path
// (§4.D3, §4.G). The caller must Close the returned Mat.
func (p *Processor) ExtractCVDescriptors(path string) (gocv.Mat, error) {
	full, _, _, err := decodeAndPrepare(path, p.opts.Image)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer full.Close()
	_, cvDescriptors := extractKeypoints(full, p.opts.Image.NumFeatures)
	return cvDescriptors, nil
}

// extractKeypoints detects ORB keypoints, converts each one whose patch
// is large enough to be worth hashing into a per-keypoint DCT hash
// (feeding the D2 index) and also returns the raw ORB descriptors
// (feeding the D3 brute-matcher index), matching the reference's
// two-pass keypoint pipeline (makeKeyPointHashes + ORB descriptor
// extraction, original_source/src/media.cpp).
func extractKeypoints(img gocv.Mat, numFeatures int) (media.KeypointHashes, gocv.Mat) {
	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() != 1 {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		gray = img.Clone()
	}

	orb := gocv.NewORBWithParams(numFeatures, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20)
	defer orb.Close()

	mask := gocv.NewMat()
	defer mask.Close()
	keypoints, descriptors := orb.DetectAndCompute(gray, mask)

	cols, rows := gray.Cols(), gray.Rows()
	hashes := make(media.KeypointHashes, 0, len(keypoints))
	for _, kp := range keypoints {
		size := kp.Size
		if size < minKeypointSize {
			continue
		}
		x0, y0 := kp.X, kp.Y
		x1, y1 := x0+size, y0+size
		if x0 <= 0 || y0 <= 0 || x1 >= float64(cols-2) || y1 >= float64(rows-2) {
			continue
		}
		rect := image.Rect(int(x0), int(y0), int(x0+size), int(y0+size))
		sub := gray.Region(rect)
		hashes = append(hashes, hash.DCTHash64(sub))
		sub.Close()
	}

	return hashes, descriptors
}
