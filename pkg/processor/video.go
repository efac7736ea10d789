package processor

import (
	"fmt"

	"gocv.io/x/gocv"

	"cbird/pkg/hash"
	"cbird/pkg/media"
	"cbird/pkg/vdx"
)

// maxFramesPerVideo mirrors pkg/vdx.MaxFramesPerVideo; frames beyond it
// are dropped rather than growing the index unbounded (§4.B/§4.G).
const maxFramesPerVideo = vdx.MaxFramesPerVideo

// VideoOptions configures per-frame extraction, mirroring the
// scan-time subset of IndexParams relevant to video (§4.F/§4.G).
type VideoOptions struct {
	Autocrop      bool
	AutocropRange int

	// Threshold is the near-hash compression window: a frame whose hash
	// is within this Hamming distance of enough recent frames is dropped,
	// the same "don't index redundant still frames" rule as the
	// reference's window-based compression (original_source/src/media.cpp).
	Threshold  int
	WindowSize int
}

// DefaultVideoOptions mirrors the reference's videoThreshold default.
func DefaultVideoOptions() VideoOptions {
	return VideoOptions{Autocrop: true, AutocropRange: 20, Threshold: 8, WindowSize: 16}
}

// ProcessVideo decodes every frame of path, hashes each one (after the
// same autocrop/grayscale treatment as stills), writes the resulting
// frame/hash pairs to a .vdx sidecar at vdxPath and returns a Media
// record whose DCTHash is the hash of the video's first frame (§4.B/§4.G).
func ProcessVideo(path, vdxPath string, opts VideoOptions) (media.Media, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return media.Media{}, fmt.Errorf("processor: open video %s: %w", path, err)
	}
	defer vc.Close()

	digest, err := digestFile(path)
	if err != nil {
		return media.Media{}, fmt.Errorf("processor: digest %s: %w", path, err)
	}

	width := int(vc.Get(gocv.VideoCaptureFrameWidth))
	height := int(vc.Get(gocv.VideoCaptureFrameHeight))

	var frames []int32
	var hashes []uint64
	var window []uint64

	frame := gocv.NewMat()
	defer frame.Close()

	frameNumber := 0
	var firstHash uint64
	for vc.Read(&frame) {
		if frame.Empty() {
			continue
		}
		if frameNumber >= maxFramesPerVideo {
			break
		}

		gray := gocv.NewMat()
		if frame.Channels() != 1 {
			gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
		} else {
			gray = frame.Clone()
		}
		if opts.Autocrop {
			hash.Autocrop(&gray, opts.AutocropRange)
		}

		h := hash.DCTHash64(gray)
		gray.Close()

		if frameNumber == 0 {
			firstHash = h
		}

		if !nearRecent(window, h, opts.Threshold) {
			frames = append(frames, int32(frameNumber))
			hashes = append(hashes, h)
		}
		window = pushWindow(window, h, opts.WindowSize)

		frameNumber++
	}

	if vdxPath != "" && len(frames) > 0 {
		idx := &vdx.VideoIndex{Frames: frames, Hashes: hashes}
		if err := vdx.Save(vdxPath, idx); err != nil {
			return media.Media{}, fmt.Errorf("processor: save video index %s: %w", vdxPath, err)
		}
	}

	m := media.Media{
		Type:    media.TypeVideo,
		Path:    path,
		Digest:  digest,
		Width:   width,
		Height:  height,
		DCTHash: firstHash,
	}
	return m, nil
}

// nearRecent reports whether h is within threshold of enough hashes in
// window to count as a redundant frame. threshold<=0 disables
// compression, matching the reference's Q_LIKELY(threshold > 0) guard.
func nearRecent(window []uint64, h uint64, threshold int) bool {
	if threshold <= 0 {
		return false
	}
	nearCount := 0
	for _, prev := range window {
		if int(hash.Hamm64(prev, h)) < threshold {
			nearCount++
		}
	}
	return nearCount > 0 && nearCount == len(window)
}

func pushWindow(window []uint64, h uint64, size int) []uint64 {
	if size <= 0 {
		return window
	}
	window = append(window, h)
	if len(window) > size {
		window = window[len(window)-size:]
	}
	return window
}
