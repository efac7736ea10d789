package processor

import (
	"image"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// decodeWebPFallback decodes path with the pure-Go WebP decoder and
// converts the result to a gocv.Mat, for the one format OpenCV's stock
// build frequently can't read itself. ok is false for any non-.webp
// path, letting the caller fall through to its normal "unsupported"
// error instead of misreporting a decode failure.
func decodeWebPFallback(path string) (gocv.Mat, bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".webp") {
		return gocv.Mat{}, false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return gocv.Mat{}, true, err
	}
	defer f.Close()

	img, err := webp.Decode(f)
	if err != nil {
		return gocv.Mat{}, true, err
	}

	mat, err := gocv.ImageToMatRGB(rgbaCopy(img))
	if err != nil {
		return gocv.Mat{}, true, err
	}
	return mat, true, nil
}

// rgbaCopy normalizes img to *image.RGBA via golang.org/x/image/draw,
// since gocv.ImageToMatRGB expects a concrete RGBA source and webp.Decode
// can return either image.YCbCr or image.RGBA depending on the file.
func rgbaCopy(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, img.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
