// Package hash implements the perceptual-hash primitives used by every
// image and video index: the 64-bit DCT hash, its average-intensity
// sibling, the Hamming metric, autocrop and longest-side resize.
package hash

import (
	"image"
	"math"
	"math/bits"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// InterLanczos4 mirrors the reference's default resize filter.
const InterLanczos4 = gocv.InterpolationLanczos4

const dctSize = 32 // resize to 32x32 before taking the DCT
const blockSize = 8 // keep the upper-left 8x8 low-frequency coefficients

// Hamm64 returns the Hamming distance (population count of the XOR)
// between two 64-bit hashes. It is reflexive, symmetric and the primary
// metric every index backend sorts by.
func Hamm64(a, b uint64) uint32 {
	return uint32(bits.OnesCount64(a ^ b))
}

// DCTHash64 computes a 64-bit perceptual hash from the low-frequency
// coefficients of the 2D discrete cosine transform of a grayscale
// thumbnail (§4.A). The 63 non-DC coefficients fill bits 63..1; bit 0
// holds no coefficient and is always cleared so the low bits remain
// usable as radix keys downstream (§4.D5).
func DCTHash64(img gocv.Mat) uint64 {
	gray := toGrayscale(img)
	defer gray.Close()

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(gray, &small, image.Pt(dctSize, dctSize), 0, 0, InterLanczos4)

	floatImg := gocv.NewMat()
	defer floatImg.Close()
	small.ConvertTo(&floatImg, gocv.MatTypeCV32F)

	dct := gocv.NewMat()
	defer dct.Close()
	gocv.DCT(floatImg, &dct, 0)

	coeffs := make([]float64, 0, blockSize*blockSize-1)
	for y := 0; y < blockSize; y++ {
		for x := 0; x < blockSize; x++ {
			if x == 0 && y == 0 {
				continue // skip the DC coefficient
			}
			coeffs = append(coeffs, float64(dct.GetFloatAt(y, x)))
		}
	}

	median := medianOf(coeffs)

	var out uint64
	bit := uint(63)
	for y := 0; y < blockSize; y++ {
		for x := 0; x < blockSize; x++ {
			if x == 0 && y == 0 {
				continue
			}
			if float64(dct.GetFloatAt(y, x)) > median {
				out |= 1 << bit
			}
			bit--
		}
	}
	return out &^ 1 // reserve the low bit as zero
}

// AverageHash64 is the complementary hash defined against mean intensity
// rather than DCT coefficients.
func AverageHash64(img gocv.Mat) uint64 {
	gray := toGrayscale(img)
	defer gray.Close()

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(gray, &small, image.Pt(8, 8), 0, 0, InterLanczos4)

	vals := make([]float64, 0, 64)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			vals = append(vals, float64(small.GetUCharAt(y, x)))
		}
	}
	mean := meanOf(vals)

	var out uint64
	bit := uint(63)
	for _, v := range vals {
		if v > mean {
			out |= 1 << bit
		}
		bit--
	}
	return out &^ 1
}

func toGrayscale(img gocv.Mat) gocv.Mat {
	if img.Channels() == 1 {
		return img.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	return gray
}

// medianOf returns the median of v: gonum/stat's quantile estimator
// (empirical CDF, p=0.5) for an odd count, the mean of the two middle
// values for an even count.
func medianOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	if n := len(sorted); n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

func meanOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return stat.Mean(v, nil)
}

// Autocrop finds the largest balanced (top/bottom and left/right equal)
// solid-color border and crops it in place. A row/column is "solid" iff
// every pixel in it is within range of the image's median value (§4.A).
// The result always has width and height >= 1 and applying Autocrop twice
// is idempotent.
func Autocrop(img *gocv.Mat, colorRange int) {
	gray := toGrayscale(*img)
	defer gray.Close()

	rows, cols := gray.Rows(), gray.Cols()
	if rows <= 1 || cols <= 1 {
		return
	}

	median := matMedian(gray)

	top := 0
	for top < rows/2 && rowIsSolid(gray, top, median, colorRange) {
		top++
	}
	bottom := 0
	for bottom < rows/2 && rowIsSolid(gray, rows-1-bottom, median, colorRange) {
		bottom++
	}
	left := 0
	for left < cols/2 && colIsSolid(gray, left, median, colorRange) {
		left++
	}
	right := 0
	for right < cols/2 && colIsSolid(gray, cols-1-right, median, colorRange) {
		right++
	}

	// balanced: top/bottom crop by the lesser amount, same for left/right.
	vCrop := minInt(top, bottom)
	hCrop := minInt(left, right)

	if vCrop == 0 && hCrop == 0 {
		return
	}

	newHeight := rows - 2*vCrop
	newWidth := cols - 2*hCrop
	if newHeight < 1 {
		newHeight = rows
		vCrop = 0
	}
	if newWidth < 1 {
		newWidth = cols
		hCrop = 0
	}

	rect := image.Rect(hCrop, vCrop, hCrop+newWidth, vCrop+newHeight)
	cropped := img.Region(rect)
	out := cropped.Clone()
	cropped.Close()
	img.Close()
	*img = out
}

func rowIsSolid(gray gocv.Mat, row int, median float64, rng int) bool {
	cols := gray.Cols()
	for x := 0; x < cols; x++ {
		if math.Abs(float64(gray.GetUCharAt(row, x))-median) > float64(rng) {
			return false
		}
	}
	return true
}

func colIsSolid(gray gocv.Mat, col int, median float64, rng int) bool {
	rows := gray.Rows()
	for y := 0; y < rows; y++ {
		if math.Abs(float64(gray.GetUCharAt(y, col))-median) > float64(rng) {
			return false
		}
	}
	return true
}

func matMedian(gray gocv.Mat) float64 {
	rows, cols := gray.Rows(), gray.Cols()
	vals := make([]float64, 0, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			vals = append(vals, float64(gray.GetUCharAt(y, x)))
		}
	}
	return medianOf(vals)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ResizeLongestSide scales img so that max(width, height) == n, preserving
// aspect ratio (§4.A).
func ResizeLongestSide(img *gocv.Mat, n int, filter gocv.InterpolationFlags) {
	rows, cols := img.Rows(), img.Cols()
	if rows == 0 || cols == 0 {
		return
	}
	longest := rows
	if cols > longest {
		longest = cols
	}
	if longest == n {
		return
	}
	scale := float64(n) / float64(longest)
	newW := int(math.Round(float64(cols) * scale))
	newH := int(math.Round(float64(rows) * scale))
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	out := gocv.NewMat()
	gocv.Resize(*img, &out, image.Pt(newW, newH), 0, 0, filter)
	img.Close()
	*img = out
}
