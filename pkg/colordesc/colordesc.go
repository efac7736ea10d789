// Package colordesc implements the weighted LUV color histogram
// descriptor used by the color-search index (§4.C).
package colordesc

import (
	"math"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// MaxColors is the maximum number of quantized colors retained per image.
const MaxColors = 32

// LUV compression ranges, matching the reference implementation's
// lossy 16-bit quantization.
const (
	lRange = 100.0
	uMin   = -134.0
	uRange = 354.0 // -134..220
	vMin   = -140.0
	vRange = 262.0 // -140..122
)

// Color is one quantized LUV centroid with its cluster weight, all
// compressed losslessly-within-tolerance into 16-bit fields.
type Color struct {
	L, U, V uint16
	Weight  uint16
}

// Key returns the unique identifier of a color's LUV coordinate,
// independent of weight: (l<<32 | u<<16 | v).
func (c Color) Key() uint64 {
	return uint64(c.L)<<32 | uint64(c.U)<<16 | uint64(c.V)
}

// Decompress returns the floating point LUV coordinate.
func (c Color) Decompress() (l, u, v float64) {
	l = float64(c.L) * lRange / 65535.0
	u = float64(c.U)*uRange/65535.0 + uMin
	v = float64(c.V)*vRange/65535.0 + vMin
	return
}

func compress(l, u, v float64) Color {
	return Color{
		L: clamp16(l * 65535.0 / lRange),
		U: clamp16((u - uMin) * 65535.0 / uRange),
		V: clamp16((v - vMin) * 65535.0 / vRange),
	}
}

func clamp16(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v + 0.5)
}

// Descriptor is up to MaxColors quantized LUV colors summarizing an
// image, built by clustering (§4.C).
type Descriptor struct {
	Colors []Color
}

// Distance sums, over all centroid pairs (a_i, b_j), the weighted squared
// LUV Euclidean distance, normalized by the product of total weights.
// Symmetric; Distance(x, x) == 0.
func Distance(a, b Descriptor) float64 {
	var totalA, totalB float64
	for _, c := range a.Colors {
		totalA += float64(c.Weight)
	}
	for _, c := range b.Colors {
		totalB += float64(c.Weight)
	}
	if totalA == 0 || totalB == 0 {
		if totalA == totalB {
			return 0
		}
		return math.Inf(1)
	}

	var sum float64
	for _, ca := range a.Colors {
		al, au, av := ca.Decompress()
		for _, cb := range b.Colors {
			bl, bu, bv := cb.Decompress()
			dl, du, dv := al-bl, au-bu, av-bv
			sq := dl*dl + du*du + dv*dv
			sum += float64(ca.Weight) * float64(cb.Weight) * sq
		}
	}
	return sum / (totalA * totalB)
}

type luvPixel struct{ l, u, v float64 }

// Create clusters the LUV pixels of a decoded image into at most
// MaxColors centroids using a k-means-like algorithm seeded
// deterministically from the pixel data, so identical input bytes with
// the same seed always yield a bit-identical descriptor.
func Create(img gocv.Mat, seed int64) Descriptor {
	luv := gocv.NewMat()
	defer luv.Close()
	gocv.CvtColor(img, &luv, gocv.ColorBGRToLuv)

	rows, cols := luv.Rows(), luv.Cols()
	pixels := make([]luvPixel, 0, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			bs := luv.GetVecbAt(y, x)
			pixels = append(pixels, luvPixel{
				l: float64(bs[0]) * 100.0 / 255.0,
				u: float64(bs[1])*uRange/255.0 + uMin,
				v: float64(bs[2])*vRange/255.0 + vMin,
			})
		}
	}
	if len(pixels) == 0 {
		return Descriptor{}
	}

	k := MaxColors
	if k > len(pixels) {
		k = len(pixels)
	}

	centroids := seedCentroids(pixels, k, seed)
	assignments := make([]int, len(pixels))

	const iterations = 8
	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, p := range pixels {
			best, bestDist := 0, math.Inf(1)
			for ci, c := range centroids {
				d := sqDist(p, c)
				if d < bestDist {
					bestDist = d
					best = ci
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		members := make([][]luvPixel, k)
		for i, p := range pixels {
			c := assignments[i]
			members[c] = append(members[c], p)
		}
		for c := 0; c < k; c++ {
			if len(members[c]) == 0 {
				continue
			}
			centroids[c] = meanPixel(members[c])
		}
		if !changed {
			break
		}
	}

	counts := make([]int, k)
	for _, a := range assignments {
		counts[a]++
	}

	out := make([]Color, 0, k)
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			continue
		}
		weight := uint16(clamp16(float64(counts[c]) * 65535.0 / float64(len(pixels))))
		col := compress(centroids[c].l, centroids[c].u, centroids[c].v)
		col.Weight = weight
		out = append(out, col)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })

	return Descriptor{Colors: out}
}

// seedCentroids picks k deterministic initial centroids by striding
// evenly through the (seed-rotated) pixel list, avoiding any
// nondeterministic RNG so identical bytes always produce identical
// clusters.
func seedCentroids(pixels []luvPixel, k int, seed int64) []luvPixel {
	n := len(pixels)
	offset := int(seed % int64(n))
	if offset < 0 {
		offset += n
	}
	centroids := make([]luvPixel, k)
	stride := n / k
	if stride == 0 {
		stride = 1
	}
	for i := 0; i < k; i++ {
		centroids[i] = pixels[(offset+i*stride)%n]
	}
	return centroids
}

// meanPixel recomputes a centroid as the per-channel mean of its cluster
// members, using gonum/stat for the reduction.
func meanPixel(members []luvPixel) luvPixel {
	ls := make([]float64, len(members))
	us := make([]float64, len(members))
	vs := make([]float64, len(members))
	for i, p := range members {
		ls[i], us[i], vs[i] = p.l, p.u, p.v
	}
	return luvPixel{
		l: stat.Mean(ls, nil),
		u: stat.Mean(us, nil),
		v: stat.Mean(vs, nil),
	}
}

func sqDist(p, c luvPixel) float64 {
	dl, du, dv := p.l-c.l, p.u-c.u, p.v-c.v
	return dl*dl + du*du + dv*dv
}
