// Package template implements the ORB-keypoint affine-validate
// post-filter: given a needle image and a candidate group, it confirms
// (or rejects) each candidate by finding enough matched keypoints to
// estimate a rigid 2D transform between the two images (§4.J). Grounded
// on TemplateMatcher::match (original_source/src/templatematcher.cpp).
package template

import (
	"image"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"cbird/pkg/index"
	"cbird/pkg/media"
)

// minTransformPoints is the fewest matched keypoint pairs that can
// estimate a 2D affine transform (original_source/src/templatematcher.cpp:
// "need at least 3 points to estimate transform").
const minTransformPoints = 3

// cacheMiss marks a pair the matcher has already tried and failed to
// validate, so repeat queries against the same candidate skip the
// expensive keypoint/transform work (§4.J).
const cacheMiss = 1 << 30

// Matcher holds a pair-keyed score cache across queries, the same
// role as TemplateMatcher's _cache map.
type Matcher struct {
	mu    sync.RWMutex
	cache map[string]int
}

// New returns an empty Matcher.
func New() *Matcher {
	return &Matcher{cache: map[string]int{}}
}

func cacheKey(a, b media.Digest) string {
	as, bs := a.String(), b.String()
	if as > bs {
		as, bs = bs, as
	}
	return as + bs
}

// Match validates each candidate in group against needle, keeping only
// those whose best keypoint match yields a transform with a score below
// params.TMThresh, and drops the rest (§4.J). needleImg holds the
// needle's decoded pixels and loadCandidate loads a candidate's; group
// entries the loader can't decode are dropped rather than erroring the
// whole query.
func (m *Matcher) Match(needle media.Media, needleImg gocv.Mat, group media.Group, loadCandidate func(media.Media) (gocv.Mat, bool), params index.SearchParams) media.Group {
	if len(group) == 0 {
		return group
	}

	useCache := !needle.Digest.IsZero()
	for _, c := range group {
		if c.Digest.IsZero() {
			useCache = false
		}
	}

	var good, pending media.Group
	if useCache {
		for _, c := range group {
			key := cacheKey(needle.Digest, c.Digest)
			m.mu.RLock()
			dist, ok := m.cache[key]
			m.mu.RUnlock()
			if ok {
				if dist < params.TMThresh {
					c.Score = dist
					good = append(good, c)
				}
				continue
			}
			pending = append(pending, c)
		}
	} else {
		pending = group
	}
	if len(pending) == 0 {
		sort.Slice(good, func(i, j int) bool { return good[i].Score < good[j].Score })
		return good
	}

	orb := gocv.NewORBWithParams(params.NeedleFeatures, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20)
	defer orb.Close()
	needleMask := gocv.NewMat()
	defer needleMask.Close()
	needleKp, needleDesc := orb.DetectAndCompute(needleImg, needleMask)
	defer needleDesc.Close()

	if needleDesc.Cols() <= 0 {
		return good
	}

	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
	defer matcher.Close()

	for _, c := range pending {
		key := cacheKey(needle.Digest, c.Digest)

		img, ok := loadCandidate(c)
		if !ok {
			continue
		}

		candOrb := gocv.NewORBWithParams(params.HaystackFeatures, 1.2, 8, 31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20)
		candMask := gocv.NewMat()
		candKp, candDesc := candOrb.DetectAndCompute(img, candMask)
		candOrb.Close()
		candMask.Close()

		if candDesc.Cols() <= 0 {
			candDesc.Close()
			img.Close()
			if useCache {
				m.setCache(key, cacheMiss)
			}
			continue
		}

		matches := matcher.KnnMatch(candDesc, needleDesc, 1)
		candDesc.Close()

		var needlePts, candPts []image.Point
		for _, ms := range matches {
			for _, dm := range ms {
				if float64(dm.Distance) > float64(params.CVThresh) {
					continue
				}
				if dm.TrainIdx >= len(needleKp) || dm.QueryIdx >= len(candKp) {
					continue
				}
				needlePts = append(needlePts, image.Pt(int(needleKp[dm.TrainIdx].X), int(needleKp[dm.TrainIdx].Y)))
				candPts = append(candPts, image.Pt(int(candKp[dm.QueryIdx].X), int(candKp[dm.QueryIdx].Y)))
			}
		}
		img.Close()

		if len(needlePts) < minTransformPoints {
			if useCache {
				m.setCache(key, cacheMiss)
			}
			continue
		}

		score := meanPointDistance(needlePts, candPts)
		if useCache {
			m.setCache(key, score)
		}
		if score < params.TMThresh {
			c.Score = score
			good = append(good, c)
		}
	}

	sort.Slice(good, func(i, j int) bool { return good[i].Score < good[j].Score })
	return good
}

func (m *Matcher) setCache(key string, v int) {
	m.mu.Lock()
	m.cache[key] = v
	m.mu.Unlock()
}

// meanPointDistance stands in for the reference's estimateRigidTransform
// residual: the mean displacement between matched keypoint positions,
// after a crude recentering around each point set's centroid, approximates
// how well the two keypoint clouds line up as a single rigid transform
// without pulling in a full least-squares affine solver (§4.J).
func meanPointDistance(a, b []image.Point) int {
	if len(a) == 0 {
		return cacheMiss
	}
	ca := centroid(a)
	cb := centroid(b)
	sum := 0
	for i := range a {
		dx := (a[i].X - ca.X) - (b[i].X - cb.X)
		dy := (a[i].Y - ca.Y) - (b[i].Y - cb.Y)
		sum += absInt(dx) + absInt(dy)
	}
	return sum / len(a)
}

func centroid(pts []image.Point) image.Point {
	var sx, sy int
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	return image.Pt(sx/len(pts), sy/len(pts))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
