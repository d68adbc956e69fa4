// Package postprocess converts pixelwise spot detection network output into
// per image lists of spot coordinates.
package postprocess

import (
	"sort"

	ts "github.com/sugarme/gotch/tensor"
)

// Point is a detected spot location in image coordinates (row, column).
// Fractional values come from the sub-pixel offset regression.
type Point struct {
	Y float64
	X float64
}

// PointList collects, for every image in the batch, the pixels whose spot
// class probability exceeds threshold and refines each coordinate with the
// predicted sub-pixel offset.
//
// clf has shape (batch, H, W, nClasses) with the spot class at channel 1,
// reg has shape (batch, H, W, 2) with (deltaY, deltaX) offsets.
func PointList(clf, reg *ts.Tensor, threshold float64) [][]Point {
	prob, dy, dx, size := rawValues(clf, reg)
	b, h, w := size[0], size[1], size[2]

	coords := make([][]Point, b)
	for i := int64(0); i < b; i++ {
		var pts []Point
		for y := int64(0); y < h; y++ {
			for x := int64(0); x < w; x++ {
				n := i*h*w + y*w + x
				if prob[n] > threshold {
					pts = append(pts, Point{Y: float64(y) + dy[n], X: float64(x) + dx[n]})
				}
			}
		}
		coords[i] = pts
	}

	return coords
}

// PointListRestrictive behaves like PointList but drops pixels whose
// predicted offset points outside the pixel itself (absolute value of either
// component >= 0.5). Such pixels disagree with their own classification and
// are usually duplicates of a neighbor.
func PointListRestrictive(clf, reg *ts.Tensor, threshold float64) [][]Point {
	prob, dy, dx, size := rawValues(clf, reg)
	b, h, w := size[0], size[1], size[2]

	coords := make([][]Point, b)
	for i := int64(0); i < b; i++ {
		var pts []Point
		for y := int64(0); y < h; y++ {
			for x := int64(0); x < w; x++ {
				n := i*h*w + y*w + x
				if prob[n] > threshold && dy[n] < 0.5 && dy[n] > -0.5 && dx[n] < 0.5 && dx[n] > -0.5 {
					pts = append(pts, Point{Y: float64(y) + dy[n], X: float64(x) + dx[n]})
				}
			}
		}
		coords[i] = pts
	}

	return coords
}

// PointListMax behaves like PointList but only keeps pixels that are local
// maxima of the spot probability within their 3x3 neighborhood, so a cluster
// of above-threshold pixels around one spot yields a single point.
func PointListMax(clf, reg *ts.Tensor, threshold float64) [][]Point {
	prob, dy, dx, size := rawValues(clf, reg)
	b, h, w := size[0], size[1], size[2]

	probTs := clf.MustSelect(3, 1, false)
	peak := maxFiltered(probTs, 1)
	probTs.MustDrop()

	coords := make([][]Point, b)
	for i := int64(0); i < b; i++ {
		var pts []Point
		for y := int64(0); y < h; y++ {
			for x := int64(0); x < w; x++ {
				n := i*h*w + y*w + x
				if prob[n] > threshold && prob[n] == peak[n] {
					pts = append(pts, Point{Y: float64(y) + dy[n], X: float64(x) + dx[n]})
				}
			}
		}
		coords[i] = pts
	}

	return coords
}

// PointListCC merges 4-connected clusters of above-threshold spot pixels
// into single detections. Every connected component yields one point: the
// mean of its offset-refined pixel coordinates. Neighboring pixels firing on
// the same spot therefore collapse into one detection instead of several.
func PointListCC(clf, reg *ts.Tensor, threshold float64) [][]Point {
	prob, dy, dx, size := rawValues(clf, reg)
	b, h, w := size[0], size[1], size[2]

	coords := make([][]Point, b)
	for i := int64(0); i < b; i++ {
		visited := make([]bool, h*w)
		var pts []Point
		for y := int64(0); y < h; y++ {
			for x := int64(0); x < w; x++ {
				if visited[y*w+x] || prob[i*h*w+y*w+x] <= threshold {
					continue
				}
				pts = append(pts, componentPoint(prob, dy, dx, visited, i, y, x, h, w, threshold))
			}
		}
		coords[i] = pts
	}

	return coords
}

// componentPoint flood fills the 4-connected component containing (y, x) and
// returns the mean of its offset-refined coordinates.
func componentPoint(prob, dy, dx []float64, visited []bool, i, y, x, h, w int64, threshold float64) Point {
	var sumY, sumX, count float64

	stack := [][2]int64{{y, x}}
	visited[y*w+x] = true
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := i*h*w + c[0]*w + c[1]
		sumY += float64(c[0]) + dy[n]
		sumX += float64(c[1]) + dx[n]
		count++

		neighbors := [][2]int64{
			{c[0] - 1, c[1]},
			{c[0] + 1, c[1]},
			{c[0], c[1] - 1},
			{c[0], c[1] + 1},
		}
		for _, nb := range neighbors {
			if nb[0] < 0 || nb[0] >= h || nb[1] < 0 || nb[1] >= w {
				continue
			}
			m := nb[0]*w + nb[1]
			if !visited[m] && prob[i*h*w+m] > threshold {
				visited[m] = true
				stack = append(stack, nb)
			}
		}
	}

	return Point{Y: sumY / count, X: sumX / count}
}

// MaxProjectionPoints extracts spot centers from a precomputed probability
// array of shape (batch, H, W), without offset refinement. A pixel qualifies
// when it exceeds threshold and is the maximum within minDistance pixels.
// Points of one image are ordered by descending probability.
func MaxProjectionPoints(maxCp *ts.Tensor, threshold float64, minDistance int64) [][]Point {
	size := maxCp.MustSize()
	b, h, w := size[0], size[1], size[2]

	prob := maxCp.Float64Values()
	peak := maxFiltered(maxCp, minDistance)

	coords := make([][]Point, b)
	for i := int64(0); i < b; i++ {
		var pts []Point
		var probs []float64
		for y := int64(0); y < h; y++ {
			for x := int64(0); x < w; x++ {
				n := i*h*w + y*w + x
				if prob[n] > threshold && prob[n] == peak[n] {
					pts = append(pts, Point{Y: float64(y), X: float64(x)})
					probs = append(probs, prob[n])
				}
			}
		}
		idx := make([]int, len(pts))
		for j := range idx {
			idx[j] = j
		}
		sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })
		ordered := make([]Point, len(pts))
		for j, id := range idx {
			ordered[j] = pts[id]
		}
		coords[i] = ordered
	}

	return coords
}

// rawValues pulls the spot probability channel and both offset channels to
// the host, row major.
func rawValues(clf, reg *ts.Tensor) (prob, dy, dx []float64, size []int64) {
	probTs := clf.MustSelect(3, 1, false)
	dyTs := reg.MustSelect(3, 0, false)
	dxTs := reg.MustSelect(3, 1, false)

	prob = probTs.Float64Values()
	dy = dyTs.Float64Values()
	dx = dxTs.Float64Values()
	size = probTs.MustSize()

	probTs.MustDrop()
	dyTs.MustDrop()
	dxTs.MustDrop()

	return prob, dy, dx, size
}

// maxFiltered runs a maximum filter of radius over a (batch, H, W) tensor
// and returns the filtered values, row major.
func maxFiltered(x *ts.Tensor, radius int64) []float64 {
	k := 2*radius + 1
	pooled := x.MustUnsqueeze(1, false).
		MustMaxPool2d([]int64{k, k}, []int64{1, 1}, []int64{radius, radius}, []int64{1, 1}, false, true).
		MustSqueeze1(1, true)
	retVal := pooled.Float64Values()
	pooled.MustDrop()

	return retVal
}
