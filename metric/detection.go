package metric

import (
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
)

// Precision calculates the fraction of predicted spot pixels that are true
// spot pixels. prob and target hold the spot class channel; a pixel counts
// as positive when its value exceeds threshold.
func Precision(prob, target *ts.Tensor, threshold float64) float64 {
	p, t := binarize(prob, target, threshold)

	ptMul := p.MustMul(t, false)
	tp := ptMul.MustSum(gotch.Double, true).Float64Values()[0]
	pSum := p.MustSum(gotch.Double, true).Float64Values()[0]
	t.MustDrop()

	if pSum == 0 {
		return 0
	}

	return tp / pSum
}

// Recall calculates the fraction of true spot pixels that are predicted as
// spot pixels.
func Recall(prob, target *ts.Tensor, threshold float64) float64 {
	p, t := binarize(prob, target, threshold)

	ptMul := p.MustMul(t, true)
	tp := ptMul.MustSum(gotch.Double, true).Float64Values()[0]
	tSum := t.MustSum(gotch.Double, true).Float64Values()[0]

	if tSum == 0 {
		return 0
	}

	return tp / tSum
}

// F1 calculates the harmonic mean of Precision and Recall.
func F1(prob, target *ts.Tensor, threshold float64) float64 {
	precision := Precision(prob, target, threshold)
	recall := Recall(prob, target, threshold)
	if precision+recall == 0 {
		return 0
	}

	return 2 * precision * recall / (precision + recall)
}

// binarize thresholds the prediction at the caller's threshold. The target
// is one-hot by contract and is cut at a fixed 0.5, so an extreme prediction
// threshold cannot zero the ground truth.
func binarize(prob, target *ts.Tensor, threshold float64) (p, t *ts.Tensor) {
	pflat := prob.MustView([]int64{-1}, false)
	tflat := target.MustView([]int64{-1}, false)
	p = pflat.MustGt(ts.FloatScalar(threshold), true).MustTotype(gotch.Double, true)
	t = tflat.MustGt(ts.FloatScalar(0.5), true).MustTotype(gotch.Double, true)

	return p, t
}
