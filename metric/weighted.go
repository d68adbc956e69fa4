package metric

import (
	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
)

const epsilon = 1e-7

// classWeights computes per-class weights from the one-hot ground truth:
// w_c = total / (nClasses * (count_c + 1)). Rare classes get larger weights.
// The returned tensor has shape (1, 1, ..., nClasses) and broadcasts over
// the input.
func classWeights(yTrue *ts.Tensor, nClasses int64) *ts.Tensor {
	ndim := int64(len(yTrue.MustSize()))
	var reduceDims []int64
	for i := int64(0); i < ndim-1; i++ {
		reduceDims = append(reduceDims, i)
	}

	totalSum := yTrue.MustSum(gotch.Double, false)
	classSum := yTrue.MustSum1(reduceDims, true, gotch.Double, false)
	den := classSum.MustAdd1(ts.FloatScalar(1.0), true)
	retVal := totalSum.MustDiv(den, true).MustMul1(ts.FloatScalar(1.0/float64(nClasses)), true)
	den.MustDrop()

	return retVal
}

// normalizeProb scales predictions so the class probabilities of every pixel
// sum to one, then clips them away from 0 and 1 for a stable logarithm.
func normalizeProb(yPred *ts.Tensor) *ts.Tensor {
	ndim := int64(len(yPred.MustSize()))
	predSum := yPred.MustSum1([]int64{ndim - 1}, true, gotch.Double, false)
	retVal := yPred.MustDiv(predSum, false).MustClip(ts.FloatScalar(epsilon), ts.FloatScalar(1.0-epsilon), true)
	predSum.MustDrop()

	return retVal
}

// WeightedCrossEntropy calculates the class-weighted categorical cross
// entropy between a one-hot yTrue and a probability yPred, both of shape
// (batch, ..., nClasses). Class weights are derived from the class frequency
// in yTrue. The result keeps the per-pixel shape (batch, ...); no reduction
// is applied over it.
func WeightedCrossEntropy(yTrue, yPred *ts.Tensor, nClasses int64) *ts.Tensor {
	ndim := int64(len(yPred.MustSize()))

	prob := normalizeProb(yPred)
	weights := classWeights(yTrue, nClasses)

	logProb := prob.MustLog(true)
	weighted := yTrue.MustMul(logProb, false).MustMul(weights, true)
	retVal := weighted.MustSum1([]int64{ndim - 1}, false, gotch.Double, true).MustMul1(ts.FloatScalar(-1.0), true)

	logProb.MustDrop()
	weights.MustDrop()

	return retVal
}

// WeightedFocalLoss calculates the class-weighted focal loss between a
// one-hot yTrue and a probability yPred of shape (batch, ..., nClasses).
// gamma controls how strongly well-classified pixels are down-weighted.
// The result is reduced to a scalar by summation.
// Ref. https://arxiv.org/abs/1708.02002
func WeightedFocalLoss(yTrue, yPred *ts.Tensor, gamma float64, nClasses int64) *ts.Tensor {
	prob := normalizeProb(yPred)
	weights := classWeights(yTrue, nClasses)

	logProb := prob.MustLog(false)
	// (1 - p)^gamma
	focal := prob.MustMul1(ts.FloatScalar(-1.0), true).MustAdd1(ts.FloatScalar(1.0), true).MustPow(ts.FloatScalar(gamma), true)

	modulated := focal.MustMul(logProb, true).MustMul(weights, true)
	logProb.MustDrop()
	weights.MustDrop()

	retVal := yTrue.MustMul(modulated, false).MustSum(gotch.Double, true).MustMul1(ts.FloatScalar(-1.0), true)
	modulated.MustDrop()

	return retVal
}
