package loss

import (
	ts "github.com/sugarme/gotch/tensor"
)

// SmoothL1 computes the elementwise smooth L1 loss of `yPred` w.r.t. `yTrue`.
//
// With s = sigma^2 and r = |yTrue - yPred|:
//
//	f(r) = 0.5 * s * r^2    if r < 1/s
//	       r - 0.5/s        otherwise
//
// The two branches agree in value and first derivative at r = 1/s, so the
// loss surface is C1 everywhere. No reduction is applied; the returned tensor
// has the same shape as the inputs.
// Ref. https://arxiv.org/abs/1504.08083
func SmoothL1(yTrue, yPred *ts.Tensor, sigma float64) *ts.Tensor {
	sigma2 := sigma * sigma

	diff := yTrue.MustSub(yPred, false).MustAbs(true)

	// quadratic branch: 0.5 * sigma^2 * r^2
	quad := diff.MustPow(ts.FloatScalar(2.0), false).MustMul1(ts.FloatScalar(0.5*sigma2), true)
	// linear branch: r - 0.5 / sigma^2
	lin := diff.MustAdd1(ts.FloatScalar(-0.5/sigma2), false)

	// blend the branches with a differentiable 0/1 mask on r < 1/sigma^2
	mask := diff.MustLt(ts.FloatScalar(1.0/sigma2), false).MustTotype(diff.DType(), true)
	maskInv := mask.MustMul1(ts.FloatScalar(-1.0), false).MustAdd1(ts.FloatScalar(1.0), true)

	quadPart := quad.MustMul(mask, true)
	linPart := lin.MustMul(maskInv, true)
	retVal := quadPart.MustAdd(linPart, true)

	diff.MustDrop()
	mask.MustDrop()
	maskInv.MustDrop()
	linPart.MustDrop()

	return retVal
}
