package loss

import (
	"log"

	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/spotnet/metric"
)

// Losses bundles the loss functions used to train a pixelwise spot detection
// network, together with their hyperparameters. A Losses value is immutable
// after construction and safe to share across calls.
type Losses struct {
	gamma    float64 // focal loss focusing parameter
	sigma    float64 // smooth L1 transition scale
	nClasses int64
	focal    bool // focal loss instead of weighted cross entropy
	dPixels  int64
	mu       float64
	beta     float64
}

// NewLosses creates a new Losses.
//
// gamma is the focal loss focusing parameter, sigma the smooth L1 transition
// scale, dPixels the radius (in pixels) around a spot-containing pixel over
// which the regression loss is evaluated, and mu and beta the weights of the
// count-mismatch and neighbor-interaction penalties. mu and beta may be zero
// to disable their terms.
func NewLosses(gamma, sigma float64, nClasses int64, focal bool, dPixels int64, mu, beta float64) *Losses {
	if sigma <= 0 {
		log.Fatalf("invalid sigma: %v. Must be positive.\n", sigma)
	}
	if nClasses <= 0 {
		log.Fatalf("invalid nClasses: %v. Must be positive.\n", nClasses)
	}
	if dPixels < 0 {
		log.Fatalf("invalid dPixels: %v. Must not be negative.\n", dPixels)
	}
	if mu < 0 || beta < 0 {
		log.Fatalf("invalid regularizer weights (mu=%v beta=%v). Must not be negative.\n", mu, beta)
	}

	return &Losses{
		gamma:    gamma,
		sigma:    sigma,
		nClasses: nClasses,
		focal:    focal,
		dPixels:  dPixels,
		mu:       mu,
		beta:     beta,
	}
}

// DefaultLosses creates Losses with default hyperparameters.
func DefaultLosses() *Losses {
	return NewLosses(2.0, 3.0, 2, false, 1, 0, 0)
}

// RegressionLoss calculates the smooth L1 loss of the predicted sub-pixel
// offsets, only over pixels near a pixel containing a spot.
//
// yTrue and yPred have shape (batch, H, W, 2); the last dimension holds
// (deltaY, deltaX), the offset of the nearest spot from the pixel center.
// A pixel takes part in the loss iff both its true offsets lie in [-d, d)
// with d = 0.5 + dPixels. The summed loss over the selected pixels is
// normalized by max(1, number of selected pixels), so an empty selection
// yields exactly zero.
//
// Offsets exactly at half-integer boundaries may be classified inconsistently
// with the rounding convention used to build the ground truth (round half to
// even vs. half away from zero). This is negligible for continuous-valued
// spot positions and is left as is.
func (l *Losses) RegressionLoss(yTrue, yPred *ts.Tensor) *ts.Tensor {
	d := 0.5 + float64(l.dPixels)

	yOffTrue := yTrue.MustSelect(3, 0, false)
	xOffTrue := yTrue.MustSelect(3, 1, false)
	yOffPred := yPred.MustSelect(3, 0, false)
	xOffPred := yPred.MustSelect(3, 1, false)

	nearY := withinRange(yOffTrue, d)
	nearX := withinRange(xOffTrue, d)
	near := nearY.MustLogicalAnd(nearX, true)
	nearX.MustDrop()

	// the four gathers share one mask, so true/pred values stay paired
	yTrueSel := yOffTrue.MustMaskedSelect(near, true)
	xTrueSel := xOffTrue.MustMaskedSelect(near, true)
	yPredSel := yOffPred.MustMaskedSelect(near, true)
	xPredSel := xOffPred.MustMaskedSelect(near, true)

	nSelected := yTrueSel.MustSize()[0]

	lossY := SmoothL1(yTrueSel, yPredSel, l.sigma)
	lossX := SmoothL1(xTrueSel, xPredSel, l.sigma)
	pixelLoss := ts.MustCat([]ts.Tensor{*lossY, *lossX}, 0)
	lossY.MustDrop()
	lossX.MustDrop()

	// guard against division by zero when no pixel is near a spot
	normalizer := float64(nSelected)
	if normalizer < 1 {
		normalizer = 1
	}

	retVal := pixelLoss.MustSum(gotch.Double, true).MustDiv1(ts.FloatScalar(normalizer), true)

	yTrueSel.MustDrop()
	xTrueSel.MustDrop()
	yPredSel.MustDrop()
	xPredSel.MustDrop()
	near.MustDrop()

	return retVal
}

// withinRange builds a boolean mask of elements in [-d, d). The lower bound
// is inclusive and the upper bound exclusive.
func withinRange(x *ts.Tensor, d float64) *ts.Tensor {
	lo := x.MustGe(ts.FloatScalar(-d), false)
	hi := x.MustLt(ts.FloatScalar(d), false)
	retVal := lo.MustLogicalAnd(hi, true)
	hi.MustDrop()

	return retVal
}

// ClassificationLoss calculates the pixel classification loss.
//
// yTrue (one-hot) and yPred (probabilities) have shape
// (batch, H, W, nClasses). Depending on the focal flag the loss is either the
// weighted focal loss or the mean weighted categorical cross entropy.
func (l *Losses) ClassificationLoss(yTrue, yPred *ts.Tensor) *ts.Tensor {
	if l.focal {
		return metric.WeightedFocalLoss(yTrue, yPred, l.gamma, l.nClasses)
	}

	ce := metric.WeightedCrossEntropy(yTrue, yPred, l.nClasses)

	return ce.MustMean(gotch.Double, true)
}

// ClassificationLossRegularized calculates the classification loss with two
// additional penalty terms:
//
//   - mu scales an L2 penalty on the difference between the predicted and
//     true number of spots per image. The count is approximated by the spatial
//     mean (instead of the sum) of the spot class channel, which keeps the
//     term independent of the image size.
//   - beta scales an interaction penalty on 4-adjacent pairs of predicted
//     spot probabilities, reducing the tendency to mark several pixels around
//     every true spot.
//
// With mu = 0 and beta = 0 the result equals ClassificationLoss.
func (l *Losses) ClassificationLossRegularized(yTrue, yPred *ts.Tensor) *ts.Tensor {
	baseLoss := l.ClassificationLoss(yTrue, yPred)

	size := yPred.MustSize()
	spatialDims := []int64{1, 2}

	// count mismatch per image, squared, averaged over the batch
	predMean := yPred.MustSelect(3, 1, false).MustMean1(spatialDims, false, gotch.Double, true)
	trueMean := yTrue.MustSelect(3, 1, false).MustMean1(spatialDims, false, gotch.Double, true)
	nDiff := predMean.MustSub(trueMean, true)
	trueMean.MustDrop()
	nLoss := nDiff.MustPow(ts.FloatScalar(2.0), true).MustMean(gotch.Double, true)

	// neighbor interaction over the zero-padded spot channel
	spot := yPred.MustSelect(3, 1, false)
	padded := zeroPad2d(spot)
	spot.MustDrop()
	interLoss := adjacentSum(padded, 1)
	horiz := adjacentSum(padded, 2)
	interLoss = interLoss.MustAdd(horiz, true)
	horiz.MustDrop()
	padded.MustDrop()

	normalizer := float64(size[0] * size[1] * size[2])
	interLoss = interLoss.MustDiv1(ts.FloatScalar(normalizer), true)

	nTerm := nLoss.MustMul1(ts.FloatScalar(l.mu), true)
	interTerm := interLoss.MustMul1(ts.FloatScalar(l.beta), true)

	retVal := baseLoss.MustAdd(nTerm, true).MustAdd(interTerm, true)
	nTerm.MustDrop()
	interTerm.MustDrop()

	return retVal
}

// zeroPad2d surrounds a (batch, H, W) tensor with one row and one column of
// zeros on each spatial side. The zero slices are derived from the input so
// they keep its dtype and device.
func zeroPad2d(x *ts.Tensor) *ts.Tensor {
	row := x.MustNarrow(1, 0, 1, false).MustMul1(ts.FloatScalar(0.0), true)
	rowPadded := ts.MustCat([]ts.Tensor{*row, *x, *row}, 1)
	row.MustDrop()

	col := rowPadded.MustNarrow(2, 0, 1, false).MustMul1(ts.FloatScalar(0.0), true)
	retVal := ts.MustCat([]ts.Tensor{*col, *rowPadded, *col}, 2)
	col.MustDrop()
	rowPadded.MustDrop()

	return retVal
}

// adjacentSum sums the elementwise products of neighboring slices along dim,
// i.e. sum(x[..., 1:, ...] * x[..., :-1, ...]).
func adjacentSum(x *ts.Tensor, dim int64) *ts.Tensor {
	n := x.MustSize()[dim]
	upper := x.MustNarrow(dim, 1, n-1, false)
	lower := x.MustNarrow(dim, 0, n-1, false)
	retVal := upper.MustMul(lower, true).MustSum(gotch.Double, true)
	lower.MustDrop()

	return retVal
}
