package metric_test

import (
	"math"
	"testing"

	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/spotnet/metric"
)

func TestWeightedCrossEntropy(t *testing.T) {
	// two pixels, both spot class, uniform predictions
	yTrue := ts.MustOfSlice([]float64{0, 1, 0, 1}).MustView([]int64{1, 1, 2, 2}, true)
	yPred := ts.MustOfSlice([]float64{0.5, 0.5, 0.5, 0.5}).MustView([]int64{1, 1, 2, 2}, true)

	got := metric.WeightedCrossEntropy(yTrue, yPred, 2)

	size := got.MustSize()
	if len(size) != 3 || size[0] != 1 || size[1] != 1 || size[2] != 2 {
		t.Errorf("per-pixel map expected, got shape %v", size)
	}

	// total = 2, spot count = 2 -> spot weight = 2 / (2 * (2+1)) = 1/3
	want := -1.0 / 3.0 * math.Log(0.5)
	for i, v := range got.Float64Values() {
		if math.Abs(v-want) > 1e-6 {
			t.Errorf("pixel %v: got %v; want %v", i, v, want)
		}
	}

	yTrue.MustDrop()
	yPred.MustDrop()
	got.MustDrop()
}

func TestWeightedCrossEntropyNormalizesPred(t *testing.T) {
	yTrue := ts.MustOfSlice([]float64{0, 1}).MustView([]int64{1, 1, 1, 2}, true)
	// per-pixel probabilities not summing to one; must be rescaled first
	yPred := ts.MustOfSlice([]float64{1, 1}).MustView([]int64{1, 1, 1, 2}, true)

	got := metric.WeightedCrossEntropy(yTrue, yPred, 2)

	// rescaled to 0.5; total = 1, spot count = 1 -> weight = 1/4
	want := -1.0 / 4.0 * math.Log(0.5)
	if v := got.Float64Values()[0]; math.Abs(v-want) > 1e-6 {
		t.Errorf("got %v; want %v", v, want)
	}

	yTrue.MustDrop()
	yPred.MustDrop()
	got.MustDrop()
}

func TestWeightedFocalLoss(t *testing.T) {
	yTrue := ts.MustOfSlice([]float64{0, 1, 0, 1}).MustView([]int64{1, 1, 2, 2}, true)
	yPred := ts.MustOfSlice([]float64{0.5, 0.5, 0.5, 0.5}).MustView([]int64{1, 1, 2, 2}, true)

	got := metric.WeightedFocalLoss(yTrue, yPred, 2.0, 2)

	if size := got.MustSize(); len(size) != 0 {
		t.Errorf("scalar expected, got shape %v", size)
	}

	// per pixel: 1/3 * (1-0.5)^2 * -log(0.5), summed over two pixels
	want := 2.0 * (1.0 / 3.0) * 0.25 * -math.Log(0.5)
	if v := got.Float64Values()[0]; math.Abs(v-want) > 1e-6 {
		t.Errorf("got %v; want %v", v, want)
	}

	yTrue.MustDrop()
	yPred.MustDrop()
	got.MustDrop()
}

func TestWeightedFocalLossDownweightsEasy(t *testing.T) {
	yTrue := ts.MustOfSlice([]float64{0, 1}).MustView([]int64{1, 1, 1, 2}, true)
	easy := ts.MustOfSlice([]float64{0.05, 0.95}).MustView([]int64{1, 1, 1, 2}, true)
	hard := ts.MustOfSlice([]float64{0.6, 0.4}).MustView([]int64{1, 1, 1, 2}, true)

	easyLoss := metric.WeightedFocalLoss(yTrue, easy, 2.0, 2)
	hardLoss := metric.WeightedFocalLoss(yTrue, hard, 2.0, 2)

	if easyLoss.Float64Values()[0] >= hardLoss.Float64Values()[0] {
		t.Errorf("easy example not down-weighted: easy %v, hard %v",
			easyLoss.Float64Values()[0], hardLoss.Float64Values()[0])
	}

	yTrue.MustDrop()
	easy.MustDrop()
	hard.MustDrop()
	easyLoss.MustDrop()
	hardLoss.MustDrop()
}
