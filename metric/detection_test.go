package metric_test

import (
	"math"
	"testing"

	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/spotnet/metric"
)

func TestPrecisionRecall(t *testing.T) {
	// predicted positives: 3 (indices 0, 1, 2); true positives among them: 2
	prob := ts.MustOfSlice([]float64{0.9, 0.8, 0.7, 0.1, 0.2, 0.1}).MustView([]int64{1, 2, 3}, true)
	target := ts.MustOfSlice([]float64{1, 1, 0, 1, 0, 0}).MustView([]int64{1, 2, 3}, true)

	precision := metric.Precision(prob, target, 0.5)
	if math.Abs(precision-2.0/3.0) > 1e-9 {
		t.Errorf("precision: got %v; want %v", precision, 2.0/3.0)
	}

	recall := metric.Recall(prob, target, 0.5)
	if math.Abs(recall-2.0/3.0) > 1e-9 {
		t.Errorf("recall: got %v; want %v", recall, 2.0/3.0)
	}

	f1 := metric.F1(prob, target, 0.5)
	if math.Abs(f1-2.0/3.0) > 1e-9 {
		t.Errorf("f1: got %v; want %v", f1, 2.0/3.0)
	}

	prob.MustDrop()
	target.MustDrop()
}

func TestRecallHighThreshold(t *testing.T) {
	// the one-hot target keeps its positives no matter how strict the
	// prediction threshold is
	prob := ts.MustOfSlice([]float64{0.99, 0.2, 0.1}).MustView([]int64{1, 1, 3}, true)
	target := ts.MustOfSlice([]float64{1, 1, 0}).MustView([]int64{1, 1, 3}, true)

	recall := metric.Recall(prob, target, 0.98)
	if math.Abs(recall-0.5) > 1e-9 {
		t.Errorf("recall: got %v; want 0.5", recall)
	}

	prob.MustDrop()
	target.MustDrop()

	// a threshold of one (reachable by overshooting, unnormalized scores)
	// must not erase the one-hot ground truth
	over := ts.MustOfSlice([]float64{1.2, 0.3}).MustView([]int64{1, 1, 2}, true)
	hot := ts.MustOfSlice([]float64{1, 0}).MustView([]int64{1, 1, 2}, true)

	if r := metric.Recall(over, hot, 1.0); math.Abs(r-1.0) > 1e-9 {
		t.Errorf("recall at threshold 1: got %v; want 1", r)
	}
	if p := metric.Precision(over, hot, 1.0); math.Abs(p-1.0) > 1e-9 {
		t.Errorf("precision at threshold 1: got %v; want 1", p)
	}

	over.MustDrop()
	hot.MustDrop()
}

func TestPrecisionNoPositives(t *testing.T) {
	prob := ts.MustOfSlice([]float64{0.1, 0.2, 0.3}).MustView([]int64{1, 1, 3}, true)
	target := ts.MustOfSlice([]float64{1, 0, 0}).MustView([]int64{1, 1, 3}, true)

	if p := metric.Precision(prob, target, 0.5); p != 0 {
		t.Errorf("precision with no predicted positives: got %v; want 0", p)
	}
	if f := metric.F1(prob, target, 0.5); f != 0 {
		t.Errorf("f1 with no predicted positives: got %v; want 0", f)
	}

	prob.MustDrop()
	target.MustDrop()
}
