package main

import (
	"fmt"
	"log"

	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
	"gonum.org/v1/plot/vg"

	"github.com/sugarme/spotnet/loss"
	"github.com/sugarme/spotnet/postprocess"
	"github.com/sugarme/spotnet/results"
)

// batch of one 8x8 image with two spots, at (2,2) and (5,6)
const (
	imageSize = 8
	nClasses  = 2
)

func syntheticBatch() (regTrue, regPred, clfTrue, clfPred *ts.Tensor) {
	spots := [][2]int64{{2, 2}, {5, 6}}

	reg := make([]float64, imageSize*imageSize*2)
	for i := range reg {
		reg[i] = 10.0 // far outside every neighborhood
	}
	clf := make([]float64, imageSize*imageSize*nClasses)
	for i := 0; i < imageSize*imageSize; i++ {
		clf[i*nClasses] = 1 // background
	}

	for _, s := range spots {
		n := s[0]*imageSize + s[1]
		reg[n*2] = 0.0
		reg[n*2+1] = 0.0
		clf[n*nClasses] = 0
		clf[n*nClasses+1] = 1
	}

	regTrue = ts.MustOfSlice(reg).MustView([]int64{1, imageSize, imageSize, 2}, true)
	clfTrue = ts.MustOfSlice(clf).MustView([]int64{1, imageSize, imageSize, nClasses}, true)

	// perturb the truth a little to play the part of a network output
	regNoise := ts.MustRand([]int64{1, imageSize, imageSize, 2}, gotch.Double, gotch.CPU).
		MustMul1(ts.FloatScalar(0.2), true).
		MustAdd1(ts.FloatScalar(-0.1), true)
	regPred = regTrue.MustAdd(regNoise, false)
	regNoise.MustDrop()

	clfNoise := ts.MustRand([]int64{1, imageSize, imageSize, nClasses}, gotch.Double, gotch.CPU).
		MustMul1(ts.FloatScalar(0.1), true)
	clfPred = clfTrue.MustAdd(clfNoise, false).MustClip(ts.FloatScalar(0.01), ts.FloatScalar(0.99), true)
	clfNoise.MustDrop()

	return regTrue, regPred, clfTrue, clfPred
}

func main() {
	regTrue, regPred, clfTrue, clfPred := syntheticBatch()

	l := loss.NewLosses(2.0, 3.0, nClasses, false, 1, 0.1, 0.1)

	regLoss := l.RegressionLoss(regTrue, regPred)
	clfLoss := l.ClassificationLoss(clfTrue, clfPred)
	regularized := l.ClassificationLossRegularized(clfTrue, clfPred)

	fmt.Printf("regression loss:                %0.6f\n", regLoss.Float64Values()[0])
	fmt.Printf("classification loss:            %0.6f\n", clfLoss.Float64Values()[0])
	fmt.Printf("regularized classification:     %0.6f\n", regularized.Float64Values()[0])

	regLoss.MustDrop()
	clfLoss.MustDrop()
	regularized.MustDrop()

	points := postprocess.PointListMax(clfPred, regPred, 0.5)
	for i, pts := range points {
		fmt.Printf("image %v: %v spots\n", i, len(pts))
		for _, pt := range pts {
			fmt.Printf("  y=%0.2f x=%0.2f\n", pt.Y, pt.X)
		}
	}

	df, err := results.Table(points, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(df)

	p, err := results.ScatterPlot(df, 0)
	if err != nil {
		log.Fatal(err)
	}
	if err := p.Save(4*vg.Inch, 4*vg.Inch, "spots.png"); err != nil {
		log.Fatal(err)
	}

	regTrue.MustDrop()
	regPred.MustDrop()
	clfTrue.MustDrop()
	clfPred.MustDrop()
}
