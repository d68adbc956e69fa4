// Package results tabulates and visualizes detected spot locations.
package results

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sugarme/spotnet/postprocess"
)

// Table builds a dataframe of detected spots with columns `y`, `x`,
// `batch_id` and `probability`. points holds one point list per image of the
// batch; probs mirrors its shape with the spot probability of every point.
func Table(points [][]postprocess.Point, probs [][]float64) (dataframe.DataFrame, error) {
	var (
		ys, xs, ps []float64
		batchIDs   []int
	)

	for i, pts := range points {
		if probs != nil && len(probs[i]) != len(pts) {
			err := fmt.Errorf("results: image %v has %v points but %v probabilities", i, len(pts), len(probs[i]))
			return dataframe.DataFrame{}, err
		}
		for j, pt := range pts {
			ys = append(ys, pt.Y)
			xs = append(xs, pt.X)
			batchIDs = append(batchIDs, i)
			if probs != nil {
				ps = append(ps, probs[i][j])
			} else {
				ps = append(ps, 1.0)
			}
		}
	}

	df := dataframe.New(
		series.New(ys, series.Float, "y"),
		series.New(xs, series.Float, "x"),
		series.New(batchIDs, series.Int, "batch_id"),
		series.New(ps, series.Float, "probability"),
	)

	return df, df.Err
}

// FilterBatch keeps only the rows belonging to the given batch ids.
func FilterBatch(df dataframe.DataFrame, ids []int) dataframe.DataFrame {
	var filters []dataframe.F
	for _, id := range ids {
		filters = append(filters, dataframe.F{
			Colname:    "batch_id",
			Comparator: series.Eq,
			Comparando: id,
		})
	}

	return df.Filter(filters...)
}

// SpotImage accumulates the spots of one image of the batch into an h x w
// count grid. Each spot increments the pixel its coordinates round down to;
// spots outside the grid are skipped.
func SpotImage(df dataframe.DataFrame, h, w, batchID int) [][]float64 {
	sub := FilterBatch(df, []int{batchID})

	grid := make([][]float64, h)
	for i := range grid {
		grid[i] = make([]float64, w)
	}

	if sub.Nrow() == 0 {
		return grid
	}

	ys := sub.Col("y").Float()
	xs := sub.Col("x").Float()
	for i := range ys {
		y, x := int(ys[i]), int(xs[i])
		if y < 0 || y >= h || x < 0 || x >= w {
			continue
		}
		grid[y][x]++
	}

	return grid
}

// ScatterPlot draws the spot locations of one image of the batch. The Y axis
// is inverted so the plot matches image coordinates (row 0 on top).
func ScatterPlot(df dataframe.DataFrame, batchID int) (*plot.Plot, error) {
	sub := FilterBatch(df, []int{batchID})

	p, err := plot.New()
	if err != nil {
		return nil, err
	}
	p.Title.Text = fmt.Sprintf("Detected spots - image %v", batchID)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	// invert the axis itself so tick labels keep the image row values
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}

	xys := make(plotter.XYs, sub.Nrow())
	if sub.Nrow() > 0 {
		ys := sub.Col("y").Float()
		xs := sub.Col("x").Float()
		for i := range xys {
			xys[i].X = xs[i]
			xys[i].Y = ys[i]
		}
	}

	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(s)

	return p, nil
}
