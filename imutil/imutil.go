// Package imutil converts microscopy images to network input tensors and
// renders detection results back onto images.
package imutil

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/tiff"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	ts "github.com/sugarme/gotch/tensor"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"

	"github.com/sugarme/spotnet/postprocess"
)

// Decode decodes an image from r. ext selects the format by file extension
// (".png", ".jpg", ".tiff", ...).
func Decode(r io.Reader, ext string) (image.Image, error) {
	switch ext {
	case ".png", ".PNG":
		return png.Decode(r)
	case ".jpg", ".jpeg", ".JPG", ".JPEG":
		return jpeg.Decode(r)
	case ".tiff", ".tif", ".TIFF", ".TIF":
		return tiff.Decode(r)
	default:
		err := fmt.Errorf("Unsupported image format: %v\n", ext)
		return nil, err
	}
}

// ToTensor converts an image to a single channel float tensor of shape
// (1, H, W, 1) holding the grayscale intensity of every pixel.
func ToTensor(img image.Image) *ts.Tensor {
	bounds := img.Bounds()
	h := int64(bounds.Dy())
	w := int64(bounds.Dx())

	vals := make([]float64, 0, h*w)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			vals = append(vals, float64(g.Y))
		}
	}

	return ts.MustOfSlice(vals).MustView([]int64{1, h, w, 1}, true)
}

// MinMaxNormalize scales every image of a (batch, H, W, C) tensor to the
// range [0, 1] by its own minimum and maximum. A constant image maps to all
// zeros.
func MinMaxNormalize(x *ts.Tensor) *ts.Tensor {
	size := x.MustSize()
	b := size[0]
	n := int(size[1] * size[2] * size[3])

	vals := x.Float64Values()

	var images []ts.Tensor
	for i := int64(0); i < b; i++ {
		sub := vals[int(i)*n : (int(i)+1)*n]
		min := floats.Min(sub)
		max := floats.Max(sub)

		img := x.MustNarrow(0, i, 1, false)
		if max > min {
			img = img.MustAdd1(ts.FloatScalar(-min), true).MustMul1(ts.FloatScalar(1.0/(max-min)), true)
		} else {
			img = img.MustAdd1(ts.FloatScalar(-min), true)
		}
		images = append(images, *img)
	}

	retVal := ts.MustCat(images, 0)
	for _, img := range images {
		img.MustDrop()
	}

	return retVal
}

// ResizeImage scales an image to w x h with bilinear interpolation, e.g. to
// match the network input size.
func ResizeImage(img image.Image, w, h uint) image.Image {
	return resize.Resize(w, h, img, resize.Bilinear)
}

// MarkPoints renders detected spots on top of an image as crosshairs of the
// given color and returns the composited copy.
func MarkPoints(img image.Image, points []postprocess.Point, clr color.Color) image.Image {
	base := imaging.Clone(img)
	bounds := base.Bounds()

	overlay := image.NewNRGBA(bounds)
	for _, pt := range points {
		drawCross(overlay, int(pt.X+0.5), int(pt.Y+0.5), 2, clr)
	}

	draw.Draw(base, bounds, overlay, bounds.Min, draw.Over)

	return base
}

func drawCross(img *image.NRGBA, x, y, arm int, clr color.Color) {
	for d := -arm; d <= arm; d++ {
		setIfInside(img, x+d, y, clr)
		setIfInside(img, x, y+d, clr)
	}
}

func setIfInside(img *image.NRGBA, x, y int, clr color.Color) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.Set(x, y, clr)
	}
}
