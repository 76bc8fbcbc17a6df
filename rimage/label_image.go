package rimage

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/multierr"
)

// LabelGrid is a grid of integer labels, 0 meaning unlabeled.
type LabelGrid interface {
	Rows() int
	Cols() int
	At(row, col int) int
	MaxLabel() int
}

// unlabeledColor is used for cells with label 0.
var unlabeledColor = color.NRGBA{0, 0, 0, 255}

// LabelsToImage renders every grid cell as a scale x scale square, one distinct colour per
// label. Labels are coloured from a palette generated for the largest label so that
// rendering the same grid twice gives the same picture.
func LabelsToImage(labels LabelGrid, scale int) *image.NRGBA {
	if scale < 1 {
		scale = 1
	}
	img := image.NewNRGBA(image.Rect(0, 0, labels.Cols()*scale, labels.Rows()*scale))
	palette := labelPalette(labels.MaxLabel())
	for row := 0; row < labels.Rows(); row++ {
		for col := 0; col < labels.Cols(); col++ {
			c := unlabeledColor
			if label := labels.At(row, col); label > 0 {
				c = palette[label-1]
			}
			for y := row * scale; y < (row+1)*scale; y++ {
				for x := col * scale; x < (col+1)*scale; x++ {
					img.SetNRGBA(x, y, c)
				}
			}
		}
	}
	return img
}

func labelPalette(n int) []color.NRGBA {
	if n <= 0 {
		return nil
	}
	palette := make([]color.NRGBA, n)
	for i := range palette {
		// evenly spaced hues, fixed saturation and value: deterministic and distinct
		hue := 360. * float64(i) / float64(n)
		r, g, b := colorful.Hsv(hue, 0.8, 0.95).Clamped().RGB255()
		palette[i] = color.NRGBA{r, g, b, 255}
	}
	return palette
}

// WriteLabelsToFile renders the labels with LabelsToImage and writes them as a PNG.
func WriteLabelsToFile(labels LabelGrid, scale int, fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return png.Encode(f, LabelsToImage(labels, scale))
}
