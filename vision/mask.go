//go:build gocv
// +build gocv

package vision

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/LdDl/sot-go/sot"
)

// MaskFromMat converts single channel (or color) mat into binary mask
func MaskFromMat(mat gocv.Mat) (*sot.Mask, error) {
	if mat.Empty() {
		return nil, errors.Wrap(sot.ErrEmptyMask, "empty mat")
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "Can't convert mat")
	}
	return sot.MaskFromImage(img), nil
}

// CleanMask keeps only the largest foreground blob of mask. Blobs smaller than minArea are dropped.
// Speckles left by segmentation would otherwise stretch the seed box.
func CleanMask(mask *sot.Mask, minArea float64) (*sot.Mask, error) {
	if mask == nil {
		return nil, errors.Wrap(sot.ErrInvalidInput, "mask is nil")
	}
	binary, err := gocv.NewMatFromBytes(mask.Height, mask.Width, gocv.MatTypeCV8U, scaled(mask.Pix))
	if err != nil {
		return nil, errors.Wrap(err, "Can't build mask mat")
	}
	defer binary.Close()

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	best := -1
	bestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area < minArea || area <= bestArea {
			continue
		}
		best = i
		bestArea = area
	}
	if best < 0 {
		return nil, errors.Wrapf(sot.ErrEmptyMask, "no blob with area >= %.0f", minArea)
	}

	filled := gocv.Zeros(mask.Height, mask.Width, gocv.MatTypeCV8U)
	defer filled.Close()
	gocv.DrawContours(&filled, contours, best, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	out := sot.NewMask(mask.Width, mask.Height)
	data := filled.ToBytes()
	for i, v := range data {
		if v > 0 {
			out.Pix[i] = 1
		}
	}
	return out, nil
}

func scaled(pix []uint8) []byte {
	data := make([]byte, len(pix))
	for i, v := range pix {
		if v > 0 {
			data[i] = 255
		}
	}
	return data
}

// BlobBounds returns bounding rectangle of the largest blob
func BlobBounds(mask *sot.Mask, minArea float64) (image.Rectangle, error) {
	cleaned, err := CleanMask(mask, minArea)
	if err != nil {
		return image.Rectangle{}, err
	}
	xMin, yMin, xMax, yMax, _ := cleaned.ForegroundBounds()
	return image.Rect(xMin, yMin, xMax+1, yMax+1), nil
}
