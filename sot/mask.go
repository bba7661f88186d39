package sot

import (
	"image"
	"image/color"
)

// Mask is a binary segmentation mask. Any non-zero value is foreground.
type Mask struct {
	Width  int
	Height int
	// Row-major, len == Width*Height
	Pix []uint8
}

// NewMask creates all-background mask
func NewMask(width, height int) *Mask {
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// MaskFromImage converts image to mask: every pixel with non-zero luminance becomes foreground
func MaskFromImage(img image.Image) *Mask {
	b := img.Bounds()
	mask := NewMask(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if gray.Y > 0 {
				mask.Pix[(y-b.Min.Y)*mask.Width+(x-b.Min.X)] = 1
			}
		}
	}
	return mask
}

// At returns mask value at given position; out of bounds positions are background
func (m *Mask) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return m.Pix[y*m.Width+x]
}

// Set sets mask value at given position
func (m *Mask) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Fill marks rectangle (inclusive min, exclusive max) as foreground
func (m *Mask) Fill(rect image.Rectangle) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			m.Set(x, y, 1)
		}
	}
}

// ForegroundBounds returns extreme foreground coordinates (inclusive). ok is false for an empty mask.
func (m *Mask) ForegroundBounds() (xMin, yMin, xMax, yMax int, ok bool) {
	xMin, yMin = m.Width, m.Height
	xMax, yMax = -1, -1
	for y := 0; y < m.Height; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			if v == 0 {
				continue
			}
			if x < xMin {
				xMin = x
			}
			if x > xMax {
				xMax = x
			}
			if y < yMin {
				yMin = y
			}
			if y > yMax {
				yMax = y
			}
		}
	}
	if xMax < 0 {
		return 0, 0, 0, 0, false
	}
	return xMin, yMin, xMax, yMax, true
}
