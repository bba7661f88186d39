package sot

import (
	"fmt"
	"image"
	"math"
)

// Rectangle is a sub-pixel axis-aligned rectangle (top-left corner + size)
type Rectangle struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// NewRect creates rectangle from top-left corner and size
func NewRect(x, y, width, height float64) Rectangle {
	return Rectangle{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

// NewRectFrom converts integer rectangle
func NewRectFrom(rect image.Rectangle) Rectangle {
	return NewRect(float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()))
}

// Center returns center of the rectangle
func (r Rectangle) Center() Point {
	return NewPoint(r.X+r.Width/2.0, r.Y+r.Height/2.0)
}

type Point struct {
	X float64
	Y float64
}

// NewPoint creates point
func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

// Size is width and height of the target
type Size struct {
	Width  float64
	Height float64
}

func NewSize(width, height float64) Size {
	return Size{
		Width:  width,
		Height: height,
	}
}

// Box is an integer pixel bounding box: top-left corner, width and height.
type Box struct {
	X int
	Y int
	W int
	H int
}

// RectFromCenter builds rectangle from center position and target size
func RectFromCenter(center Point, size Size) Rectangle {
	return Rectangle{
		X:      center.X - size.Width/2.0,
		Y:      center.Y - size.Height/2.0,
		Width:  size.Width,
		Height: size.Height,
	}
}

// ToBox truncates rectangle to integer pixel box. Truncation is toward zero for every component.
func (r Rectangle) ToBox() Box {
	return Box{
		X: int(r.X),
		Y: int(r.Y),
		W: int(r.Width),
		H: int(r.Height),
	}
}

// Rect returns box as float rectangle
func (b Box) Rect() Rectangle {
	return NewRect(float64(b.X), float64(b.Y), float64(b.W), float64(b.H))
}

// ImageRect returns box as image.Rectangle
func (b Box) ImageRect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// IsZero reports whether box is the all-zero "no target" value
func (b Box) IsZero() bool {
	return b == Box{}
}

func (b Box) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", b.X, b.Y, b.W, b.H)
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(float64(p1.X-p2.X), 2) + math.Pow(float64(p1.Y-p2.Y), 2))
}
