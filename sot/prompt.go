package sot

import (
	"image"
)

// PromptKind is kind of segmentation prompt
type PromptKind uint16

const (
	// PromptPoints is a set of foreground click points
	PromptPoints PromptKind = iota + 1
	// PromptBox is a box around the target
	PromptBox
	// PromptReference is a reference image of the target
	PromptReference
	// PromptText is a free-form text description of the target
	PromptText
)

func (k PromptKind) String() string {
	switch k {
	case PromptPoints:
		return "points"
	case PromptBox:
		return "box"
	case PromptReference:
		return "reference"
	case PromptText:
		return "text"
	default:
		return "unknown"
	}
}

// Prompt tells segmentation oracle what to segment. Exactly one field must be set.
type Prompt struct {
	Points    []image.Point
	Box       *image.Rectangle
	Reference image.Image
	Text      string
}

// Kind validates prompt and returns its kind
func (p Prompt) Kind() (PromptKind, error) {
	var kind PromptKind
	set := 0
	if len(p.Points) > 0 {
		kind = PromptPoints
		set++
	}
	if p.Box != nil {
		kind = PromptBox
		set++
	}
	if p.Reference != nil {
		kind = PromptReference
		set++
	}
	if p.Text != "" {
		kind = PromptText
		set++
	}
	if set != 1 {
		return 0, ErrInvalidPrompt
	}
	return kind, nil
}
