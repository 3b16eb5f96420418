package technique

import (
	"fmt"
	"math"
	"strconv"
)

// MarkupType discriminates markup variants.
type MarkupType string

const (
	MarkupCircle    MarkupType = "circle"
	MarkupRectangle MarkupType = "rectangle"
	MarkupArrow     MarkupType = "arrow"
	MarkupText      MarkupType = "text"
)

// Markup is a region annotation drawn on an image. The variant set is closed.
type Markup interface {
	Type() MarkupType
	// Describe renders the one-sentence description sent to the model.
	Describe() string

	markup()
}

// Circle marks a round region.
type Circle struct {
	ID     string  `json:"id,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Color  string  `json:"color"`
}

// Rectangle marks a box anchored at its top-left corner.
type Rectangle struct {
	ID     string  `json:"id,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color"`
}

// Arrow points from a start position to an end position.
type Arrow struct {
	ID     string  `json:"id,omitempty"`
	StartX float64 `json:"x"`
	StartY float64 `json:"y"`
	EndX   float64 `json:"endX"`
	EndY   float64 `json:"endY"`
	Color  string  `json:"color"`
}

// TextLabel places a literal label on the image.
type TextLabel struct {
	ID    string  `json:"id,omitempty"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Color string  `json:"color"`
}

func (Circle) Type() MarkupType    { return MarkupCircle }
func (Rectangle) Type() MarkupType { return MarkupRectangle }
func (Arrow) Type() MarkupType     { return MarkupArrow }
func (TextLabel) Type() MarkupType { return MarkupText }

func (Circle) markup()    {}
func (Rectangle) markup() {}
func (Arrow) markup()     {}
func (TextLabel) markup() {}

func (m Circle) Describe() string {
	return fmt.Sprintf("A %s circle at position %s with radius %s", m.Color, position(m.X, m.Y), number(m.Radius))
}

func (m Rectangle) Describe() string {
	return fmt.Sprintf("A %s rectangle at position %s with dimensions %s×%s", m.Color, position(m.X, m.Y), number(m.Width), number(m.Height))
}

func (m Arrow) Describe() string {
	return fmt.Sprintf("A %s arrow pointing from %s to %s", m.Color, position(m.StartX, m.StartY), position(m.EndX, m.EndY))
}

func (m TextLabel) Describe() string {
	return fmt.Sprintf("Text label \"%s\" at position %s", m.Text, position(m.X, m.Y))
}

// DescribeMarkup renders the description for m.
func DescribeMarkup(m Markup) string {
	if m == nil {
		return ""
	}
	return m.Describe()
}

func position(x, y float64) string {
	return "(" + strconv.FormatFloat(roundHalfUp(x), 'f', 0, 64) + ", " + strconv.FormatFloat(roundHalfUp(y), 'f', 0, 64) + ")"
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(v float64) float64 {
	r := math.Floor(v + 0.5)
	if r == 0 {
		return 0
	}
	return r
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
