package imageset

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/visionforge/visionforge/internal/technique"
)

const (
	strokeWidth     = 3.0
	arrowHeadLength = 20.0

	brushRadius = 1
)

var namedColors = map[string]color.RGBA{
	"red":    {R: 0xff, A: 0xff},
	"green":  {G: 0x80, A: 0xff},
	"lime":   {G: 0xff, A: 0xff},
	"blue":   {B: 0xff, A: 0xff},
	"yellow": {R: 0xff, G: 0xff, A: 0xff},
	"orange": {R: 0xff, G: 0xa5, A: 0xff},
	"purple": {R: 0x80, B: 0x80, A: 0xff},
	"white":  {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	"black":  {A: 0xff},
}

// ParseColor accepts a CSS color name from a small set or #rgb / #rrggbb.
func ParseColor(value string) (color.RGBA, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if c, ok := namedColors[v]; ok {
		return c, nil
	}
	hex, ok := strings.CutPrefix(v, "#")
	if !ok {
		return color.RGBA{}, fmt.Errorf("unknown color %q", value)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("unknown color %q", value)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("unknown color %q", value)
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, nil
}

// ApplyMarkup draws markups over a copy of src. Coordinates are pixels.
func ApplyMarkup(src image.Image, markups []technique.Markup) (*image.RGBA, error) {
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)

	for i, m := range markups {
		var err error
		switch v := m.(type) {
		case nil:
			err = errors.New("markup is empty")
		case technique.Circle:
			err = drawCircle(dst, v)
		case *technique.Circle:
			err = drawCircle(dst, *v)
		case technique.Rectangle:
			err = drawRectangle(dst, v)
		case *technique.Rectangle:
			err = drawRectangle(dst, *v)
		case technique.Arrow:
			err = drawArrow(dst, v)
		case *technique.Arrow:
			err = drawArrow(dst, *v)
		case technique.TextLabel:
			err = drawText(dst, v)
		case *technique.TextLabel:
			err = drawText(dst, *v)
		default:
			err = fmt.Errorf("unsupported markup %T", m)
		}
		if err != nil {
			return nil, fmt.Errorf("markup %d: %w", i+1, err)
		}
	}
	return dst, nil
}

func drawCircle(dst *image.RGBA, c technique.Circle) error {
	col, err := ParseColor(c.Color)
	if err != nil {
		return err
	}
	if c.Radius <= 0 {
		return nil
	}
	half := strokeWidth / 2
	minX, maxX := int(c.X-c.Radius-half), int(c.X+c.Radius+half)+1
	minY, maxY := int(c.Y-c.Radius-half), int(c.Y+c.Radius+half)+1
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			d := math.Hypot(float64(x)-c.X, float64(y)-c.Y)
			if math.Abs(d-c.Radius) <= half {
				setPixel(dst, x, y, col)
			}
		}
	}
	return nil
}

func drawRectangle(dst *image.RGBA, r technique.Rectangle) error {
	col, err := ParseColor(r.Color)
	if err != nil {
		return err
	}
	if r.Width <= 0 || r.Height <= 0 {
		return nil
	}
	x0, y0 := r.X, r.Y
	x1, y1 := r.X+r.Width, r.Y+r.Height
	drawLine(dst, x0, y0, x1, y0, col)
	drawLine(dst, x1, y0, x1, y1, col)
	drawLine(dst, x1, y1, x0, y1, col)
	drawLine(dst, x0, y1, x0, y0, col)
	return nil
}

func drawArrow(dst *image.RGBA, a technique.Arrow) error {
	col, err := ParseColor(a.Color)
	if err != nil {
		return err
	}
	drawLine(dst, a.StartX, a.StartY, a.EndX, a.EndY, col)
	angle := math.Atan2(a.EndY-a.StartY, a.EndX-a.StartX)
	for _, side := range []float64{-math.Pi / 6, math.Pi / 6} {
		hx := a.EndX - arrowHeadLength*math.Cos(angle+side)
		hy := a.EndY - arrowHeadLength*math.Sin(angle+side)
		drawLine(dst, a.EndX, a.EndY, hx, hy, col)
	}
	return nil
}

func drawText(dst *image.RGBA, t technique.TextLabel) error {
	col, err := ParseColor(t.Color)
	if err != nil {
		return err
	}
	if strings.TrimSpace(t.Text) == "" {
		return nil
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(math.Round(t.X)), int(math.Round(t.Y))),
	}
	d.DrawString(t.Text)
	return nil
}

// drawLine steps along the segment and stamps a square brush.
func drawLine(dst *image.RGBA, x0, y0, x1, y1 float64, col color.RGBA) {
	steps := int(math.Ceil(math.Max(math.Abs(x1-x0), math.Abs(y1-y0))))
	steps = max(steps, 1)
	r := brushRadius
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		cx := int(math.Round(x0 + (x1-x0)*t))
		cy := int(math.Round(y0 + (y1-y0)*t))
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				setPixel(dst, cx+dx, cy+dy, col)
			}
		}
	}
}

func setPixel(dst *image.RGBA, x, y int, col color.RGBA) {
	if image.Pt(x, y).In(dst.Bounds()) {
		dst.SetRGBA(x, y, col)
	}
}
