// Package imageset loads, validates and prepares images for vision models.
//
// Images live in an explicit Library owned by the caller. Preparation
// downscales oversized images with golang.org/x/image/draw and produces
// base64 data URLs ready for a chat-completions request.
package imageset

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/visionforge/visionforge/internal/ailink/encode"
)

const (
	DefaultMaxDimension = 2048
	DefaultMaxBytes     = 10 * 1024 * 1024
	DefaultJPEGQuality  = 90
)

var (
	ErrUnsupportedType = errors.New("File type not supported. Please upload JPG, PNG, WebP, or GIF images.")
	ErrTooLarge        = errors.New("File is too large (max 10MB). Please compress or resize the image.")
)

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Options controls preparation. Zero values fall back to the defaults.
type Options struct {
	MaxDimension int `mapstructure:"max_dimension"`
	MaxBytes     int `mapstructure:"max_bytes"`
	JPEGQuality  int `mapstructure:"jpeg_quality"`
}

func (o Options) withDefaults() Options {
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.JPEGQuality < 1 || o.JPEGQuality > 100 {
		o.JPEGQuality = DefaultJPEGQuality
	}
	return o
}

// Image is a prepared image.
type Image struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	// OriginalSize is the byte size before preparation.
	OriginalSize int    `json:"original_size"`
	Resized      bool   `json:"resized"`
	Data         []byte `json:"-"`
}

// DataURL returns the image as a base64 data URL.
func (img *Image) DataURL() string {
	return encode.DataURL(img.MIMEType, img.Data)
}

// DetectType sniffs the MIME type of data and checks it is supported.
func DetectType(data []byte) (string, error) {
	mimeType := http.DetectContentType(data)
	if !supportedTypes[mimeType] {
		return mimeType, fmt.Errorf("%w (got %s)", ErrUnsupportedType, mimeType)
	}
	return mimeType, nil
}

// Prepare validates data and downscales it when either side exceeds
// MaxDimension. Images that already fit are returned unchanged.
func Prepare(name string, data []byte, opts Options) (*Image, error) {
	opts = opts.withDefaults()
	if len(data) > opts.MaxBytes {
		return nil, fmt.Errorf("%w (%s is %.2fMB)", ErrTooLarge, name, float64(len(data))/1024/1024)
	}
	mimeType, err := DetectType(data)
	if err != nil {
		return nil, err
	}

	cfg, err := decodeConfig(mimeType, data)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("invalid image dimensions")
	}

	out := &Image{
		Name:         name,
		MIMEType:     mimeType,
		Width:        cfg.Width,
		Height:       cfg.Height,
		OriginalSize: len(data),
		Data:         data,
	}
	if max(cfg.Width, cfg.Height) <= opts.MaxDimension {
		return out, nil
	}

	src, err := decode(mimeType, data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	dst := Downscale(src, opts.MaxDimension)

	// PNG and GIF keep transparency as PNG; everything else becomes JPEG.
	format := "jpeg"
	if mimeType == "image/png" || mimeType == "image/gif" {
		format = "png"
	}
	var buf bytes.Buffer
	if err := Encode(&buf, dst, format, opts.JPEGQuality); err != nil {
		return nil, err
	}

	out.MIMEType = "image/" + format
	out.Width = dst.Bounds().Dx()
	out.Height = dst.Bounds().Dy()
	out.Data = buf.Bytes()
	out.Resized = true
	return out, nil
}

// PrepareFile reads path and prepares it.
func PrepareFile(path string, opts Options) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Prepare(filepath.Base(path), data, opts)
}

// Downscale fits src inside a maxSize square, keeping its aspect ratio.
func Downscale(src image.Image, maxSize int) image.Image {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	scale := float64(maxSize) / float64(max(width, height))
	if scale >= 1 {
		return src
	}
	newW := max(int(float64(width)*scale), 1)
	newH := max(int(float64(height)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

// Encode writes img as png or jpeg.
func Encode(w io.Writer, img image.Image, format string, jpegQuality int) error {
	switch strings.ToLower(format) {
	case "png":
		return png.Encode(w, img)
	case "jpeg", "jpg", "":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: min(max(jpegQuality, 1), 100)})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// FormatForPath picks an output format from a file extension.
func FormatForPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return "png"
	}
	return "jpeg"
}

func decodeConfig(mimeType string, data []byte) (image.Config, error) {
	r := bytes.NewReader(data)
	switch mimeType {
	case "image/jpeg":
		return jpeg.DecodeConfig(r)
	case "image/png":
		return png.DecodeConfig(r)
	case "image/gif":
		return gif.DecodeConfig(r)
	case "image/webp":
		return webp.DecodeConfig(r)
	}
	return image.Config{}, ErrUnsupportedType
}

func decode(mimeType string, data []byte) (image.Image, error) {
	r := bytes.NewReader(data)
	switch mimeType {
	case "image/jpeg":
		return jpeg.Decode(r)
	case "image/png":
		return png.Decode(r)
	case "image/gif":
		return gif.Decode(r)
	case "image/webp":
		return webp.Decode(r)
	}
	return nil, ErrUnsupportedType
}

// Decode decodes a supported image.
func Decode(data []byte) (image.Image, error) {
	mimeType, err := DetectType(data)
	if err != nil {
		return nil, err
	}
	return decode(mimeType, data)
}
