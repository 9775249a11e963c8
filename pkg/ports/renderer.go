package ports

import (
	"image"
	"image/color"
)

// Renderer abstracts the 2D drawing used for test clips and frame dumps.
type Renderer interface {
	// CreateCanvas returns a canvas cleared to bg.
	CreateCanvas(width, height int, bg color.Color) Canvas

	// EncodeImage encodes img for storage. quality applies to JPEG only;
	// values outside (0, 100] select the encoder default.
	EncodeImage(img image.Image, format ImageFormat, quality int) ([]byte, error)
}

// Canvas is a drawing surface for one picture.
type Canvas interface {
	DrawImage(img image.Image, x, y int)
	DrawRect(x, y, w, h int, c color.Color)

	// DrawCircle draws a filled circle centered on (x, y).
	DrawCircle(x, y, radius int, c color.Color)

	// DrawText draws text anchored vertically on y.
	DrawText(text string, x, y int, style TextStyle)

	// MeasureText returns the width and height of the text.
	MeasureText(text string, style TextStyle) (width, height float64)

	ToImage() image.Image
}

// TextStyle defines text rendering properties.
// An empty FontPath selects the built-in bitmap font.
type TextStyle struct {
	FontSize float64
	FontPath string
	Color    color.Color
	Align    TextAlign
}

// TextAlign specifies text alignment.
type TextAlign int

const (
	AlignLeft TextAlign = iota
	AlignCenter
	AlignRight
)

// ImageFormat specifies image encoding format.
type ImageFormat int

const (
	FormatJPEG ImageFormat = iota
	FormatPNG
)

// String returns the file extension of the format.
func (f ImageFormat) String() string {
	switch f {
	case FormatPNG:
		return "png"
	default:
		return "jpg"
	}
}
