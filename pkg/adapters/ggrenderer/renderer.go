// Package ggrenderer draws test pattern frames and frame dump overlays with
// the gg library.
package ggrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/user/vidplay/pkg/ports"
)

// Renderer implements ports.Renderer.
type Renderer struct{}

// New creates a new Renderer.
func New() *Renderer {
	return &Renderer{}
}

// CreateCanvas creates a canvas cleared to bg.
func (r *Renderer) CreateCanvas(width, height int, bg color.Color) ports.Canvas {
	dc := gg.NewContext(width, height)
	dc.SetColor(bg)
	dc.Clear()
	return &Canvas{dc: dc}
}

// EncodeImage encodes img as JPEG or PNG.
func (r *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case ports.FormatJPEG:
		if quality <= 0 || quality > 100 {
			quality = jpeg.DefaultQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode JPEG: %w", err)
		}
	case ports.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode PNG: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %d", format)
	}

	return buf.Bytes(), nil
}

// Ensure Renderer implements ports.Renderer
var _ ports.Renderer = (*Renderer)(nil)

// Canvas implements ports.Canvas on a gg.Context.
type Canvas struct {
	dc *gg.Context

	// font is the face currently loaded into dc.
	font fontKey
}

type fontKey struct {
	path string
	size float64
}

// DrawImage copies img onto the canvas with its top-left corner at (x, y).
// Decoded frames are opaque, so pixels are replaced rather than blended.
func (c *Canvas) DrawImage(img image.Image, x, y int) {
	dst, ok := c.dc.Image().(*image.RGBA)
	if !ok {
		c.dc.DrawImage(img, x, y)
		return
	}
	b := img.Bounds()
	draw.Draw(dst, image.Rect(x, y, x+b.Dx(), y+b.Dy()), img, b.Min, draw.Src)
}

// DrawRect draws a filled rectangle.
func (c *Canvas) DrawRect(x, y, w, h int, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	c.dc.Fill()
}

// DrawCircle draws a filled circle.
func (c *Canvas) DrawCircle(x, y, radius int, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawCircle(float64(x), float64(y), float64(radius))
	c.dc.Fill()
}

// DrawText draws text with its baseline box centered on y and x at the
// edge selected by the alignment.
func (c *Canvas) DrawText(text string, x, y int, style ports.TextStyle) {
	c.useFont(style)
	c.dc.SetColor(style.Color)

	ax := 0.0
	switch style.Align {
	case ports.AlignCenter:
		ax = 0.5
	case ports.AlignRight:
		ax = 1.0
	}

	c.dc.DrawStringAnchored(text, float64(x), float64(y), ax, 0.5)
}

// MeasureText returns the width and height of the text.
func (c *Canvas) MeasureText(text string, style ports.TextStyle) (width, height float64) {
	c.useFont(style)
	return c.dc.MeasureString(text)
}

// useFont loads the face for style once. A face that fails to load leaves
// the built-in font in place.
func (c *Canvas) useFont(style ports.TextStyle) {
	key := fontKey{path: style.FontPath, size: style.FontSize}
	if key == c.font || key.path == "" {
		return
	}
	if err := c.dc.LoadFontFace(key.path, key.size); err == nil {
		c.font = key
	}
}

// ToImage returns the canvas pixels. The image is shared with the canvas.
func (c *Canvas) ToImage() image.Image {
	return c.dc.Image()
}

// Ensure Canvas implements ports.Canvas
var _ ports.Canvas = (*Canvas)(nil)
