package ggrenderer

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/user/vidplay/pkg/media"
	"github.com/user/vidplay/pkg/ports"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestRenderer_CreateCanvas(t *testing.T) {
	r := New()

	img := r.CreateCanvas(160, 90, color.Black).ToImage()
	if b := img.Bounds(); b.Dx() != 160 || b.Dy() != 90 {
		t.Errorf("expected 160x90, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestRenderer_EncodeImage(t *testing.T) {
	r := New()
	src := solid(48, 32, color.RGBA{R: 255, A: 255})

	data, err := r.EncodeImage(src, ports.FormatJPEG, 0)
	if err != nil {
		t.Fatalf("EncodeImage JPEG failed: %v", err)
	}
	if cfg, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil || cfg.Width != 48 || cfg.Height != 32 {
		t.Errorf("unexpected JPEG config %+v, err %v", cfg, err)
	}

	data, err = r.EncodeImage(src, ports.FormatPNG, 0)
	if err != nil {
		t.Fatalf("EncodeImage PNG failed: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png decode: %v", err)
	}
	if red, _, _, _ := decoded.At(5, 5).RGBA(); red>>8 != 255 {
		t.Error("PNG must be lossless")
	}

	if _, err := r.EncodeImage(src, ports.ImageFormat(9), 0); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestCanvas_DrawShapes(t *testing.T) {
	r := New()
	canvas := r.CreateCanvas(100, 100, color.White)

	canvas.DrawRect(0, 0, 40, 40, color.RGBA{R: 255, A: 255})
	canvas.DrawCircle(70, 70, 10, color.RGBA{B: 255, A: 255})

	img := canvas.ToImage()

	if red, _, _, _ := img.At(20, 20).RGBA(); red>>8 != 255 {
		t.Error("expected red pixel inside rectangle")
	}
	if red, _, blue, _ := img.At(70, 70).RGBA(); red>>8 != 0 || blue>>8 != 255 {
		t.Error("expected blue pixel inside circle")
	}
}

func TestCanvas_DrawFrame(t *testing.T) {
	r := New()
	canvas := r.CreateCanvas(100, 100, color.White)

	frame := media.NewVideoFrame(solid(20, 20, color.RGBA{G: 255, A: 255}), 0, 0)
	canvas.DrawImage(frame.Image(), 10, 10)

	img := canvas.ToImage()
	if _, green, _, _ := img.At(15, 15).RGBA(); green>>8 != 255 {
		t.Error("expected green pixel from drawn frame")
	}
	if _, _, blue, _ := img.At(35, 35).RGBA(); blue>>8 != 255 {
		t.Error("pixels outside the frame must keep the background")
	}
}

func TestCanvas_Text(t *testing.T) {
	r := New()
	canvas := r.CreateCanvas(200, 50, color.White)

	style := ports.TextStyle{
		FontSize: 14,
		FontPath: "/nonexistent/font.ttf",
		Color:    color.Black,
		Align:    ports.AlignRight,
	}

	w, h := canvas.MeasureText("0:01.000 / 0:02.000", style)
	if w <= 0 || h <= 0 {
		t.Errorf("expected positive text size, got %vx%v", w, h)
	}

	// A missing font falls back to the built-in face.
	canvas.DrawText("0:01.000 / 0:02.000", 195, 25, style)
}
