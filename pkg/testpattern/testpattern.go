// Package testpattern generates synthetic clips: numbered frames with a
// moving marker and an optional sine tone.
package testpattern

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/vidplay/pkg/ports"
)

// Options configures a generated clip.
type Options struct {
	Width    int
	Height   int
	FPS      float64
	Duration time.Duration
	Quality  int

	Fragmented bool

	// Audio adds a sine tone track.
	Audio      bool
	SampleRate int
	Channels   int
	ToneHz     float64

	// CorruptFrames lists zero-based frame indices written as undecodable
	// samples instead of pictures.
	CorruptFrames []int
}

// DefaultOptions returns a 2 second 320x240 clip at 30 fps without audio.
func DefaultOptions() Options {
	return Options{
		Width:      320,
		Height:     240,
		FPS:        30,
		Duration:   2 * time.Second,
		Quality:    80,
		Fragmented: true,
		SampleRate: 48000,
		Channels:   2,
		ToneHz:     440,
	}
}

// FrameCount returns the number of frames the clip contains.
func (o Options) FrameCount() int {
	return int(math.Round(o.Duration.Seconds() * o.FPS))
}

// rawFrameEncoder is implemented by encoders that can store a sample
// verbatim.
type rawFrameEncoder interface {
	EncodeRawFrame(data []byte, timestampMs int) error
}

// corruptSample starts like a JPEG but cannot be decoded.
var corruptSample = []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x02, 0xDE, 0xAD, 0xBE, 0xEF}

// ErrRawFramesUnsupported is returned when CorruptFrames is set but the
// encoder cannot store raw samples.
var ErrRawFramesUnsupported = errors.New("encoder cannot write raw frames")

// Generator draws frames with a renderer and feeds them to an encoder.
type Generator struct {
	renderer   ports.Renderer
	encoder    ports.VideoEncoder
	numWorkers int
}

// New creates a new generator.
func New(renderer ports.Renderer, encoder ports.VideoEncoder) *Generator {
	return &Generator{
		renderer:   renderer,
		encoder:    encoder,
		numWorkers: runtime.NumCPU(),
	}
}

// Generate renders the clip and returns the container bytes.
func (g *Generator) Generate(ctx context.Context, opts Options) ([]byte, error) {
	count := opts.FrameCount()
	if count <= 0 {
		return nil, fmt.Errorf("clip has no frames")
	}

	corrupt := make(map[int]bool, len(opts.CorruptFrames))
	for _, i := range opts.CorruptFrames {
		corrupt[i] = true
	}
	raw, canRaw := g.encoder.(rawFrameEncoder)
	if len(corrupt) > 0 && !canRaw {
		return nil, ErrRawFramesUnsupported
	}

	frames := make([]image.Image, count)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.numWorkers)
	for i := 0; i < count; i++ {
		if corrupt[i] {
			continue
		}
		i := i
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			frames[i] = g.Frame(i, opts)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	encOpts := ports.EncoderOptions{Quality: opts.Quality, Fragmented: opts.Fragmented}
	if opts.Audio {
		encOpts.Audio = &ports.AudioOptions{SampleRate: opts.SampleRate, Channels: opts.Channels}
	}
	if err := g.encoder.Begin(opts.Width, opts.Height, opts.FPS, encOpts); err != nil {
		return nil, fmt.Errorf("begin encoder: %w", err)
	}

	for i := 0; i < count; i++ {
		ts := int(math.Round(float64(i) * 1000 / opts.FPS))
		var err error
		if corrupt[i] {
			err = raw.EncodeRawFrame(corruptSample, ts)
		} else {
			err = g.encoder.EncodeFrame(frames[i], ts)
		}
		if err != nil {
			return nil, fmt.Errorf("encode frame %d: %w", i, err)
		}
	}

	if opts.Audio {
		if err := g.encoder.EncodeAudio(Tone(opts)); err != nil {
			return nil, fmt.Errorf("encode audio: %w", err)
		}
	}

	return g.encoder.End()
}

// Frame draws frame index of the clip.
func (g *Generator) Frame(index int, opts Options) image.Image {
	w, h := opts.Width, opts.Height
	count := max(opts.FrameCount(), 1)
	progress := float64(index) / float64(count)

	hue := math.Mod(progress*360, 360)
	canvas := g.renderer.CreateCanvas(w, h, hsv(hue, 0.35, 0.35))

	// Marker travelling left to right once per clip.
	radius := max(h/12, 2)
	x := radius + int(progress*float64(w-2*radius))
	canvas.DrawCircle(x, h/2, radius, color.RGBA{R: 255, G: 220, B: 0, A: 255})

	barHeight := max(h/24, 2)
	canvas.DrawRect(0, h-barHeight, w, barHeight, color.RGBA{R: 40, G: 40, B: 40, A: 255})
	canvas.DrawRect(0, h-barHeight, int(progress*float64(w)), barHeight, color.RGBA{R: 0, G: 160, B: 255, A: 255})

	style := ports.TextStyle{
		FontSize: float64(h) / 8,
		Color:    color.White,
		Align:    ports.AlignCenter,
	}
	canvas.DrawText(fmt.Sprintf("#%d", index), w/2, h/4, style)

	ts := time.Duration(float64(index) / opts.FPS * float64(time.Second))
	style.FontSize = float64(h) / 12
	canvas.DrawText(FormatTimestamp(ts), w/2, h*3/4, style)

	return canvas.ToImage()
}

// Tone returns the interleaved 16-bit samples of a sine tone as long as
// the clip.
func Tone(opts Options) []int16 {
	frames := int(opts.Duration.Seconds() * float64(opts.SampleRate))
	out := make([]int16, frames*opts.Channels)
	for i := 0; i < frames; i++ {
		v := int16(math.Sin(2*math.Pi*opts.ToneHz*float64(i)/float64(opts.SampleRate)) * 0.25 * math.MaxInt16)
		for c := 0; c < opts.Channels; c++ {
			out[i*opts.Channels+c] = v
		}
	}
	return out
}

// FormatTimestamp renders d as mm:ss.mmm.
func FormatTimestamp(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}

func hsv(h, s, v float64) color.RGBA {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return color.RGBA{
		R: uint8((r + m) * 255),
		G: uint8((g + m) * 255),
		B: uint8((b + m) * 255),
		A: 255,
	}
}
