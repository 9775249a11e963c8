// Package framedump saves presented frames with a timestamp bar for
// inspecting playback offline.
package framedump

import (
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"
	"time"

	"github.com/user/vidplay/pkg/media"
	"github.com/user/vidplay/pkg/ports"
)

// Theme holds the colors of the timestamp bar.
type Theme struct {
	Background       color.Color
	ProgressBgColor  color.Color
	ProgressBarColor color.Color
	TextColor        color.Color
}

// DefaultTheme returns the default bar colors.
func DefaultTheme() Theme {
	return Theme{
		Background:       color.RGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xFF},
		ProgressBgColor:  color.RGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xFF},
		ProgressBarColor: color.RGBA{R: 0xE0, G: 0x40, B: 0x30, A: 0xFF},
		TextColor:        color.White,
	}
}

// Options configures a Dumper.
type Options struct {
	// Every saves one frame out of Every presented frames. Values below 1
	// save every frame.
	Every int

	// Duration is the stream duration used for the progress bar; zero
	// hides the bar fill.
	Duration time.Duration

	// BarHeight is the height of the bar below the frame; zero disables
	// the bar.
	BarHeight int

	Theme      Theme
	NumWorkers int
	QueueSize  int
}

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{
		Every:     1,
		BarHeight: 20,
		Theme:     DefaultTheme(),
		QueueSize: 16,
	}
}

// Dumper composes frames on background workers and hands them to a
// DebugSink. Submit never blocks: frames arriving while the queue is full
// are skipped.
type Dumper struct {
	renderer ports.Renderer
	sink     ports.DebugSink
	logger   ports.Logger
	opts     Options

	jobs chan job
	wg   sync.WaitGroup

	mu      sync.Mutex
	seen    int
	saved   int
	skipped int
	err     error
}

type job struct {
	index    int
	frame    *media.VideoFrame
	position time.Duration
}

// New starts a dumper. Close must be called to flush pending frames.
func New(renderer ports.Renderer, sink ports.DebugSink, logger ports.Logger, opts Options) *Dumper {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = runtime.NumCPU()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.NumWorkers
	}
	if opts.Every < 1 {
		opts.Every = 1
	}

	d := &Dumper{
		renderer: renderer,
		sink:     sink,
		logger:   logger.WithComponent("framedump"),
		opts:     opts,
		jobs:     make(chan job, opts.QueueSize),
	}
	for w := 0; w < opts.NumWorkers; w++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit queues a presented frame. position is the playback clock at
// presentation.
func (d *Dumper) Submit(frame *media.VideoFrame, position time.Duration) {
	if frame == nil || !d.sink.Enabled() {
		return
	}

	d.mu.Lock()
	index := d.seen
	d.seen++
	d.mu.Unlock()
	if index%d.opts.Every != 0 {
		return
	}

	select {
	case d.jobs <- job{index: index, frame: frame, position: position}:
	default:
		d.mu.Lock()
		d.skipped++
		d.mu.Unlock()
	}
}

// Close waits for queued frames and returns the first save error.
func (d *Dumper) Close() error {
	close(d.jobs)
	d.wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.skipped > 0 {
		d.logger.Warn("Skipped %d frames while saving", d.skipped)
	}
	d.logger.Debug("Saved %d frames", d.saved)
	return d.err
}

// Saved returns the number of frames written to the sink.
func (d *Dumper) Saved() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saved
}

func (d *Dumper) worker() {
	defer d.wg.Done()

	for j := range d.jobs {
		img := d.Compose(j.frame, j.position)
		err := d.sink.SaveFrame(j.index, img)

		d.mu.Lock()
		if err != nil {
			if d.err == nil {
				d.err = fmt.Errorf("save frame %d: %w", j.index, err)
			}
		} else {
			d.saved++
		}
		d.mu.Unlock()
	}
}

// Compose draws frame above a bar carrying the presentation timestamp
// and, with a known duration, the playback progress.
func (d *Dumper) Compose(frame *media.VideoFrame, position time.Duration) image.Image {
	barHeight := d.opts.BarHeight
	if barHeight <= 0 {
		return frame.Image()
	}

	width := frame.Width
	// Round up to an even height like the encoders expect.
	height := (frame.Height + barHeight + 1) / 2 * 2
	theme := d.opts.Theme

	canvas := d.renderer.CreateCanvas(width, height, theme.Background)
	canvas.DrawImage(frame.Image(), 0, 0)

	barY := frame.Height
	if d.opts.Duration > 0 {
		progress := min(float64(position)/float64(d.opts.Duration), 1)
		canvas.DrawRect(0, barY, width, barHeight, theme.ProgressBgColor)
		if fill := int(float64(width) * progress); fill > 0 {
			canvas.DrawRect(0, barY, fill, barHeight, theme.ProgressBarColor)
		}
	}

	text := FormatTimestamp(frame.PTS)
	if d.opts.Duration > 0 {
		text += " / " + FormatTimestamp(d.opts.Duration)
	}
	style := ports.TextStyle{
		FontSize: float64(barHeight) * 0.7,
		Color:    theme.TextColor,
		Align:    ports.AlignRight,
	}
	_, textHeight := canvas.MeasureText(text, style)
	offset := (float64(barHeight) - textHeight) / 2
	canvas.DrawText(text, width-4, barY+int(offset+textHeight/2), style)

	return canvas.ToImage()
}

// FormatTimestamp formats d as m:ss.mmm.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}
