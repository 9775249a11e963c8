// Package mp4writer writes still images and PCM audio into an MP4 container
// using Motion JPEG video and little-endian 16-bit PCM audio.
package mp4writer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/user/vidplay/pkg/ports"
)

// DefaultQuality is the JPEG quality used when EncoderOptions.Quality is 0.
const DefaultQuality = 85

// audioBlockFrames is the number of PCM frames stored per audio sample.
const audioBlockFrames = 1024

var (
	// ErrNoFrames is returned by End when no frame was encoded.
	ErrNoFrames = errors.New("no frames to encode")

	// ErrNotStarted is returned when the writer is used before Begin.
	ErrNotStarted = errors.New("writer not started")

	// ErrNoAudioTrack is returned by EncodeAudio without an audio track.
	ErrNoAudioTrack = errors.New("audio track not configured")
)

// Option configures a Writer.
type Option func(*Writer)

// WithFragmentDuration sets the media duration covered by one fragment in
// fragmented output.
func WithFragmentDuration(d time.Duration) Option {
	return func(w *Writer) {
		w.fragmentDuration = d
	}
}

// WithMoovAtEnd places the moov box after the media data in progressive
// output.
func WithMoovAtEnd() Option {
	return func(w *Writer) {
		w.moovAtEnd = true
	}
}

// Writer implements ports.VideoEncoder producing MJPEG MP4 files.
type Writer struct {
	mu sync.Mutex

	started bool
	width   int
	height  int
	fps     float64
	options ports.EncoderOptions

	fragmentDuration time.Duration
	moovAtEnd        bool

	frames []videoSample
	audio  []int16
}

type videoSample struct {
	data        []byte
	timestampMs int
}

// Ensure Writer implements ports.VideoEncoder.
var _ ports.VideoEncoder = (*Writer)(nil)

// New creates a new writer.
func New(opts ...Option) *Writer {
	w := &Writer{fragmentDuration: time.Second}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Begin initializes the writer.
func (w *Writer) Begin(width, height int, fps float64, opts ports.EncoderOptions) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if width <= 0 || height <= 0 || width > 0xFFFF || height > 0xFFFF {
		return fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if fps <= 0 {
		return fmt.Errorf("invalid frame rate %v", fps)
	}
	if opts.Audio != nil && (opts.Audio.SampleRate <= 0 || opts.Audio.SampleRate > 0xFFFF || opts.Audio.Channels <= 0) {
		return fmt.Errorf("invalid audio format %d Hz x %d", opts.Audio.SampleRate, opts.Audio.Channels)
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}

	w.started = true
	w.width = width
	w.height = height
	w.fps = fps
	w.options = opts
	w.frames = nil
	w.audio = nil
	return nil
}

// EncodeFrame JPEG-encodes img and appends it at timestampMs.
func (w *Writer) EncodeFrame(img image.Image, timestampMs int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return ErrNotStarted
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: w.options.Quality}); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	w.frames = append(w.frames, videoSample{data: buf.Bytes(), timestampMs: timestampMs})
	return nil
}

// EncodeRawFrame appends data as the video sample at timestampMs without
// encoding it. It is used to produce clips with damaged samples.
func (w *Writer) EncodeRawFrame(data []byte, timestampMs int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return ErrNotStarted
	}
	w.frames = append(w.frames, videoSample{data: append([]byte(nil), data...), timestampMs: timestampMs})
	return nil
}

// EncodeAudio appends interleaved 16-bit samples to the audio track.
func (w *Writer) EncodeAudio(samples []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return ErrNotStarted
	}
	if w.options.Audio == nil {
		return ErrNoAudioTrack
	}
	w.audio = append(w.audio, samples...)
	return nil
}

// End builds the container and resets the writer.
func (w *Writer) End() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return nil, ErrNotStarted
	}
	if len(w.frames) == 0 {
		return nil, ErrNoFrames
	}

	var data []byte
	var err error
	if w.options.Fragmented {
		data, err = w.buildFragmented()
	} else {
		data, err = w.buildProgressive()
	}

	w.started = false
	w.frames = nil
	w.audio = nil
	return data, err
}
