// Package media defines the data model shared by the demuxer, the decoders
// and the playback engine.
package media

import (
	"image"
	"time"
)

// Kind identifies the elementary stream a packet belongs to.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Packet is one compressed, timestamped unit of an elementary stream.
type Packet struct {
	Kind     Kind
	TrackID  uint32
	DTS      time.Duration
	PTS      time.Duration
	Duration time.Duration
	Keyframe bool
	Data     []byte
}

// PixelFormat describes the layout of VideoFrame.Pix.
type PixelFormat int

const (
	// PixelFormatRGBA is packed 8-bit RGBA, 4 bytes per pixel.
	PixelFormatRGBA PixelFormat = iota
)

// String returns the string representation of the pixel format.
func (p PixelFormat) String() string {
	switch p {
	case PixelFormatRGBA:
		return "RGBA"
	default:
		return "unknown"
	}
}

// VideoFrame is a decoded picture ready to be uploaded by the host.
// Frames are immutable once handed to the playback engine.
type VideoFrame struct {
	PTS      time.Duration
	Duration time.Duration
	Width    int
	Height   int
	Stride   int
	Format   PixelFormat
	Pix      []byte
}

// NewVideoFrame wraps an RGBA image as a frame. The image is not copied.
func NewVideoFrame(img *image.RGBA, pts, dur time.Duration) *VideoFrame {
	b := img.Bounds()
	return &VideoFrame{
		PTS:      pts,
		Duration: dur,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Stride:   img.Stride,
		Format:   PixelFormatRGBA,
		Pix:      img.Pix,
	}
}

// Image returns the frame as an *image.RGBA sharing the pixel buffer.
func (f *VideoFrame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Stride,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// TimestampMs returns the presentation timestamp in milliseconds.
func (f *VideoFrame) TimestampMs() int {
	return int(f.PTS / time.Millisecond)
}

// AudioBlock is a block of decoded, interleaved PCM samples.
type AudioBlock struct {
	PTS        time.Duration
	Duration   time.Duration
	SampleRate int
	Channels   int
	Samples    []float32
}

// Frames returns the number of sample frames (samples per channel).
func (b *AudioBlock) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// VideoTrackInfo describes the video elementary stream.
type VideoTrackInfo struct {
	TrackID   uint32  `yaml:"track_id"`
	Codec     string  `yaml:"codec"`
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	FrameRate float64 `yaml:"frame_rate"`
	Timescale uint32  `yaml:"timescale"`
	Samples   int     `yaml:"samples"`

	// Config holds codec initialization data (e.g. avcC SPS/PPS in Annex B).
	Config []byte `yaml:"-"`
}

// AudioTrackInfo describes the audio elementary stream.
type AudioTrackInfo struct {
	TrackID       uint32 `yaml:"track_id"`
	Codec         string `yaml:"codec"`
	SampleRate    int    `yaml:"sample_rate"`
	Channels      int    `yaml:"channels"`
	BitsPerSample int    `yaml:"bits_per_sample"`
	Samples       int    `yaml:"samples"`
}

// StreamInfo is the container metadata discovered when headers are parsed.
type StreamInfo struct {
	Format     string          `yaml:"format"`
	Fragmented bool            `yaml:"fragmented"`
	Duration   time.Duration   `yaml:"duration"`
	Video      VideoTrackInfo  `yaml:"video"`
	Audio      *AudioTrackInfo `yaml:"audio,omitempty"`
}

// HasAudio reports whether the stream carries an audio track.
func (s StreamInfo) HasAudio() bool {
	return s.Audio != nil
}

// DefaultFrameRate is assumed when a stream does not declare its frame rate.
const DefaultFrameRate = 30.0

// FrameInterval returns the duration of one frame at the declared frame rate.
func (s StreamInfo) FrameInterval() time.Duration {
	fps := s.Video.FrameRate
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return time.Duration(float64(time.Second) / fps)
}

// FitSize returns the largest size with the aspect ratio of w x h that
// fits maxW x maxH. A zero bound is ignored.
func FitSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	if maxW > 0 && w > maxW {
		h = max(h*maxW/w, 1)
		w = maxW
	}
	if maxH > 0 && h > maxH {
		w = max(w*maxH/h, 1)
		h = maxH
	}
	return w, h
}
