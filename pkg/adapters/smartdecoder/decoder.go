// Package smartdecoder selects a video decoding backend for a stream's
// codec: pure Go for intra-only codecs, ffmpeg for H.264.
package smartdecoder

import (
	"errors"
	"fmt"

	"github.com/user/vidplay/pkg/adapters/codecdetect"
	"github.com/user/vidplay/pkg/adapters/ffmpegdecoder"
	"github.com/user/vidplay/pkg/adapters/swdecoder"
	"github.com/user/vidplay/pkg/media"
	"github.com/user/vidplay/pkg/ports"
)

// Codec represents the video codec type (re-exported from codecdetect).
type Codec = codecdetect.Codec

// Backend represents the decoding backend used.
type Backend string

const (
	// BackendAuto picks the first backend that handles the codec.
	BackendAuto Backend = ""
	// BackendSoftware represents the pure Go decoders.
	BackendSoftware Backend = "software"
	// BackendFFmpeg represents FFmpeg-based decoding.
	BackendFFmpeg Backend = "ffmpeg"
)

// ParseBackend converts a config or flag value to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendAuto, "auto":
		return BackendAuto, nil
	case BackendSoftware, BackendFFmpeg:
		return Backend(s), nil
	}
	return "", fmt.Errorf("smartdecoder: unknown backend %q", s)
}

// Info contains information about the selected decoder.
type Info struct {
	// Codec is the detected codec.
	Codec Codec
	// Backend is the decoding backend being used.
	Backend Backend
	// ReorderDepth is the number of frames the backend may emit out of
	// presentation order.
	ReorderDepth int
}

// Options configures the smart decoder behavior.
type Options struct {
	// Backend forces a backend; empty selects automatically.
	Backend Backend
	// FFmpegPath is an optional custom path to the ffmpeg binary.
	FFmpegPath string
	// MaxWidth and MaxHeight bound the decoded picture size.
	MaxWidth  int
	MaxHeight int
}

// ErrNoDecoderAvailable is returned when the codec is known but no backend
// for it can run here.
var ErrNoDecoderAvailable = errors.New("smartdecoder: no decoder available")

// defaultReorderDepth is assumed for H.264 streams that do not declare
// max_num_reorder_frames.
const defaultReorderDepth = 4

// New creates a decoder for the video track described by track.
//
// The selection flow:
//   - MJPEG, PNG, VP8: software decoder
//   - H.264: FFmpeg decoder
//   - anything else: media.ErrUnsupportedCodec
func New(track media.VideoTrackInfo, opts Options) (ports.VideoDecoder, Info, error) {
	codec := codecdetect.Video(track.Codec)
	info := Info{Codec: codec}

	switch {
	case swdecoder.Supports(codec):
		if opts.Backend == BackendFFmpeg {
			return nil, info, fmt.Errorf("%w: %s on %s backend", media.ErrUnsupportedCodec, codec, opts.Backend)
		}
		d, err := swdecoder.New(codec, swdecoder.Options{MaxWidth: opts.MaxWidth, MaxHeight: opts.MaxHeight})
		if err != nil {
			return nil, info, err
		}
		info.Backend = BackendSoftware
		return d, info, nil

	case codec == codecdetect.CodecH264:
		if opts.Backend == BackendSoftware {
			return nil, info, fmt.Errorf("%w: %s on %s backend", media.ErrUnsupportedCodec, codec, opts.Backend)
		}
		if !ffmpegdecoder.IsAvailable(opts.FFmpegPath) {
			return nil, info, fmt.Errorf("%w: %s needs ffmpeg", ErrNoDecoderAvailable, codec)
		}
		d, err := ffmpegdecoder.New(track.Config, ffmpegdecoder.Options{
			FFmpegPath: opts.FFmpegPath,
			MaxWidth:   opts.MaxWidth,
			MaxHeight:  opts.MaxHeight,
		})
		if err != nil {
			return nil, info, err
		}
		info.Backend = BackendFFmpeg
		info.ReorderDepth = defaultReorderDepth
		if sps := d.SPS(); sps != nil && sps.MaxNumReorderFrames >= 0 {
			info.ReorderDepth = sps.MaxNumReorderFrames
		}
		return d, info, nil
	}

	return nil, info, fmt.Errorf("%w: %s (%q)", media.ErrUnsupportedCodec, codec, track.Codec)
}

// IsH264Available checks if H.264 decoding is available.
func IsH264Available(ffmpegPath string) bool {
	return ffmpegdecoder.IsAvailable(ffmpegPath)
}
