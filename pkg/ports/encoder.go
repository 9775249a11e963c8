package ports

import (
	"image"
)

// VideoEncoder abstracts writing a clip of still images into a container.
type VideoEncoder interface {
	// Begin initializes the encoder with the specified dimensions and frame rate.
	Begin(width, height int, fps float64, opts EncoderOptions) error

	// EncodeFrame encodes a single frame at the specified timestamp.
	EncodeFrame(img image.Image, timestampMs int) error

	// EncodeAudio appends interleaved 16-bit PCM samples to the audio track.
	// It is only valid when EncoderOptions.Audio was set in Begin.
	EncodeAudio(samples []int16) error

	// End finalizes encoding and returns the container data.
	End() ([]byte, error)
}

// EncoderOptions configures encoding parameters.
type EncoderOptions struct {
	Quality int // JPEG quality: 1-100

	// Fragmented selects a fragmented (moof/mdat) layout instead of a
	// single progressive moov/mdat file.
	Fragmented bool

	// Audio adds a PCM audio track when non-nil.
	Audio *AudioOptions
}

// AudioOptions configures the PCM audio track.
type AudioOptions struct {
	SampleRate int
	Channels   int
}
