// Package pcmdecoder converts uncompressed PCM packets to interleaved
// float32 blocks.
package pcmdecoder

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/user/vidplay/pkg/adapters/codecdetect"
	"github.com/user/vidplay/pkg/media"
	"github.com/user/vidplay/pkg/ports"
)

// Decoder implements ports.AudioDecoder for PCM sample entries.
type Decoder struct {
	format     codecdetect.PCMFormat
	sampleRate int
	channels   int
	frameSize  int
}

// Ensure Decoder implements ports.AudioDecoder.
var _ ports.AudioDecoder = (*Decoder)(nil)

// New creates a decoder for the audio track described by track.
func New(track media.AudioTrackInfo) (*Decoder, error) {
	format, ok := codecdetect.PCM(track.Codec)
	if !ok {
		return nil, fmt.Errorf("%w: audio %q", media.ErrUnsupportedCodec, track.Codec)
	}
	if track.SampleRate <= 0 || track.Channels <= 0 {
		return nil, fmt.Errorf("pcmdecoder: invalid format %d Hz, %d channels", track.SampleRate, track.Channels)
	}
	return &Decoder{
		format:     format,
		sampleRate: track.SampleRate,
		channels:   track.Channels,
		frameSize:  format.BitsPerSample / 8 * track.Channels,
	}, nil
}

// Decode converts one packet. A payload that is empty or not a whole
// number of sample frames is reported as *media.DecodeError.
func (d *Decoder) Decode(pkt media.Packet) (*media.AudioBlock, error) {
	if len(pkt.Data) == 0 || len(pkt.Data)%d.frameSize != 0 {
		return nil, &media.DecodeError{
			Kind: media.KindAudio,
			PTS:  pkt.PTS,
			Err:  fmt.Errorf("payload of %d bytes is not a multiple of %d", len(pkt.Data), d.frameSize),
		}
	}

	width := d.format.BitsPerSample / 8
	samples := make([]float32, len(pkt.Data)/width)
	for i := range samples {
		samples[i] = d.sample(pkt.Data[i*width : (i+1)*width])
	}

	frames := len(samples) / d.channels
	return &media.AudioBlock{
		PTS:        pkt.PTS,
		Duration:   time.Duration(frames) * time.Second / time.Duration(d.sampleRate),
		SampleRate: d.sampleRate,
		Channels:   d.channels,
		Samples:    samples,
	}, nil
}

// Close releases decoder resources.
func (d *Decoder) Close() error {
	return nil
}

func (d *Decoder) sample(b []byte) float32 {
	var order binary.ByteOrder = binary.LittleEndian
	if d.format.BigEndian {
		order = binary.BigEndian
	}

	switch d.format.BitsPerSample {
	case 8:
		if d.format.Unsigned {
			return float32(int(b[0])-128) / 128
		}
		return float32(int8(b[0])) / 128
	case 16:
		return float32(int16(order.Uint16(b))) / 32768
	case 24:
		var v int32
		if d.format.BigEndian {
			v = int32(b[0])<<24 | int32(b[1])<<16 | int32(b[2])<<8
		} else {
			v = int32(b[2])<<24 | int32(b[1])<<16 | int32(b[0])<<8
		}
		return float32(v>>8) / (1 << 23)
	case 32:
		if d.format.Float {
			return math.Float32frombits(order.Uint32(b))
		}
		return float32(float64(int32(order.Uint32(b))) / (1 << 31))
	}
	return 0
}
