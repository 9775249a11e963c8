package pcmdecoder

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/user/vidplay/pkg/media"
)

func TestDecode_S16LE(t *testing.T) {
	d, err := New(media.AudioTrackInfo{Codec: "sowt", SampleRate: 48000, Channels: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	data := make([]byte, 0, 8)
	for _, v := range []int16{0, 16384, -32768, 32767} {
		data = binary.LittleEndian.AppendUint16(data, uint16(v))
	}

	block, err := d.Decode(media.Packet{Kind: media.KindAudio, PTS: time.Second, Data: data})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	want := []float32{0, 0.5, -1, 32767.0 / 32768}
	for i, v := range want {
		if block.Samples[i] != v {
			t.Errorf("sample %d: expected %v, got %v", i, v, block.Samples[i])
		}
	}
	if block.Frames() != 2 || block.PTS != time.Second {
		t.Errorf("unexpected block frames=%d pts=%v", block.Frames(), block.PTS)
	}
	// 2 frames at 48 kHz
	if block.Duration != 41666*time.Nanosecond {
		t.Errorf("unexpected duration %v", block.Duration)
	}
}

func TestDecode_Formats(t *testing.T) {
	tests := []struct {
		entry string
		data  []byte
		want  float32
	}{
		{"twos", []byte{0x40, 0x00}, 0.5},
		{"raw ", []byte{0x00}, -1},
		{"raw ", []byte{0xC0}, 0.5},
		{"in24", []byte{0xC0, 0x00, 0x00}, -0.5},
		{"fl32", binary.BigEndian.AppendUint32(nil, math.Float32bits(0.25)), 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			d, err := New(media.AudioTrackInfo{Codec: tt.entry, SampleRate: 8000, Channels: 1})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			block, err := d.Decode(media.Packet{Data: tt.data})
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if block.Samples[0] != tt.want {
				t.Errorf("expected %v, got %v", tt.want, block.Samples[0])
			}
		})
	}
}

func TestDecode_Corrupt(t *testing.T) {
	d, _ := New(media.AudioTrackInfo{Codec: "sowt", SampleRate: 48000, Channels: 2})

	for _, data := range [][]byte{nil, {1, 2, 3}} {
		_, err := d.Decode(media.Packet{PTS: 2 * time.Second, Data: data})
		var de *media.DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("expected DecodeError, got %v", err)
		}
		if de.Kind != media.KindAudio || de.PTS != 2*time.Second {
			t.Errorf("unexpected error fields %+v", de)
		}
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(media.AudioTrackInfo{Codec: "mp4a", SampleRate: 48000, Channels: 2}); !errors.Is(err, media.ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}
	if _, err := New(media.AudioTrackInfo{Codec: "sowt"}); err == nil {
		t.Error("expected error for missing sample rate")
	}
}
