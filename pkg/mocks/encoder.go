package mocks

import (
	"image"

	"github.com/user/vidplay/pkg/ports"
)

// VideoEncoder is a mock implementation of ports.VideoEncoder.
type VideoEncoder struct {
	BeginFunc       func(width, height int, fps float64, opts ports.EncoderOptions) error
	EncodeFrameFunc func(img image.Image, timestampMs int) error
	EndFunc         func() ([]byte, error)

	// Recorded calls for verification
	BeginCalled      bool
	Options          ports.EncoderOptions
	EncodeFrameCalls []EncodeFrameCall
	RawFrameCalls    []int
	AudioSamples     int
	EndCalled        bool
}

// EncodeFrameCall records a call to EncodeFrame.
type EncodeFrameCall struct {
	TimestampMs int
	Width       int
	Height      int
}

func (m *VideoEncoder) Begin(width, height int, fps float64, opts ports.EncoderOptions) error {
	m.BeginCalled = true
	m.Options = opts
	if m.BeginFunc != nil {
		return m.BeginFunc(width, height, fps, opts)
	}
	return nil
}

func (m *VideoEncoder) EncodeFrame(img image.Image, timestampMs int) error {
	b := img.Bounds()
	m.EncodeFrameCalls = append(m.EncodeFrameCalls, EncodeFrameCall{
		TimestampMs: timestampMs,
		Width:       b.Dx(),
		Height:      b.Dy(),
	})
	if m.EncodeFrameFunc != nil {
		return m.EncodeFrameFunc(img, timestampMs)
	}
	return nil
}

// EncodeRawFrame records the timestamp of a verbatim sample.
func (m *VideoEncoder) EncodeRawFrame(data []byte, timestampMs int) error {
	m.RawFrameCalls = append(m.RawFrameCalls, timestampMs)
	return nil
}

func (m *VideoEncoder) EncodeAudio(samples []int16) error {
	m.AudioSamples += len(samples)
	return nil
}

func (m *VideoEncoder) End() ([]byte, error) {
	m.EndCalled = true
	if m.EndFunc != nil {
		return m.EndFunc()
	}
	// Minimal ftyp box
	return []byte{0, 0, 0, 16, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 2, 0}, nil
}

var _ ports.VideoEncoder = (*VideoEncoder)(nil)
