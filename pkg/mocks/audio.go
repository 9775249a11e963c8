package mocks

import (
	"context"
	"sync"

	"github.com/user/vidplay/pkg/ports"
)

// AudioSink is a mock implementation of ports.AudioSink that accepts
// samples immediately.
type AudioSink struct {
	mu sync.Mutex

	OpenFunc  func(sampleRate, channels int) error
	WriteFunc func(ctx context.Context, samples []float32) error

	SampleRate int
	Channels   int
	Samples    int
	Closed     bool
}

func (m *AudioSink) Open(sampleRate, channels int) error {
	m.mu.Lock()
	m.SampleRate = sampleRate
	m.Channels = channels
	m.mu.Unlock()
	if m.OpenFunc != nil {
		return m.OpenFunc(sampleRate, channels)
	}
	return nil
}

func (m *AudioSink) Write(ctx context.Context, samples []float32) error {
	if m.WriteFunc != nil {
		if err := m.WriteFunc(ctx, samples); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Samples += len(samples)
	return ctx.Err()
}

func (m *AudioSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Written returns the number of samples written so far.
func (m *AudioSink) Written() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Samples
}

var _ ports.AudioSink = (*AudioSink)(nil)
