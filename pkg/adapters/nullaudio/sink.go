// Package nullaudio provides a silent audio sink that consumes samples at
// the real-time rate of their format.
package nullaudio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/user/vidplay/pkg/ports"
)

// ErrNotOpen is returned by Write before Open.
var ErrNotOpen = errors.New("nullaudio: sink not open")

// Sink discards samples, blocking each Write until the samples would have
// finished playing.
type Sink struct {
	clock ports.Clock

	mu         sync.Mutex
	sampleRate int
	channels   int
	start      time.Time
	frames     int64
}

// Ensure Sink implements ports.AudioSink.
var _ ports.AudioSink = (*Sink)(nil)

// New creates a sink paced by clock.
func New(clock ports.Clock) *Sink {
	return &Sink{clock: clock}
}

// Open prepares the sink for a format.
func (s *Sink) Open(sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return errors.New("nullaudio: invalid format")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleRate = sampleRate
	s.channels = channels
	s.start = time.Time{}
	s.frames = 0
	return nil
}

// Write accounts for the samples and sleeps until they are played out.
// The schedule restarts when a Write arrives after the previous samples
// finished, so pauses do not make later writes return early.
func (s *Sink) Write(ctx context.Context, samples []float32) error {
	s.mu.Lock()
	if s.sampleRate == 0 {
		s.mu.Unlock()
		return ErrNotOpen
	}
	now := s.clock.Now()
	if s.start.IsZero() || now.After(s.deadline()) {
		s.start = now
		s.frames = 0
	}
	s.frames += int64(len(samples) / s.channels)
	wait := s.deadline().Sub(now)
	s.mu.Unlock()

	return s.clock.Sleep(ctx, wait)
}

// Close releases the sink.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleRate = 0
	return nil
}

// Played returns the duration of audio written since the schedule last
// restarted.
func (s *Sink) Played() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sampleRate == 0 {
		return 0
	}
	return time.Duration(s.frames) * time.Second / time.Duration(s.sampleRate)
}

func (s *Sink) deadline() time.Time {
	return s.start.Add(time.Duration(s.frames) * time.Second / time.Duration(s.sampleRate))
}
