package ports

import (
	"context"
	"time"
)

// AudioSink renders PCM samples, e.g. an output device.
type AudioSink interface {
	// Open prepares the sink for the given format.
	Open(sampleRate, channels int) error

	// Write renders interleaved float32 samples. It blocks until the
	// samples have been played (or queued by a device with a fixed
	// latency) and returns early with ctx.Err() when ctx is cancelled.
	Write(ctx context.Context, samples []float32) error

	// Close releases the sink.
	Close() error
}

// Clock abstracts wall-clock time so playback timing can be driven
// manually in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}
