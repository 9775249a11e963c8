package playback

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/vidplay/pkg/ports"
)

// playbackClock is the session's presentation time. With audio it follows
// the end of the last rendered audio block; otherwise, and once audio has
// drained, it follows wall time spent in Playing. Without audio the
// position advances in whole frame intervals.
type playbackClock struct {
	wall ports.Clock
	fps  float64

	running bool
	since   time.Time
	elapsed time.Duration

	hasAudio     bool
	audioEnd     atomic.Int64
	audioDrained bool
	offset       time.Duration

	// frozen is the audio position at the last Stop. A block already in
	// the sink may finish after that and must not move a paused clock.
	frozen time.Duration
}

func newPlaybackClock(wall ports.Clock, fps float64, hasAudio bool) *playbackClock {
	return &playbackClock{wall: wall, fps: fps, hasAudio: hasAudio}
}

// Start resumes wall time accounting.
func (c *playbackClock) Start() {
	if c.running {
		return
	}
	c.running = true
	c.since = c.wall.Now()
}

// Stop freezes wall time accounting.
func (c *playbackClock) Stop() {
	if !c.running {
		return
	}
	c.frozen = c.Position()
	c.elapsed += c.wall.Now().Sub(c.since)
	c.running = false
}

// SetAudioEnd records the end of the last rendered audio block. It is
// called from the audio renderer.
func (c *playbackClock) SetAudioEnd(end time.Duration) {
	for {
		cur := c.audioEnd.Load()
		if int64(end) <= cur || c.audioEnd.CompareAndSwap(cur, int64(end)) {
			return
		}
	}
}

// AudioDrained hands authority back to wall time, continuing from the
// audio position.
func (c *playbackClock) AudioDrained() {
	if !c.hasAudio || c.audioDrained {
		return
	}
	pos := c.Position()
	c.audioDrained = true
	c.offset = pos - c.wallElapsed()
}

// Position returns the current presentation time.
func (c *playbackClock) Position() time.Duration {
	if c.hasAudio {
		if !c.audioDrained {
			if !c.running {
				return c.frozen
			}
			return time.Duration(c.audioEnd.Load())
		}
		return c.wallElapsed() + c.offset
	}
	return c.quantize(c.wallElapsed())
}

func (c *playbackClock) wallElapsed() time.Duration {
	if c.running {
		return c.elapsed + c.wall.Now().Sub(c.since)
	}
	return c.elapsed
}

// quantize rounds d down to a whole number of frame intervals and reports
// that boundary rounded up to the millisecond. Container timestamps are
// truncated to the nanosecond, so a frame stamped at boundary k is never
// later than the position reported there.
func (c *playbackClock) quantize(d time.Duration) time.Duration {
	interval := time.Duration(float64(time.Second) / c.fps)
	if interval <= 0 {
		return d
	}
	k := int64(d / interval)
	boundary := math.Ceil(float64(k) * float64(time.Second) / c.fps)
	ms := math.Ceil(boundary / float64(time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}

// gate blocks the audio renderer while playback is not running.
type gate struct {
	mu   sync.Mutex
	open bool
	ch   chan struct{}
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

// Wait returns once the gate is open or done is closed.
func (g *gate) Wait(done <-chan struct{}) bool {
	g.mu.Lock()
	open, ch := g.open, g.ch
	g.mu.Unlock()
	if open {
		return true
	}
	select {
	case <-ch:
		return true
	case <-done:
		return false
	}
}

func (g *gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		g.open = true
		close(g.ch)
	}
}

func (g *gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		g.open = false
		g.ch = make(chan struct{})
	}
}
