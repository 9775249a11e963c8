package playback

import (
	"time"

	"github.com/user/vidplay/pkg/media"
)

// Presenter owns the frame on screen. It pulls decoded frames from the
// frame queue without blocking and keeps the last one when decoding falls
// behind. It is used from the host goroutine only.
type Presenter struct {
	frames <-chan *media.VideoFrame
	width  int
	height int

	next    *media.VideoFrame
	current *media.VideoFrame
	shown   bool
	eos     bool

	presented   int
	droppedLate int
	outOfOrder  int
}

// NewPresenter creates a presenter reading from frames. The queue is
// closed by its producer after the last frame.
func NewPresenter(frames <-chan *media.VideoFrame, width, height int) *Presenter {
	return &Presenter{frames: frames, width: width, height: height}
}

// Advance makes the newest frame due at clock current. Frames overtaken
// before the host saw them are counted as dropped.
func (p *Presenter) Advance(clock time.Duration) {
	for p.peek() && p.next.PTS <= clock {
		if p.current != nil && !p.shown {
			p.droppedLate++
		}
		p.current, p.next, p.shown = p.next, nil, false
	}
}

// CurrentFrame advances to clock and returns the frame on screen, or nil
// before the first frame is due.
func (p *Presenter) CurrentFrame(clock time.Duration) *media.VideoFrame {
	p.Advance(clock)
	return p.Current()
}

// Current returns the frame on screen without advancing.
func (p *Presenter) Current() *media.VideoFrame {
	if p.current != nil && !p.shown {
		p.shown = true
		p.presented++
	}
	return p.current
}

// Queued returns the number of decoded frames waiting to be shown.
func (p *Presenter) Queued() int {
	n := len(p.frames)
	if p.next != nil {
		n++
	}
	return n
}

// EOS reports whether the producer is done and every frame was taken
// from the queue.
func (p *Presenter) EOS() bool {
	p.peek()
	return p.eos && p.next == nil
}

// Done reports whether the last frame has been on screen for its full
// duration.
func (p *Presenter) Done(clock time.Duration) bool {
	if !p.EOS() {
		return false
	}
	return p.current == nil || clock >= p.current.PTS+p.current.Duration
}

// Underrun reports whether the frame on screen has expired while no
// successor is decoded.
func (p *Presenter) Underrun(clock time.Duration) bool {
	if p.peek() || p.eos {
		return false
	}
	return p.current == nil || clock >= p.current.PTS+p.current.Duration
}

// VideoWidth returns the width of presented frames.
func (p *Presenter) VideoWidth() int {
	return p.width
}

// VideoHeight returns the height of presented frames.
func (p *Presenter) VideoHeight() int {
	return p.height
}

// peek loads the next queued frame into p.next. Frames older than the one
// on screen are discarded so timestamps never go backwards.
func (p *Presenter) peek() bool {
	for p.next == nil && !p.eos {
		select {
		case f, ok := <-p.frames:
			if !ok {
				p.eos = true
				return false
			}
			if p.current != nil && f.PTS < p.current.PTS {
				p.outOfOrder++
				continue
			}
			p.next = f
		default:
			return false
		}
	}
	return p.next != nil
}
