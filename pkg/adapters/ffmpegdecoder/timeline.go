package ffmpegdecoder

import (
	"sort"
	"time"
)

// stampTolerance is how far a picture timestamp may drift from the packet
// it came from after a round trip through ffmpeg's time base.
const stampTolerance = 500 // microseconds

// timelineEntry is a submitted packet still waiting for its picture.
type timelineEntry struct {
	key      int64 // microseconds since the first packet's decode time
	pts      time.Duration
	duration time.Duration

	// passed counts pictures emitted with a later timestamp.
	passed int
}

// timeline pairs decoded pictures with the packets they came from. Pictures
// leave the decoder in presentation order, so an entry passed by more than
// window later pictures will never get one.
type timeline struct {
	window  int
	pending []timelineEntry
}

func newTimeline(window int) *timeline {
	return &timeline{window: max(window, 0)}
}

func (t *timeline) add(key int64, pts, duration time.Duration) {
	i := sort.Search(len(t.pending), func(i int) bool { return t.pending[i].key > key })
	t.pending = append(t.pending, timelineEntry{})
	copy(t.pending[i+1:], t.pending[i:])
	t.pending[i] = timelineEntry{key: key, pts: pts, duration: duration}
}

// match takes the entry nearest to key. ok is false when no entry lies
// within stampTolerance. missed holds entries given up on.
func (t *timeline) match(key int64) (entry timelineEntry, ok bool, missed []timelineEntry) {
	best := -1
	var bestDist int64
	for i, e := range t.pending {
		dist := e.key - key
		if dist < 0 {
			dist = -dist
		}
		if dist <= stampTolerance && (best < 0 || dist < bestDist) {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return timelineEntry{}, false, nil
	}
	entry = t.pending[best]

	kept := t.pending[:0]
	for i, e := range t.pending {
		switch {
		case i == best:
			continue
		case e.key < entry.key:
			e.passed++
			if e.passed > t.window {
				missed = append(missed, e)
				continue
			}
		}
		kept = append(kept, e)
	}
	t.pending = kept
	return entry, true, missed
}

// drain returns every entry left without a picture.
func (t *timeline) drain() []timelineEntry {
	missed := t.pending
	t.pending = nil
	return missed
}
