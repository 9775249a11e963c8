package media

import (
	"container/heap"
	"time"
)

// ReorderBuffer turns frames produced in decode order into presentation
// order. It holds up to depth frames; once more are pushed the frame with the
// lowest PTS is released. Frames arriving with a PTS lower than one already
// released are discarded so output stays non-decreasing.
type ReorderBuffer struct {
	depth     int
	frames    frameHeap
	last      time.Duration
	released  bool
	discarded int
}

// NewReorderBuffer creates a buffer holding depth frames. A depth of zero
// releases every frame immediately.
func NewReorderBuffer(depth int) *ReorderBuffer {
	if depth < 0 {
		depth = 0
	}
	return &ReorderBuffer{depth: depth}
}

// Push adds a frame and returns the frames that became ready, in PTS order.
func (b *ReorderBuffer) Push(f *VideoFrame) []*VideoFrame {
	if b.released && f.PTS < b.last {
		b.discarded++
		return nil
	}
	heap.Push(&b.frames, f)

	var out []*VideoFrame
	for b.frames.Len() > b.depth {
		out = append(out, b.pop())
	}
	return out
}

// Drain releases every buffered frame in PTS order.
func (b *ReorderBuffer) Drain() []*VideoFrame {
	var out []*VideoFrame
	for b.frames.Len() > 0 {
		out = append(out, b.pop())
	}
	return out
}

// Len returns the number of frames held.
func (b *ReorderBuffer) Len() int {
	return b.frames.Len()
}

// Discarded returns the number of frames dropped for arriving too late.
func (b *ReorderBuffer) Discarded() int {
	return b.discarded
}

func (b *ReorderBuffer) pop() *VideoFrame {
	f := heap.Pop(&b.frames).(*VideoFrame)
	b.last = f.PTS
	b.released = true
	return f
}

type frameHeap []*VideoFrame

func (h frameHeap) Len() int           { return len(h) }
func (h frameHeap) Less(i, j int) bool { return h[i].PTS < h[j].PTS }
func (h frameHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *frameHeap) Push(x any) {
	*h = append(*h, x.(*VideoFrame))
}

func (h *frameHeap) Pop() any {
	old := *h
	n := len(old)
	f := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return f
}
