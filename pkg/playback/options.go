package playback

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/user/vidplay/pkg/adapters/smartdecoder"
)

// Options holds the playback policy knobs.
type Options struct {
	// CorruptThreshold is the number of consecutive undecodable packets
	// tolerated per stream. One more ends the session with
	// *media.StreamCorruptError.
	CorruptThreshold int

	// LookaheadFrames is the number of decoded frames that must be queued
	// before Buffering turns into Playing.
	LookaheadFrames int

	// LookaheadAudioBlocks is the audio counterpart of LookaheadFrames.
	LookaheadAudioBlocks int

	// Queue capacities. FrameQueue 0 sizes the queue from available memory.
	VideoPacketQueue int
	AudioPacketQueue int
	FrameQueue       int
	AudioQueue       int

	// ReorderDepth overrides the decoder's reorder depth when >= 0.
	ReorderDepth int

	// Volume is the initial volume in [0, 1].
	Volume float32

	Decoder smartdecoder.Options
}

const defaultFrameQueue = 8

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{
		CorruptThreshold:     5,
		LookaheadFrames:      1,
		LookaheadAudioBlocks: 1,
		VideoPacketQueue:     32,
		AudioPacketQueue:     64,
		FrameQueue:           defaultFrameQueue,
		AudioQueue:           16,
		ReorderDepth:         -1,
		Volume:               1,
	}
}

// Validate checks the options for values the engine cannot run with.
func (o Options) Validate() error {
	switch {
	case o.CorruptThreshold < 0:
		return fmt.Errorf("corrupt threshold must not be negative: %d", o.CorruptThreshold)
	case o.LookaheadFrames < 1:
		return fmt.Errorf("lookahead frames must be at least 1: %d", o.LookaheadFrames)
	case o.LookaheadAudioBlocks < 1:
		return fmt.Errorf("lookahead audio blocks must be at least 1: %d", o.LookaheadAudioBlocks)
	case o.VideoPacketQueue < 1 || o.AudioPacketQueue < 1 || o.AudioQueue < 1:
		return fmt.Errorf("queue sizes must be positive")
	case o.FrameQueue < 0:
		return fmt.Errorf("frame queue must not be negative: %d", o.FrameQueue)
	case o.LookaheadFrames > o.frameQueueCap():
		return fmt.Errorf("lookahead frames %d exceed frame queue %d", o.LookaheadFrames, o.FrameQueue)
	case o.LookaheadAudioBlocks > o.AudioQueue:
		return fmt.Errorf("lookahead audio blocks %d exceed audio queue %d", o.LookaheadAudioBlocks, o.AudioQueue)
	case o.Volume < 0 || o.Volume > 1:
		return fmt.Errorf("volume must be within [0, 1]: %v", o.Volume)
	}
	return nil
}

// frameQueueCap is the smallest capacity the frame queue can end up with.
func (o Options) frameQueueCap() int {
	if o.FrameQueue == 0 {
		return minAutoFrameQueue
	}
	return o.FrameQueue
}

const (
	minAutoFrameQueue = 2
	maxAutoFrameQueue = 64

	// autoFrameQueueShare is the fraction of available memory (1/n) the
	// frame queue may occupy.
	autoFrameQueueShare = 32
)

// frameQueueSize resolves the frame queue capacity for frames of the given
// size.
func frameQueueSize(n, width, height int) int {
	if n > 0 {
		return n
	}
	v, err := mem.VirtualMemory()
	if err != nil || v.Available == 0 {
		return defaultFrameQueue
	}
	frameBytes := uint64(max(width*height*4, 1))
	n = int(min(v.Available/autoFrameQueueShare/frameBytes, maxAutoFrameQueue))
	return max(n, minAutoFrameQueue)
}
