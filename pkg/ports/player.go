// Package ports defines the interfaces between the playback engine, the
// host application and the adapters.
package ports

import (
	"github.com/user/vidplay/pkg/media"
)

// SizeListener is notified once per session when the video dimensions are
// known.
type SizeListener func(width, height int)

// CompletionListener is notified once when a session ends on its own.
// err is nil when the stream played to the end and describes the failure
// (e.g. *media.StreamCorruptError) otherwise.
type CompletionListener func(source string, err error)

// VideoPlayer is the contract a host render loop polls once per frame.
// Every method returns without waiting for decode work.
type VideoPlayer interface {
	// Play starts a new session. It returns nil on success and a typed
	// media error otherwise (e.g. *media.NotFoundError).
	Play(src Source) error

	// GetTexture returns the frame to display, or nil when there is none.
	GetTexture() *media.VideoFrame

	// IsBuffered reports whether enough data is decoded to play without
	// interruption.
	IsBuffered() bool

	Pause()
	Resume()
	Stop()
	Dispose()

	SetOnVideoSizeListener(l SizeListener)
	SetOnCompletionListener(l CompletionListener)

	GetVideoWidth() int
	GetVideoHeight() int

	// IsPlaying reports whether the playback clock is running.
	IsPlaying() bool

	// GetCurrentTimestamp returns the playback clock in milliseconds.
	GetCurrentTimestamp() int

	SetVolume(volume float32)
	GetVolume() float32
}
