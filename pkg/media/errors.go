package media

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAlreadyPlaying is returned by Play while a session is active.
	ErrAlreadyPlaying = errors.New("media: playback already in progress")

	// ErrDisposed is returned when a disposed player is used.
	ErrDisposed = errors.New("media: player disposed")

	// ErrUnsupportedCodec is returned when no decoder handles a codec.
	ErrUnsupportedCodec = errors.New("media: unsupported codec")

	// ErrNotInitialized is returned when a decoder is used before Init.
	ErrNotInitialized = errors.New("media: decoder not initialized")

	// ErrFrameDropped is returned by a decoder that consumed a packet but
	// cannot produce a picture for it (e.g. an unsupported inter frame).
	// It is neither corruption nor fatal.
	ErrFrameDropped = errors.New("media: frame dropped")
)

// NotFoundError reports a source that could not be opened because it does
// not exist.
type NotFoundError struct {
	Source string
	Err    error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("media: source not found: %s", e.Source)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// ContainerError reports a byte stream that is not a recognized container.
type ContainerError struct {
	Reason string
	Err    error
}

func (e *ContainerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("media: invalid container: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("media: invalid container: %s", e.Reason)
}

func (e *ContainerError) Unwrap() error { return e.Err }

// TruncatedStreamError reports data that ends in the middle of a box or
// packet.
type TruncatedStreamError struct {
	Offset int64
	Err    error
}

func (e *TruncatedStreamError) Error() string {
	return fmt.Sprintf("media: stream truncated at offset %d", e.Offset)
}

func (e *TruncatedStreamError) Unwrap() error { return e.Err }

// DecodeError reports a single undecodable packet. It is recoverable: the
// packet is skipped.
type DecodeError struct {
	Kind Kind
	PTS  time.Duration
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("media: %s decode failed at %v: %v", e.Kind, e.PTS, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MissedFramesError reports packets a decoder found to have produced no
// picture only after later pictures came out. The frames returned with it
// are valid; each entry counts as one decode failure.
type MissedFramesError struct {
	Missed []*DecodeError
}

func (e *MissedFramesError) Error() string {
	if len(e.Missed) == 0 {
		return "media: no missed frames"
	}
	return fmt.Sprintf("media: %d %s packets produced no picture, first at %v",
		len(e.Missed), e.Missed[0].Kind, e.Missed[0].PTS)
}

func (e *MissedFramesError) Unwrap() []error {
	errs := make([]error, len(e.Missed))
	for i, de := range e.Missed {
		errs[i] = de
	}
	return errs
}

// StreamCorruptError is the fatal escalation of repeated DecodeErrors.
type StreamCorruptError struct {
	Kind        Kind
	Consecutive int
	Last        error
}

func (e *StreamCorruptError) Error() string {
	return fmt.Sprintf("media: %s stream corrupt after %d consecutive decode failures: %v",
		e.Kind, e.Consecutive, e.Last)
}

func (e *StreamCorruptError) Unwrap() error { return e.Last }

// IsRecoverable reports whether err only affects a single packet.
func IsRecoverable(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) || errors.Is(err, ErrFrameDropped)
}
