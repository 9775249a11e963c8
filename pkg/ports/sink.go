package ports

import (
	"image"
)

// DebugSink abstracts debug output produced while playing.
// It allows saving presented frames and stream metadata for inspection.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveStreamInfo saves the probed stream metadata.
	SaveStreamInfo(data []byte) error

	// SaveFrame saves a presented frame.
	SaveFrame(index int, img image.Image) error
}
