package playback

import "time"

// Stats counts what happened during a session.
type Stats struct {
	// FramesPresented is the number of distinct frames returned by
	// GetTexture.
	FramesPresented int
	// FramesDroppedLate counts frames replaced before the host saw them
	// and frames discarded for arriving out of order.
	FramesDroppedLate int
	// FramesUndecodable counts packets the decoder consumed without
	// producing a picture.
	FramesUndecodable int
	// DecodeGaps counts corrupt packets that were skipped.
	DecodeGaps int
	// Rebuffers counts returns from Playing to Buffering.
	Rebuffers int
	Packets   int
	Position  time.Duration
	Backend   string
}
