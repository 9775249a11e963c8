package ports

import (
	"context"

	"github.com/user/vidplay/pkg/media"
)

// Demuxer splits a container into timestamped packets.
type Demuxer interface {
	// Info returns the container metadata. It is valid as soon as the
	// demuxer has been opened, before the first packet is read.
	Info() media.StreamInfo

	// ReadPacket returns the next packet in decode-time order.
	// It returns io.EOF once every packet has been read.
	ReadPacket(ctx context.Context) (media.Packet, error)

	// Close releases demuxer resources.
	Close() error
}

// VideoDecoder turns compressed video packets into frames.
type VideoDecoder interface {
	// Decode consumes one packet and returns the frames that became
	// available, in presentation order. A corrupt packet yields a
	// *media.DecodeError; the decoder stays usable. Decoders that learn
	// of a failure only from later output return the valid frames
	// together with a *media.MissedFramesError.
	Decode(ctx context.Context, pkt media.Packet) ([]*media.VideoFrame, error)

	// Flush returns the frames still held for reordering at end of stream,
	// with a *media.MissedFramesError for packets that never produced one.
	Flush(ctx context.Context) ([]*media.VideoFrame, error)

	// Close releases decoder resources.
	Close() error
}

// AudioDecoder turns audio packets into PCM blocks.
type AudioDecoder interface {
	// Decode consumes one packet. A corrupt packet yields a
	// *media.DecodeError; the decoder stays usable.
	Decode(pkt media.Packet) (*media.AudioBlock, error)

	// Close releases decoder resources.
	Close() error
}
