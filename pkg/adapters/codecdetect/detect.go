// Package codecdetect maps ISO-BMFF sample entry types to codecs.
package codecdetect

import (
	"strings"

	"github.com/user/vidplay/pkg/media"
)

// Codec represents a codec family.
type Codec string

const (
	CodecMJPEG   Codec = "mjpeg"
	CodecPNG     Codec = "png"
	CodecVP8     Codec = "vp8"
	CodecH264    Codec = "h264"
	CodecH265    Codec = "h265"
	CodecAV1     Codec = "av1"
	CodecVP9     Codec = "vp9"
	CodecPCM     Codec = "pcm"
	CodecAAC     Codec = "aac"
	CodecOpus    Codec = "opus"
	CodecUnknown Codec = "unknown"
)

// PCMFormat describes the sample layout of a PCM sample entry.
type PCMFormat struct {
	BitsPerSample int
	BigEndian     bool
	Float         bool
	Unsigned      bool
}

var videoEntries = map[string]Codec{
	"jpeg": CodecMJPEG,
	"mjpa": CodecMJPEG,
	"mjpg": CodecMJPEG,
	"png ": CodecPNG,
	"vp08": CodecVP8,
	"avc1": CodecH264,
	"avc3": CodecH264,
	"hvc1": CodecH265,
	"hev1": CodecH265,
	"av01": CodecAV1,
	"vp09": CodecVP9,
}

var pcmEntries = map[string]PCMFormat{
	"sowt": {BitsPerSample: 16},
	"twos": {BitsPerSample: 16, BigEndian: true},
	"raw ": {BitsPerSample: 8, Unsigned: true},
	"fl32": {BitsPerSample: 32, BigEndian: true, Float: true},
	"in24": {BitsPerSample: 24, BigEndian: true},
}

// Video returns the codec of a video sample entry type.
func Video(entry string) Codec {
	if c, ok := videoEntries[entry]; ok {
		return c
	}
	return CodecUnknown
}

// Audio returns the codec of an audio sample entry type.
func Audio(entry string) Codec {
	if _, ok := pcmEntries[entry]; ok {
		return CodecPCM
	}
	switch strings.ToLower(entry) {
	case "mp4a":
		return CodecAAC
	case "opus":
		return CodecOpus
	}
	return CodecUnknown
}

// PCM returns the sample layout of a PCM sample entry type.
func PCM(entry string) (PCMFormat, bool) {
	f, ok := pcmEntries[entry]
	return f, ok
}

// FromStreamInfo returns the video and audio codecs of a stream.
// The audio codec is empty when the stream has no audio track.
func FromStreamInfo(info media.StreamInfo) (video, audio Codec) {
	video = Video(info.Video.Codec)
	if info.Audio != nil {
		audio = Audio(info.Audio.Codec)
	}
	return video, audio
}
