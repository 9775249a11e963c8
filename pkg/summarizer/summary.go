// Package summarizer provides summary generation for playback sessions.
package summarizer

import "time"

// Summary contains all data collected during a playback session.
type Summary struct {
	// Metadata
	GeneratedAt time.Time `yaml:"generated_at"`

	// Source information
	Source SourceInfo `yaml:"source"`

	// Stream metadata
	Stream StreamInfo `yaml:"stream"`

	// Playback counters
	Playback PlaybackInfo `yaml:"playback"`

	// Player settings
	Settings Settings `yaml:"settings"`

	// How the session ended
	Result ResultInfo `yaml:"result"`
}

// SourceInfo identifies the played file.
type SourceInfo struct {
	Name string `yaml:"name"`
	Size int64  `yaml:"size"`
}

// StreamInfo contains the container and track metadata.
type StreamInfo struct {
	Format     string `yaml:"format"`
	Fragmented bool   `yaml:"fragmented"`
	DurationMs int    `yaml:"duration_ms"`

	VideoCodec string  `yaml:"video_codec"`
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	FrameRate  float64 `yaml:"frame_rate"`

	// AudioCodec is empty for streams without audio.
	AudioCodec string `yaml:"audio_codec"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
}

// PlaybackInfo contains the session counters.
type PlaybackInfo struct {
	Backend           string `yaml:"backend"`
	FramesPresented   int    `yaml:"frames_presented"`
	FramesDroppedLate int    `yaml:"frames_dropped_late"`
	FramesUndecodable int    `yaml:"frames_undecodable"`
	DecodeGaps        int    `yaml:"decode_gaps"`
	Rebuffers         int    `yaml:"rebuffers"`
	Packets           int    `yaml:"packets"`
	PositionMs        int    `yaml:"position_ms"`
	WallMs            int    `yaml:"wall_ms"`
}

// Settings contains the player configuration.
type Settings struct {
	Backend          string  `yaml:"backend"`
	CorruptThreshold int     `yaml:"corrupt_threshold"`
	LookaheadFrames  int     `yaml:"lookahead_frames"`
	FrameQueue       int     `yaml:"frame_queue"`
	MaxWidth         int     `yaml:"max_width"`
	MaxHeight        int     `yaml:"max_height"`
	Volume           float32 `yaml:"volume"`
	TickFPS          float64 `yaml:"tick_fps"`
}

// ResultInfo describes how playback ended.
type ResultInfo struct {
	Completed bool   `yaml:"completed"`
	Stopped   bool   `yaml:"stopped"`
	Error     string `yaml:"error,omitempty"`
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSource sets source information.
func (b *Builder) WithSource(name string, size int64) *Builder {
	b.summary.Source = SourceInfo{
		Name: name,
		Size: size,
	}
	return b
}

// WithStream sets stream metadata.
func (b *Builder) WithStream(stream StreamInfo) *Builder {
	b.summary.Stream = stream
	return b
}

// WithPlayback sets the session counters.
func (b *Builder) WithPlayback(playback PlaybackInfo) *Builder {
	b.summary.Playback = playback
	return b
}

// WithSettings sets player settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// WithCompletion records the completion notification. A nil err means the
// stream played to its end.
func (b *Builder) WithCompletion(err error) *Builder {
	b.summary.Result = ResultInfo{Completed: true}
	if err != nil {
		b.summary.Result.Error = err.Error()
	}
	return b
}

// WithStopped records that the host stopped playback before completion.
func (b *Builder) WithStopped() *Builder {
	b.summary.Result = ResultInfo{Stopped: true}
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
