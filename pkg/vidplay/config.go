// Package vidplay provides a high-level API for embedding the player in a
// host render loop.
package vidplay

import (
	"github.com/user/vidplay/pkg/adapters/smartdecoder"
	"github.com/user/vidplay/pkg/playback"
)

// Preset represents a buffering preset name.
type Preset string

const (
	PresetBalanced   Preset = "balanced"
	PresetSmooth     Preset = "smooth"
	PresetLowLatency Preset = "low-latency"
	PresetLowMemory  Preset = "low-memory"
)

// BufferSettings contains the queue parameters of a preset.
type BufferSettings struct {
	LookaheadFrames int // Frames decoded before Buffering ends
	FrameQueue      int // Decoded frame capacity (0 = sized from free memory)
	PacketQueue     int // Compressed video packet capacity
}

// GetBufferSettings returns buffer settings for the given preset.
func GetBufferSettings(preset Preset) BufferSettings {
	switch preset {
	case PresetSmooth:
		return BufferSettings{
			LookaheadFrames: 4,
			FrameQueue:      0,
			PacketQueue:     96,
		}
	case PresetLowLatency:
		return BufferSettings{
			LookaheadFrames: 1,
			FrameQueue:      3,
			PacketQueue:     8,
		}
	case PresetLowMemory:
		return BufferSettings{
			LookaheadFrames: 1,
			FrameQueue:      2,
			PacketQueue:     16,
		}
	default: // balanced
		return BufferSettings{
			LookaheadFrames: 1,
			FrameQueue:      8,
			PacketQueue:     32,
		}
	}
}

// Config represents the configuration of an embedded player.
type Config struct {
	// Decoding
	Backend    smartdecoder.Backend // Decoder backend ("" selects automatically)
	FFmpegPath string               // Custom ffmpeg binary
	MaxWidth   int                  // Bound on decoded width (0 = source width)
	MaxHeight  int                  // Bound on decoded height (0 = source height)

	// Buffering
	LookaheadFrames int
	FrameQueue      int
	PacketQueue     int

	// Error policy
	CorruptThreshold int // Consecutive undecodable packets tolerated

	// Audio
	Volume float32 // Initial volume in [0, 1]
	Audio  bool    // Pace audio through a silent sink
}

// ConfigBuilder provides a fluent interface for building Config.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder creates a new ConfigBuilder with balanced preset defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: defaults(),
	}
}

// defaults returns the balanced preset configuration.
func defaults() Config {
	opts := playback.DefaultOptions()
	buf := GetBufferSettings(PresetBalanced)
	return Config{
		LookaheadFrames:  buf.LookaheadFrames,
		FrameQueue:       buf.FrameQueue,
		PacketQueue:      buf.PacketQueue,
		CorruptThreshold: opts.CorruptThreshold,
		Volume:           opts.Volume,
		Audio:            true,
	}
}

// Build returns the final Config, applying constraints.
func (b *ConfigBuilder) Build() Config {
	cfg := b.config

	if cfg.LookaheadFrames < 1 {
		cfg.LookaheadFrames = 1
	}
	if cfg.FrameQueue != 0 && cfg.FrameQueue < cfg.LookaheadFrames {
		cfg.FrameQueue = cfg.LookaheadFrames
	}
	if cfg.PacketQueue < 1 {
		cfg.PacketQueue = 1
	}
	if cfg.CorruptThreshold < 0 {
		cfg.CorruptThreshold = 0
	}
	cfg.Volume = min(max(cfg.Volume, 0), 1)

	return cfg
}

// WithBackend forces a decoder backend.
func (b *ConfigBuilder) WithBackend(backend smartdecoder.Backend) *ConfigBuilder {
	b.config.Backend = backend
	return b
}

// WithFFmpegPath sets the ffmpeg binary used by the ffmpeg backend.
func (b *ConfigBuilder) WithFFmpegPath(path string) *ConfigBuilder {
	b.config.FFmpegPath = path
	return b
}

// WithMaxSize bounds the decoded picture size, keeping the aspect ratio.
func (b *ConfigBuilder) WithMaxSize(width, height int) *ConfigBuilder {
	b.config.MaxWidth = width
	b.config.MaxHeight = height
	return b
}

// WithLookaheadFrames sets the frames decoded before playback starts.
// Values below 1 will be forced to 1.
func (b *ConfigBuilder) WithLookaheadFrames(n int) *ConfigBuilder {
	b.config.LookaheadFrames = n
	return b
}

// WithFrameQueue sets the decoded frame capacity; 0 sizes it from free
// memory.
func (b *ConfigBuilder) WithFrameQueue(n int) *ConfigBuilder {
	b.config.FrameQueue = n
	return b
}

// WithPreset applies a buffering preset.
func (b *ConfigBuilder) WithPreset(preset Preset) *ConfigBuilder {
	settings := GetBufferSettings(preset)
	b.config.LookaheadFrames = settings.LookaheadFrames
	b.config.FrameQueue = settings.FrameQueue
	b.config.PacketQueue = settings.PacketQueue
	if preset == PresetLowMemory && b.config.MaxWidth == 0 && b.config.MaxHeight == 0 {
		b.config.MaxWidth, b.config.MaxHeight = 1280, 720
	}
	return b
}

// WithCorruptThreshold sets the consecutive undecodable packets tolerated
// before playback ends with an error.
func (b *ConfigBuilder) WithCorruptThreshold(n int) *ConfigBuilder {
	b.config.CorruptThreshold = n
	return b
}

// WithVolume sets the initial volume. Values are clamped to [0, 1].
func (b *ConfigBuilder) WithVolume(v float32) *ConfigBuilder {
	b.config.Volume = v
	return b
}

// WithAudio enables or disables audio output.
func (b *ConfigBuilder) WithAudio(enabled bool) *ConfigBuilder {
	b.config.Audio = enabled
	return b
}

// ToPlayerOptions converts Config to playback.Options.
func (c Config) ToPlayerOptions() playback.Options {
	opts := playback.DefaultOptions()
	opts.LookaheadFrames = c.LookaheadFrames
	opts.FrameQueue = c.FrameQueue
	opts.VideoPacketQueue = c.PacketQueue
	opts.CorruptThreshold = c.CorruptThreshold
	opts.Volume = c.Volume
	opts.Decoder = smartdecoder.Options{
		Backend:    c.Backend,
		FFmpegPath: c.FFmpegPath,
		MaxWidth:   c.MaxWidth,
		MaxHeight:  c.MaxHeight,
	}
	return opts
}
