// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"image/color"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/user/vidplay/pkg/adapters/smartdecoder"
	"github.com/user/vidplay/pkg/framedump"
	"github.com/user/vidplay/pkg/playback"
	"github.com/user/vidplay/pkg/ports"
)

// Config represents the full configuration for vidplay.
type Config struct {
	// Decoding
	Backend    string `yaml:"backend"`
	FFmpegPath string `yaml:"ffmpeg_path"`
	MaxWidth   int    `yaml:"max_width"`
	MaxHeight  int    `yaml:"max_height"`

	// Playback policy
	CorruptThreshold     int `yaml:"corrupt_threshold"`
	LookaheadFrames      int `yaml:"lookahead_frames"`
	LookaheadAudioBlocks int `yaml:"lookahead_audio_blocks"`
	ReorderDepth         int `yaml:"reorder_depth"`

	// Queues
	PacketQueue      int `yaml:"packet_queue"`
	AudioPacketQueue int `yaml:"audio_packet_queue"`
	FrameQueue       int `yaml:"frame_queue"`
	AudioQueue       int `yaml:"audio_queue"`

	// Audio
	Volume float32 `yaml:"volume"`
	Mute   bool    `yaml:"mute"`

	// Host loop
	TickFPS float64 `yaml:"tick_fps"`

	// Frame dumps
	DumpDir   string      `yaml:"dump_dir"`
	DumpEvery int         `yaml:"dump_every"`
	DumpJPEG  int         `yaml:"dump_jpeg_quality"`
	BarHeight int         `yaml:"bar_height"`
	Theme     ThemeConfig `yaml:"theme"`

	LogLevel string `yaml:"log_level"`
}

// ThemeConfig represents the colors of the frame dump bar.
type ThemeConfig struct {
	BackgroundColor  string `yaml:"background_color"`
	TextColor        string `yaml:"text_color"`
	ProgressBgColor  string `yaml:"progress_bg_color"`
	ProgressBarColor string `yaml:"progress_bar_color"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	opts := playback.DefaultOptions()
	return Config{
		// Playback policy
		CorruptThreshold:     opts.CorruptThreshold,
		LookaheadFrames:      opts.LookaheadFrames,
		LookaheadAudioBlocks: opts.LookaheadAudioBlocks,
		ReorderDepth:         opts.ReorderDepth,

		// Queues
		PacketQueue:      opts.VideoPacketQueue,
		AudioPacketQueue: opts.AudioPacketQueue,
		FrameQueue:       opts.FrameQueue,
		AudioQueue:       opts.AudioQueue,

		Volume:  opts.Volume,
		TickFPS: 60,

		// Frame dumps
		DumpEvery: 1,
		BarHeight: 20,
		Theme: ThemeConfig{
			BackgroundColor:  "#101010",
			TextColor:        "#ffffff",
			ProgressBgColor:  "#404040",
			ProgressBarColor: "#e04030",
		},

		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a YAML file. Keys missing from the
// file keep their default values.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the values the player and the CLI cannot work with.
func (c Config) Validate() error {
	if _, err := smartdecoder.ParseBackend(c.Backend); err != nil {
		return err
	}
	if _, err := ports.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.TickFPS <= 0 {
		return fmt.Errorf("tick_fps must be positive: %v", c.TickFPS)
	}
	if c.MaxWidth < 0 || c.MaxHeight < 0 {
		return fmt.Errorf("max size must not be negative: %dx%d", c.MaxWidth, c.MaxHeight)
	}
	if c.DumpJPEG < 0 || c.DumpJPEG > 100 {
		return fmt.Errorf("dump_jpeg_quality must be within [0, 100]: %d", c.DumpJPEG)
	}
	opts, _ := c.ToPlayerOptions()
	return opts.Validate()
}

// ToPlayerOptions converts Config to playback.Options. The error reports
// an unknown backend name.
func (c Config) ToPlayerOptions() (playback.Options, error) {
	backend, err := smartdecoder.ParseBackend(c.Backend)
	opts := playback.Options{
		CorruptThreshold:     c.CorruptThreshold,
		LookaheadFrames:      c.LookaheadFrames,
		LookaheadAudioBlocks: c.LookaheadAudioBlocks,
		VideoPacketQueue:     c.PacketQueue,
		AudioPacketQueue:     c.AudioPacketQueue,
		FrameQueue:           c.FrameQueue,
		AudioQueue:           c.AudioQueue,
		ReorderDepth:         c.ReorderDepth,
		Volume:               c.Volume,
		Decoder: smartdecoder.Options{
			Backend:    backend,
			FFmpegPath: c.FFmpegPath,
			MaxWidth:   c.MaxWidth,
			MaxHeight:  c.MaxHeight,
		},
	}
	if c.Mute {
		opts.Volume = 0
	}
	return opts, err
}

// ToDumpOptions converts the frame dump settings to framedump.Options.
func (c Config) ToDumpOptions() framedump.Options {
	opts := framedump.DefaultOptions()
	opts.Every = c.DumpEvery
	opts.BarHeight = c.BarHeight
	opts.Theme = framedump.Theme{
		Background:       ParseColor(c.Theme.BackgroundColor),
		ProgressBgColor:  ParseColor(c.Theme.ProgressBgColor),
		ProgressBarColor: ParseColor(c.Theme.ProgressBarColor),
		TextColor:        ParseColor(c.Theme.TextColor),
	}
	return opts
}

// ParseColor parses a hex color string to color.Color.
func ParseColor(hex string) color.Color {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return color.Black
	}

	var rgb [3]uint8
	for i := range rgb {
		rgb[i] = hexValue(hex[2*i])<<4 | hexValue(hex[2*i+1])
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
}

func hexValue(c byte) uint8 {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
