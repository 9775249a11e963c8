package vidplay

import (
	"testing"

	"github.com/user/vidplay/pkg/adapters/smartdecoder"
	"github.com/user/vidplay/pkg/playback"
)

func TestNewConfigBuilder_Defaults(t *testing.T) {
	cfg := NewConfigBuilder().Build()

	if cfg.LookaheadFrames != 1 || cfg.FrameQueue != 8 || cfg.PacketQueue != 32 {
		t.Errorf("unexpected buffering defaults: %+v", cfg)
	}
	if cfg.CorruptThreshold != 5 {
		t.Errorf("expected corrupt threshold 5, got %d", cfg.CorruptThreshold)
	}
	if !cfg.Audio || cfg.Volume != 1 {
		t.Errorf("expected audio at full volume, got %+v", cfg)
	}
	if err := cfg.ToPlayerOptions().Validate(); err != nil {
		t.Errorf("default options must validate: %v", err)
	}
}

func TestGetBufferSettings(t *testing.T) {
	tests := []struct {
		preset Preset
		want   BufferSettings
	}{
		{PresetBalanced, BufferSettings{LookaheadFrames: 1, FrameQueue: 8, PacketQueue: 32}},
		{PresetSmooth, BufferSettings{LookaheadFrames: 4, FrameQueue: 0, PacketQueue: 96}},
		{PresetLowLatency, BufferSettings{LookaheadFrames: 1, FrameQueue: 3, PacketQueue: 8}},
		{PresetLowMemory, BufferSettings{LookaheadFrames: 1, FrameQueue: 2, PacketQueue: 16}},
		{"unknown", BufferSettings{LookaheadFrames: 1, FrameQueue: 8, PacketQueue: 32}},
	}

	for _, tt := range tests {
		t.Run(string(tt.preset), func(t *testing.T) {
			if got := GetBufferSettings(tt.preset); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestConfigBuilder_LowMemoryBoundsSize(t *testing.T) {
	cfg := NewConfigBuilder().WithPreset(PresetLowMemory).Build()
	if cfg.MaxWidth != 1280 || cfg.MaxHeight != 720 {
		t.Errorf("expected 1280x720 bound, got %dx%d", cfg.MaxWidth, cfg.MaxHeight)
	}

	cfg = NewConfigBuilder().WithMaxSize(640, 0).WithPreset(PresetLowMemory).Build()
	if cfg.MaxWidth != 640 || cfg.MaxHeight != 0 {
		t.Errorf("explicit size must win, got %dx%d", cfg.MaxWidth, cfg.MaxHeight)
	}
}

func TestConfigBuilder_Constraints(t *testing.T) {
	cfg := NewConfigBuilder().
		WithLookaheadFrames(0).
		WithCorruptThreshold(-3).
		WithVolume(1.5).
		Build()

	if cfg.LookaheadFrames != 1 {
		t.Errorf("expected lookahead forced to 1, got %d", cfg.LookaheadFrames)
	}
	if cfg.CorruptThreshold != 0 {
		t.Errorf("expected threshold forced to 0, got %d", cfg.CorruptThreshold)
	}
	if cfg.Volume != 1 {
		t.Errorf("expected volume clamped to 1, got %v", cfg.Volume)
	}

	cfg = NewConfigBuilder().WithLookaheadFrames(6).WithFrameQueue(4).Build()
	if cfg.FrameQueue != 6 {
		t.Errorf("expected frame queue raised to lookahead, got %d", cfg.FrameQueue)
	}
	if err := cfg.ToPlayerOptions().Validate(); err != nil {
		t.Errorf("built options must validate: %v", err)
	}
}

func TestConfig_ToPlayerOptions(t *testing.T) {
	cfg := NewConfigBuilder().
		WithBackend(smartdecoder.BackendFFmpeg).
		WithFFmpegPath("/opt/ffmpeg").
		WithMaxSize(320, 240).
		WithVolume(0.25).
		Build()

	opts := cfg.ToPlayerOptions()
	want := playback.DefaultOptions()
	want.Volume = 0.25
	want.Decoder = smartdecoder.Options{
		Backend:    smartdecoder.BackendFFmpeg,
		FFmpegPath: "/opt/ffmpeg",
		MaxWidth:   320,
		MaxHeight:  240,
	}
	if opts != want {
		t.Errorf("expected %+v, got %+v", want, opts)
	}
}
