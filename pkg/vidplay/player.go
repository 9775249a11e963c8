package vidplay

import (
	"github.com/user/vidplay/pkg/adapters/logger"
	"github.com/user/vidplay/pkg/adapters/nullaudio"
	"github.com/user/vidplay/pkg/adapters/osfilesystem"
	"github.com/user/vidplay/pkg/adapters/realclock"
	"github.com/user/vidplay/pkg/playback"
	"github.com/user/vidplay/pkg/ports"
)

// NewPlayer creates a player running on wall-clock time. A nil log
// discards all messages.
func NewPlayer(cfg Config, log ports.Logger) *playback.Player {
	if log == nil {
		log = logger.NewNoop()
	}
	clock := realclock.New()

	var sink ports.AudioSink
	if cfg.Audio {
		sink = nullaudio.New(clock)
	}
	return playback.New(cfg.ToPlayerOptions(), clock, sink, log)
}

// File returns a source reading path from the local file system.
func File(path string) ports.Source {
	return osfilesystem.New().Source(path)
}
