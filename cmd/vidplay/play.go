package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/user/vidplay/pkg/adapters/filesink"
	"github.com/user/vidplay/pkg/adapters/ggrenderer"
	"github.com/user/vidplay/pkg/adapters/logger"
	"github.com/user/vidplay/pkg/adapters/nullaudio"
	"github.com/user/vidplay/pkg/adapters/osfilesystem"
	"github.com/user/vidplay/pkg/adapters/realclock"
	"github.com/user/vidplay/pkg/config"
	"github.com/user/vidplay/pkg/framedump"
	"github.com/user/vidplay/pkg/media"
	"github.com/user/vidplay/pkg/playback"
	"github.com/user/vidplay/pkg/ports"
	"github.com/user/vidplay/pkg/summarizer"
)

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     l10n.T("Play a video file in a headless render loop"),
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: l10n.T("YAML configuration file"), Category: l10n.T("Configuration")},
			&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Usage: l10n.T("Decoder backend (auto, software, ffmpeg)"), Category: l10n.T("Decoding")},
			&cli.StringFlag{Name: "ffmpeg-path", Usage: l10n.T("Path to the ffmpeg executable"), Category: l10n.T("Decoding")},
			&cli.IntFlag{Name: "max-width", Usage: l10n.T("Maximum decoded width (0 = source width)"), Category: l10n.T("Decoding")},
			&cli.IntFlag{Name: "max-height", Usage: l10n.T("Maximum decoded height (0 = source height)"), Category: l10n.T("Decoding")},
			&cli.IntFlag{Name: "corrupt-threshold", Usage: l10n.T("Consecutive undecodable packets tolerated"), Category: l10n.T("Playback")},
			&cli.IntFlag{Name: "frame-queue", Usage: l10n.T("Decoded frame queue size (0 = sized from free memory)"), Category: l10n.T("Playback")},
			&cli.Float64Flag{Name: "tick-fps", Usage: l10n.T("Host render loop rate"), Category: l10n.T("Playback")},
			&cli.Float64Flag{Name: "volume", Usage: l10n.T("Initial volume (0-1)"), Category: l10n.T("Audio")},
			&cli.BoolFlag{Name: "mute", Usage: l10n.T("Start muted"), Category: l10n.T("Audio")},
			&cli.BoolFlag{Name: "no-audio", Usage: l10n.T("Ignore the audio track"), Category: l10n.T("Audio")},
			&cli.StringFlag{Name: "dump-dir", Usage: l10n.T("Directory to save presented frames"), Category: l10n.T("Debug")},
			&cli.IntFlag{Name: "dump-every", Usage: l10n.T("Save one frame out of N"), Category: l10n.T("Debug")},
			&cli.StringFlag{Name: "summary", Aliases: []string{"s"}, Usage: l10n.T("Output playback summary to file (Markdown, or YAML for .yaml)"), Category: l10n.T("Output")},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: l10n.T("Log level (debug, info, warn, error, quiet)"), Category: l10n.T("Logging")},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: l10n.T("Suppress all log output"), Category: l10n.T("Logging")},
		},
		Action: runPlay,
	}
}

// loadConfig merges the configuration file with the flags given on the
// command line.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return cfg, err
		}
	}

	if c.IsSet("backend") {
		cfg.Backend = c.String("backend")
	}
	if c.IsSet("ffmpeg-path") {
		cfg.FFmpegPath = c.String("ffmpeg-path")
	}
	if c.IsSet("max-width") {
		cfg.MaxWidth = c.Int("max-width")
	}
	if c.IsSet("max-height") {
		cfg.MaxHeight = c.Int("max-height")
	}
	if c.IsSet("corrupt-threshold") {
		cfg.CorruptThreshold = c.Int("corrupt-threshold")
	}
	if c.IsSet("frame-queue") {
		cfg.FrameQueue = c.Int("frame-queue")
	}
	if c.IsSet("tick-fps") {
		cfg.TickFPS = c.Float64("tick-fps")
	}
	if c.IsSet("volume") {
		cfg.Volume = float32(c.Float64("volume"))
	}
	if c.IsSet("mute") {
		cfg.Mute = c.Bool("mute")
	}
	if c.IsSet("dump-dir") {
		cfg.DumpDir = c.String("dump-dir")
	}
	if c.IsSet("dump-every") {
		cfg.DumpEvery = c.Int("dump-every")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.Bool("quiet") {
		cfg.LogLevel = "quiet"
	}

	return cfg, cfg.Validate()
}

func runPlay(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New(l10n.T("A video file argument is required"))
	}
	path := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	opts, err := cfg.ToPlayerOptions()
	if err != nil {
		return err
	}

	level, _ := ports.ParseLogLevel(cfg.LogLevel)
	log := logger.NewWriter(level, c.App.Writer, c.App.ErrWriter)
	if c.App.Writer == os.Stdout {
		log = logger.NewConsole(level)
	}
	if level == ports.LevelDebug {
		log.WithElapsed()
	}
	fs := osfilesystem.New()
	renderer := ggrenderer.New()
	clock := realclock.New()

	var sink ports.AudioSink
	if !c.Bool("no-audio") {
		sink = nullaudio.New(clock)
	}
	player := playback.New(opts, clock, sink, log)
	defer player.Dispose()

	player.SetOnVideoSizeListener(func(w, h int) {
		log.Info("Video size %dx%d", w, h)
	})

	src := fs.Source(path)
	started := time.Now()
	if err := player.Play(src); err != nil {
		return err
	}
	info, _ := player.Info()

	onFrame := func(*media.VideoFrame, time.Duration) {}
	if cfg.DumpDir != "" {
		dumper := startDump(cfg, info, fs, renderer, log)
		defer func() {
			if err := dumper.Close(); err != nil {
				log.Warn("Failed to save frames: %v", err)
			}
		}()
		onFrame = dumper.Submit
	}

	completed, playErr := runHost(c.Context, player, cfg.TickFPS, onFrame)

	if !completed {
		log.Info("Interrupted, stopping playback")
	}

	if summaryPath := c.String("summary"); summaryPath != "" {
		summary := buildSummary(src, info, player.Stats(), cfg, completed, playErr, time.Since(started))
		formatter := summarizer.ForPath(summaryPath,
			summarizer.WithTranslator(l10n.T),
			summarizer.WithVersion(version),
		)
		writer := summarizer.NewWriter(formatter, fs)
		if err := writer.Write(summaryPath, summary); err != nil {
			log.Error("Failed to write summary: %v", err)
		} else {
			log.Info("Summary saved to %s", summaryPath)
		}
	}

	return playErr
}

// startDump saves the stream metadata and starts the frame dumper.
func startDump(cfg config.Config, info media.StreamInfo, fs ports.FileSystem, renderer ports.Renderer, log ports.Logger) *framedump.Dumper {
	var sinkOpts []filesink.Option
	if cfg.DumpJPEG > 0 {
		sinkOpts = append(sinkOpts, filesink.WithJPEG(cfg.DumpJPEG))
	}
	sink := filesink.New(cfg.DumpDir, fs, renderer, sinkOpts...)

	if data, err := yaml.Marshal(info); err == nil {
		if err := sink.SaveStreamInfo(data); err != nil {
			log.Warn("Failed to save stream info: %v", err)
		}
	}

	opts := cfg.ToDumpOptions()
	opts.Duration = info.Duration
	return framedump.New(renderer, sink, log.WithComponent("dump"), opts)
}

// runHost drives the player like a game render loop: one GetTexture per
// tick until the completion listener fires or ctx is cancelled. It reports
// whether playback completed and the completion error.
func runHost(ctx context.Context, p *playback.Player, tickFPS float64, onFrame func(*media.VideoFrame, time.Duration)) (bool, error) {
	done := make(chan error, 1)
	p.SetOnCompletionListener(func(_ string, err error) {
		done <- err
	})

	ticker := time.NewTicker(time.Duration(float64(time.Second) / tickFPS))
	defer ticker.Stop()

	var last *media.VideoFrame
	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return false, nil
		case err := <-done:
			return true, err
		case <-ticker.C:
		}

		frame := p.GetTexture()
		if frame != nil && frame != last {
			last = frame
			onFrame(frame, time.Duration(p.GetCurrentTimestamp())*time.Millisecond)
		}
	}
}

func buildSummary(src ports.FileSource, info media.StreamInfo, stats playback.Stats, cfg config.Config, completed bool, playErr error, wall time.Duration) *summarizer.Summary {
	var size int64
	if r, n, err := src.Open(); err == nil {
		size = n
		r.Close()
	}

	stream := summarizer.StreamInfo{
		Format:     info.Format,
		Fragmented: info.Fragmented,
		DurationMs: int(info.Duration.Milliseconds()),
		VideoCodec: info.Video.Codec,
		Width:      info.Video.Width,
		Height:     info.Video.Height,
		FrameRate:  info.Video.FrameRate,
	}
	if info.Audio != nil {
		stream.AudioCodec = info.Audio.Codec
		stream.SampleRate = info.Audio.SampleRate
		stream.Channels = info.Audio.Channels
	}

	opts, _ := cfg.ToPlayerOptions()
	b := summarizer.NewBuilder().
		WithSource(src.Name(), size).
		WithStream(stream).
		WithPlayback(summarizer.PlaybackInfo{
			Backend:           stats.Backend,
			FramesPresented:   stats.FramesPresented,
			FramesDroppedLate: stats.FramesDroppedLate,
			FramesUndecodable: stats.FramesUndecodable,
			DecodeGaps:        stats.DecodeGaps,
			Rebuffers:         stats.Rebuffers,
			Packets:           stats.Packets,
			PositionMs:        int(stats.Position.Milliseconds()),
			WallMs:            int(wall.Milliseconds()),
		}).
		WithSettings(summarizer.Settings{
			Backend:          cfg.Backend,
			CorruptThreshold: opts.CorruptThreshold,
			LookaheadFrames:  opts.LookaheadFrames,
			FrameQueue:       opts.FrameQueue,
			MaxWidth:         cfg.MaxWidth,
			MaxHeight:        cfg.MaxHeight,
			Volume:           opts.Volume,
			TickFPS:          cfg.TickFPS,
		})
	if completed {
		b.WithCompletion(playErr)
	} else {
		b.WithStopped()
	}
	return b.Build()
}
