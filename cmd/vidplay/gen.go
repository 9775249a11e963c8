package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/vidplay/pkg/adapters/ggrenderer"
	"github.com/user/vidplay/pkg/adapters/mp4writer"
	"github.com/user/vidplay/pkg/adapters/osfilesystem"
	"github.com/user/vidplay/pkg/testpattern"
)

func genCommand() *cli.Command {
	defaults := testpattern.DefaultOptions()

	return &cli.Command{
		Name:      "gen",
		Usage:     l10n.T("Generate a test pattern MP4 clip"),
		ArgsUsage: "OUTPUT",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Value: defaults.Duration, Usage: l10n.T("Clip duration")},
			&cli.Float64Flag{Name: "fps", Value: defaults.FPS, Usage: l10n.T("Frame rate")},
			&cli.IntFlag{Name: "width", Aliases: []string{"W"}, Value: defaults.Width, Usage: l10n.T("Frame width")},
			&cli.IntFlag{Name: "height", Aliases: []string{"H"}, Value: defaults.Height, Usage: l10n.T("Frame height")},
			&cli.IntFlag{Name: "quality", Value: defaults.Quality, Usage: l10n.T("JPEG quality (0-100)")},
			&cli.BoolFlag{Name: "audio", Usage: l10n.T("Add a sine tone audio track")},
			&cli.Float64Flag{Name: "tone", Value: defaults.ToneHz, Usage: l10n.T("Tone frequency in Hz")},
			&cli.IntSliceFlag{Name: "corrupt", Usage: l10n.T("Zero-based frame index to write as an undecodable sample (repeatable)")},
			&cli.BoolFlag{Name: "progressive", Usage: l10n.T("Write a single moov instead of fragments")},
			&cli.BoolFlag{Name: "moov-at-end", Usage: l10n.T("Place moov after mdat (implies --progressive)")},
			&cli.DurationFlag{Name: "fragment", Value: time.Second, Usage: l10n.T("Fragment duration")},
		},
		Action: runGen,
	}
}

func runGen(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New(l10n.T("An output file argument is required"))
	}
	out := c.Args().First()

	opts := testpattern.DefaultOptions()
	opts.Duration = c.Duration("duration")
	opts.FPS = c.Float64("fps")
	opts.Width = c.Int("width")
	opts.Height = c.Int("height")
	opts.Quality = c.Int("quality")
	opts.Audio = c.Bool("audio")
	opts.ToneHz = c.Float64("tone")
	opts.CorruptFrames = c.IntSlice("corrupt")
	opts.Fragmented = !c.Bool("progressive") && !c.Bool("moov-at-end")

	if opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 {
		return fmt.Errorf("%s: %dx%d@%v", l10n.T("Invalid clip geometry"), opts.Width, opts.Height, opts.FPS)
	}

	wopts := []mp4writer.Option{mp4writer.WithFragmentDuration(c.Duration("fragment"))}
	if c.Bool("moov-at-end") {
		wopts = append(wopts, mp4writer.WithMoovAtEnd())
	}

	data, err := testpattern.New(ggrenderer.New(), mp4writer.New(wopts...)).Generate(c.Context, opts)
	if err != nil {
		return err
	}
	if err := osfilesystem.New().WriteFile(out, data); err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, l10n.F("Wrote %d frames to %s", opts.FrameCount(), out))
	return nil
}
