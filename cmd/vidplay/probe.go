package main

import (
	"errors"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/user/vidplay/pkg/adapters/mp4demuxer"
	"github.com/user/vidplay/pkg/adapters/osfilesystem"
)

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     l10n.T("Print container and track metadata as YAML"),
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New(l10n.T("A video file argument is required"))
			}

			info, err := mp4demuxer.Probe(osfilesystem.New().Source(c.Args().First()))
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(c.App.Writer)
			enc.SetIndent(2)
			if err := enc.Encode(info); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
