// Package filesink provides a file-based debug sink implementation.
package filesink

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/user/vidplay/pkg/ports"
)

// Sink saves debug output to files.
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer
	format   ports.ImageFormat
	quality  int
}

// Option configures a Sink.
type Option func(*Sink)

// WithJPEG stores frames as JPEG at the given quality instead of PNG.
func WithJPEG(quality int) Option {
	return func(s *Sink) {
		s.format = ports.FormatJPEG
		s.quality = quality
	}
}

// New creates a new FileSink.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer, opts ...Option) *Sink {
	s := &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
		format:   ports.FormatPNG,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// SaveStreamInfo saves the stream metadata as stream.yaml.
func (s *Sink) SaveStreamInfo(data []byte) error {
	path := filepath.Join(s.baseDir, "stream.yaml")
	return s.fs.WriteFile(path, data)
}

// SaveFrame saves a presented frame under frames/.
func (s *Sink) SaveFrame(index int, img image.Image) error {
	dir := filepath.Join(s.baseDir, "frames")
	if err := s.fs.MkdirAll(dir); err != nil {
		return err
	}
	data, err := s.renderer.EncodeImage(img, s.format, s.quality)
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", index, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("frame-%04d.%s", index, s.format))
	return s.fs.WriteFile(path, data)
}

// Ensure Sink implements ports.DebugSink
var _ ports.DebugSink = (*Sink)(nil)
