// Package summarizer builds and writes playback session reports.
package summarizer

import (
	"path/filepath"
	"strings"
)

// Formatter defines the interface for formatting a Summary.
type Formatter interface {
	// Format converts a Summary to a formatted string.
	Format(summary *Summary) string
}

// FormatFunc is a function adapter for the Formatter interface.
type FormatFunc func(summary *Summary) string

// Format implements the Formatter interface.
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// ForPath picks the formatter from the file extension: YAML for .yaml and
// .yml, Markdown otherwise.
func ForPath(path string, opts ...MarkdownOption) Formatter {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAMLFormatter{}
	default:
		return NewMarkdownFormatter(opts...)
	}
}
