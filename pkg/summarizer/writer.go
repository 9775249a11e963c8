package summarizer

import (
	"fmt"

	"github.com/user/vidplay/pkg/ports"
)

// Writer writes formatted summaries through a FileSystem.
type Writer struct {
	formatter Formatter
	fs        ports.FileSystem
}

// NewWriter creates a Writer. A nil formatter selects one per path with
// ForPath.
func NewWriter(formatter Formatter, fs ports.FileSystem) *Writer {
	return &Writer{
		formatter: formatter,
		fs:        fs,
	}
}

// Write formats the summary and writes it to path.
func (w *Writer) Write(path string, summary *Summary) error {
	f := w.formatter
	if f == nil {
		f = ForPath(path)
	}

	if err := w.fs.WriteFile(path, []byte(f.Format(summary))); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	return nil
}
