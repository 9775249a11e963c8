package summarizer

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownFormatter renders a Summary as a Markdown report.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator translates headings and labels.
func WithTranslator(t func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.translate = t
	}
}

// WithVersion adds the tool version to the footer.
func WithVersion(version string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = version
	}
}

// NewMarkdownFormatter creates a formatter.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{
		translate: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ensure MarkdownFormatter implements Formatter.
var _ Formatter = (*MarkdownFormatter)(nil)

// Format renders the summary.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Playback Summary"))

	fmt.Fprintf(&b, "## %s\n\n", t("Source"))
	row := table(&b, t)
	row("File", "`"+s.Source.Name+"`")
	if s.Source.Size > 0 {
		row("Size", formatBytes(s.Source.Size))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Stream"))
	row = table(&b, t)
	format := s.Stream.Format
	if s.Stream.Fragmented {
		format += " (" + t("fragmented") + ")"
	}
	row("Container", format)
	row("Duration", formatMs(s.Stream.DurationMs, t))
	row("Video", fmt.Sprintf("%s %dx%d @ %.3f fps", s.Stream.VideoCodec, s.Stream.Width, s.Stream.Height, s.Stream.FrameRate))
	if s.Stream.AudioCodec != "" {
		row("Audio", fmt.Sprintf("%s %d Hz, %d ch", s.Stream.AudioCodec, s.Stream.SampleRate, s.Stream.Channels))
	} else {
		row("Audio", t("None"))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Playback"))
	row = table(&b, t)
	row("Result", f.result(s.Result))
	row("Decoder Backend", s.Playback.Backend)
	row("Frames Presented", fmt.Sprint(s.Playback.FramesPresented))
	row("Frames Dropped (late)", fmt.Sprint(s.Playback.FramesDroppedLate))
	row("Frames Undecodable", fmt.Sprint(s.Playback.FramesUndecodable))
	row("Decode Gaps", fmt.Sprint(s.Playback.DecodeGaps))
	row("Rebuffers", fmt.Sprint(s.Playback.Rebuffers))
	row("Packets", fmt.Sprint(s.Playback.Packets))
	row("Final Position", formatMs(s.Playback.PositionMs, t))
	row("Wall Time", formatMs(s.Playback.WallMs, t))
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Settings"))
	row = table(&b, t)
	backend := s.Settings.Backend
	if backend == "" {
		backend = t("auto")
	}
	row("Backend", backend)
	row("Corrupt Threshold", fmt.Sprint(s.Settings.CorruptThreshold))
	row("Lookahead Frames", fmt.Sprint(s.Settings.LookaheadFrames))
	if s.Settings.FrameQueue == 0 {
		row("Frame Queue", t("auto"))
	} else {
		row("Frame Queue", fmt.Sprint(s.Settings.FrameQueue))
	}
	if s.Settings.MaxWidth > 0 || s.Settings.MaxHeight > 0 {
		row("Max Size", fmt.Sprintf("%dx%d", s.Settings.MaxWidth, s.Settings.MaxHeight))
	}
	row("Volume", fmt.Sprintf("%.0f%%", s.Settings.Volume*100))
	if s.Settings.TickFPS > 0 {
		row("Host Tick Rate", fmt.Sprintf("%g fps", s.Settings.TickFPS))
	}
	b.WriteString("\n")

	b.WriteString("---\n\n")
	footer := fmt.Sprintf("%s %s", t("Generated at"), s.GeneratedAt.Format(time.RFC3339))
	if f.version != "" {
		footer += fmt.Sprintf(" (vidplay %s)", f.version)
	}
	b.WriteString(footer + "\n")

	return b.String()
}

func (f *MarkdownFormatter) result(r ResultInfo) string {
	switch {
	case r.Stopped:
		return f.translate("Stopped")
	case r.Completed && r.Error != "":
		return fmt.Sprintf("%s: %s", f.translate("Failed"), r.Error)
	case r.Completed:
		return f.translate("Completed")
	default:
		return f.translate("N/A")
	}
}

// table writes a two-column table header and returns a row writer.
func table(b *strings.Builder, t func(string) string) func(label, value string) {
	fmt.Fprintf(b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
	return func(label, value string) {
		fmt.Fprintf(b, "| %s | %s |\n", t(label), value)
	}
}

func formatMs(ms int, t func(string) string) string {
	if ms <= 0 {
		return t("N/A")
	}
	return fmt.Sprintf("%d ms", ms)
}

// formatBytes formats a byte count with binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 2; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMG"[exp])
}
