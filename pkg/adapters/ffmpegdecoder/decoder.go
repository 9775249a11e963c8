// Package ffmpegdecoder decodes H.264 through a long-running ffmpeg process.
// Access units go in over stdin as single-sample MP4 fragments and come back
// as raw RGBA; ffmpeg's showinfo filter reports each picture's timestamp on
// stderr so pictures can be matched to the packets that produced them.
package ffmpegdecoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/vidplay/pkg/media"
	"github.com/user/vidplay/pkg/ports"
)

var (
	// ErrFFmpegNotFound is returned when no ffmpeg binary can be located.
	ErrFFmpegNotFound = errors.New("ffmpegdecoder: ffmpeg not found")

	// ErrNoParameterSets is returned when no SPS and PPS precede the first
	// picture.
	ErrNoParameterSets = errors.New("ffmpegdecoder: no sequence parameter set")

	errProcessExited = errors.New("ffmpegdecoder: ffmpeg exited")
	errNoPicture     = errors.New("no picture")
)

// fragmentTimescale is the track timescale of the fragments fed to ffmpeg.
const fragmentTimescale = 1_000_000

const errorTailLines = 8

var (
	stampPattern    = regexp.MustCompile(`\bn:\s*(\d+)\s+pts:\s*(\S+)`)
	timeBasePattern = regexp.MustCompile(`config in time_base:\s*(\d+)/(\d+)`)
)

// Options configures the decoder.
type Options struct {
	// FFmpegPath overrides the ffmpeg lookup.
	FFmpegPath string

	// MaxWidth and MaxHeight bound the output size; zero is unbounded.
	MaxWidth  int
	MaxHeight int

	// Threads is passed to ffmpeg's -threads; zero lets ffmpeg decide.
	Threads int
}

// stamp is one showinfo line. valid is false for NOPTS pictures.
type stamp struct {
	micros int64
	valid  bool
}

// Decoder implements ports.VideoDecoder for H.264.
type Decoder struct {
	opts   Options
	path   string
	config []byte

	sps    *SPS
	width  int
	height int

	started     bool
	sawKeyframe bool
	origin      time.Duration
	seq         uint32
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stderrDone  chan struct{}

	mu       sync.Mutex
	cond     *sync.Cond
	timeline *timeline
	ready    []*media.VideoFrame
	missed   []*media.DecodeError
	stamps   []stamp
	timeBase [2]int64
	errTail  []string
	logDone  bool
	readErr  error
	done     bool
}

// Ensure Decoder implements ports.VideoDecoder.
var _ ports.VideoDecoder = (*Decoder)(nil)

// New creates a decoder for a track. config holds the Annex B SPS/PPS from
// the sample entry and may be empty for streams with in-band parameter
// sets. The ffmpeg process starts with the first key frame.
func New(config []byte, opts Options) (*Decoder, error) {
	path, err := FindFFmpeg(opts.FFmpegPath)
	if err != nil {
		return nil, err
	}

	d := &Decoder{
		opts:     opts,
		path:     path,
		config:   config,
		timeBase: [2]int64{1, fragmentTimescale},
	}
	d.cond = sync.NewCond(&d.mu)

	if sps := findSPS(config); sps != nil {
		if d.sps, err = ParseSPS(sps); err != nil {
			return nil, fmt.Errorf("parse sps: %w", err)
		}
	}
	return d, nil
}

// SPS returns the parsed sequence parameter set, or nil before it is known.
func (d *Decoder) SPS() *SPS {
	return d.sps
}

// Decode feeds one access unit to ffmpeg and returns the pictures it has
// produced so far, in presentation order. Packets found to have produced
// no picture are reported in a *media.MissedFramesError alongside the
// frames.
func (d *Decoder) Decode(ctx context.Context, pkt media.Packet) ([]*media.VideoFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nalus, err := splitAVCC(pkt.Data)
	if err != nil || len(nalus) == 0 {
		if err == nil {
			err = errors.New("empty packet")
		}
		return nil, &media.DecodeError{Kind: media.KindVideo, PTS: pkt.PTS, Err: err}
	}

	if !d.sawKeyframe {
		if !pkt.Keyframe {
			return nil, media.ErrFrameDropped
		}
		d.sawKeyframe = true
	}

	if !d.started {
		if err := d.start(pkt, nalus); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	key, err := d.writeFragment(&buf, pkt)
	if err != nil {
		return nil, &media.DecodeError{Kind: media.KindVideo, PTS: pkt.PTS, Err: err}
	}

	d.mu.Lock()
	d.timeline.add(key, pkt.PTS, pkt.Duration)
	d.mu.Unlock()

	if _, err := d.stdin.Write(buf.Bytes()); err != nil {
		return nil, d.processError(err)
	}

	return d.collect(false)
}

// Flush closes ffmpeg's input and returns every remaining picture.
func (d *Decoder) Flush(ctx context.Context) ([]*media.VideoFrame, error) {
	if !d.started {
		return nil, nil
	}
	d.stdin.Close()

	waitDone := make(chan struct{})
	go func() {
		d.mu.Lock()
		for !d.done {
			d.cond.Wait()
		}
		d.mu.Unlock()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-ctx.Done():
		d.kill()
		<-waitDone
		return nil, ctx.Err()
	}

	d.mu.Lock()
	err := d.readErr
	d.mu.Unlock()
	if err != nil && !errors.Is(err, io.EOF) {
		frames, _ := d.collect(true)
		return frames, d.processError(err)
	}
	return d.collect(true)
}

// Close stops ffmpeg.
func (d *Decoder) Close() error {
	if !d.started {
		return nil
	}
	d.kill()
	d.mu.Lock()
	for !d.done {
		d.cond.Wait()
	}
	d.mu.Unlock()
	d.started = false
	return nil
}

func (d *Decoder) start(first media.Packet, nalus [][]byte) error {
	sps, pps := parameterSets(splitAnnexB(d.config))
	if len(sps) == 0 || len(pps) == 0 {
		sps, pps = parameterSets(nalus)
	}
	if len(sps) == 0 || len(pps) == 0 {
		return ErrNoParameterSets
	}
	if d.sps == nil {
		parsed, err := ParseSPS(sps[0])
		if err != nil {
			return fmt.Errorf("parse sps: %w", err)
		}
		d.sps = parsed
	}

	srcW, srcH := d.sps.Width(), d.sps.Height()
	if srcW <= 0 || srcH <= 0 {
		return fmt.Errorf("ffmpegdecoder: invalid picture size %dx%d", srcW, srcH)
	}
	d.width, d.height = media.FitSize(srcW, srcH, d.opts.MaxWidth, d.opts.MaxHeight)

	initSeg := mp4.CreateEmptyInit()
	initSeg.AddEmptyTrack(fragmentTimescale, "video", "und")
	if err := initSeg.Moov.Trak.SetAVCDescriptor("avc1", sps, pps, true); err != nil {
		return fmt.Errorf("ffmpegdecoder: sample entry: %w", err)
	}
	var header bytes.Buffer
	if err := initSeg.Encode(&header); err != nil {
		return fmt.Errorf("ffmpegdecoder: init segment: %w", err)
	}

	filter := "showinfo"
	if d.width != srcW || d.height != srcH {
		filter = fmt.Sprintf("scale=%d:%d,showinfo", d.width, d.height)
	}
	args := []string{
		"-hide_banner", "-nostats", "-loglevel", "level+info",
		"-fflags", "nobuffer",
		"-analyzeduration", "100000",
		"-copyts",
		"-f", "mov",
	}
	if d.opts.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(d.opts.Threads))
	}
	args = append(args,
		"-i", "pipe:0",
		"-vf", filter,
		"-fps_mode", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)

	cmd := exec.Command(d.path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	window := d.sps.MaxNumReorderFrames
	if window < 0 {
		window = 16
	}
	d.timeline = newTimeline(window)
	d.origin = first.DTS
	d.cmd = cmd
	d.stdin = stdin
	d.stderrDone = make(chan struct{})
	d.started = true
	go d.readLog(stderr)
	go d.readFrames(stdout)

	if _, err := stdin.Write(header.Bytes()); err != nil {
		return d.processError(err)
	}
	return nil
}

// writeFragment encodes pkt as a one-sample fragment and returns its
// presentation key in fragment timescale units.
func (d *Decoder) writeFragment(w io.Writer, pkt media.Packet) (int64, error) {
	decodeTime := (pkt.DTS - d.origin).Microseconds()
	if decodeTime < 0 {
		decodeTime = 0
	}
	key := (pkt.PTS - d.origin).Microseconds()

	d.seq++
	frag, err := mp4.CreateFragment(d.seq, 1)
	if err != nil {
		return 0, err
	}
	flags := mp4.NonSyncSampleFlags
	if pkt.Keyframe {
		flags = mp4.SyncSampleFlags
	}
	frag.AddFullSample(mp4.FullSample{
		Sample: mp4.Sample{
			Flags:                 flags,
			Dur:                   uint32(max(pkt.Duration.Microseconds(), 1)),
			Size:                  uint32(len(pkt.Data)),
			CompositionTimeOffset: int32(key - decodeTime),
		},
		DecodeTime: uint64(decodeTime),
		Data:       pkt.Data,
	})
	if err := frag.Encode(w); err != nil {
		return 0, err
	}
	return key, nil
}

// readLog collects showinfo timestamps and error lines from stderr.
func (d *Decoder) readLog(stderr io.Reader) {
	defer close(d.stderrDone)

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()

		d.mu.Lock()
		if m := stampPattern.FindStringSubmatch(line); m != nil {
			d.stamps = append(d.stamps, d.parseStamp(m[2]))
			d.cond.Broadcast()
		} else if m := timeBasePattern.FindStringSubmatch(line); m != nil {
			num, _ := strconv.ParseInt(m[1], 10, 64)
			den, _ := strconv.ParseInt(m[2], 10, 64)
			if num > 0 && den > 0 {
				d.timeBase = [2]int64{num, den}
			}
		} else if strings.Contains(line, "[error]") || strings.Contains(line, "[fatal]") || strings.Contains(line, "[panic]") {
			d.errTail = append(d.errTail, strings.TrimSpace(line))
			if len(d.errTail) > errorTailLines {
				d.errTail = d.errTail[len(d.errTail)-errorTailLines:]
			}
		}
		d.mu.Unlock()
	}

	d.mu.Lock()
	d.logDone = true
	d.cond.Broadcast()
	d.mu.Unlock()
}

// parseStamp converts a showinfo pts to microseconds. Called with mu held.
func (d *Decoder) parseStamp(s string) stamp {
	pts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return stamp{}
	}
	num, den := d.timeBase[0], d.timeBase[1]
	if num == 1 && den == fragmentTimescale {
		return stamp{micros: pts, valid: true}
	}
	micros := float64(pts) * float64(num) * 1e6 / float64(den)
	if micros < 0 {
		return stamp{micros: int64(micros - 0.5), valid: true}
	}
	return stamp{micros: int64(micros + 0.5), valid: true}
}

// readFrames reads fixed-size RGBA pictures until ffmpeg closes stdout and
// pairs each one with the packet it came from.
func (d *Decoder) readFrames(stdout io.Reader) {
	size := d.width * d.height * 4
	var err error
	for n := 0; ; n++ {
		pix := make([]byte, size)
		if _, err = io.ReadFull(stdout, pix); err != nil {
			break
		}
		img := &image.RGBA{Pix: pix, Stride: d.width * 4, Rect: image.Rect(0, 0, d.width, d.height)}

		d.mu.Lock()
		for len(d.stamps) <= n && !d.logDone {
			d.cond.Wait()
		}
		if n < len(d.stamps) && d.stamps[n].valid {
			entry, ok, missed := d.timeline.match(d.stamps[n].micros)
			d.addMissed(missed)
			if ok {
				d.ready = append(d.ready, media.NewVideoFrame(img, entry.pts, entry.duration))
			}
		}
		d.mu.Unlock()
	}

	<-d.stderrDone
	waitErr := d.cmd.Wait()

	d.mu.Lock()
	if errors.Is(err, io.ErrUnexpectedEOF) || waitErr != nil {
		d.readErr = errors.Join(errProcessExited, waitErr)
	} else {
		d.readErr = err
	}
	d.done = true
	d.cond.Broadcast()
	d.mu.Unlock()
}

// addMissed records timeline entries without a picture. Called with mu held.
func (d *Decoder) addMissed(entries []timelineEntry) {
	for _, e := range entries {
		d.missed = append(d.missed, &media.DecodeError{Kind: media.KindVideo, PTS: e.pts, Err: errNoPicture})
	}
}

// collect returns the pictures matched so far. At end of stream every
// packet still waiting counts as missed.
func (d *Decoder) collect(final bool) ([]*media.VideoFrame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if final {
		d.addMissed(d.timeline.drain())
	}
	frames := d.ready
	d.ready = nil
	if len(d.missed) == 0 {
		return frames, nil
	}
	missed := d.missed
	d.missed = nil
	return frames, &media.MissedFramesError{Missed: missed}
}

func (d *Decoder) processError(err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.errTail) > 0 {
		return fmt.Errorf("%w: %v: %s", errProcessExited, err, strings.Join(d.errTail, "; "))
	}
	return fmt.Errorf("%w: %v", errProcessExited, err)
}

func (d *Decoder) kill() {
	if d.stdin != nil {
		d.stdin.Close()
	}
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
}
