package playback

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/vidplay/pkg/adapters/ggrenderer"
	"github.com/user/vidplay/pkg/adapters/logger"
	"github.com/user/vidplay/pkg/adapters/mp4writer"
	"github.com/user/vidplay/pkg/adapters/nullaudio"
	"github.com/user/vidplay/pkg/adapters/smartdecoder"
	"github.com/user/vidplay/pkg/media"
	"github.com/user/vidplay/pkg/mocks"
	"github.com/user/vidplay/pkg/ports"
	"github.com/user/vidplay/pkg/testpattern"
)

const tick = time.Second / 30

func clipOptions() testpattern.Options {
	opts := testpattern.DefaultOptions()
	opts.Width = 64
	opts.Height = 48
	return opts
}

func makeClip(t *testing.T, opts testpattern.Options) []byte {
	t.Helper()
	gen := testpattern.New(ggrenderer.New(), mp4writer.New())
	data, err := gen.Generate(context.Background(), opts)
	require.NoError(t, err)
	return data
}

func newTestPlayer(sink ports.AudioSink) (*Player, *mocks.Clock) {
	clock := mocks.NewClock(time.Unix(1000, 0))
	return New(DefaultOptions(), clock, sink, logger.NewNoop()), clock
}

// completion records completion listener calls.
type completion struct {
	calls  int
	source string
	err    error
}

func (c *completion) listen(p *Player) {
	p.SetOnCompletionListener(func(source string, err error) {
		c.calls++
		c.source = source
		c.err = err
	})
}

// drive runs a host render loop: one GetTexture per tick, with the clock
// advanced by one frame interval while Playing. Buffering gives the
// workers real time to catch up without moving the playback clock. It
// returns the distinct frames in the order they were first returned.
func drive(t *testing.T, p *Player, clock *mocks.Clock, maxTicks int) []*media.VideoFrame {
	t.Helper()
	var frames []*media.VideoFrame
	var last *media.VideoFrame
	deadline := time.Now().Add(20 * time.Second)

	for ticks := 0; ticks < maxTicks; {
		f := p.GetTexture()
		if f != nil && f != last {
			frames = append(frames, f)
			last = f
		}

		switch p.State() {
		case StateFinished, StateStopped, StateDisposed:
			return frames
		case StatePlaying:
			clock.Advance(tick)
			ticks++
		default:
			time.Sleep(time.Millisecond)
		}
		require.False(t, time.Now().After(deadline), "render loop timed out in %s", p.State())
	}
	return frames
}

// driveRealtime is drive for sessions with audio. The audio renderer runs
// on its own goroutine, so every tick yields real time for it to write
// and move the playback clock. It runs until done returns true.
func driveRealtime(t *testing.T, p *Player, clock *mocks.Clock, done func() bool) []*media.VideoFrame {
	t.Helper()
	var frames []*media.VideoFrame
	var last *media.VideoFrame
	deadline := time.Now().Add(20 * time.Second)

	for !done() {
		f := p.GetTexture()
		if f != nil && f != last {
			frames = append(frames, f)
			last = f
		}
		if p.State() == StatePlaying {
			clock.Advance(tick)
		}
		time.Sleep(time.Millisecond)
		require.False(t, time.Now().After(deadline), "render loop timed out in %s", p.State())
	}
	return frames
}

func finished(p *Player) func() bool {
	return func() bool { return p.State() == StateFinished }
}

// waitPlaying polls until the player leaves Buffering.
func waitPlaying(t *testing.T, p *Player) {
	t.Helper()
	require.Eventually(t, p.IsPlaying, 10*time.Second, time.Millisecond)
}

func requireIncreasing(t *testing.T, frames []*media.VideoFrame) {
	t.Helper()
	for i := 1; i < len(frames); i++ {
		require.Greater(t, frames[i].PTS, frames[i-1].PTS, "frame %d", i)
	}
}

func TestPlayer_TwoSecondClip(t *testing.T) {
	p, clock := newTestPlayer(nil)
	defer p.Dispose()
	var done completion
	done.listen(p)

	var sizeW, sizeH int
	p.SetOnVideoSizeListener(func(w, h int) { sizeW, sizeH = w, h })

	src := mocks.NewSource("clip.mp4", makeClip(t, clipOptions()))
	require.NoError(t, p.Play(src))
	assert.Equal(t, 64, sizeW)
	assert.Equal(t, 48, sizeH)
	assert.Equal(t, 64, p.GetVideoWidth())
	assert.Equal(t, 48, p.GetVideoHeight())

	frames := drive(t, p, clock, 200)

	require.Len(t, frames, 60)
	requireIncreasing(t, frames)
	assert.Equal(t, time.Duration(0), frames[0].PTS)
	assert.InDelta(t, 1967, frames[59].TimestampMs(), 1)

	assert.Equal(t, 1, done.calls)
	assert.Equal(t, "clip.mp4", done.source)
	assert.NoError(t, done.err)
	assert.False(t, p.IsPlaying())
	assert.Equal(t, StateFinished, p.State())
	assert.InDelta(t, 2000, p.GetCurrentTimestamp(), 34)

	// The last frame stays on screen; polling does not complete again.
	assert.Same(t, frames[59], p.GetTexture())
	p.Update()
	assert.Equal(t, 1, done.calls)

	stats := p.Stats()
	assert.Equal(t, 60, stats.FramesPresented)
	assert.Equal(t, 0, stats.FramesDroppedLate)
	assert.Equal(t, 0, stats.DecodeGaps)
	assert.Equal(t, "software", stats.Backend)
	assert.Equal(t, 0, src.OpenReaders())
}

func TestPlayer_ReplayAfterFinish(t *testing.T) {
	p, clock := newTestPlayer(nil)
	defer p.Dispose()
	var done completion
	done.listen(p)

	opts := clipOptions()
	opts.Duration = 500 * time.Millisecond
	src := mocks.NewSource("short.mp4", makeClip(t, opts))

	for i := 1; i <= 2; i++ {
		require.NoError(t, p.Play(src))
		frames := drive(t, p, clock, 100)
		assert.Len(t, frames, 15)
		assert.Equal(t, i, done.calls)
	}
	assert.Equal(t, 2, src.Opens())
	assert.Equal(t, 0, src.OpenReaders())
}

func TestPlayer_PauseResumeKeepsClock(t *testing.T) {
	p, clock := newTestPlayer(nil)
	defer p.Dispose()

	require.NoError(t, p.Play(mocks.NewSource("clip.mp4", makeClip(t, clipOptions()))))
	waitPlaying(t, p)
	drive(t, p, clock, 10)
	waitPlaying(t, p)

	before := p.GetCurrentTimestamp()
	p.Pause()
	assert.Equal(t, StatePaused, p.State())
	assert.False(t, p.IsPlaying())

	clock.Advance(5 * time.Second)
	p.Update()
	assert.Equal(t, before, p.GetCurrentTimestamp())
	frame := p.GetTexture()
	require.NotNil(t, frame)

	// Resume only applies to Paused, Pause only to Playing.
	p.Pause()
	assert.Equal(t, StatePaused, p.State())

	p.Resume()
	assert.InDelta(t, before, p.GetCurrentTimestamp(), float64(tick.Milliseconds()+1))
	assert.NotEqual(t, StatePaused, p.State())
}

func TestPlayer_StopIsIdempotent(t *testing.T) {
	p, clock := newTestPlayer(nil)
	defer p.Dispose()
	var done completion
	done.listen(p)

	src := mocks.NewSource("clip.mp4", makeClip(t, clipOptions()))
	require.NoError(t, p.Play(src))
	drive(t, p, clock, 5)

	assert.NotPanics(t, p.Stop)
	assert.NotPanics(t, p.Stop)

	assert.Equal(t, StateStopped, p.State())
	assert.Nil(t, p.GetTexture())
	assert.False(t, p.IsBuffered())
	assert.Equal(t, 0, p.GetCurrentTimestamp())
	assert.Equal(t, 0, p.GetVideoWidth())
	assert.Equal(t, 1, src.Opens())
	assert.Equal(t, 0, src.OpenReaders())

	clock.Advance(10 * time.Second)
	p.Update()
	assert.Equal(t, 0, done.calls, "no completion after Stop")
}

func TestPlayer_StopAfterFinish(t *testing.T) {
	p, clock := newTestPlayer(nil)
	defer p.Dispose()

	opts := clipOptions()
	opts.Duration = 500 * time.Millisecond
	src := mocks.NewSource("short.mp4", makeClip(t, opts))
	require.NoError(t, p.Play(src))
	drive(t, p, clock, 100)
	require.Equal(t, StateFinished, p.State())
	require.NotNil(t, p.GetTexture(), "the last frame is held in Finished")

	assert.NotPanics(t, p.Stop)
	assert.Equal(t, StateStopped, p.State())
	assert.Nil(t, p.GetTexture())
	assert.Equal(t, 15, p.Stats().FramesPresented, "stats survive Stop")
	assert.Equal(t, 0, src.OpenReaders())

	require.NoError(t, p.Play(src))
	assert.NotPanics(t, p.Dispose)
	assert.Equal(t, StateDisposed, p.State())
	assert.Equal(t, 0, src.OpenReaders())
}

func TestPlayer_StopWhileQueuesFull(t *testing.T) {
	p, _ := newTestPlayer(nil)
	defer p.Dispose()

	src := mocks.NewSource("clip.mp4", makeClip(t, clipOptions()))
	require.NoError(t, p.Play(src))
	waitPlaying(t, p)

	// Never advancing the clock lets the workers fill every queue.
	time.Sleep(50 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, 0, src.OpenReaders())
}

func TestPlayer_PlayErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   *mocks.Source
		check func(t *testing.T, err error)
	}{
		{
			name: "missing file",
			src:  mocks.MissingSource("missing.mp4"),
			check: func(t *testing.T, err error) {
				var nf *media.NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "missing.mp4", nf.Source)
			},
		},
		{
			name: "not a container",
			src:  mocks.NewSource("notes.txt", []byte("this is not a video file at all")),
			check: func(t *testing.T, err error) {
				var ce *media.ContainerError
				require.ErrorAs(t, err, &ce)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPlayer(nil)
			defer p.Dispose()
			var done completion
			done.listen(p)

			err := p.Play(tt.src)
			tt.check(t, err)
			assert.Equal(t, StateStopped, p.State())
			assert.Nil(t, p.GetTexture())
			assert.Equal(t, 0, tt.src.OpenReaders())
			assert.Equal(t, 0, done.calls)
		})
	}
}

func TestPlayer_AlreadyPlaying(t *testing.T) {
	p, _ := newTestPlayer(nil)
	defer p.Dispose()

	src := mocks.NewSource("clip.mp4", makeClip(t, clipOptions()))
	require.NoError(t, p.Play(src))

	err := p.Play(src)
	assert.ErrorIs(t, err, media.ErrAlreadyPlaying)
	assert.Equal(t, 1, src.Opens())

	waitPlaying(t, p)
	p.Pause()
	assert.ErrorIs(t, p.Play(src), media.ErrAlreadyPlaying)
}

func TestPlayer_Dispose(t *testing.T) {
	p, _ := newTestPlayer(nil)
	var done completion
	done.listen(p)

	src := mocks.NewSource("clip.mp4", makeClip(t, clipOptions()))
	require.NoError(t, p.Play(src))
	waitPlaying(t, p)

	p.Dispose()
	p.Dispose()

	assert.Equal(t, StateDisposed, p.State())
	assert.Nil(t, p.GetTexture())
	assert.False(t, p.IsPlaying())
	assert.ErrorIs(t, p.Play(src), media.ErrDisposed)
	assert.Equal(t, 0, src.OpenReaders())
	assert.Equal(t, 0, done.calls)

	// Calls after Dispose are harmless.
	p.Pause()
	p.Resume()
	p.Stop()
	p.SetOnCompletionListener(func(string, error) { t.Error("listener set after Dispose") })
	assert.Equal(t, StateDisposed, p.State())
}

func TestPlayer_CorruptFrameIsSkipped(t *testing.T) {
	p, clock := newTestPlayer(nil)
	defer p.Dispose()
	var done completion
	done.listen(p)

	opts := clipOptions()
	opts.CorruptFrames = []int{30}
	require.NoError(t, p.Play(mocks.NewSource("clip.mp4", makeClip(t, opts))))

	frames := drive(t, p, clock, 200)

	assert.Len(t, frames, 59)
	requireIncreasing(t, frames)
	assert.Equal(t, 1, done.calls)
	assert.NoError(t, done.err)
	assert.Equal(t, 1, p.Stats().DecodeGaps)
}

func TestPlayer_CorruptRunEndsSession(t *testing.T) {
	p, clock := newTestPlayer(nil)
	defer p.Dispose()
	var done completion
	done.listen(p)

	opts := clipOptions()
	opts.CorruptFrames = []int{30, 31, 32, 33, 34, 35, 36}
	require.NoError(t, p.Play(mocks.NewSource("clip.mp4", makeClip(t, opts))))

	frames := drive(t, p, clock, 200)

	require.Equal(t, 1, done.calls)
	var sc *media.StreamCorruptError
	require.ErrorAs(t, done.err, &sc)
	assert.Equal(t, media.KindVideo, sc.Kind)
	assert.Equal(t, 6, sc.Consecutive)
	assert.Equal(t, StateFinished, p.State())
	assert.LessOrEqual(t, len(frames), 30)
}

func TestPlayer_ThresholdIsConfigurable(t *testing.T) {
	clock := mocks.NewClock(time.Unix(0, 0))
	opts := DefaultOptions()
	opts.CorruptThreshold = 7
	p := New(opts, clock, nil, logger.NewNoop())
	defer p.Dispose()
	var done completion
	done.listen(p)

	clip := clipOptions()
	clip.CorruptFrames = []int{30, 31, 32, 33, 34, 35, 36}
	require.NoError(t, p.Play(mocks.NewSource("clip.mp4", makeClip(t, clip))))

	frames := drive(t, p, clock, 200)
	assert.Len(t, frames, 53)
	assert.NoError(t, done.err)
	assert.Equal(t, 7, p.Stats().DecodeGaps)
}

func TestPlayer_TruncatedTail(t *testing.T) {
	p, clock := newTestPlayer(nil)
	defer p.Dispose()
	var done completion
	done.listen(p)

	data := makeClip(t, clipOptions())
	require.NoError(t, p.Play(mocks.NewSource("cut.mp4", data[:len(data)-200])))

	frames := drive(t, p, clock, 200)

	assert.Len(t, frames, 30)
	requireIncreasing(t, frames)
	require.Equal(t, 1, done.calls)
	var te *media.TruncatedStreamError
	assert.ErrorAs(t, done.err, &te)
}

func TestPlayer_WithAudio(t *testing.T) {
	clock := mocks.NewClock(time.Unix(0, 0))
	p := New(DefaultOptions(), clock, nullaudio.New(clock), logger.NewNoop())
	defer p.Dispose()
	var done completion
	done.listen(p)

	opts := clipOptions()
	opts.Audio = true
	require.NoError(t, p.Play(mocks.NewSource("tone.mp4", makeClip(t, opts))))

	frames := driveRealtime(t, p, clock, finished(p))

	require.Equal(t, 1, done.calls)
	assert.NoError(t, done.err)
	requireIncreasing(t, frames)
	assert.NotEmpty(t, frames)
	assert.GreaterOrEqual(t, p.GetCurrentTimestamp(), 1966)
}

func TestPlayer_PauseWithAudioClock(t *testing.T) {
	clock := mocks.NewClock(time.Unix(0, 0))
	p := New(DefaultOptions(), clock, nullaudio.New(clock), logger.NewNoop())
	defer p.Dispose()
	var done completion
	done.listen(p)

	opts := clipOptions()
	opts.Audio = true
	require.NoError(t, p.Play(mocks.NewSource("tone.mp4", makeClip(t, opts))))
	driveRealtime(t, p, clock, func() bool { return p.GetCurrentTimestamp() >= 300 })
	waitPlaying(t, p)

	p.Pause()
	require.Equal(t, StatePaused, p.State())
	before := p.GetCurrentTimestamp()
	frame := p.GetTexture()

	// Time passes for the sink too; a block it was playing may finish.
	clock.Advance(5 * time.Second)
	time.Sleep(50 * time.Millisecond)
	p.Update()
	assert.Equal(t, before, p.GetCurrentTimestamp())
	assert.Same(t, frame, p.GetTexture())

	p.Resume()
	after := p.GetCurrentTimestamp()
	assert.GreaterOrEqual(t, after, before)
	assert.LessOrEqual(t, after, before+100, "resume continues from the paused position")

	driveRealtime(t, p, clock, finished(p))
	require.Equal(t, 1, done.calls)
	assert.NoError(t, done.err)
}

func TestPlayer_Volume(t *testing.T) {
	var mu sync.Mutex
	var peak float32
	sink := &mocks.AudioSink{WriteFunc: func(ctx context.Context, samples []float32) error {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range samples {
			peak = max(peak, s, -s)
		}
		return nil
	}}

	p, clock := newTestPlayer(sink)
	defer p.Dispose()

	p.SetVolume(2)
	assert.Equal(t, float32(1), p.GetVolume())
	p.SetVolume(-1)
	assert.Equal(t, float32(0), p.GetVolume())

	opts := clipOptions()
	opts.Audio = true
	require.NoError(t, p.Play(mocks.NewSource("tone.mp4", makeClip(t, opts))))
	driveRealtime(t, p, clock, finished(p))

	assert.Greater(t, sink.Written(), 0)
	mu.Lock()
	assert.Equal(t, float32(0), peak, "muted output must be silent")
	mu.Unlock()
	assert.Equal(t, 48000, sink.SampleRate)
	assert.True(t, sink.Closed)
}

func TestPlayer_IsBufferedEventually(t *testing.T) {
	p, _ := newTestPlayer(nil)
	defer p.Dispose()

	require.NoError(t, p.Play(mocks.NewSource("clip.mp4", makeClip(t, clipOptions()))))
	require.Eventually(t, p.IsBuffered, 10*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return p.GetTexture() != nil }, 10*time.Second, time.Millisecond)
	assert.True(t, p.IsBuffered())
}

func TestPlayer_ListenerSlots(t *testing.T) {
	p, clock := newTestPlayer(nil)
	defer p.Dispose()

	var first, second int
	p.SetOnCompletionListener(func(string, error) { first++ })
	p.SetOnCompletionListener(func(string, error) { second++ })
	p.SetOnVideoSizeListener(nil)

	opts := clipOptions()
	opts.Duration = 300 * time.Millisecond
	require.NoError(t, p.Play(mocks.NewSource("clip.mp4", makeClip(t, opts))))
	drive(t, p, clock, 100)

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)

	// No listener: completion is a no-op.
	p.SetOnCompletionListener(nil)
	require.NoError(t, p.Play(mocks.NewSource("clip.mp4", makeClip(t, opts))))
	drive(t, p, clock, 100)
	assert.Equal(t, StateFinished, p.State())
}

// fakeDemuxer serves a fixed packet list.
type fakeDemuxer struct {
	info    media.StreamInfo
	packets []media.Packet
	closed  int
}

func (d *fakeDemuxer) Info() media.StreamInfo { return d.info }

func (d *fakeDemuxer) ReadPacket(ctx context.Context) (media.Packet, error) {
	if err := ctx.Err(); err != nil {
		return media.Packet{}, err
	}
	if len(d.packets) == 0 {
		return media.Packet{}, io.EOF
	}
	pkt := d.packets[0]
	d.packets = d.packets[1:]
	return pkt, nil
}

func (d *fakeDemuxer) Close() error {
	d.closed++
	return nil
}

// decodeOrderDecoder emits one tiny frame per packet, in packet order.
type decodeOrderDecoder struct{}

func (decodeOrderDecoder) Decode(ctx context.Context, pkt media.Packet) ([]*media.VideoFrame, error) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	return []*media.VideoFrame{media.NewVideoFrame(img, pkt.PTS, pkt.Duration)}, nil
}

func (decodeOrderDecoder) Flush(ctx context.Context) ([]*media.VideoFrame, error) { return nil, nil }
func (decodeOrderDecoder) Close() error                                          { return nil }

func TestPlayer_ReordersBFrames(t *testing.T) {
	p, clock := newTestPlayer(nil)
	defer p.Dispose()
	var done completion
	done.listen(p)

	// I P B B P B B in decode order.
	var packets []media.Packet
	for i, ms := range []int{0, 100, 33, 66, 200, 133, 166} {
		packets = append(packets, media.Packet{
			Kind:     media.KindVideo,
			DTS:      time.Duration(i) * tick,
			PTS:      time.Duration(ms) * time.Millisecond,
			Duration: tick,
			Keyframe: i == 0,
		})
	}
	demux := &fakeDemuxer{
		info:    media.StreamInfo{Video: media.VideoTrackInfo{Codec: "avc1", Width: 2, Height: 2, FrameRate: 30}},
		packets: packets,
	}
	p.openDemuxer = func(ports.Source) (ports.Demuxer, error) { return demux, nil }
	p.newVideoDecoder = func(media.VideoTrackInfo) (ports.VideoDecoder, smartdecoder.Info, error) {
		return decodeOrderDecoder{}, smartdecoder.Info{Backend: "fake", ReorderDepth: 2}, nil
	}

	require.NoError(t, p.Play(mocks.NewSource("fake", nil)))
	frames := drive(t, p, clock, 100)

	var got []int
	for _, f := range frames {
		got = append(got, f.TimestampMs())
	}
	assert.Equal(t, []int{0, 33, 66, 100, 133, 166, 200}, got)
	assert.Equal(t, 1, done.calls)
	assert.Equal(t, 1, demux.closed)
}

func TestPlayer_UnsupportedCodec(t *testing.T) {
	p, _ := newTestPlayer(nil)
	defer p.Dispose()

	demux := &fakeDemuxer{info: media.StreamInfo{Video: media.VideoTrackInfo{Codec: "hvc1"}}}
	p.openDemuxer = func(ports.Source) (ports.Demuxer, error) { return demux, nil }

	err := p.Play(mocks.NewSource("hevc.mp4", nil))
	assert.ErrorIs(t, err, media.ErrUnsupportedCodec)
	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, 1, demux.closed)
}

func TestPlayer_InvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.LookaheadFrames = 0
	p := New(opts, mocks.NewClock(time.Unix(0, 0)), nil, logger.NewNoop())

	err := p.Play(mocks.NewSource("clip.mp4", nil))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, media.ErrAlreadyPlaying))
	assert.Equal(t, StateStopped, p.State())
}

// missingPictureDecoder drops the pictures of the lost packet indices and
// reports them with the next picture it returns.
type missingPictureDecoder struct {
	lost    map[int]bool
	n       int
	pending []*media.DecodeError
}

func (d *missingPictureDecoder) Decode(ctx context.Context, pkt media.Packet) ([]*media.VideoFrame, error) {
	i := d.n
	d.n++
	if d.lost[i] {
		d.pending = append(d.pending, &media.DecodeError{Kind: media.KindVideo, PTS: pkt.PTS, Err: errors.New("no picture")})
		return nil, nil
	}
	frames, _ := decodeOrderDecoder{}.Decode(ctx, pkt)
	return frames, d.take()
}

func (d *missingPictureDecoder) Flush(ctx context.Context) ([]*media.VideoFrame, error) {
	return nil, d.take()
}

func (d *missingPictureDecoder) Close() error { return nil }

func (d *missingPictureDecoder) take() error {
	if len(d.pending) == 0 {
		return nil
	}
	missed := d.pending
	d.pending = nil
	return &media.MissedFramesError{Missed: missed}
}

func playMissing(t *testing.T, lost ...int) (*Player, *completion, []*media.VideoFrame) {
	t.Helper()
	p, clock := newTestPlayer(nil)
	t.Cleanup(p.Dispose)
	done := &completion{}
	done.listen(p)

	var packets []media.Packet
	for i := 0; i < 30; i++ {
		packets = append(packets, media.Packet{
			Kind:     media.KindVideo,
			DTS:      time.Duration(i) * tick,
			PTS:      time.Duration(i) * tick,
			Duration: tick,
			Keyframe: i == 0,
		})
	}
	demux := &fakeDemuxer{
		info:    media.StreamInfo{Video: media.VideoTrackInfo{Codec: "avc1", Width: 2, Height: 2, FrameRate: 30}},
		packets: packets,
	}
	lostSet := make(map[int]bool)
	for _, i := range lost {
		lostSet[i] = true
	}
	p.openDemuxer = func(ports.Source) (ports.Demuxer, error) { return demux, nil }
	p.newVideoDecoder = func(media.VideoTrackInfo) (ports.VideoDecoder, smartdecoder.Info, error) {
		return &missingPictureDecoder{lost: lostSet}, smartdecoder.Info{Backend: "fake"}, nil
	}

	require.NoError(t, p.Play(mocks.NewSource("fake", nil)))
	frames := drive(t, p, clock, 200)
	return p, done, frames
}

func TestPlayer_LateMissedFramesCountAsGaps(t *testing.T) {
	p, done, frames := playMissing(t, 10, 20, 29)

	assert.Len(t, frames, 27)
	requireIncreasing(t, frames)
	assert.Equal(t, 1, done.calls)
	assert.NoError(t, done.err)
	assert.Equal(t, 3, p.Stats().DecodeGaps)
}

func TestPlayer_LateMissedRunEndsSession(t *testing.T) {
	p, done, frames := playMissing(t, 10, 11, 12, 13, 14, 15, 16)

	require.Equal(t, 1, done.calls)
	var sc *media.StreamCorruptError
	require.ErrorAs(t, done.err, &sc)
	assert.Equal(t, media.KindVideo, sc.Kind)
	assert.Equal(t, 6, sc.Consecutive)
	assert.Equal(t, StateFinished, p.State())
	assert.LessOrEqual(t, len(frames), 10)
}
