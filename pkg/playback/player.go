// Package playback implements a pollable video player: a host render loop
// calls Play once and then GetTexture every tick, while demuxing and
// decoding run on background workers.
package playback

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/user/vidplay/pkg/adapters/mp4demuxer"
	"github.com/user/vidplay/pkg/adapters/pcmdecoder"
	"github.com/user/vidplay/pkg/adapters/smartdecoder"
	"github.com/user/vidplay/pkg/media"
	"github.com/user/vidplay/pkg/ports"
)

// Player implements ports.VideoPlayer.
//
// All methods are meant to be called from the host goroutine. They never
// wait on decoding; listeners run on the calling goroutine after internal
// locks are released.
type Player struct {
	opts   Options
	clock  ports.Clock
	sink   ports.AudioSink
	logger ports.Logger
	volume *volume

	openDemuxer     func(src ports.Source) (ports.Demuxer, error)
	newVideoDecoder func(track media.VideoTrackInfo) (ports.VideoDecoder, smartdecoder.Info, error)
	newAudioDecoder func(track media.AudioTrackInfo) (ports.AudioDecoder, error)

	mu           sync.Mutex
	state        State
	session      *session
	onSize       ports.SizeListener
	onCompletion ports.CompletionListener
	stats        Stats
}

// Ensure Player implements ports.VideoPlayer.
var _ ports.VideoPlayer = (*Player)(nil)

// New creates a stopped player. sink may be nil, in which case audio
// tracks are ignored and video runs on wall-clock cadence.
func New(opts Options, clock ports.Clock, sink ports.AudioSink, logger ports.Logger) *Player {
	p := &Player{
		opts:   opts,
		clock:  clock,
		sink:   sink,
		logger: logger.WithComponent("player"),
		volume: newVolume(opts.Volume),
		openDemuxer: func(src ports.Source) (ports.Demuxer, error) {
			return mp4demuxer.Open(src)
		},
		newVideoDecoder: func(track media.VideoTrackInfo) (ports.VideoDecoder, smartdecoder.Info, error) {
			return smartdecoder.New(track, opts.Decoder)
		},
		newAudioDecoder: func(track media.AudioTrackInfo) (ports.AudioDecoder, error) {
			return pcmdecoder.New(track)
		},
	}
	return p
}

// Play opens src and starts playback in Buffering. It fails with
// *media.NotFoundError, *media.ContainerError, *media.TruncatedStreamError
// or media.ErrUnsupportedCodec without changing state, with
// media.ErrAlreadyPlaying while a session is active and with
// media.ErrDisposed after Dispose.
func (p *Player) Play(src ports.Source) error {
	p.mu.Lock()
	if p.state == StateDisposed {
		p.mu.Unlock()
		return media.ErrDisposed
	}
	if p.state.active() {
		p.mu.Unlock()
		return media.ErrAlreadyPlaying
	}

	s, err := p.open(src)
	if err != nil {
		p.mu.Unlock()
		p.logger.Error("Failed to play %s: %v", src.Name(), err)
		return err
	}

	p.session = s
	p.stats = Stats{}
	p.setState(StateBuffering)
	s.start()

	var events []func()
	if l := p.onSize; l != nil {
		w, h := s.presenter.VideoWidth(), s.presenter.VideoHeight()
		events = append(events, func() { l(w, h) })
	}
	p.mu.Unlock()

	run(events)
	return nil
}

// open builds a session for src. Called with p.mu held.
func (p *Player) open(src ports.Source) (*session, error) {
	if err := p.opts.Validate(); err != nil {
		return nil, fmt.Errorf("playback options: %w", err)
	}

	demux, err := p.openDemuxer(src)
	if err != nil {
		return nil, err
	}
	info := demux.Info()

	video, backend, err := p.newVideoDecoder(info.Video)
	if err != nil {
		demux.Close()
		return nil, err
	}

	s := &session{
		src:     src,
		info:    info,
		opts:    p.opts,
		logger:  p.logger,
		backend: backend,
		demux:   demux,
		video:   video,
		gate:    newGate(),
		volume:  p.volume,
	}

	if info.Audio != nil {
		s.audio, s.sink = p.openAudio(*info.Audio)
	}

	width, height := media.FitSize(info.Video.Width, info.Video.Height, p.opts.Decoder.MaxWidth, p.opts.Decoder.MaxHeight)
	depth := p.opts.ReorderDepth
	if depth < 0 {
		depth = backend.ReorderDepth
	}

	s.videoPackets = make(chan media.Packet, p.opts.VideoPacketQueue)
	s.frames = make(chan *media.VideoFrame, frameQueueSize(p.opts.FrameQueue, width, height))
	s.reorder = media.NewReorderBuffer(depth)
	if s.hasAudio() {
		s.audioPackets = make(chan media.Packet, p.opts.AudioPacketQueue)
		s.blocks = make(chan *media.AudioBlock, p.opts.AudioQueue)
	}

	fps := info.Video.FrameRate
	if fps <= 0 {
		fps = media.DefaultFrameRate
	}
	s.presenter = NewPresenter(s.frames, width, height)
	s.clock = newPlaybackClock(p.clock, fps, s.hasAudio())

	p.logger.Info("Playing %s: %s %dx%d at %.3f fps, %s backend",
		src.Name(), info.Video.Codec, width, height, fps, backend.Backend)
	return s, nil
}

// openAudio prepares audio output. Audio that cannot be played is
// skipped and the session runs on wall-clock cadence.
func (p *Player) openAudio(track media.AudioTrackInfo) (ports.AudioDecoder, ports.AudioSink) {
	if p.sink == nil {
		p.logger.Debug("No audio output, ignoring audio track")
		return nil, nil
	}
	dec, err := p.newAudioDecoder(track)
	if err != nil {
		p.logger.Warn("Audio track skipped: %v", err)
		return nil, nil
	}
	if err := p.sink.Open(track.SampleRate, track.Channels); err != nil {
		dec.Close()
		p.logger.Warn("Audio track skipped: %v", err)
		return nil, nil
	}
	return dec, p.sink
}

// Update advances the state machine without fetching a texture.
func (p *Player) Update() {
	p.mu.Lock()
	events := p.update()
	p.mu.Unlock()
	run(events)
}

// GetTexture returns the frame to draw, or nil when there is none.
//
// In Finished the last presented frame is held and returned until Stop,
// Dispose or the next Play, so a host can keep drawing the final picture.
// Stopped and Disposed always return nil.
func (p *Player) GetTexture() *media.VideoFrame {
	p.mu.Lock()
	events := p.update()

	var frame *media.VideoFrame
	if s := p.session; s != nil {
		if p.state == StatePlaying {
			frame = s.presenter.CurrentFrame(s.clock.Position())
		} else {
			frame = s.presenter.Current()
		}
		p.collectStats()
	}
	p.mu.Unlock()

	run(events)
	return frame
}

// IsBuffered reports whether enough is decoded to play without stalling.
func (p *Player) IsBuffered() bool {
	p.mu.Lock()
	events := p.update()
	var buffered bool
	switch {
	case p.state == StateFinished:
		buffered = true
	case p.state.active():
		buffered = p.session.buffered()
	}
	p.mu.Unlock()

	run(events)
	return buffered
}

// IsPlaying reports whether the player is in Playing.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	events := p.update()
	playing := p.state == StatePlaying
	p.mu.Unlock()

	run(events)
	return playing
}

// Pause freezes the playback clock. Decoding continues until the queues
// are full. It only has an effect in Playing.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePlaying {
		return
	}
	p.session.clock.Stop()
	p.session.gate.Close()
	p.setState(StatePaused)
}

// Resume continues from Paused. Playback goes through Buffering again
// when the queues ran dry in the meantime.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePaused {
		return
	}
	p.setState(StatePlaying)
	p.session.clock.Start()
	p.session.gate.Open()
}

// Stop ends the session and releases its resources. The completion
// listener is not called. Stop is idempotent.
func (p *Player) Stop() {
	p.mu.Lock()
	s := p.detach()
	if p.state != StateDisposed {
		p.setState(StateStopped)
	}
	p.mu.Unlock()

	if s != nil {
		s.close()
	}
}

// Dispose stops playback and makes the player unusable.
func (p *Player) Dispose() {
	p.mu.Lock()
	s := p.detach()
	p.setState(StateDisposed)
	p.onSize = nil
	p.onCompletion = nil
	p.mu.Unlock()

	if s != nil {
		s.close()
	}
}

// detach removes the session from the player. Called with p.mu held.
func (p *Player) detach() *session {
	s := p.session
	if s != nil {
		p.collectStats()
	}
	p.session = nil
	return s
}

// SetOnVideoSizeListener registers the size listener; nil removes it.
func (p *Player) SetOnVideoSizeListener(l ports.SizeListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateDisposed {
		p.onSize = l
	}
}

// SetOnCompletionListener registers the completion listener; nil removes
// it.
func (p *Player) SetOnCompletionListener(l ports.CompletionListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateDisposed {
		p.onCompletion = l
	}
}

// GetVideoWidth returns the width of the frames of the current session.
func (p *Player) GetVideoWidth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return 0
	}
	return p.session.presenter.VideoWidth()
}

// GetVideoHeight returns the height of the frames of the current session.
func (p *Player) GetVideoHeight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return 0
	}
	return p.session.presenter.VideoHeight()
}

// GetCurrentTimestamp returns the playback clock in milliseconds.
func (p *Player) GetCurrentTimestamp() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return 0
	}
	return int(p.session.clock.Position().Milliseconds())
}

// SetVolume sets the audio gain, clamped to [0, 1].
func (p *Player) SetVolume(v float32) {
	p.volume.Store(v)
}

// GetVolume returns the audio gain.
func (p *Player) GetVolume() float32 {
	return p.volume.Load()
}

// State returns the current state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Info returns the metadata of the current session.
func (p *Player) Info() (media.StreamInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return media.StreamInfo{}, false
	}
	return p.session.info, true
}

// Stats returns the counters of the current or last session.
func (p *Player) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		p.collectStats()
	}
	return p.stats
}

// update drives the state machine and returns the listener calls it
// produced. Called with p.mu held.
func (p *Player) update() []func() {
	s := p.session
	if s == nil || !p.state.active() {
		return nil
	}

	if err := s.failure(); err != nil {
		return p.finish(err)
	}
	if s.audioDrained.Load() {
		s.clock.AudioDrained()
	}

	switch p.state {
	case StateBuffering:
		if s.buffered() {
			p.setState(StatePlaying)
			s.clock.Start()
			s.gate.Open()
		}

	case StatePlaying:
		pos := s.clock.Position()
		s.presenter.Advance(pos)
		if s.presenter.Done(pos) && (!s.hasAudio() || s.audioDrained.Load()) {
			return p.finish(s.endErr)
		}
		if s.presenter.Underrun(pos) {
			p.logger.Debug("Buffering at %v", pos)
			p.stats.Rebuffers++
			s.clock.Stop()
			s.gate.Close()
			p.setState(StateBuffering)
		}
	}
	return nil
}

// finish ends the session in Finished and returns the completion call.
// Called with p.mu held.
func (p *Player) finish(err error) []func() {
	s := p.session
	s.clock.Stop()
	s.gate.Close()
	p.collectStats()
	p.setState(StateFinished)

	if err != nil {
		p.logger.Error("Playback of %s failed: %v", s.src.Name(), err)
	} else {
		p.logger.Info("Playback of %s finished", s.src.Name())
	}

	// Workers are done or cancelled here; releasing is quick.
	s.close()

	l := p.onCompletion
	if l == nil {
		return nil
	}
	name := s.src.Name()
	return []func(){func() { l(name, err) }}
}

func (p *Player) setState(st State) {
	if p.state != st {
		p.logger.Debug("State %s -> %s", p.state, st)
		p.state = st
	}
}

func (p *Player) collectStats() {
	s := p.session
	p.stats.FramesPresented = s.presenter.presented
	p.stats.FramesDroppedLate = s.presenter.droppedLate + s.presenter.outOfOrder + int(s.lateDiscarded.Load())
	p.stats.FramesUndecodable = int(s.framesDropped.Load())
	p.stats.DecodeGaps = int(s.decodeGaps.Load())
	p.stats.Packets = int(s.packets.Load())
	p.stats.Position = s.clock.Position()
	p.stats.Backend = string(s.backend.Backend)
}

func run(events []func()) {
	for _, e := range events {
		e()
	}
}

// volume is a float32 shared with the audio renderer.
type volume struct {
	bits atomic.Uint32
}

func newVolume(v float32) *volume {
	vol := &volume{}
	vol.Store(v)
	return vol
}

func (v *volume) Store(f float32) {
	if math.IsNaN(float64(f)) {
		return
	}
	f = min(max(f, 0), 1)
	v.bits.Store(math.Float32bits(f))
}

func (v *volume) Load() float32 {
	return math.Float32frombits(v.bits.Load())
}
