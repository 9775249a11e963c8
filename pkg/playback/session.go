package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/user/vidplay/pkg/adapters/smartdecoder"
	"github.com/user/vidplay/pkg/media"
	"github.com/user/vidplay/pkg/ports"
)

// session is one Play call: the open stream, its decoders and the workers
// moving data between them.
type session struct {
	src     ports.Source
	info    media.StreamInfo
	opts    Options
	logger  ports.Logger
	backend smartdecoder.Info

	demux ports.Demuxer
	video ports.VideoDecoder
	audio ports.AudioDecoder
	sink  ports.AudioSink

	videoPackets chan media.Packet
	audioPackets chan media.Packet
	frames       chan *media.VideoFrame
	blocks       chan *media.AudioBlock

	presenter *Presenter
	clock     *playbackClock
	gate      *gate
	volume    *volume
	reorder   *media.ReorderBuffer

	cancel  context.CancelFunc
	done    chan struct{}
	waitErr error

	// endErr is a non-fatal end of input, reported on completion.
	endErr error

	audioDecoded atomic.Bool
	audioDrained atomic.Bool

	decodeGaps    atomic.Int64
	framesDropped atomic.Int64
	lateDiscarded atomic.Int64
	packets       atomic.Int64

	closeOnce sync.Once
}

// hasAudio reports whether audio is decoded and rendered.
func (s *session) hasAudio() bool {
	return s.audio != nil
}

// start launches the workers.
func (s *session) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.demuxLoop(ctx) })
	g.Go(func() error { return s.videoLoop(ctx) })
	if s.hasAudio() {
		g.Go(func() error { return s.audioDecodeLoop(ctx) })
		g.Go(func() error { return s.audioRenderLoop(ctx) })
	}

	go func() {
		s.waitErr = g.Wait()
		close(s.done)
	}()
}

// failure returns the error that ended the workers, if any.
func (s *session) failure() error {
	select {
	case <-s.done:
		if s.waitErr != nil && !errors.Is(s.waitErr, context.Canceled) {
			return s.waitErr
		}
	default:
	}
	return nil
}

// buffered reports whether enough is decoded to play without stalling.
func (s *session) buffered() bool {
	videoReady := s.presenter.Queued() >= s.opts.LookaheadFrames || s.presenter.EOS()
	if !s.hasAudio() {
		return videoReady
	}
	audioReady := len(s.blocks) >= s.opts.LookaheadAudioBlocks || s.audioDecoded.Load()
	return videoReady && audioReady
}

// close stops the workers and releases everything the session opened.
// It is safe to call more than once.
func (s *session) close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
		if s.video != nil {
			s.video.Close()
		}
		if s.audio != nil {
			s.audio.Close()
			if s.sink != nil {
				s.sink.Close()
			}
		}
		s.demux.Close()
	})
}

// demuxLoop routes packets to the decoder queues. Running out of input
// early ends the queues normally and is reported with the completion.
func (s *session) demuxLoop(ctx context.Context) error {
	defer close(s.videoPackets)
	if s.audioPackets != nil {
		defer close(s.audioPackets)
	}

	log := s.logger.WithComponent("demux")
	for {
		pkt, err := s.demux.ReadPacket(ctx)
		if errors.Is(err, io.EOF) {
			log.Debug("End of stream after %d packets", s.packets.Load())
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("Input ended early: %v", err)
			s.endErr = err
			return nil
		}
		s.packets.Add(1)

		var queue chan media.Packet
		switch {
		case pkt.Kind == media.KindVideo:
			queue = s.videoPackets
		case s.audioPackets != nil:
			queue = s.audioPackets
		default:
			continue
		}

		select {
		case queue <- pkt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// videoLoop decodes video packets into the frame queue in presentation
// order.
func (s *session) videoLoop(ctx context.Context) error {
	log := s.logger.WithComponent("video")
	corrupt := corruptCounter{kind: media.KindVideo, threshold: s.opts.CorruptThreshold}

	emit := func(frames []*media.VideoFrame) error {
		for _, f := range frames {
			ready := s.reorder.Push(f)
			s.lateDiscarded.Store(int64(s.reorder.Discarded()))
			for _, out := range ready {
				select {
				case s.frames <- out:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		return nil
	}

	for {
		var pkt media.Packet
		var ok bool
		select {
		case pkt, ok = <-s.videoPackets:
		case <-ctx.Done():
			return ctx.Err()
		}
		if !ok {
			break
		}

		frames, err := s.video.Decode(ctx, pkt)
		var missed *media.MissedFramesError
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, media.ErrFrameDropped):
			s.framesDropped.Add(1)
			continue
		case errors.As(err, &missed):
			if fatal := s.recordMissed(log, &corrupt, missed); fatal != nil {
				return fatal
			}
			if len(frames) == 0 {
				continue
			}
		default:
			if fatal := corrupt.fail(err); fatal != nil {
				log.Error("Stream corrupt: %v", fatal)
				return fatal
			}
			s.decodeGaps.Add(1)
			log.Warn("Decode gap at %v: %v", pkt.PTS, err)
			continue
		}
		corrupt.reset()

		if err := emit(frames); err != nil {
			return err
		}
	}

	frames, err := s.video.Flush(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var missed *media.MissedFramesError
		if !errors.As(err, &missed) {
			return fmt.Errorf("flush video decoder: %w", err)
		}
		if fatal := s.recordMissed(log, &corrupt, missed); fatal != nil {
			return fatal
		}
	}
	if err := emit(frames); err != nil {
		return err
	}
	for _, out := range s.reorder.Drain() {
		select {
		case s.frames <- out:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	close(s.frames)
	return nil
}

// recordMissed counts packets the decoder reported as pictureless after
// the fact, in presentation order.
func (s *session) recordMissed(log ports.Logger, corrupt *corruptCounter, missed *media.MissedFramesError) error {
	for _, de := range missed.Missed {
		if fatal := corrupt.fail(de); fatal != nil {
			log.Error("Stream corrupt: %v", fatal)
			return fatal
		}
		s.decodeGaps.Add(1)
		log.Warn("Decode gap at %v: %v", de.PTS, de.Err)
	}
	return nil
}

// audioDecodeLoop decodes audio packets into the block queue.
func (s *session) audioDecodeLoop(ctx context.Context) error {
	log := s.logger.WithComponent("audio")
	corrupt := corruptCounter{kind: media.KindAudio, threshold: s.opts.CorruptThreshold}

	for {
		var pkt media.Packet
		var ok bool
		select {
		case pkt, ok = <-s.audioPackets:
		case <-ctx.Done():
			return ctx.Err()
		}
		if !ok {
			s.audioDecoded.Store(true)
			close(s.blocks)
			return nil
		}

		block, err := s.audio.Decode(pkt)
		if err != nil {
			if fatal := corrupt.fail(err); fatal != nil {
				log.Error("Stream corrupt: %v", fatal)
				return fatal
			}
			s.decodeGaps.Add(1)
			log.Warn("Decode gap at %v: %v", pkt.PTS, err)
			continue
		}
		corrupt.reset()

		select {
		case s.blocks <- block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// audioRenderLoop plays decoded blocks while the gate is open and moves
// the playback clock as each block completes.
func (s *session) audioRenderLoop(ctx context.Context) error {
	for {
		if !s.gate.Wait(ctx.Done()) {
			return ctx.Err()
		}

		var block *media.AudioBlock
		var ok bool
		select {
		case block, ok = <-s.blocks:
		case <-ctx.Done():
			return ctx.Err()
		}
		if !ok {
			s.audioDrained.Store(true)
			return nil
		}

		if gain := s.volume.Load(); gain != 1 {
			for i := range block.Samples {
				block.Samples[i] *= gain
			}
		}
		if err := s.sink.Write(ctx, block.Samples); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("audio output: %w", err)
		}
		s.clock.SetAudioEnd(block.PTS + block.Duration)
	}
}

// corruptCounter escalates consecutive decode errors.
type corruptCounter struct {
	kind        media.Kind
	threshold   int
	consecutive int
}

// fail records a decode error and returns a fatal error once the
// threshold is exceeded or when err is not a per-packet error.
func (c *corruptCounter) fail(err error) error {
	var de *media.DecodeError
	if !errors.As(err, &de) {
		return fmt.Errorf("%s decoder: %w", c.kind, err)
	}
	c.consecutive++
	if c.consecutive > c.threshold {
		return &media.StreamCorruptError{Kind: c.kind, Consecutive: c.consecutive, Last: err}
	}
	return nil
}

func (c *corruptCounter) reset() {
	c.consecutive = 0
}
