package mp4writer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
)

const (
	videoTrackID = 1
	audioTrackID = 2
)

// trackSample is one sample of either track in its own timescale.
type trackSample struct {
	trackID uint32
	dts     uint64
	dur     uint32
	at      time.Duration
	data    []byte
}

// videoSamples converts the buffered frames to timescale units.
func (w *Writer) videoSamples() (uint32, []trackSample) {
	timescale := uint32(math.Round(w.fps * 1000))
	frameDur := uint32(math.Round(float64(timescale) / w.fps))

	// Timestamps snap to the frame grid so millisecond rounding does not
	// jitter sample durations.
	snap := func(ms int) uint64 {
		return uint64(math.Round(float64(ms)*w.fps/1000)) * uint64(frameDur)
	}

	samples := make([]trackSample, 0, len(w.frames))
	for i, f := range w.frames {
		dts := snap(f.timestampMs)
		dur := frameDur
		if i < len(w.frames)-1 {
			if next := snap(w.frames[i+1].timestampMs); next > dts {
				dur = uint32(next - dts)
			}
		}
		samples = append(samples, trackSample{
			trackID: videoTrackID,
			dts:     dts,
			dur:     dur,
			at:      time.Duration(f.timestampMs) * time.Millisecond,
			data:    f.data,
		})
	}
	return timescale, samples
}

// audioSamples splits the buffered PCM into blocks of audioBlockFrames.
func (w *Writer) audioSamples() []trackSample {
	if w.options.Audio == nil || len(w.audio) == 0 {
		return nil
	}
	rate := w.options.Audio.SampleRate
	channels := w.options.Audio.Channels
	blockLen := audioBlockFrames * channels

	var samples []trackSample
	var frames uint64
	for start := 0; start < len(w.audio); start += blockLen {
		end := min(start+blockLen, len(w.audio))
		block := w.audio[start:end]
		n := len(block) / channels
		if n == 0 {
			break
		}

		data := make([]byte, n*channels*2)
		for i, s := range block[:n*channels] {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
		}

		samples = append(samples, trackSample{
			trackID: audioTrackID,
			dts:     frames,
			dur:     uint32(n),
			at:      time.Duration(frames) * time.Second / time.Duration(rate),
			data:    data,
		})
		frames += uint64(n)
	}
	return samples
}

func (w *Writer) newInit(videoTimescale uint32) *mp4.InitSegment {
	init := mp4.CreateEmptyInit()

	init.AddEmptyTrack(videoTimescale, "video", "en")
	vtrak := init.Moov.Traks[0]
	vtrak.Mdia.Minf.Stbl.Stsd.AddChild(
		mp4.CreateVisualSampleEntryBox("jpeg", uint16(w.width), uint16(w.height), nil))
	vtrak.Tkhd.Width = mp4.Fixed32(w.width << 16)
	vtrak.Tkhd.Height = mp4.Fixed32(w.height << 16)

	if a := w.options.Audio; a != nil {
		init.AddEmptyTrack(uint32(a.SampleRate), "audio", "en")
		atrak := init.Moov.Traks[1]
		atrak.Mdia.Minf.Stbl.Stsd.AddChild(
			mp4.CreateAudioSampleEntryBox("sowt", uint16(a.Channels), 16, uint16(a.SampleRate), nil))
	}
	return init
}

func newFtyp() *mp4.FtypBox {
	return mp4.NewFtyp("isom", 0x200, []string{"isom", "iso2", "mp41"})
}

// buildFragmented writes ftyp, moov, then one fragment per track and
// fragment window.
func (w *Writer) buildFragmented() ([]byte, error) {
	timescale, video := w.videoSamples()
	audio := w.audioSamples()
	init := w.newInit(timescale)

	var buf bytes.Buffer
	if err := newFtyp().Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}

	seq := uint32(1)
	writeFragment := func(trackID uint32, samples []trackSample) error {
		if len(samples) == 0 {
			return nil
		}
		frag, err := mp4.CreateFragment(seq, trackID)
		if err != nil {
			return fmt.Errorf("create fragment: %w", err)
		}
		seq++
		for _, s := range samples {
			frag.AddFullSample(mp4.FullSample{
				Sample: mp4.Sample{
					Flags: mp4.SyncSampleFlags,
					Size:  uint32(len(s.data)),
					Dur:   s.dur,
				},
				DecodeTime: s.dts,
				Data:       s.data,
			})
		}
		if err := frag.Encode(&buf); err != nil {
			return fmt.Errorf("encode fragment: %w", err)
		}
		return nil
	}

	window := w.fragmentDuration
	if window <= 0 {
		window = time.Second
	}
	for start := time.Duration(0); len(video) > 0 || len(audio) > 0; start += window {
		end := start + window
		var v, a []trackSample
		v, video = splitBefore(video, end)
		a, audio = splitBefore(audio, end)
		if err := writeFragment(videoTrackID, v); err != nil {
			return nil, err
		}
		if err := writeFragment(audioTrackID, a); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// splitBefore returns the leading samples that start before end.
func splitBefore(samples []trackSample, end time.Duration) (head, tail []trackSample) {
	i := sort.Search(len(samples), func(i int) bool { return samples[i].at >= end })
	return samples[:i], samples[i:]
}

// buildProgressive writes ftyp, moov and a single mdat with one sample per
// chunk. The moov goes last when the writer was created WithMoovAtEnd.
func (w *Writer) buildProgressive() ([]byte, error) {
	timescale, video := w.videoSamples()
	audio := w.audioSamples()
	init := w.newInit(timescale)
	moov := init.Moov

	// Progressive files carry no movie extends box.
	children := moov.Children[:0]
	for _, c := range moov.Children {
		if c.Type() != "mvex" {
			children = append(children, c)
		}
	}
	moov.Children = children
	moov.Mvex = nil

	merged := append(append([]trackSample(nil), video...), audio...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].at < merged[j].at })

	var payload []byte
	offsets := make(map[*trackSample]uint64, len(merged))
	for i := range merged {
		offsets[&merged[i]] = uint64(len(payload))
		payload = append(payload, merged[i].data...)
	}

	movieTimescale := moov.Mvhd.Timescale
	if movieTimescale == 0 {
		movieTimescale = 1000
		moov.Mvhd.Timescale = movieTimescale
	}

	var movieDuration uint64
	for _, trak := range moov.Traks {
		trackID := trak.Tkhd.TrackID
		stbl := trak.Mdia.Minf.Stbl
		var ticks uint64
		for i := range merged {
			s := &merged[i]
			if s.trackID != trackID {
				continue
			}
			stbl.Stts.SampleCount = append(stbl.Stts.SampleCount, 1)
			stbl.Stts.SampleTimeDelta = append(stbl.Stts.SampleTimeDelta, s.dur)
			stbl.Stsz.SampleNumber++
			stbl.Stsz.SampleSize = append(stbl.Stsz.SampleSize, uint32(len(s.data)))
			stbl.Stco.ChunkOffset = append(stbl.Stco.ChunkOffset, uint32(offsets[s]))
			ticks += uint64(s.dur)
		}
		if stbl.Stsz.SampleNumber > 0 {
			if err := stbl.Stsc.AddEntry(1, 1, 1); err != nil {
				return nil, fmt.Errorf("stsc: %w", err)
			}
		}

		timescale := trak.Mdia.Mdhd.Timescale
		trak.Mdia.Mdhd.Duration = ticks
		trackDuration := ticks * uint64(movieTimescale) / uint64(timescale)
		trak.Tkhd.Duration = trackDuration
		movieDuration = max(movieDuration, trackDuration)
	}
	moov.Mvhd.Duration = movieDuration

	ftyp := newFtyp()
	base := ftyp.Size() + 8
	if !w.moovAtEnd {
		base += moov.Size()
	}
	if base+uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("media data too large for 32-bit chunk offsets")
	}
	for _, trak := range moov.Traks {
		offs := trak.Mdia.Minf.Stbl.Stco.ChunkOffset
		for i := range offs {
			offs[i] += uint32(base)
		}
	}

	var buf bytes.Buffer
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if !w.moovAtEnd {
		if err := moov.Encode(&buf); err != nil {
			return nil, fmt.Errorf("encode moov: %w", err)
		}
	}

	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(8+len(payload)))
	copy(hdr[4:], "mdat")
	buf.Write(hdr[:])
	buf.Write(payload)

	if w.moovAtEnd {
		if err := moov.Encode(&buf); err != nil {
			return nil, fmt.Errorf("encode moov: %w", err)
		}
	}

	return buf.Bytes(), nil
}
