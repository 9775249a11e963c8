// Package mp4demuxer splits ISO base media files (MP4/MOV, progressive or
// fragmented) into timestamped packets using mp4ff.
package mp4demuxer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"sort"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/user/vidplay/pkg/media"
	"github.com/user/vidplay/pkg/ports"
)

// Bit 16 of the ISO-BMFF sample flags (sample_is_non_sync_sample).
const sampleIsNonSync = 0x00010000

// sampleRef locates one packet of the merged, decode-ordered index.
type sampleRef struct {
	kind     media.Kind
	trackID  uint32
	dts      time.Duration
	pts      time.Duration
	duration time.Duration
	keyframe bool

	// Payload position in the file.
	offset int64
	size   uint32
}

// Demuxer implements ports.Demuxer for ISO base media files.
type Demuxer struct {
	ra      io.ReaderAt
	closer  io.Closer
	info    media.StreamInfo
	samples []sampleRef
	next    int

	// truncated is reported after the last complete packet.
	truncated *media.TruncatedStreamError
}

// Ensure Demuxer implements ports.Demuxer.
var _ ports.Demuxer = (*Demuxer)(nil)

// Open parses the container headers of src and builds the packet index.
// It fails with *media.NotFoundError, *media.ContainerError or
// *media.TruncatedStreamError.
func Open(src ports.Source) (*Demuxer, error) {
	r, size, err := src.Open()
	if err != nil {
		if isNotExist(err) {
			return nil, &media.NotFoundError{Source: src.Name(), Err: err}
		}
		return nil, fmt.Errorf("open %s: %w", src.Name(), err)
	}

	d, err := New(r, size)
	if err != nil {
		r.Close()
		return nil, err
	}
	d.closer = r
	return d, nil
}

// New builds a demuxer over an already opened stream of the given size.
// The caller keeps ownership of r.
func New(r io.ReadSeeker, size int64) (*Demuxer, error) {
	ra := asReaderAt(r)

	l, err := scanBoxes(ra, size)
	if err != nil {
		return nil, &media.ContainerError{Reason: "scan top-level boxes", Err: err}
	}
	if len(l.boxes) == 0 {
		if l.truncatedAt >= 0 && size > 0 {
			return nil, &media.TruncatedStreamError{Offset: l.truncatedAt, Err: io.ErrUnexpectedEOF}
		}
		return nil, &media.ContainerError{Reason: "empty stream"}
	}
	if !l.has("moov") {
		if l.truncatedAt >= 0 {
			return nil, &media.TruncatedStreamError{Offset: l.truncatedAt, Err: io.ErrUnexpectedEOF}
		}
		return nil, &media.ContainerError{Reason: "no moov box"}
	}

	// Media data stays in the file; ReadPacket loads one payload at a time.
	fragmented := l.has("moof")
	f, err := mp4.DecodeFile(io.NewSectionReader(ra, 0, l.validEnd), mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return nil, &media.ContainerError{Reason: "decode boxes", Err: err}
	}

	d := &Demuxer{ra: ra}
	if l.truncatedAt >= 0 {
		d.truncated = &media.TruncatedStreamError{Offset: l.truncatedAt, Err: io.ErrUnexpectedEOF}
	}

	if err := d.index(f, fragmented); err != nil {
		return nil, err
	}
	return d, nil
}

// Info returns the container metadata.
func (d *Demuxer) Info() media.StreamInfo {
	return d.info
}

// ReadPacket returns the next packet in decode-time order.
func (d *Demuxer) ReadPacket(ctx context.Context) (media.Packet, error) {
	if err := ctx.Err(); err != nil {
		return media.Packet{}, err
	}
	if d.next >= len(d.samples) {
		if d.truncated != nil {
			return media.Packet{}, d.truncated
		}
		return media.Packet{}, io.EOF
	}

	s := d.samples[d.next]
	data := make([]byte, s.size)
	n, err := d.ra.ReadAt(data, s.offset)
	if n < int(s.size) {
		if err == nil || errors.Is(err, io.EOF) {
			// Nothing after a cut-off sample can be complete either.
			d.samples = d.samples[:d.next]
			d.truncated = &media.TruncatedStreamError{Offset: s.offset + int64(n), Err: io.ErrUnexpectedEOF}
			return media.Packet{}, d.truncated
		}
		return media.Packet{}, fmt.Errorf("read sample at %d: %w", s.offset, err)
	}
	d.next++

	return media.Packet{
		Kind:     s.kind,
		TrackID:  s.trackID,
		DTS:      s.dts,
		PTS:      s.pts,
		Duration: s.duration,
		Keyframe: s.keyframe,
		Data:     data,
	}, nil
}

// Close releases the underlying stream if the demuxer opened it.
func (d *Demuxer) Close() error {
	d.samples = nil
	if d.closer != nil {
		err := d.closer.Close()
		d.closer = nil
		return err
	}
	return nil
}

// Probe reads the container metadata of src without keeping it open.
func Probe(src ports.Source) (media.StreamInfo, error) {
	d, err := Open(src)
	if err != nil {
		return media.StreamInfo{}, err
	}
	defer d.Close()
	return d.Info(), nil
}

// track is a trak selected for playback.
type track struct {
	kind      media.Kind
	trak      *mp4.TrakBox
	trex      *mp4.TrexBox
	timescale uint32
}

func (d *Demuxer) index(f *mp4.File, fragmented bool) error {
	moov := f.Moov
	if moov == nil && f.Init != nil {
		moov = f.Init.Moov
	}
	if moov == nil {
		return &media.ContainerError{Reason: "no moov box"}
	}

	var video, audio *track
	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Mdhd == nil {
			continue
		}
		switch trak.Mdia.Hdlr.HandlerType {
		case "vide":
			if video == nil {
				video = &track{kind: media.KindVideo, trak: trak, timescale: trak.Mdia.Mdhd.Timescale}
			}
		case "soun":
			if audio == nil {
				audio = &track{kind: media.KindAudio, trak: trak, timescale: trak.Mdia.Mdhd.Timescale}
			}
		}
	}
	if video == nil {
		return &media.ContainerError{Reason: "no video track"}
	}

	d.info = media.StreamInfo{
		Format:     "mp4",
		Fragmented: fragmented,
		Video:      videoInfo(video.trak),
	}
	if f.Ftyp != nil {
		d.info.Format = "mp4/" + f.Ftyp.MajorBrand()
	}
	if audio != nil {
		info := audioInfo(audio.trak)
		d.info.Audio = &info
	}

	tracks := []*track{video}
	if audio != nil {
		tracks = append(tracks, audio)
	}
	for _, t := range tracks {
		if t.timescale == 0 {
			return &media.ContainerError{Reason: fmt.Sprintf("track %d has zero timescale", t.trak.Tkhd.TrackID)}
		}
	}

	var err error
	if fragmented {
		if moov.Mvex != nil {
			for _, t := range tracks {
				for _, trex := range moov.Mvex.Trexs {
					if trex.TrackID == t.trak.Tkhd.TrackID {
						t.trex = trex
					}
				}
			}
		}
		err = d.indexFragments(f, tracks)
	} else {
		for _, t := range tracks {
			if err = d.indexTrak(t); err != nil {
				break
			}
		}
	}
	if err != nil {
		return err
	}

	sort.SliceStable(d.samples, func(i, j int) bool {
		return d.samples[i].dts < d.samples[j].dts
	})

	d.finishInfo(moov)
	return nil
}

// indexTrak builds the sample index of a progressive track from its
// sample table.
func (d *Demuxer) indexTrak(t *track) error {
	trackID := t.trak.Tkhd.TrackID
	if t.trak.Mdia.Minf == nil || t.trak.Mdia.Minf.Stbl == nil {
		return &media.ContainerError{Reason: fmt.Sprintf("track %d has no sample table", trackID)}
	}
	stbl := t.trak.Mdia.Minf.Stbl
	if stbl.Stsz == nil || stbl.Stsc == nil || stbl.Stts == nil || (stbl.Stco == nil && stbl.Co64 == nil) {
		return &media.ContainerError{Reason: fmt.Sprintf("track %d has an incomplete sample table", trackID)}
	}

	var syncSamples map[uint32]bool
	if stbl.Stss != nil {
		syncSamples = make(map[uint32]bool, len(stbl.Stss.SampleNumber))
		for _, nr := range stbl.Stss.SampleNumber {
			syncSamples[nr] = true
		}
	}

	count := int(stbl.Stsz.SampleNumber)
	prevChunk := -1
	var offset int64
	for nr := 1; nr <= count; nr++ {
		chunkNr, firstInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(nr)
		if err != nil {
			return &media.ContainerError{Reason: fmt.Sprintf("track %d sample %d", trackID, nr), Err: err}
		}
		if chunkNr != prevChunk {
			offset, err = chunkOffset(stbl, chunkNr)
			if err != nil {
				return &media.ContainerError{Reason: fmt.Sprintf("track %d chunk %d", trackID, chunkNr), Err: err}
			}
			// Skip samples of the chunk that precede nr.
			for s := firstInChunk; s < nr; s++ {
				offset += int64(stbl.Stsz.GetSampleSize(s))
			}
			prevChunk = chunkNr
		}

		size := stbl.Stsz.GetSampleSize(nr)
		dts, dur := stbl.Stts.GetDecodeTime(uint32(nr))
		pts := int64(dts)
		if stbl.Ctts != nil {
			pts += int64(stbl.Ctts.GetCompositionTimeOffset(uint32(nr)))
		}

		d.samples = append(d.samples, sampleRef{
			kind:     t.kind,
			trackID:  trackID,
			dts:      toDuration(int64(dts), t.timescale),
			pts:      toDuration(pts, t.timescale),
			duration: toDuration(int64(dur), t.timescale),
			keyframe: syncSamples == nil || syncSamples[uint32(nr)],
			offset:   offset,
			size:     size,
		})
		offset += int64(size)
	}
	return nil
}

// indexFragments indexes the samples of every complete fragment. Only
// the moof boxes are parsed; payloads stay in the file.
func (d *Demuxer) indexFragments(f *mp4.File, tracks []*track) error {
	for _, seg := range f.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil || frag.Mdat == nil {
				continue
			}
			for _, traf := range frag.Moof.Trafs {
				t := trackByID(tracks, traf.Tfhd.TrackID)
				if t == nil {
					continue
				}
				if err := d.indexTraf(t, frag.Moof, traf, frag.Mdat); err != nil {
					return &media.ContainerError{Reason: fmt.Sprintf("fragment %d", frag.Moof.Mfhd.SequenceNumber), Err: err}
				}
			}
		}
	}
	return nil
}

// indexTraf records the payload positions of one track fragment. A trun
// starts at the base data offset plus its data offset, or right after the
// previous trun when it has none.
func (d *Demuxer) indexTraf(t *track, moof *mp4.MoofBox, traf *mp4.TrafBox, mdat *mp4.MdatBox) error {
	tfhd := traf.Tfhd
	base := int64(moof.StartPos)
	if tfhd.HasBaseDataOffset() {
		base = int64(tfhd.BaseDataOffset)
	}
	mdatStart := int64(mdat.PayloadAbsoluteOffset())
	mdatEnd := int64(mdat.StartPos + mdat.Size())

	var decodeTime uint64
	if traf.Tfdt != nil {
		decodeTime = traf.Tfdt.BaseMediaDecodeTime()
	}

	offset := mdatStart
	for _, trun := range traf.Truns {
		trun.AddSampleDefaultValues(tfhd, t.trex)
		if trun.HasDataOffset() {
			offset = base + int64(trun.DataOffset)
		}
		for _, smp := range trun.GetSamples() {
			if offset < mdatStart || offset+int64(smp.Size) > mdatEnd {
				return fmt.Errorf("track %d sample at %d outside mdat", t.trak.Tkhd.TrackID, offset)
			}
			pts := int64(decodeTime) + int64(smp.CompositionTimeOffset)
			d.samples = append(d.samples, sampleRef{
				kind:     t.kind,
				trackID:  t.trak.Tkhd.TrackID,
				dts:      toDuration(int64(decodeTime), t.timescale),
				pts:      toDuration(pts, t.timescale),
				duration: toDuration(int64(smp.Dur), t.timescale),
				keyframe: smp.Flags&sampleIsNonSync == 0,
				offset:   offset,
				size:     smp.Size,
			})
			offset += int64(smp.Size)
			decodeTime += uint64(smp.Dur)
		}
	}
	return nil
}

func trackByID(tracks []*track, id uint32) *track {
	for _, t := range tracks {
		if t.trak.Tkhd.TrackID == id {
			return t
		}
	}
	return nil
}

// finishInfo fills the fields that depend on the sample index.
func (d *Demuxer) finishInfo(moov *mp4.MoovBox) {
	var videoDurations []time.Duration
	var end time.Duration
	for _, s := range d.samples {
		if s.pts+s.duration > end {
			end = s.pts + s.duration
		}
		switch s.kind {
		case media.KindVideo:
			d.info.Video.Samples++
			videoDurations = append(videoDurations, s.duration)
		case media.KindAudio:
			d.info.Audio.Samples++
		}
	}

	d.info.Duration = end
	if moov.Mvhd != nil && moov.Mvhd.Timescale > 0 && moov.Mvhd.Duration > 0 {
		declared := toDuration(int64(moov.Mvhd.Duration), moov.Mvhd.Timescale)
		if declared > end {
			d.info.Duration = declared
		}
	}

	if len(videoDurations) > 0 {
		sort.Slice(videoDurations, func(i, j int) bool { return videoDurations[i] < videoDurations[j] })
		median := videoDurations[len(videoDurations)/2]
		if median > 0 {
			fps := float64(time.Second) / float64(median)
			d.info.Video.FrameRate = math.Round(fps*1000) / 1000
		}
	}
}

func videoInfo(trak *mp4.TrakBox) media.VideoTrackInfo {
	info := media.VideoTrackInfo{
		TrackID:   trak.Tkhd.TrackID,
		Timescale: trak.Mdia.Mdhd.Timescale,
	}

	entry := sampleEntry(trak)
	if entry != nil {
		info.Codec = entry.Type()
		if raw := encodeBox(entry); len(raw) >= 36 {
			info.Width = int(binary.BigEndian.Uint16(raw[32:34]))
			info.Height = int(binary.BigEndian.Uint16(raw[34:36]))
		}
		if vse, ok := entry.(*mp4.VisualSampleEntryBox); ok && vse.AvcC != nil {
			info.Config = annexBConfig(vse.AvcC)
		}
	}

	if info.Width == 0 || info.Height == 0 {
		info.Width = int(trak.Tkhd.Width >> 16)
		info.Height = int(trak.Tkhd.Height >> 16)
	}
	return info
}

func audioInfo(trak *mp4.TrakBox) media.AudioTrackInfo {
	info := media.AudioTrackInfo{TrackID: trak.Tkhd.TrackID}

	entry := sampleEntry(trak)
	if entry != nil {
		info.Codec = entry.Type()
		if raw := encodeBox(entry); len(raw) >= 36 {
			info.Channels = int(binary.BigEndian.Uint16(raw[24:26]))
			info.BitsPerSample = int(binary.BigEndian.Uint16(raw[26:28]))
			info.SampleRate = int(binary.BigEndian.Uint16(raw[32:34]))
		}
	}
	// The sample entry holds only the integer part of a 16.16 rate, which
	// cannot represent rates above 65535 Hz; the media timescale can.
	if ts := trak.Mdia.Mdhd.Timescale; ts > 0 {
		info.SampleRate = int(ts)
	}
	return info
}

func sampleEntry(trak *mp4.TrakBox) mp4.Box {
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return nil
	}
	children := trak.Mdia.Minf.Stbl.Stsd.Children
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

// encodeBox serializes a box so fixed-layout sample entry fields can be
// read regardless of how mp4ff typed the entry.
func encodeBox(b mp4.Box) []byte {
	var buf bytes.Buffer
	if err := b.Encode(&buf); err != nil {
		return nil
	}
	return buf.Bytes()
}

// annexBConfig converts avcC parameter sets to Annex B.
func annexBConfig(avcC *mp4.AvcCBox) []byte {
	var out []byte
	for _, sps := range avcC.SPSnalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, sps...)
	}
	for _, pps := range avcC.PPSnalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, pps...)
	}
	return out
}

func chunkOffset(stbl *mp4.StblBox, chunkNr int) (int64, error) {
	if stbl.Stco != nil {
		off, err := stbl.Stco.GetOffset(chunkNr)
		return int64(off), err
	}
	if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
		return 0, fmt.Errorf("chunk %d out of range", chunkNr)
	}
	return int64(stbl.Co64.ChunkOffset[chunkNr-1]), nil
}

func toDuration(ticks int64, timescale uint32) time.Duration {
	ts := int64(timescale)
	return time.Duration(ticks/ts*int64(time.Second) + ticks%ts*int64(time.Second)/ts)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
