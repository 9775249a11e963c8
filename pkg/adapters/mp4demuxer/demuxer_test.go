package mp4demuxer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/vidplay/pkg/adapters/ggrenderer"
	"github.com/user/vidplay/pkg/adapters/mp4writer"
	"github.com/user/vidplay/pkg/media"
	"github.com/user/vidplay/pkg/mocks"
	"github.com/user/vidplay/pkg/testpattern"
)

func makeClip(t *testing.T, opts testpattern.Options, wopts ...mp4writer.Option) []byte {
	t.Helper()
	gen := testpattern.New(ggrenderer.New(), mp4writer.New(wopts...))
	data, err := gen.Generate(context.Background(), opts)
	require.NoError(t, err)
	return data
}

func smallClip() testpattern.Options {
	opts := testpattern.DefaultOptions()
	opts.Width = 64
	opts.Height = 48
	return opts
}

// readAll reads packets until the first error and returns it, with io.EOF
// reported as nil.
func readAll(t *testing.T, d *Demuxer) ([]media.Packet, error) {
	t.Helper()
	var pkts []media.Packet
	for {
		pkt, err := d.ReadPacket(context.Background())
		if errors.Is(err, io.EOF) {
			return pkts, nil
		}
		if err != nil {
			return pkts, err
		}
		pkts = append(pkts, pkt)
	}
}

func TestOpen_FragmentedVideoOnly(t *testing.T) {
	src := mocks.NewSource("clip.mp4", makeClip(t, smallClip()))

	d, err := Open(src)
	require.NoError(t, err)
	defer d.Close()

	info := d.Info()
	assert.True(t, info.Fragmented)
	assert.Equal(t, "jpeg", info.Video.Codec)
	assert.Equal(t, 64, info.Video.Width)
	assert.Equal(t, 48, info.Video.Height)
	assert.InDelta(t, 30.0, info.Video.FrameRate, 0.01)
	assert.Equal(t, 60, info.Video.Samples)
	assert.False(t, info.HasAudio())
	assert.InDelta(t, float64(2*time.Second), float64(info.Duration), float64(time.Millisecond))

	pkts, err := readAll(t, d)
	require.NoError(t, err)
	require.Len(t, pkts, 60)

	for i, pkt := range pkts {
		assert.Equal(t, media.KindVideo, pkt.Kind)
		assert.True(t, pkt.Keyframe)
		assert.NotEmpty(t, pkt.Data)
		want := time.Duration(i) * time.Second / 30
		assert.InDelta(t, float64(want), float64(pkt.PTS), float64(time.Millisecond), "packet %d", i)
		if i > 0 {
			assert.Greater(t, pkt.DTS, pkts[i-1].DTS)
		}
	}

	// EOF is sticky.
	_, err = d.ReadPacket(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpen_WithAudio(t *testing.T) {
	for _, fragmented := range []bool{true, false} {
		name := "progressive"
		if fragmented {
			name = "fragmented"
		}
		t.Run(name, func(t *testing.T) {
			opts := smallClip()
			opts.Fragmented = fragmented
			opts.Audio = true
			opts.SampleRate = 48000
			opts.Channels = 2

			d, err := Open(mocks.NewSource("av.mp4", makeClip(t, opts)))
			require.NoError(t, err)
			defer d.Close()

			info := d.Info()
			assert.Equal(t, fragmented, info.Fragmented)
			require.True(t, info.HasAudio())
			assert.Equal(t, "sowt", info.Audio.Codec)
			assert.Equal(t, 48000, info.Audio.SampleRate)
			assert.Equal(t, 2, info.Audio.Channels)
			assert.Equal(t, 16, info.Audio.BitsPerSample)

			pkts, err := readAll(t, d)
			require.NoError(t, err)

			var video, audio int
			for i, pkt := range pkts {
				switch pkt.Kind {
				case media.KindVideo:
					video++
				case media.KindAudio:
					audio++
					assert.Equal(t, 0, len(pkt.Data)%4)
				}
				if i > 0 {
					assert.GreaterOrEqual(t, pkt.DTS, pkts[i-1].DTS, "packets are merged by decode time")
				}
			}
			assert.Equal(t, 60, video)
			// 96000 frames in blocks of 1024.
			assert.Equal(t, 94, audio)
			assert.Equal(t, 94, info.Audio.Samples)
		})
	}
}

func TestOpen_Progressive(t *testing.T) {
	opts := smallClip()
	opts.Fragmented = false

	d, err := Open(mocks.NewSource("clip.mp4", makeClip(t, opts)))
	require.NoError(t, err)
	defer d.Close()

	assert.False(t, d.Info().Fragmented)
	pkts, err := readAll(t, d)
	require.NoError(t, err)
	assert.Len(t, pkts, 60)
}

func TestOpen_NotFound(t *testing.T) {
	_, err := Open(mocks.MissingSource("missing.mp4"))

	var nf *media.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing.mp4", nf.Source)
}

func TestOpen_NotAContainer(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"text", []byte("this is definitely not an mp4 file, just some text")},
		{"empty", nil},
		{"ftyp only", []byte{0, 0, 0, 16, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(mocks.NewSource("bad.mp4", tt.data))

			var ce *media.ContainerError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestOpen_TruncatedBeforeMoov(t *testing.T) {
	opts := smallClip()
	opts.Fragmented = false
	data := makeClip(t, opts, mp4writer.WithMoovAtEnd())

	_, err := Open(mocks.NewSource("cut.mp4", data[:len(data)-64]))

	var te *media.TruncatedStreamError
	assert.ErrorAs(t, err, &te)
}

func TestReadPacket_TruncatedFragment(t *testing.T) {
	data := makeClip(t, smallClip())

	d, err := Open(mocks.NewSource("cut.mp4", data[:len(data)-200]))
	require.NoError(t, err)
	defer d.Close()

	pkts, err := readAll(t, d)

	var te *media.TruncatedStreamError
	require.ErrorAs(t, err, &te)
	// The first one-second fragment is intact.
	assert.Len(t, pkts, 30)

	// The error repeats.
	_, err = d.ReadPacket(context.Background())
	assert.ErrorAs(t, err, &te)
}

func TestReadPacket_TruncatedMdat(t *testing.T) {
	opts := smallClip()
	opts.Fragmented = false
	data := makeClip(t, opts)

	d, err := Open(mocks.NewSource("cut.mp4", data[:len(data)*2/3]))
	require.NoError(t, err)
	defer d.Close()

	pkts, err := readAll(t, d)

	var te *media.TruncatedStreamError
	require.ErrorAs(t, err, &te)
	assert.NotEmpty(t, pkts)
	assert.Less(t, len(pkts), 60)
}

func TestReadPacket_Cancelled(t *testing.T) {
	d, err := Open(mocks.NewSource("clip.mp4", makeClip(t, smallClip())))
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = d.ReadPacket(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type seekOnly struct {
	io.ReadSeeker
}

func TestNew_ReaderWithoutReadAt(t *testing.T) {
	src := mocks.NewSource("clip.mp4", makeClip(t, smallClip()))
	r, size, err := src.Open()
	require.NoError(t, err)
	defer r.Close()

	d, err := New(seekOnly{r}, size)
	require.NoError(t, err)

	pkts, err := readAll(t, d)
	require.NoError(t, err)
	assert.Len(t, pkts, 60)
}

func TestClose_ReleasesSource(t *testing.T) {
	src := mocks.NewSource("clip.mp4", makeClip(t, smallClip()))

	d, err := Open(src)
	require.NoError(t, err)
	assert.Equal(t, 1, src.OpenReaders())

	require.NoError(t, d.Close())
	assert.Equal(t, 0, src.OpenReaders())

	// A failed open does not leak the reader either.
	bad := mocks.NewSource("bad.mp4", []byte("garbage garbage garbage"))
	_, err = Open(bad)
	require.Error(t, err)
	assert.Equal(t, 1, bad.Opens())
	assert.Equal(t, 0, bad.OpenReaders())
}

func TestProbe(t *testing.T) {
	info, err := Probe(mocks.NewSource("clip.mp4", makeClip(t, smallClip())))
	require.NoError(t, err)
	assert.Equal(t, 60, info.Video.Samples)
}

// countingReader counts the payload bytes read through it.
type countingReader struct {
	*bytes.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.Reader.Read(p)
	c.n.Add(int64(n))
	return n, err
}

func (c *countingReader) ReadAt(p []byte, off int64) (int, error) {
	n, err := c.Reader.ReadAt(p, off)
	c.n.Add(int64(n))
	return n, err
}

func TestNew_FragmentedReadsOnlyHeaders(t *testing.T) {
	opts := smallClip()
	opts.Width, opts.Height = 160, 120
	opts.Audio = true
	data := makeClip(t, opts, mp4writer.WithFragmentDuration(500*time.Millisecond))
	r := &countingReader{Reader: bytes.NewReader(data)}

	d, err := New(r, int64(len(data)))
	require.NoError(t, err)
	defer d.Close()
	assert.Less(t, r.n.Load(), int64(len(data)/4), "Open must not load media data")

	pkts, err := readAll(t, d)
	require.NoError(t, err)

	var video, audio, payload int
	for _, pkt := range pkts {
		payload += len(pkt.Data)
		switch pkt.Kind {
		case media.KindVideo:
			require.Equal(t, []byte{0xFF, 0xD8}, pkt.Data[:2], "video packet %d is not a JPEG", video)
			video++
		case media.KindAudio:
			audio++
		}
	}
	assert.Equal(t, 60, video)
	assert.Greater(t, audio, 0)
	assert.GreaterOrEqual(t, r.n.Load(), int64(payload))
}

func TestAudioInfo_HighSampleRate(t *testing.T) {
	rate := 96000
	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(uint32(rate), "audio", "en")
	trak := init.Moov.Traks[0]
	// The 16-bit rate field of the sample entry wraps above 65535 Hz.
	trak.Mdia.Minf.Stbl.Stsd.AddChild(mp4.CreateAudioSampleEntryBox("sowt", 2, 16, uint16(rate&0xFFFF), nil))

	info := audioInfo(trak)
	assert.Equal(t, 96000, info.SampleRate)
	assert.Equal(t, 2, info.Channels)
	assert.Equal(t, 16, info.BitsPerSample)
}
