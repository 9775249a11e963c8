package testpattern

import (
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/vidplay/pkg/mocks"
	"github.com/user/vidplay/pkg/ports"
)

// plainEncoder hides EncodeRawFrame.
type plainEncoder struct {
	ports.VideoEncoder
}

func TestGenerate_Timestamps(t *testing.T) {
	enc := &mocks.VideoEncoder{}
	opts := DefaultOptions()
	opts.Width, opts.Height = 64, 48

	data, err := New(&mocks.Renderer{}, enc).Generate(context.Background(), opts)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	assert.True(t, enc.BeginCalled)
	assert.True(t, enc.EndCalled)
	assert.True(t, enc.Options.Fragmented)
	assert.Nil(t, enc.Options.Audio)

	require.Len(t, enc.EncodeFrameCalls, 60)
	for i, call := range enc.EncodeFrameCalls {
		assert.Equal(t, 64, call.Width)
		assert.Equal(t, 48, call.Height)
		if i > 0 {
			assert.Greater(t, call.TimestampMs, enc.EncodeFrameCalls[i-1].TimestampMs)
		}
	}
	assert.Equal(t, 33, enc.EncodeFrameCalls[1].TimestampMs)
	assert.Equal(t, 1967, enc.EncodeFrameCalls[59].TimestampMs)
}

func TestGenerate_CorruptFrames(t *testing.T) {
	enc := &mocks.VideoEncoder{}
	opts := DefaultOptions()
	opts.Width, opts.Height = 32, 24
	opts.Duration = time.Second
	opts.CorruptFrames = []int{3, 10}

	_, err := New(&mocks.Renderer{}, enc).Generate(context.Background(), opts)
	require.NoError(t, err)

	assert.Len(t, enc.EncodeFrameCalls, 28)
	assert.Equal(t, []int{100, 333}, enc.RawFrameCalls)
}

func TestGenerate_CorruptNeedsRawEncoder(t *testing.T) {
	opts := DefaultOptions()
	opts.CorruptFrames = []int{0}

	_, err := New(&mocks.Renderer{}, plainEncoder{&mocks.VideoEncoder{}}).Generate(context.Background(), opts)
	assert.True(t, errors.Is(err, ErrRawFramesUnsupported))
}

func TestGenerate_Audio(t *testing.T) {
	enc := &mocks.VideoEncoder{}
	opts := DefaultOptions()
	opts.Width, opts.Height = 32, 24
	opts.Duration = 500 * time.Millisecond
	opts.Audio = true

	_, err := New(&mocks.Renderer{}, enc).Generate(context.Background(), opts)
	require.NoError(t, err)

	require.NotNil(t, enc.Options.Audio)
	assert.Equal(t, 48000, enc.Options.Audio.SampleRate)
	assert.Equal(t, 24000*2, enc.AudioSamples)
}

func TestGenerate_NoFrames(t *testing.T) {
	opts := DefaultOptions()
	opts.Duration = 0

	_, err := New(&mocks.Renderer{}, &mocks.VideoEncoder{}).Generate(context.Background(), opts)
	assert.Error(t, err)
}

func TestGenerate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&mocks.Renderer{}, &mocks.VideoEncoder{}).Generate(ctx, DefaultOptions())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFrame_Labels(t *testing.T) {
	var canvas *mocks.Canvas
	renderer := &mocks.Renderer{
		CreateCanvasFunc: func(w, h int, _ color.Color) ports.Canvas {
			canvas = &mocks.Canvas{}
			return canvas
		},
	}

	New(renderer, &mocks.VideoEncoder{}).Frame(30, DefaultOptions())

	assert.Equal(t, []string{"#30", "00:01.000"}, canvas.Texts)
	// Progress bar track and fill.
	require.Len(t, canvas.Rects, 2)
	assert.Equal(t, 160, canvas.Rects[1].Dx())
}

func TestTone(t *testing.T) {
	opts := DefaultOptions()
	opts.Duration = time.Second
	opts.Channels = 1

	samples := Tone(opts)
	require.Len(t, samples, 48000)
	assert.Equal(t, int16(0), samples[0])

	var peak int16
	for _, s := range samples {
		peak = max(peak, s)
	}
	assert.InDelta(t, 0.25*32767, float64(peak), 200)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00.000", FormatTimestamp(0))
	assert.Equal(t, "00:01.967", FormatTimestamp(1967*time.Millisecond))
	assert.Equal(t, "01:05.250", FormatTimestamp(65250*time.Millisecond))
}
