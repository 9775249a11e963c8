// Package swdecoder decodes intra-only video codecs in pure Go:
// Motion JPEG, PNG and VP8 key frames.
package swdecoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/vp8"

	"github.com/user/vidplay/pkg/adapters/codecdetect"
	"github.com/user/vidplay/pkg/media"
	"github.com/user/vidplay/pkg/ports"
)

// Options configures the decoder.
type Options struct {
	// MaxWidth and MaxHeight bound the output size. Larger pictures are
	// scaled down keeping their aspect ratio. Zero means unbounded.
	MaxWidth  int
	MaxHeight int
}

// Decoder implements ports.VideoDecoder for intra-only codecs.
type Decoder struct {
	codec  codecdetect.Codec
	opts   Options
	vp8    *vp8.Decoder
	closed bool
}

// Ensure Decoder implements ports.VideoDecoder.
var _ ports.VideoDecoder = (*Decoder)(nil)

// Supports reports whether the decoder handles codec.
func Supports(codec codecdetect.Codec) bool {
	switch codec {
	case codecdetect.CodecMJPEG, codecdetect.CodecPNG, codecdetect.CodecVP8:
		return true
	}
	return false
}

// New creates a decoder for codec.
func New(codec codecdetect.Codec, opts Options) (*Decoder, error) {
	if !Supports(codec) {
		return nil, fmt.Errorf("%w: %s", media.ErrUnsupportedCodec, codec)
	}
	d := &Decoder{codec: codec, opts: opts}
	if codec == codecdetect.CodecVP8 {
		d.vp8 = vp8.NewDecoder()
	}
	return d, nil
}

// Decode decodes one packet into exactly one frame. Intra-only codecs
// never reorder, so frames come out in packet order.
func (d *Decoder) Decode(ctx context.Context, pkt media.Packet) ([]*media.VideoFrame, error) {
	if d.closed {
		return nil, media.ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := d.decodeImage(pkt.Data)
	if err != nil {
		if errors.Is(err, media.ErrFrameDropped) {
			return nil, err
		}
		return nil, &media.DecodeError{Kind: media.KindVideo, PTS: pkt.PTS, Err: err}
	}

	return []*media.VideoFrame{media.NewVideoFrame(d.toRGBA(img), pkt.PTS, pkt.Duration)}, nil
}

// Flush returns nothing: no frame is ever held back.
func (d *Decoder) Flush(ctx context.Context) ([]*media.VideoFrame, error) {
	return nil, nil
}

// Close releases decoder resources.
func (d *Decoder) Close() error {
	d.closed = true
	d.vp8 = nil
	return nil
}

func (d *Decoder) decodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty packet")
	}

	switch d.codec {
	case codecdetect.CodecMJPEG:
		return jpeg.Decode(bytes.NewReader(data))
	case codecdetect.CodecPNG:
		return png.Decode(bytes.NewReader(data))
	case codecdetect.CodecVP8:
		d.vp8.Init(bytes.NewReader(data), len(data))
		fh, err := d.vp8.DecodeFrameHeader()
		if err != nil {
			return nil, err
		}
		if !fh.KeyFrame {
			return nil, media.ErrFrameDropped
		}
		return d.vp8.DecodeFrame()
	default:
		return nil, media.ErrUnsupportedCodec
	}
}

// toRGBA converts img to packed RGBA, scaling it down to fit the
// configured bounds.
func (d *Decoder) toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	w, h := media.FitSize(b.Dx(), b.Dy(), d.opts.MaxWidth, d.opts.MaxHeight)

	if rgba, ok := img.(*image.RGBA); ok && w == b.Dx() && h == b.Dy() && b.Min == (image.Point{}) {
		return rgba
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}
	return dst
}
