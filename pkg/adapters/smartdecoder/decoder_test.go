package smartdecoder

import (
	"errors"
	"testing"

	"github.com/user/vidplay/pkg/adapters/codecdetect"
	"github.com/user/vidplay/pkg/media"
)

func TestNew_Software(t *testing.T) {
	for _, entry := range []string{"jpeg", "mjpa", "png ", "vp08"} {
		t.Run(entry, func(t *testing.T) {
			d, info, err := New(media.VideoTrackInfo{Codec: entry}, Options{})
			if err != nil {
				t.Fatalf("failed to create decoder: %v", err)
			}
			defer d.Close()

			if info.Backend != BackendSoftware {
				t.Errorf("expected software backend, got %s", info.Backend)
			}
			if info.ReorderDepth != 0 {
				t.Errorf("expected no reordering, got %d", info.ReorderDepth)
			}
		})
	}
}

func TestNew_H264(t *testing.T) {
	if !IsH264Available("") {
		t.Skip("H.264 decoder not available")
	}

	d, info, err := New(media.VideoTrackInfo{Codec: "avc1"}, Options{})
	if err != nil {
		t.Fatalf("failed to create H.264 decoder: %v", err)
	}
	defer d.Close()

	if info.Codec != codecdetect.CodecH264 || info.Backend != BackendFFmpeg {
		t.Errorf("unexpected info %+v", info)
	}
	if info.ReorderDepth != defaultReorderDepth {
		t.Errorf("expected default reorder depth without SPS, got %d", info.ReorderDepth)
	}
}

func TestNew_Unsupported(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		opts  Options
	}{
		{"unknown codec", "xxxx", Options{}},
		{"hevc", "hvc1", Options{}},
		{"h264 on software backend", "avc1", Options{Backend: BackendSoftware}},
		{"mjpeg on ffmpeg backend", "jpeg", Options{Backend: BackendFFmpeg}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := New(media.VideoTrackInfo{Codec: tt.entry}, tt.opts)
			if !errors.Is(err, media.ErrUnsupportedCodec) {
				t.Errorf("expected ErrUnsupportedCodec, got %v", err)
			}
		})
	}
}

func TestNew_FFmpegMissing(t *testing.T) {
	_, _, err := New(media.VideoTrackInfo{Codec: "avc1"}, Options{FFmpegPath: "/nonexistent/ffmpeg"})
	if !errors.Is(err, ErrNoDecoderAvailable) {
		t.Errorf("expected ErrNoDecoderAvailable, got %v", err)
	}
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"", BackendAuto, false},
		{"auto", BackendAuto, false},
		{"software", BackendSoftware, false},
		{"ffmpeg", BackendFFmpeg, false},
		{"vaapi", "", true},
	}

	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseBackend(%q) = %q, %v", tt.in, got, err)
		}
	}
}
