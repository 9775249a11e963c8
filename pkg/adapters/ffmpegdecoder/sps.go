package ffmpegdecoder

import (
	"bytes"
	"errors"

	"github.com/icza/bitio"
)

// SPS holds the fields of an H.264 sequence parameter set needed to size
// and time the decoded pictures.
type SPS struct {
	ProfileIdc uint8
	LevelIdc   uint8

	PicWidthInMbsMinus1  uint32
	PicHeightInMbsMinus1 uint32
	FrameMbsOnlyFlag     bool
	ChromaFormatIdc      uint32

	// Crop offsets in chroma sample units.
	CropLeft, CropRight, CropTop, CropBottom uint32

	// VUI timing, zero when absent.
	NumUnitsInTick uint32
	TimeScale      uint32

	// MaxNumReorderFrames is -1 when the bitstream restriction is absent.
	MaxNumReorderFrames int
}

// SPS errors.
var (
	ErrSPSTooShort  = errors.New("sps: buffer too short")
	ErrSPSWrongType = errors.New("sps: not a sequence parameter set")
)

// ParseSPS decodes the NAL unit of a sequence parameter set, header byte
// included.
func ParseSPS(nalu []byte) (*SPS, error) {
	buf := unescapeRBSP(nalu)
	if len(buf) < 4 {
		return nil, ErrSPSTooShort
	}
	if buf[0]&0x1F != naluTypeSPS {
		return nil, ErrSPSWrongType
	}

	s := &SPS{
		ProfileIdc:          buf[1],
		LevelIdc:            buf[3],
		ChromaFormatIdc:     1,
		MaxNumReorderFrames: -1,
	}
	r := &spsReader{br: bitio.NewReader(bytes.NewReader(buf[4:]))}

	r.ue() // seq_parameter_set_id

	switch s.ProfileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		s.ChromaFormatIdc = r.ue()
		if s.ChromaFormatIdc == 3 {
			r.flag() // separate_colour_plane_flag
		}
		r.ue()   // bit_depth_luma_minus8
		r.ue()   // bit_depth_chroma_minus8
		r.flag() // qpprime_y_zero_transform_bypass_flag
		if r.flag() {
			lists := 8
			if s.ChromaFormatIdc == 3 {
				lists = 12
			}
			for i := 0; i < lists; i++ {
				if r.flag() {
					size := 16
					if i >= 6 {
						size = 64
					}
					r.skipScalingList(size)
				}
			}
		}
	}

	r.ue() // log2_max_frame_num_minus4
	switch r.ue() {
	case 0:
		r.ue() // log2_max_pic_order_cnt_lsb_minus4
	case 1:
		r.flag() // delta_pic_order_always_zero_flag
		r.se()   // offset_for_non_ref_pic
		r.se()   // offset_for_top_to_bottom_field
		n := r.ue()
		for i := uint32(0); i < n && r.err == nil; i++ {
			r.se()
		}
	}

	r.ue()   // max_num_ref_frames
	r.flag() // gaps_in_frame_num_value_allowed_flag
	s.PicWidthInMbsMinus1 = r.ue()
	s.PicHeightInMbsMinus1 = r.ue()
	s.FrameMbsOnlyFlag = r.flag()
	if !s.FrameMbsOnlyFlag {
		r.flag() // mb_adaptive_frame_field_flag
	}
	r.flag() // direct_8x8_inference_flag

	if r.flag() {
		s.CropLeft = r.ue()
		s.CropRight = r.ue()
		s.CropTop = r.ue()
		s.CropBottom = r.ue()
	}

	if r.err == nil && r.flag() {
		s.parseVUI(r)
	}

	if r.err != nil {
		return nil, r.err
	}
	return s, nil
}

func (s *SPS) parseVUI(r *spsReader) {
	if r.flag() { // aspect_ratio_info_present_flag
		if r.bits(8) == 255 {
			r.bits(16)
			r.bits(16)
		}
	}
	if r.flag() { // overscan_info_present_flag
		r.flag()
	}
	if r.flag() { // video_signal_type_present_flag
		r.bits(3)
		r.flag()
		if r.flag() {
			r.bits(24)
		}
	}
	if r.flag() { // chroma_loc_info_present_flag
		r.ue()
		r.ue()
	}
	if r.flag() { // timing_info_present_flag
		s.NumUnitsInTick = uint32(r.bits(32))
		s.TimeScale = uint32(r.bits(32))
		r.flag()
	}

	nalHRD := r.flag()
	if nalHRD {
		r.skipHRD()
	}
	vclHRD := r.flag()
	if vclHRD {
		r.skipHRD()
	}
	if nalHRD || vclHRD {
		r.flag() // low_delay_hrd_flag
	}
	r.flag() // pic_struct_present_flag

	if r.flag() { // bitstream_restriction_flag
		r.flag()
		r.ue()
		r.ue()
		r.ue()
		r.ue()
		reorder := r.ue()
		r.ue() // max_dec_frame_buffering
		if r.err == nil {
			s.MaxNumReorderFrames = int(reorder)
		}
	}
}

// Width returns the cropped picture width.
func (s *SPS) Width() int {
	cropUnitX := uint32(1)
	if s.ChromaFormatIdc == 1 || s.ChromaFormatIdc == 2 {
		cropUnitX = 2
	}
	return int((s.PicWidthInMbsMinus1+1)*16 - (s.CropLeft+s.CropRight)*cropUnitX)
}

// Height returns the cropped picture height.
func (s *SPS) Height() int {
	frameMult := uint32(2)
	if s.FrameMbsOnlyFlag {
		frameMult = 1
	}
	cropUnitY := frameMult
	if s.ChromaFormatIdc == 1 {
		cropUnitY *= 2
	}
	return int(frameMult*(s.PicHeightInMbsMinus1+1)*16 - (s.CropTop+s.CropBottom)*cropUnitY)
}

// FPS returns the frame rate declared in the VUI, or 0.
func (s *SPS) FPS() float64 {
	if s.NumUnitsInTick == 0 || s.TimeScale == 0 {
		return 0
	}
	return float64(s.TimeScale) / (2 * float64(s.NumUnitsInTick))
}

// spsReader wraps a bit reader and keeps the first error, so the parser
// reads like the syntax tables.
type spsReader struct {
	br  *bitio.Reader
	err error
}

func (r *spsReader) bits(n uint8) uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.br.ReadBits(n)
	if err != nil {
		r.err = err
	}
	return v
}

func (r *spsReader) flag() bool {
	return r.bits(1) == 1
}

// ue reads an unsigned Exp-Golomb code.
func (r *spsReader) ue() uint32 {
	leadingZeroBits := 0
	for r.err == nil && r.bits(1) == 0 {
		leadingZeroBits++
		if leadingZeroBits > 31 {
			r.err = errors.New("sps: invalid exp-golomb code")
			return 0
		}
	}
	if r.err != nil {
		return 0
	}
	if leadingZeroBits == 0 {
		return 0
	}
	return uint32(1)<<leadingZeroBits - 1 + uint32(r.bits(uint8(leadingZeroBits)))
}

// se reads a signed Exp-Golomb code.
func (r *spsReader) se() int32 {
	v := int64(r.ue())
	if v&1 != 0 {
		return int32((v + 1) / 2)
	}
	return int32(-v / 2)
}

func (r *spsReader) skipScalingList(size int) {
	last, next := int32(8), int32(8)
	for j := 0; j < size && r.err == nil; j++ {
		if next != 0 {
			next = (last + r.se() + 256) % 256
		}
		if next != 0 {
			last = next
		}
	}
}

func (r *spsReader) skipHRD() {
	cpbCnt := r.ue() + 1
	r.bits(4) // bit_rate_scale
	r.bits(4) // cpb_size_scale
	for i := uint32(0); i < cpbCnt && r.err == nil; i++ {
		r.ue()
		r.ue()
		r.flag()
	}
	r.bits(20) // four 5-bit length fields
}

// unescapeRBSP removes emulation prevention bytes (00 00 03).
func unescapeRBSP(nalu []byte) []byte {
	out := make([]byte, 0, len(nalu))
	zeros := 0
	for _, b := range nalu {
		if zeros >= 2 && b == 3 {
			zeros = 0
			continue
		}
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b)
	}
	return out
}
