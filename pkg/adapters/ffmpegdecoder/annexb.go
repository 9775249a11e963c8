package ffmpegdecoder

import (
	"errors"
)

const (
	naluTypeIDR = 5
	naluTypeSPS = 7
	naluTypePPS = 8
)

var errBadAVCC = errors.New("nal unit length exceeds packet")

// splitAVCC splits 4-byte length-prefixed NAL units.
func splitAVCC(data []byte) ([][]byte, error) {
	var nalus [][]byte
	for offset := 0; offset < len(data); {
		if offset+4 > len(data) {
			return nil, errBadAVCC
		}
		n := int(data[offset])<<24 | int(data[offset+1])<<16 | int(data[offset+2])<<8 | int(data[offset+3])
		offset += 4
		if n <= 0 || offset+n > len(data) {
			return nil, errBadAVCC
		}
		nalus = append(nalus, data[offset:offset+n])
		offset += n
	}
	return nalus, nil
}

// splitAnnexB splits an Annex B byte stream into NAL units.
func splitAnnexB(data []byte) [][]byte {
	var nalus [][]byte
	start := -1
	i := 0

	for i+2 < len(data) {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			if start >= 0 {
				end := i
				if end > start && data[end-1] == 0 {
					end--
				}
				nalus = append(nalus, data[start:end])
			}
			i += 3
			start = i
			continue
		}
		i++
	}

	if start >= 0 && start < len(data) {
		nalus = append(nalus, data[start:])
	}
	return nalus
}

// findSPS returns the first sequence parameter set in an Annex B stream.
func findSPS(data []byte) []byte {
	sps, _ := parameterSets(splitAnnexB(data))
	if len(sps) == 0 {
		return nil
	}
	return sps[0]
}

// parameterSets picks the SPS and PPS units out of nalus.
func parameterSets(nalus [][]byte) (sps, pps [][]byte) {
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		switch nalu[0] & 0x1F {
		case naluTypeSPS:
			sps = append(sps, nalu)
		case naluTypePPS:
			pps = append(pps, nalu)
		}
	}
	return sps, pps
}
