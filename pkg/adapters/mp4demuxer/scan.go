package mp4demuxer

import (
	"errors"
	"io"
	"sync"

	"github.com/Eyevinn/mp4ff/mp4"
)

// topLevelBoxes lists the box types accepted at the top level of an
// ISO-BMFF file.
var topLevelBoxes = map[string]bool{
	"ftyp": true, "styp": true, "moov": true, "moof": true, "mdat": true,
	"free": true, "skip": true, "wide": true, "sidx": true, "ssix": true,
	"uuid": true, "emsg": true, "prft": true, "mfra": true, "meta": true,
	"pdin": true,
}

// boxSpan is the position of one top-level box.
type boxSpan struct {
	name   string
	offset int64
	size   int64
}

// layout is the result of scanning the top-level boxes.
type layout struct {
	boxes []boxSpan

	// validEnd is the end of the last complete box.
	validEnd int64

	// truncatedAt is the offset of the first incomplete box, or -1.
	truncatedAt int64
}

func (l layout) has(name string) bool {
	for _, b := range l.boxes {
		if b.name == name {
			return true
		}
	}
	return false
}

// scanBoxes walks the top-level box headers without reading payloads.
func scanBoxes(ra io.ReaderAt, size int64) (layout, error) {
	l := layout{truncatedAt: -1}
	var offset int64

	for offset < size {
		if size-offset < 8 {
			l.truncatedAt = offset
			break
		}

		hdr, err := mp4.DecodeHeader(io.NewSectionReader(ra, offset, size-offset))
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				l.truncatedAt = offset
				break
			}
			return l, err
		}

		if len(l.boxes) == 0 && !topLevelBoxes[hdr.Name] {
			return l, errNotISOBMFF
		}

		boxSize := int64(hdr.Size)
		if boxSize == 0 {
			// Box extends to the end of the file.
			boxSize = size - offset
		}
		if boxSize < int64(hdr.Hdrlen) {
			return l, errBadBoxSize
		}
		if offset+boxSize > size {
			l.truncatedAt = offset
			break
		}

		l.boxes = append(l.boxes, boxSpan{name: hdr.Name, offset: offset, size: boxSize})
		offset += boxSize
		l.validEnd = offset
	}

	return l, nil
}

var (
	errNotISOBMFF = errors.New("not an ISO base media file")
	errBadBoxSize = errors.New("box size smaller than its header")
)

// readerAt adapts an io.ReadSeeker that lacks ReadAt.
type readerAt struct {
	mu sync.Mutex
	r  io.ReadSeeker
}

func asReaderAt(r io.ReadSeeker) io.ReaderAt {
	if ra, ok := r.(io.ReaderAt); ok {
		return ra
	}
	return &readerAt{r: r}
}

func (a *readerAt) ReadAt(p []byte, off int64) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.r.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(a.r, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}
