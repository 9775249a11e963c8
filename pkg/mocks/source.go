package mocks

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/user/vidplay/pkg/ports"
)

// Source is an in-memory ports.Source.
type Source struct {
	mu sync.Mutex

	name string
	data []byte

	// Missing makes Open fail with fs.ErrNotExist.
	Missing bool

	// OpenErr is returned by Open when set.
	OpenErr error

	opens  int
	closes int
}

// NewSource creates a source serving data under name.
func NewSource(name string, data []byte) *Source {
	return &Source{name: name, data: data}
}

// MissingSource creates a source that does not exist.
func MissingSource(name string) *Source {
	return &Source{name: name, Missing: true}
}

func (m *Source) Name() string {
	return m.name
}

func (m *Source) Open() (io.ReadSeekCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Missing {
		return nil, 0, fmt.Errorf("open %s: %w", m.name, fs.ErrNotExist)
	}
	if m.OpenErr != nil {
		return nil, 0, m.OpenErr
	}
	m.opens++
	return &trackedReader{Reader: bytes.NewReader(m.data), src: m}, int64(len(m.data)), nil
}

// OpenReaders returns the number of readers opened and not yet closed.
func (m *Source) OpenReaders() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens - m.closes
}

// Opens returns the number of successful Open calls.
func (m *Source) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

type trackedReader struct {
	*bytes.Reader
	src    *Source
	closed bool
}

func (r *trackedReader) Close() error {
	r.src.mu.Lock()
	defer r.src.mu.Unlock()
	if !r.closed {
		r.closed = true
		r.src.closes++
	}
	return nil
}

var _ ports.Source = (*Source)(nil)
