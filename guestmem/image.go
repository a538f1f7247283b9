// SPDX-License-Identifier: GPL-2.0-only

package guestmem

import (
	"io/fs"
	"slices"
	"sync"

	"github.com/MatthiasValvekens/xhci-abi/xhci"
	"github.com/efficientgo/core/errors"
	"github.com/go-kit/log"
)

var (
	_ xhci.GuestMemory = (*Image)(nil)
	_ xhci.GuestMemory = (*Map)(nil)
)

// ErrOutOfRange is returned for accesses that are not fully backed by
// memory.
var ErrOutOfRange = errors.New("guest address out of range")

// Image is a contiguous range of guest physical memory [Base, Base+Size).
type Image struct {
	mu   sync.RWMutex
	base uint64
	buf  []byte
}

func NewImage(base uint64, size int) *Image {
	return &Image{base: base, buf: make([]byte, size)}
}

// LoadImage reads a raw memory dump from fsys and maps it at base.
func LoadImage(fsys fs.FS, name string, base uint64, logger log.Logger) (*Image, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read memory image %s", name)
	}
	if uint64(len(content)) > ^base {
		return nil, errors.Newf("memory image %s of %d bytes does not fit at 0x%x", name, len(content), base)
	}

	_ = logger.Log("msg", "Loaded guest memory image", "name", name, "base", base, "size", len(content))
	return &Image{base: base, buf: content}, nil
}

func (m *Image) Base() uint64 {
	return m.base
}

func (m *Image) Size() int {
	return len(m.buf)
}

// contains reports whether [gpa, gpa+n) lies within m.
func (m *Image) contains(gpa uint64, n int) bool {
	if gpa < m.base {
		return false
	}
	off := gpa - m.base
	return off <= uint64(len(m.buf)) && uint64(n) <= uint64(len(m.buf))-off
}

func (m *Image) ReadSlice(gpa uint64, p []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.contains(gpa, len(p)) {
		return errors.Wrapf(ErrOutOfRange, "read of %d bytes at 0x%x", len(p), gpa)
	}
	copy(p, m.buf[gpa-m.base:])
	return nil
}

func (m *Image) WriteSlice(gpa uint64, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.contains(gpa, len(p)) {
		return errors.Wrapf(ErrOutOfRange, "write of %d bytes at 0x%x", len(p), gpa)
	}
	copy(m.buf[gpa-m.base:], p)
	return nil
}

// Map combines non-overlapping images into one guest address space. An
// access must fall within a single image.
type Map struct {
	images []*Image
}

func NewMap(images ...*Image) (*Map, error) {
	for _, img := range images {
		if uint64(len(img.buf)) > ^img.base {
			return nil, errors.Newf("memory image of %d bytes at 0x%x wraps the address space", len(img.buf), img.base)
		}
	}
	sorted := slices.Clone(images)
	slices.SortFunc(sorted, func(a, b *Image) int {
		switch {
		case a.base < b.base:
			return -1
		case a.base > b.base:
			return 1
		default:
			return 0
		}
	})
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		if prev.base+uint64(len(prev.buf)) > sorted[i].base {
			return nil, errors.Newf("memory images at 0x%x and 0x%x overlap", prev.base, sorted[i].base)
		}
	}
	return &Map{images: sorted}, nil
}

func (m *Map) lookup(gpa uint64, n int) *Image {
	// Last image starting at or below gpa.
	i, found := slices.BinarySearchFunc(m.images, gpa, func(img *Image, gpa uint64) int {
		switch {
		case img.base < gpa:
			return -1
		case img.base > gpa:
			return 1
		default:
			return 0
		}
	})
	if !found {
		i--
	}
	if i < 0 || !m.images[i].contains(gpa, n) {
		return nil
	}
	return m.images[i]
}

func (m *Map) ReadSlice(gpa uint64, p []byte) error {
	img := m.lookup(gpa, len(p))
	if img == nil {
		return errors.Wrapf(ErrOutOfRange, "read of %d bytes at 0x%x", len(p), gpa)
	}
	return img.ReadSlice(gpa, p)
}

func (m *Map) WriteSlice(gpa uint64, p []byte) error {
	img := m.lookup(gpa, len(p))
	if img == nil {
		return errors.Wrapf(ErrOutOfRange, "write of %d bytes at 0x%x", len(p), gpa)
	}
	return img.WriteSlice(gpa, p)
}
