package guestmem

import (
	"testing"
	"testing/fstest"

	"github.com/MatthiasValvekens/xhci-abi/xhci"
	"github.com/efficientgo/core/errors"
	"github.com/efficientgo/core/testutil"
)

func TestLoadImage(t *testing.T) {
	for _, tc := range []struct {
		name string
		fs   fstest.MapFS
		base uint64
		size int
		err  bool
	}{
		{
			name: "missing file",
			fs:   fstest.MapFS{},
			err:  true,
		},
		{
			name: "dump",
			fs: fstest.MapFS{
				"mem.bin": {Data: make([]byte, 4096)},
			},
			base: 0x100000,
			size: 4096,
		},
		{
			name: "wraps address space",
			fs: fstest.MapFS{
				"mem.bin": {Data: make([]byte, 32)},
			},
			base: ^uint64(0) - 8,
			err:  true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			img, err := LoadImage(tc.fs, "mem.bin", tc.base, nil)
			if tc.err {
				testutil.NotOk(t, err)
				return
			}
			testutil.Ok(t, err)
			testutil.Equals(t, tc.base, img.Base())
			testutil.Equals(t, tc.size, img.Size())
		})
	}
}

func TestImageBounds(t *testing.T) {
	img := NewImage(0x1000, 64)
	testutil.Ok(t, img.WriteSlice(0x1030, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}))

	buf := make([]byte, 4)
	testutil.Ok(t, img.ReadSlice(0x103C, buf))
	testutil.Equals(t, []byte{13, 14, 15, 16}, buf)

	for _, gpa := range []uint64{0x0FFF, 0x103D, 0x1040, ^uint64(0)} {
		err := img.ReadSlice(gpa, buf)
		testutil.Assert(t, errors.Is(err, ErrOutOfRange), "gpa 0x%x: %v", gpa, err)
	}
	testutil.Assert(t, errors.Is(img.WriteSlice(0x1040, []byte{0}), ErrOutOfRange))

	// Empty accesses at the end of the image are fine.
	testutil.Ok(t, img.ReadSlice(0x1040, nil))
}

func TestMap(t *testing.T) {
	low := NewImage(0, 0x1000)
	high := NewImage(0x10000, 0x1000)
	m, err := NewMap(high, low)
	testutil.Ok(t, err)

	testutil.Ok(t, m.WriteSlice(0x10FF0, []byte{0xAA}))
	b := make([]byte, 1)
	testutil.Ok(t, high.ReadSlice(0x10FF0, b))
	testutil.Equals(t, byte(0xAA), b[0])

	testutil.Ok(t, m.ReadSlice(0x0, b))
	testutil.Assert(t, errors.Is(m.ReadSlice(0x1000, b), ErrOutOfRange))
	testutil.Assert(t, errors.Is(m.ReadSlice(0x0FFF, make([]byte, 2)), ErrOutOfRange))
	testutil.Assert(t, errors.Is(m.ReadSlice(0x11000, b), ErrOutOfRange))

	_, err = NewMap(NewImage(0, 0x2000), NewImage(0x1000, 0x10))
	testutil.NotOk(t, err)

	// The second image wraps past the top of the address space onto the first.
	_, err = NewMap(NewImage(0x10, 0x10), NewImage(^uint64(0)-0xF, 0x30))
	testutil.NotOk(t, err)

	top := NewImage(^uint64(0)-0x10, 0x10)
	m, err = NewMap(low, top)
	testutil.Ok(t, err)
	testutil.Ok(t, m.ReadSlice(^uint64(0)-0x1, b))
}

func TestImageBacksCodec(t *testing.T) {
	img := NewImage(0x8000, 0x100)
	want := xhci.AddressedTRB{
		TRB: xhci.Encode(&xhci.LinkTRB{RingSegmentPointer: 0x8000, ToggleCycle: true, Cycle: true}),
		GPA: 0x80F0,
	}
	testutil.Ok(t, xhci.WriteTRB(img, want))

	got, err := xhci.ReadTRB(img, 0x80F0)
	testutil.Ok(t, err)
	testutil.Equals(t, want, got)

	_, err = xhci.ReadTRB(img, 0x80F8)
	testutil.Assert(t, errors.Is(err, ErrOutOfRange))
}
