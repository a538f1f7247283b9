// SPDX-License-Identifier: GPL-2.0-only

package xhci

import (
	"math"

	"github.com/efficientgo/core/errors"
)

// trbReadChunk bounds the TRBs fetched per ReadSlice, so a long read
// allocates only as far as guest memory backs it.
const trbReadChunk = 256

// AddressedTRB is a TRB together with the guest physical address it was
// read from, so events can point back at it.
type AddressedTRB struct {
	TRB TRB
	GPA uint64
}

func (a AddressedTRB) Decode() (Variant, error) {
	v, err := Decode(a.TRB)
	if err != nil {
		return nil, errors.Wrapf(err, "TRB at 0x%x", a.GPA)
	}
	return v, nil
}

// TransferDescriptor is the chain of TRBs making up one transfer, in ring
// order.
type TransferDescriptor []AddressedTRB

// TotalLength sums the transfer length of every TRB in td that carries one.
func (td TransferDescriptor) TotalLength() uint64 {
	var n uint64
	for i := range td {
		if l, ok := td[i].TRB.TransferLength(); ok {
			n += uint64(l)
		}
	}
	return n
}

// GuestMemory gives access to guest physical memory. Implementations fail
// the whole access when any byte of it is unmapped.
type GuestMemory interface {
	ReadSlice(gpa uint64, p []byte) error
	WriteSlice(gpa uint64, p []byte) error
}

func ReadTRB(mem GuestMemory, gpa uint64) (AddressedTRB, error) {
	a := AddressedTRB{GPA: gpa}
	if err := mem.ReadSlice(gpa, a.TRB[:]); err != nil {
		return AddressedTRB{}, errors.Wrapf(err, "read TRB at 0x%x", gpa)
	}
	return a, nil
}

// ReadTRBs reads n consecutive TRBs starting at gpa. Link TRBs are not
// followed.
func ReadTRBs(mem GuestMemory, gpa uint64, n int) ([]AddressedTRB, error) {
	if n < 0 || n > math.MaxInt/TRBSize || uint64(n)*TRBSize > ^gpa {
		return nil, errors.Newf("TRB count %d at 0x%x out of range", n, gpa)
	}
	trbs := make([]AddressedTRB, 0, min(n, trbReadChunk))
	buf := make([]byte, min(n, trbReadChunk)*TRBSize)
	for len(trbs) < n {
		k := min(n-len(trbs), trbReadChunk)
		at := gpa + uint64(len(trbs)*TRBSize)
		if err := mem.ReadSlice(at, buf[:k*TRBSize]); err != nil {
			return nil, errors.Wrapf(err, "read %d TRBs at 0x%x", n, gpa)
		}
		for i := 0; i < k; i++ {
			a := AddressedTRB{GPA: at + uint64(i*TRBSize)}
			copy(a.TRB[:], buf[i*TRBSize:])
			trbs = append(trbs, a)
		}
	}
	return trbs, nil
}

// WriteTRB stores a.TRB at a.GPA.
func WriteTRB(mem GuestMemory, a AddressedTRB) error {
	if err := mem.WriteSlice(a.GPA, a.TRB[:]); err != nil {
		return errors.Wrapf(err, "write TRB at 0x%x", a.GPA)
	}
	return nil
}

func ReadDeviceContext(mem GuestMemory, gpa uint64) (*DeviceContext, error) {
	var buf [DeviceContextSize]byte
	if err := mem.ReadSlice(gpa, buf[:]); err != nil {
		return nil, errors.Wrapf(err, "read device context at 0x%x", gpa)
	}
	d := new(DeviceContext)
	d.UnmarshalBytes(buf[:])
	return d, nil
}

func WriteDeviceContext(mem GuestMemory, gpa uint64, d *DeviceContext) error {
	var buf [DeviceContextSize]byte
	d.MarshalBytes(buf[:])
	if err := mem.WriteSlice(gpa, buf[:]); err != nil {
		return errors.Wrapf(err, "write device context at 0x%x", gpa)
	}
	return nil
}

func ReadInputContext(mem GuestMemory, gpa uint64) (*InputContext, error) {
	var buf [InputContextSize]byte
	if err := mem.ReadSlice(gpa, buf[:]); err != nil {
		return nil, errors.Wrapf(err, "read input context at 0x%x", gpa)
	}
	c := new(InputContext)
	c.UnmarshalBytes(buf[:])
	return c, nil
}

// ReadEventRingSegmentTable reads the n entries of the table at gpa, as
// given by the ERSTBA and ERSTSZ registers.
func ReadEventRingSegmentTable(mem GuestMemory, gpa uint64, n int) ([]EventRingSegmentTableEntry, error) {
	if n < 0 || n > int(ERSTSZSegmentTableSize) {
		return nil, errors.Newf("segment count %d out of range", n)
	}
	buf := make([]byte, n*EventRingSegmentTableEntrySize)
	if err := mem.ReadSlice(gpa, buf); err != nil {
		return nil, errors.Wrapf(err, "read event ring segment table at 0x%x", gpa)
	}
	entries := make([]EventRingSegmentTableEntry, n)
	rest := buf
	for i := range entries {
		rest = entries[i].UnmarshalBytes(rest)
	}
	return entries, nil
}
