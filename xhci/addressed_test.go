package xhci

import (
	"math"
	"testing"

	"github.com/efficientgo/core/errors"
	"github.com/efficientgo/core/testutil"
	"github.com/google/go-cmp/cmp"
)

var errUnmapped = errors.New("unmapped")

// flatMemory maps [base, base+len(buf)).
type flatMemory struct {
	base uint64
	buf  []byte
}

func (m *flatMemory) window(gpa uint64, n int) ([]byte, error) {
	if gpa < m.base || gpa-m.base+uint64(n) > uint64(len(m.buf)) {
		return nil, errUnmapped
	}
	return m.buf[gpa-m.base : gpa-m.base+uint64(n)], nil
}

func (m *flatMemory) ReadSlice(gpa uint64, p []byte) error {
	w, err := m.window(gpa, len(p))
	if err != nil {
		return err
	}
	copy(p, w)
	return nil
}

func (m *flatMemory) WriteSlice(gpa uint64, p []byte) error {
	w, err := m.window(gpa, len(p))
	if err != nil {
		return err
	}
	copy(w, p)
	return nil
}

func TestReadWriteTRB(t *testing.T) {
	mem := &flatMemory{base: 0x1000, buf: make([]byte, 4*TRBSize)}
	want := AddressedTRB{TRB: Encode(&NormalTRB{DataBuffer: 0x9000, TransferLength: 64, Cycle: true}), GPA: 0x1010}
	testutil.Ok(t, WriteTRB(mem, want))

	got, err := ReadTRB(mem, 0x1010)
	testutil.Ok(t, err)
	testutil.Equals(t, want, got)

	v, err := got.Decode()
	testutil.Ok(t, err)
	testutil.Equals(t, uint64(0x9000), v.(*NormalTRB).DataBuffer)

	trbs, err := ReadTRBs(mem, 0x1000, 4)
	testutil.Ok(t, err)
	testutil.Equals(t, 4, len(trbs))
	testutil.Equals(t, uint64(0x1030), trbs[3].GPA)
	testutil.Equals(t, want, trbs[1])

	_, err = ReadTRB(mem, 0x1040)
	testutil.Assert(t, errors.Is(err, errUnmapped))
	testutil.NotOk(t, WriteTRB(mem, AddressedTRB{GPA: 0x0FF0}))
	_, err = ReadTRBs(mem, 0x1000, -1)
	testutil.NotOk(t, err)
}

func TestReadTRBsCount(t *testing.T) {
	n := trbReadChunk + 3
	mem := &flatMemory{base: 0x4000, buf: make([]byte, n*TRBSize)}
	last := AddressedTRB{TRB: Encode(&NoopTRB{Cycle: true}), GPA: 0x4000 + uint64((n-1)*TRBSize)}
	testutil.Ok(t, WriteTRB(mem, last))

	trbs, err := ReadTRBs(mem, 0x4000, n)
	testutil.Ok(t, err)
	testutil.Equals(t, n, len(trbs))
	testutil.Equals(t, last, trbs[n-1])

	trbs, err = ReadTRBs(mem, 0x4000, 0)
	testutil.Ok(t, err)
	testutil.Equals(t, 0, len(trbs))

	for _, tc := range []struct {
		name     string
		gpa      uint64
		n        int
		unmapped bool
	}{
		{name: "negative", gpa: 0x4000, n: -1},
		{name: "max int", gpa: 0x4000, n: math.MaxInt},
		{name: "byte length overflows int", gpa: 0, n: math.MaxInt/TRBSize + 1},
		{name: "wraps address space", gpa: ^uint64(0) - 0x1F, n: 3},
		{name: "unbacked", gpa: 0x4000, n: 1 << 40, unmapped: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadTRBs(mem, tc.gpa, tc.n)
			testutil.NotOk(t, err)
			testutil.Equals(t, tc.unmapped, errors.Is(err, errUnmapped))
		})
	}
}

func TestAddressedDecodeUnknown(t *testing.T) {
	a := AddressedTRB{GPA: 0x2000}
	a.TRB.SetType(19)

	_, err := a.Decode()
	testutil.Assert(t, errors.Is(err, ErrUnknownTRBType))
}

func TestTransferDescriptorLength(t *testing.T) {
	td := TransferDescriptor{
		{TRB: Encode(&SetupStageTRB{TransferLength: 8})},
		{TRB: Encode(&DataStageTRB{TransferLength: 18, Chain: true})},
		{TRB: Encode(&EventDataTRB{EventData: 0xFFFF})},
		{TRB: Encode(&StatusStageTRB{})},
	}
	testutil.Equals(t, uint64(26), td.TotalLength())
}

func TestContextsInGuestMemory(t *testing.T) {
	mem := &flatMemory{base: 0x10000, buf: make([]byte, 0x1000)}
	d := sampleDeviceContext()
	testutil.Ok(t, WriteDeviceContext(mem, 0x10400, d))

	got, err := ReadDeviceContext(mem, 0x10400)
	testutil.Ok(t, err)
	if diff := cmp.Diff(d, got); diff != "" {
		t.Errorf("device context mismatch (-want +got):\n%s", diff)
	}

	// The input context starts 32 bytes before the device context image.
	in, err := ReadInputContext(mem, 0x10400-InputControlContextSize)
	testutil.Ok(t, err)
	testutil.Equals(t, d.Slot, in.Device.Slot)

	_, err = ReadDeviceContext(mem, 0x10C01)
	testutil.NotOk(t, err)
}

func TestReadEventRingSegmentTable(t *testing.T) {
	mem := &flatMemory{base: 0, buf: make([]byte, 64)}
	want := []EventRingSegmentTableEntry{
		{BaseAddress: 0x4000, SegmentSize: 16},
		{BaseAddress: 0x8000, SegmentSize: 256},
	}
	buf := make([]byte, 2*EventRingSegmentTableEntrySize)
	rest := buf
	for i := range want {
		rest = want[i].MarshalBytes(rest)
	}
	testutil.Ok(t, mem.WriteSlice(0x20, buf))

	got, err := ReadEventRingSegmentTable(mem, 0x20, 2)
	testutil.Ok(t, err)
	testutil.Equals(t, want, got)

	_, err = ReadEventRingSegmentTable(mem, 0x30, 2)
	testutil.NotOk(t, err)

	for _, n := range []int{-1, int(ERSTSZSegmentTableSize) + 1, math.MaxInt} {
		_, err = ReadEventRingSegmentTable(mem, 0, n)
		testutil.NotOk(t, err)
		testutil.Assert(t, !errors.Is(err, errUnmapped), "count %d reached memory", n)
	}
}
