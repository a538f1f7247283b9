package xhci

import (
	"testing"

	"github.com/efficientgo/core/testutil"
	"github.com/google/go-cmp/cmp"
)

type fixedLayout interface {
	SizeBytes() int
	MarshalBytes(dst []byte) []byte
	UnmarshalBytes(src []byte) []byte
}

func marshal(l fixedLayout) []byte {
	b := make([]byte, l.SizeBytes())
	if rest := l.MarshalBytes(b); len(rest) != 0 {
		panic("short marshal")
	}
	return b
}

func ones(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 0xFF
	}
	return b
}

func maskBytes(size int, fields []layoutPart) []byte {
	b := make([]byte, size)
	for i, w := range definedMask(size, fields) {
		le.PutUint32(b[i*4:], w)
	}
	return b
}

func TestContextSizes(t *testing.T) {
	for _, tc := range []struct {
		name string
		l    fixedLayout
		size int
	}{
		{name: "slot", l: &SlotContext{}, size: 32},
		{name: "endpoint", l: &EndpointContext{}, size: 32},
		{name: "input control", l: &InputControlContext{}, size: 32},
		{name: "device", l: &DeviceContext{}, size: 1024},
		{name: "input", l: &InputContext{}, size: 1056},
		{name: "erst entry", l: &EventRingSegmentTableEntry{}, size: 16},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testutil.Equals(t, tc.size, tc.l.SizeBytes())
			rest := tc.l.MarshalBytes(make([]byte, tc.size+3))
			testutil.Equals(t, 3, len(rest))
			rest = tc.l.UnmarshalBytes(make([]byte, tc.size+5))
			testutil.Equals(t, 5, len(rest))
		})
	}
}

func TestContextReservedBitsZero(t *testing.T) {
	for _, tc := range []struct {
		name   string
		l      fixedLayout
		fields []layoutPart
	}{
		{name: "slot", l: &SlotContext{}, fields: slotContextFields},
		{name: "endpoint", l: &EndpointContext{}, fields: endpointContextFields},
		{name: "input control", l: &InputControlContext{}, fields: inputControlFields},
		{name: "erst entry", l: &EventRingSegmentTableEntry{}, fields: erstFields},
	} {
		t.Run(tc.name, func(t *testing.T) {
			size := tc.l.SizeBytes()
			tc.l.UnmarshalBytes(ones(size))
			testutil.Equals(t, maskBytes(size, tc.fields), marshal(tc.l))
		})
	}
}

func TestMarshalOverwritesReserved(t *testing.T) {
	b := ones(SlotContextSize)
	s := SlotContext{SlotState: SlotAddressed}
	s.MarshalBytes(b)

	want := make([]byte, SlotContextSize)
	le.PutUint32(want[12:], uint32(SlotAddressed)<<27)
	testutil.Equals(t, want, b)
}

func TestSlotStateDoesNotLeak(t *testing.T) {
	s := SlotContext{USBDeviceAddress: 0xFF, SlotState: 0xFF}
	b := marshal(&s)
	testutil.Equals(t, []byte{0xFF, 0x00, 0x00, 0xF8}, b[12:16])

	var got SlotContext
	got.UnmarshalBytes(b)
	testutil.Equals(t, SlotState(0x1F), got.SlotState)
	testutil.Equals(t, uint8(0xFF), got.USBDeviceAddress)

	s = SlotContext{USBDeviceAddress: 0xFF, SlotState: SlotConfigured}
	testutil.Equals(t, []byte{0xFF, 0x00, 0x00, 0x18}, marshal(&s)[12:16])
	testutil.Equals(t, "Configured", s.SlotState.String())
}

func TestEndpointDequeuePointer(t *testing.T) {
	e := EndpointContext{TRDequeuePointer: 0xFFFFFFFFFFFFFFF0, DequeueCycleState: true}
	b := marshal(&e)
	testutil.Equals(t, []byte{0xF1, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, b[8:16])

	var got EndpointContext
	got.UnmarshalBytes(b)
	testutil.Equals(t, e, got)

	e = EndpointContext{TRDequeuePointer: 0x100F}
	got.UnmarshalBytes(marshal(&e))
	testutil.Equals(t, uint64(0x1000), got.TRDequeuePointer)
	testutil.Assert(t, !got.DequeueCycleState)
}

func TestEndpointMaxESITPayload(t *testing.T) {
	e := EndpointContext{MaxESITPayloadHi: 0x12, MaxESITPayloadLo: 0x3456}
	testutil.Equals(t, uint32(0x123456), e.MaxESITPayload())
}

func TestInputControlFlags(t *testing.T) {
	c := InputControlContext{DropContextFlags: 0b101, AddContextFlags: 0b011}
	for i, want := range []bool{true, false, true, false} {
		testutil.Equals(t, want, c.DropContextFlag(uint(i)))
	}
	for i, want := range []bool{true, true, false, false} {
		testutil.Equals(t, want, c.AddContextFlag(uint(i)))
	}

	var got InputControlContext
	got.UnmarshalBytes(marshal(&c))
	testutil.Equals(t, c, got)
	testutil.Assert(t, !got.AddContextFlag(31))
}

func TestDeviceContextIndex(t *testing.T) {
	for _, tc := range []struct {
		ep   uint8
		in   bool
		want uint8
	}{
		{ep: 0, in: false, want: 1},
		{ep: 0, in: true, want: 1},
		{ep: 1, in: false, want: 2},
		{ep: 1, in: true, want: 3},
		{ep: 15, in: true, want: 31},
		{ep: 16, in: false, want: 0},
	} {
		testutil.Equals(t, tc.want, DeviceContextIndex(tc.ep, tc.in), "ep %d in %v", tc.ep, tc.in)
	}

	var d DeviceContext
	testutil.Assert(t, d.Endpoint(0) == nil)
	testutil.Assert(t, d.Endpoint(32) == nil)
	testutil.Assert(t, d.Endpoint(1) == &d.Endpoints[0])
	testutil.Assert(t, d.Endpoint(31) == &d.Endpoints[30])
}

func sampleDeviceContext() *DeviceContext {
	d := &DeviceContext{
		Slot: SlotContext{
			RouteString: 0x12345, Speed: SpeedHigh, Hub: true, ContextEntries: 3,
			RootHubPortNumber: 2, NumPorts: 4, InterrupterTarget: 1,
			USBDeviceAddress: 5, SlotState: SlotConfigured,
		},
	}
	*d.Endpoint(1) = EndpointContext{
		EndpointState: EndpointRunning, ErrorCount: 3, EndpointType: EndpointControl,
		MaxPacketSize: 64, DequeueCycleState: true, TRDequeuePointer: 0x7000, AverageTRBLength: 8,
	}
	*d.Endpoint(DeviceContextIndex(1, true)) = EndpointContext{
		EndpointState: EndpointHalted, Interval: 6, EndpointType: EndpointInterruptIn,
		MaxBurstSize: 0, MaxPacketSize: 8, TRDequeuePointer: 0x8010, MaxESITPayloadLo: 8,
	}
	return d
}

func TestDeviceContextRoundTrip(t *testing.T) {
	d := sampleDeviceContext()
	b := marshal(d)

	// Endpoint contexts follow the slot context at 32-byte strides.
	testutil.Equals(t, uint32(0x40)<<16|uint32(EndpointControl)<<3|3<<1, le.Uint32(b[32+4:]))
	testutil.Equals(t, uint32(EndpointHalted), le.Uint32(b[3*32:])&0x7)

	var got DeviceContext
	got.UnmarshalBytes(b)
	if diff := cmp.Diff(*d, got); diff != "" {
		t.Errorf("device context mismatch (-want +got):\n%s", diff)
	}
}

func TestInputContextLayout(t *testing.T) {
	c := InputContext{
		Control: InputControlContext{AddContextFlags: 0b11, ConfigurationValue: 1, AlternateSetting: 2},
		Device:  *sampleDeviceContext(),
	}
	b := marshal(&c)
	testutil.Equals(t, uint32(0b11), le.Uint32(b[4:]))
	testutil.Equals(t, []byte{1, 0, 2, 0}, b[28:32])
	testutil.Equals(t, uint32(0x12345|uint32(SpeedHigh)<<20|1<<26|3<<27), le.Uint32(b[32:]))

	var got InputContext
	got.UnmarshalBytes(b)
	if diff := cmp.Diff(c, got); diff != "" {
		t.Errorf("input context mismatch (-want +got):\n%s", diff)
	}
}

func TestContextEnumNames(t *testing.T) {
	testutil.Equals(t, "Halted", EndpointHalted.String())
	testutil.Equals(t, "EndpointState(7)", EndpointState(7).String())
	testutil.Equals(t, "InterruptIn", EndpointInterruptIn.String())
	testutil.Equals(t, "EndpointType(9)", EndpointType(9).String())
	testutil.Equals(t, "SlotState(9)", SlotState(9).String())
}
