package xhci

import (
	"fmt"
	"testing"

	"github.com/efficientgo/core/testutil"
)

func TestEventRingSegmentTableEntry(t *testing.T) {
	e := EventRingSegmentTableEntry{BaseAddress: 0xFEDC000000001000, SegmentSize: 16}
	b := marshal(&e)
	testutil.Equals(t, []byte{0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0xDC, 0xFE, 0x10, 0x00, 0, 0, 0, 0, 0, 0}, b)

	var got EventRingSegmentTableEntry
	got.UnmarshalBytes(b)
	testutil.Equals(t, e, got)
}

func TestEventRingSegmentTableEntryString(t *testing.T) {
	e := EventRingSegmentTableEntry{BaseAddress: 0x1000, SegmentSize: 16}
	testutil.Equals(t, "EventRingSegmentTableEntry: address=0x1000, size=16", e.String())
	testutil.Equals(t, "EventRingSegmentTableEntry: address=0xABCDEF00, size=0", fmt.Sprint(&EventRingSegmentTableEntry{BaseAddress: 0xABCDEF00}))
}
