// SPDX-License-Identifier: GPL-2.0-only

package xhci

import "fmt"

// EventRingSegmentTableEntrySize is the size of one ERST entry.
const EventRingSegmentTableEntrySize = 16

var (
	erstBaseAddress = qwordField{off: 0, low: 0}
	erstSegmentSize = bitField{off: 8, shift: 0, width: 16}

	erstFields = []layoutPart{erstBaseAddress, erstSegmentSize}
)

func init() {
	if f, ok := checkLayout(EventRingSegmentTableEntrySize, erstFields); !ok {
		panic(fmt.Sprintf("xhci: EventRingSegmentTableEntry field %+v overlaps or leaves the record", f))
	}
}

// EventRingSegmentTableEntry locates one segment of an event ring.
// Size counts TRBs, not bytes.
type EventRingSegmentTableEntry struct {
	BaseAddress uint64
	SegmentSize uint16
}

func (e *EventRingSegmentTableEntry) SizeBytes() int {
	return EventRingSegmentTableEntrySize
}

func (e *EventRingSegmentTableEntry) MarshalBytes(dst []byte) []byte {
	b := dst[:EventRingSegmentTableEntrySize]
	clear(b)
	erstBaseAddress.put(b, e.BaseAddress)
	erstSegmentSize.put(b, uint32(e.SegmentSize))
	return dst[EventRingSegmentTableEntrySize:]
}

func (e *EventRingSegmentTableEntry) UnmarshalBytes(src []byte) []byte {
	b := src[:EventRingSegmentTableEntrySize]
	e.BaseAddress = erstBaseAddress.get(b)
	e.SegmentSize = uint16(erstSegmentSize.get(b))
	return src[EventRingSegmentTableEntrySize:]
}

// String has a value receiver so entries held by value, as in a scan
// report or a log line, still format.
func (e EventRingSegmentTableEntry) String() string {
	return fmt.Sprintf("EventRingSegmentTableEntry: address=0x%X, size=%d", e.BaseAddress, e.SegmentSize)
}
