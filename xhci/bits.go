// SPDX-License-Identifier: GPL-2.0-only

package xhci

import "encoding/binary"

var le = binary.LittleEndian

// layoutPart is anything that occupies bits of a fixed-size record.
type layoutPart interface {
	parts() []bitField
}

// bitField is a run of width bits starting at bit shift of the
// little-endian dword at byte offset off.
type bitField struct {
	off   int
	shift uint
	width uint
}

func (f bitField) mask() uint32 {
	return uint32((uint64(1)<<f.width - 1) << f.shift)
}

func (f bitField) get(b []byte) uint32 {
	return (le.Uint32(b[f.off:]) & f.mask()) >> f.shift
}

// put replaces the field; the value is truncated to the field width and
// the other bits of the dword are left alone.
func (f bitField) put(b []byte, v uint32) {
	m := f.mask()
	w := le.Uint32(b[f.off:])
	le.PutUint32(b[f.off:], w&^m|(v<<f.shift)&m)
}

func (f bitField) bit(b []byte) bool {
	return f.get(b) != 0
}

func (f bitField) putBit(b []byte, v bool) {
	if v {
		f.put(b, 1)
	} else {
		f.put(b, 0)
	}
}

func (f bitField) parts() []bitField {
	return []bitField{f}
}

// qwordField covers bits [low, 64) of the little-endian qword at byte
// offset off. The low bits belong to other fields or are reserved.
type qwordField struct {
	off int
	low uint
}

func (q qwordField) lowMask() uint64 {
	return uint64(1)<<q.low - 1
}

func (q qwordField) get(b []byte) uint64 {
	return le.Uint64(b[q.off:]) &^ q.lowMask()
}

// put stores v with its low bits dropped, keeping whatever the record
// already holds there.
func (q qwordField) put(b []byte, v uint64) {
	w := le.Uint64(b[q.off:])
	le.PutUint64(b[q.off:], w&q.lowMask()|v&^q.lowMask())
}

func (q qwordField) parts() []bitField {
	return []bitField{
		{off: q.off, shift: q.low, width: 32 - q.low},
		{off: q.off + 4, shift: 0, width: 32},
	}
}

// definedMask returns, per dword, the bits claimed by the given parts.
func definedMask(size int, fields []layoutPart) []uint32 {
	m := make([]uint32, size/4)
	for _, lp := range fields {
		for _, f := range lp.parts() {
			m[f.off/4] |= f.mask()
		}
	}
	return m
}

// checkLayout reports the first field that leaves the record or overlaps
// an earlier field.
func checkLayout(size int, fields []layoutPart) (bitField, bool) {
	seen := make([]uint32, size/4)
	for _, lp := range fields {
		for _, f := range lp.parts() {
			if f.off < 0 || f.off%4 != 0 || f.off+4 > size || f.width == 0 || f.shift+f.width > 32 {
				return f, false
			}
			if seen[f.off/4]&f.mask() != 0 {
				return f, false
			}
			seen[f.off/4] |= f.mask()
		}
	}
	return bitField{}, true
}
