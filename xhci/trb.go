// SPDX-License-Identifier: GPL-2.0-only

package xhci

import (
	"fmt"

	"github.com/efficientgo/core/errors"
)

// TRBSize is the size of every Transfer Request Block.
const TRBSize = 16

// ErrUnknownTRBType is returned when a TRB carries a type code with no
// defined layout. Guests can put any code in memory, so callers are
// expected to answer with a TRB Error completion rather than give up.
var ErrUnknownTRBType = errors.New("unrecognized TRB type")

// TRB is the raw, little-endian image of a Transfer Request Block as it
// sits in guest memory. Every bit pattern is a valid TRB; only the type
// code can be meaningless.
type TRB [TRBSize]byte

// Bits shared by every TRB layout. See xHCI section 4.11.1.
var (
	trbCycle   = bitField{off: 12, shift: 0, width: 1}
	trbFlags   = bitField{off: 12, shift: 1, width: 9}
	trbType    = bitField{off: 12, shift: 10, width: 6}
	trbControl = bitField{off: 12, shift: 16, width: 16}
	trbStatus  = bitField{off: 8, shift: 0, width: 32}
)

func (t *TRB) Parameter() uint64 {
	return le.Uint64(t[0:])
}

func (t *TRB) SetParameter(v uint64) {
	le.PutUint64(t[0:], v)
}

func (t *TRB) Status() uint32 {
	return trbStatus.get(t[:])
}

func (t *TRB) SetStatus(v uint32) {
	trbStatus.put(t[:], v)
}

// Cycle returns the ring ownership bit.
func (t *TRB) Cycle() bool {
	return trbCycle.bit(t[:])
}

func (t *TRB) SetCycle(v bool) {
	trbCycle.putBit(t[:], v)
}

// Flags returns the nine type-specific bits following the cycle bit.
func (t *TRB) Flags() uint16 {
	return uint16(trbFlags.get(t[:]))
}

func (t *TRB) SetFlags(v uint16) {
	trbFlags.put(t[:], uint32(v))
}

// Type returns the raw 6-bit type code.
func (t *TRB) Type() uint8 {
	return uint8(trbType.get(t[:]))
}

func (t *TRB) SetType(code uint8) {
	trbType.put(t[:], uint32(code))
}

// Control returns the upper half of the control dword.
func (t *TRB) Control() uint16 {
	return uint16(trbControl.get(t[:]))
}

func (t *TRB) SetControl(v uint16) {
	trbControl.put(t[:], uint32(v))
}

// TRBType returns the decoded type code, or an error wrapping
// ErrUnknownTRBType.
func (t *TRB) TRBType() (TRBType, error) {
	return ParseTRBType(t.Type())
}

// Class returns the family of the encoded type, ClassUnknown for codes
// without a layout.
func (t *TRB) Class() TRBClass {
	k := lookupKind(t.Type())
	if k == nil {
		return ClassUnknown
	}
	return k.class
}

// Chain returns the chain bit; ok is false when the encoded type has none.
func (t *TRB) Chain() (chain bool, ok bool) {
	if !t.has(withChain) {
		return false, false
	}
	return transferChain.bit(t[:]), true
}

// InterruptOnCompletion returns the IOC bit; ok is false when the encoded
// type has none.
func (t *TRB) InterruptOnCompletion() (ioc bool, ok bool) {
	if !t.has(withIOC) {
		return false, false
	}
	return transferIOC.bit(t[:]), true
}

// InterrupterTarget returns the interrupter a transfer TRB reports to.
func (t *TRB) InterrupterTarget() (target uint16, ok bool) {
	if !t.has(withInterrupter) {
		return 0, false
	}
	return uint16(transferInterrupterTarget.get(t[:])), true
}

// TransferLength returns the 17-bit buffer length of data carrying
// transfer TRBs.
func (t *TRB) TransferLength() (length uint32, ok bool) {
	if !t.has(withLength) {
		return 0, false
	}
	return transferLength.get(t[:]), true
}

// SlotID returns the device slot a command or event TRB refers to.
func (t *TRB) SlotID() (slot uint8, ok bool) {
	if !t.has(withSlotID) {
		return 0, false
	}
	return uint8(commandSlotID.get(t[:])), true
}

// EndpointID returns the device context index a command or transfer event
// TRB refers to.
func (t *TRB) EndpointID() (dci uint8, ok bool) {
	if !t.has(withEndpointID) {
		return 0, false
	}
	return uint8(commandEndpointID.get(t[:])), true
}

// CompletionCode returns the status of an event TRB.
func (t *TRB) CompletionCode() (code CompletionCode, ok bool) {
	if !t.has(withCompletionCode) {
		return 0, false
	}
	return CompletionCode(eventCompletionCode.get(t[:])), true
}

func (t *TRB) has(f kindFeature) bool {
	k := lookupKind(t.Type())
	return k != nil && k.features&f != 0
}

// Store writes the fields, type code and cycle bit of v into t. Bits that
// v does not define keep their current value.
func (t *TRB) Store(v Variant) {
	trbType.put(t[:], uint32(v.Type()))
	v.store(t[:])
}

// Variant is a typed view of a TRB. The set of implementations is closed:
// one pointer type per entry of the xHCI TRB type table.
type Variant interface {
	// Type returns the code written to the type field on encode.
	Type() TRBType
	store(b []byte)
	load(b []byte)
}

// Encode returns a fresh TRB holding v. All bits outside v's fields,
// including every reserved bit, are zero.
func Encode(v Variant) TRB {
	var t TRB
	t.Store(v)
	return t
}

// Decode reads the type code of t and parses it into the matching
// variant.
func Decode(t TRB) (Variant, error) {
	typ, err := t.TRBType()
	if err != nil {
		return nil, err
	}
	return DecodeAs(t, typ)
}

// DecodeAs parses t with the layout of typ, whatever t's own type field
// says.
func DecodeAs(t TRB, typ TRBType) (Variant, error) {
	k := lookupKind(uint8(typ))
	if k == nil {
		return nil, errors.Wrapf(ErrUnknownTRBType, "type %d", uint8(typ))
	}
	v := k.new()
	v.load(t[:])
	return v, nil
}

// TRBType is a TRB type code. See xHCI table 6-91.
type TRBType uint8

const (
	TypeNormal                     TRBType = 1
	TypeSetupStage                 TRBType = 2
	TypeDataStage                  TRBType = 3
	TypeStatusStage                TRBType = 4
	TypeIsoch                      TRBType = 5
	TypeLink                       TRBType = 6
	TypeEventData                  TRBType = 7
	TypeNoop                       TRBType = 8
	TypeEnableSlotCommand          TRBType = 9
	TypeDisableSlotCommand         TRBType = 10
	TypeAddressDeviceCommand       TRBType = 11
	TypeConfigureEndpointCommand   TRBType = 12
	TypeEvaluateContextCommand     TRBType = 13
	TypeResetEndpointCommand       TRBType = 14
	TypeStopEndpointCommand        TRBType = 15
	TypeSetTRDequeuePointerCommand TRBType = 16
	TypeResetDeviceCommand         TRBType = 17
	TypeNoopCommand                TRBType = 23
	TypeTransferEvent              TRBType = 32
	TypeCommandCompletionEvent     TRBType = 33
	TypePortStatusChangeEvent      TRBType = 34
)

// ParseTRBType maps a raw 6-bit code onto a known TRB type.
func ParseTRBType(code uint8) (TRBType, error) {
	if lookupKind(code) == nil {
		return 0, errors.Wrapf(ErrUnknownTRBType, "type %d", code)
	}
	return TRBType(code), nil
}

// TRBTypes lists every known type in ascending code order.
func TRBTypes() []TRBType {
	types := make([]TRBType, 0, len(trbKinds))
	for code, k := range trbKinds {
		if k != nil {
			types = append(types, TRBType(code))
		}
	}
	return types
}

func (t TRBType) String() string {
	if k := lookupKind(uint8(t)); k != nil {
		return k.name
	}
	return fmt.Sprintf("TRBType(%d)", uint8(t))
}

// Class returns the family t belongs to.
func (t TRBType) Class() TRBClass {
	if k := lookupKind(uint8(t)); k != nil {
		return k.class
	}
	return ClassUnknown
}

// TRBClass groups TRB types by the ring they travel on.
type TRBClass uint8

const (
	ClassUnknown TRBClass = iota
	ClassTransfer
	ClassCommand
	ClassEvent
)

func (c TRBClass) String() string {
	switch c {
	case ClassTransfer:
		return "transfer"
	case ClassCommand:
		return "command"
	case ClassEvent:
		return "event"
	default:
		return "unknown"
	}
}

type kindFeature uint16

const (
	withChain kindFeature = 1 << iota
	withIOC
	withInterrupter
	withLength
	withSlotID
	withEndpointID
	withCompletionCode
)

type trbKind struct {
	name     string
	class    TRBClass
	features kindFeature
	new      func() Variant
	// fields lists every bit the variant defines besides cycle and type.
	fields []layoutPart
}

func lookupKind(code uint8) *trbKind {
	if int(code) >= len(trbKinds) {
		return nil
	}
	return trbKinds[code]
}

const (
	dataTransfer = withChain | withIOC | withInterrupter | withLength
	ctlTransfer  = withChain | withIOC | withInterrupter
	slotCommand  = withSlotID
	epCommand    = withSlotID | withEndpointID
)

// trbKinds is indexed by type code. Unlisted codes are reserved or vendor
// defined and have no layout.
var trbKinds = [1 << 6]*trbKind{
	TypeNormal: {
		name: "Normal", class: ClassTransfer, features: dataTransfer,
		new: func() Variant { return new(NormalTRB) }, fields: normalFields,
	},
	TypeSetupStage: {
		name: "SetupStage", class: ClassTransfer, features: withIOC | withInterrupter | withLength,
		new: func() Variant { return new(SetupStageTRB) }, fields: setupStageFields,
	},
	TypeDataStage: {
		name: "DataStage", class: ClassTransfer, features: dataTransfer,
		new: func() Variant { return new(DataStageTRB) }, fields: dataStageFields,
	},
	TypeStatusStage: {
		name: "StatusStage", class: ClassTransfer, features: ctlTransfer,
		new: func() Variant { return new(StatusStageTRB) }, fields: statusStageFields,
	},
	TypeIsoch: {
		name: "Isoch", class: ClassTransfer, features: dataTransfer,
		new: func() Variant { return new(IsochTRB) }, fields: isochFields,
	},
	TypeLink: {
		name: "Link", class: ClassTransfer, features: ctlTransfer,
		new: func() Variant { return new(LinkTRB) }, fields: linkFields,
	},
	TypeEventData: {
		name: "EventData", class: ClassTransfer, features: ctlTransfer,
		new: func() Variant { return new(EventDataTRB) }, fields: eventDataFields,
	},
	TypeNoop: {
		name: "Noop", class: ClassTransfer, features: ctlTransfer,
		new: func() Variant { return new(NoopTRB) }, fields: noopFields,
	},
	TypeEnableSlotCommand: {
		name: "EnableSlotCommand", class: ClassCommand,
		new: func() Variant { return new(EnableSlotCommandTRB) }, fields: enableSlotFields,
	},
	TypeDisableSlotCommand: {
		name: "DisableSlotCommand", class: ClassCommand, features: slotCommand,
		new: func() Variant { return new(DisableSlotCommandTRB) }, fields: slotOnlyFields,
	},
	TypeAddressDeviceCommand: {
		name: "AddressDeviceCommand", class: ClassCommand, features: slotCommand,
		new: func() Variant { return new(AddressDeviceCommandTRB) }, fields: addressDeviceFields,
	},
	TypeConfigureEndpointCommand: {
		name: "ConfigureEndpointCommand", class: ClassCommand, features: slotCommand,
		new: func() Variant { return new(ConfigureEndpointCommandTRB) }, fields: configureEndpointFields,
	},
	TypeEvaluateContextCommand: {
		name: "EvaluateContextCommand", class: ClassCommand, features: slotCommand,
		new: func() Variant { return new(EvaluateContextCommandTRB) }, fields: evaluateContextFields,
	},
	TypeResetEndpointCommand: {
		name: "ResetEndpointCommand", class: ClassCommand, features: epCommand,
		new: func() Variant { return new(ResetEndpointCommandTRB) }, fields: resetEndpointFields,
	},
	TypeStopEndpointCommand: {
		name: "StopEndpointCommand", class: ClassCommand, features: epCommand,
		new: func() Variant { return new(StopEndpointCommandTRB) }, fields: stopEndpointFields,
	},
	TypeSetTRDequeuePointerCommand: {
		name: "SetTRDequeuePointerCommand", class: ClassCommand, features: epCommand,
		new: func() Variant { return new(SetTRDequeuePointerCommandTRB) }, fields: setTRDequeueFields,
	},
	TypeResetDeviceCommand: {
		name: "ResetDeviceCommand", class: ClassCommand, features: slotCommand,
		new: func() Variant { return new(ResetDeviceCommandTRB) }, fields: slotOnlyFields,
	},
	TypeNoopCommand: {
		name: "NoopCommand", class: ClassCommand,
		new: func() Variant { return new(NoopCommandTRB) },
	},
	TypeTransferEvent: {
		name: "TransferEvent", class: ClassEvent, features: epCommand | withCompletionCode,
		new: func() Variant { return new(TransferEventTRB) }, fields: transferEventFields,
	},
	TypeCommandCompletionEvent: {
		name: "CommandCompletionEvent", class: ClassEvent, features: withSlotID | withCompletionCode,
		new: func() Variant { return new(CommandCompletionEventTRB) }, fields: commandCompletionFields,
	},
	TypePortStatusChangeEvent: {
		name: "PortStatusChangeEvent", class: ClassEvent, features: withCompletionCode,
		new: func() Variant { return new(PortStatusChangeEventTRB) }, fields: portStatusChangeFields,
	},
}

// Layout tables are checked once at startup; a failure means a field
// definition above is wrong, not that a guest sent bad data.
func init() {
	for code, k := range trbKinds {
		if k == nil {
			continue
		}
		fields := append([]layoutPart{trbCycle, trbType}, k.fields...)
		if f, ok := checkLayout(TRBSize, fields); !ok {
			panic(fmt.Sprintf("xhci: %s TRB field %+v overlaps or leaves the record", k.name, f))
		}
		if got := k.new().Type(); got != TRBType(code) {
			panic(fmt.Sprintf("xhci: %s TRB registered under code %d reports %d", k.name, code, got))
		}
	}
}
