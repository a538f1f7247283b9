// SPDX-License-Identifier: GPL-2.0-only

package xhci

// Event TRB fields. See xHCI section 6.4.2.
var (
	eventTRBPointer       = qwordField{off: 0, low: 0}
	eventTransferLength   = bitField{off: 8, shift: 0, width: 24}
	eventCompletionCode   = bitField{off: 8, shift: 24, width: 8}
	eventSlotID           = bitField{off: 12, shift: 24, width: 8}
	transferEventED       = bitField{off: 12, shift: 2, width: 1}
	transferEventEndpoint = bitField{off: 12, shift: 16, width: 5}

	commandCompletionPointer   = qwordField{off: 0, low: 4}
	commandCompletionParameter = bitField{off: 8, shift: 0, width: 24}
	commandCompletionVFID      = bitField{off: 12, shift: 16, width: 8}

	portStatusPortID = bitField{off: 0, shift: 24, width: 8}
)

var (
	transferEventFields = []layoutPart{
		eventTRBPointer, eventTransferLength, eventCompletionCode,
		transferEventED, transferEventEndpoint, eventSlotID,
	}
	commandCompletionFields = []layoutPart{
		commandCompletionPointer, commandCompletionParameter, eventCompletionCode,
		commandCompletionVFID, eventSlotID,
	}
	portStatusChangeFields = []layoutPart{portStatusPortID, eventCompletionCode}
)

// TransferEventTRB reports progress on a transfer ring.
type TransferEventTRB struct {
	// TRBPointer is the address of the TRB that generated the event, or
	// the Event Data payload when EventData is set.
	TRBPointer uint64
	// TransferLength is 24 bits: the residual byte count, or the
	// accumulated length when EventData is set.
	TransferLength uint32
	CompletionCode CompletionCode
	Cycle          bool
	EventData      bool
	EndpointID     uint8
	SlotID         uint8
}

func (*TransferEventTRB) Type() TRBType { return TypeTransferEvent }

func (e *TransferEventTRB) store(b []byte) {
	eventTRBPointer.put(b, e.TRBPointer)
	eventTransferLength.put(b, e.TransferLength)
	eventCompletionCode.put(b, uint32(e.CompletionCode))
	trbCycle.putBit(b, e.Cycle)
	transferEventED.putBit(b, e.EventData)
	transferEventEndpoint.put(b, uint32(e.EndpointID))
	eventSlotID.put(b, uint32(e.SlotID))
}

func (e *TransferEventTRB) load(b []byte) {
	*e = TransferEventTRB{
		TRBPointer:     eventTRBPointer.get(b),
		TransferLength: eventTransferLength.get(b),
		CompletionCode: CompletionCode(eventCompletionCode.get(b)),
		Cycle:          trbCycle.bit(b),
		EventData:      transferEventED.bit(b),
		EndpointID:     uint8(transferEventEndpoint.get(b)),
		SlotID:         uint8(eventSlotID.get(b)),
	}
}

// CommandCompletionEventTRB reports the outcome of a command ring TRB.
type CommandCompletionEventTRB struct {
	CommandTRBPointer   uint64
	CompletionParameter uint32
	CompletionCode      CompletionCode
	Cycle               bool
	VFID                uint8
	SlotID              uint8
}

func (*CommandCompletionEventTRB) Type() TRBType { return TypeCommandCompletionEvent }

func (e *CommandCompletionEventTRB) store(b []byte) {
	commandCompletionPointer.put(b, e.CommandTRBPointer)
	commandCompletionParameter.put(b, e.CompletionParameter)
	eventCompletionCode.put(b, uint32(e.CompletionCode))
	trbCycle.putBit(b, e.Cycle)
	commandCompletionVFID.put(b, uint32(e.VFID))
	eventSlotID.put(b, uint32(e.SlotID))
}

func (e *CommandCompletionEventTRB) load(b []byte) {
	*e = CommandCompletionEventTRB{
		CommandTRBPointer:   commandCompletionPointer.get(b),
		CompletionParameter: commandCompletionParameter.get(b),
		CompletionCode:      CompletionCode(eventCompletionCode.get(b)),
		Cycle:               trbCycle.bit(b),
		VFID:                uint8(commandCompletionVFID.get(b)),
		SlotID:              uint8(eventSlotID.get(b)),
	}
}

// PortStatusChangeEventTRB tells the driver to look at a PORTSC register.
type PortStatusChangeEventTRB struct {
	PortID         uint8
	CompletionCode CompletionCode
	Cycle          bool
}

func (*PortStatusChangeEventTRB) Type() TRBType { return TypePortStatusChangeEvent }

func (e *PortStatusChangeEventTRB) store(b []byte) {
	portStatusPortID.put(b, uint32(e.PortID))
	eventCompletionCode.put(b, uint32(e.CompletionCode))
	trbCycle.putBit(b, e.Cycle)
}

func (e *PortStatusChangeEventTRB) load(b []byte) {
	*e = PortStatusChangeEventTRB{
		PortID:         uint8(portStatusPortID.get(b)),
		CompletionCode: CompletionCode(eventCompletionCode.get(b)),
		Cycle:          trbCycle.bit(b),
	}
}

// CommandCompletionFor builds the completion event for the command TRB
// cmd. The cycle bit is left for the event ring producer to set.
func CommandCompletionFor(cmd AddressedTRB, code CompletionCode, slotID uint8) *CommandCompletionEventTRB {
	return &CommandCompletionEventTRB{
		CommandTRBPointer: cmd.GPA,
		CompletionCode:    code,
		SlotID:            slotID,
	}
}

// TransferEventFor builds the transfer event for src. When src is an
// Event Data TRB the event carries its payload instead of its address, as
// the controller does in hardware.
func TransferEventFor(src AddressedTRB, code CompletionCode, length uint32, endpointID, slotID uint8) *TransferEventTRB {
	ev := &TransferEventTRB{
		TRBPointer:     src.GPA,
		TransferLength: length,
		CompletionCode: code,
		EndpointID:     endpointID,
		SlotID:         slotID,
	}
	if src.TRB.Type() == uint8(TypeEventData) {
		ev.TRBPointer = transferBuffer.get(src.TRB[:])
		ev.EventData = true
	}
	return ev
}
