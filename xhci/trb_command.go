// SPDX-License-Identifier: GPL-2.0-only

package xhci

// Command TRB fields. See xHCI section 6.4.3.
var (
	commandSlotID     = bitField{off: 12, shift: 24, width: 8}
	commandEndpointID = bitField{off: 12, shift: 16, width: 5}
	// Input contexts are 16-byte aligned; the low nibble is RsvdZ.
	commandInputContext = qwordField{off: 0, low: 4}
	commandBit9         = bitField{off: 12, shift: 9, width: 1}

	enableSlotType      = bitField{off: 12, shift: 16, width: 5}
	stopEndpointSuspend = bitField{off: 12, shift: 23, width: 1}

	setDequeueCycleState = bitField{off: 0, shift: 0, width: 1}
	setDequeueSCT        = bitField{off: 0, shift: 1, width: 3}
	setDequeuePointer    = qwordField{off: 0, low: 4}
	setDequeueStreamID   = bitField{off: 8, shift: 16, width: 16}
)

var (
	enableSlotFields        = []layoutPart{enableSlotType}
	slotOnlyFields          = []layoutPart{commandSlotID}
	addressDeviceFields     = []layoutPart{commandInputContext, commandBit9, commandSlotID}
	configureEndpointFields = []layoutPart{commandInputContext, commandBit9, commandSlotID}
	evaluateContextFields   = []layoutPart{commandInputContext, commandSlotID}
	resetEndpointFields     = []layoutPart{commandBit9, commandEndpointID, commandSlotID}
	stopEndpointFields      = []layoutPart{commandEndpointID, stopEndpointSuspend, commandSlotID}
	setTRDequeueFields      = []layoutPart{
		setDequeueCycleState, setDequeueSCT, setDequeuePointer, setDequeueStreamID,
		commandEndpointID, commandSlotID,
	}
)

// EnableSlotCommandTRB asks the controller for a free device slot.
type EnableSlotCommandTRB struct {
	Cycle    bool
	SlotType uint8
}

func (*EnableSlotCommandTRB) Type() TRBType { return TypeEnableSlotCommand }

func (c *EnableSlotCommandTRB) store(b []byte) {
	trbCycle.putBit(b, c.Cycle)
	enableSlotType.put(b, uint32(c.SlotType))
}

func (c *EnableSlotCommandTRB) load(b []byte) {
	*c = EnableSlotCommandTRB{
		Cycle:    trbCycle.bit(b),
		SlotType: uint8(enableSlotType.get(b)),
	}
}

type DisableSlotCommandTRB struct {
	Cycle  bool
	SlotID uint8
}

func (*DisableSlotCommandTRB) Type() TRBType { return TypeDisableSlotCommand }

func (c *DisableSlotCommandTRB) store(b []byte) {
	trbCycle.putBit(b, c.Cycle)
	commandSlotID.put(b, uint32(c.SlotID))
}

func (c *DisableSlotCommandTRB) load(b []byte) {
	*c = DisableSlotCommandTRB{
		Cycle:  trbCycle.bit(b),
		SlotID: uint8(commandSlotID.get(b)),
	}
}

// AddressDeviceCommandTRB points at an InputContext whose slot and EP0
// contexts are to be installed.
type AddressDeviceCommandTRB struct {
	InputContextPointer    uint64
	Cycle                  bool
	BlockSetAddressRequest bool
	SlotID                 uint8
}

func (*AddressDeviceCommandTRB) Type() TRBType { return TypeAddressDeviceCommand }

func (c *AddressDeviceCommandTRB) store(b []byte) {
	commandInputContext.put(b, c.InputContextPointer)
	trbCycle.putBit(b, c.Cycle)
	commandBit9.putBit(b, c.BlockSetAddressRequest)
	commandSlotID.put(b, uint32(c.SlotID))
}

func (c *AddressDeviceCommandTRB) load(b []byte) {
	*c = AddressDeviceCommandTRB{
		InputContextPointer:    commandInputContext.get(b),
		Cycle:                  trbCycle.bit(b),
		BlockSetAddressRequest: commandBit9.bit(b),
		SlotID:                 uint8(commandSlotID.get(b)),
	}
}

// ConfigureEndpointCommandTRB adds and drops the endpoints flagged in the
// InputControlContext of its input context.
type ConfigureEndpointCommandTRB struct {
	InputContextPointer uint64
	Cycle               bool
	Deconfigure         bool
	SlotID              uint8
}

func (*ConfigureEndpointCommandTRB) Type() TRBType { return TypeConfigureEndpointCommand }

func (c *ConfigureEndpointCommandTRB) store(b []byte) {
	commandInputContext.put(b, c.InputContextPointer)
	trbCycle.putBit(b, c.Cycle)
	commandBit9.putBit(b, c.Deconfigure)
	commandSlotID.put(b, uint32(c.SlotID))
}

func (c *ConfigureEndpointCommandTRB) load(b []byte) {
	*c = ConfigureEndpointCommandTRB{
		InputContextPointer: commandInputContext.get(b),
		Cycle:               trbCycle.bit(b),
		Deconfigure:         commandBit9.bit(b),
		SlotID:              uint8(commandSlotID.get(b)),
	}
}

type EvaluateContextCommandTRB struct {
	InputContextPointer uint64
	Cycle               bool
	SlotID              uint8
}

func (*EvaluateContextCommandTRB) Type() TRBType { return TypeEvaluateContextCommand }

func (c *EvaluateContextCommandTRB) store(b []byte) {
	commandInputContext.put(b, c.InputContextPointer)
	trbCycle.putBit(b, c.Cycle)
	commandSlotID.put(b, uint32(c.SlotID))
}

func (c *EvaluateContextCommandTRB) load(b []byte) {
	*c = EvaluateContextCommandTRB{
		InputContextPointer: commandInputContext.get(b),
		Cycle:               trbCycle.bit(b),
		SlotID:              uint8(commandSlotID.get(b)),
	}
}

type ResetEndpointCommandTRB struct {
	Cycle                 bool
	TransferStatePreserve bool
	EndpointID            uint8
	SlotID                uint8
}

func (*ResetEndpointCommandTRB) Type() TRBType { return TypeResetEndpointCommand }

func (c *ResetEndpointCommandTRB) store(b []byte) {
	trbCycle.putBit(b, c.Cycle)
	commandBit9.putBit(b, c.TransferStatePreserve)
	commandEndpointID.put(b, uint32(c.EndpointID))
	commandSlotID.put(b, uint32(c.SlotID))
}

func (c *ResetEndpointCommandTRB) load(b []byte) {
	*c = ResetEndpointCommandTRB{
		Cycle:                 trbCycle.bit(b),
		TransferStatePreserve: commandBit9.bit(b),
		EndpointID:            uint8(commandEndpointID.get(b)),
		SlotID:                uint8(commandSlotID.get(b)),
	}
}

type StopEndpointCommandTRB struct {
	Cycle      bool
	EndpointID uint8
	Suspend    bool
	SlotID     uint8
}

func (*StopEndpointCommandTRB) Type() TRBType { return TypeStopEndpointCommand }

func (c *StopEndpointCommandTRB) store(b []byte) {
	trbCycle.putBit(b, c.Cycle)
	commandEndpointID.put(b, uint32(c.EndpointID))
	stopEndpointSuspend.putBit(b, c.Suspend)
	commandSlotID.put(b, uint32(c.SlotID))
}

func (c *StopEndpointCommandTRB) load(b []byte) {
	*c = StopEndpointCommandTRB{
		Cycle:      trbCycle.bit(b),
		EndpointID: uint8(commandEndpointID.get(b)),
		Suspend:    stopEndpointSuspend.bit(b),
		SlotID:     uint8(commandSlotID.get(b)),
	}
}

// SetTRDequeuePointerCommandTRB moves an endpoint's dequeue pointer. The
// pointer shares its low nibble with the DCS and SCT fields.
type SetTRDequeuePointerCommandTRB struct {
	DequeueCycleState bool
	StreamContextType uint8
	DequeuePointer    uint64
	StreamID          uint16
	Cycle             bool
	EndpointID        uint8
	SlotID            uint8
}

func (*SetTRDequeuePointerCommandTRB) Type() TRBType { return TypeSetTRDequeuePointerCommand }

func (c *SetTRDequeuePointerCommandTRB) store(b []byte) {
	setDequeuePointer.put(b, c.DequeuePointer)
	setDequeueCycleState.putBit(b, c.DequeueCycleState)
	setDequeueSCT.put(b, uint32(c.StreamContextType))
	setDequeueStreamID.put(b, uint32(c.StreamID))
	trbCycle.putBit(b, c.Cycle)
	commandEndpointID.put(b, uint32(c.EndpointID))
	commandSlotID.put(b, uint32(c.SlotID))
}

func (c *SetTRDequeuePointerCommandTRB) load(b []byte) {
	*c = SetTRDequeuePointerCommandTRB{
		DequeueCycleState: setDequeueCycleState.bit(b),
		StreamContextType: uint8(setDequeueSCT.get(b)),
		DequeuePointer:    setDequeuePointer.get(b),
		StreamID:          uint16(setDequeueStreamID.get(b)),
		Cycle:             trbCycle.bit(b),
		EndpointID:        uint8(commandEndpointID.get(b)),
		SlotID:            uint8(commandSlotID.get(b)),
	}
}

type ResetDeviceCommandTRB struct {
	Cycle  bool
	SlotID uint8
}

func (*ResetDeviceCommandTRB) Type() TRBType { return TypeResetDeviceCommand }

func (c *ResetDeviceCommandTRB) store(b []byte) {
	trbCycle.putBit(b, c.Cycle)
	commandSlotID.put(b, uint32(c.SlotID))
}

func (c *ResetDeviceCommandTRB) load(b []byte) {
	*c = ResetDeviceCommandTRB{
		Cycle:  trbCycle.bit(b),
		SlotID: uint8(commandSlotID.get(b)),
	}
}

// NoopCommandTRB only produces a Command Completion Event.
type NoopCommandTRB struct {
	Cycle bool
}

func (*NoopCommandTRB) Type() TRBType { return TypeNoopCommand }

func (c *NoopCommandTRB) store(b []byte) {
	trbCycle.putBit(b, c.Cycle)
}

func (c *NoopCommandTRB) load(b []byte) {
	*c = NoopCommandTRB{Cycle: trbCycle.bit(b)}
}
