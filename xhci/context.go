// SPDX-License-Identifier: GPL-2.0-only

package xhci

import "fmt"

// Context sizes for controllers with CSZ=0 (32-byte contexts).
const (
	SlotContextSize         = 32
	EndpointContextSize     = 32
	InputControlContextSize = 32
	// MaxEndpointContexts is the number of endpoint contexts following the
	// slot context, one per device context index 1-31.
	MaxEndpointContexts = 31
	DeviceContextSize   = SlotContextSize + MaxEndpointContexts*EndpointContextSize
	InputContextSize    = InputControlContextSize + DeviceContextSize
)

// The hardware sizes are not negotiable; a wrong constant fails to build.
var (
	_ = [1]struct{}{}[TRBSize-16]
	_ = [1]struct{}{}[SlotContextSize-32]
	_ = [1]struct{}{}[EndpointContextSize-32]
	_ = [1]struct{}{}[InputControlContextSize-32]
	_ = [1]struct{}{}[DeviceContextSize-1024]
	_ = [1]struct{}{}[InputContextSize-1056]
	_ = [1]struct{}{}[EventRingSegmentTableEntrySize-16]
)

// Slot Context fields. See xHCI section 6.2.2.
var (
	slotRouteString       = bitField{off: 0, shift: 0, width: 20}
	slotSpeed             = bitField{off: 0, shift: 20, width: 4}
	slotMTT               = bitField{off: 0, shift: 25, width: 1}
	slotHub               = bitField{off: 0, shift: 26, width: 1}
	slotContextEntries    = bitField{off: 0, shift: 27, width: 5}
	slotMaxExitLatency    = bitField{off: 4, shift: 0, width: 16}
	slotRootHubPort       = bitField{off: 4, shift: 16, width: 8}
	slotNumPorts          = bitField{off: 4, shift: 24, width: 8}
	slotTTHubSlotID       = bitField{off: 8, shift: 0, width: 8}
	slotTTPortNumber      = bitField{off: 8, shift: 8, width: 8}
	slotTTThinkTime       = bitField{off: 8, shift: 16, width: 2}
	slotInterrupterTarget = bitField{off: 8, shift: 22, width: 10}
	slotDeviceAddress     = bitField{off: 12, shift: 0, width: 8}
	slotStateField        = bitField{off: 12, shift: 27, width: 5}

	slotContextFields = []layoutPart{
		slotRouteString, slotSpeed, slotMTT, slotHub, slotContextEntries,
		slotMaxExitLatency, slotRootHubPort, slotNumPorts,
		slotTTHubSlotID, slotTTPortNumber, slotTTThinkTime, slotInterrupterTarget,
		slotDeviceAddress, slotStateField,
	}
)

// Endpoint Context fields. See xHCI section 6.2.3.
var (
	epState             = bitField{off: 0, shift: 0, width: 3}
	epMult              = bitField{off: 0, shift: 8, width: 2}
	epMaxPStreams       = bitField{off: 0, shift: 10, width: 5}
	epLSA               = bitField{off: 0, shift: 15, width: 1}
	epInterval          = bitField{off: 0, shift: 16, width: 8}
	epMaxESITPayloadHi  = bitField{off: 0, shift: 24, width: 8}
	epErrorCount        = bitField{off: 4, shift: 1, width: 2}
	epType              = bitField{off: 4, shift: 3, width: 3}
	epHID               = bitField{off: 4, shift: 7, width: 1}
	epMaxBurstSize      = bitField{off: 4, shift: 8, width: 8}
	epMaxPacketSize     = bitField{off: 4, shift: 16, width: 16}
	epDequeueCycleState = bitField{off: 8, shift: 0, width: 1}
	// Bits 1-3 of the qword are RsvdZ, bits 4-63 the ring address.
	epTRDequeuePointer = qwordField{off: 8, low: 4}
	epAverageTRBLength = bitField{off: 16, shift: 0, width: 16}
	epMaxESITPayloadLo = bitField{off: 16, shift: 16, width: 16}

	endpointContextFields = []layoutPart{
		epState, epMult, epMaxPStreams, epLSA, epInterval, epMaxESITPayloadHi,
		epErrorCount, epType, epHID, epMaxBurstSize, epMaxPacketSize,
		epDequeueCycleState, epTRDequeuePointer, epAverageTRBLength, epMaxESITPayloadLo,
	}
)

// Input Control Context fields. See xHCI section 6.2.5.1.
var (
	icDropFlags        = bitField{off: 0, shift: 0, width: 32}
	icAddFlags         = bitField{off: 4, shift: 0, width: 32}
	icConfigurationVal = bitField{off: 28, shift: 0, width: 8}
	icInterfaceNumber  = bitField{off: 28, shift: 8, width: 8}
	icAlternateSetting = bitField{off: 28, shift: 16, width: 8}

	inputControlFields = []layoutPart{icDropFlags, icAddFlags, icConfigurationVal, icInterfaceNumber, icAlternateSetting}
)

func init() {
	for name, l := range map[string][]layoutPart{
		"SlotContext":         slotContextFields,
		"EndpointContext":     endpointContextFields,
		"InputControlContext": inputControlFields,
	} {
		if f, ok := checkLayout(32, l); !ok {
			panic(fmt.Sprintf("xhci: %s field %+v overlaps or leaves the record", name, f))
		}
	}
}

// SlotState is the Slot State field of a Slot Context.
type SlotState uint8

const (
	SlotDisabledOrEnabled SlotState = 0
	SlotDefault           SlotState = 1
	SlotAddressed         SlotState = 2
	SlotConfigured        SlotState = 3
)

func (s SlotState) String() string {
	switch s {
	case SlotDisabledOrEnabled:
		return "DisabledOrEnabled"
	case SlotDefault:
		return "Default"
	case SlotAddressed:
		return "Addressed"
	case SlotConfigured:
		return "Configured"
	default:
		return fmt.Sprintf("SlotState(%d)", uint8(s))
	}
}

// PortSpeed is the default Protocol Speed ID used in the Slot Context
// Speed field and PORTSC.
type PortSpeed uint8

const (
	SpeedUndefined PortSpeed = 0
	SpeedFull      PortSpeed = 1
	SpeedLow       PortSpeed = 2
	SpeedHigh      PortSpeed = 3
	SpeedSuper     PortSpeed = 4
	SpeedSuperPlus PortSpeed = 5
)

// SlotContext describes a device as a whole.
type SlotContext struct {
	RouteString       uint32
	Speed             PortSpeed
	MTT               bool
	Hub               bool
	ContextEntries    uint8
	MaxExitLatency    uint16
	RootHubPortNumber uint8
	NumPorts          uint8
	TTHubSlotID       uint8
	TTPortNumber      uint8
	TTThinkTime       uint8
	InterrupterTarget uint16
	USBDeviceAddress  uint8
	SlotState         SlotState
}

func (s *SlotContext) SizeBytes() int {
	return SlotContextSize
}

// MarshalBytes writes s into the first SlotContextSize bytes of dst,
// zeroing the reserved fields, and returns the rest of dst.
func (s *SlotContext) MarshalBytes(dst []byte) []byte {
	b := dst[:SlotContextSize]
	clear(b)
	slotRouteString.put(b, s.RouteString)
	slotSpeed.put(b, uint32(s.Speed))
	slotMTT.putBit(b, s.MTT)
	slotHub.putBit(b, s.Hub)
	slotContextEntries.put(b, uint32(s.ContextEntries))
	slotMaxExitLatency.put(b, uint32(s.MaxExitLatency))
	slotRootHubPort.put(b, uint32(s.RootHubPortNumber))
	slotNumPorts.put(b, uint32(s.NumPorts))
	slotTTHubSlotID.put(b, uint32(s.TTHubSlotID))
	slotTTPortNumber.put(b, uint32(s.TTPortNumber))
	slotTTThinkTime.put(b, uint32(s.TTThinkTime))
	slotInterrupterTarget.put(b, uint32(s.InterrupterTarget))
	slotDeviceAddress.put(b, uint32(s.USBDeviceAddress))
	slotStateField.put(b, uint32(s.SlotState))
	return dst[SlotContextSize:]
}

// UnmarshalBytes reads s from the first SlotContextSize bytes of src and
// returns the rest of src.
func (s *SlotContext) UnmarshalBytes(src []byte) []byte {
	b := src[:SlotContextSize]
	*s = SlotContext{
		RouteString:       slotRouteString.get(b),
		Speed:             PortSpeed(slotSpeed.get(b)),
		MTT:               slotMTT.bit(b),
		Hub:               slotHub.bit(b),
		ContextEntries:    uint8(slotContextEntries.get(b)),
		MaxExitLatency:    uint16(slotMaxExitLatency.get(b)),
		RootHubPortNumber: uint8(slotRootHubPort.get(b)),
		NumPorts:          uint8(slotNumPorts.get(b)),
		TTHubSlotID:       uint8(slotTTHubSlotID.get(b)),
		TTPortNumber:      uint8(slotTTPortNumber.get(b)),
		TTThinkTime:       uint8(slotTTThinkTime.get(b)),
		InterrupterTarget: uint16(slotInterrupterTarget.get(b)),
		USBDeviceAddress:  uint8(slotDeviceAddress.get(b)),
		SlotState:         SlotState(slotStateField.get(b)),
	}
	return src[SlotContextSize:]
}

// EndpointState is the EP State field of an Endpoint Context.
type EndpointState uint8

const (
	EndpointDisabled EndpointState = 0
	EndpointRunning  EndpointState = 1
	EndpointHalted   EndpointState = 2
	EndpointStopped  EndpointState = 3
	EndpointError    EndpointState = 4
)

func (s EndpointState) String() string {
	switch s {
	case EndpointDisabled:
		return "Disabled"
	case EndpointRunning:
		return "Running"
	case EndpointHalted:
		return "Halted"
	case EndpointStopped:
		return "Stopped"
	case EndpointError:
		return "Error"
	default:
		return fmt.Sprintf("EndpointState(%d)", uint8(s))
	}
}

// EndpointType is the EP Type field of an Endpoint Context.
type EndpointType uint8

const (
	EndpointNotValid     EndpointType = 0
	EndpointIsochOut     EndpointType = 1
	EndpointBulkOut      EndpointType = 2
	EndpointInterruptOut EndpointType = 3
	EndpointControl      EndpointType = 4
	EndpointIsochIn      EndpointType = 5
	EndpointBulkIn       EndpointType = 6
	EndpointInterruptIn  EndpointType = 7
)

var endpointTypeNames = [...]string{
	EndpointNotValid:     "NotValid",
	EndpointIsochOut:     "IsochOut",
	EndpointBulkOut:      "BulkOut",
	EndpointInterruptOut: "InterruptOut",
	EndpointControl:      "Control",
	EndpointIsochIn:      "IsochIn",
	EndpointBulkIn:       "BulkIn",
	EndpointInterruptIn:  "InterruptIn",
}

func (t EndpointType) String() string {
	if int(t) < len(endpointTypeNames) {
		return endpointTypeNames[t]
	}
	return fmt.Sprintf("EndpointType(%d)", uint8(t))
}

// EndpointContext describes one endpoint and the position of its
// transfer ring.
type EndpointContext struct {
	EndpointState       EndpointState
	Mult                uint8
	MaxPrimaryStreams   uint8
	LinearStreamArray   bool
	Interval            uint8
	MaxESITPayloadHi    uint8
	ErrorCount          uint8
	EndpointType        EndpointType
	HostInitiateDisable bool
	MaxBurstSize        uint8
	MaxPacketSize       uint16
	DequeueCycleState   bool
	// TRDequeuePointer is the 16-byte aligned ring address. It shares a
	// qword with DequeueCycleState, so the low 4 bits are always zero.
	TRDequeuePointer uint64
	AverageTRBLength uint16
	MaxESITPayloadLo uint16
}

// MaxESITPayload joins the split Max ESIT Payload fields.
func (e *EndpointContext) MaxESITPayload() uint32 {
	return uint32(e.MaxESITPayloadHi)<<16 | uint32(e.MaxESITPayloadLo)
}

func (e *EndpointContext) SizeBytes() int {
	return EndpointContextSize
}

func (e *EndpointContext) MarshalBytes(dst []byte) []byte {
	b := dst[:EndpointContextSize]
	clear(b)
	epState.put(b, uint32(e.EndpointState))
	epMult.put(b, uint32(e.Mult))
	epMaxPStreams.put(b, uint32(e.MaxPrimaryStreams))
	epLSA.putBit(b, e.LinearStreamArray)
	epInterval.put(b, uint32(e.Interval))
	epMaxESITPayloadHi.put(b, uint32(e.MaxESITPayloadHi))
	epErrorCount.put(b, uint32(e.ErrorCount))
	epType.put(b, uint32(e.EndpointType))
	epHID.putBit(b, e.HostInitiateDisable)
	epMaxBurstSize.put(b, uint32(e.MaxBurstSize))
	epMaxPacketSize.put(b, uint32(e.MaxPacketSize))
	epTRDequeuePointer.put(b, e.TRDequeuePointer)
	epDequeueCycleState.putBit(b, e.DequeueCycleState)
	epAverageTRBLength.put(b, uint32(e.AverageTRBLength))
	epMaxESITPayloadLo.put(b, uint32(e.MaxESITPayloadLo))
	return dst[EndpointContextSize:]
}

func (e *EndpointContext) UnmarshalBytes(src []byte) []byte {
	b := src[:EndpointContextSize]
	*e = EndpointContext{
		EndpointState:       EndpointState(epState.get(b)),
		Mult:                uint8(epMult.get(b)),
		MaxPrimaryStreams:   uint8(epMaxPStreams.get(b)),
		LinearStreamArray:   epLSA.bit(b),
		Interval:            uint8(epInterval.get(b)),
		MaxESITPayloadHi:    uint8(epMaxESITPayloadHi.get(b)),
		ErrorCount:          uint8(epErrorCount.get(b)),
		EndpointType:        EndpointType(epType.get(b)),
		HostInitiateDisable: epHID.bit(b),
		MaxBurstSize:        uint8(epMaxBurstSize.get(b)),
		MaxPacketSize:       uint16(epMaxPacketSize.get(b)),
		DequeueCycleState:   epDequeueCycleState.bit(b),
		TRDequeuePointer:    epTRDequeuePointer.get(b),
		AverageTRBLength:    uint16(epAverageTRBLength.get(b)),
		MaxESITPayloadLo:    uint16(epMaxESITPayloadLo.get(b)),
	}
	return src[EndpointContextSize:]
}

// DeviceContext is the output context the controller maintains for an
// enabled slot. Endpoints[i] holds device context index i+1.
type DeviceContext struct {
	Slot      SlotContext
	Endpoints [MaxEndpointContexts]EndpointContext
}

// DeviceContextIndex returns the DCI of an endpoint: 1 for the default
// control endpoint, 2n for OUT and 2n+1 for IN endpoint n. It returns 0
// for endpoint numbers above 15.
func DeviceContextIndex(endpoint uint8, in bool) uint8 {
	switch {
	case endpoint == 0:
		return 1
	case endpoint > 15:
		return 0
	case in:
		return endpoint*2 + 1
	default:
		return endpoint * 2
	}
}

// Endpoint returns the endpoint context for dci, or nil when dci is not
// in 1-31.
func (d *DeviceContext) Endpoint(dci uint8) *EndpointContext {
	if dci < 1 || int(dci) > MaxEndpointContexts {
		return nil
	}
	return &d.Endpoints[dci-1]
}

func (d *DeviceContext) SizeBytes() int {
	return DeviceContextSize
}

func (d *DeviceContext) MarshalBytes(dst []byte) []byte {
	dst = d.Slot.MarshalBytes(dst)
	for i := range d.Endpoints {
		dst = d.Endpoints[i].MarshalBytes(dst)
	}
	return dst
}

func (d *DeviceContext) UnmarshalBytes(src []byte) []byte {
	src = d.Slot.UnmarshalBytes(src)
	for i := range d.Endpoints {
		src = d.Endpoints[i].UnmarshalBytes(src)
	}
	return src
}

// InputControlContext selects which contexts of an InputContext a command
// evaluates. Bit i of each mask refers to device context index i.
type InputControlContext struct {
	DropContextFlags   uint32
	AddContextFlags    uint32
	ConfigurationValue uint8
	InterfaceNumber    uint8
	AlternateSetting   uint8
}

// DropContextFlag reports whether context i is to be dropped.
func (c *InputControlContext) DropContextFlag(i uint) bool {
	return (c.DropContextFlags>>i)&1 == 1
}

// AddContextFlag reports whether context i is to be added or evaluated.
func (c *InputControlContext) AddContextFlag(i uint) bool {
	return (c.AddContextFlags>>i)&1 == 1
}

func (c *InputControlContext) SizeBytes() int {
	return InputControlContextSize
}

func (c *InputControlContext) MarshalBytes(dst []byte) []byte {
	b := dst[:InputControlContextSize]
	clear(b)
	icDropFlags.put(b, c.DropContextFlags)
	icAddFlags.put(b, c.AddContextFlags)
	icConfigurationVal.put(b, uint32(c.ConfigurationValue))
	icInterfaceNumber.put(b, uint32(c.InterfaceNumber))
	icAlternateSetting.put(b, uint32(c.AlternateSetting))
	return dst[InputControlContextSize:]
}

func (c *InputControlContext) UnmarshalBytes(src []byte) []byte {
	b := src[:InputControlContextSize]
	*c = InputControlContext{
		DropContextFlags:   icDropFlags.get(b),
		AddContextFlags:    icAddFlags.get(b),
		ConfigurationValue: uint8(icConfigurationVal.get(b)),
		InterfaceNumber:    uint8(icInterfaceNumber.get(b)),
		AlternateSetting:   uint8(icAlternateSetting.get(b)),
	}
	return src[InputControlContextSize:]
}

// InputContext is the structure Address Device, Configure Endpoint and
// Evaluate Context commands point at.
type InputContext struct {
	Control InputControlContext
	Device  DeviceContext
}

func (c *InputContext) SizeBytes() int {
	return InputContextSize
}

func (c *InputContext) MarshalBytes(dst []byte) []byte {
	return c.Device.MarshalBytes(c.Control.MarshalBytes(dst))
}

func (c *InputContext) UnmarshalBytes(src []byte) []byte {
	return c.Device.UnmarshalBytes(c.Control.UnmarshalBytes(src))
}
