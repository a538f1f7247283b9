// SPDX-License-Identifier: GPL-2.0-only

package xhci

// Operational and runtime register bits. Registers are plain values here;
// reading and writing MMIO is left to the device model.

// USBCMD
const (
	USBCmdRunStop           uint32 = 1 << 0
	USBCmdReset             uint32 = 1 << 1
	USBCmdInterrupterEnable uint32 = 1 << 2
)

// USBSTS
const (
	USBStsHalted             uint32 = 1 << 0
	USBStsEventInterrupt     uint32 = 1 << 3
	USBStsPortChangeDetect   uint32 = 1 << 4
	USBStsControllerNotReady uint32 = 1 << 11

	// USBStsSetToClearMask covers the RW1C bits.
	USBStsSetToClearMask uint32 = 0x0000041C
)

// CRCR
const (
	CRCRRingCycleState     uint64 = 1 << 0
	CRCRCommandStop        uint64 = 1 << 1
	CRCRCommandAbort       uint64 = 1 << 2
	CRCRCommandRingRunning uint64 = 1 << 3
	CRCRCommandRingPointer uint64 = 0xFFFFFFFFFFFFFFC0
)

// PORTSC
const (
	PortSCCurrentConnectStatus      uint32 = 1 << 0
	PortSCPortEnabled               uint32 = 1 << 1
	PortSCPortReset                 uint32 = 1 << 4
	PortSCPortLinkStateMask         uint32 = 0x000001E0
	PortSCPortPower                 uint32 = 1 << 9
	PortSCPortSpeedMask             uint32 = 0x00003C00
	PortSCConnectStatusChange       uint32 = 1 << 17
	PortSCPortEnabledDisabledChange uint32 = 1 << 18
	PortSCPortResetChange           uint32 = 1 << 21
	PortSCWarmPortReset             uint32 = 1 << 31
	PortSCSetToClearMask            uint32 = 0x00FE0002
)

// IMAN and IMOD
const (
	IManInterruptPending uint32 = 1 << 0
	IManInterruptEnable  uint32 = 1 << 1
	IManSetToClearMask   uint32 = 0x00000001
	IModIntervalMask     uint32 = 0xFFFF
	IModCounterOffset    uint32 = 16
)

// Event ring registers
const (
	ERSTSZSegmentTableSize uint32 = 0xFFFF
	ERSTBABaseAddress      uint64 = 0xFFFFFFFFFFFFFFC0
	ERDPEventHandlerBusy   uint64 = 1 << 3
	ERDPDequeuePointer     uint64 = 0xFFFFFFFFFFFFFFF0
	ERDPSetToClearMask     uint64 = 0x0000000000000008
)

// Doorbell, HCSPARAMS1 and Supported Protocol capability
const (
	DoorbellTargetMask     uint32 = 0xFF
	DoorbellStreamIDOffset uint32 = 16

	HCSParams1MaxSlotsMask          uint32 = 0xFF
	HCSParams1MaxInterruptersMask   uint32 = 0x7FF00
	HCSParams1MaxInterruptersOffset uint32 = 8
	HCSParams1MaxPortsOffset        uint32 = 24

	SupportedProtocolPortCountMask   uint32 = 0xFF00
	SupportedProtocolPortCountOffset uint32 = 8
)

// DoorbellTarget returns the DB Target field: 0 rings the command ring on
// the host doorbell, a device context index otherwise.
func DoorbellTarget(db uint32) uint8 {
	return uint8(db & DoorbellTargetMask)
}

func DoorbellStreamID(db uint32) uint16 {
	return uint16(db >> DoorbellStreamIDOffset)
}

func MaxSlots(hcsParams1 uint32) uint8 {
	return uint8(hcsParams1 & HCSParams1MaxSlotsMask)
}

func MaxInterrupters(hcsParams1 uint32) uint16 {
	return uint16((hcsParams1 & HCSParams1MaxInterruptersMask) >> HCSParams1MaxInterruptersOffset)
}

func MaxPorts(hcsParams1 uint32) uint8 {
	return uint8(hcsParams1 >> HCSParams1MaxPortsOffset)
}

// PortCount returns the Compatible Port Count of a Supported Protocol
// capability's third dword.
func PortCount(spcap uint32) uint8 {
	return uint8((spcap & SupportedProtocolPortCountMask) >> SupportedProtocolPortCountOffset)
}

func ModerationInterval(imod uint32) uint16 {
	return uint16(imod & IModIntervalMask)
}

func ModerationCounter(imod uint32) uint16 {
	return uint16(imod >> IModCounterOffset)
}

// PortLinkState returns the PLS field of a PORTSC value.
func PortLinkState(portsc uint32) uint8 {
	return uint8((portsc & PortSCPortLinkStateMask) >> 5)
}

// PortSpeedOf returns the Port Speed field of a PORTSC value.
func PortSpeedOf(portsc uint32) PortSpeed {
	return PortSpeed((portsc & PortSCPortSpeedMask) >> 10)
}
