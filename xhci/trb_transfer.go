// SPDX-License-Identifier: GPL-2.0-only

package xhci

// MaxTransferLength is the largest value a 17-bit TRB Transfer Length
// field holds.
const MaxTransferLength = 1<<17 - 1

// FrameIDModulus is the period of the 11-bit isochronous Frame ID.
const FrameIDModulus = 1 << 11

// Fields shared by transfer TRBs. See xHCI section 6.4.1.
var (
	transferBuffer            = qwordField{off: 0, low: 0}
	transferLength            = bitField{off: 8, shift: 0, width: 17}
	transferTDSize            = bitField{off: 8, shift: 17, width: 5}
	transferInterrupterTarget = bitField{off: 8, shift: 22, width: 10}
	transferENT               = bitField{off: 12, shift: 1, width: 1}
	transferISP               = bitField{off: 12, shift: 2, width: 1}
	transferNoSnoop           = bitField{off: 12, shift: 3, width: 1}
	transferChain             = bitField{off: 12, shift: 4, width: 1}
	transferIOC               = bitField{off: 12, shift: 5, width: 1}
	transferIDT               = bitField{off: 12, shift: 6, width: 1}
	transferBEI               = bitField{off: 12, shift: 9, width: 1}
	transferDir               = bitField{off: 12, shift: 16, width: 1}
)

var (
	setupRequestType  = bitField{off: 0, shift: 0, width: 8}
	setupRequest      = bitField{off: 0, shift: 8, width: 8}
	setupValue        = bitField{off: 0, shift: 16, width: 16}
	setupIndex        = bitField{off: 4, shift: 0, width: 16}
	setupLength       = bitField{off: 4, shift: 16, width: 16}
	setupTransferType = bitField{off: 12, shift: 16, width: 2}

	isochTBC     = bitField{off: 12, shift: 7, width: 2}
	isochTLBPC   = bitField{off: 12, shift: 16, width: 4}
	isochFrameID = bitField{off: 12, shift: 20, width: 11}
	isochSIA     = bitField{off: 12, shift: 31, width: 1}

	// Ring segments are 16-byte aligned; the low nibble is RsvdZ.
	linkSegmentPointer = qwordField{off: 0, low: 4}
	linkToggleCycle    = bitField{off: 12, shift: 1, width: 1}
)

var (
	normalFields = []layoutPart{
		transferBuffer, transferLength, transferTDSize, transferInterrupterTarget,
		transferENT, transferISP, transferNoSnoop, transferChain, transferIOC, transferIDT, transferBEI,
	}
	setupStageFields = []layoutPart{
		setupRequestType, setupRequest, setupValue, setupIndex, setupLength,
		transferLength, transferInterrupterTarget, transferIOC, transferIDT, setupTransferType,
	}
	dataStageFields = []layoutPart{
		transferBuffer, transferLength, transferTDSize, transferInterrupterTarget,
		transferENT, transferISP, transferNoSnoop, transferChain, transferIOC, transferIDT, transferDir,
	}
	statusStageFields = []layoutPart{
		transferInterrupterTarget, transferENT, transferChain, transferIOC, transferDir,
	}
	isochFields = []layoutPart{
		transferBuffer, transferLength, transferTDSize, transferInterrupterTarget,
		transferENT, transferISP, transferNoSnoop, transferChain, transferIOC, transferIDT,
		isochTBC, transferBEI, isochTLBPC, isochFrameID, isochSIA,
	}
	linkFields = []layoutPart{
		linkSegmentPointer, transferInterrupterTarget, linkToggleCycle, transferChain, transferIOC,
	}
	eventDataFields = []layoutPart{
		transferBuffer, transferInterrupterTarget, transferENT, transferChain, transferIOC, transferBEI,
	}
	noopFields = []layoutPart{
		transferInterrupterTarget, transferENT, transferChain, transferIOC,
	}
)

// NormalTRB moves a buffer on bulk, interrupt and control data stages.
type NormalTRB struct {
	DataBuffer             uint64
	TransferLength         uint32
	TDSize                 uint8
	InterrupterTarget      uint16
	Cycle                  bool
	EvaluateNextTRB        bool
	InterruptOnShortPacket bool
	NoSnoop                bool
	Chain                  bool
	InterruptOnCompletion  bool
	ImmediateData          bool
	BlockEventInterrupt    bool
}

func (*NormalTRB) Type() TRBType { return TypeNormal }

func (n *NormalTRB) store(b []byte) {
	transferBuffer.put(b, n.DataBuffer)
	transferLength.put(b, n.TransferLength)
	transferTDSize.put(b, uint32(n.TDSize))
	transferInterrupterTarget.put(b, uint32(n.InterrupterTarget))
	trbCycle.putBit(b, n.Cycle)
	transferENT.putBit(b, n.EvaluateNextTRB)
	transferISP.putBit(b, n.InterruptOnShortPacket)
	transferNoSnoop.putBit(b, n.NoSnoop)
	transferChain.putBit(b, n.Chain)
	transferIOC.putBit(b, n.InterruptOnCompletion)
	transferIDT.putBit(b, n.ImmediateData)
	transferBEI.putBit(b, n.BlockEventInterrupt)
}

func (n *NormalTRB) load(b []byte) {
	*n = NormalTRB{
		DataBuffer:             transferBuffer.get(b),
		TransferLength:         transferLength.get(b),
		TDSize:                 uint8(transferTDSize.get(b)),
		InterrupterTarget:      uint16(transferInterrupterTarget.get(b)),
		Cycle:                  trbCycle.bit(b),
		EvaluateNextTRB:        transferENT.bit(b),
		InterruptOnShortPacket: transferISP.bit(b),
		NoSnoop:                transferNoSnoop.bit(b),
		Chain:                  transferChain.bit(b),
		InterruptOnCompletion:  transferIOC.bit(b),
		ImmediateData:          transferIDT.bit(b),
		BlockEventInterrupt:    transferBEI.bit(b),
	}
}

// SetupTransferType is the TRT field of a Setup Stage TRB.
type SetupTransferType uint8

const (
	NoDataStage  SetupTransferType = 0
	OutDataStage SetupTransferType = 2
	InDataStage  SetupTransferType = 3
)

// SetupStageTRB carries the 8-byte USB setup packet inline.
type SetupStageTRB struct {
	RequestType           uint8
	Request               uint8
	Value                 uint16
	Index                 uint16
	Length                uint16
	TransferLength        uint32
	InterrupterTarget     uint16
	Cycle                 bool
	InterruptOnCompletion bool
	ImmediateData         bool
	TransferType          SetupTransferType
}

func (*SetupStageTRB) Type() TRBType { return TypeSetupStage }

func (s *SetupStageTRB) store(b []byte) {
	setupRequestType.put(b, uint32(s.RequestType))
	setupRequest.put(b, uint32(s.Request))
	setupValue.put(b, uint32(s.Value))
	setupIndex.put(b, uint32(s.Index))
	setupLength.put(b, uint32(s.Length))
	transferLength.put(b, s.TransferLength)
	transferInterrupterTarget.put(b, uint32(s.InterrupterTarget))
	trbCycle.putBit(b, s.Cycle)
	transferIOC.putBit(b, s.InterruptOnCompletion)
	transferIDT.putBit(b, s.ImmediateData)
	setupTransferType.put(b, uint32(s.TransferType))
}

func (s *SetupStageTRB) load(b []byte) {
	*s = SetupStageTRB{
		RequestType:           uint8(setupRequestType.get(b)),
		Request:               uint8(setupRequest.get(b)),
		Value:                 uint16(setupValue.get(b)),
		Index:                 uint16(setupIndex.get(b)),
		Length:                uint16(setupLength.get(b)),
		TransferLength:        transferLength.get(b),
		InterrupterTarget:     uint16(transferInterrupterTarget.get(b)),
		Cycle:                 trbCycle.bit(b),
		InterruptOnCompletion: transferIOC.bit(b),
		ImmediateData:         transferIDT.bit(b),
		TransferType:          SetupTransferType(setupTransferType.get(b)),
	}
}

// DataStageTRB is the data phase of a control transfer.
type DataStageTRB struct {
	DataBuffer             uint64
	TransferLength         uint32
	TDSize                 uint8
	InterrupterTarget      uint16
	Cycle                  bool
	EvaluateNextTRB        bool
	InterruptOnShortPacket bool
	NoSnoop                bool
	Chain                  bool
	InterruptOnCompletion  bool
	ImmediateData          bool
	DirectionIn            bool
}

func (*DataStageTRB) Type() TRBType { return TypeDataStage }

func (d *DataStageTRB) store(b []byte) {
	transferBuffer.put(b, d.DataBuffer)
	transferLength.put(b, d.TransferLength)
	transferTDSize.put(b, uint32(d.TDSize))
	transferInterrupterTarget.put(b, uint32(d.InterrupterTarget))
	trbCycle.putBit(b, d.Cycle)
	transferENT.putBit(b, d.EvaluateNextTRB)
	transferISP.putBit(b, d.InterruptOnShortPacket)
	transferNoSnoop.putBit(b, d.NoSnoop)
	transferChain.putBit(b, d.Chain)
	transferIOC.putBit(b, d.InterruptOnCompletion)
	transferIDT.putBit(b, d.ImmediateData)
	transferDir.putBit(b, d.DirectionIn)
}

func (d *DataStageTRB) load(b []byte) {
	*d = DataStageTRB{
		DataBuffer:             transferBuffer.get(b),
		TransferLength:         transferLength.get(b),
		TDSize:                 uint8(transferTDSize.get(b)),
		InterrupterTarget:      uint16(transferInterrupterTarget.get(b)),
		Cycle:                  trbCycle.bit(b),
		EvaluateNextTRB:        transferENT.bit(b),
		InterruptOnShortPacket: transferISP.bit(b),
		NoSnoop:                transferNoSnoop.bit(b),
		Chain:                  transferChain.bit(b),
		InterruptOnCompletion:  transferIOC.bit(b),
		ImmediateData:          transferIDT.bit(b),
		DirectionIn:            transferDir.bit(b),
	}
}

// StatusStageTRB closes a control transfer.
type StatusStageTRB struct {
	InterrupterTarget     uint16
	Cycle                 bool
	EvaluateNextTRB       bool
	Chain                 bool
	InterruptOnCompletion bool
	DirectionIn           bool
}

func (*StatusStageTRB) Type() TRBType { return TypeStatusStage }

func (s *StatusStageTRB) store(b []byte) {
	transferInterrupterTarget.put(b, uint32(s.InterrupterTarget))
	trbCycle.putBit(b, s.Cycle)
	transferENT.putBit(b, s.EvaluateNextTRB)
	transferChain.putBit(b, s.Chain)
	transferIOC.putBit(b, s.InterruptOnCompletion)
	transferDir.putBit(b, s.DirectionIn)
}

func (s *StatusStageTRB) load(b []byte) {
	*s = StatusStageTRB{
		InterrupterTarget:     uint16(transferInterrupterTarget.get(b)),
		Cycle:                 trbCycle.bit(b),
		EvaluateNextTRB:       transferENT.bit(b),
		Chain:                 transferChain.bit(b),
		InterruptOnCompletion: transferIOC.bit(b),
		DirectionIn:           transferDir.bit(b),
	}
}

// IsochTRB is the first TRB of an isochronous transfer descriptor.
type IsochTRB struct {
	DataBuffer                   uint64
	TransferLength               uint32
	TDSize                       uint8
	InterrupterTarget            uint16
	Cycle                        bool
	EvaluateNextTRB              bool
	InterruptOnShortPacket       bool
	NoSnoop                      bool
	Chain                        bool
	InterruptOnCompletion        bool
	ImmediateData                bool
	TransferBurstCount           uint8
	BlockEventInterrupt          bool
	TransferLastBurstPacketCount uint8
	// FrameID is 11 bits wide and wraps at FrameIDModulus.
	FrameID        uint16
	StartIsochASAP bool
}

func (*IsochTRB) Type() TRBType { return TypeIsoch }

func (i *IsochTRB) store(b []byte) {
	transferBuffer.put(b, i.DataBuffer)
	transferLength.put(b, i.TransferLength)
	transferTDSize.put(b, uint32(i.TDSize))
	transferInterrupterTarget.put(b, uint32(i.InterrupterTarget))
	trbCycle.putBit(b, i.Cycle)
	transferENT.putBit(b, i.EvaluateNextTRB)
	transferISP.putBit(b, i.InterruptOnShortPacket)
	transferNoSnoop.putBit(b, i.NoSnoop)
	transferChain.putBit(b, i.Chain)
	transferIOC.putBit(b, i.InterruptOnCompletion)
	transferIDT.putBit(b, i.ImmediateData)
	isochTBC.put(b, uint32(i.TransferBurstCount))
	transferBEI.putBit(b, i.BlockEventInterrupt)
	isochTLBPC.put(b, uint32(i.TransferLastBurstPacketCount))
	isochFrameID.put(b, uint32(i.FrameID))
	isochSIA.putBit(b, i.StartIsochASAP)
}

func (i *IsochTRB) load(b []byte) {
	*i = IsochTRB{
		DataBuffer:                   transferBuffer.get(b),
		TransferLength:               transferLength.get(b),
		TDSize:                       uint8(transferTDSize.get(b)),
		InterrupterTarget:            uint16(transferInterrupterTarget.get(b)),
		Cycle:                        trbCycle.bit(b),
		EvaluateNextTRB:              transferENT.bit(b),
		InterruptOnShortPacket:       transferISP.bit(b),
		NoSnoop:                      transferNoSnoop.bit(b),
		Chain:                        transferChain.bit(b),
		InterruptOnCompletion:        transferIOC.bit(b),
		ImmediateData:                transferIDT.bit(b),
		TransferBurstCount:           uint8(isochTBC.get(b)),
		BlockEventInterrupt:          transferBEI.bit(b),
		TransferLastBurstPacketCount: uint8(isochTLBPC.get(b)),
		FrameID:                      uint16(isochFrameID.get(b)),
		StartIsochASAP:               isochSIA.bit(b),
	}
}

// LinkTRB points the consumer at the next ring segment.
type LinkTRB struct {
	// RingSegmentPointer must be 16-byte aligned; the low 4 bits are
	// dropped on encode.
	RingSegmentPointer    uint64
	InterrupterTarget     uint16
	Cycle                 bool
	ToggleCycle           bool
	Chain                 bool
	InterruptOnCompletion bool
}

func (*LinkTRB) Type() TRBType { return TypeLink }

func (l *LinkTRB) store(b []byte) {
	linkSegmentPointer.put(b, l.RingSegmentPointer)
	transferInterrupterTarget.put(b, uint32(l.InterrupterTarget))
	trbCycle.putBit(b, l.Cycle)
	linkToggleCycle.putBit(b, l.ToggleCycle)
	transferChain.putBit(b, l.Chain)
	transferIOC.putBit(b, l.InterruptOnCompletion)
}

func (l *LinkTRB) load(b []byte) {
	*l = LinkTRB{
		RingSegmentPointer:    linkSegmentPointer.get(b),
		InterrupterTarget:     uint16(transferInterrupterTarget.get(b)),
		Cycle:                 trbCycle.bit(b),
		ToggleCycle:           linkToggleCycle.bit(b),
		Chain:                 transferChain.bit(b),
		InterruptOnCompletion: transferIOC.bit(b),
	}
}

// EventDataTRB makes the controller post its 64-bit payload in a
// Transfer Event.
type EventDataTRB struct {
	EventData             uint64
	InterrupterTarget     uint16
	Cycle                 bool
	EvaluateNextTRB       bool
	Chain                 bool
	InterruptOnCompletion bool
	BlockEventInterrupt   bool
}

func (*EventDataTRB) Type() TRBType { return TypeEventData }

func (e *EventDataTRB) store(b []byte) {
	transferBuffer.put(b, e.EventData)
	transferInterrupterTarget.put(b, uint32(e.InterrupterTarget))
	trbCycle.putBit(b, e.Cycle)
	transferENT.putBit(b, e.EvaluateNextTRB)
	transferChain.putBit(b, e.Chain)
	transferIOC.putBit(b, e.InterruptOnCompletion)
	transferBEI.putBit(b, e.BlockEventInterrupt)
}

func (e *EventDataTRB) load(b []byte) {
	*e = EventDataTRB{
		EventData:             transferBuffer.get(b),
		InterrupterTarget:     uint16(transferInterrupterTarget.get(b)),
		Cycle:                 trbCycle.bit(b),
		EvaluateNextTRB:       transferENT.bit(b),
		Chain:                 transferChain.bit(b),
		InterruptOnCompletion: transferIOC.bit(b),
		BlockEventInterrupt:   transferBEI.bit(b),
	}
}

// NoopTRB is a transfer ring no-op.
type NoopTRB struct {
	InterrupterTarget     uint16
	Cycle                 bool
	EvaluateNextTRB       bool
	Chain                 bool
	InterruptOnCompletion bool
}

func (*NoopTRB) Type() TRBType { return TypeNoop }

func (n *NoopTRB) store(b []byte) {
	transferInterrupterTarget.put(b, uint32(n.InterrupterTarget))
	trbCycle.putBit(b, n.Cycle)
	transferENT.putBit(b, n.EvaluateNextTRB)
	transferChain.putBit(b, n.Chain)
	transferIOC.putBit(b, n.InterruptOnCompletion)
}

func (n *NoopTRB) load(b []byte) {
	*n = NoopTRB{
		InterrupterTarget:     uint16(transferInterrupterTarget.get(b)),
		Cycle:                 trbCycle.bit(b),
		EvaluateNextTRB:       transferENT.bit(b),
		Chain:                 transferChain.bit(b),
		InterruptOnCompletion: transferIOC.bit(b),
	}
}
