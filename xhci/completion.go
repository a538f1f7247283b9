// SPDX-License-Identifier: GPL-2.0-only

package xhci

import "fmt"

// CompletionCode is the status carried by event TRBs. See xHCI
// table 6-90. Every 8-bit value is representable; unnamed values are
// reserved or vendor defined.
type CompletionCode uint8

const (
	CompletionInvalid                     CompletionCode = 0
	CompletionSuccess                     CompletionCode = 1
	CompletionDataBufferError             CompletionCode = 2
	CompletionBabbleDetectedError         CompletionCode = 3
	CompletionUSBTransactionError         CompletionCode = 4
	CompletionTRBError                    CompletionCode = 5
	CompletionStallError                  CompletionCode = 6
	CompletionResourceError               CompletionCode = 7
	CompletionBandwidthError              CompletionCode = 8
	CompletionNoSlotsAvailableError       CompletionCode = 9
	CompletionInvalidStreamTypeError      CompletionCode = 10
	CompletionSlotNotEnabledError         CompletionCode = 11
	CompletionEndpointNotEnabledError     CompletionCode = 12
	CompletionShortPacket                 CompletionCode = 13
	CompletionRingUnderrun                CompletionCode = 14
	CompletionRingOverrun                 CompletionCode = 15
	CompletionVFEventRingFullError        CompletionCode = 16
	CompletionParameterError              CompletionCode = 17
	CompletionBandwidthOverrunError       CompletionCode = 18
	CompletionContextStateError           CompletionCode = 19
	CompletionNoPingResponseError         CompletionCode = 20
	CompletionEventRingFullError          CompletionCode = 21
	CompletionIncompatibleDeviceError     CompletionCode = 22
	CompletionMissedServiceError          CompletionCode = 23
	CompletionCommandRingStopped          CompletionCode = 24
	CompletionCommandAborted              CompletionCode = 25
	CompletionStopped                     CompletionCode = 26
	CompletionStoppedLengthInvalid        CompletionCode = 27
	CompletionStoppedShortPacket          CompletionCode = 28
	CompletionMaxExitLatencyTooLargeError CompletionCode = 29
	CompletionIsochBufferOverrun          CompletionCode = 31
	CompletionEventLostError              CompletionCode = 32
	CompletionUndefinedError              CompletionCode = 33
	CompletionInvalidStreamIDError        CompletionCode = 34
	CompletionSecondaryBandwidthError     CompletionCode = 35
	CompletionSplitTransactionError       CompletionCode = 36
)

var completionCodeNames = map[CompletionCode]string{
	CompletionInvalid:                     "Invalid",
	CompletionSuccess:                     "Success",
	CompletionDataBufferError:             "DataBufferError",
	CompletionBabbleDetectedError:         "BabbleDetectedError",
	CompletionUSBTransactionError:         "USBTransactionError",
	CompletionTRBError:                    "TRBError",
	CompletionStallError:                  "StallError",
	CompletionResourceError:               "ResourceError",
	CompletionBandwidthError:              "BandwidthError",
	CompletionNoSlotsAvailableError:       "NoSlotsAvailableError",
	CompletionInvalidStreamTypeError:      "InvalidStreamTypeError",
	CompletionSlotNotEnabledError:         "SlotNotEnabledError",
	CompletionEndpointNotEnabledError:     "EndpointNotEnabledError",
	CompletionShortPacket:                 "ShortPacket",
	CompletionRingUnderrun:                "RingUnderrun",
	CompletionRingOverrun:                 "RingOverrun",
	CompletionVFEventRingFullError:        "VFEventRingFullError",
	CompletionParameterError:              "ParameterError",
	CompletionBandwidthOverrunError:       "BandwidthOverrunError",
	CompletionContextStateError:           "ContextStateError",
	CompletionNoPingResponseError:         "NoPingResponseError",
	CompletionEventRingFullError:          "EventRingFullError",
	CompletionIncompatibleDeviceError:     "IncompatibleDeviceError",
	CompletionMissedServiceError:          "MissedServiceError",
	CompletionCommandRingStopped:          "CommandRingStopped",
	CompletionCommandAborted:              "CommandAborted",
	CompletionStopped:                     "Stopped",
	CompletionStoppedLengthInvalid:        "StoppedLengthInvalid",
	CompletionStoppedShortPacket:          "StoppedShortPacket",
	CompletionMaxExitLatencyTooLargeError: "MaxExitLatencyTooLargeError",
	CompletionIsochBufferOverrun:          "IsochBufferOverrun",
	CompletionEventLostError:              "EventLostError",
	CompletionUndefinedError:              "UndefinedError",
	CompletionInvalidStreamIDError:        "InvalidStreamIDError",
	CompletionSecondaryBandwidthError:     "SecondaryBandwidthError",
	CompletionSplitTransactionError:       "SplitTransactionError",
}

func (c CompletionCode) String() string {
	if name, ok := completionCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CompletionCode(%d)", uint8(c))
}
