package xhci

import (
	"testing"

	"github.com/efficientgo/core/testutil"
)

func TestRegisterFields(t *testing.T) {
	testutil.Equals(t, uint8(3), DoorbellTarget(0x00050003))
	testutil.Equals(t, uint16(5), DoorbellStreamID(0x00050003))

	hcs := uint32(8<<24 | 1<<8 | 16)
	testutil.Equals(t, uint8(16), MaxSlots(hcs))
	testutil.Equals(t, uint16(1), MaxInterrupters(hcs))
	testutil.Equals(t, uint8(8), MaxPorts(hcs))

	testutil.Equals(t, uint8(4), PortCount(0x00000401))
	testutil.Equals(t, uint16(4000), ModerationInterval(0x00100FA0))
	testutil.Equals(t, uint16(0x10), ModerationCounter(0x00100FA0))

	portsc := PortSCCurrentConnectStatus | PortSCPortPower | 5<<5 | uint32(SpeedSuper)<<10
	testutil.Equals(t, uint8(5), PortLinkState(portsc))
	testutil.Equals(t, SpeedSuper, PortSpeedOf(portsc))
}

func TestSetToClearMasks(t *testing.T) {
	testutil.Equals(t, USBStsEventInterrupt|USBStsPortChangeDetect|uint32(1<<2)|uint32(1<<10), USBStsSetToClearMask)
	testutil.Equals(t, IManInterruptPending, IManSetToClearMask)
	testutil.Equals(t, ERDPEventHandlerBusy, ERDPSetToClearMask)
	testutil.Assert(t, PortSCSetToClearMask&PortSCConnectStatusChange != 0)
	testutil.Assert(t, PortSCSetToClearMask&PortSCPortResetChange != 0)
	testutil.Assert(t, PortSCSetToClearMask&PortSCPortEnabled != 0)
}
