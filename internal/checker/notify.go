package checker

import "github.com/kstaniek/cia613-gw/internal/canxl"

// Notification codes, per the conformance state machine.
const (
	NotifyTestdataStored        = 0x01
	NotifyNoTestdata            = 0x02
	NotifyUnfragCorrect         = 0x03
	NotifyUnfragIncorrect       = 0x04
	NotifyWrongVersion          = 0x05
	NotifyFFBadSize             = 0x06
	NotifyFFBadStep             = 0x07
	NotifyFFAccepted            = 0x08
	NotifyCFBadSize             = 0x09
	NotifyCFBadStep             = 0x0A
	NotifyLFBadSize             = 0x0B
	NotifyPDUCorrect            = 0x0C
	NotifyPDUIncorrect          = 0x0D
	NotifyReservedPCI           = 0xE1
	NotifyFFWhileOngoing        = 0xE2
	NotifyFCNTMismatch          = 0xE3
	NotifyFFNewBuffer           = 0xE4
	NotifyBufferGrabbed         = 0xE5
	NotifyFFDroppedBuffersFull  = 0xE6
	NotifyLowPrioExceeded       = 0xE7
	NotifyUnfragWhileOngoing    = 0xE8
	NotifySizeOverflow          = 0xE9
)

// Notify is one state-change event: a 3-byte notification frame bound for
// the link, prio = DebugIDPrioBase | TID.
type Notify struct {
	Code   uint8
	TID    uint8
	Ubuffs uint8
	LPCnt  uint8
}

// Frame renders the notification as the wire frame the checker writes back.
func (n Notify) Frame() canxl.Frame {
	var f canxl.Frame
	f.Prio = DebugIDPrioBase | uint32(n.TID)
	f.Flags = canxl.XLF
	f.Len = 3
	f.Data[0] = n.Code
	f.Data[1] = n.Ubuffs
	f.Data[2] = n.LPCnt
	return f
}
