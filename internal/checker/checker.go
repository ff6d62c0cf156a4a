// Package checker implements the CiA 613-3 conformance checker: a
// multi-buffer reassembler with a reference-PDU store, preemption policy,
// and low-priority starvation guard, driving a notification stream.
package checker

import (
	"fmt"
	"log/slog"

	"github.com/kstaniek/cia613-gw/internal/canxl"
	"github.com/kstaniek/cia613-gw/internal/fragment"
	"github.com/kstaniek/cia613-gw/internal/llc"
)

// Engine holds all per-TID buffer state for one checker run. Not safe for
// concurrent use; intended to be driven from a single read loop.
type Engine struct {
	MaxBuffs uint32
	MaxLPCnt uint32
	Logger   *slog.Logger

	testdata [BufMemSize]canxl.Frame
	pdudata  [BufMemSize]canxl.Frame
	dataptr  [BufMemSize]int
	fcnt     [BufMemSize]uint32

	ubuffs uint32
	lpcnt  uint32
}

// New validates maxbuffs/maxlpcnt and constructs a checker Engine.
func New(maxbuffs, maxlpcnt uint32, logger *slog.Logger) (*Engine, error) {
	if maxbuffs < 1 || maxbuffs > BufMemSize-1 {
		return nil, fmt.Errorf("checker: maxbuffs %d out of range [1,%d]", maxbuffs, BufMemSize-1)
	}
	if maxlpcnt < 1 || maxlpcnt > BufMemSize-1 {
		return nil, fmt.Errorf("checker: maxlpcnt %d out of range [1,%d]", maxlpcnt, BufMemSize-1)
	}
	e := &Engine{MaxBuffs: maxbuffs, MaxLPCnt: maxlpcnt, Logger: logger}
	for i := range e.fcnt {
		e.fcnt[i] = noFCNT
	}
	return e, nil
}

// Ubuffs reports the current number of occupied reassembly buffers.
func (e *Engine) Ubuffs() uint32 { return e.ubuffs }

// LPCnt reports the current low-priority starvation counter value.
func (e *Engine) LPCnt() uint32 { return e.lpcnt }

func (e *Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) notify(code uint8, tid uint8, out []Notify) []Notify {
	n := Notify{Code: code, TID: tid, Ubuffs: uint8(e.ubuffs), LPCnt: uint8(e.lpcnt)}
	e.log().Debug("notify", "code", code, "tid", tid, "ubuffs", e.ubuffs, "lpcnt", e.lpcnt)
	return append(out, n)
}

// Handle processes one incoming frame and returns the ordered sequence of
// notifications to write back to the link (zero or more).
func (e *Engine) Handle(fr canxl.Frame) []Notify {
	var out []Notify

	tid := fr.TID()
	bufidx := tid2bufidx[tid]
	if bufidx == 0 {
		return out // not a TID under test
	}

	if fr.Prio&TestDataPrioBase != 0 {
		masked := fr
		masked.Prio &= TIDMask
		e.testdata[bufidx] = masked
		e.fcnt[bufidx] = noFCNT
		return e.notify(NotifyTestdataStored, tid, out)
	}

	if e.testdata[bufidx].Len == 0 {
		return e.notify(NotifyNoTestdata, tid, out)
	}

	if !isFragmentFrame(fr) {
		if e.pdudata[bufidx].Len != 0 {
			out = e.notify(NotifyUnfragWhileOngoing, tid, out)
			e.releaseBuffer(bufidx)
		}
		if canxl.Equal(fr, e.testdata[bufidx]) {
			return e.notify(NotifyUnfragCorrect, tid, out)
		}
		return e.notify(NotifyUnfragIncorrect, tid, out)
	}

	hdr := llc.Parse(fr.Data[:llc.Size])
	rxfragsz := int(fr.Len) - llc.Size

	if hdr.PCI.Version != llc.Version {
		return e.notify(NotifyWrongVersion, tid, out)
	}
	if hdr.PCI.Type == llc.TypeReserved {
		return e.notify(NotifyReservedPCI, tid, out)
	}

	lowestTID, lowestIdx := e.lowestAssembling()
	if uint32(tid) <= lowestTID {
		e.lpcnt = 0
	} else {
		e.lpcnt++
	}
	if e.lpcnt >= e.MaxLPCnt {
		if e.pdudata[lowestIdx].Len == 0 {
			e.log().Error("lowprio_release_empty_slot", "idx", lowestIdx)
		} else {
			out = e.notify(NotifyLowPrioExceeded, uint8(lowestTID), out)
			e.releaseBuffer(lowestIdx)
		}
	}

	rxfcnt := uint32(hdr.FCNT)

	switch hdr.PCI.Type {
	case llc.TypeFF:
		return e.acceptFF(tid, bufidx, rxfcnt, rxfragsz, fr, hdr, out)
	case llc.TypeCF:
		return e.acceptCF(tid, bufidx, rxfcnt, rxfragsz, fr, out)
	case llc.TypeLF:
		return e.acceptLF(tid, bufidx, rxfcnt, rxfragsz, fr, out)
	}
	return out
}

func (e *Engine) acceptFF(tid uint8, bufidx int, rxfcnt uint32, rxfragsz int, fr canxl.Frame, hdr llc.Header, out []Notify) []Notify {
	out = e.notify(NotifyFFNewBuffer, tid, out)

	if e.pdudata[bufidx].Len != 0 {
		out = e.notify(NotifyFFWhileOngoing, tid, out)
		e.releaseBuffer(bufidx)
	}

	if rxfragsz < fragment.MinFragSize || rxfragsz > fragment.MaxFragSize {
		return e.notify(NotifyFFBadSize, tid, out)
	}
	if rxfragsz%fragment.FragStepSize != 0 {
		return e.notify(NotifyFFBadStep, tid, out)
	}

	// Decide buffer admission against the CURRENTLY assembling set, before
	// this TID's own buffer is staged — otherwise a newly arriving TID
	// would count itself as the highest-priority occupant when it ties
	// for highest, silently corrupting the eviction decision.
	if e.ubuffs >= e.MaxBuffs {
		highestTID, highestIdx := e.highestAssembling()
		if uint32(tid) > highestTID {
			return e.notify(NotifyFFDroppedBuffersFull, tid, out)
		}
		// Grab: evict the highest-TID occupant's slot state directly,
		// without going through releaseBuffer, so ubuffs stays unchanged
		// across the swap and NotifyBufferGrabbed reports the same count
		// a peer sees from the reference checker.
		e.fcnt[highestIdx] = noFCNT
		e.pdudata[highestIdx].Len = 0
		out = e.notify(NotifyBufferGrabbed, uint8(highestTID), out)
	} else {
		e.ubuffs++
	}

	e.fcnt[bufidx] = rxfcnt
	e.pdudata[bufidx] = fr
	e.pdudata[bufidx].Flags &^= canxl.SEC
	if hdr.PCI.SECN {
		e.pdudata[bufidx].Flags |= canxl.SEC
	}
	e.pdudata[bufidx].Len = uint16(rxfragsz)
	copy(e.pdudata[bufidx].Data[:rxfragsz], fr.Data[llc.Size:fr.Len])
	e.dataptr[bufidx] = rxfragsz

	return e.notify(NotifyFFAccepted, tid, out)
}

func (e *Engine) acceptCF(tid uint8, bufidx int, rxfcnt uint32, rxfragsz int, fr canxl.Frame, out []Notify) []Notify {
	if e.fcnt[bufidx] != noFCNT {
		e.fcnt[bufidx] = (e.fcnt[bufidx] + 1) & 0xFFFF
	}
	if e.fcnt[bufidx] != rxfcnt {
		out = e.notify(NotifyFCNTMismatch, tid, out)
		e.releaseBuffer(bufidx)
		e.fcnt[bufidx] = noFCNT // only FF can set a proper fcnt value
		return out
	}

	if rxfragsz < fragment.MinFragSize || rxfragsz > fragment.MaxFragSize {
		return e.notify(NotifyCFBadSize, tid, out)
	}
	if rxfragsz%fragment.FragStepSize != 0 {
		return e.notify(NotifyCFBadStep, tid, out)
	}
	if e.dataptr[bufidx]+rxfragsz > canxl.MaxDLen {
		return e.notify(NotifySizeOverflow, tid, out)
	}

	copy(e.pdudata[bufidx].Data[e.dataptr[bufidx]:], fr.Data[llc.Size:fr.Len])
	e.dataptr[bufidx] += rxfragsz
	e.pdudata[bufidx].Len += uint16(rxfragsz)
	return out
}

func (e *Engine) acceptLF(tid uint8, bufidx int, rxfcnt uint32, rxfragsz int, fr canxl.Frame, out []Notify) []Notify {
	if e.fcnt[bufidx] != noFCNT {
		e.fcnt[bufidx] = (e.fcnt[bufidx] + 1) & 0xFFFF
	}
	if e.fcnt[bufidx] != rxfcnt {
		out = e.notify(NotifyFCNTMismatch, tid, out)
		e.releaseBuffer(bufidx)
		e.fcnt[bufidx] = noFCNT // only FF can set a proper fcnt value
		return out
	}

	if rxfragsz < canxl.MinDLen || rxfragsz > fragment.MaxFragSize {
		return e.notify(NotifyLFBadSize, tid, out)
	}
	if e.dataptr[bufidx]+rxfragsz > canxl.MaxDLen {
		return e.notify(NotifySizeOverflow, tid, out)
	}

	copy(e.pdudata[bufidx].Data[e.dataptr[bufidx]:], fr.Data[llc.Size:fr.Len])
	e.pdudata[bufidx].Len += uint16(rxfragsz)

	if canxl.Equal(e.pdudata[bufidx], e.testdata[bufidx]) {
		out = e.notify(NotifyPDUCorrect, tid, out)
	} else {
		out = e.notify(NotifyPDUIncorrect, tid, out)
	}

	e.fcnt[bufidx] = noFCNT
	e.pdudata[bufidx].Len = 0
	e.ubuffs--
	return out
}

// releaseBuffer marks a buffer slot unused and decrements ubuffs, mirroring
// the "terminate potential ongoing transmission" steps scattered through the
// reference checker.
func (e *Engine) releaseBuffer(bufidx int) {
	if e.pdudata[bufidx].Len == 0 {
		return
	}
	e.fcnt[bufidx] = noFCNT
	e.pdudata[bufidx].Len = 0
	e.ubuffs--
}

// lowestAssembling finds the numerically lowest (highest-priority) TID among
// buffers currently ASSEMBLING. Returns TIDMax, 0 if none are in progress.
func (e *Engine) lowestAssembling() (tid uint32, idx int) {
	tid = TIDMax
	for i := 1; i < BufMemSize; i++ {
		if e.pdudata[i].Len == 0 {
			continue
		}
		masked := uint32(e.pdudata[i].TID())
		if masked <= tid {
			tid = masked
			idx = i
		}
	}
	return tid, idx
}

// highestAssembling finds the numerically highest (lowest-priority) TID
// among buffers currently ASSEMBLING.
func (e *Engine) highestAssembling() (tid uint32, idx int) {
	for i := 1; i < BufMemSize; i++ {
		if e.pdudata[i].Len == 0 {
			continue
		}
		masked := uint32(e.pdudata[i].TID())
		if masked >= tid {
			tid = masked
			idx = i
		}
	}
	return tid, idx
}

func isFragmentFrame(fr canxl.Frame) bool {
	if fr.Flags&canxl.SEC == 0 {
		return false
	}
	if int(fr.Len) < llc.Size {
		return false
	}
	return llc.ParsePCI(fr.Data[0]).IsFragmentation()
}
