package reassemble

import (
	"testing"

	"github.com/kstaniek/cia613-gw/internal/canxl"
	"github.com/kstaniek/cia613-gw/internal/fragment"
)

func reassembleAll(t *testing.T, e *Engine, frames []canxl.Frame) (canxl.Frame, bool) {
	t.Helper()
	for i, f := range frames {
		outcome, pdu := e.Handle(f)
		if i == len(frames)-1 {
			if outcome != OutcomeLFCompleted {
				return canxl.Frame{}, false
			}
			return pdu, true
		}
	}
	return canxl.Frame{}, false
}

func mkPDU(prio uint32, sdt uint8, af uint32, n int) canxl.Frame {
	var f canxl.Frame
	f.Prio, f.SDT, f.AF = prio, sdt, af
	f.Flags = canxl.XLF
	f.Len = uint16(n)
	for i := 0; i < n; i++ {
		f.Data[i] = byte(i % 44)
	}
	return f
}

func TestRoundTripScenario1(t *testing.T) {
	p := mkPDU(0x242, 0, 0xAFAFAFAF, 300)
	frg, _ := fragment.New(128)
	frames, err := frg.Fragment(p)
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}

	e := New(0x242, nil)
	pdu, ok := reassembleAll(t, e, frames)
	if !ok {
		t.Fatal("expected reassembly to complete")
	}
	if !canxl.Equal(p, pdu) {
		t.Fatalf("reassembled PDU mismatch: %+v vs %+v", p, pdu)
	}
}

func TestFCNTGapAborts(t *testing.T) {
	e := New(0x10, nil)

	ff := mkFragFrame(t, 0x10, 10, 128, make([]byte, 128))
	outcome, _ := e.Handle(ff)
	if outcome != OutcomeFFAccepted {
		t.Fatalf("FF outcome = %v, want accepted", outcome)
	}

	cf := mkFragFrame(t, 0x10, 12, 128, make([]byte, 128)) // should be 11
	cf.Data[0] = 0x24                                      // CF: neither FF nor LF bit set
	outcome, _ = e.Handle(cf)
	if outcome != OutcomeCFBadFCNT {
		t.Fatalf("CF outcome = %v, want bad fcnt", outcome)
	}
	if e.buf.Assembling() {
		t.Fatal("expected buffer reset after FCNT mismatch")
	}
}

func TestFFPreemptsOngoing(t *testing.T) {
	e := New(0x10, nil)
	ff1 := mkFragFrame(t, 0x10, 1, 128, make([]byte, 128))
	if outcome, _ := e.Handle(ff1); outcome != OutcomeFFAccepted {
		t.Fatalf("first FF outcome = %v", outcome)
	}
	ff2 := mkFragFrame(t, 0x10, 5, 256, make([]byte, 256))
	outcome, _ := e.Handle(ff2)
	if outcome != OutcomeFFPreempted {
		t.Fatalf("second FF outcome = %v, want preempted", outcome)
	}
}

func TestForwardsNonFragmentFrame(t *testing.T) {
	e := New(0x10, nil)
	var f canxl.Frame
	f.Flags = canxl.XLF
	f.Len = 8
	outcome, got := e.Handle(f)
	if outcome != OutcomeForwarded {
		t.Fatalf("outcome = %v, want forwarded", outcome)
	}
	if got.Len != f.Len {
		t.Fatal("expected verbatim frame back")
	}
}

// mkFragFrame builds a single frame with an llc header for tests that need
// direct control over FCNT. The PCI is always FF (0x26); a test that needs a
// CF or LF overwrites Data[0] itself.
func mkFragFrame(t *testing.T, tid uint32, fcnt uint16, payloadLen int, payload []byte) canxl.Frame {
	t.Helper()
	var f canxl.Frame
	f.Prio = tid
	f.Flags = canxl.XLF | canxl.SEC
	f.Len = uint16(4 + payloadLen)
	// pci: version(0b01)<<2 | aot(0b001)<<5 | FF bit(0x02)
	f.Data[0] = 0x26
	f.Data[1] = 0
	f.Data[2] = byte(fcnt >> 8)
	f.Data[3] = byte(fcnt)
	copy(f.Data[4:], payload)
	return f
}
