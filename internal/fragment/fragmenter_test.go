package fragment

import (
	"bytes"
	"testing"

	"github.com/kstaniek/cia613-gw/internal/canxl"
	"github.com/kstaniek/cia613-gw/internal/llc"
)

func mkPDU(prio uint32, sdt uint8, af uint32, n int) canxl.Frame {
	var f canxl.Frame
	f.Prio, f.SDT, f.AF = prio, sdt, af
	f.Flags = canxl.XLF
	f.Len = uint16(n)
	for i := 0; i < n; i++ {
		f.Data[i] = byte(i % 44) // "repeating" pattern per spec scenario 1
	}
	return f
}

func TestFragmentRoundTripScenario1(t *testing.T) {
	// Spec scenario 1: fragsz=128, PDU len=300, prio=0x242, af=0xAFAFAFAF.
	p := mkPDU(0x242, 0, 0xAFAFAFAF, 300)

	frg, err := New(128)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	frames, err := frg.Fragment(p)
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	wantLens := []int{132, 132, 48}
	wantFCNT := []uint16{1, 2, 3}
	wantType := []llc.FrameType{llc.TypeFF, llc.TypeCF, llc.TypeLF}
	for i, f := range frames {
		if int(f.Len) != wantLens[i] {
			t.Fatalf("frame %d len = %d, want %d", i, f.Len, wantLens[i])
		}
		hdr := llc.Parse(f.Data[:llc.Size])
		if hdr.FCNT != wantFCNT[i] {
			t.Fatalf("frame %d fcnt = %d, want %d", i, hdr.FCNT, wantFCNT[i])
		}
		if hdr.PCI.Type != wantType[i] {
			t.Fatalf("frame %d type = %v, want %v", i, hdr.PCI.Type, wantType[i])
		}
	}
}

func TestFragmentForwardsShortPDUVerbatim(t *testing.T) {
	p := mkPDU(0x10, 0, 0, 64)
	frg, _ := New(128)
	frames, err := frg.Fragment(p)
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1 (verbatim forward)", len(frames))
	}
	if frames[0].Flags&canxl.SEC != 0 {
		t.Fatal("verbatim forward must not set SEC")
	}
	if !bytes.Equal(frames[0].Payload(), p.Payload()) {
		t.Fatal("verbatim forward must preserve payload")
	}
}

func TestFragmentRejectsTunnelEncapsulation(t *testing.T) {
	p := mkPDU(0x10, 0, 0, 200)
	p.Flags |= canxl.SEC
	llc.Header{PCI: llc.PCI{Type: llc.TypeFF, Version: llc.Version, AOT: llc.AOTFragmentation}, FCNT: 1}.Encode(p.Data[:llc.Size])

	frg, _ := New(128)
	_, err := frg.Fragment(p)
	if err == nil {
		t.Fatal("expected tunnel encapsulation error")
	}
}

func TestFragmentPreservesSECBitAsSECN(t *testing.T) {
	p := mkPDU(0x10, 0, 0, 300)
	p.Flags |= canxl.SEC // already-SEC but NOT a 613-3 frame (AOT zero) -> still fragmentable
	frg, _ := New(128)
	frames, err := frg.Fragment(p)
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	hdr := llc.Parse(frames[0].Data[:llc.Size])
	if !hdr.PCI.SECN {
		t.Fatal("expected SECN to be set from source SEC bit")
	}
}

func TestFCNTWraps(t *testing.T) {
	frg, _ := New(128)
	frg.txfcnt = 0xFFFF
	p := mkPDU(0x10, 0, 0, 300)
	frames, err := frg.Fragment(p)
	if err != nil {
		t.Fatalf("Fragment: %v", err)
	}
	hdr := llc.Parse(frames[0].Data[:llc.Size])
	if hdr.FCNT != 0 {
		t.Fatalf("fcnt after wrap = %d, want 0", hdr.FCNT)
	}
}

func TestNewRejectsOutOfRangeFragSize(t *testing.T) {
	if _, err := New(32); err == nil {
		t.Fatal("expected range error")
	}
	if _, err := New(2048); err == nil {
		t.Fatal("expected range error")
	}
}

func TestNewRejectsNonStepFragSize(t *testing.T) {
	if _, err := New(100); err == nil {
		t.Fatal("expected step error")
	}
}
