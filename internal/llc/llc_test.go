package llc

import "testing"

func TestPCIRoundTrip(t *testing.T) {
	cases := []PCI{
		{Type: TypeFF, Version: Version, SECN: true, AOT: AOTFragmentation},
		{Type: TypeCF, Version: Version, SECN: false, AOT: AOTFragmentation},
		{Type: TypeLF, Version: Version, SECN: false, AOT: AOTFragmentation},
		{Type: TypeReserved, Version: Version, SECN: true, AOT: AOTFragmentation},
	}
	for _, c := range cases {
		got := ParsePCI(c.Byte())
		if got != c {
			t.Fatalf("round trip mismatch: %+v -> %#x -> %+v", c, c.Byte(), got)
		}
	}
}

func TestFirstFrameByteValue(t *testing.T) {
	// version+AOT+FF = 0x01<<2 | 0x01<<5 | 0x02 = 0x04|0x20|0x02 = 0x26.
	p := PCI{Type: TypeFF, Version: Version, AOT: AOTFragmentation, SECN: false}
	// The base byte (version+AOT, no frame-type bits, i.e. a CF) is 0x24.
	base := PCI{Type: TypeCF, Version: Version, AOT: AOTFragmentation}
	if base.Byte() != 0x24 {
		t.Fatalf("base pci byte = %#x, want 0x24", base.Byte())
	}
	if p.Byte() != 0x26 {
		t.Fatalf("FF pci byte = %#x, want 0x26", p.Byte())
	}
}

func TestHeaderEncodeParse(t *testing.T) {
	h := Header{PCI: PCI{Type: TypeLF, Version: Version, AOT: AOTFragmentation}, FCNT: 0x1234}
	buf := make([]byte, Size)
	h.Encode(buf)
	if buf[1] != 0 {
		t.Fatalf("res byte must be zero, got %#x", buf[1])
	}
	got := Parse(buf)
	if got != h {
		t.Fatalf("parsed header = %+v, want %+v", got, h)
	}
}

func TestIsFragmentation(t *testing.T) {
	p := ParsePCI(0x26)
	if !p.IsFragmentation() {
		t.Fatal("expected fragmentation AOT")
	}
	p2 := ParsePCI(0x06) // AOT bits zero
	if p2.IsFragmentation() {
		t.Fatal("expected non-fragmentation AOT to report false")
	}
}
