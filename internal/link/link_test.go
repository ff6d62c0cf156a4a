package link

import (
	"bytes"
	"testing"

	"github.com/kstaniek/cia613-gw/internal/canxl"
)

func sampleFrame() canxl.Frame {
	var f canxl.Frame
	f.Prio = 0x242
	f.Flags = canxl.XLF
	f.SDT = 1
	f.AF = 0xAFAFAFAF
	f.Len = 300
	for i := 0; i < 300; i++ {
		f.Data[i] = byte(i)
	}
	return f
}

func TestLoopbackRoundTrip(t *testing.T) {
	a, b := NewLoopbackPair(4)
	want := sampleFrame()
	if err := a.WriteFrame(want); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := b.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !canxl.Equal(want, got) {
		t.Fatal("loopback did not deliver frame unchanged")
	}
}

func TestLoopbackClosed(t *testing.T) {
	a, b := NewLoopbackPair(1)
	_ = a.Close()
	if err := a.WriteFrame(sampleFrame()); err != ErrClosed {
		t.Fatalf("WriteFrame after close = %v, want ErrClosed", err)
	}
	if _, err := b.ReadFrame(); err != ErrClosed {
		t.Fatalf("ReadFrame after close = %v, want ErrClosed", err)
	}
}

func TestSerialEncodeDecodeRoundTrip(t *testing.T) {
	want := sampleFrame()
	encoded := serialEncode(want)

	var buf bytes.Buffer
	buf.Write(encoded)
	got, ok, err := serialDecode(&buf)
	if err != nil {
		t.Fatalf("serialDecode: %v", err)
	}
	if !ok {
		t.Fatal("expected a complete frame to decode")
	}
	if !canxl.Equal(want, got) {
		t.Fatal("serial round trip mismatch")
	}
}

func TestSerialDecodeResyncsOnGarbage(t *testing.T) {
	want := sampleFrame()
	encoded := serialEncode(want)

	var buf bytes.Buffer
	buf.WriteByte(0xFF) // garbage before preamble
	buf.WriteByte(0x00)
	buf.Write(encoded)

	got, ok, err := serialDecode(&buf)
	if err != nil {
		t.Fatalf("serialDecode: %v", err)
	}
	if !ok {
		t.Fatal("expected resync then successful decode")
	}
	if !canxl.Equal(want, got) {
		t.Fatal("serial round trip mismatch after resync")
	}
}

func TestSerialDecodeIncompleteReturnsNotOK(t *testing.T) {
	want := sampleFrame()
	encoded := serialEncode(want)

	var buf bytes.Buffer
	buf.Write(encoded[:len(encoded)-5])
	_, ok, err := serialDecode(&buf)
	if err != nil {
		t.Fatalf("serialDecode: %v", err)
	}
	if ok {
		t.Fatal("expected incomplete frame to report not-ok")
	}
}
