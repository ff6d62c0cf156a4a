package link

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tarm/serial"

	"github.com/kstaniek/cia613-gw/internal/canxl"
	"github.com/kstaniek/cia613-gw/internal/metrics"
)

// Serial frame layout: [0x2D, 0xD4, len_hi, len_lo, payload..., checksum]
// where payload is a serialized canxl.Frame (HdrSize..HdrSize+MaxDLen bytes)
// and checksum is the 8-bit sum of len_hi, len_lo and every payload byte.
// A 16-bit length is required (unlike the classic-CAN UART tunnel this is
// modeled on) because a CAN XL frame can carry up to 2048 data bytes.
const (
	serialPre0 = 0x2D
	serialPre1 = 0xD4
	serialMinLen = canxl.HdrSize + canxl.MinDLen
	serialMaxLen = canxl.HdrSize + canxl.MaxDLen
)

func serialEncode(fr canxl.Frame) []byte {
	payload := canxl.Serialize(fr)
	frame := make([]byte, 4+len(payload)+1)
	frame[0] = serialPre0
	frame[1] = serialPre1
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(payload)))
	copy(frame[4:], payload)
	sum := frame[2] + frame[3]
	for _, b := range payload {
		sum += b
	}
	frame[4+len(payload)] = sum
	return frame
}

// serialDecode consumes one frame from in if a complete, checksummed frame
// is available. It returns (frame, true, nil) on success, (_, false, nil) if
// more bytes are needed, and a non-nil error only for fatal stream errors.
func serialDecode(in *bytes.Buffer) (canxl.Frame, bool, error) {
	header := []byte{serialPre0, serialPre1}
	for {
		data := in.Bytes()
		if len(data) < 4 {
			return canxl.Frame{}, false, nil
		}
		i := bytes.Index(data, header)
		if i < 0 {
			if in.Len() > 1 {
				last := data[len(data)-1]
				in.Reset()
				_ = in.WriteByte(last)
			}
			return canxl.Frame{}, false, nil
		}
		if i > 0 {
			in.Next(i)
			continue
		}

		ln := int(binary.BigEndian.Uint16(data[2:4]))
		if ln < serialMinLen || ln > serialMaxLen {
			metrics.IncMalformed()
			in.Next(1)
			continue
		}

		req := 4 + ln + 1
		if len(data) < req {
			return canxl.Frame{}, false, nil
		}

		sum := data[2] + data[3]
		for _, b := range data[4 : req-1] {
			sum += b
		}
		if sum != data[req-1] {
			metrics.IncMalformed()
			in.Next(1)
			continue
		}

		fr, err := canxl.Parse(data[4 : req-1])
		in.Next(req)
		if err != nil {
			metrics.IncMalformed()
			continue
		}
		return fr, true, nil
	}
}

// SerialTunnel carries CAN XL frames over a UART using the framing above.
type SerialTunnel struct {
	port *serial.Port
	rx   bytes.Buffer
	buf  [4096]byte
}

// OpenSerialTunnel opens a UART at the given device path and baud rate.
func OpenSerialTunnel(device string, baud int) (*SerialTunnel, error) {
	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial %q: %w", device, err)
	}
	return &SerialTunnel{port: port}, nil
}

func (s *SerialTunnel) Close() error { return s.port.Close() }

// ReadFrame blocks until one frame is decoded from the UART stream.
func (s *SerialTunnel) ReadFrame() (canxl.Frame, error) {
	for {
		if fr, ok, err := serialDecode(&s.rx); err != nil {
			return canxl.Frame{}, err
		} else if ok {
			metrics.IncLinkRx("serial")
			return fr, nil
		}

		n, err := s.port.Read(s.buf[:])
		if err != nil && err != io.EOF {
			return canxl.Frame{}, fmt.Errorf("%w: %v", ErrRead, err)
		}
		if n == 0 {
			continue
		}
		s.rx.Write(s.buf[:n])
	}
}

// WriteFrame writes one CAN XL frame to the UART.
func (s *SerialTunnel) WriteFrame(fr canxl.Frame) error {
	buf := serialEncode(fr)
	n, err := s.port.Write(buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short write %d/%d", ErrWrite, n, len(buf))
	}
	metrics.IncLinkTx("serial")
	return nil
}
