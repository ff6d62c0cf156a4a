//go:build linux

package link

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/cia613-gw/internal/canxl"
	"github.com/kstaniek/cia613-gw/internal/metrics"
)

// SOL_CAN_RAW sockopts added for CAN XL support. Not yet exported by every
// golang.org/x/sys/unix release, so they are pinned here to the kernel UAPI
// values (linux/can/raw.h).
const (
	canRawXLFrames    = 7
	canRawXLVCIDOpts  = 8
	canRawXLVCIDTxSet = 0x1 // can_raw_vcid_options.flags: CAN_RAW_XL_VCID_TX_SET
)

// canRawVCIDOptions mirrors struct can_raw_vcid_options.
type canRawVCIDOptions struct {
	Flags      uint8
	TXVCID     uint8
	RXVCID     uint8
	RXVCIDMask uint8
}

// SocketCAN is a raw AF_CAN socket bound to one CAN XL interface.
type SocketCAN struct {
	fd   int
	name string
}

// OpenSocketCAN binds a raw CAN_RAW socket to iface and enables CAN XL framing.
func OpenSocketCAN(iface string) (*SocketCAN, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socket(AF_CAN): %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, canRawXLFrames, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("sockopt CAN_RAW_XL_FRAMES: %w", err)
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("if %q: %w", iface, err)
	}
	sa := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind(can@%s): %w", iface, err)
	}
	return &SocketCAN{fd: fd, name: iface}, nil
}

func (d *SocketCAN) Close() error { return unix.Close(d.fd) }

// SetVCID tags every frame this socket transmits with the given virtual CAN
// network ID (CAN XL VCID), used by the fragmenter's -V flag.
func (d *SocketCAN) SetVCID(vcid uint8) error {
	opts := canRawVCIDOptions{Flags: canRawXLVCIDTxSet, TXVCID: vcid}
	buf := []byte{opts.Flags, opts.TXVCID, opts.RXVCID, opts.RXVCIDMask}
	if err := unix.SetsockoptString(d.fd, unix.SOL_CAN_RAW, canRawXLVCIDOpts, string(buf)); err != nil {
		return fmt.Errorf("sockopt CAN_RAW_XL_VCID_OPTS: %w", err)
	}
	return nil
}

// ReadFrame reads one CAN XL frame. The kernel's struct canxl_frame is
// byte-identical to canxl.Frame, so the read buffer parses directly.
func (d *SocketCAN) ReadFrame() (canxl.Frame, error) {
	var buf [canxl.HdrSize + canxl.MaxDLen]byte
	n, err := unix.Read(d.fd, buf[:])
	if err != nil {
		return canxl.Frame{}, fmt.Errorf("%w: %v", ErrRead, err)
	}
	fr, err := canxl.Parse(buf[:n])
	if err != nil {
		metrics.IncMalformed()
		return canxl.Frame{}, err
	}
	metrics.IncLinkRx("socketcan")
	return fr, nil
}

// WriteFrame writes one CAN XL frame.
func (d *SocketCAN) WriteFrame(fr canxl.Frame) error {
	buf := canxl.Serialize(fr)
	n, err := unix.Write(d.fd, buf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short write %d/%d", ErrWrite, n, len(buf))
	}
	metrics.IncLinkTx("socketcan")
	return nil
}
