// Package portio gives byte-wide access to the legacy x86 I/O port
// space through /dev/port.
package portio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const devPath = "/dev/port"

// Port is a byte-wide I/O port space.
type Port interface {
	ReadByte(port uint16) (byte, error)
	WriteByte(port uint16, b byte) error
}

// DevPort reads and writes ports through /dev/port, where the port
// address is the file offset. Opening it needs root.
type DevPort struct {
	f *os.File
}

// Open opens /dev/port for read/write access.
func Open() (*DevPort, error) {
	f, err := os.OpenFile(devPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", devPath, err)
	}
	return &DevPort{f: f}, nil
}

func (p *DevPort) ReadByte(port uint16) (byte, error) {
	var buf [1]byte
	n, err := unix.Pread(int(p.f.Fd()), buf[:], int64(port))
	if err != nil {
		return 0, fmt.Errorf("reading port 0x%02X: %w", port, err)
	}
	if n != 1 {
		return 0, fmt.Errorf("reading port 0x%02X: short read", port)
	}
	return buf[0], nil
}

func (p *DevPort) WriteByte(port uint16, b byte) error {
	n, err := unix.Pwrite(int(p.f.Fd()), []byte{b}, int64(port))
	if err != nil {
		return fmt.Errorf("writing port 0x%02X: %w", port, err)
	}
	if n != 1 {
		return fmt.Errorf("writing port 0x%02X: short write", port)
	}
	return nil
}

// Close releases /dev/port.
func (p *DevPort) Close() error {
	return p.f.Close()
}
