// Package pci performs the one-time configuration-space write that
// unlocks EC access on the X62's LPC bridge.
package pci

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const sysfsDevices = "/sys/bus/pci/devices"

// Identity of the Wildcat Point-LP LPC bridge carrying the EC.
const (
	vendorIntel = 0x8086
	deviceLPC   = 0x9cc3
)

// Register write that unlocks the EC ports.
const (
	unlockOffset = 0x84
	unlockValue  = 0x00040069
)

var (
	// ErrNoDevice means no PCI device matched the expected bridge.
	ErrNoDevice = errors.New("pci: no matching device")

	// ErrMultipleDevices means the bridge identity was ambiguous;
	// writing into the wrong device's config space is not an option.
	ErrMultipleDevices = errors.New("pci: matched multiple devices")
)

// Unlock scans the PCI bus for the LPC bridge and writes the EC
// unlock value into its configuration space. Exactly one device must
// match.
func Unlock(log *slog.Logger) error {
	return unlock(sysfsDevices, log)
}

func unlock(root string, log *slog.Logger) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", root, err)
	}

	var matches []string
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		vendor, err := readHexAttr(filepath.Join(dir, "vendor"))
		if err != nil {
			continue
		}
		device, err := readHexAttr(filepath.Join(dir, "device"))
		if err != nil {
			continue
		}
		log.Debug("testing device", "address", e.Name(), "id", fmt.Sprintf("%04x:%04x", vendor, device))
		if vendor == vendorIntel && device == deviceLPC {
			log.Debug("match", "address", e.Name())
			matches = append(matches, dir)
		}
	}

	if len(matches) == 0 {
		return ErrNoDevice
	}
	if len(matches) > 1 {
		return fmt.Errorf("%w: %d devices report %04x:%04x", ErrMultipleDevices, len(matches), vendorIntel, deviceLPC)
	}

	return writeUnlock(filepath.Join(matches[0], "config"))
}

func writeUnlock(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening pci config: %w", err)
	}
	defer f.Close()

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], unlockValue)
	if _, err := f.WriteAt(buf[:], unlockOffset); err != nil {
		return fmt.Errorf("writing pci config: %w", err)
	}
	return nil
}

// readHexAttr parses a sysfs attribute of the form "0x8086\n".
func readHexAttr(path string) (uint32, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return uint32(v), nil
}
