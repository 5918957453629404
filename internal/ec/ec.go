// Package ec speaks the proprietary handshake of the X62 embedded
// controller over its command/status and data ports.
package ec

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"x62fanctl/internal/portio"
)

// EC register pair and the Super I/O configuration ports used to map
// it in. Fixed by the platform.
const (
	portData    = 0x68
	portCommand = 0x6C

	portSioIndex = 0x4E
	portSioData  = 0x4F
)

// Command/status port bits.
const (
	statusDataReady byte = 0x01 // set once a result byte is waiting on the data port
	statusBusy      byte = 0x02 // clear whenever the EC can accept a command
)

// Command bytes.
const (
	cmdInit     byte = 0x33
	cmdReadTemp byte = 0x44
	cmdSetFan   byte = 0x55
)

// ErrTimeout is returned when a status bit does not reach the expected
// state within the polling bound. The protocol gives no way to tell a
// slow EC from a wedged one, so callers treat this as fatal; after a
// resume from sleep a fresh Init is usually the fix.
var ErrTimeout = errors.New("ec: status wait timed out")

const (
	defaultPollIterations = 1000
	defaultPollInterval   = time.Millisecond
)

// Controller drives the EC through a byte port space.
type Controller struct {
	port portio.Port
	log  *slog.Logger

	// PollIterations and PollInterval bound every status wait. The
	// defaults give the ~1s ceiling the hardware needs at worst.
	PollIterations int
	PollInterval   time.Duration
}

// New return a controller with the default polling bounds.
func New(port portio.Port, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		port:           port,
		log:            log,
		PollIterations: defaultPollIterations,
		PollInterval:   defaultPollInterval,
	}
}

// awaitStatusClear polls the status port until status&mask == 0.
func (c *Controller) awaitStatusClear(mask byte) error {
	s, err := c.port.ReadByte(portCommand)
	if err != nil {
		return err
	}
	for i := 0; i <= c.PollIterations && s&mask != 0; i++ {
		time.Sleep(c.PollInterval)
		if s, err = c.port.ReadByte(portCommand); err != nil {
			return err
		}
	}
	if s&mask != 0 {
		return fmt.Errorf("%w: bit 0x%02X never cleared", ErrTimeout, mask)
	}
	return nil
}

// awaitStatusSet is the symmetric wait for status&mask != 0.
func (c *Controller) awaitStatusSet(mask byte) error {
	s, err := c.port.ReadByte(portCommand)
	if err != nil {
		return err
	}
	for i := 0; i <= c.PollIterations && s&mask == 0; i++ {
		time.Sleep(c.PollInterval)
		if s, err = c.port.ReadByte(portCommand); err != nil {
			return err
		}
	}
	if s&mask == 0 {
		return fmt.Errorf("%w: bit 0x%02X never set", ErrTimeout, mask)
	}
	return nil
}

// SendCommand issues one command byte. The EC must be idle before the
// write and back to idle after it; a command switches the EC's
// internal mode, and a second byte must never race an unprocessed one.
func (c *Controller) SendCommand(cmd byte) error {
	if err := c.awaitStatusClear(statusBusy); err != nil {
		return err
	}
	if err := c.port.WriteByte(portCommand, cmd); err != nil {
		return err
	}
	return c.awaitStatusClear(statusBusy)
}

// ReadTemperature returns the current temperature byte.
func (c *Controller) ReadTemperature() (uint8, error) {
	if err := c.SendCommand(cmdReadTemp); err != nil {
		return 0, err
	}
	// a zero byte on the data port triggers the conversion
	if err := c.port.WriteByte(portData, 0x00); err != nil {
		return 0, err
	}
	if err := c.awaitStatusSet(statusDataReady); err != nil {
		return 0, err
	}
	return c.port.ReadByte(portData)
}

// SetFanSpeed writes a raw fan-speed code. The EC acknowledges
// nothing for this command and may apply it late; the manager loop
// re-asserts the speed every tick anyway.
func (c *Controller) SetFanSpeed(code uint8) error {
	if err := c.SendCommand(cmdSetFan); err != nil {
		return err
	}
	return c.port.WriteByte(portData, code)
}

// sioSelect maps the EC function of the Super I/O chip at 0x68/0x6C:
// select logical device 0x12, disable it, program both base ports,
// enable it again.
var sioSelect = [...][2]byte{
	{0x07, 0x12},
	{0x30, 0x00},
	{0x61, 0x68},
	{0x63, 0x6C},
	{0x30, 0x01},
}

// Init maps the EC ports through the Super I/O chip and performs the
// wake-up exchange. Needed once per boot and again after a resume
// from sleep; without it every status wait times out.
func (c *Controller) Init() error {
	c.log.Debug("selecting the EC on the Super I/O chip")
	for _, p := range sioSelect {
		if err := c.port.WriteByte(portSioIndex, p[0]); err != nil {
			return err
		}
		if err := c.port.WriteByte(portSioData, p[1]); err != nil {
			return err
		}
	}

	// not sure what this exchange means, but the EC wants to see it
	// before answering anything else
	c.log.Debug("sending the EC wake-up command")
	if err := c.SendCommand(cmdInit); err != nil {
		return err
	}
	return c.port.WriteByte(portData, 0x06)
}
