package ec

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type portWrite struct {
	port uint16
	val  byte
}

// simPort is an in-memory model of the EC register pair with
// programmable status behaviour.
type simPort struct {
	status byte
	data   byte

	statusReads int
	writes      []portWrite

	// busyClearAfter, when > 0, keeps the busy bit set until that
	// many status reads have happened.
	busyClearAfter int

	// onWrite observes every write after it has been recorded.
	onWrite func(port uint16, val byte)
}

func (p *simPort) ReadByte(port uint16) (byte, error) {
	switch port {
	case portCommand:
		p.statusReads++
		if p.busyClearAfter > 0 && p.statusReads >= p.busyClearAfter {
			p.status &^= statusBusy
		}
		return p.status, nil
	case portData:
		return p.data, nil
	}
	return 0, fmt.Errorf("unexpected read of port 0x%02X", port)
}

func (p *simPort) WriteByte(port uint16, val byte) error {
	p.writes = append(p.writes, portWrite{port, val})
	if p.onWrite != nil {
		p.onWrite(port, val)
	}
	return nil
}

func testController(p *simPort) *Controller {
	c := New(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.PollIterations = 5
	c.PollInterval = 0
	return c
}

func Test_controller_sendCommand(t *testing.T) {
	p := &simPort{}
	c := testController(p)

	require.NoError(t, c.SendCommand(cmdReadTemp))
	require.Equal(t, []portWrite{{portCommand, cmdReadTemp}}, p.writes)
	// one status read per wait, on both sides of the write
	require.Equal(t, 2, p.statusReads)
}

func Test_controller_sendCommand_busyClearsMidway(t *testing.T) {
	p := &simPort{status: statusBusy, busyClearAfter: 3}
	c := testController(p)

	require.NoError(t, c.SendCommand(cmdSetFan))
	require.Equal(t, []portWrite{{portCommand, cmdSetFan}}, p.writes)
}

func Test_controller_sendCommand_busyStuck(t *testing.T) {
	p := &simPort{status: statusBusy}
	c := testController(p)

	err := c.SendCommand(cmdReadTemp)
	require.ErrorIs(t, err, ErrTimeout)
	// the command byte must never go out while the EC is busy
	require.Empty(t, p.writes)
	// initial read plus PollIterations+1 polls, the exact ceiling
	require.Equal(t, c.PollIterations+2, p.statusReads)
}

func Test_controller_sendCommand_busyAfterWrite(t *testing.T) {
	p := &simPort{}
	p.onWrite = func(port uint16, _ byte) {
		if port == portCommand {
			p.status |= statusBusy
		}
	}
	c := testController(p)

	err := c.SendCommand(cmdReadTemp)
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, []portWrite{{portCommand, cmdReadTemp}}, p.writes)
}

func Test_controller_readTemperature(t *testing.T) {
	p := &simPort{}
	p.onWrite = func(port uint16, val byte) {
		// the zero trigger byte makes the result available
		if port == portData && val == 0x00 {
			p.status |= statusDataReady
			p.data = 57
		}
	}
	c := testController(p)

	temp, err := c.ReadTemperature()
	require.NoError(t, err)
	require.Equal(t, uint8(57), temp)
	require.Equal(t, []portWrite{{portCommand, cmdReadTemp}, {portData, 0x00}}, p.writes)
}

func Test_controller_readTemperature_dataNeverReady(t *testing.T) {
	p := &simPort{data: 99}
	c := testController(p)

	temp, err := c.ReadTemperature()
	require.ErrorIs(t, err, ErrTimeout)
	// no stale byte must leak out on timeout
	require.Equal(t, uint8(0), temp)
}

func Test_controller_setFanSpeed(t *testing.T) {
	p := &simPort{}
	c := testController(p)

	require.NoError(t, c.SetFanSpeed(42))
	require.Equal(t, []portWrite{{portCommand, cmdSetFan}, {portData, 42}}, p.writes)
	// fire-and-forget: no status wait follows the payload write
	require.Equal(t, 2, p.statusReads)
}

func Test_controller_init(t *testing.T) {
	p := &simPort{}
	c := testController(p)

	require.NoError(t, c.Init())
	require.Equal(t, []portWrite{
		{portSioIndex, 0x07}, {portSioData, 0x12},
		{portSioIndex, 0x30}, {portSioData, 0x00},
		{portSioIndex, 0x61}, {portSioData, 0x68},
		{portSioIndex, 0x63}, {portSioData, 0x6C},
		{portSioIndex, 0x30}, {portSioData, 0x01},
		{portCommand, cmdInit},
		{portData, 0x06},
	}, p.writes)
}
