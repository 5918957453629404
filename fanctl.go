package main

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"x62fanctl/internal/ec"
	"x62fanctl/internal/status"
)

// Manager runs the closed control loop: read the temperature, walk
// the level table one step, re-assert the fan speed.
type Manager struct {
	mutex sync.Mutex

	device   Device
	levels   LevelTable
	interval time.Duration

	log     *slog.Logger
	metrics *status.Metrics

	level int
	last  status.Snapshot
}

// NewManager return a manager on the given device, starting from the
// coolest level. metrics may be nil.
func NewManager(device Device, levels LevelTable, interval time.Duration, log *slog.Logger, metrics *status.Metrics) *Manager {
	return &Manager{
		device:   device,
		levels:   levels,
		interval: interval,
		log:      log,
		metrics:  metrics,
	}
}

// Run drives the loop until ctx is cancelled or the device fails. On
// cancellation the current fan speed is asserted one last time so the
// hardware is left in the commanded state, not mid-handshake.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.tick(); err != nil {
		return err
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("stopping fan manager")
			if err := m.device.SetFanSpeed(m.levels[m.currentLevel()].FanSpeed); err != nil {
				m.log.Error("final fan-speed flush failed", "error", err)
			}
			return nil
		case <-ticker.C:
			if err := m.tick(); err != nil {
				return err
			}
		}
	}
}

// tick performs one read → step → set pass.
func (m *Manager) tick() error {
	start := time.Now()
	temp, err := m.device.ReadTemperature()
	if err != nil {
		return m.fail(err)
	}
	m.metrics.ObserveRead(time.Since(start))

	m.mutex.Lock()
	prev := m.level
	next, speed := m.levels.step(prev, temp)
	m.level = next
	m.last = status.Snapshot{
		Temperature: temp,
		Level:       next,
		FanSpeed:    speed,
		UpdatedAt:   time.Now(),
	}
	m.mutex.Unlock()

	m.log.Info("temperature", "temp", temp, "level", next, "fan_speed", speed)
	switch {
	case next < prev:
		m.log.Info("leaving level, temperature below its floor",
			"level", prev, "below", m.levels[prev].Leave, "new_fan_speed", speed)
	case next > prev:
		m.log.Info("leaving level, temperature above the next entry point",
			"level", prev, "above", m.levels[next].Enter, "new_fan_speed", speed)
	default:
		args := make([]any, 0, 4)
		if next > 0 {
			args = append(args, "lower_bound", m.levels[next].Leave)
		}
		if next < len(m.levels)-1 {
			args = append(args, "upper_bound", m.levels[next+1].Enter)
		}
		m.log.Debug("holding level", args...)
	}

	// always re-send the speed: the EC or something else kicks back
	// in on its own every now and then and overrides the fan state
	if err := m.device.SetFanSpeed(speed); err != nil {
		return m.fail(err)
	}

	m.metrics.ObserveTick(temp, next, speed)
	return nil
}

// fail counts protocol timeouts before handing the error up.
func (m *Manager) fail(err error) error {
	if errors.Is(err, ec.ErrTimeout) {
		m.metrics.ObserveTimeout()
	}
	return err
}

// Snapshot return the last observation for the status endpoints.
func (m *Manager) Snapshot() status.Snapshot {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.last
}

func (m *Manager) currentLevel() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.level
}
