package main

import "fmt"

// Level is one hysteresis band of the fan table.
//
// Enter is the temperature above which the next level is entered from
// this one; Leave is the temperature below which this level is
// abandoned for the previous one. Enter must be >= Leave, and the
// bands of adjacent levels overlap so that a temperature hovering
// around a single threshold does not bounce the fan between speeds.
type Level struct {
	Enter    uint8 `yaml:"enter"`
	Leave    uint8 `yaml:"leave"`
	FanSpeed uint8 `yaml:"fan_speed"`
}

// LevelTable is an ordered sequence of levels, index 0 the coolest.
type LevelTable []Level

// The fan-speed code is not a linear scale:
//
//   - 0: off;
//   - 1-100: variable speed, lower code = faster fan (1 is the
//     fastest, 100 the slowest);
//   - 101-255: a single maximum speed, faster than code 1.
//
// defaultLevels is tuned for a 4th-batch X62 board with the 1210
// BIOS. A bottom level with speed 80 instead of off would be nicer,
// but that speed produces an annoying whine on this fan.
//
// TODO: feed step with a moving average instead of the instant
// sample; the overlapping bands soften the switching but do not
// remove it.
var defaultLevels = LevelTable{
	{Enter: 40, Leave: 0, FanSpeed: 100},
	{Enter: 55, Leave: 40, FanSpeed: 99},
	{Enter: 65, Leave: 45, FanSpeed: 60},
	{Enter: 70, Leave: 55, FanSpeed: 20},
	{Enter: 85, Leave: 60, FanSpeed: 1},
}

// step walks the table by at most one level per call: down when the
// sample drops strictly below the current band, up when it rises
// strictly above the next band's entry point. Equality never moves,
// and a big spike climbs one level per tick rather than jumping.
func (lt LevelTable) step(current int, sample uint8) (next int, fanSpeed uint8) {
	next = current
	if current > 0 && sample < lt[current].Leave {
		next = current - 1
	} else if current < len(lt)-1 && sample > lt[current+1].Enter {
		next = current + 1
	}
	return next, lt[next].FanSpeed
}

// validate rejects tables whose thresholds would make the walk jam or
// oscillate. Run once at load time; step itself trusts the table.
func (lt LevelTable) validate() error {
	if len(lt) == 0 {
		return fmt.Errorf("level table is empty")
	}
	for i, l := range lt {
		if l.Enter < l.Leave {
			return fmt.Errorf("level %d: enter (%d) below leave (%d)", i, l.Enter, l.Leave)
		}
		if i == 0 {
			continue
		}
		if l.Enter <= lt[i-1].Enter {
			return fmt.Errorf("level %d: enter (%d) not above the previous level's (%d)", i, l.Enter, lt[i-1].Enter)
		}
		if l.Leave < lt[i-1].Leave {
			return fmt.Errorf("level %d: leave (%d) below the previous level's (%d)", i, l.Leave, lt[i-1].Leave)
		}
		if speedRank(l.FanSpeed) < speedRank(lt[i-1].FanSpeed) {
			return fmt.Errorf("level %d: fan speed %d is slower than the previous level's %d", i, l.FanSpeed, lt[i-1].FanSpeed)
		}
	}
	return nil
}

// speedRank orders fan-speed codes by airflow so they can be
// compared: 0 for off, 101-code for the variable band, 101 for the
// boost range, which beats every variable speed including code 1.
func speedRank(code uint8) int {
	switch {
	case code == 0:
		return 0
	case code <= 100:
		return 101 - int(code)
	default:
		return 101
	}
}

// describeSpeed renders a fan-speed code for humans.
func describeSpeed(code uint8) string {
	switch {
	case code == 0:
		return "off"
	case code <= 100:
		return "variable band, lower is faster"
	default:
		return "maximum"
	}
}
