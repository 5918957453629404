package main

// TempSource reads the instantaneous temperature.
type TempSource interface {
	ReadTemperature() (uint8, error)
}

// FanControl drives the fan with a raw speed code.
type FanControl interface {
	SetFanSpeed(code uint8) error
}

// Device is the slice of the EC the manager needs.
type Device interface {
	TempSource
	FanControl
}
