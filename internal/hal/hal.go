// Package hal carries the hardware-adapter interfaces the graph's
// external collaborators (I2C device drivers, GPIO, PWM/servo outputs)
// are built against. The core runtime only needs these shapes, not any
// concrete driver; tinygo.org/x/drivers supplies the I2C type so real
// driver implementations drop in unchanged.
package hal

import (
	"tinygo.org/x/drivers"
)

// I2C is the subset of tinygo.org/x/drivers.I2C the core depends on.
type I2C interface {
	Tx(addr uint16, w, r []byte) error
}

// I2CBusFactory injects a configured I2C bus instance by id, so a device
// module's config can reference "i2c0" etc. without the graph builder
// knowing about board wiring.
type I2CBusFactory interface {
	ByID(id string) (drivers.I2C, bool)
}

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// GPIOPin is the minimal digital pin contract a gpio module adapts to a
// Bool port.
type GPIOPin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Number() int
}

type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// IRQPin extends GPIOPin with edge-triggered interrupts, used by the gpio
// module's digital input when it should publish on edges rather than poll.
type IRQPin interface {
	GPIOPin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// PinFactory supplies GPIO pins by the configured numbering scheme.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}

// PWMPin is the duty-cycle sink a servo/pwm module drives.
type PWMPin interface {
	SetDuty(fraction float64) error // fraction in [0,1]
}

// PWMFactory supplies PWM-capable pins by name.
type PWMFactory interface {
	ByName(name string) (PWMPin, bool)
}
