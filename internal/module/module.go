// Package module implements the named bundles of Inputs/Outputs exposed
// by modules: Noise, GPIO, Servo, Camera, PWM chip, and (wired in from
// package server) the state-server module. Each module registers a
// Builder under a config-file type tag.
package module

import (
	"context"
	"fmt"
	"sync"

	"iocgo/internal/hal"
	"iocgo/internal/port"
)

// Deps bundles the hardware-adapter factories a module may need. All are
// optional; a module that does not touch hardware (Noise, Server) ignores
// them entirely.
type Deps struct {
	I2C  hal.I2CBusFactory
	Pins hal.PinFactory
	PWM  hal.PWMFactory
}

// IO is the product a module build returns: its published Inputs and the
// Outputs it accepts, plus a Done channel the supervisor joins on.
type IO struct {
	Inputs  map[string]port.InputKind
	Outputs map[string]port.OutputKind
	Done    <-chan struct{}
}

// Builder constructs one module instance from its raw (not yet
// type-asserted) configuration block.
type Builder interface {
	Build(ctx context.Context, raw any, deps Deps) (IO, error)
}

var (
	mu       sync.RWMutex
	builders = map[string]Builder{}
)

// Register associates a module type tag (the config file's discriminant)
// with its Builder. Panics on a duplicate registration: that is a
// programming error, not a runtime one.
func Register(typeTag string, b Builder) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := builders[typeTag]; exists {
		panic(fmt.Sprintf("module builder already registered for type %q", typeTag))
	}
	builders[typeTag] = b
}

func Lookup(typeTag string) (Builder, bool) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := builders[typeTag]
	return b, ok
}
