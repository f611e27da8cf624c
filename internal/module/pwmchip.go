package module

import (
	"context"
	"fmt"
	"sync"

	"iocgo/internal/hal"
	"iocgo/internal/ioclog"
	"iocgo/internal/mathx"
	"iocgo/internal/port"
)

// PWMChipConfig drives a PCA9685-style 16-channel PWM controller on an
// I2C bus. Each named channel is exposed as a Float Output in [0,1]; all
// channels share the one bus transaction path, serialized by a mutex held
// only for the duration of a single register write (one driver owns the
// chip, many graph edges feed it).
type PWMChipConfig struct {
	Bus      string         `yaml:"bus"`
	Addr     uint16         `yaml:"addr"`
	Channels map[string]int `yaml:"channels"`
}

type pwmChipBuilder struct{}

func init() { Register("pwmchip", pwmChipBuilder{}) }

// PCA9685 register layout: four bytes per channel starting at LED0_ON_L,
// 12-bit on/off counts.
const (
	pca9685Mode1    = 0x00
	pca9685Led0OnL  = 0x06
	pca9685FullOff  = 0x1000
	pca9685Channels = 16
)

type pwmChip struct {
	mu   sync.Mutex
	bus  hal.I2C
	addr uint16
}

// setDuty writes one channel's on/off counts. The lock covers exactly one
// register write; it is never held across a channel receive.
func (c *pwmChip) setDuty(channel int, fraction float64) error {
	off := int(fraction * float64(pca9685FullOff))
	if off > pca9685FullOff-1 {
		off = pca9685FullOff - 1
	}
	reg := byte(pca9685Led0OnL + 4*channel)
	buf := []byte{reg, 0x00, 0x00, byte(off & 0xFF), byte(off >> 8)}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bus.Tx(c.addr, buf, nil)
}

func (c *pwmChip) wake() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Clear SLEEP, enable auto-increment.
	return c.bus.Tx(c.addr, []byte{pca9685Mode1, 0x20}, nil)
}

func (pwmChipBuilder) Build(ctx context.Context, raw any, deps Deps) (IO, error) {
	cfg, ok := raw.(PWMChipConfig)
	if !ok {
		return IO{}, fmt.Errorf("module pwmchip: unexpected config type %T", raw)
	}
	if deps.I2C == nil {
		return IO{}, fmt.Errorf("module pwmchip: no I2C bus factory configured")
	}
	if len(cfg.Channels) == 0 {
		return IO{}, fmt.Errorf("module pwmchip: no channels configured")
	}
	bus, ok := deps.I2C.ByID(cfg.Bus)
	if !ok {
		return IO{}, fmt.Errorf("module pwmchip: bus %q not available", cfg.Bus)
	}
	for name, ch := range cfg.Channels {
		if ch < 0 || ch >= pca9685Channels {
			return IO{}, fmt.Errorf("module pwmchip: channel %q index %d out of range", name, ch)
		}
	}

	chip := &pwmChip{bus: bus, addr: cfg.Addr}
	if err := chip.wake(); err != nil {
		return IO{}, fmt.Errorf("module pwmchip: wake: %w", err)
	}

	outputs := make(map[string]port.OutputKind, len(cfg.Channels))
	done := make(chan struct{})
	var wg sync.WaitGroup

	for name, channel := range cfg.Channels {
		in := port.NewChannel(0.0, true) // control path, never drop
		outputs[name] = port.WrapFloatOutput(in)
		sub := in.Source()
		wg.Add(1)
		go func(name string, channel int) {
			defer wg.Done()
			defer sub.Close()
			_ = chip.setDuty(channel, mathx.Clamp(sub.Start, 0, 1))
			for {
				select {
				case <-ctx.Done():
					// Safe value on shutdown.
					_ = chip.setDuty(channel, 0)
					return
				case v, ok := <-sub.Updates:
					if !ok {
						return
					}
					if err := chip.setDuty(channel, mathx.Clamp(v, 0, 1)); err != nil {
						ioclog.For("pwmchip").WithError(err).
							WithField("channel", name).Warn("register write failed")
					}
				}
			}
		}(name, channel)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	return IO{Outputs: outputs, Done: done}, nil
}
