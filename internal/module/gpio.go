package module

import (
	"context"
	"fmt"
	"time"

	"iocgo/internal/hal"
	"iocgo/internal/port"
	"iocgo/internal/timeutil"
)

// GPIOConfig is the digital-bool port adapter over a single pin. "input" mode
// publishes a Bool Input tracking the pin level (edge-triggered via
// hal.IRQPin when the factory supports it, polled at poll_ms otherwise);
// "output" mode accepts a Bool Output and drives the pin on every change.
type GPIOConfig struct {
	Pin     int    `yaml:"pin"`
	Mode    string `yaml:"mode"` // "input" | "output"
	Pull    string `yaml:"pull"` // "none" | "up" | "down"
	Initial bool   `yaml:"initial"`
	PollMs  int64  `yaml:"poll_ms"`
}

type gpioBuilder struct{}

func init() { Register("gpio", gpioBuilder{}) }

func parsePull(s string) hal.Pull {
	switch s {
	case "up":
		return hal.PullUp
	case "down":
		return hal.PullDown
	default:
		return hal.PullNone
	}
}

func (gpioBuilder) Build(ctx context.Context, raw any, deps Deps) (IO, error) {
	cfg, ok := raw.(GPIOConfig)
	if !ok {
		return IO{}, fmt.Errorf("module gpio: unexpected config type %T", raw)
	}
	if deps.Pins == nil {
		return IO{}, fmt.Errorf("module gpio: no pin factory configured")
	}
	pin, ok := deps.Pins.ByNumber(cfg.Pin)
	if !ok {
		return IO{}, fmt.Errorf("module gpio: pin %d not available", cfg.Pin)
	}

	switch cfg.Mode {
	case "output":
		return buildGPIOOutput(ctx, pin, cfg)
	case "input":
		return buildGPIOInput(ctx, pin, cfg)
	default:
		return IO{}, fmt.Errorf("module gpio: unknown mode %q", cfg.Mode)
	}
}

func buildGPIOOutput(ctx context.Context, pin hal.GPIOPin, cfg GPIOConfig) (IO, error) {
	if err := pin.ConfigureOutput(cfg.Initial); err != nil {
		return IO{}, fmt.Errorf("module gpio: configure output: %w", err)
	}
	in := port.NewChannel(cfg.Initial, true) // control path, never drop
	done := make(chan struct{})

	sub := in.Source()
	go func() {
		defer close(done)
		defer sub.Close()
		pin.Set(sub.Start)
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-sub.Updates:
				if !ok {
					return
				}
				pin.Set(v)
			}
		}
	}()

	return IO{
		Outputs: map[string]port.OutputKind{"value": port.WrapBoolOutput(in)},
		Done:    done,
	}, nil
}

func buildGPIOInput(ctx context.Context, pin hal.GPIOPin, cfg GPIOConfig) (IO, error) {
	if err := pin.ConfigureInput(parsePull(cfg.Pull)); err != nil {
		return IO{}, fmt.Errorf("module gpio: configure input: %w", err)
	}
	out := port.NewChannel(pin.Get(), false)
	done := make(chan struct{})

	if irq, ok := pin.(hal.IRQPin); ok {
		if err := irq.SetIRQ(hal.EdgeBoth, func() { out.Publish(pin.Get()) }); err == nil {
			go func() {
				defer close(done)
				<-ctx.Done()
				_ = irq.ClearIRQ()
				out.Close()
			}()
			return IO{
				Inputs: map[string]port.InputKind{"value": port.WrapBoolInput(out)},
				Done:   done,
			}, nil
		}
	}

	poll := cfg.PollMs
	if poll <= 0 {
		poll = 20
	}
	period := time.Duration(poll) * time.Millisecond
	go func() {
		defer close(done)
		timer := time.NewTimer(period)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				out.Close()
				return
			case <-timer.C:
				out.Publish(pin.Get())
				timeutil.ResetTimer(timer, period)
			}
		}
	}()

	return IO{
		Inputs: map[string]port.InputKind{"value": port.WrapBoolInput(out)},
		Done:   done,
	}, nil
}
