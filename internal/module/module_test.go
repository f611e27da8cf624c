package module

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iocgo/internal/hal"
)

func TestNoiseStaysWithinBoundsAndEmitsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, ok := Lookup("noise")
	require.True(t, ok)

	io, err := b.Build(ctx, NoiseConfig{Min: -1, Max: 1, PeriodMs: 10}, Deps{})
	require.NoError(t, err)

	v := io.Inputs["value"].Float.Latest()
	assert.GreaterOrEqual(t, v, -1.0)
	assert.LessOrEqual(t, v, 1.0)

	sub := io.Inputs["value"].Float.Source()
	defer sub.Close()
	select {
	case v := <-sub.Updates:
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	case <-time.After(2 * time.Second):
		t.Fatal("noise never ticked")
	}
}

func TestNoiseRejectsInvertedRange(t *testing.T) {
	b, _ := Lookup("noise")
	_, err := b.Build(context.Background(), NoiseConfig{Min: 5, Max: 1, PeriodMs: 10}, Deps{})
	assert.Error(t, err)
}

func TestGPIOOutputDrivesPinOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pins := hal.NewSimPinFactory()
	b, ok := Lookup("gpio")
	require.True(t, ok)

	io, err := b.Build(ctx, GPIOConfig{Pin: 3, Mode: "output", Initial: false}, Deps{Pins: pins})
	require.NoError(t, err)

	pin, _ := pins.ByNumber(3)
	io.Outputs["value"].Bool.Send(true)

	require.Eventually(t, func() bool { return pin.Get() }, 2*time.Second, 5*time.Millisecond)
}

func TestGPIOInputPollsPinLevel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pins := hal.NewSimPinFactory()
	pin, _ := pins.ByNumber(4)

	b, ok := Lookup("gpio")
	require.True(t, ok)
	io, err := b.Build(ctx, GPIOConfig{Pin: 4, Mode: "input", PollMs: 5}, Deps{Pins: pins})
	require.NoError(t, err)

	sub := io.Inputs["value"].Bool.Source()
	defer sub.Close()

	pin.Set(true)
	require.Eventually(t, func() bool { return io.Inputs["value"].Bool.Latest() }, 2*time.Second, 5*time.Millisecond)
}

func TestServoRampsTowardTarget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pwms := hal.NewSimPWMFactory()
	b, ok := Lookup("servo")
	require.True(t, ok)

	io, err := b.Build(ctx, ServoConfig{Pin: "servo0", RampMs: 20, Steps: 4, Initial: 0}, Deps{PWM: pwms})
	require.NoError(t, err)

	io.Outputs["value"].Float.Send(1.0)

	require.Eventually(t, func() bool { return pwms.Duty("servo0") == 1.0 }, 2*time.Second, 5*time.Millisecond)
}

func TestPWMChipWritesChannelRegisters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	i2c := hal.NewSimI2CFactory()
	b, ok := Lookup("pwmchip")
	require.True(t, ok)

	io, err := b.Build(ctx, PWMChipConfig{
		Bus:      "i2c0",
		Addr:     0x40,
		Channels: map[string]int{"m0": 0, "m1": 3},
	}, Deps{I2C: i2c})
	require.NoError(t, err)

	io.Outputs["m0"].Float.Send(0.5)

	bus := i2c.Bus("i2c0")
	require.Eventually(t, func() bool {
		reg := bus.Reg(0x40, pca9685Led0OnL)
		// on=0, off=0x800 (half of the 12-bit cycle), little-endian.
		return len(reg) == 4 && reg[2] == 0x00 && reg[3] == 0x08
	}, 2*time.Second, 5*time.Millisecond)

	// m1 (channel 3) lives twelve registers further along, four per
	// channel, and is untouched so far beyond its zero initialization.
	require.Eventually(t, func() bool {
		return len(bus.Reg(0x40, pca9685Led0OnL+4*3)) == 4
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPWMChipRejectsOutOfRangeChannel(t *testing.T) {
	b, _ := Lookup("pwmchip")
	_, err := b.Build(context.Background(), PWMChipConfig{
		Bus:      "i2c0",
		Channels: map[string]int{"x": 16},
	}, Deps{I2C: hal.NewSimI2CFactory()})
	assert.Error(t, err)
}
