package transform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDProportionalResponse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lookup := floatNamespace(map[string]float64{
		"sp": 10, "pv": 0, "kp": 2, "ki": 0, "kd": 0,
	})
	cfg := PIDConfig{SetPoint: "sp", ProcessVar: "pv", P: "kp", I: "ki", D: "kd", PeriodMs: 10}
	outs, _, err := cfg.Build(ctx, lookup)
	require.NoError(t, err)

	// The start value is the pure proportional response; later ticks add
	// an integral term but the very first latest value is p*err.
	assert.InDelta(t, 20.0, outs["value"].Float.Latest(), 1e-9)

	sub := outs["value"].Float.Source()
	defer sub.Close()

	select {
	case v := <-sub.Updates:
		// err stays 10, so the output is 20 plus the accumulated
		// integral (ki == 0 here, so still exactly 20).
		assert.InDelta(t, 20.0, v, 1e-9)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for first PID tick")
	}
}

func TestPIDZeroErrorEmitsZero(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lookup := floatNamespace(map[string]float64{
		"sp": 5, "pv": 5, "kp": 1, "ki": 1, "kd": 1,
	})
	cfg := PIDConfig{SetPoint: "sp", ProcessVar: "pv", P: "kp", I: "ki", D: "kd", PeriodMs: 10}
	outs, _, err := cfg.Build(ctx, lookup)
	require.NoError(t, err)

	sub := outs["value"].Float.Source()
	defer sub.Close()

	select {
	case v := <-sub.Updates:
		assert.InDelta(t, 0.0, v, 1e-9)
	case <-time.After(testTimeout):
		t.Fatal("timed out")
	}
}

func TestPIDNeedsAllFiveInputs(t *testing.T) {
	cfg := PIDConfig{SetPoint: "a", ProcessVar: "b", P: "c", I: "d", D: "e", PeriodMs: 10}
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, cfg.NeedsInputs())

	lookup := floatNamespace(map[string]float64{"a": 0, "b": 0, "c": 0, "d": 0})
	_, _, err := cfg.Build(context.Background(), lookup)
	assert.Error(t, err)
}
