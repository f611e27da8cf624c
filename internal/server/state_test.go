package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iocgo/internal/port"
)

const testTimeout = 2 * time.Second

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func newTestState(ctx context.Context) *State {
	return NewState(ctx,
		[]InputSpec{
			{Name: "a", Kind: port.KindFloat, Initial: port.FloatValue(0)},
			{Name: "b", Kind: port.KindFloat, Initial: port.FloatValue(0)},
			{Name: "bounded", Kind: port.KindFloat, Initial: port.FloatValue(5), Min: floatPtr(0), Max: floatPtr(10)},
			{Name: "label", Kind: port.KindString, Initial: port.StringValue(""), MaxLength: intPtr(3)},
		},
		[]OutputSpec{
			{Name: "o", Kind: port.KindFloat, Initial: port.FloatValue(0)},
		})
}

func recvUpdate(t *testing.T, sub *port.Subscription[StateUpdate]) StateUpdate {
	t.Helper()
	select {
	case upd := <-sub.Updates:
		return upd
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for state update")
		return StateUpdate{}
	}
}

func assertNoUpdate(t *testing.T, sub *port.Subscription[StateUpdate]) {
	t.Helper()
	select {
	case upd := <-sub.Updates:
		t.Fatalf("unexpected update: %+v", upd)
	case <-time.After(100 * time.Millisecond):
	}
}

// Writing the same value twice publishes exactly once.
func TestStateUpdateCoalesces(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestState(ctx)

	_, sub, release := s.Subscribe(ctx, []string{"a"}, nil)
	defer release()

	s.Update(ctx, map[string]port.Value{"a": port.FloatValue(1)})
	upd := recvUpdate(t, sub)
	assert.Equal(t, 1.0, upd.Inputs["a"].Float)

	s.Update(ctx, map[string]port.Value{"a": port.FloatValue(1)})
	assertNoUpdate(t, sub)
}

// A subscriber's filter is honored for both keys and sides.
func TestStateSubscriptionFiltering(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestState(ctx)

	_, sub, release := s.Subscribe(ctx, []string{"a"}, nil)
	defer release()

	s.Update(ctx, map[string]port.Value{"b": port.FloatValue(7)})
	assertNoUpdate(t, sub)

	// Output changes must not reach an inputs-only subscriber either.
	s.outputs["o"].AsOutputKind().Send(port.FloatValue(3))
	assertNoUpdate(t, sub)

	s.Update(ctx, map[string]port.Value{
		"a": port.FloatValue(2),
		"b": port.FloatValue(9),
	})
	upd := recvUpdate(t, sub)
	assert.Equal(t, 2.0, upd.Inputs["a"].Float)
	_, hasB := upd.Inputs["b"]
	assert.False(t, hasB)
	assert.Empty(t, upd.Outputs)
}

func TestStateFloatClampedToDeclaredRange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestState(ctx)

	s.Update(ctx, map[string]port.Value{"bounded": port.FloatValue(100)})
	assert.Equal(t, 10.0, s.inputs["bounded"].Value().Float)

	s.Update(ctx, map[string]port.Value{"bounded": port.FloatValue(-3)})
	assert.Equal(t, 0.0, s.inputs["bounded"].Value().Float)
}

func TestStateStringTruncatedToMaxLength(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestState(ctx)

	s.Update(ctx, map[string]port.Value{"label": port.StringValue("abcdef")})
	assert.Equal(t, "abc", s.inputs["label"].Value().Str)
}

func TestStateTypeMismatchRejectsOnlyThatKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestState(ctx)

	s.Update(ctx, map[string]port.Value{
		"a":     port.BoolValue(true), // wrong kind, rejected
		"b":     port.FloatValue(4),   // still applied
		"ghost": port.FloatValue(1),   // unknown, ignored
	})
	assert.Equal(t, 0.0, s.inputs["a"].Value().Float)
	assert.Equal(t, 4.0, s.inputs["b"].Value().Float)
}

func TestStateOutputChangesReachSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestState(ctx)

	initial, sub, release := s.Subscribe(ctx, nil, []string{"o"})
	defer release()
	require.Contains(t, initial.Outputs, "o")

	s.outputs["o"].AsOutputKind().Send(port.FloatValue(42))
	upd := recvUpdate(t, sub)
	assert.Equal(t, 42.0, upd.Outputs["o"].Float)
}

// Identical (inputs, outputs) subscription keys share one broadcast
// channel; releasing one subscriber must not tear the other down.
func TestStateSubscriptionDedup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestState(ctx)

	_, sub1, release1 := s.Subscribe(ctx, []string{"a"}, nil)
	_, sub2, release2 := s.Subscribe(ctx, []string{"a"}, nil)
	defer release2()

	s.Update(ctx, map[string]port.Value{"a": port.FloatValue(1)})
	assert.Equal(t, 1.0, recvUpdate(t, sub1).Inputs["a"].Float)
	assert.Equal(t, 1.0, recvUpdate(t, sub2).Inputs["a"].Float)

	release1()
	s.Update(ctx, map[string]port.Value{"a": port.FloatValue(2)})
	assert.Equal(t, 2.0, recvUpdate(t, sub2).Inputs["a"].Float)
}

// Subscribe's initial snapshot is the filtered subset, not the full state.
func TestStateInitialSnapshotIsFiltered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestState(ctx)

	initial, _, release := s.Subscribe(ctx, []string{"a"}, nil)
	defer release()

	assert.Contains(t, initial.Inputs, "a")
	assert.NotContains(t, initial.Inputs, "b")
	assert.Empty(t, initial.Outputs)
}
