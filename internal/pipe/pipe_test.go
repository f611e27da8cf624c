package pipe

import (
	"context"
	"testing"
	"time"

	"iocgo/internal/port"
)

const testTimeout = 2 * time.Second

// A pipe forwards the initial value immediately and always ends on the
// upstream's last published value, coalescing permitted.
func TestPipeForwardsLatestValue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := port.NewChannel(1.0, false)
	out := port.NewChannel(0.0, false)

	done := Run[float64](ctx, in, out)

	outSub := out.Source()
	defer outSub.Close()

	// Initial forward.
	select {
	case v := <-outSub.Updates:
		if v != 1.0 {
			t.Fatalf("initial forward = %v, want 1.0", v)
		}
	case <-time.After(testTimeout):
		t.Fatal("timed out on initial forward")
	}

	in.Publish(2.0)
	in.Publish(3.0)

	var last float64
	for i := 0; i < 2; i++ {
		select {
		case last = <-outSub.Updates:
		case <-time.After(testTimeout):
			t.Fatal("timed out waiting for forwarded update")
		}
		if last == 3.0 {
			break
		}
	}
	if last != 3.0 {
		t.Fatalf("last forwarded = %v, want 3.0", last)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("pipe did not exit after cancellation")
	}
}

func TestPipeExitsWhenInputCloses(t *testing.T) {
	ctx := context.Background()
	in := port.NewChannel(0.0, false)
	out := port.NewChannel(0.0, false)

	done := Run[float64](ctx, in, out)
	in.Close()

	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("pipe did not exit after input closed")
	}
}
