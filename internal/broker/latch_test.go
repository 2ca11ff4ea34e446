package broker

import (
	"testing"
	"time"
)

func TestOfflineLatch(t *testing.T) {
	latch := NewOfflineLatch()

	if latch.Active() {
		t.Error("new latch should be lowered")
	}
	if !latch.Since().IsZero() {
		t.Error("lowered latch should have zero since")
	}

	latch.Set()
	if !latch.Active() {
		t.Error("latch should be raised after Set")
	}
	first := latch.Since()
	if first.IsZero() {
		t.Error("raised latch should record when")
	}

	// A repeated raise keeps the original outage start.
	time.Sleep(5 * time.Millisecond)
	latch.Set()
	if !latch.Since().Equal(first) {
		t.Errorf("Since = %v, want original %v", latch.Since(), first)
	}

	latch.Clear()
	if latch.Active() {
		t.Error("latch should be lowered after Clear")
	}
	if !latch.Since().IsZero() {
		t.Error("cleared latch should reset since")
	}
}
