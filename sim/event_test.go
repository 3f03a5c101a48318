package sim

import "testing"

// TestLoop_TimestampOrdering verifies invariant 1: events pop in
// non-decreasing timestamp order regardless of insertion order.
func TestLoop_TimestampOrdering(t *testing.T) {
	l := NewLoop()
	var order []SimTime
	l.At(150, func() { order = append(order, 150) })
	l.At(50, func() { order = append(order, 50) })
	l.At(100, func() { order = append(order, 100) })
	l.Run()

	want := []SimTime{50, 100, 150}
	for i, w := range want {
		if order[i] != w {
			t.Errorf("order[%d] = %v, want %v", i, order[i], w)
		}
	}
}

// TestLoop_FIFOTiebreak verifies same-timestamp events run in insertion order.
func TestLoop_FIFOTiebreak(t *testing.T) {
	l := NewLoop()
	var order []int
	l.At(10, func() { order = append(order, 1) })
	l.At(10, func() { order = append(order, 2) })
	l.At(10, func() { order = append(order, 3) })
	l.Run()

	want := []int{1, 2, 3}
	for i, w := range want {
		if order[i] != w {
			t.Errorf("order[%d] = %d, want %d", i, order[i], w)
		}
	}
}

// TestLoop_After verifies After schedules relative to the current Now.
func TestLoop_After(t *testing.T) {
	l := NewLoop()
	l.At(100, func() {
		l.After(5, func() {
			if l.Now != 105 {
				t.Errorf("nested After fired at %v, want 105", l.Now)
			}
		})
	})
	l.Run()
}

// TestLoop_ChainedScheduling verifies callbacks may schedule further events
// that the same Run call picks up (models pseudo-suspension, spec §5).
func TestLoop_ChainedScheduling(t *testing.T) {
	l := NewLoop()
	depth := 0
	var recurse func()
	recurse = func() {
		depth++
		if depth < 5 {
			l.After(1, recurse)
		}
	}
	l.At(0, recurse)
	l.Run()
	if depth != 5 {
		t.Errorf("depth = %d, want 5", depth)
	}
	if l.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", l.Pending())
	}
}
