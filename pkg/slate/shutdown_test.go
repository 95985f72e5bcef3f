package slate

import "testing"

func TestShutdownHandlersDrainLIFO(t *testing.T) {
	withEngine(t)

	var order []string
	a := func() { order = append(order, "A") }
	b := func() { order = append(order, "B") }
	c := func() { order = append(order, "C") }
	AddShutdownHandler(a)
	AddShutdownHandler(b)
	AddShutdownHandler(c)

	Shutdown()
	if len(order) != 3 || order[0] != "C" || order[1] != "B" || order[2] != "A" {
		t.Fatalf("drain order = %v, want [C B A]", order)
	}
}

func TestRemoveShutdownHandlerRemovesLastOccurrence(t *testing.T) {
	withEngine(t)

	calls := 0
	h := func() { calls++ }
	AddShutdownHandler(h)
	AddShutdownHandler(h)
	RemoveShutdownHandler(h)

	// Removing an unregistered handler is a no-op.
	RemoveShutdownHandler(func() {})

	Shutdown()
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestPanickingHandlerDoesNotAbortDrain(t *testing.T) {
	withEngine(t)

	survived := false
	AddShutdownHandler(func() { survived = true })
	AddShutdownHandler(func() { panic("teardown failure") })

	Shutdown()
	if !survived {
		t.Fatal("drain stopped at panicking handler")
	}
	if IsInitialized() {
		t.Fatal("engine still running after shutdown with failing handler")
	}
}
