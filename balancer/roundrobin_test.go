package balancer

import "testing"

func TestRoundRobinCyclesInOrder(t *testing.T) {
	rr := NewRoundRobin()
	rr.Init(3, nil)

	tried := make([]bool, 3)
	var order []int
	for i := 0; i < 3; i++ {
		idx := rr.Select(tried, nil)
		tried[idx] = true
		order = append(order, idx)
	}

	want := []int{0, 1, 2}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("expected selection order %v, got %v", want, order)
		}
	}
}

func TestRoundRobinSkipsTried(t *testing.T) {
	rr := NewRoundRobin()
	rr.Init(3, nil)

	tried := []bool{false, true, false}
	idx := rr.Select(tried, nil)
	if idx != 0 {
		t.Fatalf("expected index 0 (cursor starts there), got %d", idx)
	}
	tried[0] = true
	idx = rr.Select(tried, nil)
	if idx != 2 {
		t.Fatalf("expected index 2 (1 is tried), got %d", idx)
	}
}

func TestRoundRobinPanicsWhenAllTried(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Select to panic when every target is already tried")
		}
	}()
	rr := NewRoundRobin()
	rr.Init(2, nil)
	rr.Select([]bool{true, true}, nil)
}

func TestRoundRobinInitResetsCursor(t *testing.T) {
	rr := NewRoundRobin()
	rr.Init(2, nil)
	rr.Select([]bool{false, false}, nil) // cursor now at 1
	rr.Init(2, nil)                      // re-init resets the cursor
	idx := rr.Select([]bool{false, false}, nil)
	if idx != 0 {
		t.Fatalf("expected Init to reset the cursor to 0, got %d", idx)
	}
}
