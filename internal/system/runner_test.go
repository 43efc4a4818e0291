package system

import (
	"testing"
	"time"
)

type recordingSystem struct {
	phase Phase
	order *[]Phase
	ticks int
}

func (s *recordingSystem) Phase() Phase { return s.phase }

func (s *recordingSystem) Update(time.Duration) {
	s.ticks++
	*s.order = append(*s.order, s.phase)
}

func TestRunnerExecutesInPhaseOrder(t *testing.T) {
	var order []Phase
	r := NewRunner()
	// Registered out of order on purpose.
	r.Register(&recordingSystem{phase: PhaseReset, order: &order})
	r.Register(&recordingSystem{phase: PhaseIngest, order: &order})
	r.Register(&recordingSystem{phase: PhaseExpire, order: &order})
	r.Register(&recordingSystem{phase: PhaseUpdate, order: &order})

	r.Tick(time.Second)

	want := []Phase{PhaseIngest, PhaseUpdate, PhaseExpire, PhaseReset}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRunnerTicksEverySystem(t *testing.T) {
	var order []Phase
	a := &recordingSystem{phase: PhaseIngest, order: &order}
	b := &recordingSystem{phase: PhaseIngest, order: &order}
	r := NewRunner()
	r.Register(a)
	r.Register(b)

	for i := 0; i < 3; i++ {
		r.Tick(time.Second)
	}
	if a.ticks != 3 || b.ticks != 3 {
		t.Fatalf("ticks = %d / %d, want 3 each", a.ticks, b.ticks)
	}
}
