package system

import (
	"sort"
	"time"
)

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseIngest  Phase = iota // 0: refresh external state (telemetry)
	PhaseUpdate               // 1: enforcement sweeps
	PhaseExpire               // 2: time-driven releases
	PhaseReset                // 3: global reset boundary
)

// System is the interface every periodic system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

// Runner executes systems in phase order each tick.
type Runner struct {
	systems []System
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{systems: make([]System, 0, 8)}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Tick(dt time.Duration) {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
	for _, s := range r.systems {
		s.Update(dt)
	}
}
