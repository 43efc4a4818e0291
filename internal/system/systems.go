// The periodic systems drive the engine on independent cadences. Each
// runs its I/O in a guarded goroutine so a slow gateway call delays
// only its own next cycle, never the runner's tick.
package system

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/poiwarden/server/internal/territory"
)

// PlayerSource is the telemetry side of the gateway.
type PlayerSource interface {
	FetchOnlinePlayers(ctx context.Context) ([]territory.Player, error)
}

// SnapshotSystem refreshes the cached player snapshot. On fetch
// failure the previous snapshot is kept, not cleared.
type SnapshotSystem struct {
	engine   *territory.Engine
	source   PlayerSource
	interval time.Duration
	log      *zap.Logger

	acc      time.Duration
	inFlight atomic.Bool
}

func NewSnapshotSystem(e *territory.Engine, src PlayerSource, interval time.Duration, log *zap.Logger) *SnapshotSystem {
	return &SnapshotSystem{engine: e, source: src, interval: interval, log: log}
}

func (s *SnapshotSystem) Phase() Phase { return PhaseIngest }

func (s *SnapshotSystem) Update(dt time.Duration) {
	s.acc += dt
	if s.acc < s.interval {
		return
	}
	s.acc = 0
	if !s.inFlight.CompareAndSwap(false, true) {
		return // previous fetch still running
	}
	go func() {
		defer s.inFlight.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		players, err := s.source.FetchOnlinePlayers(ctx)
		if err != nil {
			s.log.Warn("telemetry refresh failed, keeping stale snapshot", zap.Error(err))
			return
		}
		s.engine.RecordSnapshot(players)
	}()
}

// ProximitySystem runs the intrusion/enforcement sweep.
type ProximitySystem struct {
	engine   *territory.Engine
	interval time.Duration

	acc      time.Duration
	inFlight atomic.Bool
}

func NewProximitySystem(e *territory.Engine, interval time.Duration) *ProximitySystem {
	return &ProximitySystem{engine: e, interval: interval}
}

func (s *ProximitySystem) Phase() Phase { return PhaseUpdate }

func (s *ProximitySystem) Update(dt time.Duration) {
	s.acc += dt
	if s.acc < s.interval {
		return
	}
	s.acc = 0
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.inFlight.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		s.engine.SweepProximity(ctx)
	}()
}

// ExpirySystem runs the absolute timeout, occupancy release and member
// expiry sweep.
type ExpirySystem struct {
	engine   *territory.Engine
	interval time.Duration

	acc      time.Duration
	inFlight atomic.Bool
}

func NewExpirySystem(e *territory.Engine, interval time.Duration) *ExpirySystem {
	return &ExpirySystem{engine: e, interval: interval}
}

func (s *ExpirySystem) Phase() Phase { return PhaseExpire }

func (s *ExpirySystem) Update(dt time.Duration) {
	s.acc += dt
	if s.acc < s.interval {
		return
	}
	s.acc = 0
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.inFlight.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		s.engine.SweepExpiry(ctx)
	}()
}

// ResetSystem checks the global reset boundary every tick.
type ResetSystem struct {
	engine   *territory.Engine
	inFlight atomic.Bool
}

func NewResetSystem(e *territory.Engine) *ResetSystem {
	return &ResetSystem{engine: e}
}

func (s *ResetSystem) Phase() Phase { return PhaseReset }

func (s *ResetSystem) Update(time.Duration) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.inFlight.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.engine.CheckReset(ctx)
	}()
}
