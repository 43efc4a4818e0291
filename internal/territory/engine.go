// Package territory owns all claim state: the registry, the per-cycle
// claim history, intrusion warning records, the occupancy tracker and
// the cached player snapshot. One mutex serializes every mutation, so
// concurrent chat events and the periodic sweeps cannot race on the
// same POI. Gateway I/O always happens outside the lock.
package territory

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poiwarden/server/internal/config"
	"github.com/poiwarden/server/internal/data"
	"github.com/poiwarden/server/internal/geo"
)

type warnKey struct {
	identity string
	poiID    string
}

// Engine is the territory engine: the single owner of claim state,
// constructed once per process.
type Engine struct {
	catalog *data.POITable
	cfg     config.ClaimsConfig
	gw      Gateway
	links   LinkStore
	policy  ClaimPolicy // optional
	log     *zap.Logger

	now func() time.Time // swapped in tests

	mu        sync.Mutex
	claims    map[string]*Claim                  // poiID → live claim
	history   map[string]map[string]struct{}     // poiID → identities this cycle
	warnings  map[warnKey]time.Time              // last intrusion warning
	inside    map[string]map[string]struct{}     // poiID → tracked members in kick radius
	snapshot  []Player
	nextReset time.Time
}

// New builds the engine. policy may be nil.
func New(catalog *data.POITable, cfg config.ClaimsConfig, gw Gateway, links LinkStore, policy ClaimPolicy, log *zap.Logger) *Engine {
	e := &Engine{
		catalog:  catalog,
		cfg:      cfg,
		gw:       gw,
		links:    links,
		policy:   policy,
		log:      log,
		now:      time.Now,
		claims:   make(map[string]*Claim),
		history:  make(map[string]map[string]struct{}),
		warnings: make(map[warnKey]time.Time),
		inside:   make(map[string]map[string]struct{}),
	}
	e.nextReset = nextResetAfter(e.now(), cfg.ResetBlockHours, cfg.ResetOffset)
	return e
}

// ClaimResult reports a successful claim.
type ClaimResult struct {
	Claim *Claim
	// Enrolled lists display names of players auto-added to the group
	// (claimant excluded).
	Enrolled []string
	// Unverified is set when the claim went through on the fail-open
	// path because the claimant's position could not be checked.
	Unverified bool
}

// Claim attempts to claim a POI for the given player. On success the
// claimant becomes owner and sole initial member, then every other
// snapshot player inside the claim radius is enrolled; all of them are
// recorded in the claim history.
func (e *Engine) Claim(identity, display, poiID string) (*ClaimResult, error) {
	poi := e.catalog.Get(poiID)
	if poi == nil {
		return nil, ErrUnknownPOI
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()

	if live, ok := e.claims[poi.ID]; ok {
		return nil, &AlreadyClaimedError{
			OwnerDisplay: live.OwnerDisplay,
			Elapsed:      now.Sub(live.CreatedAt),
		}
	}

	hist := e.history[poi.ID]
	if hist == nil {
		hist = make(map[string]struct{})
		e.history[poi.ID] = hist
	}
	if _, seen := hist[identity]; seen {
		return nil, ErrAlreadyClaimedThisCycle
	}

	res := &ClaimResult{}
	if !poi.Dynamic {
		if err := e.verifyProximityLocked(identity, poi, res); err != nil {
			return nil, err
		}
	}

	if e.policy != nil {
		allow, reason := e.policy.CanClaim(PolicyContext{
			Identity: identity,
			Display:  display,
			POIID:    poi.ID,
			Dynamic:  poi.Dynamic,
		})
		if !allow {
			return nil, &PolicyDeniedError{Reason: reason}
		}
	}

	claim := &Claim{
		ID:           uuid.NewString(),
		POIID:        poi.ID,
		Owner:        identity,
		OwnerDisplay: display,
		CreatedAt:    now,
		Members:      []Member{{Identity: identity, Display: display, JoinedAt: now}},
	}
	e.claims[poi.ID] = claim
	hist[identity] = struct{}{}

	// Auto-enrol everyone already inside the claim radius. Idempotent:
	// players with a roster entry are skipped. POIs without a fixed
	// position have nobody to enrol.
	if poi.HasGeometry() {
		center := poi.Position.Planar()
		for _, p := range e.snapshot {
			if claim.hasMember(p.Identity) {
				continue
			}
			if geo.Distance(p.Pos, center) > poi.ClaimRadius {
				continue
			}
			claim.Members = append(claim.Members, Member{
				Identity: p.Identity,
				Display:  p.Display,
				JoinedAt: now,
			})
			hist[p.Identity] = struct{}{}
			res.Enrolled = append(res.Enrolled, p.Display)
		}
	}

	res.Claim = claim
	e.log.Info("poi claimed",
		zap.String("poi", poi.ID),
		zap.String("owner", display),
		zap.Int("group", len(claim.Members)),
	)
	return res, nil
}

// verifyProximityLocked checks the claimant against the claim radius
// using the cached snapshot. When the position is unverifiable the
// configured policy decides: fail open (allow) or reject.
func (e *Engine) verifyProximityLocked(identity string, poi *data.POI, res *ClaimResult) error {
	for _, p := range e.snapshot {
		if p.Identity != identity {
			continue
		}
		dist := geo.Distance(p.Pos, poi.Position.Planar())
		if dist > poi.ClaimRadius {
			return &TooFarError{Distance: dist, Radius: poi.ClaimRadius}
		}
		return nil
	}
	if e.cfg.FailOpenUnverified {
		res.Unverified = true
		e.log.Warn("claimant position unverifiable, allowing claim",
			zap.String("player", identity),
			zap.String("poi", poi.ID),
		)
		return nil
	}
	return ErrPositionUnknown
}

// Cancel destroys a claim at the owner's request. Members cannot
// cancel. The claim history is untouched; history entries outlive the
// claim.
func (e *Engine) Cancel(identity, poiID string) error {
	poi := e.catalog.Get(poiID)
	if poi == nil {
		return ErrUnknownPOI
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	claim, ok := e.claims[poi.ID]
	if !ok {
		return ErrNotClaimed
	}
	if claim.Owner != identity {
		return &NotOwnerError{OwnerDisplay: claim.OwnerDisplay}
	}
	e.dropClaimLocked(poi.ID)
	e.log.Info("claim cancelled", zap.String("poi", poi.ID), zap.String("owner", identity))
	return nil
}

// dropClaimLocked removes a claim and its occupancy tracking. The
// ReleaseAt handle dies with the claim, so no release can fire for
// state that is already gone.
func (e *Engine) dropClaimLocked(poiID string) {
	delete(e.claims, poiID)
	delete(e.inside, poiID)
}

// QueryResult answers "check <poi>".
type QueryResult struct {
	Claimed      bool
	OwnerDisplay string
	Elapsed      time.Duration
}

// Query reports whether a POI is free or claimed, and by whom.
func (e *Engine) Query(poiID string) (QueryResult, error) {
	poi := e.catalog.Get(poiID)
	if poi == nil {
		return QueryResult{}, ErrUnknownPOI
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	claim, ok := e.claims[poi.ID]
	if !ok {
		return QueryResult{}, nil
	}
	return QueryResult{
		Claimed:      true,
		OwnerDisplay: claim.OwnerDisplay,
		Elapsed:      e.now().Sub(claim.CreatedAt),
	}, nil
}

// Available lists catalog POIs with no live claim, minus the
// configured exclusions, in catalog order.
func (e *Engine) Available() []*data.POI {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*data.POI
	for _, poi := range e.catalog.All() {
		if _, claimed := e.claims[poi.ID]; claimed {
			continue
		}
		if e.isExcluded(poi.ID) {
			continue
		}
		out = append(out, poi)
	}
	return out
}

func (e *Engine) isExcluded(poiID string) bool {
	for _, x := range e.cfg.ExcludedPOIs {
		if x == poiID {
			return true
		}
	}
	return false
}

// RecordSnapshot replaces the player snapshot wholesale. Callers keep
// the previous snapshot on fetch failure by simply not calling this.
func (e *Engine) RecordSnapshot(players []Player) {
	e.mu.Lock()
	e.snapshot = players
	e.mu.Unlock()
}

// Snapshot returns the current snapshot slice. Callers must not mutate.
func (e *Engine) Snapshot() []Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}
