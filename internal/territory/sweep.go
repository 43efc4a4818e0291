package territory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/poiwarden/server/internal/geo"
)

type relocation struct {
	identity string
	display  string
	poiID    string
	steam64  string // may be empty, resolved via link store afterwards
	target   geo.Position
}

// SweepProximity runs one enforcement pass over every (player, POI)
// pair in the snapshot: occupancy tracking for members, throttled
// warnings for intruders, forced relocation out of the kick radius.
// All decisions are made under the lock; gateway and link-store I/O
// happens afterwards so a slow call never stalls claim handling.
func (e *Engine) SweepProximity(ctx context.Context) {
	var messages []string
	var kicks []relocation

	e.mu.Lock()
	now := e.now()
	for _, poi := range e.catalog.All() {
		if !poi.HasGeometry() {
			continue
		}
		claim := e.claims[poi.ID]
		center := poi.Position.Planar()

		// Rebuilt from scratch each sweep: a member who logged out is
		// no longer inside.
		var insideNow map[string]struct{}
		if claim != nil {
			insideNow = make(map[string]struct{})
		}

		for i := range e.snapshot {
			p := &e.snapshot[i]
			dist := geo.Distance(p.Pos, center)
			zone := geo.Classify(dist, poi.ClaimRadius, poi.IntrusionRadius, poi.KickRadius)

			if claim != nil && claim.hasMember(p.Identity) {
				if zone == geo.ZoneKick {
					insideNow[p.Identity] = struct{}{}
				}
				continue
			}

			// Non-member (or unclaimed POI) from here on.
			if zone == geo.ZoneIntrusion || zone == geo.ZoneKick {
				key := warnKey{identity: p.Identity, poiID: poi.ID}
				if now.Sub(e.warnings[key]) >= e.cfg.WarningCooldown {
					e.warnings[key] = now
					messages = append(messages, fmt.Sprintf(
						"Warning: %s, you are near %s, you need to claim it to run it.",
						p.Display, poi.ID))
				}
			}
			if zone == geo.ZoneKick && (claim != nil || e.cfg.EnforceUnclaimed) {
				kicks = append(kicks, relocation{
					identity: p.Identity,
					display:  p.Display,
					poiID:    poi.ID,
					steam64:  p.Steam64,
					target:   poi.SafePosition,
				})
			}
		}

		if claim != nil {
			e.inside[poi.ID] = insideNow
			if len(insideNow) == 0 && claim.ReleaseAt == nil {
				at := now.Add(e.cfg.ReleaseDelay)
				claim.ReleaseAt = &at
				e.log.Info("occupancy empty, release armed",
					zap.String("poi", poi.ID),
					zap.Time("release_at", at),
				)
			} else if len(insideNow) > 0 && claim.ReleaseAt != nil {
				claim.ReleaseAt = nil
				e.log.Info("member re-entered, release disarmed", zap.String("poi", poi.ID))
			}
		}
	}
	e.mu.Unlock()

	for _, msg := range messages {
		e.send(ctx, msg)
	}
	for _, k := range kicks {
		e.relocate(ctx, k)
	}
}

// relocate teleports one intruder to the POI's safe position. Needs a
// platform id: snapshot first, link store second; without one the kick
// is logged and skipped, never retried.
func (e *Engine) relocate(ctx context.Context, k relocation) {
	steam64 := k.steam64
	if steam64 == "" && e.links != nil {
		id, err := e.links.Resolve(ctx, k.identity)
		if err != nil {
			e.log.Warn("link store lookup failed",
				zap.String("player", k.display), zap.Error(err))
		} else {
			steam64 = id
		}
	}
	if steam64 == "" {
		e.log.Warn("cannot relocate player, no platform id",
			zap.String("player", k.display), zap.String("poi", k.poiID))
		return
	}
	if err := e.gw.RelocatePlayer(ctx, steam64, k.target); err != nil {
		e.log.Warn("relocation failed",
			zap.String("player", k.display), zap.String("poi", k.poiID), zap.Error(err))
		return
	}
	e.log.Info("intruder relocated",
		zap.String("player", k.display), zap.String("poi", k.poiID))
}

// SweepExpiry runs the time-driven policies: absolute claim timeout,
// armed occupancy releases, member roster expiry, and warning-record
// garbage collection.
func (e *Engine) SweepExpiry(ctx context.Context) {
	var messages []string

	e.mu.Lock()
	now := e.now()
	for poiID, claim := range e.claims {
		if now.Sub(claim.CreatedAt) >= e.cfg.ClaimTimeout {
			e.dropClaimLocked(poiID)
			e.log.Info("claim timed out", zap.String("poi", poiID))
			messages = append(messages, fmt.Sprintf("%s is now available to claim again!", poiID))
			continue
		}
		if claim.ReleaseAt != nil && !now.Before(*claim.ReleaseAt) {
			e.dropClaimLocked(poiID)
			e.log.Info("claim auto-released, occupancy empty", zap.String("poi", poiID))
			messages = append(messages, fmt.Sprintf("%s claim expired - it's now available!", poiID))
			continue
		}
		e.pruneMembersLocked(claim, now)
	}

	for key, at := range e.warnings {
		if now.Sub(at) >= e.cfg.WarningCooldown {
			delete(e.warnings, key)
		}
	}
	e.mu.Unlock()

	for _, msg := range messages {
		e.send(ctx, msg)
	}
}

// pruneMembersLocked drops roster entries older than the member
// expiry. The owner entry never expires: a claim always keeps at least
// its owner, and occupancy release is driven by physical presence, not
// by the roster.
func (e *Engine) pruneMembersLocked(claim *Claim, now time.Time) {
	kept := claim.Members[:0]
	for _, m := range claim.Members {
		if m.Identity == claim.Owner || now.Sub(m.JoinedAt) < e.cfg.MemberExpiry {
			kept = append(kept, m)
		}
	}
	claim.Members = kept
}

// send is fire-and-forget: failure is logged and never blocks or
// retries.
func (e *Engine) send(ctx context.Context, text string) {
	if err := e.gw.SendServerMessage(ctx, text); err != nil {
		e.log.Warn("server message failed", zap.Error(err))
	}
}
