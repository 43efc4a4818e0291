package territory

import (
	"context"
	"time"

	"github.com/poiwarden/server/internal/geo"
)

// Player is one entry of the telemetry snapshot. The snapshot is
// replaced wholesale on each refresh, never merged.
type Player struct {
	Identity string // normalized name
	Display  string
	Pos      geo.Point
	Steam64  string // optional platform id
}

// Member is one roster entry of a claim. JoinedAt governs that
// member's own expiry, independent of the claim's lifetime.
type Member struct {
	Identity string
	Display  string
	JoinedAt time.Time
}

// Claim is the live claim on one POI. At most one exists per POI; it
// always holds at least the owner as a member.
type Claim struct {
	ID           string // uuid
	POIID        string
	Owner        string // normalized
	OwnerDisplay string
	CreatedAt    time.Time
	Members      []Member

	// ReleaseAt is the armed occupancy auto-release deadline, nil when
	// tracked members are still inside the kick radius. Arming while
	// armed and disarming while clear are no-ops by construction.
	ReleaseAt *time.Time
}

func (c *Claim) hasMember(identity string) bool {
	for i := range c.Members {
		if c.Members[i].Identity == identity {
			return true
		}
	}
	return false
}

// Gateway is the slice of the game-server gateway the engine drives.
// All calls are best-effort: failures are logged by the caller and
// never retried within the same cycle.
type Gateway interface {
	SendServerMessage(ctx context.Context, text string) error
	RelocatePlayer(ctx context.Context, steam64 string, target geo.Position) error
}

// LinkStore resolves display names to durable platform ids.
type LinkStore interface {
	Resolve(ctx context.Context, name string) (string, error) // "" when unlinked
	Record(ctx context.Context, name, steam64 string) error
}

// ClaimPolicy lets operators veto claims beyond the built-in rules.
type ClaimPolicy interface {
	CanClaim(pctx PolicyContext) (allow bool, reason string)
}

// PolicyContext is the data handed to the claim policy hook.
type PolicyContext struct {
	Identity string
	Display  string
	POIID    string
	Dynamic  bool
}
