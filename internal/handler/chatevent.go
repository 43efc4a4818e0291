// Package handler is the core's single entry point for chat events:
// classify the line, resolve POI arguments, drive the territory
// engine, and produce the one outbound reply.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/poiwarden/server/internal/command"
	"github.com/poiwarden/server/internal/resolver"
	"github.com/poiwarden/server/internal/territory"
)

// Deps carries every collaborator a chat event can touch.
type Deps struct {
	Engine   *territory.Engine
	Resolver *resolver.Resolver
	Links    territory.LinkStore
	Log      *zap.Logger

	// DedupeWindow suppresses identical (player, message) pairs; the
	// upstream event source redelivers.
	DedupeWindow time.Duration
}

// Handler processes chat events. Safe for concurrent use.
type Handler struct {
	deps Deps
	now  func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time // identity + "\x00" + normalized message
}

func New(deps Deps) *Handler {
	return &Handler{
		deps: deps,
		now:  time.Now,
		seen: make(map[string]time.Time),
	}
}

// HandleChatEvent classifies one chat line and returns the reply to
// broadcast, if any. Duplicate commands inside the dedupe window and
// unrecognized text return ok=false.
func (h *Handler) HandleChatEvent(ctx context.Context, display, raw string) (string, bool) {
	identity := resolver.Normalize(display)
	if identity == "" {
		return "", false
	}

	cmd := command.Parse(raw)
	if _, ok := cmd.(command.Unrecognized); ok {
		return "", false
	}
	if h.isDuplicate(identity, raw) {
		return "", false
	}

	h.deps.Log.Debug("chat command",
		zap.String("player", display),
		zap.String("text", raw),
	)

	switch c := cmd.(type) {
	case command.LinkCmd:
		return h.link(ctx, identity, display, c.Steam64)
	case command.CheckClaimsCmd:
		return h.checkClaims()
	case command.CheckCmd:
		return h.checkPOI(c.POI)
	case command.ClaimCmd:
		return h.claim(identity, display, c.POI)
	case command.CancelCmd:
		return h.cancel(identity, display, c.POI)
	default:
		return "", false
	}
}

// isDuplicate records the (player, message) pair and reports whether
// an identical one was already seen inside the window. Stale entries
// are pruned inline.
func (h *Handler) isDuplicate(identity, raw string) bool {
	key := identity + "\x00" + resolver.Normalize(raw)
	now := h.now()

	h.mu.Lock()
	defer h.mu.Unlock()
	for k, at := range h.seen {
		if now.Sub(at) > h.deps.DedupeWindow {
			delete(h.seen, k)
		}
	}
	if at, ok := h.seen[key]; ok && now.Sub(at) <= h.deps.DedupeWindow {
		return true
	}
	h.seen[key] = now
	return false
}

func (h *Handler) link(ctx context.Context, identity, display, steam64 string) (string, bool) {
	if err := h.deps.Links.Record(ctx, identity, steam64); err != nil {
		h.deps.Log.Warn("record link failed", zap.String("player", display), zap.Error(err))
		return fmt.Sprintf("%s, linking failed, try again later.", display), true
	}
	return fmt.Sprintf("%s, your SteamID has been linked.", display), true
}

func (h *Handler) checkClaims() (string, bool) {
	available := h.deps.Engine.Available()
	if len(available) == 0 {
		return "All POIs are currently claimed.", true
	}
	names := make([]string, len(available))
	for i, poi := range available {
		names[i] = poi.Alias
	}
	return "Available POIs: " + strings.Join(names, ", "), true
}

func (h *Handler) checkPOI(input string) (string, bool) {
	poiID, ok := h.deps.Resolver.Resolve(input)
	if !ok {
		return fmt.Sprintf("Unknown POI: %s. Try 'check claims'.", input), true
	}
	q, err := h.deps.Engine.Query(poiID)
	if err != nil {
		return fmt.Sprintf("Unknown POI: %s. Try 'check claims'.", input), true
	}
	if q.Claimed {
		return fmt.Sprintf("%s is claimed by %s.", poiID, q.OwnerDisplay), true
	}
	return fmt.Sprintf("%s is available!", poiID), true
}

func (h *Handler) claim(identity, display, input string) (string, bool) {
	poiID, ok := h.deps.Resolver.Resolve(input)
	if !ok {
		return fmt.Sprintf("Invalid POI: %s.", input), true
	}

	res, err := h.deps.Engine.Claim(identity, display, poiID)
	if err != nil {
		return claimErrorText(display, poiID, err), true
	}

	var group string
	if len(res.Enrolled) > 0 {
		group = " with " + strings.Join(res.Enrolled, ", ")
	}
	return fmt.Sprintf("%s claimed %s%s.", display, poiID, group), true
}

func claimErrorText(display, poiID string, err error) string {
	var already *territory.AlreadyClaimedError
	var tooFar *territory.TooFarError
	var denied *territory.PolicyDeniedError
	switch {
	case errors.As(err, &already):
		return fmt.Sprintf("%s already claimed by %s %d min ago.",
			poiID, already.OwnerDisplay, int(already.Elapsed.Minutes()))
	case errors.Is(err, territory.ErrAlreadyClaimedThisCycle):
		return fmt.Sprintf("%s, you have already claimed %s this restart.", display, poiID)
	case errors.As(err, &tooFar):
		return fmt.Sprintf("%s is too far from %s (%.2fm). Move closer to POI.",
			display, poiID, tooFar.Distance)
	case errors.Is(err, territory.ErrPositionUnknown):
		return fmt.Sprintf("Unable to verify %s's position. Move and try again.", display)
	case errors.As(err, &denied):
		return fmt.Sprintf("%s, you cannot claim %s: %s", display, poiID, denied.Reason)
	default:
		return fmt.Sprintf("Invalid POI: %s.", poiID)
	}
}

func (h *Handler) cancel(identity, display, input string) (string, bool) {
	poiID, ok := h.deps.Resolver.Resolve(input)
	if !ok {
		return fmt.Sprintf("Invalid POI: %s.", input), true
	}

	err := h.deps.Engine.Cancel(identity, poiID)
	var notOwner *territory.NotOwnerError
	switch {
	case err == nil:
		return fmt.Sprintf("%s cancelled their claim on %s.", display, poiID), true
	case errors.Is(err, territory.ErrNotClaimed):
		return fmt.Sprintf("%s is not claimed.", poiID), true
	case errors.As(err, &notOwner):
		return fmt.Sprintf("You cannot cancel claim on %s. Claimed by %s.",
			poiID, notOwner.OwnerDisplay), true
	default:
		return fmt.Sprintf("Invalid POI: %s.", input), true
	}
}
