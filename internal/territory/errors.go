package territory

import (
	"errors"
	"fmt"
	"time"
)

// Command-level rule violations. These are user-facing outcomes, not
// faults: handlers turn them into chat replies and never log them as
// errors.
var (
	ErrUnknownPOI              = errors.New("unknown poi")
	ErrNotClaimed              = errors.New("poi is not claimed")
	ErrAlreadyClaimedThisCycle = errors.New("already claimed this cycle")
	ErrPositionUnknown         = errors.New("player position unknown")
)

// AlreadyClaimedError reports a live claim blocking a new one.
type AlreadyClaimedError struct {
	OwnerDisplay string
	Elapsed      time.Duration
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("already claimed by %s %d min ago", e.OwnerDisplay, int(e.Elapsed.Minutes()))
}

// NotOwnerError reports a cancel attempt by someone other than the owner.
type NotOwnerError struct {
	OwnerDisplay string
}

func (e *NotOwnerError) Error() string {
	return fmt.Sprintf("claim is owned by %s", e.OwnerDisplay)
}

// TooFarError reports a proximity check failure at claim time.
type TooFarError struct {
	Distance float64
	Radius   float64
}

func (e *TooFarError) Error() string {
	return fmt.Sprintf("too far: %.2fm (limit %.0fm)", e.Distance, e.Radius)
}

// PolicyDeniedError reports a veto from the operator claim policy.
type PolicyDeniedError struct {
	Reason string
}

func (e *PolicyDeniedError) Error() string {
	return "claim denied by policy: " + e.Reason
}
