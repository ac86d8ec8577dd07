// Package breaker renders a state.ProviderHealth record in circuit
// breaker terms (closed/open/half-open) for provider-health reporting.
// The actual cooldown bookkeeping happens atomically inside
// state.Store.ProviderSelect; this package is a read-only projection
// used for status surfaces and logs.
package breaker

import (
	"time"

	"github.com/rcourtman/insightctl/internal/state"
)

// State is the standard three-state circuit breaker model.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Status is a point-in-time rendering of a provider's health.
type Status struct {
	Provider             string    `json:"provider"`
	State                string    `json:"state"`
	FailCount            int       `json:"failCount"`
	SuccessCount         int       `json:"successCount"`
	ConsecutiveSuccesses int       `json:"consecutiveSuccesses"`
	LastError            string    `json:"lastError,omitempty"`
	CooldownUntil        time.Time `json:"cooldownUntil,omitempty"`
}

// Derive projects a provider health record into a Status. A provider
// that is currently cooling down reports open; one with at least one
// recorded failure but currently available reports half-open (it is
// being probed again); otherwise closed.
func Derive(h state.ProviderHealth, now time.Time) Status {
	st := StateClosed
	switch {
	case h.CoolingDown(now):
		st = StateOpen
	case h.FailCount > 0:
		st = StateHalfOpen
	}
	return Status{
		Provider:             h.Provider,
		State:                st.String(),
		FailCount:            h.FailCount,
		SuccessCount:         h.SuccessCount,
		ConsecutiveSuccesses: h.ConsecutiveSuccesses,
		LastError:            h.LastError,
		CooldownUntil:        h.CooldownUntil,
	}
}
