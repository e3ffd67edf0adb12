// Package subscription holds the lifecycle state machine and the durable
// transition service built on top of it. The state machine itself is a pure
// function: it never touches the database, never returns an error, and always
// degrades to a safe read-only answer when the inputs make no sense.
package subscription

import (
	"time"

	"studyhall-platform/internal/database"
)

// State is the derived lifecycle state at a point in time. It is a superset
// of the persisted statuses: grace period, no subscription and access denied
// exist only at evaluation time and are never written back.
type State string

const (
	StateTrial          State = "trial"
	StateActive         State = "active"
	StateExpired        State = "expired"
	StateCancelled      State = "cancelled"
	StatePaused         State = "paused"
	StateGracePeriod    State = "grace_period"
	StateNoSubscription State = "no_subscription"
	StateAccessDenied   State = "access_denied"
)

// Tier is the coarse access level derived from the state
type Tier string

const (
	TierFull     Tier = "full"
	TierReadOnly Tier = "read_only"
	TierDenied   Tier = "denied"
)

// Evaluation is the state machine's answer for one user at one instant
type Evaluation struct {
	State              State `json:"state"`
	Tier               Tier  `json:"tier"`
	RemainingTrialDays int   `json:"remaining_trial_days"`
	InGracePeriod      bool  `json:"in_grace_period"`
}

// Rules holds the evaluation knobs. The grace window is deployment
// configuration, not a plan attribute.
type Rules struct {
	GracePeriodDays int
}

// Evaluate derives the lifecycle state and access tier from the user's
// subscription rows. Rules are applied in priority order, first match wins:
//
//  1. banned user: access denied
//  2. an active row whose end date has not passed: full access
//  3. a trial row whose trial end has not passed: full access
//  4. most recent expiry within the grace window: read-only
//  5. everything else: expired / no subscription, read-only
//
// Unknown statuses and rows with missing dates simply match nothing and fall
// through to the read-only default, which is the intended degradation for
// corrupt state.
func Evaluate(subs []*database.Subscription, banned bool, now time.Time, rules Rules) Evaluation {
	if banned {
		return Evaluation{State: StateAccessDenied, Tier: TierDenied}
	}

	for _, sub := range subs {
		if sub == nil {
			continue
		}
		if sub.Status == database.StatusActive && (sub.EndDate == nil || sub.EndDate.After(now)) {
			return Evaluation{State: StateActive, Tier: TierFull}
		}
	}

	for _, sub := range subs {
		if sub == nil {
			continue
		}
		if sub.Status == database.StatusTrial && sub.TrialEnd != nil && sub.TrialEnd.After(now) {
			return Evaluation{
				State:              StateTrial,
				Tier:               TierFull,
				RemainingTrialDays: remainingDays(*sub.TrialEnd, now),
			}
		}
	}

	lastEnd := mostRecentExpiry(subs)
	if lastEnd != nil {
		graceUntil := lastEnd.Add(time.Duration(rules.GracePeriodDays) * 24 * time.Hour)
		if !lastEnd.After(now) && graceUntil.After(now) {
			return Evaluation{State: StateGracePeriod, Tier: TierReadOnly, InGracePeriod: true}
		}
		return Evaluation{State: StateExpired, Tier: TierReadOnly}
	}

	return Evaluation{State: StateNoSubscription, Tier: TierReadOnly}
}

// remainingDays is the ceiling of the time left in whole days, never below 1
// while the deadline is still in the future
func remainingDays(deadline, now time.Time) int {
	remaining := deadline.Sub(now)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	if days < 0 {
		days = 0
	}
	return days
}

// mostRecentExpiry finds the latest end reference across all rows: end dates
// for paid rows, trial ends for trial rows. Paused (payment pending) rows
// carry no end reference and contribute nothing.
func mostRecentExpiry(subs []*database.Subscription) *time.Time {
	var latest *time.Time
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		var end *time.Time
		switch sub.Status {
		case database.StatusActive, database.StatusExpired, database.StatusCancelled:
			end = sub.EndDate
			if end == nil {
				end = sub.TrialEnd
			}
		case database.StatusTrial:
			end = sub.TrialEnd
		}
		if end == nil {
			continue
		}
		if latest == nil || end.After(*latest) {
			latest = end
		}
	}
	return latest
}
