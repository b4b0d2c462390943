package enforce

import (
	"fmt"
	"time"
)

// Policy holds the escalation ladder thresholds and the recovery cadence.
type Policy struct {
	// reputation lost per point of verdict severity
	SeverityPenalty int

	SuspendSeverity   int
	SuspendReputation int
	SuspendWarnings   int
	SuspendDuration   time.Duration

	// ban thresholds only apply to accounts which have been suspended before
	BanReputation int
	BanWarnings   int
	BanWindow     time.Duration

	RecoveryQuietPeriod time.Duration
	RecoveryInterval    time.Duration
	RecoveryAmount      int
}

func DefaultPolicy() Policy {
	return Policy{
		SeverityPenalty:     5,
		SuspendSeverity:     4,
		SuspendReputation:   50,
		SuspendWarnings:     3,
		SuspendDuration:     72 * time.Hour,
		BanReputation:       25,
		BanWarnings:         6,
		BanWindow:           30 * 24 * time.Hour,
		RecoveryQuietPeriod: 30 * 24 * time.Hour,
		RecoveryInterval:    30 * 24 * time.Hour,
		RecoveryAmount:      5,
	}
}

// Ladder picks the enforcement action for a violation of the given severity, where reputation is the already-penalized value.
//
// The most severe eligible action wins: ban, then suspend, then warn. Each eligibility test only gets easier as severity rises, so the outcome is monotonic in severity.
func (p Policy) Ladder(acct *Account, reputation, severity int, now time.Time) ActionTaken {
	if acct.LastSuspendedAt != nil {
		repeat := severity >= p.SuspendSeverity && now.Sub(*acct.LastSuspendedAt) <= p.BanWindow
		if reputation < p.BanReputation || acct.WarningCount >= p.BanWarnings || repeat {
			return ActionBan
		}
	}
	if severity >= p.SuspendSeverity || (reputation < p.SuspendReputation && acct.WarningCount >= p.SuspendWarnings) {
		return ActionSuspend3d
	}
	return ActionWarn
}

// Apply mutates acct for one violation and reports what changed. Banned accounts are terminal and left untouched.
func (p Policy) Apply(acct *Account, severity int, now time.Time) (Result, bool) {
	res := Result{
		UserID:         acct.UserID,
		ActionTaken:    ActionNone,
		PreviousStatus: acct.Status,
		NewStatus:      acct.Status,
		Reputation:     acct.Reputation,
		WarningCount:   acct.WarningCount,
	}
	if acct.Status == StatusBanned {
		res.Reason = "account is banned"
		return res, false
	}

	rep := max(0, acct.Reputation-severity*p.SeverityPenalty)
	action := p.Ladder(acct, rep, severity, now)

	res.ReputationDelta = rep - acct.Reputation
	acct.Reputation = rep
	acct.LastViolationAt = timePtr(now)

	switch action {
	case ActionWarn:
		acct.WarningCount++
		res.WarningDelta = 1
		res.Reason = fmt.Sprintf("warning %d for severity %d violation", acct.WarningCount, severity)
	case ActionSuspend3d:
		res.PriorSuspendedUntil = acct.SuspendedUntil
		res.PriorSuspendedAt = acct.LastSuspendedAt
		until := now.Add(p.SuspendDuration)
		// never shorten a running suspension
		if acct.Status == StatusSuspended && acct.SuspendedUntil != nil && acct.SuspendedUntil.After(until) {
			until = *acct.SuspendedUntil
		}
		acct.Status = StatusSuspended
		acct.SuspendedUntil = timePtr(until)
		acct.LastSuspendedAt = timePtr(now)
		res.EffectiveUntil = timePtr(until)
		res.Reason = fmt.Sprintf("suspended until %s for severity %d violation", until.UTC().Format(time.RFC3339), severity)
	case ActionBan:
		res.PriorSuspendedUntil = acct.SuspendedUntil
		res.PriorSuspendedAt = acct.LastSuspendedAt
		acct.Status = StatusBanned
		acct.SuspendedUntil = nil
		res.Reason = fmt.Sprintf("banned after repeat violation (severity %d, reputation %d, warnings %d)", severity, rep, acct.WarningCount)
	}

	res.ActionTaken = action
	res.NewStatus = acct.Status
	res.Reputation = acct.Reputation
	res.WarningCount = acct.WarningCount
	return res, true
}

// Expire lifts a suspension whose end time has passed. Reports whether the account changed.
func Expire(acct *Account, now time.Time) bool {
	if acct.Status != StatusSuspended || acct.SuspendedUntil == nil || acct.SuspendedUntil.After(now) {
		return false
	}
	acct.Status = StatusActive
	acct.SuspendedUntil = nil
	return true
}

// Recover applies one good-standing step: reputation up by RecoveryAmount (capped), one rolling warning forgiven.
func (p Policy) Recover(acct *Account, now time.Time) bool {
	if acct.Status == StatusBanned {
		return false
	}
	if acct.LastViolationAt != nil && now.Sub(*acct.LastViolationAt) < p.RecoveryQuietPeriod {
		return false
	}
	if acct.LastRecoveredAt != nil && now.Sub(*acct.LastRecoveredAt) < p.RecoveryInterval {
		return false
	}
	if acct.Reputation >= MaxReputation && acct.WarningCount == 0 {
		return false
	}
	acct.Reputation = min(MaxReputation, acct.Reputation+p.RecoveryAmount)
	acct.WarningCount = max(0, acct.WarningCount-1)
	acct.LastRecoveredAt = timePtr(now)
	return true
}

// Reverse undoes a previous result on the current account state. Status is only restored if the account is still in the state the result put it in.
func Reverse(acct *Account, prev *Result, now time.Time) Result {
	res := Result{
		UserID:         acct.UserID,
		ActionTaken:    ActionReverse,
		PreviousStatus: acct.Status,
	}
	before := acct.Reputation
	acct.Reputation = min(MaxReputation, max(0, acct.Reputation-prev.ReputationDelta))
	res.ReputationDelta = acct.Reputation - before

	warnings := prev.WarningDelta
	if warnings == 0 && prev.ActionTaken == ActionWarn {
		// results recorded before WarningDelta existed
		warnings = 1
	}
	wc := acct.WarningCount
	acct.WarningCount = max(0, acct.WarningCount-warnings)
	res.WarningDelta = acct.WarningCount - wc

	statusChange := prev.ActionTaken == ActionSuspend3d || prev.ActionTaken == ActionBan || prev.PreviousStatus != prev.NewStatus
	if statusChange && acct.Status == prev.NewStatus {
		acct.Status = prev.PreviousStatus
		acct.SuspendedUntil = prev.PriorSuspendedUntil
		acct.LastSuspendedAt = prev.PriorSuspendedAt
		if acct.Status != StatusSuspended {
			acct.SuspendedUntil = nil
		}
		Expire(acct, now)
	}
	res.NewStatus = acct.Status
	res.EffectiveUntil = acct.SuspendedUntil
	res.Reputation = acct.Reputation
	res.WarningCount = acct.WarningCount
	res.Reason = fmt.Sprintf("reversed %s", prev.ActionTaken)
	return res
}

// Supersede replaces prev, the enforcement applied for an earlier verdict on the same content, with the enforcement for a stricter verdict. prev is undone before the new penalty is weighed, so the content is only charged once.
//
// The result is relative to the account as it was before the call: reversing it restores prev.
func (p Policy) Supersede(acct *Account, prev *Result, severity int, now time.Time) (Result, bool) {
	before := *acct
	if prev.Changed() {
		Reverse(acct, prev, now)
	}
	res, changed := p.Apply(acct, severity, now)
	if !changed {
		*acct = before
		return Result{
			UserID:         acct.UserID,
			ActionTaken:    ActionNone,
			PreviousStatus: acct.Status,
			NewStatus:      acct.Status,
			Reputation:     acct.Reputation,
			WarningCount:   acct.WarningCount,
			Reason:         res.Reason,
		}, false
	}
	res.PreviousStatus = before.Status
	res.ReputationDelta = acct.Reputation - before.Reputation
	res.WarningDelta = acct.WarningCount - before.WarningCount
	res.PriorSuspendedUntil = before.SuspendedUntil
	res.PriorSuspendedAt = before.LastSuspendedAt
	if prev.Changed() {
		res.Reason = fmt.Sprintf("replaces %s: %s", prev.ActionTaken, res.Reason)
	}
	return res, true
}
