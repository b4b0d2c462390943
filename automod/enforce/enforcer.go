package enforce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spotter-social/spotter/automod/events"
	"github.com/spotter-social/spotter/automod/verdict"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("enforce")

// Enforcer applies the escalation policy to a Store, retrying failed writes.
type Enforcer struct {
	Store  Store
	Policy Policy
	Logger *slog.Logger
	// optional
	Events events.Publisher
	// total attempts for a single read-modify-write
	MaxTries uint
	// overridden in tests
	Now func() time.Time
}

func NewEnforcer(store Store, policy Policy, logger *slog.Logger, pub events.Publisher) *Enforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		Store:    store,
		Policy:   policy,
		Logger:   logger.With("component", "enforce"),
		Events:   pub,
		MaxTries: 5,
	}
}

func (e *Enforcer) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// update wraps Store.Update with exponential backoff. Context errors are not retried.
func (e *Enforcer) update(ctx context.Context, userID string, fn UpdateFunc) (*Account, error) {
	tries := e.MaxTries
	if tries == 0 {
		tries = 1
	}
	attempt := 0
	op := func() (*Account, error) {
		attempt++
		acct, err := e.Store.Update(ctx, userID, fn)
		if err == nil {
			return acct, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		enforcementWriteRetries.Inc()
		e.Logger.Warn("enforcement write failed", "user", userID, "attempt", attempt, "err", err)
		return nil, err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = time.Second
	acct, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
	if err != nil {
		enforcementWriteFailures.Inc()
		return nil, fmt.Errorf("enforcement write for %s: %w", userID, err)
	}
	return acct, nil
}

// Enforce applies one verdict to the author's account. Approvals are a no-op.
func (e *Enforcer) Enforce(ctx context.Context, userID string, v *verdict.ModerationResult) (*Result, error) {
	ctx, span := tracer.Start(ctx, "Enforce")
	defer span.End()
	span.SetAttributes(attribute.String("user", userID), attribute.Int("severity", v.Severity))

	if !v.IsViolation() {
		acct, err := e.Store.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &Result{
			UserID:         userID,
			ActionTaken:    ActionNone,
			PreviousStatus: acct.Status,
			NewStatus:      acct.Status,
			Reputation:     acct.Reputation,
			WarningCount:   acct.WarningCount,
			Reason:         "content approved",
		}, nil
	}

	now := e.now()
	var res Result
	var expired bool
	_, err := e.update(ctx, userID, func(acct *Account) (bool, error) {
		// a stale suspension is lifted before the new violation is weighed
		expired = Expire(acct, now)
		var changed bool
		res, changed = e.Policy.Apply(acct, v.Severity, now)
		if v.PrimaryRuleID != "" && changed {
			res.Reason = fmt.Sprintf("%s: %s", v.PrimaryRuleID, res.Reason)
		}
		return changed || expired, nil
	})
	if err != nil {
		return nil, err
	}

	enforcementActions.WithLabelValues(string(res.ActionTaken)).Inc()
	e.Logger.Info("enforcement applied", "user", userID, "action", res.ActionTaken, "status", res.NewStatus, "reputation", res.Reputation, "delta", res.ReputationDelta, "warnings", res.WarningCount)
	if expired {
		e.publish(ctx, events.TypeSuspensionExpiry, userID, string(ActionNone), StatusActive, nil, "suspension ended")
	}
	if res.Changed() {
		e.publish(ctx, events.TypeEnforcement, userID, string(res.ActionTaken), res.NewStatus, res.EffectiveUntil, res.Reason)
	}
	return &res, nil
}

// Supersede swaps the enforcement applied for an earlier verdict (prev, may be nil) for the enforcement of a stricter verdict on the same content, in one update.
func (e *Enforcer) Supersede(ctx context.Context, userID string, prev *Result, v *verdict.ModerationResult) (*Result, error) {
	if prev == nil || !v.IsViolation() {
		return e.Enforce(ctx, userID, v)
	}
	ctx, span := tracer.Start(ctx, "Supersede")
	defer span.End()
	span.SetAttributes(attribute.String("user", userID), attribute.Int("severity", v.Severity))

	now := e.now()
	var res Result
	var expired bool
	_, err := e.update(ctx, userID, func(acct *Account) (bool, error) {
		expired = Expire(acct, now)
		var changed bool
		res, changed = e.Policy.Supersede(acct, prev, v.Severity, now)
		if v.PrimaryRuleID != "" && changed {
			res.Reason = fmt.Sprintf("%s: %s", v.PrimaryRuleID, res.Reason)
		}
		return changed || expired, nil
	})
	if err != nil {
		return nil, err
	}

	enforcementActions.WithLabelValues(string(res.ActionTaken)).Inc()
	e.Logger.Info("enforcement superseded", "user", userID, "replaced", prev.ActionTaken, "action", res.ActionTaken, "status", res.NewStatus, "reputation", res.Reputation, "delta", res.ReputationDelta)
	if expired {
		e.publish(ctx, events.TypeSuspensionExpiry, userID, string(ActionNone), StatusActive, nil, "suspension ended")
	}
	if res.Changed() {
		e.publish(ctx, events.TypeEnforcement, userID, string(res.ActionTaken), res.NewStatus, res.EffectiveUntil, res.Reason)
	}
	return &res, nil
}

// Status reads an account, lifting an expired suspension. Under concurrent reads only one caller performs (and observes) the transition.
func (e *Enforcer) Status(ctx context.Context, userID string) (*StatusView, error) {
	now := e.now()
	var transitioned bool
	acct, err := e.update(ctx, userID, func(acct *Account) (bool, error) {
		transitioned = Expire(acct, now)
		return transitioned, nil
	})
	if err != nil {
		return nil, err
	}
	if transitioned {
		expiryTransitions.Inc()
		e.Logger.Info("suspension expired", "user", userID)
		e.publish(ctx, events.TypeSuspensionExpiry, userID, string(ActionNone), StatusActive, nil, "suspension ended")
	}
	return &StatusView{Account: *acct, Transitioned: transitioned}, nil
}

// SweepExpired performs the lazy expiry transition for every expired suspension. Returns the number of accounts transitioned.
func (e *Enforcer) SweepExpired(ctx context.Context) (int, error) {
	ids, err := e.Store.ExpiredSuspensions(ctx, e.now())
	if err != nil {
		return 0, err
	}
	n := 0
	var errs []error
	for _, id := range ids {
		view, err := e.Status(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if view.Transitioned {
			n++
		}
	}
	return n, errors.Join(errs...)
}

// Recover applies the good-standing policy to every eligible account. Returns the number of accounts which recovered.
func (e *Enforcer) Recover(ctx context.Context) (int, error) {
	now := e.now()
	ids, err := e.Store.RecoveryCandidates(ctx, now.Add(-e.Policy.RecoveryQuietPeriod), now.Add(-e.Policy.RecoveryInterval))
	if err != nil {
		return 0, err
	}
	n := 0
	var errs []error
	for _, id := range ids {
		var recovered bool
		_, err := e.update(ctx, id, func(acct *Account) (bool, error) {
			// conditions are re-checked under the per-user update
			recovered = e.Policy.Recover(acct, now)
			return recovered, nil
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if recovered {
			n++
		}
	}
	recoveries.Add(float64(n))
	e.Logger.Info("reputation recovery pass", "candidates", len(ids), "recovered", n)
	return n, errors.Join(errs...)
}

// Reverse undoes an earlier enforcement result, eg after a successful appeal.
func (e *Enforcer) Reverse(ctx context.Context, userID string, prev *Result) (*Result, error) {
	if !prev.Changed() || prev.ActionTaken == ActionReverse {
		return &Result{UserID: userID, ActionTaken: ActionNone, Reason: "nothing to reverse"}, nil
	}
	now := e.now()
	var res Result
	_, err := e.update(ctx, userID, func(acct *Account) (bool, error) {
		res = Reverse(acct, prev, now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	enforcementActions.WithLabelValues(string(ActionReverse)).Inc()
	e.Logger.Info("enforcement reversed", "user", userID, "reversed", prev.ActionTaken, "status", res.NewStatus, "reputation", res.Reputation)
	e.publish(ctx, events.TypeReversal, userID, string(ActionReverse), res.NewStatus, res.EffectiveUntil, res.Reason)
	return &res, nil
}

func (e *Enforcer) publish(ctx context.Context, t events.Type, userID, action string, status Status, until *time.Time, reason string) {
	if e.Events == nil {
		return
	}
	evt := events.NewEvent(t, userID, action, string(status))
	evt.EffectiveUntil = until
	evt.Reason = reason
	if err := e.Events.Publish(ctx, evt); err != nil {
		e.Logger.Error("failed to publish enforcement event", "user", userID, "type", t, "err", err)
	}
}
