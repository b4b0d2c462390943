package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/spotter-social/spotter/automod/audit"
)

var ErrNoFetcher = errors.New("no content fetcher configured")

type ReconcileReport struct {
	// queued records examined
	Checked int `json:"checked"`
	// records with a non-degraded verdict on file, removed from the queue
	Reconciled int `json:"reconciled"`
	// reconciled records where the new verdict was stricter, and enforcement was applied
	Escalated int `json:"escalated"`
	// records left queued after an error; retried on the next pass
	Failed int `json:"failed"`
}

// Reconcile re-moderates degraded decisions once the external classifier is available again.
//
// Each queued decision gets a reconcile audit record referring to it. Enforcement is only applied when the new verdict is stricter than the original, and then replaces the original enforcement; a more lenient result is recorded but the original enforcement stands until a human reviews it. Decisions a moderator reviewed in the meantime are dropped.
func (eng *Engine) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	if eng.Fetcher == nil {
		return nil, ErrNoFetcher
	}
	ids, err := eng.Flags.Get(ctx, ReconcileFlagKey)
	if err != nil {
		return nil, fmt.Errorf("reading reconciliation queue: %w", err)
	}
	report := &ReconcileReport{}
	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		report.Checked++
		result, err := eng.reconcileOne(ctx, id)
		if err != nil {
			report.Failed++
			reconcileCount.WithLabelValues("failed").Inc()
			eng.Logger.Warn("reconciliation failed", "audit", id, "err", err)
			errs = append(errs, err)
			continue
		}
		reconcileCount.WithLabelValues(result).Inc()
		switch result {
		case "escalated":
			report.Escalated++
			report.Reconciled++
		case "reconciled", "dropped":
			report.Reconciled++
		}
	}
	eng.Logger.Info("reconciliation pass", "checked", report.Checked, "reconciled", report.Reconciled, "escalated", report.Escalated, "failed", report.Failed)
	return report, errors.Join(errs...)
}

// reconcileOne returns "escalated", "reconciled", "dropped" (original or content gone) or "degraded" (still no classifier)
func (eng *Engine) reconcileOne(ctx context.Context, id string) (string, error) {
	orig, err := eng.Audit.Store.Get(ctx, id)
	if errors.Is(err, audit.ErrNotFound) {
		return "dropped", eng.Flags.Remove(ctx, ReconcileFlagKey, []string{id})
	}
	if err != nil {
		return "", err
	}

	related, err := eng.Audit.Store.Related(ctx, orig.ID)
	if err != nil {
		return "", err
	}
	for _, r := range related {
		// a moderator or an earlier pass already settled it
		if r.Kind == audit.KindReview || r.Kind == audit.KindReconcile {
			eng.Logger.Info("degraded decision already settled, dropping from queue", "audit", id, "by", r.ID, "kind", r.Kind)
			return "dropped", eng.Flags.Remove(ctx, ReconcileFlagKey, []string{id})
		}
	}

	content, err := eng.Fetcher.FetchContent(ctx, orig.ContentRef)
	if errors.Is(err, ErrContentNotFound) {
		eng.Logger.Info("degraded content no longer exists, dropping from queue", "audit", id, "contentRef", orig.ContentRef)
		return "dropped", eng.Flags.Remove(ctx, ReconcileFlagKey, []string{id})
	}
	if err != nil {
		return "", err
	}

	res, err := eng.Moderate(ctx, content, orig.Context)
	if err != nil {
		return "", err
	}
	if res.Degraded {
		return "degraded", nil
	}

	result := "reconciled"
	rec := &audit.Record{
		Kind:       audit.KindReconcile,
		ContentRef: orig.ContentRef,
		AuthorID:   orig.AuthorID,
		Context:    orig.Context,
		Verdict:    res,
		RefID:      orig.ID,
	}
	if res.Stricter(orig.Verdict) {
		// replaces the original enforcement rather than adding to it
		enf, err := eng.enforce(ctx, orig.AuthorID, res, orig.Enforcement)
		if err != nil {
			return "", fmt.Errorf("enforcing reconciled verdict: %w", err)
		}
		rec.Enforcement = enf
		result = "escalated"
	}
	_, err = eng.Audit.Append(ctx, rec)
	if errors.Is(err, audit.ErrDuplicate) {
		// lost to a concurrent pass; undo what this one applied
		if rec.Enforcement.Changed() {
			if _, rerr := eng.Enforcer.Reverse(ctx, orig.AuthorID, rec.Enforcement); rerr != nil {
				return "", fmt.Errorf("undoing duplicate reconciliation of %s: %w", id, rerr)
			}
		}
		return "dropped", eng.Flags.Remove(ctx, ReconcileFlagKey, []string{id})
	}
	// the queue entry goes once enforcement is applied, even if the record fails; the audit logger alerts on that
	if err != nil && rec.Enforcement == nil {
		return "", err
	}
	if err := eng.Flags.Remove(ctx, ReconcileFlagKey, []string{id}); err != nil {
		return "", err
	}
	return result, nil
}
