package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/spotter-social/spotter/automod/audit"
)

var (
	ErrNotReviewable   = errors.New("audit record is not a reviewable decision")
	ErrAlreadyReviewed = errors.New("audit record already reviewed")
	ErrInvalidReview   = errors.New("invalid review request")
)

type ReviewRequest struct {
	AuditID   string               `json:"-"`
	Moderator string               `json:"moderator"`
	Decision  audit.ReviewDecision `json:"decision"`
	Note      string               `json:"note"`
}

type ReviewOutcome struct {
	Review *audit.Record `json:"review"`
	// reviews recorded for reconcile records settled along with an overturned decision
	Cascade   []*audit.Record `json:"cascade,omitempty"`
	Reversals []*audit.Record `json:"reversals,omitempty"`
}

// Review records a moderator's disposition of a decision or reconcile record. Each record can be reviewed once: the review claims it, so concurrent reviews of the same record fail with ErrAlreadyReviewed.
//
// Overturning a decision also settles its escalated reconcile records, and reverses every enforcement still in effect for that content, newest first. A reconcile record which was upheld on its own keeps its enforcement, which replaced the decision's, so nothing is reversed.
func (eng *Engine) Review(ctx context.Context, req ReviewRequest) (*ReviewOutcome, error) {
	if req.Moderator == "" {
		return nil, fmt.Errorf("%w: moderator required", ErrInvalidReview)
	}
	if req.Decision != audit.ReviewUphold && req.Decision != audit.ReviewOverturn {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidReview, req.Decision)
	}

	target, err := eng.Audit.Store.Get(ctx, req.AuditID)
	if err != nil {
		return nil, err
	}
	if target.Kind != audit.KindDecision && target.Kind != audit.KindReconcile {
		return nil, fmt.Errorf("%w: %s is a %s record", ErrNotReviewable, target.ID, target.Kind)
	}
	related, err := eng.Audit.Store.Related(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range related {
		// reviewed, or reversed along with an overturned decision
		if r.Kind == audit.KindReview || r.Kind == audit.KindReversal {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyReviewed, target.ID)
		}
	}

	rev, err := eng.Audit.Append(ctx, eng.reviewRecord(target, req, req.Note))
	if errors.Is(err, audit.ErrDuplicate) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyReviewed, target.ID)
	}
	if err != nil {
		return nil, err
	}
	reviewCount.WithLabelValues(string(req.Decision)).Inc()
	out := &ReviewOutcome{Review: rev}
	eng.Logger.Info("decision reviewed", "audit", target.ID, "moderator", req.Moderator, "decision", req.Decision)
	if req.Decision != audit.ReviewOverturn {
		return out, nil
	}

	var errs []error
	toReverse := []audit.Record{}
	superseded := false
	// newest first, so later enforcement is unwound before the one it replaced
	for i := len(related) - 1; i >= 0 && !superseded; i-- {
		r := related[i]
		if r.Kind != audit.KindReconcile || !r.Enforcement.Changed() {
			continue
		}
		crev, err := eng.Audit.Append(ctx, eng.reviewRecord(&r, req, fmt.Sprintf("overturned with %s", target.ID)))
		switch {
		case errors.Is(err, audit.ErrDuplicate):
			// reviewed on its own: already reversed if overturned, still in effect if upheld
			upheld, err := eng.upheld(ctx, r.ID)
			if err != nil {
				errs = append(errs, err)
				superseded = true
			} else if upheld {
				eng.Logger.Info("upheld reconcile enforcement stands", "audit", target.ID, "reconcile", r.ID)
				superseded = true
			}
		case err != nil:
			// unclaimed, so neither it nor the enforcement it replaced can be safely reversed
			errs = append(errs, err)
			superseded = true
		default:
			out.Cascade = append(out.Cascade, crev)
			toReverse = append(toReverse, r)
		}
	}
	if !superseded && target.Enforcement.Changed() {
		toReverse = append(toReverse, *target)
	}

	for _, src := range toReverse {
		res, err := eng.Enforcer.Reverse(ctx, src.AuthorID, src.Enforcement)
		if err != nil {
			errs = append(errs, fmt.Errorf("reversing enforcement from %s: %w", src.ID, err))
			continue
		}
		rec, err := eng.Audit.Append(ctx, &audit.Record{
			Kind:        audit.KindReversal,
			ContentRef:  src.ContentRef,
			AuthorID:    src.AuthorID,
			Context:     src.Context,
			Enforcement: res,
			Moderator:   req.Moderator,
			Note:        req.Note,
			RefID:       src.ID,
		})
		if err != nil {
			errs = append(errs, err)
		}
		out.Reversals = append(out.Reversals, rec)
	}
	return out, errors.Join(errs...)
}

func (eng *Engine) reviewRecord(target *audit.Record, req ReviewRequest, note string) *audit.Record {
	return &audit.Record{
		Kind:           audit.KindReview,
		ContentRef:     target.ContentRef,
		AuthorID:       target.AuthorID,
		Context:        target.Context,
		Verdict:        target.Verdict,
		Moderator:      req.Moderator,
		ReviewDecision: req.Decision,
		Note:           note,
		RefID:          target.ID,
	}
}

// upheld reports whether the review on file for id upheld it
func (eng *Engine) upheld(ctx context.Context, id string) (bool, error) {
	related, err := eng.Audit.Store.Related(ctx, id)
	if err != nil {
		return false, err
	}
	for _, r := range related {
		if r.Kind == audit.KindReview {
			return r.ReviewDecision == audit.ReviewUphold, nil
		}
	}
	return false, fmt.Errorf("review of %s not found", id)
}
