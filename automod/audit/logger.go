package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spotter-social/spotter/automod/enforce"
	"github.com/spotter-social/spotter/automod/verdict"

	"github.com/google/uuid"
)

// Alerter delivers operational alerts to humans, eg a Slack channel.
type Alerter interface {
	Alert(ctx context.Context, msg string) error
}

// Logger appends records and makes storage failures loud: logged, counted, and sent to the Alerter.
type Logger struct {
	Store Store
	// optional
	Alerter Alerter
	Logger  *slog.Logger
	Now     func() time.Time
}

func NewLogger(store Store, alerter Alerter, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		Store:   store,
		Alerter: alerter,
		Logger:  logger.With("component", "audit"),
	}
}

// Record appends a decision record. The returned record is valid even when err is non-nil.
func (l *Logger) Record(ctx context.Context, v *verdict.ModerationResult, enf *enforce.Result, contentRef, authorID string) (*Record, error) {
	return l.Append(ctx, &Record{
		Kind:        KindDecision,
		ContentRef:  contentRef,
		AuthorID:    authorID,
		Verdict:     v,
		Enforcement: enf,
	})
}

// Append assigns an id and timestamp if unset, then writes the record. ErrDuplicate is returned as is and does not alert.
func (l *Logger) Append(ctx context.Context, rec *Record) (*Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		if l.Now != nil {
			rec.CreatedAt = l.Now().UTC()
		} else {
			rec.CreatedAt = time.Now().UTC()
		}
	}
	err := l.Store.Append(ctx, rec)
	if errors.Is(err, ErrDuplicate) {
		// a lost race for a claim, not a storage failure
		l.Logger.Info("audit record rejected as duplicate", "id", rec.ID, "kind", rec.Kind, "ref", rec.RefID)
		return rec, err
	}
	if err != nil {
		auditWriteFailures.WithLabelValues(string(rec.Kind)).Inc()
		l.Logger.Error("audit write failed", "id", rec.ID, "kind", rec.Kind, "contentRef", rec.ContentRef, "author", rec.AuthorID, "err", err)
		l.Alert(ctx, fmt.Sprintf("audit write failed: kind=%s id=%s content=%s author=%s: %s", rec.Kind, rec.ID, rec.ContentRef, rec.AuthorID, err))
		return rec, fmt.Errorf("audit record %s: %w", rec.ID, err)
	}
	auditRecords.WithLabelValues(string(rec.Kind)).Inc()
	return rec, nil
}

// Alert sends msg to the Alerter, if any, even if ctx is already done.
func (l *Logger) Alert(ctx context.Context, msg string) {
	if l.Alerter == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := l.Alerter.Alert(actx, msg); err != nil {
		l.Logger.Error("failed to send alert", "err", err)
	}
}
