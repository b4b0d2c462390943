package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spotter-social/spotter/automod/audit"
	"github.com/spotter-social/spotter/automod/catalog"
	"github.com/spotter-social/spotter/automod/classifier"
	"github.com/spotter-social/spotter/automod/countstore"
	"github.com/spotter-social/spotter/automod/enforce"
	"github.com/spotter-social/spotter/automod/flagstore"
	"github.com/spotter-social/spotter/automod/setstore"
	"github.com/spotter-social/spotter/automod/verdict"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("engine")

var (
	// the caller's deadline passed before a verdict was ready; the content must be treated as unpublished
	ErrPending = errors.New("moderation pending")
)

const (
	DefaultClassifierTimeout = 3 * time.Second

	// flagstore key holding audit ids of degraded decisions awaiting reconciliation
	ReconcileFlagKey = "reconcile/degraded"
	// setstore name of authors exempt from low-severity enforcement
	SetTrustedAuthors = "trusted-authors"

	CounterRuleHits         = "rule-hits"
	CounterAuthorViolations = "author-violations"
	CounterVerdicts         = "verdicts"
	// distinct authors per rule
	CounterRuleAuthors = "rule-authors"

	// writes after a verdict is produced get their own budget, independent of the caller
	writeTimeout = 10 * time.Second
)

// runtime for moderating content, enforcing verdicts, and recording decisions.
//
// NOTE: several fields must not be nil even though they are pointer or interface types; see EngineTestFixture for a minimal setup.
type Engine struct {
	Logger   *slog.Logger
	Rules    *catalog.Holder
	Composer Composer
	// optional; without one every verdict is custom-rules only, and not degraded
	Classifier        classifier.Classifier
	ClassifierTimeout time.Duration
	Enforcer          *enforce.Enforcer
	Audit             *audit.Logger
	Counters          countstore.CountStore
	Sets              setstore.SetStore
	Flags             flagstore.FlagStore
	// used to re-read content during reconciliation (optional)
	Fetcher  ContentFetcher
	Notifier Notifier

	detector atomic.Pointer[Detector]
}

// Detector returns the active positive-signal detector.
func (eng *Engine) Detector() *Detector {
	if d := eng.detector.Load(); d != nil {
		return d
	}
	return DefaultDetector()
}

func (eng *Engine) SetDetector(d *Detector) {
	eng.detector.Store(d)
}

// ReloadVocabulary rebuilds the positive-signal detector from the setstore.
func (eng *Engine) ReloadVocabulary(ctx context.Context) error {
	d, err := LoadDetector(ctx, eng.Sets)
	if err != nil {
		return err
	}
	eng.SetDetector(d)
	return nil
}

// ReloadRules validates and publishes the catalog in file p. On error the active catalog is unchanged.
func (eng *Engine) ReloadRules(p string) (*catalog.Catalog, error) {
	cat, err := catalog.LoadFile(p)
	if err != nil {
		eng.Logger.Error("rule catalog reload failed, keeping active catalog", "path", p, "err", err)
		return nil, err
	}
	eng.Rules.Swap(cat)
	eng.Logger.Info("rule catalog reloaded", "rules", cat.Len())
	return cat, nil
}

func (eng *Engine) classify(ctx context.Context, content string) (*classifier.Scores, error) {
	if eng.Classifier == nil {
		return nil, nil
	}
	timeout := eng.ClassifierTimeout
	if timeout <= 0 {
		timeout = DefaultClassifierTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return eng.Classifier.Classify(ctx, content)
}

// Moderate produces a verdict for one piece of content. Custom rules and the external classifier run concurrently; if the classifier fails or times out the verdict is built from custom rules alone and marked degraded.
//
// Moderate has no side effects beyond metrics and logging: identical content, context, catalog and classifier response give an identical result.
func (eng *Engine) Moderate(ctx context.Context, content string, cc ContentContext) (*ModerationResult, error) {
	ctx, span := tracer.Start(ctx, "Moderate")
	defer span.End()
	start := time.Now()

	var ms MatchSet
	var ps PositiveSignal
	var scores *classifier.Scores
	var classErr error

	var g errgroup.Group
	g.Go(func() (err error) {
		// similar to an HTTP server, we want to recover any panics from rule execution
		defer func() {
			if r := recover(); r != nil {
				eng.Logger.Error("rule evaluation exception", "err", r, "contentType", cc.ContentType)
				err = fmt.Errorf("rule evaluation panic: %v", r)
			}
		}()
		ms = Evaluate(eng.Rules.Load(), content, cc)
		ps = eng.Detector().Detect(content)
		return nil
	})
	g.Go(func() error {
		scores, classErr = eng.classify(ctx, content)
		return nil
	})
	if err := g.Wait(); err != nil {
		moderationErrorCount.Inc()
		return nil, err
	}
	if ctx.Err() != nil {
		pendingCount.Inc()
		return nil, fmt.Errorf("%w: %w", ErrPending, ctx.Err())
	}

	degraded := classErr != nil
	if degraded {
		degradedCount.Inc()
		eng.Logger.Warn("external classifier unavailable, using custom rules only", "err", classErr)
	}
	res := eng.Composer.Compose(ms, scores, ps, degraded)

	verdictCount.WithLabelValues(string(res.Action)).Inc()
	for _, m := range ms {
		ruleHitCount.WithLabelValues(m.Rule.ID).Inc()
	}
	moderationDuration.WithLabelValues(string(res.Source)).Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("action", string(res.Action)),
		attribute.Int("severity", res.Severity),
		attribute.Bool("degraded", res.Degraded),
	)
	return &res, nil
}

// Submit moderates a submission, applies enforcement to the author, and records the decision.
//
// A verdict is always returned together with a nil error, an enforcement write error, or ErrPending (in which case there is no verdict and the disposition is hold). Audit write failures are alerted on, and reported through Outcome.AuditFailed, not as an error.
func (eng *Engine) Submit(ctx context.Context, sub Submission) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "Submit", trace.WithAttributes(
		attribute.String("contentRef", sub.ContentRef),
		attribute.String("contentType", string(sub.Context.ContentType)),
	))
	defer span.End()
	logger := eng.Logger.With("contentRef", sub.ContentRef, "author", sub.AuthorID, "contentType", sub.Context.ContentType)

	res, err := eng.Moderate(ctx, sub.Content, sub.Context)
	if err != nil {
		if errors.Is(err, ErrPending) {
			logger.Warn("moderation pending, caller deadline passed")
			return &Outcome{Disposition: DispositionHold}, ErrPending
		}
		logger.Error("moderation failed", "err", err)
		return &Outcome{Disposition: DispositionHold}, err
	}
	out := &Outcome{
		Verdict:     res,
		Disposition: DispositionFor(res),
	}

	// the verdict exists; finish recording it even if the caller stops waiting
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	enf, enfErr := eng.enforce(wctx, sub.AuthorID, res, nil)
	out.Enforcement = enf

	rec, auditErr := eng.Audit.Append(wctx, &audit.Record{
		Kind:        audit.KindDecision,
		ContentRef:  sub.ContentRef,
		AuthorID:    sub.AuthorID,
		Context:     sub.Context,
		Verdict:     res,
		Enforcement: enf,
	})
	out.AuditID = rec.ID
	out.AuditFailed = auditErr != nil

	if res.Degraded {
		// the queue holds audit ids, so without a record there is nothing to reconcile against
		var qerr error
		if auditErr != nil {
			qerr = fmt.Errorf("no audit record: %w", auditErr)
		} else {
			qerr = eng.Flags.Add(wctx, ReconcileFlagKey, []string{rec.ID})
		}
		if qerr != nil {
			logger.Error("degraded verdict not queued for reconciliation", "audit", rec.ID, "contentRef", sub.ContentRef, "err", qerr)
			eng.Audit.Alert(wctx, fmt.Sprintf("degraded verdict not queued for reconciliation: content=%s author=%s action=%s: %s", sub.ContentRef, sub.AuthorID, res.Action, qerr))
		}
	}
	if err := eng.persistCounters(wctx, sub.AuthorID, res); err != nil {
		logger.Warn("failed to persist counters", "err", err)
	}
	if eng.Notifier != nil && shouldNotify(rec) {
		if err := eng.Notifier.SendDecision(wctx, rec); err != nil {
			logger.Error("sending decision notification", "err", err)
		}
	}

	eng.canonicalLogLine(logger, rec, enfErr)
	if enfErr != nil {
		return out, enfErr
	}
	return out, nil
}

// enforce applies a verdict to the author, unless the author is trusted and the violation minor. prev, when set, is the enforcement res replaces.
func (eng *Engine) enforce(ctx context.Context, authorID string, res *ModerationResult, prev *enforce.Result) (*enforce.Result, error) {
	if !res.IsViolation() {
		return nil, nil
	}
	if res.Action == verdict.ActionFlagged && !res.RequiresHumanReview && res.Severity <= 2 {
		trusted, err := eng.Sets.InSet(ctx, SetTrustedAuthors, authorID)
		if err != nil {
			eng.Logger.Warn("trusted author lookup failed", "author", authorID, "err", err)
		} else if trusted {
			return nil, nil
		}
	}
	if prev.Changed() {
		return eng.Enforcer.Supersede(ctx, authorID, prev, res)
	}
	return eng.Enforcer.Enforce(ctx, authorID, res)
}

func (eng *Engine) persistCounters(ctx context.Context, authorID string, res *ModerationResult) error {
	var errs []error
	errs = append(errs, eng.Counters.Increment(ctx, CounterVerdicts, string(res.Action)))
	for _, c := range res.Categories {
		errs = append(errs, eng.Counters.Increment(ctx, CounterRuleHits, c.RuleID))
		errs = append(errs, eng.Counters.IncrementDistinct(ctx, CounterRuleAuthors, c.RuleID, authorID))
	}
	if res.IsViolation() {
		errs = append(errs, eng.Counters.Increment(ctx, CounterAuthorViolations, authorID))
	}
	return errors.Join(errs...)
}

func (eng *Engine) canonicalLogLine(logger *slog.Logger, rec *audit.Record, enfErr error) {
	v := rec.Verdict
	args := []any{
		"audit", rec.ID,
		"action", v.Action,
		"severity", v.Severity,
		"confidence", v.Confidence,
		"source", v.Source,
		"primaryRule", v.PrimaryRuleID,
		"review", v.RequiresHumanReview,
		"degraded", v.Degraded,
	}
	if rec.Enforcement != nil {
		args = append(args, "enforcement", rec.Enforcement.ActionTaken, "reputation", rec.Enforcement.Reputation)
	}
	if enfErr != nil {
		args = append(args, "enforcementErr", enfErr)
	}
	logger.Info("canonical-moderation-line", args...)
}

// AccountStatus reads an author's enforcement status, applying any pending suspension expiry.
func (eng *Engine) AccountStatus(ctx context.Context, userID string) (*enforce.StatusView, error) {
	return eng.Enforcer.Status(ctx, userID)
}

// GetCounts reads one counter for every period.
func (eng *Engine) GetCounts(ctx context.Context, name, val string) (map[string]int, error) {
	return countstore.GetCounts(ctx, eng.Counters, name, val)
}

// GetCountsDistinct reads the number of distinct values recorded in a bucket, for every period.
func (eng *Engine) GetCountsDistinct(ctx context.Context, name, bucket string) (map[string]int, error) {
	out := make(map[string]int, len(countstore.Periods))
	for _, p := range countstore.Periods {
		c, err := eng.Counters.GetCountDistinct(ctx, name, bucket, p)
		if err != nil {
			return nil, fmt.Errorf("reading distinct %s count %s/%s: %w", p, name, bucket, err)
		}
		out[p] = c
	}
	return out, nil
}

// checks if `val` is an element of set `name`
func (eng *Engine) InSet(ctx context.Context, name, val string) (bool, error) {
	return eng.Sets.InSet(ctx, name, val)
}
