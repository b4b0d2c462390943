package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spotter-social/spotter/automod/enforce"
	"github.com/spotter-social/spotter/automod/verdict"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func flagged(severity int, review bool) *verdict.ModerationResult {
	return &verdict.ModerationResult{
		Action:              verdict.ActionFlagged,
		Severity:            severity,
		RequiresHumanReview: review,
		ReviewPriority:      verdict.PriorityForSeverity(severity),
		Appealable:          true,
	}
}

func testGormStore(t *testing.T) *GormStore {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	s := NewGormStore(db)
	require.NoError(t, s.AutoMigrate())
	return s
}

func testStores(t *testing.T) map[string]Store {
	return map[string]Store{
		"mem":  NewMemStore(),
		"gorm": testGormStore(t),
	}
}

func TestStoreReviewQueue(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			ctx := context.Background()

			recs := []Record{
				{ID: "a", Kind: KindDecision, AuthorID: "user-1", Verdict: flagged(3, true), CreatedAt: t0},
				{ID: "b", Kind: KindDecision, AuthorID: "user-2", Verdict: flagged(5, true), CreatedAt: t0.Add(time.Minute)},
				{ID: "c", Kind: KindDecision, AuthorID: "user-1", Verdict: flagged(4, true), CreatedAt: t0.Add(2 * time.Minute)},
				{ID: "d", Kind: KindDecision, AuthorID: "user-1", Verdict: flagged(2, false), CreatedAt: t0.Add(3 * time.Minute)},
				{ID: "e", Kind: KindDecision, AuthorID: "user-3", Verdict: flagged(4, true), CreatedAt: t0.Add(4 * time.Minute)},
			}
			for i := range recs {
				require.NoError(store.Append(ctx, &recs[i]))
			}

			q, err := store.ReviewQueue(ctx, 0)
			require.NoError(err)
			ids := []string{}
			for _, r := range q {
				ids = append(ids, r.ID)
			}
			assert.Equal([]string{"b", "c", "e", "a"}, ids)

			// reviewing closes an item
			require.NoError(store.Append(ctx, &Record{ID: "r1", Kind: KindReview, RefID: "c", AuthorID: "user-1", ReviewDecision: ReviewUphold, Moderator: "mod-1", CreatedAt: t0.Add(time.Hour)}))
			q, err = store.ReviewQueue(ctx, 2)
			require.NoError(err)
			require.Len(q, 2)
			assert.Equal("b", q[0].ID)
			assert.Equal("e", q[1].ID)
			assert.Equal(verdict.ActionFlagged, q[0].Verdict.Action)

			hist, err := store.History(ctx, "user-1", 0)
			require.NoError(err)
			require.Len(hist, 4)
			assert.Equal("r1", hist[0].ID)
			assert.Equal("a", hist[3].ID)

			hist, err = store.History(ctx, "user-1", 2)
			require.NoError(err)
			assert.Len(hist, 2)

			rel, err := store.Related(ctx, "c")
			require.NoError(err)
			require.Len(rel, 1)
			assert.Equal(ReviewUphold, rel[0].ReviewDecision)

			rec, err := store.Get(ctx, "b")
			require.NoError(err)
			assert.Equal(5, rec.Verdict.Severity)
			assert.True(rec.CreatedAt.Equal(t0.Add(time.Minute)))

			_, err = store.Get(ctx, "missing")
			assert.ErrorIs(err, ErrNotFound)

			// append only
			assert.ErrorIs(store.Append(ctx, &Record{ID: "a", Kind: KindDecision, CreatedAt: t0}), ErrDuplicate)
		})
	}
}

func TestStoreClaims(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			ctx := context.Background()

			require.NoError(store.Append(ctx, &Record{ID: "d1", Kind: KindDecision, AuthorID: "user-1", Verdict: flagged(3, true), CreatedAt: t0}))
			require.NoError(store.Append(ctx, &Record{ID: "d2", Kind: KindDecision, AuthorID: "user-1", Verdict: flagged(4, true), CreatedAt: t0.Add(time.Minute)}))

			// one review per record
			require.NoError(store.Append(ctx, &Record{ID: "rv1", Kind: KindReview, RefID: "d1", ReviewDecision: ReviewOverturn, Moderator: "mod-1", CreatedAt: t0.Add(time.Hour)}))
			err := store.Append(ctx, &Record{ID: "rv2", Kind: KindReview, RefID: "d1", ReviewDecision: ReviewUphold, Moderator: "mod-2", CreatedAt: t0.Add(time.Hour)})
			assert.ErrorIs(err, ErrDuplicate)
			_, err = store.Get(ctx, "rv2")
			assert.ErrorIs(err, ErrNotFound)

			// one reconcile per decision, independent of its review
			require.NoError(store.Append(ctx, &Record{ID: "rc1", Kind: KindReconcile, RefID: "d1", Verdict: flagged(4, true), CreatedAt: t0.Add(2 * time.Hour)}))
			assert.ErrorIs(store.Append(ctx, &Record{ID: "rc2", Kind: KindReconcile, RefID: "d1", Verdict: flagged(4, true), CreatedAt: t0.Add(2 * time.Hour)}), ErrDuplicate)

			// reversals do not claim
			require.NoError(store.Append(ctx, &Record{ID: "x1", Kind: KindReversal, RefID: "rc1", CreatedAt: t0.Add(3 * time.Hour)}))
			require.NoError(store.Append(ctx, &Record{ID: "x2", Kind: KindReversal, RefID: "d1", CreatedAt: t0.Add(3 * time.Hour)}))

			// a reversed record is off the queue; d1 is reviewed, rc1 reversed
			require.NoError(store.Append(ctx, &Record{ID: "x3", Kind: KindReversal, RefID: "d2", CreatedAt: t0.Add(4 * time.Hour)}))
			q, err := store.ReviewQueue(ctx, 0)
			require.NoError(err)
			assert.Empty(q)
		})
	}
}

func TestLoggerRecord(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	store := NewMemStore()
	l := NewLogger(store, nil, nil)
	l.Now = func() time.Time { return t0 }

	enf := &enforce.Result{UserID: "user-1", ActionTaken: enforce.ActionWarn, ReputationDelta: -15}
	rec, err := l.Record(ctx, flagged(3, true), enf, "post/123", "user-1")
	require.NoError(err)
	assert.NotEmpty(rec.ID)
	assert.Equal(KindDecision, rec.Kind)
	assert.Equal(t0, rec.CreatedAt)

	got, err := store.Get(ctx, rec.ID)
	require.NoError(err)
	assert.Equal("post/123", got.ContentRef)
	assert.Equal(enforce.ActionWarn, got.Enforcement.ActionTaken)
}

type failingStore struct {
	MemStore
}

func (s *failingStore) Append(ctx context.Context, rec *Record) error {
	return errors.New("disk full")
}

type recordingAlerter struct {
	mu   sync.Mutex
	msgs []string
}

func (a *recordingAlerter) Alert(ctx context.Context, msg string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, msg)
	return nil
}

func TestLoggerDuplicateDoesNotAlert(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	alerter := &recordingAlerter{}
	l := NewLogger(NewMemStore(), alerter, nil)
	_, err := l.Append(ctx, &Record{Kind: KindReview, RefID: "d1", Moderator: "mod-1", ReviewDecision: ReviewUphold})
	require.NoError(err)
	_, err = l.Append(ctx, &Record{Kind: KindReview, RefID: "d1", Moderator: "mod-2", ReviewDecision: ReviewUphold})
	assert.ErrorIs(err, ErrDuplicate)
	assert.Empty(alerter.msgs)
}

func TestLoggerWriteFailureAlerts(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	alerter := &recordingAlerter{}
	l := NewLogger(&failingStore{}, alerter, nil)

	v := flagged(4, true)
	rec, err := l.Record(ctx, v, nil, "comment/9", "user-9")
	assert.Error(err)
	// the caller still gets the record and verdict
	assert.NotNil(rec)
	assert.Equal(v, rec.Verdict)
	assert.Len(alerter.msgs, 1)
	assert.Contains(alerter.msgs[0], "disk full")
	assert.Contains(alerter.msgs[0], "comment/9")
}
