package engine

import (
	"log/slog"

	"github.com/spotter-social/spotter/automod/audit"
	"github.com/spotter-social/spotter/automod/catalog"
	"github.com/spotter-social/spotter/automod/classifier"
	"github.com/spotter-social/spotter/automod/countstore"
	"github.com/spotter-social/spotter/automod/enforce"
	"github.com/spotter-social/spotter/automod/events"
	"github.com/spotter-social/spotter/automod/flagstore"
	"github.com/spotter-social/spotter/automod/setstore"
)

// EngineTestFixture returns an engine wired entirely to in-memory stores, with the default catalog and a classifier which never flags anything.
func EngineTestFixture() *Engine {
	logger := slog.Default()
	sets := setstore.NewMemSetStore()
	sets.Put(SetTrustedAuthors, []string{"coach-anna"})
	return &Engine{
		Logger:     logger,
		Rules:      catalog.NewHolder(catalog.MustDefault()),
		Classifier: classifier.NewNoop(),
		Enforcer:   enforce.NewEnforcer(enforce.NewMemStore(), enforce.DefaultPolicy(), logger, &events.MemPublisher{}),
		Audit:      audit.NewLogger(audit.NewMemStore(), nil, logger),
		Counters:   countstore.NewMemCountStore(),
		Sets:       sets,
		Flags:      flagstore.NewMemFlagStore(),
		Fetcher:    NewMemContentFetcher(),
	}
}
