package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spotter-social/spotter/automod"
	"github.com/spotter-social/spotter/automod/audit"
	"github.com/spotter-social/spotter/automod/cachestore"
	"github.com/spotter-social/spotter/automod/catalog"
	"github.com/spotter-social/spotter/automod/classifier"
	"github.com/spotter-social/spotter/automod/countstore"
	"github.com/spotter-social/spotter/automod/enforce"
	"github.com/spotter-social/spotter/automod/engine"
	"github.com/spotter-social/spotter/automod/events"
	"github.com/spotter-social/spotter/automod/flagstore"
	"github.com/spotter-social/spotter/automod/setstore"
	"github.com/spotter-social/spotter/internal/ticker"
	"github.com/spotter-social/spotter/util/cliutil"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/sync/errgroup"
	"gorm.io/plugin/opentelemetry/tracing"
)

// registered once per process
var httpMetrics = echoprometheus.NewMiddleware("spotter")

type Server struct {
	echo    *echo.Echo
	httpd   *http.Server
	engine  *automod.Engine
	logger  *slog.Logger
	config  Config
	closers []io.Closer
}

type Config struct {
	Logger              *slog.Logger
	Bind                string
	DatabaseURL         string
	MaxDBConnections    int
	DBTracing           bool
	RedisURL            string
	RulesFile           string
	SetsFile            string
	ClassifierHost      string
	ClassifierAPIKey    string
	ClassifierModel     string
	ClassifierRateLimit float64
	ClassifierTimeout   time.Duration
	ContentHost         string
	ContentToken        string
	SlackWebhookURL     string
	AdminURL            string
	AdminPassword       string
	KafkaBrokers        []string
	KafkaTopic          string
	ExpirySweepInterval time.Duration
	RecoverySchedule    string
	ReconcileInterval   time.Duration
}

// NewServer wires the engine to its backing stores from config, then sets up the HTTP API.
func NewServer(ctx context.Context, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	var closers []io.Closer

	cat := catalog.MustDefault()
	if config.RulesFile != "" {
		c, err := catalog.LoadFile(config.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("loading rule catalog: %w", err)
		}
		cat = c
		logger.Info("loaded rule catalog", "path", config.RulesFile, "rules", cat.Len())
	}

	sets := setstore.NewMemSetStore()
	if config.SetsFile != "" {
		if err := sets.LoadFromFile(config.SetsFile); err != nil {
			return nil, fmt.Errorf("initializing in-process setstore: %w", err)
		}
		logger.Info("loaded set config", "path", config.SetsFile)
	}

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var flags flagstore.FlagStore
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb := redis.NewClient(opt)
		// check redis connection
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}
		closers = append(closers, rdb)
		counters = countstore.NewRedisCountStoreFromClient(rdb)
		flags = flagstore.NewRedisFlagStoreFromClient(rdb)
		cache = cachestore.NewRedisCacheStoreFromClient(rdb, 30*time.Minute, 10_000)
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, 30*time.Minute)
		flags = flagstore.NewMemFlagStore()
	}

	var accounts enforce.Store
	var records audit.Store
	if config.DatabaseURL != "" {
		db, err := cliutil.SetupDatabase(config.DatabaseURL, config.MaxDBConnections, logger)
		if err != nil {
			return nil, err
		}
		if config.DBTracing {
			if err := db.Use(tracing.NewPlugin()); err != nil {
				return nil, err
			}
		}
		as := enforce.NewGormStore(db)
		if err := as.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrating enforcement tables: %w", err)
		}
		rs := audit.NewGormStore(db)
		if err := rs.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("migrating audit tables: %w", err)
		}
		accounts, records = as, rs
	} else {
		logger.Warn("no database configured, enforcement and audit state will not persist")
		accounts, records = enforce.NewMemStore(), audit.NewMemStore()
	}

	var pub events.Publisher = &events.LogPublisher{Logger: logger}
	if len(config.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(config.KafkaBrokers, config.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("initializing kafka publisher: %w", err)
		}
		pub = kp
		closers = append(closers, kp)
	}

	var slack *automod.SlackNotifier
	if config.SlackWebhookURL != "" {
		slack = engine.NewSlackNotifier(config.SlackWebhookURL, config.AdminURL)
	}

	eng := &automod.Engine{
		Logger:            logger,
		Rules:             catalog.NewHolder(cat),
		ClassifierTimeout: config.ClassifierTimeout,
		Enforcer:          enforce.NewEnforcer(accounts, enforce.DefaultPolicy(), logger, pub),
		Counters:          counters,
		Sets:              sets,
		Flags:             flags,
	}
	if slack != nil {
		eng.Notifier = slack
		eng.Audit = audit.NewLogger(records, slack, logger)
	} else {
		eng.Audit = audit.NewLogger(records, nil, logger)
	}
	if config.ClassifierHost != "" {
		logger.Info("configuring external content classifier", "host", config.ClassifierHost)
		eng.Classifier = classifier.NewHTTPClient(classifier.HTTPClientConfig{
			Host:      config.ClassifierHost,
			APIKey:    config.ClassifierAPIKey,
			Model:     config.ClassifierModel,
			RateLimit: config.ClassifierRateLimit,
			Cache:     cache,
			Logger:    logger,
		})
	} else {
		logger.Warn("no external classifier configured, moderating with custom rules only")
	}
	if config.ContentHost != "" {
		eng.Fetcher = engine.NewHTTPContentFetcher(config.ContentHost, config.ContentToken, logger)
	}
	if err := eng.ReloadVocabulary(ctx); err != nil {
		return nil, err
	}

	srv := newServer(eng, config, logger)
	srv.closers = closers
	return srv, nil
}

func newServer(eng *automod.Engine, config Config, logger *slog.Logger) *Server {
	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		echo:   e,
		engine: eng,
		logger: logger,
		config: config,
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(otelecho.Middleware("spotter"))
	e.Use(httpMetrics)
	e.HTTPErrorHandler = srv.errorHandler
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))

	e.GET("/_health", srv.HandleHealthCheck)
	e.POST("/v1/moderate", srv.HandleModerate)
	e.GET("/v1/accounts/:id/status", srv.HandleAccountStatus)

	admin := e.Group("/admin")
	if config.AdminPassword != "" {
		admin.Use(middleware.BasicAuth(func(user, pass string, c echo.Context) (bool, error) {
			ok := subtle.ConstantTimeCompare([]byte(user), []byte("admin")) == 1 &&
				subtle.ConstantTimeCompare([]byte(pass), []byte(config.AdminPassword)) == 1
			return ok, nil
		}))
	} else {
		logger.Warn("admin endpoints are not protected; set an admin password")
	}
	admin.GET("/review-queue", srv.HandleReviewQueue)
	admin.GET("/audit/:id", srv.HandleGetAudit)
	admin.POST("/audit/:id/review", srv.HandleReview)
	admin.GET("/accounts/:id", srv.HandleAdminAccount)
	admin.GET("/accounts/:id/history", srv.HandleAccountHistory)
	admin.GET("/rules", srv.HandleListRules)
	admin.POST("/rules/reload", srv.HandleReloadRules)
	admin.POST("/reconcile", srv.HandleReconcile)
	admin.GET("/counts", srv.HandleCounts)

	return srv
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

// Run serves the HTTP API and the background maintenance loops until ctx is done.
func (srv *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srv.logger.Info("starting server", "bind", srv.httpd.Addr)
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server shutting down unexpectedly: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown()
	})
	g.Go(func() error {
		return srv.RunExpirySweeps(ctx)
	})
	g.Go(func() error {
		return srv.RunReconcile(ctx)
	})
	g.Go(func() error {
		return srv.RunRecovery(ctx)
	})

	err := g.Wait()
	srv.logger.Info("graceful shutdown complete")
	return err
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.httpd.Shutdown(ctx)
}

func (srv *Server) Close() {
	for _, c := range srv.closers {
		if err := c.Close(); err != nil {
			srv.logger.Error("closing backend", "err", err)
		}
	}
}

// lifts ended suspensions of accounts which have not been read since they ended
func (srv *Server) RunExpirySweeps(ctx context.Context) error {
	if srv.config.ExpirySweepInterval <= 0 {
		return nil
	}
	return ignoreCanceled(ticker.Periodically(ctx, srv.config.ExpirySweepInterval, ticker.Tolerant(srv.logger, "expiry-sweep", func(ctx context.Context) error {
		_, err := srv.engine.Enforcer.SweepExpired(ctx)
		return err
	})))
}

func (srv *Server) RunReconcile(ctx context.Context) error {
	if srv.config.ReconcileInterval <= 0 || srv.engine.Fetcher == nil || srv.engine.Classifier == nil {
		return nil
	}
	return ignoreCanceled(ticker.Periodically(ctx, srv.config.ReconcileInterval, ticker.Tolerant(srv.logger, "reconcile", func(ctx context.Context) error {
		_, err := srv.engine.Reconcile(ctx)
		return err
	})))
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (srv *Server) RunRecovery(ctx context.Context) error {
	if srv.config.RecoverySchedule == "" {
		return nil
	}
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(srv.config.RecoverySchedule, func() {
		if _, err := srv.engine.Enforcer.Recover(ctx); err != nil {
			srv.logger.Error("reputation recovery pass failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid recovery schedule %q: %w", srv.config.RecoverySchedule, err)
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
