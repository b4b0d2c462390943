package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spotter-social/spotter/pkg/metrics"
	"github.com/spotter-social/spotter/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "spotter",
		Usage:   "content moderation service for the fitness community",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"SPOTTER_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format: text or json",
			EnvVars: []string{"SPOTTER_LOG_FMT", "LOG_FMT"},
		},
		&cli.StringFlag{
			Name:    "rules-file",
			Usage:   "violation rule catalog (JSON or YAML); the compiled-in catalog is used if not set",
			EnvVars: []string{"SPOTTER_RULES_FILE"},
		},
		&cli.StringFlag{
			Name:    "sets-file",
			Usage:   "named string sets (trusted authors, fitness vocabulary) as JSON or YAML",
			EnvVars: []string{"SPOTTER_SETS_FILE"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		checkCmd,
		rulesCmd,
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context) (*slog.Logger, error) {
	return cliutil.SetupSlog(cliutil.LogOptions{
		LogLevel:  cctx.String("log-level"),
		LogFormat: cctx.String("log-format"),
	})
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the moderation service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3400",
			EnvVars: []string{"SPOTTER_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3401",
			EnvVars: []string{"SPOTTER_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "enforcement and audit database; in-memory stores are used if not set",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   40,
			EnvVars: []string{"SPOTTER_MAX_DB_CONNECTIONS"},
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "emit OpenTelemetry spans for database queries",
			EnvVars: []string{"SPOTTER_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL, for counters, flags and classifier cache",
			EnvVars: []string{"SPOTTER_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "classifier-host",
			Usage:   "external content classifier base URL; custom rules only if not set",
			EnvVars: []string{"SPOTTER_CLASSIFIER_HOST"},
		},
		&cli.StringFlag{
			Name:    "classifier-api-key",
			EnvVars: []string{"SPOTTER_CLASSIFIER_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "classifier-model",
			EnvVars: []string{"SPOTTER_CLASSIFIER_MODEL"},
		},
		&cli.Float64Flag{
			Name:    "classifier-rate-limit",
			Usage:   "max requests per second to the external classifier",
			Value:   20,
			EnvVars: []string{"SPOTTER_CLASSIFIER_RATE_LIMIT"},
		},
		&cli.DurationFlag{
			Name:    "classifier-timeout",
			Usage:   "how long to wait for the external classifier before returning a degraded verdict",
			Value:   3 * time.Second,
			EnvVars: []string{"SPOTTER_CLASSIFIER_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "content-host",
			Usage:   "platform content API, used to re-read content during reconciliation",
			EnvVars: []string{"SPOTTER_CONTENT_HOST"},
		},
		&cli.StringFlag{
			Name:    "content-token",
			EnvVars: []string{"SPOTTER_CONTENT_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "admin-url",
			Usage:   "base URL of the moderation admin UI, for links in notifications",
			EnvVars: []string{"SPOTTER_ADMIN_URL"},
		},
		&cli.StringFlag{
			Name:    "admin-password",
			Usage:   "basic auth password for /admin endpoints (user 'admin')",
			EnvVars: []string{"SPOTTER_ADMIN_PASSWORD"},
		},
		&cli.StringSliceFlag{
			Name:    "kafka-brokers",
			Usage:   "kafka bootstrap servers for enforcement events; events are only logged if not set",
			EnvVars: []string{"SPOTTER_KAFKA_BROKERS"},
		},
		&cli.StringFlag{
			Name:    "kafka-topic",
			Value:   "spotter-enforcement",
			EnvVars: []string{"SPOTTER_KAFKA_TOPIC"},
		},
		&cli.DurationFlag{
			Name:    "expiry-sweep-interval",
			Usage:   "how often to lift ended suspensions which nobody has read",
			Value:   5 * time.Minute,
			EnvVars: []string{"SPOTTER_EXPIRY_SWEEP_INTERVAL"},
		},
		&cli.StringFlag{
			Name:    "recovery-schedule",
			Usage:   "cron schedule for the reputation recovery pass",
			Value:   "0 4 * * *",
			EnvVars: []string{"SPOTTER_RECOVERY_SCHEDULE"},
		},
		&cli.DurationFlag{
			Name:    "reconcile-interval",
			Usage:   "how often to re-moderate degraded verdicts",
			Value:   10 * time.Minute,
			EnvVars: []string{"SPOTTER_RECONCILE_INTERVAL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger, err := configLogger(cctx)
		if err != nil {
			return err
		}

		shutdownOTEL := configOTEL(ctx, "spotter")
		defer shutdownOTEL()

		srv, err := NewServer(ctx, Config{
			Logger:              logger,
			Bind:                cctx.String("bind"),
			DatabaseURL:         cctx.String("database-url"),
			MaxDBConnections:    cctx.Int("max-db-connections"),
			DBTracing:           cctx.Bool("db-tracing"),
			RedisURL:            cctx.String("redis-url"),
			RulesFile:           cctx.String("rules-file"),
			SetsFile:            cctx.String("sets-file"),
			ClassifierHost:      cctx.String("classifier-host"),
			ClassifierAPIKey:    cctx.String("classifier-api-key"),
			ClassifierModel:     cctx.String("classifier-model"),
			ClassifierRateLimit: cctx.Float64("classifier-rate-limit"),
			ClassifierTimeout:   cctx.Duration("classifier-timeout"),
			ContentHost:         cctx.String("content-host"),
			ContentToken:        cctx.String("content-token"),
			SlackWebhookURL:     cctx.String("slack-webhook-url"),
			AdminURL:            cctx.String("admin-url"),
			AdminPassword:       cctx.String("admin-password"),
			KafkaBrokers:        cctx.StringSlice("kafka-brokers"),
			KafkaTopic:          cctx.String("kafka-topic"),
			ExpirySweepInterval: cctx.Duration("expiry-sweep-interval"),
			RecoverySchedule:    cctx.String("recovery-schedule"),
			ReconcileInterval:   cctx.Duration("reconcile-interval"),
		})
		if err != nil {
			return err
		}
		defer srv.Close()

		go func() {
			if err := metrics.RunServer(ctx, stop, cctx.String("metrics-listen"), logger); err != nil {
				logger.Error("failed to start metrics endpoint", "error", err)
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run spotter service: %w", err)
		}
		return nil
	},
}
