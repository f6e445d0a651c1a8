package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alphababoon/alphababoon/irc"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "alphababoon",
		Usage:   "IRC channel moderation daemon (keeps the troop in line)",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the bot",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "nick",
			Usage:   "IRC nick to register as",
			Value:   "AlphaBaboon",
			EnvVars: []string{"ALPHABABOON_NICK"},
		},
		&cli.StringFlag{
			Name:    "servers-json",
			Usage:   "path to JSON file listing IRC servers in failover order",
			Value:   "servers.json",
			EnvVars: []string{"ALPHABABOON_SERVERS_JSON"},
		},
		&cli.StringFlag{
			Name:    "server-password",
			Usage:   "IRC server password, if the network requires one",
			EnvVars: []string{"ALPHABABOON_SERVER_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "monitored-channel",
			Usage:   "channel to moderate",
			Value:   "#accueil",
			EnvVars: []string{"ALPHABABOON_MONITORED_CHANNEL"},
		},
		&cli.StringFlag{
			Name:    "redirect-channel",
			Usage:   "channel users are moved to",
			Value:   "#apero",
			EnvVars: []string{"ALPHABABOON_REDIRECT_CHANNEL"},
		},
		&cli.StringFlag{
			Name:    "sets-json",
			Usage:   "path to JSON file with trusted users and explicit keyword sets",
			EnvVars: []string{"ALPHABABOON_SETS_JSON"},
		},
		&cli.StringFlag{
			Name:     "openai-api-token",
			Usage:    "API token for the moderation classifier",
			Required: true,
			EnvVars:  []string{"OPENAI_API_TOKEN", "OPENAI_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "openai-host",
			Usage:   "method, hostname, and port of the classifier API",
			Value:   "https://api.openai.com",
			EnvVars: []string{"OPENAI_HOST"},
		},
		&cli.StringFlag{
			Name:    "openai-model",
			Usage:   "moderation model to request",
			Value:   "omni-moderation-latest",
			EnvVars: []string{"OPENAI_MODEL"},
		},
		&cli.Float64Flag{
			Name:    "sensitivity",
			Usage:   "violation threshold on the 0-10 severity scale",
			Value:   7.0,
			EnvVars: []string{"ALPHABABOON_SENSITIVITY"},
		},
		&cli.DurationFlag{
			Name:    "cooldown",
			Usage:   "minimum time between remediations of the same user",
			Value:   10 * time.Minute,
			EnvVars: []string{"ALPHABABOON_COOLDOWN"},
		},
		&cli.DurationFlag{
			Name:    "reset-window",
			Usage:   "quiet period after which a user's violation count restarts at one",
			Value:   time.Hour,
			EnvVars: []string{"ALPHABABOON_RESET_WINDOW"},
		},
		&cli.DurationFlag{
			Name:    "rejoin-guard",
			Usage:   "how long a relocated user is kept out of the monitored channel; 0 disables",
			Value:   10 * time.Minute,
			EnvVars: []string{"ALPHABABOON_REJOIN_GUARD"},
		},
		&cli.DurationFlag{
			Name:    "move-delay",
			Usage:   "pause between the explanation message and the relocation",
			Value:   3 * time.Second,
			EnvVars: []string{"ALPHABABOON_MOVE_DELAY"},
		},
		&cli.DurationFlag{
			Name:    "welcome-delay",
			Usage:   "pause between the relocation and the welcome message",
			Value:   5 * time.Second,
			EnvVars: []string{"ALPHABABOON_WELCOME_DELAY"},
		},
		&cli.Float64Flag{
			Name:    "classifier-rate-limit",
			Usage:   "max classifier requests per second",
			Value:   2,
			EnvVars: []string{"ALPHABABOON_CLASSIFIER_RATE_LIMIT"},
		},
		&cli.IntFlag{
			Name:    "pipeline-concurrency",
			Usage:   "number of parallel pipeline workers (per-user order is always kept)",
			Value:   8,
			EnvVars: []string{"ALPHABABOON_PIPELINE_CONCURRENCY"},
		},
		&cli.BoolFlag{
			Name:    "exempt-ops",
			Usage:   "skip analysis for channel operators",
			Value:   true,
			EnvVars: []string{"ALPHABABOON_EXEMPT_OPS"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for the decision cache and violation ledger; in-memory stores when empty",
			EnvVars: []string{"ALPHABABOON_REDIS_URL"},
		},
		&cli.DurationFlag{
			Name:    "cache-ttl",
			Usage:   "decision cache entry lifetime",
			Value:   30 * time.Minute,
			EnvVars: []string{"ALPHABABOON_CACHE_TTL"},
		},
		&cli.IntFlag{
			Name:    "cache-size",
			Usage:   "max number of decision cache entries",
			Value:   5_000,
			EnvVars: []string{"ALPHABABOON_CACHE_SIZE"},
		},
		&cli.DurationFlag{
			Name:    "keepalive-interval",
			Usage:   "interval between keepalive probes on the IRC session",
			Value:   5 * time.Minute,
			EnvVars: []string{"ALPHABABOON_KEEPALIVE_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "pong-grace",
			Usage:   "how long an unanswered keepalive probe is tolerated",
			Value:   45 * time.Second,
			EnvVars: []string{"ALPHABABOON_PONG_GRACE"},
		},
		&cli.DurationFlag{
			Name:    "backoff-base",
			Usage:   "first reconnect delay in a retry cycle",
			Value:   60 * time.Second,
			EnvVars: []string{"ALPHABABOON_BACKOFF_BASE"},
		},
		&cli.DurationFlag{
			Name:    "backoff-cap",
			Usage:   "max reconnect delay within a retry cycle",
			Value:   30 * time.Minute,
			EnvVars: []string{"ALPHABABOON_BACKOFF_CAP"},
		},
		&cli.IntFlag{
			Name:    "backoff-max-attempts",
			Usage:   "attempts per retry cycle before the extended cooldown",
			Value:   5,
			EnvVars: []string{"ALPHABABOON_BACKOFF_MAX_ATTEMPTS"},
		},
		&cli.DurationFlag{
			Name:    "backoff-extended-cooldown",
			Usage:   "wait after an exhausted retry cycle before starting fresh",
			Value:   15 * time.Minute,
			EnvVars: []string{"ALPHABABOON_BACKOFF_EXTENDED_COOLDOWN"},
		},
		&cli.DurationFlag{
			Name:    "health-interval",
			Usage:   "interval between health check passes",
			Value:   5 * time.Minute,
			EnvVars: []string{"ALPHABABOON_HEALTH_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "health-probe-timeout",
			Usage:   "timeout for the classifier probe in each health pass",
			Value:   10 * time.Second,
			EnvVars: []string{"ALPHABABOON_HEALTH_PROBE_TIMEOUT"},
		},
		&cli.IntFlag{
			Name:    "health-failure-threshold",
			Usage:   "consecutive failed passes before the monitor intervenes",
			Value:   3,
			EnvVars: []string{"ALPHABABOON_HEALTH_FAILURE_THRESHOLD"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"ALPHABABOON_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity (debug, info, warn, error)",
			Value:   "info",
			EnvVars: []string{"ALPHABABOON_LOG_LEVEL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx.String("log-level"))

		srv, err := NewServer(Config{
			Logger:              logger,
			Nick:                cctx.String("nick"),
			ServersJSON:         cctx.String("servers-json"),
			ServerPassword:      cctx.String("server-password"),
			MonitoredChannel:    cctx.String("monitored-channel"),
			RedirectChannel:     cctx.String("redirect-channel"),
			SetsFileJSON:        cctx.String("sets-json"),
			OpenAIToken:         cctx.String("openai-api-token"),
			OpenAIHost:          cctx.String("openai-host"),
			OpenAIModel:         cctx.String("openai-model"),
			Sensitivity:         cctx.Float64("sensitivity"),
			Cooldown:            cctx.Duration("cooldown"),
			ResetWindow:         cctx.Duration("reset-window"),
			RejoinGuard:         cctx.Duration("rejoin-guard"),
			MoveDelay:           cctx.Duration("move-delay"),
			WelcomeDelay:        cctx.Duration("welcome-delay"),
			ClassifierRateLimit: cctx.Float64("classifier-rate-limit"),
			Concurrency:         cctx.Int("pipeline-concurrency"),
			ExemptOps:           cctx.Bool("exempt-ops"),
			RedisURL:            cctx.String("redis-url"),
			CacheTTL:            cctx.Duration("cache-ttl"),
			CacheSize:           cctx.Int("cache-size"),
			KeepaliveInterval:   cctx.Duration("keepalive-interval"),
			PongGrace:           cctx.Duration("pong-grace"),
			Backoff: irc.BackoffPolicy{
				Base:             cctx.Duration("backoff-base"),
				Cap:              cctx.Duration("backoff-cap"),
				MaxAttempts:      cctx.Int("backoff-max-attempts"),
				ExtendedCooldown: cctx.Duration("backoff-extended-cooldown"),
			},
			HealthInterval:         cctx.Duration("health-interval"),
			HealthProbeTimeout:     cctx.Duration("health-probe-timeout"),
			HealthFailureThreshold: cctx.Int("health-failure-threshold"),
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				os.Exit(-1)
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return srv.Run(ctx)
	},
}

func configLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
	return logger
}
