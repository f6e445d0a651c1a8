package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alphababoon/alphababoon/automod"
	"github.com/alphababoon/alphababoon/automod/cachestore"
	"github.com/alphababoon/alphababoon/automod/keyword"
	"github.com/alphababoon/alphababoon/automod/ledger"
	"github.com/alphababoon/alphababoon/automod/oracle"
	"github.com/alphababoon/alphababoon/automod/setstore"
	"github.com/alphababoon/alphababoon/health"
	"github.com/alphababoon/alphababoon/irc"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	logger     *slog.Logger
	supervisor *irc.Supervisor
	engine     *automod.Engine
	monitor    *health.Monitor
	rdb        *redis.Client
}

type Config struct {
	Logger *slog.Logger

	Nick             string
	ServersJSON      string
	ServerPassword   string
	MonitoredChannel string
	RedirectChannel  string
	SetsFileJSON     string

	OpenAIToken string
	OpenAIHost  string
	OpenAIModel string

	Sensitivity         float64
	Cooldown            time.Duration
	ResetWindow         time.Duration
	RejoinGuard         time.Duration
	MoveDelay           time.Duration
	WelcomeDelay        time.Duration
	ClassifierRateLimit float64
	Concurrency         int
	ExemptOps           bool

	RedisURL  string
	CacheTTL  time.Duration
	CacheSize int

	KeepaliveInterval time.Duration
	PongGrace         time.Duration
	Backoff           irc.BackoffPolicy

	HealthInterval         time.Duration
	HealthProbeTimeout     time.Duration
	HealthFailureThreshold int
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	if !strings.HasPrefix(config.MonitoredChannel, "#") || !strings.HasPrefix(config.RedirectChannel, "#") {
		return nil, fmt.Errorf("channel names must start with '#'")
	}
	if config.MonitoredChannel == config.RedirectChannel {
		return nil, fmt.Errorf("monitored and redirect channels must differ")
	}

	servers, preferred, err := irc.LoadServersJSON(config.ServersJSON)
	if err != nil {
		return nil, fmt.Errorf("loading server list: %w", err)
	}
	logger.Info("loaded server list", "servers", len(servers), "preferred", preferred)

	sets := setstore.NewMemSetStore()
	if config.SetsFileJSON != "" {
		if err := sets.LoadFromFileJSON(config.SetsFileJSON); err != nil {
			return nil, fmt.Errorf("initializing in-process setstore: %w", err)
		}
		logger.Info("loaded set config from JSON", "path", config.SetsFileJSON)
	}

	var keywords *keyword.Heuristic
	if terms := sets.Values(setstore.SetExplicitKeywords); len(terms) > 0 {
		keywords, err = keyword.NewHeuristic(terms, nil)
		if err != nil {
			return nil, fmt.Errorf("building keyword heuristic: %w", err)
		}
		logger.Info("keyword heuristic enabled", "terms", len(terms))
	}

	var cache cachestore.CacheStore
	var violations ledger.Ledger
	var rdb *redis.Client
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %w", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, config.CacheTTL, config.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %w", err)
		}
		cache = csh

		led, err := ledger.NewRedisLedger(config.RedisURL, 24*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("initializing redis ledger: %w", err)
		}
		violations = led
	} else {
		cache = cachestore.NewMemCacheStore(config.CacheSize, config.CacheTTL)
		violations = ledger.NewMemLedger()
	}

	classifier := oracle.NewOpenAIClient(config.OpenAIToken)
	if config.OpenAIHost != "" {
		classifier.Host = config.OpenAIHost
	}
	if config.OpenAIModel != "" {
		classifier.Model = config.OpenAIModel
	}

	supervisor := irc.NewSupervisor(logger, irc.SupervisorConfig{
		Nick:              config.Nick,
		Channels:          []string{config.MonitoredChannel, config.RedirectChannel},
		Servers:           servers,
		PreferredIndex:    preferred,
		Backoff:           config.Backoff,
		KeepaliveInterval: config.KeepaliveInterval,
		PongGrace:         config.PongGrace,
	}, &irc.NetDialer{
		Logger:         logger,
		ServerPassword: config.ServerPassword,
	})

	healthState := &health.State{}
	engine := &automod.Engine{
		Logger: logger,
		Config: automod.EngineConfig{
			MonitoredChannel: config.MonitoredChannel,
			RedirectChannel:  config.RedirectChannel,
			Sensitivity:      config.Sensitivity,
			Cooldown:         config.Cooldown,
			ResetWindow:      config.ResetWindow,
			MoveDelay:        config.MoveDelay,
			WelcomeDelay:     config.WelcomeDelay,
			RejoinGuard:      config.RejoinGuard,
			OracleRateLimit:  config.ClassifierRateLimit,
			ExemptOps:        config.ExemptOps,
			Concurrency:      config.Concurrency,
		},
		Oracle:              classifier,
		Cache:               cache,
		Ledger:              violations,
		Sets:                sets,
		Keywords:            keywords,
		Rotator:             automod.NewMessageRotator(config.RedirectChannel),
		Sender:              supervisor,
		ReportOracleFailure: healthState.RecordOracleFailure,
	}

	monitor := health.NewMonitor(logger, health.MonitorConfig{
		Interval:         config.HealthInterval,
		FailureThreshold: config.HealthFailureThreshold,
		ProbeTimeout:     config.HealthProbeTimeout,
		ExpectedChannels: []string{config.MonitoredChannel, config.RedirectChannel},
	}, supervisor, classifier, healthState)

	return &Server{
		logger:     logger,
		supervisor: supervisor,
		engine:     engine,
		monitor:    monitor,
		rdb:        rdb,
	}, nil
}

// Run drives the supervisor, pipeline, and health monitor until ctx is
// cancelled or one of them fails.
func (s *Server) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.supervisor.Run(ctx)
	})
	eg.Go(func() error {
		return s.engine.Run(ctx, s.supervisor.Messages())
	})
	eg.Go(func() error {
		return s.monitor.Run(ctx)
	})

	err := eg.Wait()
	s.logger.Info("shutdown complete")
	return err
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}
