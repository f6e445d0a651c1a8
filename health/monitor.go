// Package health runs periodic self-checks against the two failure modes the
// connection layer cannot see on its own: being connected but absent from
// the monitored channels, and a classifier backend that has stopped
// answering.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alphababoon/alphababoon/automod/oracle"
	"github.com/alphababoon/alphababoon/irc"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var checksRun = promauto.NewCounter(prometheus.CounterOpts{
	Name: "alphababoon_health_checks",
	Help: "Number of periodic health check passes",
})

var checkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "alphababoon_health_check_failures",
	Help: "Number of failed health checks, by subsystem",
}, []string{"subsystem"})

// State accumulates consecutive failure counts per subsystem. The engine
// feeds classifier call failures in between monitor passes; a successful
// probe or call resets the counter.
type State struct {
	mu             sync.Mutex
	connFailures   int
	oracleFailures int
}

func (s *State) RecordOracleFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oracleFailures++
}

func (s *State) recordOracleSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oracleFailures = 0
}

func (s *State) oracleFailureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oracleFailures
}

type MonitorConfig struct {
	// Interval between check passes.
	Interval time.Duration

	// FailureThreshold is how many consecutive failed passes a subsystem
	// tolerates before the monitor intervenes.
	FailureThreshold int

	// ProbeTimeout bounds each classifier probe.
	ProbeTimeout time.Duration

	// ExpectedChannels the supervisor must report as joined while active.
	ExpectedChannels []string
}

func (c *MonitorConfig) withDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 10 * time.Second
	}
}

// ConnectionController is the slice of the supervisor the monitor acts on.
type ConnectionController interface {
	Status() irc.Status
	ForceReconnect(reason string)
}

type Monitor struct {
	Logger     *slog.Logger
	Config     MonitorConfig
	Supervisor ConnectionController
	Oracle     oracle.Classifier
	State      *State
}

func NewMonitor(logger *slog.Logger, cfg MonitorConfig, sv ConnectionController, cls oracle.Classifier, st *State) *Monitor {
	cfg.withDefaults()
	if st == nil {
		st = &State{}
	}
	return &Monitor{
		Logger:     logger.With("system", "health"),
		Config:     cfg,
		Supervisor: sv,
		Oracle:     cls,
		State:      st,
	}
}

// Run executes check passes until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.Config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.runPass(ctx)
		}
	}
}

func (m *Monitor) runPass(ctx context.Context) {
	checksRun.Inc()
	m.checkConnection()
	m.checkOracle(ctx)
}

// checkConnection flags an active session that is missing expected channels.
// A session mid-reconnect is the supervisor's own problem and does not count
// as a failure here.
func (m *Monitor) checkConnection() {
	st := m.Supervisor.Status()
	if st.State != irc.StateActive {
		return
	}

	joined := make(map[string]bool, len(st.JoinedChannels))
	for _, ch := range st.JoinedChannels {
		joined[ch] = true
	}
	var missing []string
	for _, ch := range m.Config.ExpectedChannels {
		if !joined[ch] {
			missing = append(missing, ch)
		}
	}
	if len(missing) == 0 {
		m.State.mu.Lock()
		m.State.connFailures = 0
		m.State.mu.Unlock()
		return
	}

	checkFailures.WithLabelValues("connection").Inc()
	m.State.mu.Lock()
	m.State.connFailures++
	failures := m.State.connFailures
	m.State.mu.Unlock()
	m.Logger.Warn("active session missing channels", "missing", missing, "failures", failures)

	if failures >= m.Config.FailureThreshold {
		m.State.mu.Lock()
		m.State.connFailures = 0
		m.State.mu.Unlock()
		m.Supervisor.ForceReconnect("missing expected channels")
	}
}

// checkOracle probes the classifier. Failures accumulate and are surfaced in
// logs and metrics only; a dead classifier never takes down the connection.
func (m *Monitor) checkOracle(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.Config.ProbeTimeout)
	defer cancel()

	if err := m.Oracle.Probe(probeCtx); err != nil {
		checkFailures.WithLabelValues("oracle").Inc()
		m.State.RecordOracleFailure()
		failures := m.State.oracleFailureCount()
		if failures >= m.Config.FailureThreshold {
			m.Logger.Error("classifier persistently unavailable", "failures", failures, "err", err)
		} else {
			m.Logger.Warn("classifier probe failed", "failures", failures, "err", err)
		}
		return
	}
	m.State.recordOracleSuccess()
}
