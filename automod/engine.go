// Moderation pipeline for a monitored IRC channel: whitelist, decision
// cache, keyword heuristic, then the hosted classifier, followed by a
// staged remediation sequence (explain, relocate, welcome) for violations.
package automod

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alphababoon/alphababoon/automod/cachestore"
	"github.com/alphababoon/alphababoon/automod/keyword"
	"github.com/alphababoon/alphababoon/automod/ledger"
	"github.com/alphababoon/alphababoon/automod/oracle"
	"github.com/alphababoon/alphababoon/automod/setstore"

	"golang.org/x/time/rate"
)

// ActionSender is the narrow command sink the engine needs from the
// connection layer. Sends fail with an error when no session is active
// within a bounded wait; the engine logs and moves on.
type ActionSender interface {
	SendMessage(ctx context.Context, channel, text string) error
	RelocateUser(ctx context.Context, user, fromChannel, toChannel, reason string) error
	LiftRejoinGuard(ctx context.Context, user, channel string) error
}

type EngineConfig struct {
	MonitoredChannel string
	RedirectChannel  string

	// Sensitivity is the violation threshold on the normalized 0-10 score.
	Sensitivity float64

	Cooldown    time.Duration
	ResetWindow time.Duration

	MoveDelay    time.Duration
	WelcomeDelay time.Duration
	// RejoinGuard is how long a relocated user stays banned from the
	// monitored channel; zero disables the guard.
	RejoinGuard time.Duration

	OracleRateLimit float64 // classifier requests per second, process-wide
	ExemptOps       bool
	Concurrency     int
}

// Engine drives the decision pipeline and remediation for inbound message
// events.
//
// All fields except the nilable ones (Keywords, ReportOracleFailure) must be
// set before Run or ProcessMessage is called.
type Engine struct {
	Logger   *slog.Logger
	Config   EngineConfig
	Oracle   oracle.Classifier
	Cache    cachestore.CacheStore
	Ledger   ledger.Ledger
	Sets     setstore.SetStore
	Keywords *keyword.Heuristic
	Rotator  *MessageRotator
	Sender   ActionSender

	// ReportOracleFailure, when set, feeds classifier call failures into the
	// health monitor's failure counter.
	ReportOracleFailure func()

	// Now is the time source; defaults to time.Now. Injected so cooldown and
	// reset-window logic is deterministic under test.
	Now func() time.Time

	initOnce sync.Once
	limiter  *rate.Limiter
	guards   sync.WaitGroup
}

func (e *Engine) init() {
	e.initOnce.Do(func() {
		if e.Now == nil {
			e.Now = time.Now
		}
		if e.Logger == nil {
			e.Logger = slog.Default()
		}
		rps := e.Config.OracleRateLimit
		if rps <= 0 {
			rps = 10
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	})
}

// Run consumes message events until the context is cancelled or the channel
// closes. Distinct users are processed concurrently; each user's events and
// remediation sequences are strictly serialized.
func (e *Engine) Run(ctx context.Context, events <-chan MessageEvent) error {
	e.init()

	concurrency := e.Config.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	sched := newUserScheduler(concurrency, e.Logger, func(evt MessageEvent) {
		e.ProcessMessage(ctx, evt)
	})

	for {
		select {
		case <-ctx.Done():
			// stop accepting new events; let in-flight sequences finish or
			// abandon themselves at a message boundary
			sched.Shutdown()
			e.guards.Wait()
			return nil
		case evt, ok := <-events:
			if !ok {
				sched.Shutdown()
				e.guards.Wait()
				return nil
			}
			if evt.Channel != e.Config.MonitoredChannel {
				continue
			}
			if err := sched.AddWork(ctx, evt.UserID, evt); err != nil {
				// AddWork only fails when ctx ended while workers were busy;
				// that is a shutdown, not a crash
				sched.Shutdown()
				e.guards.Wait()
				return nil
			}
		}
	}
}

// ProcessMessage runs the full pipeline for one message event. Callers must
// not invoke this concurrently for the same user.
func (e *Engine) ProcessMessage(ctx context.Context, evt MessageEvent) {
	e.init()

	// as with an HTTP server, recover panics so one bad message cannot take
	// down the consumer loop
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error("message pipeline panic", "err", r, "user", evt.UserID, "channel", evt.Channel)
		}
	}()

	logger := e.Logger.With("user", evt.UserID, "channel", evt.Channel)
	messagesProcessed.Inc()

	if e.isTrusted(ctx, evt) {
		verdictsTaken.WithLabelValues(VerdictAllow, "whitelist").Inc()
		logger.Debug("trusted sender, skipping analysis")
		return
	}

	dec, stage := e.decide(ctx, logger, evt.Text)
	if dec == nil {
		// classifier unavailable: message stays unresolved for this pass
		return
	}
	verdictsTaken.WithLabelValues(dec.Classification, stage).Inc()
	if dec.Classification != VerdictViolation {
		return
	}

	logger.Warn("violation verdict", "score", dec.Score, "stage", stage)

	now := e.Now()
	rec, err := e.Ledger.RecordViolation(ctx, evt.UserID, now, e.Config.ResetWindow)
	if err != nil {
		logger.Error("ledger update failed", "err", err)
		return
	}
	if !rec.LastActionAt.IsZero() && now.Sub(rec.LastActionAt) < e.Config.Cooldown {
		actionsSuppressed.Inc()
		logger.Info("remediation suppressed by cooldown", "count", rec.Count, "lastActionAt", rec.LastActionAt)
		return
	}

	// mark before the staged sequence runs, so an interrupted sequence is
	// never re-charged after restart
	if err := e.Ledger.MarkActioned(ctx, evt.UserID, now); err != nil {
		logger.Error("ledger update failed", "err", err)
	}
	e.runRemediation(ctx, logger, evt, rec.Count, dec.Score)
}

// decide walks the cache, keyword, and classifier stages to a decision.
// Returns nil when the classifier failed and no verdict could be reached.
func (e *Engine) decide(ctx context.Context, logger *slog.Logger, text string) (*cachestore.Decision, string) {
	fp := Fingerprint(text)

	cached, err := e.Cache.Get(ctx, fp)
	if err != nil {
		logger.Warn("decision cache read failed", "err", err)
	}
	if cached != nil {
		cacheHits.Inc()
		return cached, "cache"
	}
	cacheMisses.Inc()

	var kwScore float64
	if e.Keywords != nil {
		kwScore = e.Keywords.Score(text)
	}
	if kwScore >= keyword.ShortCircuitScore {
		dec := cachestore.Decision{Classification: VerdictViolation, Score: kwScore}
		if err := e.Cache.Set(ctx, fp, dec); err != nil {
			logger.Warn("decision cache write failed", "err", err)
		}
		return &dec, "keyword"
	}

	cls, err := e.classify(ctx, text)
	if err != nil {
		oracleFailures.Inc()
		if e.ReportOracleFailure != nil {
			e.ReportOracleFailure()
		}
		// not cached, not a verdict: the next identical message re-attempts
		logger.Warn("classifier call failed, leaving message unresolved", "err", err)
		return nil, ""
	}

	// the classifier can under-score French slang the term lists know about,
	// so the heuristic score acts as a floor
	score := cls.Score
	if kwScore > score {
		score = kwScore
	}
	dec := cachestore.Decision{Classification: VerdictAllow, Score: score}
	if score >= e.Config.Sensitivity {
		dec.Classification = VerdictViolation
	}
	if err := e.Cache.Set(ctx, fp, dec); err != nil {
		logger.Warn("decision cache write failed", "err", err)
	}
	return &dec, "oracle"
}

func (e *Engine) classify(ctx context.Context, text string) (*oracle.Classification, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	oracleCalls.Inc()
	return e.Oracle.Classify(ctx, text)
}

func (e *Engine) isTrusted(ctx context.Context, evt MessageEvent) bool {
	if e.Config.ExemptOps && evt.UserIsOp {
		return true
	}
	ok, err := e.Sets.InSet(ctx, setstore.SetTrustedUsers, evt.UserID)
	if err != nil {
		e.Logger.Warn("trusted set lookup failed", "err", err, "user", evt.UserID)
		return false
	}
	return ok
}

// runRemediation executes the staged sequence: explanation in the monitored
// channel, then relocation, then a welcome in the redirect channel. The
// inter-step delays respect context cancellation, so shutdown abandons the
// sequence at a message boundary.
func (e *Engine) runRemediation(ctx context.Context, logger *slog.Logger, evt MessageEvent, count int, score float64) {
	cfg := e.Config
	actionsTaken.Inc()
	logger.Info("starting remediation sequence", "count", count, "score", score)

	explain := e.Rotator.RedirectMessage(evt.DisplayName)
	if err := e.Sender.SendMessage(ctx, cfg.MonitoredChannel, explain); err != nil {
		logger.Warn("explanation message failed", "err", err)
		return
	}

	if !sleepCtx(ctx, cfg.MoveDelay) {
		logger.Info("remediation abandoned before relocation")
		return
	}
	reason := "discussion plus appropriée sur " + cfg.RedirectChannel
	if err := e.Sender.RelocateUser(ctx, evt.DisplayName, cfg.MonitoredChannel, cfg.RedirectChannel, reason); err != nil {
		logger.Warn("relocation failed", "err", err)
		return
	}
	if cfg.RejoinGuard > 0 {
		e.scheduleGuardLift(ctx, evt.DisplayName)
	}

	if !sleepCtx(ctx, cfg.WelcomeDelay) {
		logger.Info("remediation abandoned before welcome")
		return
	}
	welcome := e.Rotator.WelcomeMessage(evt.DisplayName)
	if err := e.Sender.SendMessage(ctx, cfg.RedirectChannel, welcome); err != nil {
		logger.Warn("welcome message failed", "err", err)
		return
	}
	logger.Info("remediation sequence complete", "count", count)
}

// scheduleGuardLift removes the temporary channel ban placed during
// relocation, after the configured guard duration.
func (e *Engine) scheduleGuardLift(ctx context.Context, user string) {
	e.guards.Add(1)
	go func() {
		defer e.guards.Done()
		if !sleepCtx(ctx, e.Config.RejoinGuard) {
			// process is shutting down; the server drops the ban with the
			// session anyway
			return
		}
		if err := e.Sender.LiftRejoinGuard(ctx, user, e.Config.MonitoredChannel); err != nil {
			e.Logger.Warn("lifting rejoin guard failed", "err", err, "user", user)
		}
	}()
}

// sleepCtx waits d, returning false if the context was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
