// Package irc maintains a resilient connection to one of a prioritized list
// of IRC servers: connect, register, join, detect silent death via keepalive
// probes, and reconnect forever with exponential backoff. Outbound moderation
// commands are issued through the same supervised session.
package irc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alphababoon/alphababoon/automod"
)

// ConnState is the supervisor's lifecycle state.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateJoining      ConnState = "joining"
	StateActive       ConnState = "active"
	StateReconnecting ConnState = "reconnecting"
)

var (
	// ErrNoSession is returned for outbound commands when no active session
	// became available within the configured wait.
	ErrNoSession = errors.New("no active server session")

	errZombieSession = errors.New("keepalive probe unanswered, session presumed dead")
	errForced        = errors.New("reconnect forced externally")
	errJoinTimeout   = errors.New("channel joins not confirmed in time")
)

type SupervisorConfig struct {
	Nick     string
	Channels []string

	Servers        []ServerDescriptor
	PreferredIndex int

	Backoff BackoffPolicy

	// KeepaliveInterval is how often a PING probe is sent on an idle-looking
	// session; PongGrace is how long an unanswered probe is tolerated.
	KeepaliveInterval time.Duration
	PongGrace         time.Duration

	// JoinTimeout bounds the registration-to-joined window per connection.
	JoinTimeout time.Duration

	// SendWait bounds how long an outbound command waits for an active
	// session before failing with ErrNoSession.
	SendWait time.Duration
}

func (c *SupervisorConfig) withDefaults() {
	if c.Backoff == (BackoffPolicy{}) {
		c.Backoff = DefaultBackoffPolicy()
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 5 * time.Minute
	}
	if c.PongGrace <= 0 {
		c.PongGrace = 45 * time.Second
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 90 * time.Second
	}
	if c.SendWait <= 0 {
		c.SendWait = 30 * time.Second
	}
}

// Status is a point-in-time snapshot for health checks and the status wire.
type Status struct {
	State          ConnState
	Server         string
	JoinedChannels []string
	ConnectedSince time.Time
}

// Supervisor owns the connection lifecycle and fans decoded channel messages
// out to a consumer. It also implements automod.ActionSender, so remediation
// commands ride the supervised session.
type Supervisor struct {
	Logger *slog.Logger
	Config SupervisorConfig
	Dialer Dialer

	msgs chan automod.MessageEvent

	// forceReconnect is poked by the health monitor when the session looks
	// alive at the TCP level but the bot has fallen out of its channels.
	forceReconnect chan struct{}

	mu       sync.Mutex
	state    ConnState
	session  Session
	server   ServerDescriptor
	joined   map[string]bool
	since    time.Time
	activeCh chan struct{} // closed while state == StateActive
}

func NewSupervisor(logger *slog.Logger, cfg SupervisorConfig, dialer Dialer) *Supervisor {
	cfg.withDefaults()
	return &Supervisor{
		Logger:         logger.With("system", "irc"),
		Config:         cfg,
		Dialer:         dialer,
		msgs:           make(chan automod.MessageEvent, 256),
		forceReconnect: make(chan struct{}, 1),
		state:          StateDisconnected,
		joined:         make(map[string]bool),
		activeCh:       make(chan struct{}),
	}
}

// Messages yields inbound channel messages across reconnects. Closed when
// Run returns.
func (sv *Supervisor) Messages() <-chan automod.MessageEvent {
	return sv.msgs
}

// ForceReconnect asks the supervisor to drop the current session and redo
// the connect/join sequence. Safe to call from any goroutine; coalesces.
func (sv *Supervisor) ForceReconnect(reason string) {
	sv.Logger.Warn("reconnect forced", "reason", reason)
	forcedReconnects.Inc()
	select {
	case sv.forceReconnect <- struct{}{}:
	default:
	}
}

func (sv *Supervisor) Status() Status {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	st := Status{
		State:          sv.state,
		ConnectedSince: sv.since,
	}
	if sv.state != StateDisconnected && sv.state != StateReconnecting {
		st.Server = sv.server.String()
	}
	for ch, ok := range sv.joined {
		if ok {
			st.JoinedChannels = append(st.JoinedChannels, ch)
		}
	}
	return st
}

// Run drives the connect/serve/reconnect loop until ctx is cancelled. Always
// returns nil after a clean shutdown; the process-fatal path is a programmer
// error like an empty server list.
func (sv *Supervisor) Run(ctx context.Context) error {
	if len(sv.Config.Servers) == 0 {
		return fmt.Errorf("no servers configured")
	}
	defer close(sv.msgs)

	attempt := 0
	serverIdx := sv.Config.PreferredIndex

	for {
		if ctx.Err() != nil {
			return nil
		}

		server := sv.Config.Servers[serverIdx%len(sv.Config.Servers)]
		sv.setState(StateConnecting, server)
		sv.Logger.Info("connecting", "server", server.String(), "attempt", attempt)
		connectAttempts.Inc()

		err := sv.runSession(ctx, server)
		sv.setState(StateReconnecting, server)
		if ctx.Err() != nil {
			return nil
		}

		if errors.Is(err, errSessionWasActive) {
			// the connection worked; start the next cycle fresh on the
			// preferred server
			attempt = 0
			serverIdx = sv.Config.PreferredIndex
			sv.Logger.Warn("session lost, reconnecting", "server", server.String())
		} else {
			sv.Logger.Warn("connection attempt failed", "server", server.String(), "err", err)
			attempt++
			serverIdx++
		}

		if sv.Config.Backoff.CycleExhausted(attempt) {
			sv.Logger.Warn("retry cycle exhausted, entering extended cooldown",
				"cooldown", sv.Config.Backoff.ExtendedCooldown)
			if !sleepOrDone(ctx, sv.Config.Backoff.ExtendedCooldown) {
				return nil
			}
			attempt = 0
			serverIdx = sv.Config.PreferredIndex
			continue
		}

		delay := sv.Config.Backoff.Delay(attempt)
		sv.Logger.Info("waiting before reconnect", "delay", delay)
		if !sleepOrDone(ctx, delay) {
			return nil
		}
	}
}

// errSessionWasActive marks a disconnect that happened after the session
// reached the active state, which resets the backoff cycle.
var errSessionWasActive = errors.New("session ended after reaching active state")

// runSession owns one connection from dial to disconnect.
func (sv *Supervisor) runSession(ctx context.Context, server ServerDescriptor) error {
	sess, err := sv.Dialer.Dial(ctx, server, sv.Config.Nick)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close("au revoir") }()

	sv.mu.Lock()
	sv.session = sess
	sv.joined = make(map[string]bool)
	sv.mu.Unlock()
	defer sv.clearSession()

	wasActive := false
	joinDeadline := time.NewTimer(sv.Config.JoinTimeout)
	defer joinDeadline.Stop()

	keepalive := time.NewTicker(sv.Config.KeepaliveInterval)
	defer keepalive.Stop()
	// pongDeadline only runs while a probe is outstanding
	pongDeadline := time.NewTimer(time.Hour)
	pongDeadline.Stop()
	defer pongDeadline.Stop()
	awaitingPong := false

	fail := func(reason error) error {
		if wasActive {
			return fmt.Errorf("%w: %w", errSessionWasActive, reason)
		}
		return reason
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-sv.forceReconnect:
			return fail(errForced)

		case <-joinDeadline.C:
			if !wasActive {
				return errJoinTimeout
			}

		case <-keepalive.C:
			if awaitingPong {
				continue
			}
			token := fmt.Sprintf("keepalive-%d", time.Now().Unix())
			if err := sess.Send(ctx, Command{Verb: "PING", Params: []string{token}}); err != nil {
				return fail(fmt.Errorf("keepalive send: %w", err))
			}
			keepalivePings.Inc()
			awaitingPong = true
			pongDeadline.Reset(sv.Config.PongGrace)

		case <-pongDeadline.C:
			if awaitingPong {
				zombieSessions.Inc()
				return fail(errZombieSession)
			}

		case ev, ok := <-sess.Events():
			if !ok {
				return fail(errors.New("event stream closed"))
			}
			switch ev := ev.(type) {
			case EventRegistered:
				sv.Logger.Info("registered", "server", ev.ServerName)
				sv.setState(StateJoining, server)
				for _, ch := range sv.Config.Channels {
					if err := sess.Send(ctx, Command{Verb: "JOIN", Params: []string{ch}}); err != nil {
						return fail(fmt.Errorf("join send: %w", err))
					}
				}

			case EventJoined:
				if !ev.Self {
					continue
				}
				sv.Logger.Info("joined channel", "channel", ev.Channel)
				if sv.markJoined(ev.Channel) && !wasActive {
					wasActive = true
					joinDeadline.Stop()
					sv.setActive(server)
					sessionsEstablished.Inc()
				}

			case EventParted:
				if !ev.Self {
					continue
				}
				// the health monitor decides whether to force a reconnect
				sv.Logger.Warn("removed from channel", "channel", ev.Channel)
				sv.markParted(ev.Channel)

			case EventMessage:
				select {
				case sv.msgs <- ev.Msg:
				default:
					sv.Logger.Warn("message buffer full, dropping message",
						"channel", ev.Msg.Channel, "user", ev.Msg.UserID)
				}

			case EventPong:
				awaitingPong = false
				pongDeadline.Stop()

			case EventDisconnected:
				return fail(fmt.Errorf("disconnected: %w", ev.Reason))
			}
		}
	}
}

// markJoined records a confirmed self-join and reports whether every
// configured channel is now joined.
func (sv *Supervisor) markJoined(channel string) bool {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	sv.joined[channel] = true
	for _, ch := range sv.Config.Channels {
		if !sv.joined[ch] {
			return false
		}
	}
	return true
}

func (sv *Supervisor) markParted(channel string) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	delete(sv.joined, channel)
}

func (sv *Supervisor) setState(st ConnState, server ServerDescriptor) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	if sv.state == StateActive && st != StateActive {
		// re-arm the gate outbound commands wait on
		sv.activeCh = make(chan struct{})
		sv.since = time.Time{}
	}
	sv.state = st
	sv.server = server
	connState.Set(stateGaugeValue(st))
}

func (sv *Supervisor) setActive(server ServerDescriptor) {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	sv.state = StateActive
	sv.server = server
	sv.since = time.Now()
	close(sv.activeCh)
	connState.Set(stateGaugeValue(StateActive))
}

func (sv *Supervisor) clearSession() {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	sv.session = nil
	if sv.state == StateActive {
		sv.activeCh = make(chan struct{})
	}
	sv.state = StateDisconnected
	sv.since = time.Time{}
	connState.Set(stateGaugeValue(StateDisconnected))
}

// waitActive blocks until a session is active, the send wait elapses, or ctx
// is cancelled. Returns the live session.
func (sv *Supervisor) waitActive(ctx context.Context) (Session, error) {
	deadline := time.NewTimer(sv.Config.SendWait)
	defer deadline.Stop()
	for {
		sv.mu.Lock()
		gate := sv.activeCh
		sess := sv.session
		active := sv.state == StateActive
		sv.mu.Unlock()
		if active && sess != nil {
			return sess, nil
		}
		select {
		case <-gate:
			// state changed; loop and re-check
		case <-deadline.C:
			return nil, ErrNoSession
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (sv *Supervisor) send(ctx context.Context, cmd Command) error {
	sess, err := sv.waitActive(ctx)
	if err != nil {
		return err
	}
	return sess.Send(ctx, cmd)
}

// SendMessage delivers a PRIVMSG to a channel or nick.
func (sv *Supervisor) SendMessage(ctx context.Context, target, text string) error {
	return sv.send(ctx, Command{Verb: "PRIVMSG", Params: []string{target, text}})
}

// RelocateUser forcibly moves a user between channels using IRC services
// commands, placing a temporary ban so an automatic rejoin cannot race the
// move.
func (sv *Supervisor) RelocateUser(ctx context.Context, user, fromChannel, toChannel, reason string) error {
	if err := sv.send(ctx, Command{Verb: "SAPART", Params: []string{user, fromChannel, reason}}); err != nil {
		return fmt.Errorf("sapart %s: %w", user, err)
	}
	if err := sv.send(ctx, Command{Verb: "MODE", Params: []string{fromChannel, "+b", banMask(user)}}); err != nil {
		return fmt.Errorf("ban %s: %w", user, err)
	}
	if err := sv.send(ctx, Command{Verb: "SAJOIN", Params: []string{user, toChannel}}); err != nil {
		return fmt.Errorf("sajoin %s: %w", user, err)
	}
	relocations.Inc()
	return nil
}

// LiftRejoinGuard removes the temporary ban placed by RelocateUser.
func (sv *Supervisor) LiftRejoinGuard(ctx context.Context, user, channel string) error {
	return sv.send(ctx, Command{Verb: "MODE", Params: []string{channel, "-b", banMask(user)}})
}

func banMask(nick string) string {
	return nick + "!*@*"
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
