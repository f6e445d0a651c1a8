package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/alphababoon/alphababoon/automod"

	ircv4 "gopkg.in/irc.v4"
)

// NetDialer opens real TCP or TLS connections and speaks the IRC wire
// protocol through gopkg.in/irc.v4.
type NetDialer struct {
	Logger *slog.Logger

	// ConnectTimeout bounds the TCP/TLS dial; defaults to 15s.
	ConnectTimeout time.Duration

	// ServerPassword is sent as PASS during registration when non-empty.
	ServerPassword string
}

func (d *NetDialer) Dial(ctx context.Context, server ServerDescriptor, nick string) (Session, error) {
	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	nd := &net.Dialer{Timeout: timeout}
	var conn net.Conn
	var err error
	if server.TLS {
		td := &tls.Dialer{NetDialer: nd, Config: &tls.Config{ServerName: server.Hostname}}
		conn, err = td.DialContext(ctx, "tcp", server.Addr())
	} else {
		conn, err = nd.DialContext(ctx, "tcp", server.Addr())
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", server, err)
	}

	s := &netSession{
		log:    logger.With("server", server.String()),
		conn:   conn,
		nick:   nick,
		events: make(chan Event, 64),
		ops:    make(map[string]map[string]bool),
	}
	s.client = ircv4.NewClient(conn, ircv4.ClientConfig{
		Nick:    nick,
		User:    nick,
		Name:    nick,
		Pass:    d.ServerPassword,
		Handler: ircv4.HandlerFunc(s.handle),
	})

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		runErr := s.client.RunContext(runCtx)
		s.deliver(EventDisconnected{Reason: runErr})
		close(s.events)
	}()
	return s, nil
}

type netSession struct {
	log    *slog.Logger
	conn   net.Conn
	client *ircv4.Client
	cancel context.CancelFunc
	events chan Event

	mu     sync.Mutex
	closed bool
	// nick is our own current nick, updated from 001 and NICK messages
	nick string
	// ops tracks channel operator status per channel, fed by NAMES replies
	// and MODE changes
	ops map[string]map[string]bool
}

func (s *netSession) currentNick() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nick
}

func (s *netSession) setNick(nick string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nick = nick
}

func (s *netSession) Events() <-chan Event {
	return s.events
}

func (s *netSession) Send(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.client.WriteMessage(&ircv4.Message{
		Command: cmd.Verb,
		Params:  cmd.Params,
	})
}

func (s *netSession) Close(farewell string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if farewell != "" {
		// best effort; the server may already be gone
		_ = s.client.WriteMessage(&ircv4.Message{Command: "QUIT", Params: []string{farewell}})
	}
	s.cancel()
	return s.conn.Close()
}

// deliver drops events on the floor if the supervisor has stopped draining,
// rather than wedging the read loop.
func (s *netSession) deliver(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("event buffer full, dropping event")
	}
}

func (s *netSession) handle(_ *ircv4.Client, m *ircv4.Message) {
	switch m.Command {
	case "001":
		// first param is the nick the server actually registered us under
		if len(m.Params) > 0 {
			s.setNick(m.Params[0])
		}
		name := ""
		if m.Prefix != nil {
			name = m.Prefix.Name
		}
		s.deliver(EventRegistered{ServerName: name})

	case "NICK":
		if m.Prefix == nil || len(m.Params) == 0 {
			return
		}
		if strings.EqualFold(m.Prefix.Name, s.currentNick()) {
			s.setNick(m.Params[0])
		}
		s.renameNick(m.Prefix.Name, m.Params[0])

	case "JOIN":
		if len(m.Params) == 0 || m.Prefix == nil {
			return
		}
		nick := m.Prefix.Name
		s.deliver(EventJoined{
			Channel: m.Params[0],
			Nick:    nick,
			Self:    strings.EqualFold(nick, s.currentNick()),
		})

	case "PART":
		if len(m.Params) == 0 || m.Prefix == nil {
			return
		}
		nick := m.Prefix.Name
		s.deliver(EventParted{
			Channel: m.Params[0],
			Nick:    nick,
			Self:    strings.EqualFold(nick, s.currentNick()),
		})
		s.recordDeparture(m)

	case "PRIVMSG":
		if len(m.Params) < 2 || m.Prefix == nil {
			return
		}
		target := m.Params[0]
		if !strings.HasPrefix(target, "#") {
			return
		}
		nick := m.Prefix.Name
		s.deliver(EventMessage{Msg: automod.MessageEvent{
			Channel:     target,
			UserID:      strings.ToLower(nick),
			DisplayName: nick,
			Text:        m.Trailing(),
			UserIsOp:    s.isOp(target, nick),
			ReceivedAt:  time.Now(),
		}})

	case "PONG":
		s.deliver(EventPong{Token: m.Trailing()})

	case "353": // RPL_NAMREPLY: <nick> <symbol> <channel> :prefixed nicks
		if len(m.Params) < 4 {
			return
		}
		s.recordNames(m.Params[2], strings.Fields(m.Params[3]))

	case "MODE":
		s.recordMode(m.Params)

	case "KICK":
		if len(m.Params) >= 2 {
			target := m.Params[1]
			s.deliver(EventParted{
				Channel: m.Params[0],
				Nick:    target,
				Self:    strings.EqualFold(target, s.currentNick()),
			})
		}
		s.recordDeparture(m)

	case "QUIT":
		s.recordDeparture(m)
	}
}

// renameNick moves a user's operator entries to their new nick.
func (s *netSession) renameNick(from, to string) {
	old, next := strings.ToLower(from), strings.ToLower(to)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chOps := range s.ops {
		if chOps[old] {
			delete(chOps, old)
			chOps[next] = true
		}
	}
}

func (s *netSession) isOp(channel, nick string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops[strings.ToLower(channel)][strings.ToLower(nick)]
}

func (s *netSession) recordNames(channel string, entries []string) {
	ch := strings.ToLower(channel)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ops[ch] == nil {
		s.ops[ch] = make(map[string]bool)
	}
	for _, entry := range entries {
		trimmed := strings.TrimLeft(entry, "~&@%+")
		if trimmed == "" {
			continue
		}
		// @ anywhere in the stripped prefix run means channel operator
		prefix := entry[:len(entry)-len(trimmed)]
		if strings.ContainsAny(prefix, "~&@") {
			s.ops[ch][strings.ToLower(trimmed)] = true
		}
	}
}

func (s *netSession) recordMode(params []string) {
	// MODE <channel> <changes> <args...>
	if len(params) < 3 || !strings.HasPrefix(params[0], "#") {
		return
	}
	ch := strings.ToLower(params[0])
	changes, args := params[1], params[2:]

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ops[ch] == nil {
		s.ops[ch] = make(map[string]bool)
	}
	adding := true
	argIdx := 0
	for _, r := range changes {
		switch r {
		case '+':
			adding = true
		case '-':
			adding = false
		case 'o':
			if argIdx < len(args) {
				nick := strings.ToLower(args[argIdx])
				if adding {
					s.ops[ch][nick] = true
				} else {
					delete(s.ops[ch], nick)
				}
			}
			argIdx++
		case 'b', 'v', 'h', 'k', 'l', 'e', 'I', 'q':
			// parameterized modes we do not track
			argIdx++
		}
	}
}

func (s *netSession) recordDeparture(m *ircv4.Message) {
	if m.Prefix == nil {
		return
	}
	nick := strings.ToLower(m.Prefix.Name)
	if m.Command == "KICK" && len(m.Params) >= 2 {
		nick = strings.ToLower(m.Params[1])
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Command == "QUIT" {
		for _, chOps := range s.ops {
			delete(chOps, nick)
		}
		return
	}
	if len(m.Params) > 0 {
		delete(s.ops[strings.ToLower(m.Params[0])], nick)
	}
}
