package irc

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	ircv4 "gopkg.in/irc.v4"
)

func newTestSession() *netSession {
	return &netSession{
		log:    slog.Default(),
		nick:   "baboon",
		events: make(chan Event, 8),
		ops:    make(map[string]map[string]bool),
	}
}

func nextEvent(t *testing.T, s *netSession) Event {
	t.Helper()
	select {
	case ev := <-s.events:
		return ev
	default:
		t.Fatal("no event delivered")
		return nil
	}
}

func TestOpTrackingFromNames(t *testing.T) {
	assert := assert.New(t)

	s := newTestSession()
	s.recordNames("#Accueil", []string{"@GrandSage", "~Owner", "+voiced", "pleb"})

	assert.True(s.isOp("#accueil", "grandsage"))
	assert.True(s.isOp("#ACCUEIL", "owner"))
	assert.False(s.isOp("#accueil", "voiced"))
	assert.False(s.isOp("#accueil", "pleb"))
	assert.False(s.isOp("#autre", "grandsage"))
}

func TestOpTrackingFromModeChanges(t *testing.T) {
	assert := assert.New(t)

	s := newTestSession()

	s.recordMode([]string{"#accueil", "+o", "Bob"})
	assert.True(s.isOp("#accueil", "bob"))

	// +b consumes an argument without granting anything
	s.recordMode([]string{"#accueil", "+b-o", "lurker!*@*", "bob"})
	assert.False(s.isOp("#accueil", "bob"))
	assert.False(s.isOp("#accueil", "lurker"))

	s.recordMode([]string{"#accueil", "+oo", "alice", "carol"})
	assert.True(s.isOp("#accueil", "alice"))
	assert.True(s.isOp("#accueil", "carol"))

	// non-channel target ignored
	s.recordMode([]string{"baboon", "+i"})
}

func TestSelfDepartureEvents(t *testing.T) {
	assert := assert.New(t)

	s := newTestSession()

	s.handle(nil, &ircv4.Message{
		Prefix:  &ircv4.Prefix{Name: "Baboon"},
		Command: "PART",
		Params:  []string{"#accueil"},
	})
	assert.Equal(EventParted{Channel: "#accueil", Nick: "Baboon", Self: true}, nextEvent(t, s))

	s.handle(nil, &ircv4.Message{
		Prefix:  &ircv4.Prefix{Name: "someop"},
		Command: "KICK",
		Params:  []string{"#accueil", "baboon", "dehors"},
	})
	assert.Equal(EventParted{Channel: "#accueil", Nick: "baboon", Self: true}, nextEvent(t, s))

	// another user's departure is not ours
	s.handle(nil, &ircv4.Message{
		Prefix:  &ircv4.Prefix{Name: "bob"},
		Command: "PART",
		Params:  []string{"#accueil"},
	})
	assert.Equal(EventParted{Channel: "#accueil", Nick: "bob", Self: false}, nextEvent(t, s))
}

func TestNickTracking(t *testing.T) {
	assert := assert.New(t)

	s := newTestSession()

	// the server may register us under an altered nick
	s.handle(nil, &ircv4.Message{Command: "001", Params: []string{"baboon2", "welcome"}})
	assert.Equal("baboon2", s.currentNick())
	assert.Equal(EventRegistered{}, nextEvent(t, s))

	// a forced rename follows us
	s.handle(nil, &ircv4.Message{
		Prefix:  &ircv4.Prefix{Name: "baboon2"},
		Command: "NICK",
		Params:  []string{"baboon3"},
	})
	assert.Equal("baboon3", s.currentNick())

	// a renamed operator keeps op status under the new nick
	s.recordNames("#accueil", []string{"@alice"})
	s.handle(nil, &ircv4.Message{
		Prefix:  &ircv4.Prefix{Name: "alice"},
		Command: "NICK",
		Params:  []string{"alicia"},
	})
	assert.False(s.isOp("#accueil", "alice"))
	assert.True(s.isOp("#accueil", "alicia"))
}

func TestOpTrackingDepartures(t *testing.T) {
	assert := assert.New(t)

	s := newTestSession()
	s.recordNames("#accueil", []string{"@alice", "@bob"})
	s.recordNames("#apero", []string{"@alice"})

	s.recordDeparture(&ircv4.Message{
		Prefix:  &ircv4.Prefix{Name: "alice"},
		Command: "PART",
		Params:  []string{"#accueil"},
	})
	assert.False(s.isOp("#accueil", "alice"))
	assert.True(s.isOp("#apero", "alice"))

	// a QUIT clears the nick everywhere
	s.recordNames("#accueil", []string{"@alice"})
	s.recordDeparture(&ircv4.Message{
		Prefix:  &ircv4.Prefix{Name: "alice"},
		Command: "QUIT",
		Params:  []string{"bye"},
	})
	assert.False(s.isOp("#accueil", "alice"))
	assert.False(s.isOp("#apero", "alice"))

	// KICK removes the kicked user, not the kicker
	s.recordDeparture(&ircv4.Message{
		Prefix:  &ircv4.Prefix{Name: "alice"},
		Command: "KICK",
		Params:  []string{"#accueil", "bob", "dehors"},
	})
	assert.False(s.isOp("#accueil", "bob"))
}
