package irc

import (
	"context"

	"github.com/alphababoon/alphababoon/automod"
)

// Event is the decoded stream a Session hands to the supervisor. Exactly one
// of the variant types below flows per event.
type Event interface {
	isEvent()
}

// EventRegistered fires once the server accepts registration (RPL_WELCOME).
type EventRegistered struct {
	ServerName string
}

// EventJoined fires on any JOIN in a channel we occupy. Self is true when it
// is our own nick completing a join.
type EventJoined struct {
	Channel string
	Nick    string
	Self    bool
}

// EventParted fires when someone leaves a channel we occupy, by PART or by
// KICK. Self is true when it is our own nick that left.
type EventParted struct {
	Channel string
	Nick    string
	Self    bool
}

// EventMessage is a PRIVMSG to a channel.
type EventMessage struct {
	Msg automod.MessageEvent
}

// EventPong is the server's answer to a keepalive PING.
type EventPong struct {
	Token string
}

// EventDisconnected is terminal: the session's read loop has ended.
type EventDisconnected struct {
	Reason error
}

func (EventRegistered) isEvent()   {}
func (EventJoined) isEvent()       {}
func (EventParted) isEvent()       {}
func (EventMessage) isEvent()      {}
func (EventPong) isEvent()         {}
func (EventDisconnected) isEvent() {}

// Command is a raw outbound IRC line, verb plus params, with trailing-space
// handling left to the codec.
type Command struct {
	Verb   string
	Params []string
}

// Session is one live server connection. Events() yields decoded events until
// EventDisconnected, after which the channel closes. Send and Close are safe
// for concurrent use.
type Session interface {
	Events() <-chan Event
	Send(ctx context.Context, cmd Command) error
	Close(farewell string) error
}

// Dialer opens sessions; swapped for a fake in supervisor tests.
type Dialer interface {
	Dial(ctx context.Context, server ServerDescriptor, nick string) (Session, error)
}
