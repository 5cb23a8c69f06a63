package qttwitch

import (
	"github.com/SirRandoo/qttwitch/internal/events"
	"github.com/SirRandoo/qttwitch/internal/irc"
	"github.com/SirRandoo/qttwitch/internal/ratelimit"
)

// The message, event, and state types below are aliases into the packages
// that produce them, so subscribers can name everything they receive
// through this package alone.

// State is the connection lifecycle state.
type State = irc.State

const (
	StateDisconnected = irc.Disconnected
	StateConnecting   = irc.Connecting
	StateConnected    = irc.Connected
	StateReconnecting = irc.Reconnecting
	StateClosing      = irc.Closing
)

// Message is the decoded form of one inbound protocol line.
type Message = irc.Message

type (
	SystemMessage     = irc.SystemMessage
	CapMessage        = irc.CapMessage
	JoinMessage       = irc.JoinMessage
	PartMessage       = irc.PartMessage
	ModeMessage       = irc.ModeMessage
	NamesMessage      = irc.NamesMessage
	ClearChatMessage  = irc.ClearChatMessage
	ClearMsgMessage   = irc.ClearMsgMessage
	HostTargetMessage = irc.HostTargetMessage
	NoticeMessage     = irc.NoticeMessage
	PrivateMessage    = irc.PrivateMessage
	UnknownMessage    = irc.UnknownMessage
)

// Event is one published bus event; Data holds the Message, State, or
// error the event describes.
type Event = events.Event

// Handler consumes bus events.
type Handler = events.Handler

// Subscription is a revocable handle returned by Subscribe.
type Subscription = events.Subscription

// Wildcard subscribes a handler to every event type.
const Wildcard = events.Wildcard

var (
	// ErrUnauthorized reports a login rejection; the gateway does not retry
	// after it.
	ErrUnauthorized = irc.ErrUnauthorized

	// ErrReconnectFailed is published as a fatal event once the reconnect
	// budget is exhausted.
	ErrReconnectFailed = irc.ErrReconnectFailed

	// ErrRateLimitClosed releases tasks suspended on a rate-limit bucket
	// when the gateway closes.
	ErrRateLimitClosed = ratelimit.ErrClosed
)
