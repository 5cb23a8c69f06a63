package qttwitch

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/SirRandoo/qttwitch/internal/events"
	"github.com/SirRandoo/qttwitch/internal/irc"
	"github.com/SirRandoo/qttwitch/internal/logger"
	"github.com/SirRandoo/qttwitch/internal/ratelimit"
	"github.com/SirRandoo/qttwitch/internal/validation"
)

// DefaultEndpoint is Twitch's websocket chat gateway.
const DefaultEndpoint = "wss://irc-ws.chat.twitch.tv:443"

// anonymousNick lets the gateway connect read-only without credentials.
const (
	anonymousNick  = "justinfan2389"
	anonymousToken = "foobar"
)

var (
	// ErrAlreadyJoined is returned by Join for a channel already in the
	// membership set. No line is sent.
	ErrAlreadyJoined = errors.New("qttwitch: channel already joined")

	// ErrNotJoined is returned by Part for a channel not in the membership
	// set. No line is sent.
	ErrNotJoined = errors.New("qttwitch: channel not joined")

	// ErrNotConnected is returned for commands issued without an
	// established connection.
	ErrNotConnected = irc.ErrNotConnected

	// ErrGatewayClosed is returned once Close has been called.
	ErrGatewayClosed = errors.New("qttwitch: gateway closed")
)

// Config configures a Gateway. The zero value connects anonymously to the
// public endpoint.
type Config struct {
	// Nick is the login name. Defaults to an anonymous justinfan nick.
	Nick string

	// Token is the OAuth token; the "oauth:" prefix is added when missing.
	Token string

	// Endpoint overrides the chat gateway URL.
	Endpoint string

	// Channels are joined on login and after every reconnect.
	Channels []string

	// WhisperReset is the moment the daily whisper-account limit next
	// rolls over. Zero schedules it a day out.
	WhisperReset time.Time

	// DisableReconnect turns off automatic reconnection.
	DisableReconnect bool

	// MaxReconnectAttempts caps consecutive reconnect failures before the
	// gateway gives up. Defaults to 5.
	MaxReconnectAttempts int

	// ReconnectBaseDelay is the wait after the first failed reconnect
	// attempt; it doubles per failure up to ReconnectMaxDelay. Defaults to
	// 1s and 30s.
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration

	// Transport overrides the websocket transport. Used by tests.
	Transport irc.Transport
}

// Gateway presents a unified command/event interface over one chat
// connection. It exclusively owns its connection manager, rate-limit
// buckets, and whisper quota; subscribers hold only revocable handles.
type Gateway struct {
	conn     *irc.Conn
	limits   *ratelimit.Registry
	whispers *ratelimit.WhisperQuota
	bus      *events.Bus
	log      zerolog.Logger

	mu       sync.Mutex
	channels map[string]struct{}
	closed   bool
}

// New builds a Gateway from the configuration. Connect must be called
// before any command is accepted.
func New(cfg Config) *Gateway {
	if cfg.Nick == "" {
		cfg.Nick = anonymousNick
	}
	if cfg.Token == "" {
		cfg.Token = anonymousToken
	}
	if cfg.Token != anonymousToken && !strings.HasPrefix(cfg.Token, "oauth:") {
		cfg.Token = "oauth:" + cfg.Token
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	transport := cfg.Transport
	if transport == nil {
		transport = irc.NewWebsocketTransport()
	}

	g := &Gateway{
		limits: ratelimit.NewRegistry(
			ratelimit.NewBucket(ratelimit.BucketChat, ratelimit.DefaultChatLimit, ratelimit.DefaultChatWindow, true),
			ratelimit.NewBucket(ratelimit.BucketJoin, ratelimit.DefaultJoinLimit, ratelimit.DefaultJoinWindow, true),
		),
		whispers: ratelimit.NewWhisperQuota(cfg.WhisperReset),
		bus:      events.NewBus(),
		log:      logger.For("gateway"),
		channels: make(map[string]struct{}, len(cfg.Channels)),
	}
	for _, channel := range cfg.Channels {
		g.channels[validation.NormalizeChannel(channel)] = struct{}{}
	}

	g.conn = irc.NewConn(
		irc.Config{
			Endpoint:             cfg.Endpoint,
			Nick:                 cfg.Nick,
			Token:                cfg.Token,
			Reconnect:            !cfg.DisableReconnect,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
			ReconnectBaseDelay:   cfg.ReconnectBaseDelay,
			ReconnectMaxDelay:    cfg.ReconnectMaxDelay,
		},
		transport,
		irc.Hooks{
			OnMessage:     g.publishMessage,
			OnStateChange: g.publishState,
			OnFatal:       g.publishFatal,
			Channels:      g.Channels,
			Gate: func(ctx context.Context) error {
				return g.limits.Acquire(ctx, ratelimit.BucketJoin)
			},
		},
	)
	return g
}

// Connect opens the connection and performs the login handshake.
func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrGatewayClosed
	}
	g.mu.Unlock()
	return g.conn.Connect(ctx)
}

// Close tears down the gateway: the connection stops retrying, every task
// suspended on a rate-limit bucket is released with ratelimit.ErrClosed,
// and all timers and subscriptions are cancelled.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.channels = make(map[string]struct{})
	g.mu.Unlock()

	err := g.conn.Close()
	g.limits.Close()
	g.whispers.Close()
	g.bus.Close()
	return err
}

// State returns the connection lifecycle state.
func (g *Gateway) State() irc.State { return g.conn.State() }

// IsConnected reports whether the gateway has an established connection.
func (g *Gateway) IsConnected() bool { return g.conn.IsConnected() }

// Channels returns a sorted snapshot of the membership set.
func (g *Gateway) Channels() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.channels))
	for channel := range g.channels {
		out = append(out, channel)
	}
	sort.Strings(out)
	return out
}

// Subscribe registers a handler for the given event type and returns a
// revocable subscription handle. Use events.Wildcard for every event.
func (g *Gateway) Subscribe(eventType string, handler events.Handler) *events.Subscription {
	return g.bus.Subscribe(eventType, handler)
}

// Join enters a channel. It consumes from the join bucket and fails with
// ErrAlreadyJoined, without contacting the transport, when the channel is
// already in the membership set.
func (g *Gateway) Join(ctx context.Context, channel string) error {
	channel = validation.NormalizeChannel(channel)
	if err := validation.ValidateChannel(channel); err != nil {
		return err
	}
	if !g.conn.IsConnected() {
		return ErrNotConnected
	}

	// Reserve the membership slot up front so concurrent joins of the same
	// channel cannot both reach the transport.
	g.mu.Lock()
	if _, ok := g.channels[channel]; ok {
		g.mu.Unlock()
		return ErrAlreadyJoined
	}
	g.channels[channel] = struct{}{}
	g.mu.Unlock()

	if err := g.limits.Acquire(ctx, ratelimit.BucketJoin); err != nil {
		g.forget(channel)
		return err
	}
	if err := g.conn.Send("JOIN #" + channel); err != nil {
		g.forget(channel)
		return err
	}
	return nil
}

// Part leaves a channel. It fails with ErrNotJoined, without contacting the
// transport, when the channel is not in the membership set.
func (g *Gateway) Part(ctx context.Context, channel string) error {
	channel = validation.NormalizeChannel(channel)
	if err := validation.ValidateChannel(channel); err != nil {
		return err
	}
	if !g.conn.IsConnected() {
		return ErrNotConnected
	}

	// Claim the departure by removing the channel first; a failed send or
	// acquire restores it.
	g.mu.Lock()
	if _, ok := g.channels[channel]; !ok {
		g.mu.Unlock()
		return ErrNotJoined
	}
	delete(g.channels, channel)
	g.mu.Unlock()

	if err := g.limits.Acquire(ctx, ratelimit.BucketJoin); err != nil {
		g.remember(channel)
		return err
	}
	if err := g.conn.Send("PART #" + channel); err != nil {
		g.remember(channel)
		return err
	}
	return nil
}

func (g *Gateway) remember(channel string) {
	g.mu.Lock()
	g.channels[channel] = struct{}{}
	g.mu.Unlock()
}

func (g *Gateway) forget(channel string) {
	g.mu.Lock()
	delete(g.channels, channel)
	g.mu.Unlock()
}

// Say sends a chat message to a channel through the chat-send bucket.
func (g *Gateway) Say(ctx context.Context, channel, text string) error {
	return g.sendChat(ctx, channel, text)
}

// Whisper sends a private message to a user, consuming from the whisper
// quotas. The recipient counts once against the daily account limit.
func (g *Gateway) Whisper(ctx context.Context, user, text string) error {
	if err := validation.ValidateLogin(user); err != nil {
		return err
	}
	if !g.conn.IsConnected() {
		return ErrNotConnected
	}
	if err := g.whispers.Acquire(ctx, user); err != nil {
		return err
	}
	return g.conn.Send("PRIVMSG #jtv :.w " + user + " " + text)
}

// sendChat is the shared path for every chat-room command: connected check,
// chat bucket, then one PRIVMSG line.
func (g *Gateway) sendChat(ctx context.Context, channel, text string) error {
	channel = validation.NormalizeChannel(channel)
	if err := validation.ValidateChannel(channel); err != nil {
		return err
	}
	if !g.conn.IsConnected() {
		return ErrNotConnected
	}
	if err := g.limits.Acquire(ctx, ratelimit.BucketChat); err != nil {
		return err
	}
	return g.conn.Send("PRIVMSG #" + channel + " :" + text)
}

func (g *Gateway) publishMessage(msg irc.Message) {
	eventType := EventUnknownCommand
	switch msg.(type) {
	case irc.SystemMessage:
		eventType = EventSystem
	case irc.CapMessage:
		eventType = EventCapAck
	case irc.JoinMessage:
		eventType = EventUserJoined
	case irc.PartMessage:
		eventType = EventUserParted
	case irc.ModeMessage:
		eventType = EventModeChanged
	case irc.NamesMessage:
		eventType = EventNames
	case irc.PrivateMessage:
		eventType = EventChatMessage
	case irc.ClearChatMessage:
		eventType = EventChatCleared
	case irc.ClearMsgMessage:
		eventType = EventMessageDeleted
	case irc.HostTargetMessage:
		eventType = EventHostTarget
	case irc.NoticeMessage:
		eventType = EventNotice
	}

	g.bus.Publish(events.Event{
		Type:      eventType,
		Data:      msg,
		Timestamp: time.Now(),
		Source:    events.SourceIRC,
	})
}

func (g *Gateway) publishState(state irc.State) {
	g.bus.Publish(events.Event{
		Type:      EventStateChanged,
		Data:      state,
		Timestamp: time.Now(),
		Source:    events.SourceSystem,
	})
}

func (g *Gateway) publishFatal(err error) {
	if errors.Is(err, irc.ErrReconnectFailed) {
		g.mu.Lock()
		g.channels = make(map[string]struct{})
		g.mu.Unlock()
	}

	g.log.Error().Err(err).Msg("fatal connection error")
	g.bus.Publish(events.Event{
		Type:      EventFatal,
		Data:      err,
		Timestamp: time.Now(),
		Source:    events.SourceSystem,
	})
}
