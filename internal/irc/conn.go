package irc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/SirRandoo/qttwitch/internal/logger"
	"github.com/rs/zerolog"
)

// State is the connection lifecycle state. It is owned by Conn and only
// transitions through Conn's methods.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned for sends attempted without an
	// established connection.
	ErrNotConnected = errors.New("irc: not connected")

	// ErrAlreadyConnected is returned when Connect is called on a live
	// connection.
	ErrAlreadyConnected = errors.New("irc: already connected")

	// ErrReconnectFailed is the fatal error reported once the retry budget
	// is exhausted.
	ErrReconnectFailed = errors.New("irc: reconnect failed: max attempts reached")

	// ErrUnauthorized reports a login rejection from the server. It is not
	// retried.
	ErrUnauthorized = errors.New("irc: login authentication failed")
)

const (
	pingLine      = "PING :" + SystemID
	pongLine      = "PONG :" + SystemID
	reconnectLine = ":" + SystemID + " RECONNECT"
)

// Twitch rejects bad credentials with a NOTICE rather than a numeric.
const loginFailedText = "Login authentication failed"

// Config holds the connection parameters.
type Config struct {
	Endpoint string
	Nick     string
	Token    string

	// Reconnect enables automatic reconnection on unexpected disconnects.
	Reconnect            bool
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	return c
}

// Hooks are the callbacks a Conn invokes. All are optional except Gate,
// which defaults to a pass-through.
type Hooks struct {
	// OnMessage receives every parsed inbound message, in arrival order.
	OnMessage func(Message)

	// OnStateChange observes lifecycle transitions.
	OnStateChange func(State)

	// OnFatal reports terminal conditions: retry budget exhaustion and
	// login rejection.
	OnFatal func(error)

	// Channels returns the channels to re-join after the handshake, so
	// membership survives a reconnect.
	Channels func() []string

	// Gate consumes from the join/auth rate-limit bucket before each
	// handshake line is sent.
	Gate func(ctx context.Context) error
}

// Conn drives a Transport through the connection lifecycle: handshake on
// connect, keep-alive replies, and bounded reconnection with backoff.
type Conn struct {
	cfg       Config
	transport Transport
	parser    *Parser
	hooks     Hooks
	log       zerolog.Logger

	mu    sync.RWMutex
	state State

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConn creates a connection manager over the given transport.
func NewConn(cfg Config, transport Transport, hooks Hooks) *Conn {
	if hooks.Gate == nil {
		hooks.Gate = func(context.Context) error { return nil }
	}
	return &Conn{
		cfg:       cfg.withDefaults(),
		transport: transport,
		parser:    NewParser(),
		hooks:     hooks,
		log:       logger.For("irc"),
	}
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the connection is established.
func (c *Conn) IsConnected() bool {
	return c.State() == Connected
}

// Connect opens the transport and starts the event loop. It returns once
// the transport is open; the Connected state is reached when the transport
// reports establishment.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = Connecting
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()
	c.notifyState(Connecting)

	c.wg.Add(1)
	go c.run()

	if err := c.transport.Open(c.ctx, c.cfg.Endpoint); err != nil {
		c.cancel()
		c.wg.Wait()
		c.setState(Disconnected)
		return fmt.Errorf("irc: open %s: %w", c.cfg.Endpoint, err)
	}
	return nil
}

// Send writes one line to the transport. The caller is responsible for any
// rate limiting; Conn only refuses sends without a connection.
func (c *Conn) Send(line string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.transport.Send(line)
}

// Close tears the connection down. It is terminal: pending reconnection
// waits are cancelled and the state ends at Disconnected without retry.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state == Disconnected || c.state == Closing {
		c.mu.Unlock()
		return nil
	}
	c.state = Closing
	cancel := c.cancel
	c.mu.Unlock()
	c.notifyState(Closing)

	if cancel != nil {
		cancel()
	}
	err := c.transport.Close()
	c.wg.Wait()
	c.setState(Disconnected)
	return err
}

func (c *Conn) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-c.transport.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case TransportConnected:
				c.handleConnected()
			case TransportLine:
				c.handleLine(ev.Line)
			case TransportError:
				c.log.Warn().Err(ev.Err).Msg("transport error")
			case TransportDisconnected:
				if !c.handleDisconnected() {
					return
				}
			}
		}
	}
}

// handleConnected performs the login and capability handshake, then
// re-issues JOIN for every remembered channel.
func (c *Conn) handleConnected() {
	c.setState(Connected)
	c.log.Info().Str("endpoint", c.cfg.Endpoint).Msg("connected")

	lines := []string{
		"PASS " + c.cfg.Token,
		"NICK " + c.cfg.Nick,
		"CAP REQ :twitch.tv/membership",
		"CAP REQ :twitch.tv/tags",
		"CAP REQ :twitch.tv/commands",
	}
	if c.hooks.Channels != nil {
		for _, channel := range c.hooks.Channels() {
			lines = append(lines, "JOIN #"+channel)
		}
	}

	for _, line := range lines {
		if err := c.hooks.Gate(c.ctx); err != nil {
			c.log.Warn().Err(err).Msg("handshake aborted")
			return
		}
		if err := c.transport.Send(line); err != nil {
			c.log.Warn().Err(err).Msg("handshake send failed")
			return
		}
	}
}

func (c *Conn) handleLine(line string) {
	trimmed := strings.TrimRight(line, "\r\n")

	// Keep-alive replies bypass every rate-limit bucket.
	if trimmed == pingLine {
		if err := c.transport.Send(pongLine); err != nil {
			c.log.Warn().Err(err).Msg("pong failed")
		}
		return
	}

	// A server-issued reconnect directive follows the same path as a
	// transport-level disconnect.
	if trimmed == reconnectLine {
		c.log.Info().Msg("server requested reconnect")
		c.transport.Close()
		return
	}

	msg, err := c.parser.Parse(trimmed)
	if err != nil {
		c.log.Warn().Err(err).Str("line", trimmed).Msg("dropping unparseable line")
		return
	}

	if notice, ok := msg.(NoticeMessage); ok && notice.Text == loginFailedText {
		c.notifyFatal(ErrUnauthorized)
	}

	if c.hooks.OnMessage != nil {
		c.hooks.OnMessage(msg)
	}
}

// handleDisconnected reacts to transport loss. It returns false when the
// event loop should exit.
func (c *Conn) handleDisconnected() bool {
	if c.State() == Closing || !c.cfg.Reconnect {
		c.setState(Disconnected)
		return false
	}
	return c.reconnect()
}

// reconnect retries the transport with capped exponential backoff: the
// first attempt is immediate, the wait comes after each failure. A single
// successful open resets the failure count by construction: the next
// disconnect starts a fresh attempt loop.
func (c *Conn) reconnect() bool {
	c.setState(Reconnecting)

	for attempt := 1; attempt <= c.cfg.MaxReconnectAttempts; attempt++ {
		select {
		case <-c.ctx.Done():
			return false
		default:
		}

		c.log.Info().Int("attempt", attempt).Msg("reconnecting")
		err := c.transport.Open(c.ctx, c.cfg.Endpoint)
		if err == nil {
			return true
		}
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")

		if attempt == c.cfg.MaxReconnectAttempts {
			break
		}
		select {
		case <-time.After(c.backoff(attempt)):
		case <-c.ctx.Done():
			return false
		}
	}

	c.setState(Disconnected)
	c.notifyFatal(ErrReconnectFailed)
	return false
}

func (c *Conn) backoff(attempt int) time.Duration {
	delay := c.cfg.ReconnectBaseDelay << (attempt - 1)
	if delay > c.cfg.ReconnectMaxDelay || delay <= 0 {
		delay = c.cfg.ReconnectMaxDelay
	}
	return delay
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	if c.state == s || (c.state == Closing && s != Disconnected) {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.notifyState(s)
}

func (c *Conn) notifyState(s State) {
	if c.hooks.OnStateChange != nil {
		c.hooks.OnStateChange(s)
	}
}

func (c *Conn) notifyFatal(err error) {
	if c.hooks.OnFatal != nil {
		c.hooks.OnFatal(err)
	}
}
