package irc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport scripts transport behavior for connection tests. Open
// succeeds unless a result is queued for that attempt; tests feed inbound
// traffic through push.
type fakeTransport struct {
	events chan TransportEvent

	mu       sync.Mutex
	sent     []string
	openErrs []error
	opens    int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan TransportEvent, 64)}
}

func (f *fakeTransport) Open(ctx context.Context, endpoint string) error {
	f.mu.Lock()
	attempt := f.opens
	f.opens++
	var err error
	if attempt < len(f.openErrs) {
		err = f.openErrs[attempt]
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}
	f.events <- TransportEvent{Type: TransportConnected}
	return nil
}

func (f *fakeTransport) Send(line string) error {
	f.mu.Lock()
	f.sent = append(f.sent, line)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() error {
	f.events <- TransportEvent{Type: TransportDisconnected}
	return nil
}

func (f *fakeTransport) Events() <-chan TransportEvent { return f.events }

func (f *fakeTransport) push(line string) {
	f.events <- TransportEvent{Type: TransportLine, Line: line}
}

func (f *fakeTransport) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeTransport) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

type connRecorder struct {
	mu       sync.Mutex
	messages []Message
	states   []State
	fatals   []error
}

func (r *connRecorder) hooks() Hooks {
	return Hooks{
		OnMessage: func(m Message) {
			r.mu.Lock()
			r.messages = append(r.messages, m)
			r.mu.Unlock()
		},
		OnStateChange: func(s State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
		OnFatal: func(err error) {
			r.mu.Lock()
			r.fatals = append(r.fatals, err)
			r.mu.Unlock()
		},
	}
}

func (r *connRecorder) messageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *connRecorder) lastFatal() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.fatals) == 0 {
		return nil
	}
	return r.fatals[len(r.fatals)-1]
}

func testConfig() Config {
	return Config{
		Endpoint:             "wss://irc.test",
		Nick:                 "testnick",
		Token:                "oauth:testtoken",
		ReconnectBaseDelay:   time.Millisecond,
		ReconnectMaxDelay:    5 * time.Millisecond,
		MaxReconnectAttempts: 3,
	}
}

func waitConnected(t *testing.T, c *Conn) {
	t.Helper()
	require.Eventually(t, c.IsConnected, time.Second, time.Millisecond)
}

func TestConnHandshake(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	hooks := Hooks{Channels: func() []string { return []string{"dallas", "ronni"} }}
	c := NewConn(testConfig(), ft, hooks)
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	waitConnected(t, c)

	want := []string{
		"PASS oauth:testtoken",
		"NICK testnick",
		"CAP REQ :twitch.tv/membership",
		"CAP REQ :twitch.tv/tags",
		"CAP REQ :twitch.tv/commands",
		"JOIN #dallas",
		"JOIN #ronni",
	}
	require.Eventually(t, func() bool {
		return len(ft.lines()) == len(want)
	}, time.Second, time.Millisecond)
	assert.Equal(t, want, ft.lines())
}

func TestConnConnectTwice(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	c := NewConn(testConfig(), ft, Hooks{})
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyConnected)
}

func TestConnSendRequiresConnection(t *testing.T) {
	t.Parallel()

	c := NewConn(testConfig(), newFakeTransport(), Hooks{})
	assert.ErrorIs(t, c.Send("PRIVMSG #dallas :hi"), ErrNotConnected)
}

func TestConnPingPong(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	rec := &connRecorder{}
	c := NewConn(testConfig(), ft, rec.hooks())
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	waitConnected(t, c)
	before := len(ft.lines())

	ft.push("PING :tmi.twitch.tv\r\n")

	require.Eventually(t, func() bool {
		lines := ft.lines()
		return len(lines) == before+1 && lines[before] == "PONG :tmi.twitch.tv"
	}, time.Second, time.Millisecond)

	// Keep-alives are answered, never surfaced as messages.
	assert.Zero(t, rec.messageCount())
}

func TestConnDeliversParsedMessages(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	rec := &connRecorder{}
	c := NewConn(testConfig(), ft, rec.hooks())
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	waitConnected(t, c)

	ft.push(":ronni!ronni@ronni.tmi.twitch.tv PRIVMSG #dallas :first\r\n")
	ft.push(":ronni!ronni@ronni.tmi.twitch.tv PRIVMSG #dallas :second\r\n")

	require.Eventually(t, func() bool {
		return rec.messageCount() == 2
	}, time.Second, time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, PrivateMessage{Channel: "dallas", User: "ronni", Text: "first"}, rec.messages[0])
	assert.Equal(t, PrivateMessage{Channel: "dallas", User: "ronni", Text: "second"}, rec.messages[1])
}

func TestConnDropsMalformedLines(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	rec := &connRecorder{}
	c := NewConn(testConfig(), ft, rec.hooks())
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	waitConnected(t, c)

	ft.push("@badges=broadcaster/1\r\n")
	ft.push(":ronni!ronni@ronni.tmi.twitch.tv PRIVMSG #dallas :still alive\r\n")

	require.Eventually(t, func() bool {
		return rec.messageCount() == 1
	}, time.Second, time.Millisecond)
	assert.True(t, c.IsConnected())
}

func TestConnLoginFailure(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	rec := &connRecorder{}
	c := NewConn(testConfig(), ft, rec.hooks())
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	waitConnected(t, c)

	ft.push(":tmi.twitch.tv NOTICE * :Login authentication failed\r\n")

	require.Eventually(t, func() bool {
		return errors.Is(rec.lastFatal(), ErrUnauthorized)
	}, time.Second, time.Millisecond)
}

func TestConnServerReconnectDirective(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	cfg := testConfig()
	cfg.Reconnect = true
	c := NewConn(cfg, ft, Hooks{Channels: func() []string { return []string{"dallas"} }})
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	waitConnected(t, c)

	ft.push(":tmi.twitch.tv RECONNECT\r\n")

	// The directive closes the transport; the disconnect drives a reopen
	// followed by a fresh handshake including the channel re-join.
	require.Eventually(t, func() bool {
		return ft.openCount() == 2
	}, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		lines := ft.lines()
		joins := 0
		for _, line := range lines {
			if line == "JOIN #dallas" {
				joins++
			}
		}
		return joins == 2
	}, time.Second, time.Millisecond)
	assert.True(t, c.IsConnected())
}

func TestConnReconnectGivesUp(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	openFail := errors.New("dial refused")
	ft.openErrs = []error{nil, openFail, openFail, openFail}

	cfg := testConfig()
	cfg.Reconnect = true
	rec := &connRecorder{}
	c := NewConn(cfg, ft, rec.hooks())
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	waitConnected(t, c)

	ft.events <- TransportEvent{Type: TransportDisconnected}

	require.Eventually(t, func() bool {
		return errors.Is(rec.lastFatal(), ErrReconnectFailed)
	}, time.Second, time.Millisecond)
	assert.Equal(t, Disconnected, c.State())
	// One initial open plus exactly MaxReconnectAttempts retries.
	assert.Equal(t, 4, ft.openCount())
}

func TestConnReconnectRecovers(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	openFail := errors.New("dial refused")
	ft.openErrs = []error{nil, openFail, nil}

	cfg := testConfig()
	cfg.Reconnect = true
	rec := &connRecorder{}
	c := NewConn(cfg, ft, rec.hooks())
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	waitConnected(t, c)

	ft.events <- TransportEvent{Type: TransportDisconnected}

	require.Eventually(t, func() bool {
		return ft.openCount() == 3 && c.IsConnected()
	}, time.Second, time.Millisecond)
	assert.Nil(t, rec.lastFatal())
}

func TestConnReconnectFirstAttemptImmediate(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	cfg := testConfig()
	cfg.Reconnect = true
	cfg.ReconnectBaseDelay = time.Hour
	cfg.ReconnectMaxDelay = time.Hour
	c := NewConn(cfg, ft, Hooks{})
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	waitConnected(t, c)

	ft.events <- TransportEvent{Type: TransportDisconnected}

	// Recovery from a transient blip must not wait out a backoff interval
	// before the first attempt.
	require.Eventually(t, func() bool {
		return ft.openCount() == 2 && c.IsConnected()
	}, time.Second, time.Millisecond)
}

func TestConnNoReconnectWhenDisabled(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	c := NewConn(testConfig(), ft, Hooks{})
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	waitConnected(t, c)

	ft.events <- TransportEvent{Type: TransportDisconnected}

	require.Eventually(t, func() bool {
		return c.State() == Disconnected
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, ft.openCount())
}

func TestConnCloseIsTerminal(t *testing.T) {
	t.Parallel()

	ft := newFakeTransport()
	cfg := testConfig()
	cfg.Reconnect = true
	c := NewConn(cfg, ft, Hooks{})

	require.NoError(t, c.Connect(context.Background()))
	waitConnected(t, c)

	require.NoError(t, c.Close())
	assert.Equal(t, Disconnected, c.State())
	assert.Equal(t, 1, ft.openCount())
	assert.ErrorIs(t, c.Send("PRIVMSG #dallas :hi"), ErrNotConnected)
}

func TestConnBackoff(t *testing.T) {
	t.Parallel()

	c := NewConn(Config{
		ReconnectBaseDelay: time.Second,
		ReconnectMaxDelay:  30 * time.Second,
	}.withDefaults(), newFakeTransport(), Hooks{})

	assert.Equal(t, time.Second, c.backoff(1))
	assert.Equal(t, 2*time.Second, c.backoff(2))
	assert.Equal(t, 4*time.Second, c.backoff(3))
	assert.Equal(t, 16*time.Second, c.backoff(5))
	assert.Equal(t, 30*time.Second, c.backoff(6))
	assert.Equal(t, 30*time.Second, c.backoff(12))
}
