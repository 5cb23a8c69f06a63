package qttwitch

import (
	"context"
	"fmt"
	"strings"
)

// Chat-room moderation commands. Each encodes as a dot-prefixed command in
// a PRIVMSG to the channel and consumes one slot from the chat-send bucket.

// DefaultTimeout is applied when Timeout is called without a duration.
const DefaultTimeout = 600

// DefaultSlowDelay is applied when Slow is called without a delay.
const DefaultSlowDelay = 120

// Ban permanently bans user from channel. Reason may be empty.
func (g *Gateway) Ban(ctx context.Context, channel, user, reason string) error {
	return g.sendChat(ctx, channel, strings.TrimSpace(".ban "+user+" "+reason))
}

// Unban lifts a ban on user in channel.
func (g *Gateway) Unban(ctx context.Context, channel, user string) error {
	return g.sendChat(ctx, channel, ".unban "+user)
}

// Timeout silences user in channel for seconds. A non-positive duration
// falls back to DefaultTimeout.
func (g *Gateway) Timeout(ctx context.Context, channel, user string, seconds int, reason string) error {
	if seconds <= 0 {
		seconds = DefaultTimeout
	}
	return g.sendChat(ctx, channel, strings.TrimSpace(fmt.Sprintf(".timeout %s %d %s", user, seconds, reason)))
}

// Clear wipes the chat history in channel.
func (g *Gateway) Clear(ctx context.Context, channel string) error {
	return g.sendChat(ctx, channel, ".clear")
}

// Delete removes the single message identified by messageID in channel.
func (g *Gateway) Delete(ctx context.Context, channel, messageID string) error {
	return g.sendChat(ctx, channel, ".delete "+messageID)
}

// Slow enables slow mode in channel with the given delay between messages.
// A non-positive delay falls back to DefaultSlowDelay.
func (g *Gateway) Slow(ctx context.Context, channel string, seconds int) error {
	if seconds <= 0 {
		seconds = DefaultSlowDelay
	}
	return g.sendChat(ctx, channel, fmt.Sprintf(".slow %d", seconds))
}

// SlowOff disables slow mode in channel.
func (g *Gateway) SlowOff(ctx context.Context, channel string) error {
	return g.sendChat(ctx, channel, ".slowoff")
}

// Followers enables followers-only mode in channel. The duration uses
// Twitch's compact notation, e.g. "30m", "1d", "3mo"; empty means no
// minimum follow age.
func (g *Gateway) Followers(ctx context.Context, channel, duration string) error {
	return g.sendChat(ctx, channel, strings.TrimSpace(".followers "+duration))
}

// FollowersOff disables followers-only mode in channel.
func (g *Gateway) FollowersOff(ctx context.Context, channel string) error {
	return g.sendChat(ctx, channel, ".followersoff")
}

// Subscribers enables subscribers-only mode in channel.
func (g *Gateway) Subscribers(ctx context.Context, channel string) error {
	return g.sendChat(ctx, channel, ".subscribers")
}

// SubscribersOff disables subscribers-only mode in channel.
func (g *Gateway) SubscribersOff(ctx context.Context, channel string) error {
	return g.sendChat(ctx, channel, ".subscribersoff")
}

// UniqueChat enables unique-message mode (r9kbeta) in channel.
func (g *Gateway) UniqueChat(ctx context.Context, channel string) error {
	return g.sendChat(ctx, channel, ".r9kbeta")
}

// UniqueChatOff disables unique-message mode in channel.
func (g *Gateway) UniqueChatOff(ctx context.Context, channel string) error {
	return g.sendChat(ctx, channel, ".r9kbetaoff")
}

// EmoteOnly enables emote-only mode in channel.
func (g *Gateway) EmoteOnly(ctx context.Context, channel string) error {
	return g.sendChat(ctx, channel, ".emoteonly")
}

// EmoteOnlyOff disables emote-only mode in channel.
func (g *Gateway) EmoteOnlyOff(ctx context.Context, channel string) error {
	return g.sendChat(ctx, channel, ".emoteonlyoff")
}

// Mod promotes user to moderator in channel.
func (g *Gateway) Mod(ctx context.Context, channel, user string) error {
	return g.sendChat(ctx, channel, ".mod "+user)
}

// Unmod demotes user to viewer in channel.
func (g *Gateway) Unmod(ctx context.Context, channel, user string) error {
	return g.sendChat(ctx, channel, ".unmod "+user)
}

// Vip grants user VIP status in channel.
func (g *Gateway) Vip(ctx context.Context, channel, user string) error {
	return g.sendChat(ctx, channel, ".vip "+user)
}

// Unvip revokes user's VIP status in channel.
func (g *Gateway) Unvip(ctx context.Context, channel, user string) error {
	return g.sendChat(ctx, channel, ".unvip "+user)
}

// Host puts channel into host mode for target.
func (g *Gateway) Host(ctx context.Context, channel, target string) error {
	return g.sendChat(ctx, channel, ".host "+target)
}

// Unhost takes channel out of host mode.
func (g *Gateway) Unhost(ctx context.Context, channel string) error {
	return g.sendChat(ctx, channel, ".unhost")
}

// Color changes the account's username color. Accepts a named color or,
// for Turbo users, a #RRGGBB value.
func (g *Gateway) Color(ctx context.Context, channel, color string) error {
	return g.sendChat(ctx, channel, ".color "+color)
}

// Me sends an action-formatted (colored) message to channel.
func (g *Gateway) Me(ctx context.Context, channel, text string) error {
	return g.sendChat(ctx, channel, ".me "+text)
}
