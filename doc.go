// Package qttwitch is a client for Twitch's IRC-derived chat gateway.
//
// The Gateway keeps a single websocket connection open indefinitely,
// answers protocol keep-alives, reconnects with bounded backoff, and gates
// every outbound command through the rate-limit bucket Twitch imposes on
// its category: chat-room commands, join/auth traffic, and the layered
// whisper quotas. Inbound lines are parsed into typed messages and
// republished on an event bus the host application subscribes to.
//
// Example usage:
//
//	gw := qttwitch.New(qttwitch.Config{
//	    Nick:     "mybot",
//	    Token:    os.Getenv("TWITCH_TOKEN"),
//	    Channels: []string{"mychannel"},
//	})
//
//	sub := gw.Subscribe(qttwitch.EventChatMessage, func(ev qttwitch.Event) {
//	    msg := ev.Data.(qttwitch.PrivateMessage)
//	    log.Printf("%s: %s", msg.User, msg.Text)
//	})
//	defer sub.Cancel()
//
//	if err := gw.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	gw.Say(ctx, "mychannel", "hello chat")
package qttwitch
