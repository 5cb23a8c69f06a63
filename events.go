package qttwitch

// Event types published on the gateway's bus. The Data field of each event
// carries the typed payload noted alongside.
const (
	EventSystem         = "system.message"       // irc.SystemMessage
	EventCapAck         = "cap.ack"              // irc.CapMessage
	EventUserJoined     = "user.joined"          // irc.JoinMessage
	EventUserParted     = "user.parted"          // irc.PartMessage
	EventModeChanged    = "channel.mode"         // irc.ModeMessage
	EventNames          = "channel.names"        // irc.NamesMessage, one per line
	EventChatMessage    = "message.received"     // irc.PrivateMessage
	EventChatCleared    = "chat.cleared"         // irc.ClearChatMessage
	EventMessageDeleted = "chat.message.deleted" // irc.ClearMsgMessage
	EventHostTarget     = "channel.host"         // irc.HostTargetMessage
	EventNotice         = "notice"               // irc.NoticeMessage
	EventUnknownCommand = "command.unknown"      // irc.UnknownMessage

	EventStateChanged = "connection.state" // irc.State
	EventFatal        = "connection.fatal" // error
)
