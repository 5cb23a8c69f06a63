// Package irc implements the wire side of the Twitch chat gateway: the line
// parser that turns raw protocol text into typed messages, and the
// connection manager that keeps a transport open.
package irc

// SystemID is the identity Twitch's chat servers use in prefixes and
// keep-alive probes.
const SystemID = "tmi.twitch.tv"

// ResponseCode is a numeric IRC response code.
type ResponseCode int

const (
	CodeNone           ResponseCode = 0
	CodeWelcome        ResponseCode = 1
	CodeYourHost       ResponseCode = 2
	CodeCreated        ResponseCode = 3
	CodeMyInfo         ResponseCode = 4
	CodeNamesReply     ResponseCode = 353
	CodeNamesEnd       ResponseCode = 366
	CodeMOTD           ResponseCode = 372
	CodeMOTDStart      ResponseCode = 375
	CodeMOTDEnd        ResponseCode = 376
	CodeUnknownCommand ResponseCode = 421
)

// Message is one typed inbound protocol event. The set of implementations
// is fixed at compile time; unrecognized commands surface as
// UnknownMessage rather than a parse failure.
type Message interface {
	// Command returns the protocol command token this message was parsed
	// from, e.g. "JOIN" or "001".
	Command() string
}

// SystemMessage is a generic server notice carrying a numeric response code.
type SystemMessage struct {
	Source string
	Text   string
	Code   ResponseCode

	command string
}

func (m SystemMessage) Command() string { return m.command }

// CapMessage is a capability acknowledgment.
type CapMessage struct {
	Source       string
	Capabilities string
}

func (CapMessage) Command() string { return "CAP" }

// JoinMessage reports a user entering a channel.
type JoinMessage struct {
	Channel string
	User    string
}

func (JoinMessage) Command() string { return "JOIN" }

// PartMessage reports a user leaving a channel.
type PartMessage struct {
	Channel string
	User    string
}

func (PartMessage) Command() string { return "PART" }

// ModeMessage reports an operator grant or removal in a channel.
type ModeMessage struct {
	Channel string
	User    string
	Op      bool
}

func (ModeMessage) Command() string { return "MODE" }

// NamesMessage is one line of a name-list reply. The list may span several
// messages; subscribers accumulate until a CodeNamesEnd SystemMessage.
type NamesMessage struct {
	Channel string
	Names   []string
}

func (NamesMessage) Command() string { return "353" }

// ClearChatMessage reports a chat clear, either room wide or, when User is
// set, scoped to one user.
type ClearChatMessage struct {
	Channel string
	User    string
}

func (ClearChatMessage) Command() string { return "CLEARCHAT" }

// ClearMsgMessage reports deletion of a single message.
type ClearMsgMessage struct {
	Channel  string
	TargetID string
	Login    string
}

func (ClearMsgMessage) Command() string { return "CLEARMSG" }

// HostTargetMessage reports a channel entering or leaving host mode. A
// Target of "-" means hosting stopped.
type HostTargetMessage struct {
	Channel string
	Target  string
}

func (HostTargetMessage) Command() string { return "HOSTTARGET" }

// NoticeMessage is a server NOTICE. MsgID carries the machine-readable
// notice identifier from the tag block when present.
type NoticeMessage struct {
	Channel string
	Text    string
	MsgID   string
}

func (NoticeMessage) Command() string { return "NOTICE" }

// PrivateMessage is a chat line in a channel.
type PrivateMessage struct {
	Channel string
	User    string
	Text    string
	Tags    map[string]string
}

func (PrivateMessage) Command() string { return "PRIVMSG" }

// UnknownMessage is the catch-all for commands without a handler. It is a
// delivered event, not a parse failure.
type UnknownMessage struct {
	Raw     string
	Params  string
	command string
}

func (m UnknownMessage) Command() string { return m.command }
