package irc

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedLine reports a line that does not match the protocol grammar.
// Such lines are logged and dropped by the connection manager.
var ErrMalformedLine = errors.New("irc: malformed line")

// rawLine is the result of splitting one protocol line into its grammar
// segments, before per-command field extraction.
type rawLine struct {
	Tags    map[string]string
	Prefix  string
	Command string
	Params  string
}

type handlerFunc func(raw rawLine) (Message, error)

// Parser converts raw protocol lines into typed messages. The dispatch
// table is built once at construction and read-only afterwards.
type Parser struct {
	handlers map[string]handlerFunc
}

// NewParser builds a parser with handlers for every supported command and
// numeric response code.
func NewParser() *Parser {
	p := &Parser{}
	p.handlers = map[string]handlerFunc{
		"001": systemHandler(CodeWelcome),
		"002": systemHandler(CodeYourHost),
		"003": systemHandler(CodeCreated),
		"004": systemHandler(CodeMyInfo),
		"372": systemHandler(CodeMOTD),
		"375": systemHandler(CodeMOTDStart),
		"376": systemHandler(CodeMOTDEnd),
		"421": systemHandler(CodeUnknownCommand),

		"353": parseNames,
		"366": parseNamesEnd,

		"CAP":        parseCap,
		"JOIN":       parseJoin,
		"PART":       parsePart,
		"MODE":       parseMode,
		"NOTICE":     parseNotice,
		"PRIVMSG":    parsePrivMsg,
		"CLEARCHAT":  parseClearChat,
		"CLEARMSG":   parseClearMsg,
		"HOSTTARGET": parseHostTarget,
	}
	return p
}

// Parse converts one line, without its trailing terminator, into a typed
// message. Commands without a handler yield UnknownMessage; lines that do
// not match the grammar yield an error wrapping ErrMalformedLine.
func (p *Parser) Parse(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")

	raw, err := splitLine(line)
	if err != nil {
		return nil, err
	}

	handler, ok := p.handlers[strings.ToUpper(raw.Command)]
	if !ok {
		return UnknownMessage{Raw: line, Params: raw.Params, command: raw.Command}, nil
	}
	return handler(raw)
}

// splitLine applies the line grammar: an optional @tag block, an optional
// :prefix, a command token, and a verbatim parameter tail.
func splitLine(line string) (rawLine, error) {
	var raw rawLine
	rest := line

	if strings.HasPrefix(rest, "@") {
		block, tail, ok := strings.Cut(rest[1:], " ")
		if !ok {
			return raw, fmt.Errorf("%w: tag block without command: %q", ErrMalformedLine, line)
		}
		raw.Tags = parseTags(block)
		rest = tail
	}

	if strings.HasPrefix(rest, ":") {
		prefix, tail, ok := strings.Cut(rest[1:], " ")
		if !ok {
			return raw, fmt.Errorf("%w: prefix without command: %q", ErrMalformedLine, line)
		}
		raw.Prefix = prefix
		rest = tail
	}

	command, params, _ := strings.Cut(rest, " ")
	if !validCommand(command) {
		return raw, fmt.Errorf("%w: bad command token %q in %q", ErrMalformedLine, command, line)
	}
	raw.Command = command
	raw.Params = params
	return raw, nil
}

// parseTags consumes a ;-separated tag block into a map. Bare keys map to
// the empty string.
func parseTags(block string) map[string]string {
	tags := make(map[string]string)
	for _, segment := range strings.Split(block, ";") {
		if segment == "" {
			continue
		}
		key, value, _ := strings.Cut(segment, "=")
		tags[key] = value
	}
	return tags
}

func validCommand(command string) bool {
	if command == "" {
		return false
	}
	digits, letters := 0, 0
	for _, r := range command {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letters++
		default:
			return false
		}
	}
	return digits == 0 || letters == 0
}

// nickOf extracts the nick portion of a prefix, the substring before "!".
func nickOf(prefix string) string {
	nick, _, _ := strings.Cut(prefix, "!")
	return nick
}

// trailing returns the trailing parameter of a tail, the text after the
// first " :" separator, or after a leading ":".
func trailing(params string) string {
	if strings.HasPrefix(params, ":") {
		return params[1:]
	}
	if _, text, ok := strings.Cut(params, " :"); ok {
		return text
	}
	return params
}

func channelName(token string) string {
	return strings.TrimPrefix(strings.TrimPrefix(token, ":"), "#")
}

func systemHandler(code ResponseCode) handlerFunc {
	return func(raw rawLine) (Message, error) {
		source := raw.Prefix
		if source == "" {
			source = SystemID
		}
		return SystemMessage{
			Source:  source,
			Text:    trailing(raw.Params),
			Code:    code,
			command: raw.Command,
		}, nil
	}
}

func parseNames(raw rawLine) (Message, error) {
	// <client> = #channel :name name name
	head, tail, ok := strings.Cut(raw.Params, " :")
	if !ok {
		return nil, fmt.Errorf("%w: names reply without list: %q", ErrMalformedLine, raw.Params)
	}
	fields := strings.Fields(head)
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: names reply header %q", ErrMalformedLine, head)
	}
	return NamesMessage{
		Channel: channelName(fields[2]),
		Names:   strings.Fields(tail),
	}, nil
}

func parseNamesEnd(raw rawLine) (Message, error) {
	// <client> #channel :End of /NAMES list
	fields := strings.SplitN(raw.Params, " ", 3)
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: names end %q", ErrMalformedLine, raw.Params)
	}
	return SystemMessage{
		Source:  channelName(fields[1]),
		Text:    trailing(fields[2]),
		Code:    CodeNamesEnd,
		command: raw.Command,
	}, nil
}

func parseCap(raw rawLine) (Message, error) {
	// * ACK :twitch.tv/tags
	_, tail, ok := strings.Cut(raw.Params, " ")
	if !ok {
		return nil, fmt.Errorf("%w: cap without subcommand: %q", ErrMalformedLine, raw.Params)
	}
	return CapMessage{
		Source:       raw.Prefix,
		Capabilities: trailing(tail),
	}, nil
}

func parseJoin(raw rawLine) (Message, error) {
	fields := strings.Fields(raw.Params)
	if raw.Prefix == "" || len(fields) == 0 {
		return nil, fmt.Errorf("%w: join %q", ErrMalformedLine, raw.Params)
	}
	return JoinMessage{
		Channel: channelName(fields[0]),
		User:    nickOf(raw.Prefix),
	}, nil
}

func parsePart(raw rawLine) (Message, error) {
	fields := strings.Fields(raw.Params)
	if raw.Prefix == "" || len(fields) == 0 {
		return nil, fmt.Errorf("%w: part %q", ErrMalformedLine, raw.Params)
	}
	return PartMessage{
		Channel: channelName(fields[0]),
		User:    nickOf(raw.Prefix),
	}, nil
}

func parseMode(raw rawLine) (Message, error) {
	// #channel +o user
	fields := strings.Fields(raw.Params)
	if len(fields) < 3 {
		return nil, fmt.Errorf("%w: mode %q", ErrMalformedLine, raw.Params)
	}
	return ModeMessage{
		Channel: channelName(fields[0]),
		User:    fields[2],
		Op:      strings.HasPrefix(fields[1], "+"),
	}, nil
}

func parseNotice(raw rawLine) (Message, error) {
	target, tail, _ := strings.Cut(raw.Params, " ")
	channel := ""
	if strings.HasPrefix(target, "#") {
		channel = channelName(target)
	}
	return NoticeMessage{
		Channel: channel,
		Text:    trailing(tail),
		MsgID:   raw.Tags["msg-id"],
	}, nil
}

func parsePrivMsg(raw rawLine) (Message, error) {
	target, tail, ok := strings.Cut(raw.Params, " ")
	if !ok {
		return nil, fmt.Errorf("%w: privmsg %q", ErrMalformedLine, raw.Params)
	}
	return PrivateMessage{
		Channel: channelName(target),
		User:    nickOf(raw.Prefix),
		Text:    trailing(tail),
		Tags:    raw.Tags,
	}, nil
}

func parseClearChat(raw rawLine) (Message, error) {
	target, tail, _ := strings.Cut(raw.Params, " ")
	return ClearChatMessage{
		Channel: channelName(target),
		User:    trailing(tail),
	}, nil
}

func parseClearMsg(raw rawLine) (Message, error) {
	target, _, _ := strings.Cut(raw.Params, " ")
	return ClearMsgMessage{
		Channel:  channelName(target),
		TargetID: raw.Tags["target-msg-id"],
		Login:    raw.Tags["login"],
	}, nil
}

func parseHostTarget(raw rawLine) (Message, error) {
	target, tail, ok := strings.Cut(raw.Params, " ")
	if !ok {
		return nil, fmt.Errorf("%w: hosttarget %q", ErrMalformedLine, raw.Params)
	}
	hosted := strings.Fields(trailing(tail))
	if len(hosted) == 0 {
		return nil, fmt.Errorf("%w: hosttarget without target %q", ErrMalformedLine, raw.Params)
	}
	return HostTargetMessage{
		Channel: channelName(target),
		Target:  hosted[0],
	}, nil
}
