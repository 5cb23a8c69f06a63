package storage

import "time"

// Record kinds stored in the chat log.
const (
	KindChat       = "chat"
	KindNotice     = "notice"
	KindClearChat  = "clearchat"
	KindClearMsg   = "clearmsg"
	KindModeration = "mode"
	KindSystem     = "system"
)

// Record is one logged chat or moderation event.
type Record struct {
	ID        int64     `db:"id"`
	Channel   string    `db:"channel"`
	Sender    string    `db:"sender"`
	Body      string    `db:"body"`
	Kind      string    `db:"kind"`
	Timestamp time.Time `db:"timestamp"`
}
