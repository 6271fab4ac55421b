// Package realtime delivers row-level change notifications to subscribed
// clients: a named table plus a scope (e.g. a task ID) identifies a channel
// carrying insert/update/delete events.
package realtime

import (
	"context"
	"time"
)

// Actions
const (
	ActionInsert = "insert"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Tables with change feeds.
const (
	TableComments    = "comments"
	TableAttachments = "attachments"
)

// Event is one row-level change. Payload carries the row as JSON; insert
// payloads are raw rows without joined display data.
type Event struct {
	Action  string `json:"action"`
	Table   string `json:"table"`
	ScopeID string `json:"scope_id"`
	RowID   string `json:"row_id"`
	// At is the server timestamp; consumers resolve races last-event-wins.
	At      time.Time `json:"at"`
	Payload []byte    `json:"payload,omitempty"`
}

// Feed is the abstraction over fan-out backends.
//
// Events published for one (table, scope) pair are delivered to each local
// subscriber in publish order. A subscriber that cannot keep up loses events
// rather than blocking publishers; consumers needing a guaranteed view must
// re-fetch.
type Feed interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe yields events for the scope until cancel is called or ctx is
	// done. cancel is idempotent.
	Subscribe(ctx context.Context, table, scopeID string) (<-chan Event, func(), error)
}
