package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DedupeEntryRow backs the activity poller's transactional check-then-insert
// guard (§5, §4.10, P9): one row per already-seen incident-log-entry id.
type DedupeEntryRow struct {
	bun.BaseModel `bun:"table:dedupe_entries,alias:de"`

	ID     string `bun:"id,pk"`
	SeenAt int64  `bun:"seen_at,notnull"`
}

// ActivityCursorRow is a singleton row tracking the poller's high-water mark.
type ActivityCursorRow struct {
	bun.BaseModel `bun:"table:activity_cursor,alias:ac"`

	Key             string    `bun:"key,pk"`
	LatestCreatedAt int64     `bun:"latest_created_at,notnull,default:0"`
	UpdatedAt       time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// DefaultCursorKey is the single row ActivityCursorRow reads and writes.
const DefaultCursorKey = "default"
