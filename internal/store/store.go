// Package store provides typed Postgres access for users, course content,
// runtime settings and the activity feed.
package store

import (
	"context"
	"encoding/json"
)

// RecordStore is the user/content surface the conversation engine consumes.
// Lookups return (nil, nil) when no row exists; not-found is an absent value,
// never an error.
type RecordStore interface {
	GetUserByChatID(ctx context.Context, chatID int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpsertVerifiedUser(ctx context.Context, params UpsertUserParams) (*User, error)

	GetCourse(ctx context.Context, id int64) (*Course, error)
	ListActiveCourses(ctx context.Context) ([]Course, error)
	ListSubcontent(ctx context.Context, courseID int64) ([]Subcontent, error)
	GetSubcontent(ctx context.Context, id int64) (*Subcontent, error)
}

// SettingsStore holds named runtime configurations updatable through the
// admin surface.
type SettingsStore interface {
	GetSetting(ctx context.Context, name string) (*Setting, error)
	PutSetting(ctx context.Context, name string, data json.RawMessage) error
	// EnsureSetting creates the named setting with the given data only if it
	// does not exist yet. Idempotent.
	EnsureSetting(ctx context.Context, name string, data json.RawMessage) error
}

// ActivityStore appends audit-trail entries.
type ActivityStore interface {
	InsertActivity(ctx context.Context, entry ActivityEntry) error
	ListRecentActivity(ctx context.Context, limit int) ([]ActivityEntry, error)
}

// Store is the full persistence surface.
type Store interface {
	RecordStore
	SettingsStore
	ActivityStore

	Ping(ctx context.Context) error
	Close()
}
