package store

import (
	"encoding/json"
	"time"

	"github.com/openlearnhq/coursegate/pkg/prefixed_uuid"
)

// User is a chat peer known to the bot. ChatID and Email are both unique;
// a user exists at most once per chat identity.
type User struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	Banned    bool      `json:"banned"`
	OrderID   string    `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertUserParams carries the fields written once the oracle confirms payment.
type UpsertUserParams struct {
	ChatID   int64
	Email    string
	Verified bool
	OrderID  string
}

// Course is a top-level content node.
type Course struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Body        string    `json:"body"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Subcontent is an ordered lesson belonging to exactly one course.
// OrderIndex defines display order and need not be contiguous.
type Subcontent struct {
	ID          int64  `json:"id"`
	CourseID    int64  `json:"course_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	ExternalURL string `json:"external_url,omitempty"`
	OrderIndex  int    `json:"order_index"`
}

// Setting is a named runtime configuration blob (bot token, commerce keys).
type Setting struct {
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ActivityEntry is a single audit-trail record. IDs carry the "act" prefix.
type ActivityEntry struct {
	ID          prefixed_uuid.PrefixedUUID `json:"id"`
	Kind        string                     `json:"kind"`
	Description string                     `json:"description"`
	ActorID     string                     `json:"actor_id"`
	CreatedAt   time.Time                  `json:"created_at"`
}
