// Package activity appends audit-trail entries for the admin dashboard feed.
package activity

import (
	"context"

	"github.com/openlearnhq/coursegate/internal/store"
	"github.com/openlearnhq/coursegate/pkg/logger"
	"github.com/openlearnhq/coursegate/pkg/prefixed_uuid"
)

// Activity kinds recorded by the bot.
const (
	KindVerificationStarted = "verification_started"
	KindVerified            = "verified"
	KindVerificationFailed  = "verification_failed"
	KindCredentialsUpdated  = "credentials_updated"
	KindConnectionRebuilt   = "connection_rebuilt"
)

// Recorder appends activity entries. Record is fire-and-forget: a failed
// insert is logged and never aborts the triggering operation.
type Recorder struct {
	store store.ActivityStore
	log   logger.Logger
}

// NewRecorder creates an activity recorder.
func NewRecorder(s store.ActivityStore, log logger.Logger) *Recorder {
	return &Recorder{
		store: s,
		log:   log.WithFields(logger.StringField("component", "activity")),
	}
}

// Record appends an entry to the activity feed.
func (r *Recorder) Record(ctx context.Context, kind, description, actorID string) {
	entry := store.ActivityEntry{
		ID:          prefixed_uuid.New("act"),
		Kind:        kind,
		Description: description,
		ActorID:     actorID,
	}
	if err := r.store.InsertActivity(ctx, entry); err != nil {
		r.log.Warn("failed to record activity",
			logger.StringField("kind", kind),
			logger.ErrorField(err),
		)
	}
}
