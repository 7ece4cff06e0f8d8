// Package audit records who changed what, persisting every entry and
// forwarding it to the event stream.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Simplici0/signworks/internal/events"
	"github.com/Simplici0/signworks/internal/model"
	"github.com/Simplici0/signworks/internal/store"
)

type userKey struct{}

// WithUser attaches the acting user's ID to ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFrom returns the acting user's ID, or "" outside a signed-in request.
func UserFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

type Recorder struct {
	store     store.Store
	publisher events.Publisher
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewRecorder(s store.Store, publisher events.Publisher, log logrus.FieldLogger) *Recorder {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Recorder{store: s, publisher: publisher, log: log, now: time.Now}
}

// Record stores an entry. before and after are encoded as JSON; nil means absent.
// Publishing failures are logged and never fail the caller.
func (r *Recorder) Record(ctx context.Context, entity, entityID string, action model.AuditAction, before, after any) error {
	entry := model.AuditEntry{
		ID:        model.NewID(),
		Entity:    entity,
		EntityID:  entityID,
		Action:    action,
		UserID:    UserFrom(ctx),
		CreatedAt: r.now().UTC(),
	}

	var err error
	if entry.Before, err = encode(before); err != nil {
		return err
	}
	if entry.After, err = encode(after); err != nil {
		return err
	}

	if err := r.store.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	if err := r.publisher.Publish(ctx, entity+":"+entityID, entry); err != nil {
		r.log.WithFields(logrus.Fields{
			"entity":    entity,
			"entity_id": entityID,
			"action":    action,
		}).WithError(err).Warn("publish audit event")
	}
	return nil
}

func encode(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode audit state: %w", err)
	}
	return data, nil
}
