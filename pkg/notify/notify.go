// Package notify persists notification records for recipients that were
// offline when an event fanned out, and serves their notification feed.
package notify

import (
	"glimpse/pkg/logger"
	"glimpse/pkg/models"
	"glimpse/pkg/store"
	"glimpse/pkg/telemetry"
)

// Store writes and reads notification records. It satisfies the outbox's
// notifier contract.
type Store struct{}

func NewStore() *Store { return &Store{} }

// Create persists one notification.
func (s *Store) Create(n models.Notification) error {
	if err := store.SaveNotification(n); err != nil {
		return err
	}
	telemetry.NotificationCreated()
	logger.Debug("notification_created", "user", n.User, "kind", n.Kind, "message", n.Message)
	return nil
}

// List returns a user's notifications, newest first.
func (s *Store) List(userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out, err := store.ListNotifications(userID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// MarkRead flags the given notifications as read. Missing ids are
// ignored; an empty ids list marks every unread notification.
func (s *Store) MarkRead(userID string, ids []string) error {
	return store.MarkNotificationsRead(userID, ids)
}
