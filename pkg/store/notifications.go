package store

import (
	"encoding/json"
	"fmt"

	"glimpse/pkg/logger"
	"glimpse/pkg/models"
)

// SaveNotification appends a fan-out record for a user.
func SaveNotification(n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	key := notifKey(n.User, n.TS, NextSeq())
	if err := setRaw([]byte(key), data); err != nil {
		logger.Error("save_notification_failed", "user", n.User, "error", err)
		return err
	}
	return nil
}

// ListNotifications returns a user's notifications, newest last, up to
// limit (0 means all).
func ListNotifications(userID string, limit int) ([]models.Notification, error) {
	prefix := []byte("notif:" + userID + ":")
	var out []models.Notification
	err := iterPrefix(prefix, func(k, v []byte) bool {
		var n models.Notification
		if err := json.Unmarshal(v, &n); err == nil {
			out = append(out, n)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// MarkNotificationsRead flags a user's notifications as read. With an
// empty id list every unread record is flagged; otherwise only matching
// ids are, and unknown ids are ignored.
func MarkNotificationsRead(userID string, ids []string) error {
	var want map[string]struct{}
	if len(ids) > 0 {
		want = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			want[id] = struct{}{}
		}
	}
	prefix := []byte("notif:" + userID + ":")
	type entry struct {
		key []byte
		n   models.Notification
	}
	var pending []entry
	err := iterPrefix(prefix, func(k, v []byte) bool {
		var n models.Notification
		if err := json.Unmarshal(v, &n); err != nil || n.Read {
			return true
		}
		if want != nil {
			if _, ok := want[n.ID]; !ok {
				return true
			}
		}
		pending = append(pending, entry{key: k, n: n})
		return true
	})
	if err != nil {
		return err
	}
	for _, e := range pending {
		e.n.Read = true
		data, err := json.Marshal(e.n)
		if err != nil {
			continue
		}
		if err := setRaw(e.key, data); err != nil {
			return err
		}
	}
	return nil
}

// PurgeReadNotifications deletes read notifications older than cutoffTS
// across all users. Returns the number of records removed.
func PurgeReadNotifications(cutoffTS int64) (int, error) {
	prefix := []byte("notif:")
	var victims [][]byte
	err := iterPrefix(prefix, func(k, v []byte) bool {
		var n models.Notification
		if err := json.Unmarshal(v, &n); err != nil {
			return true
		}
		if n.Read && n.TS < cutoffTS {
			victims = append(victims, k)
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	for _, k := range victims {
		if err := deleteRaw(k); err != nil {
			return 0, err
		}
	}
	if len(victims) > 0 {
		logger.Info("notifications_purged", "count", len(victims))
	}
	return len(victims), nil
}
