package store

import (
	"encoding/json"
	"fmt"

	"glimpse/pkg/logger"
	"glimpse/pkg/models"

	"github.com/cockroachdb/pebble"
)

// AppendMessage writes a new message to its conversation timeline and
// indexes it by id. If the message is a thread reply it is also indexed
// under its parent. Edits must go through MutateMessage instead; the
// timeline position is fixed at creation.
func AppendMessage(m models.Message) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	s := NextSeq()
	key := MsgKey(m.Conversation, m.TS, s)
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := setRaw([]byte(key), data); err != nil {
		logger.Error("append_message_failed", "conversation", m.Conversation, "key", key, "error", err)
		return err
	}
	if err := setRaw(msgIndexKey(m.ID), []byte(key)); err != nil {
		logger.Error("append_message_index_failed", "msg", m.ID, "error", err)
		return err
	}
	if m.Thread != nil && m.Thread.Parent != "" {
		if err := setRaw([]byte(threadKey(m.Thread.Parent, m.TS, s)), []byte(m.ID)); err != nil {
			return err
		}
	}
	logger.Info("message_saved", "conversation", m.Conversation, "msg", m.ID)
	return nil
}

// GetMessage loads the current state of a message by id. Tombstones are
// returned as stored; callers decide whether to filter them.
func GetMessage(id string) (models.Message, error) {
	var m models.Message
	key, err := getRaw(msgIndexKey(id))
	if err != nil {
		return m, err
	}
	v, err := getRaw(key)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("invalid stored message: %w", err)
	}
	return m, nil
}

// MutateMessage applies fn to a message under the store lock and rewrites
// it in place, keeping its timeline position. fn may return an error to
// abort without writing.
func MutateMessage(id string, fn func(*models.Message) error) (models.Message, error) {
	mu.Lock()
	defer mu.Unlock()
	var m models.Message
	key, err := getRaw(msgIndexKey(id))
	if err != nil {
		return m, err
	}
	v, err := getRaw(key)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("invalid stored message: %w", err)
	}
	if err := fn(&m); err != nil {
		return m, err
	}
	data, merr := json.Marshal(m)
	if merr != nil {
		return m, fmt.Errorf("failed to marshal message: %w", merr)
	}
	if err := setRaw(key, data); err != nil {
		logger.Error("mutate_message_failed", "msg", id, "error", err)
		return m, err
	}
	return m, nil
}

// ListMessages returns up to limit messages of a conversation in
// descending creation order. before is an exclusive timeline-key cursor
// from a previous page ("" means newest first). The string result is the
// cursor for the page after this one; the bool reports whether older
// messages remain.
func ListMessages(convID string, limit int, before string) ([]models.Message, string, bool, error) {
	if db == nil {
		return nil, "", false, fmt.Errorf("pebble not opened; call store.Open first")
	}
	if limit <= 0 {
		limit = 50
	}
	prefix := msgPrefix(convID)
	upper := string(prefix) + "\xff"
	if before != "" {
		// the cursor is the ts-seq key suffix of the last message seen,
		// so SeekLT resumes exactly below it even at timestamp ties
		upper = string(prefix) + before
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, "", false, err
	}
	defer iter.Close()
	var out []models.Message
	cursor := ""
	more := false
	for valid := iter.SeekLT([]byte(upper)); valid; valid = iter.Prev() {
		if !hasPrefix(iter.Key(), prefix) {
			break
		}
		if len(out) >= limit {
			more = true
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("list_messages_invalid_json", "conversation", convID, "error", err)
			continue
		}
		out = append(out, m)
		cursor = string(iter.Key()[len(prefix):])
	}
	return out, cursor, more, iter.Error()
}

// LatestMessage returns the most recent non-deleted message of a
// conversation, or ok=false when the timeline is empty.
func LatestMessage(convID string) (models.Message, bool, error) {
	msgs, _, _, err := ListMessages(convID, 25, "")
	if err != nil {
		return models.Message{}, false, err
	}
	for _, m := range msgs {
		if !m.Deleted {
			return m, true, nil
		}
	}
	return models.Message{}, false, nil
}

// ListThreadReplies returns replies to a parent message oldest-first with
// offset pagination. Threads read top-down, unlike the main feed.
func ListThreadReplies(parentID string, offset, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	prefix := []byte("threadmsg:" + parentID + ":")
	var ids []string
	err := iterPrefix(prefix, func(k, v []byte) bool {
		ids = append(ids, string(v))
		return true
	})
	if err != nil {
		return nil, err
	}
	if offset >= len(ids) {
		return []models.Message{}, nil
	}
	ids = ids[offset:]
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		m, err := GetMessage(id)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// CountUnread counts messages in a conversation newer than the given
// cursor timestamp that were sent by someone else.
func CountUnread(convID, userID string, afterTS int64) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := msgPrefix(convID)
	start := fmt.Sprintf("%s%020d", prefix, afterTS+1)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for iter.SeekGE([]byte(start)); iter.Valid(); iter.Next() {
		if !hasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if m.Deleted || m.Sender == userID {
			continue
		}
		n++
	}
	return n, iter.Error()
}

// WalkMessages walks a conversation timeline in descending order calling
// fn for each message. Returning false stops the walk. Used by search and
// bulk read transitions.
func WalkMessages(convID string, fn func(models.Message) bool) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := msgPrefix(convID)
	upper := string(prefix) + "\xff"
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	for valid := iter.SeekLT([]byte(upper)); valid; valid = iter.Prev() {
		if !hasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if !fn(m) {
			break
		}
	}
	return iter.Error()
}
