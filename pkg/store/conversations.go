package store

import (
	"encoding/json"
	"fmt"

	"glimpse/pkg/logger"
	"glimpse/pkg/models"
)

// SaveConversation stores conversation metadata and refreshes the
// membership index for every participant.
func SaveConversation(c models.Conversation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if err := setRaw(convMetaKey(c.ID), data); err != nil {
		logger.Error("save_conversation_failed", "conversation", c.ID, "error", err)
		return err
	}
	for _, p := range c.Participants {
		if err := setRaw(userConvKey(p.UserID, c.ID), []byte(c.ID)); err != nil {
			return err
		}
	}
	logger.Debug("conversation_saved", "conversation", c.ID)
	return nil
}

// GetConversation loads conversation metadata by id.
func GetConversation(id string) (models.Conversation, error) {
	var c models.Conversation
	v, err := getRaw(convMetaKey(id))
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(v, &c); err != nil {
		return c, fmt.Errorf("invalid conversation metadata: %w", err)
	}
	return c, nil
}

// RemoveMembership drops a user's membership index entry after they leave.
func RemoveMembership(userID, convID string) error {
	return deleteRaw(userConvKey(userID, convID))
}

// ListConversationIDsForUser returns the ids of conversations the user is
// a member of.
func ListConversationIDsForUser(userID string) ([]string, error) {
	prefix := []byte("userconv:" + userID + ":")
	var out []string
	err := iterPrefix(prefix, func(k, v []byte) bool {
		out = append(out, string(v))
		return true
	})
	return out, err
}

// ListConversationsForUser loads the full conversation records a user is a
// member of. Inactive conversations are included; callers filter.
func ListConversationsForUser(userID string) ([]models.Conversation, error) {
	ids, err := ListConversationIDsForUser(userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Conversation, 0, len(ids))
	for _, id := range ids {
		c, err := GetConversation(id)
		if err != nil {
			// stale index entry; skip
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// MutateConversation applies fn to a conversation under the store lock and
// persists the result. fn may return an error to abort without writing.
func MutateConversation(id string, fn func(*models.Conversation) error) (models.Conversation, error) {
	mu.Lock()
	defer mu.Unlock()
	c, err := GetConversation(id)
	if err != nil {
		return c, err
	}
	if err := fn(&c); err != nil {
		return c, err
	}
	if err := SaveConversation(c); err != nil {
		return c, err
	}
	return c, nil
}

// AdvanceParticipantCursor moves a participant's read cursor forward to
// the given message/timestamp. The cursor never moves backward; a stale
// update is a no-op that still succeeds.
func AdvanceParticipantCursor(convID, userID, messageID string, ts int64) (models.Conversation, error) {
	return MutateConversation(convID, func(c *models.Conversation) error {
		i := c.ParticipantIndex(userID)
		if i < 0 {
			return fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		if ts <= c.Participants[i].LastReadTS {
			return nil
		}
		c.Participants[i].LastReadMessageID = messageID
		c.Participants[i].LastReadTS = ts
		return nil
	})
}
