package messaging

import (
	"context"
	"errors"
	"time"

	"glimpse/pkg/logger"
	"glimpse/pkg/models"
	"glimpse/pkg/store"
)

// Edit replaces a message's text. Sender-only, and rejected once the edit
// window has elapsed. The previous text is appended to the edit history.
func (s *Service) Edit(ctx context.Context, msgID, requesterID, newText string) (models.Message, error) {
	if newText == "" {
		return models.Message{}, Validationf([]string{"text"}, "text is required")
	}
	now := s.now().UTC()
	m, err := store.MutateMessage(msgID, func(m *models.Message) error {
		if m.Deleted {
			return NotFoundf("message %s is deleted", msgID)
		}
		if m.Sender != requesterID {
			return Forbiddenf("only the sender may edit a message")
		}
		if now.Sub(time.Unix(0, m.TS)) > s.editWindow {
			return Policyf("edit window expired")
		}
		text, ok := m.Body.(models.TextBody)
		if !ok {
			return Policyf("only text messages can be edited")
		}
		m.EditHistory = append(m.EditHistory, models.EditEntry{Text: text.Text, TS: now.UnixNano()})
		m.Body = models.TextBody{Text: newText}
		m.Edited = true
		return nil
	})
	if err != nil {
		return m, mapStoreErr(err, msgID)
	}
	s.afterContentChange(&m, EventMessageUpdated)
	return m, nil
}

// Delete soft-deletes a message. Sender-only. Content and reactions are
// cleared but the tombstone remains so replies and forwards resolve.
func (s *Service) Delete(ctx context.Context, msgID, requesterID string) error {
	tombstoned := false
	m, err := store.MutateMessage(msgID, func(m *models.Message) error {
		if m.Deleted {
			return nil
		}
		if m.Sender != requesterID {
			return Forbiddenf("only the sender may delete a message")
		}
		m.Tombstone()
		tombstoned = true
		return nil
	})
	if err != nil {
		return mapStoreErr(err, msgID)
	}
	if tombstoned && m.Thread != nil && m.Thread.Parent != "" {
		// keep the parent's reply count in step with non-deleted replies
		if _, err := store.MutateMessage(m.Thread.Parent, func(p *models.Message) error {
			if p.Thread != nil && p.Thread.ReplyCount > 0 {
				p.Thread.ReplyCount--
			}
			return nil
		}); err != nil {
			logger.Error("thread_counter_update_failed", "parent", m.Thread.Parent, "error", err)
		}
	}
	s.afterContentChange(&m, EventMessageDeleted)
	return nil
}

// AddReaction sets the user's reaction on a message. A user holds at most
// one reaction per message: a different type replaces the previous one,
// the same type is an idempotent no-op that still succeeds.
func (s *Service) AddReaction(ctx context.Context, msgID, userID, reactionType string) (models.Message, error) {
	if reactionType == "" {
		return models.Message{}, Validationf([]string{"reaction_type"}, "reaction_type is required")
	}
	if err := s.requireMessageAccess(msgID, userID); err != nil {
		return models.Message{}, err
	}
	m, err := store.MutateMessage(msgID, func(m *models.Message) error {
		if m.Deleted {
			return NotFoundf("message %s is deleted", msgID)
		}
		if m.Reactions == nil {
			m.Reactions = map[string]models.Reaction{}
		}
		if cur, ok := m.Reactions[userID]; ok && cur.Type == reactionType {
			return nil
		}
		m.Reactions[userID] = models.Reaction{Type: reactionType, TS: s.now().UTC().UnixNano()}
		return nil
	})
	if err != nil {
		return m, mapStoreErr(err, msgID)
	}
	s.emit.EmitPublish(RoomConversation(m.Conversation), EventMessageUpdated, &m)
	return m, nil
}

// RemoveReaction clears the user's reaction. Removing an absent reaction
// is an idempotent no-op.
func (s *Service) RemoveReaction(ctx context.Context, msgID, userID string) (models.Message, error) {
	if err := s.requireMessageAccess(msgID, userID); err != nil {
		return models.Message{}, err
	}
	m, err := store.MutateMessage(msgID, func(m *models.Message) error {
		if m.Reactions != nil {
			delete(m.Reactions, userID)
		}
		return nil
	})
	if err != nil {
		return m, mapStoreErr(err, msgID)
	}
	s.emit.EmitPublish(RoomConversation(m.Conversation), EventMessageUpdated, &m)
	return m, nil
}

// Pin marks a message pinned and records it on the conversation's pinned
// list. Group conversations reserve pinning for the admin unless settings
// allow members; direct conversations allow either participant.
func (s *Service) Pin(ctx context.Context, msgID, userID string) error {
	return s.setPinned(ctx, msgID, userID, true)
}

// Unpin removes a message from the conversation's pinned list.
func (s *Service) Unpin(ctx context.Context, msgID, userID string) error {
	return s.setPinned(ctx, msgID, userID, false)
}

func (s *Service) setPinned(ctx context.Context, msgID, userID string, pinned bool) error {
	m, err := store.GetMessage(msgID)
	if err != nil {
		return mapStoreErr(err, msgID)
	}
	conv, err := store.GetConversation(m.Conversation)
	if err != nil {
		return NotFoundf("conversation %s not found", m.Conversation)
	}
	if !conv.CanPin(userID) {
		return Forbiddenf("user %s may not pin in %s", userID, conv.ID)
	}
	if _, err := store.MutateMessage(msgID, func(m *models.Message) error {
		if m.Deleted {
			return NotFoundf("message %s is deleted", msgID)
		}
		m.Pinned = pinned
		if pinned {
			if !contains(m.PinnedBy, userID) {
				m.PinnedBy = append(m.PinnedBy, userID)
			}
		} else {
			m.PinnedBy = exclude(m.PinnedBy, userID)
		}
		return nil
	}); err != nil {
		return mapStoreErr(err, msgID)
	}
	updated, err := store.MutateConversation(m.Conversation, func(c *models.Conversation) error {
		c.PinnedMessages = exclude(c.PinnedMessages, msgID)
		if pinned {
			c.PinnedMessages = append(c.PinnedMessages, msgID)
		}
		return nil
	})
	if err != nil {
		logger.Error("pin_list_update_failed", "conversation", m.Conversation, "error", err)
		return nil
	}
	s.emit.EmitPublish(RoomConversation(m.Conversation), EventConversationUpdate, &updated)
	return nil
}

// afterContentChange refreshes the conversation summary when the changed
// message is the current last message, then broadcasts the change.
func (s *Service) afterContentChange(m *models.Message, event string) {
	conv, err := store.GetConversation(m.Conversation)
	if err == nil && conv.LastMessage != nil && conv.LastMessage.MessageID == m.ID {
		latest, ok, lerr := store.LatestMessage(m.Conversation)
		if lerr == nil {
			updated, uerr := store.MutateConversation(m.Conversation, func(c *models.Conversation) error {
				if !ok {
					c.LastMessage = nil
					return nil
				}
				c.LastMessage = &models.LastMessage{
					MessageID: latest.ID,
					Preview:   latest.Preview(),
					Sender:    latest.Sender,
					TS:        latest.TS,
				}
				return nil
			})
			if uerr == nil {
				s.emit.EmitPublish(RoomConversation(m.Conversation), EventConversationUpdate, &updated)
			}
		}
	}
	s.emit.EmitPublish(RoomConversation(m.Conversation), event, m)
}

// requireMessageAccess checks the caller participates in the message's
// conversation.
func (s *Service) requireMessageAccess(msgID, userID string) error {
	m, err := store.GetMessage(msgID)
	if err != nil {
		return mapStoreErr(err, msgID)
	}
	conv, err := store.GetConversation(m.Conversation)
	if err != nil {
		return NotFoundf("conversation %s not found", m.Conversation)
	}
	if !conv.HasParticipant(userID) {
		return Forbiddenf("user %s is not a participant of %s", userID, conv.ID)
	}
	return nil
}

// mapStoreErr turns a raw store miss into a domain not-found; domain
// errors pass through unchanged.
func mapStoreErr(err error, msgID string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return NotFoundf("message %s not found", msgID)
	}
	return err
}
