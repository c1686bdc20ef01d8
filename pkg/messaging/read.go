package messaging

import (
	"context"

	"glimpse/pkg/logger"
	"glimpse/pkg/models"
	"glimpse/pkg/store"
)

// MarkConversationRead moves the caller's read cursor to the newest
// non-deleted message and bulk-transitions older other-sender messages to
// read. The stored status is a conversation-wide watermark: exact for
// two-party conversations, "read by at least one" in groups (per-recipient
// state is derived from cursors at query time instead).
func (s *Service) MarkConversationRead(ctx context.Context, convID, userID string) (*models.Message, error) {
	if _, err := s.requireParticipant(convID, userID); err != nil {
		return nil, err
	}
	latest, ok, err := store.LatestMessage(convID)
	if !ok || err != nil {
		return nil, err
	}
	if _, err := store.AdvanceParticipantCursor(convID, userID, latest.ID, latest.TS); err != nil {
		return nil, err
	}

	// Bulk watermark transition. Statuses are monotone along the
	// timeline, so the walk stops at the first already-read message from
	// another sender.
	var pending []string
	werr := store.WalkMessages(convID, func(m models.Message) bool {
		if m.TS > latest.TS {
			return true
		}
		if m.Sender == userID || m.Deleted {
			return true
		}
		if m.Status == models.StatusRead {
			return false
		}
		pending = append(pending, m.ID)
		return true
	})
	if werr != nil {
		logger.Error("mark_read_walk_failed", "conversation", convID, "error", werr)
	}
	for _, id := range pending {
		if _, err := store.MutateMessage(id, func(m *models.Message) error {
			if m.Status.Rank() < models.StatusRead.Rank() {
				m.Status = models.StatusRead
			}
			return nil
		}); err != nil {
			logger.Error("mark_read_transition_failed", "msg", id, "error", err)
		}
	}

	s.emit.EmitPublish(RoomConversation(convID), EventMessageRead, &ReadReceipt{
		Conversation: convID,
		User:         userID,
		LastRead:     &latest,
		TS:           s.now().UTC().UnixNano(),
	})
	return &latest, nil
}

// UpdateParticipantLastRead is the explicit cursor upsert: idempotent,
// never moves the cursor backward. The message must belong to the
// conversation.
func (s *Service) UpdateParticipantLastRead(ctx context.Context, convID, userID, messageID string) error {
	if _, err := s.requireParticipant(convID, userID); err != nil {
		return err
	}
	m, err := store.GetMessage(messageID)
	if err != nil {
		return mapStoreErr(err, messageID)
	}
	if m.Conversation != convID {
		return Validationf([]string{"message_id"}, "message %s does not belong to conversation %s", messageID, convID)
	}
	if _, err := store.AdvanceParticipantCursor(convID, userID, m.ID, m.TS); err != nil {
		return err
	}
	return nil
}

// UpdateStatus applies a client-driven status transition with a guard
// against regression; a stale downstream sync is a no-op that still
// succeeds.
func (s *Service) UpdateStatus(ctx context.Context, msgID, requesterID string, status models.Status) (models.Message, error) {
	if !status.Valid() {
		return models.Message{}, Validationf([]string{"status"}, "unknown status %q", status)
	}
	if err := s.requireMessageAccess(msgID, requesterID); err != nil {
		return models.Message{}, err
	}
	changed := false
	m, err := store.MutateMessage(msgID, func(m *models.Message) error {
		if status.Rank() <= m.Status.Rank() {
			return nil
		}
		m.Status = status
		changed = true
		return nil
	})
	if err != nil {
		return m, mapStoreErr(err, msgID)
	}
	if changed {
		s.emit.EmitPublish(RoomConversation(m.Conversation), EventMessageUpdated, &m)
	}
	return m, nil
}
