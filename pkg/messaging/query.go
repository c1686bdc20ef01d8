package messaging

import (
	"context"
	"strings"

	"glimpse/pkg/models"
	"glimpse/pkg/store"
)

// MessageView pairs a message with query-time derived read state, so
// group clients get true per-recipient receipts despite the coarse stored
// watermark.
type MessageView struct {
	models.Message
	ReadBy []string `json:"read_by,omitempty"`
}

// MessagePage is one descending page of a conversation timeline.
type MessagePage struct {
	Items      []MessageView `json:"items"`
	Limit      int           `json:"limit"`
	HasNext    bool          `json:"has_next_page"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// ListMessages returns a page of conversation history, newest first.
// before is the opaque exclusive cursor from a previous page's
// next_cursor ("" = newest). The cursor names an exact timeline position,
// so pages split across a timestamp tie neither skip nor repeat.
func (s *Service) ListMessages(ctx context.Context, convID, requesterID string, limit int, before string) (MessagePage, error) {
	conv, err := s.requireParticipant(convID, requesterID)
	if err != nil {
		return MessagePage{}, err
	}
	if limit <= 0 {
		limit = 50
	}
	msgs, cursor, more, err := store.ListMessages(convID, limit, before)
	if err != nil {
		return MessagePage{}, err
	}
	page := MessagePage{Items: make([]MessageView, 0, len(msgs)), Limit: limit, HasNext: more}
	for _, m := range msgs {
		page.Items = append(page.Items, MessageView{Message: m, ReadBy: m.ReadBy(&conv)})
	}
	page.NextCursor = cursor
	return page, nil
}

// GetMessage fetches one message. Tombstones are returned with nulled
// content, not as 404; non-participants are rejected.
func (s *Service) GetMessage(ctx context.Context, msgID, requesterID string) (MessageView, error) {
	m, err := store.GetMessage(msgID)
	if err != nil {
		return MessageView{}, mapStoreErr(err, msgID)
	}
	conv, err := store.GetConversation(m.Conversation)
	if err != nil {
		return MessageView{}, NotFoundf("conversation %s not found", m.Conversation)
	}
	if !conv.HasParticipant(requesterID) {
		return MessageView{}, Forbiddenf("user %s is not a participant of %s", requesterID, conv.ID)
	}
	return MessageView{Message: m, ReadBy: m.ReadBy(&conv)}, nil
}

// ThreadPage is an ascending, offset-paginated slice of thread replies.
// Threads read top-down, the opposite of the main feed.
type ThreadPage struct {
	Parent *models.Message  `json:"parent"`
	Items  []models.Message `json:"items"`
	Offset int              `json:"offset"`
	Limit  int              `json:"limit"`
}

// Thread lists replies under a parent message, oldest first.
func (s *Service) Thread(ctx context.Context, parentID, requesterID string, offset, limit int) (ThreadPage, error) {
	parent, err := store.GetMessage(parentID)
	if err != nil {
		return ThreadPage{}, mapStoreErr(err, parentID)
	}
	if _, err := s.requireParticipant(parent.Conversation, requesterID); err != nil {
		return ThreadPage{}, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	items, err := store.ListThreadReplies(parentID, offset, limit)
	if err != nil {
		return ThreadPage{}, err
	}
	return ThreadPage{Parent: &parent, Items: items, Offset: offset, Limit: limit}, nil
}

// SearchQuery filters message search. All fields are optional; the scope
// is always limited to conversations the caller participates in.
type SearchQuery struct {
	Text         string
	Conversation string
	Sender       string
	BodyKind     string
	DateFrom     int64
	DateTo       int64
	Limit        int
}

// Search scans the caller's conversations for matching messages, newest
// first.
func (s *Service) Search(ctx context.Context, requesterID string, q SearchQuery) ([]models.Message, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	var convIDs []string
	if q.Conversation != "" {
		if _, err := s.requireParticipant(q.Conversation, requesterID); err != nil {
			return nil, err
		}
		convIDs = []string{q.Conversation}
	} else {
		ids, err := store.ListConversationIDsForUser(requesterID)
		if err != nil {
			return nil, err
		}
		convIDs = ids
	}
	needle := strings.ToLower(q.Text)
	var out []models.Message
	for _, cid := range convIDs {
		if len(out) >= q.Limit {
			break
		}
		err := store.WalkMessages(cid, func(m models.Message) bool {
			if len(out) >= q.Limit {
				return false
			}
			if matchMessage(&m, &q, needle) {
				out = append(out, m)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func matchMessage(m *models.Message, q *SearchQuery, needle string) bool {
	if m.Deleted {
		return false
	}
	if q.Sender != "" && m.Sender != q.Sender {
		return false
	}
	if q.DateFrom > 0 && m.TS < q.DateFrom {
		return false
	}
	if q.DateTo > 0 && m.TS > q.DateTo {
		return false
	}
	if q.BodyKind != "" && (m.Body == nil || m.Body.Kind() != q.BodyKind) {
		return false
	}
	if needle != "" {
		var hay string
		switch b := m.Body.(type) {
		case models.TextBody:
			hay = b.Text
		case models.AttachmentBody:
			hay = b.Caption
			for _, a := range b.Attachments {
				hay += " " + a.FileName
			}
		default:
			return false
		}
		if !strings.Contains(strings.ToLower(hay), needle) {
			return false
		}
	}
	return true
}
