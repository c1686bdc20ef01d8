package messaging

import (
	"context"
	"time"

	"glimpse/pkg/logger"
	"glimpse/pkg/models"
	"glimpse/pkg/store"
	"glimpse/pkg/telemetry"
	"glimpse/pkg/utils"
)

// DefaultEditWindow bounds how long after creation a message stays
// editable.
const DefaultEditWindow = 15 * time.Minute

// Service orchestrates message and conversation operations. Collaborators
// are injected; the service never reaches for ambient globals beyond the
// store package.
type Service struct {
	emit       Emitter
	users      Directory
	editWindow time.Duration

	// now is swappable for tests that simulate elapsed time.
	now func() time.Time
}

// New builds a Service. editWindow <= 0 falls back to DefaultEditWindow.
func New(emit Emitter, users Directory, editWindow time.Duration) *Service {
	if editWindow <= 0 {
		editWindow = DefaultEditWindow
	}
	return &Service{emit: emit, users: users, editWindow: editWindow, now: time.Now}
}

// SendInput is the already-validated payload for message creation. The
// API boundary performs shape validation; the service enforces access and
// linkage semantics.
type SendInput struct {
	Conversation string
	Body         models.Body
	ReplyTo      string
	ThreadParent string
	Metadata     *models.Metadata

	// forward linkage, set by Forward only
	forwardedFrom string
	forwardInfo   *models.ForwardInfo
}

// Send creates a message in a conversation. Reply and thread linkage are
// tolerant: a missing or deleted target drops the linkage rather than
// failing the send. Side effects (summary update, self-read cursor, live
// events, delivered transition, fan-out) run after the write; none can
// fail the call.
func (s *Service) Send(ctx context.Context, senderID string, in SendInput) (models.Message, error) {
	conv, err := s.requireParticipant(in.Conversation, senderID)
	if err != nil {
		return models.Message{}, err
	}
	if in.Body == nil {
		return models.Message{}, Validationf([]string{"body"}, "body is required")
	}

	m := models.Message{
		ID:           utils.GenID(),
		Conversation: conv.ID,
		Sender:       senderID,
		TS:           s.now().UTC().UnixNano(),
		Body:         in.Body,
		Status:       models.StatusSent,
		Metadata:     in.Metadata,
		Forwarded:    in.forwardedFrom,
		ForwardInfo:  in.forwardInfo,
	}

	if in.ReplyTo != "" {
		if target, err := store.GetMessage(in.ReplyTo); err == nil && !target.Deleted {
			m.ReplyTo = target.ID
			m.ReplyInfo = replySnapshot(&target)
		}
	}
	if in.ThreadParent != "" {
		if parent, err := store.GetMessage(in.ThreadParent); err == nil && !parent.Deleted {
			m.Thread = &models.ThreadInfo{Parent: parent.ID}
		}
	}

	if err := store.AppendMessage(m); err != nil {
		return models.Message{}, err
	}
	telemetry.MessageCreated()

	s.afterCreate(&m)
	return m, nil
}

// Reply creates a reply to an existing message. Unlike Send's tolerant
// reply linkage, the parent must exist and not be deleted; every reply
// extends (or starts) the parent's thread, in the parent's conversation.
func (s *Service) Reply(ctx context.Context, parentID, senderID string, in SendInput) (models.Message, error) {
	parent, err := store.GetMessage(parentID)
	if err != nil {
		return models.Message{}, NotFoundf("parent message %s not found", parentID)
	}
	if parent.Deleted {
		return models.Message{}, NotFoundf("parent message %s is deleted", parentID)
	}
	in.Conversation = parent.Conversation
	in.ReplyTo = parentID
	in.ThreadParent = parentID
	return s.Send(ctx, senderID, in)
}

// Forward copies messages into target conversations carrying an origin
// snapshot. Pairs that fail validation (origin unreadable, target missing
// or foreign) are skipped; the result is the successfully forwarded
// subset. Partial success is the contract, not an error.
func (s *Service) Forward(ctx context.Context, forwarderID string, messageIDs, targetConvIDs []string) []models.Message {
	var out []models.Message
	for _, msgID := range messageIDs {
		src, err := store.GetMessage(msgID)
		if err != nil || src.Deleted {
			logger.Debug("forward_skip_source", "msg", msgID)
			continue
		}
		if _, err := s.requireParticipant(src.Conversation, forwarderID); err != nil {
			logger.Debug("forward_skip_no_access", "msg", msgID, "user", forwarderID)
			continue
		}
		info := &models.ForwardInfo{
			MessageID:    src.ID,
			Sender:       src.Sender,
			Conversation: src.Conversation,
			Preview:      src.Preview(),
		}
		for _, target := range targetConvIDs {
			fwd, err := s.Send(ctx, forwarderID, SendInput{
				Conversation:  target,
				Body:          src.Body,
				forwardedFrom: src.Sender,
				forwardInfo:   info,
			})
			if err != nil {
				logger.Debug("forward_skip_target", "msg", msgID, "target", target, "error", err)
				continue
			}
			out = append(out, fwd)
		}
	}
	return out
}

// afterCreate runs the ordered post-write side effects for a new message.
func (s *Service) afterCreate(m *models.Message) {
	// (a) conversation summary + (b) sender's own read cursor
	conv, err := store.MutateConversation(m.Conversation, func(c *models.Conversation) error {
		c.LastMessage = &models.LastMessage{
			MessageID: m.ID,
			Preview:   m.Preview(),
			Sender:    m.Sender,
			TS:        m.TS,
		}
		c.UpdatedTS = m.TS
		if i := c.ParticipantIndex(m.Sender); i >= 0 && m.TS > c.Participants[i].LastReadTS {
			c.Participants[i].LastReadMessageID = m.ID
			c.Participants[i].LastReadTS = m.TS
		}
		return nil
	})
	if err != nil {
		logger.Error("conversation_summary_update_failed", "conversation", m.Conversation, "error", err)
	}

	// (f) thread aggregation on the parent
	if m.Thread != nil && m.Thread.Parent != "" {
		if _, err := store.MutateMessage(m.Thread.Parent, func(p *models.Message) error {
			if p.Thread == nil {
				p.Thread = &models.ThreadInfo{}
			}
			p.Thread.ReplyCount++
			p.Thread.LastReplyTS = m.TS
			if !contains(p.Thread.Participants, m.Sender) {
				p.Thread.Participants = append(p.Thread.Participants, m.Sender)
			}
			return nil
		}); err != nil {
			logger.Error("thread_counter_update_failed", "parent", m.Thread.Parent, "error", err)
		}
	}

	// (c)(d) live events, (e) async delivered transition, then fan-out
	room := RoomConversation(m.Conversation)
	s.emit.EmitPublish(room, EventMessageSend, m)
	s.emit.EmitPublish(room, EventConversationUpdate, conv)
	s.emit.EmitDeliver(m.Conversation, m.ID)
	s.emit.EmitNotify(NotifyIntent{
		Recipients:   exclude(conv.ParticipantIDs(), m.Sender),
		Kind:         "message",
		Conversation: m.Conversation,
		Message:      m.ID,
		Actor:        m.Sender,
		Preview:      m.Preview(),
		TS:           m.TS,
	})
}

// requireParticipant loads an active conversation and checks membership.
func (s *Service) requireParticipant(convID, userID string) (models.Conversation, error) {
	conv, err := store.GetConversation(convID)
	if err != nil {
		return conv, NotFoundf("conversation %s not found", convID)
	}
	if !conv.Active {
		return conv, NotFoundf("conversation %s is not active", convID)
	}
	if !conv.HasParticipant(userID) {
		return conv, Forbiddenf("user %s is not a participant of %s", userID, convID)
	}
	return conv, nil
}

func replySnapshot(target *models.Message) *models.ReplyInfo {
	kind := ""
	if target.Body != nil {
		kind = target.Body.Kind()
	}
	return &models.ReplyInfo{
		MessageID: target.ID,
		Sender:    target.Sender,
		Preview:   target.Preview(),
		BodyKind:  kind,
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func exclude(ss []string, drop string) []string {
	out := make([]string, 0, len(ss))
	for _, v := range ss {
		if v != drop {
			out = append(out, v)
		}
	}
	return out
}
