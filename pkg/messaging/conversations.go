package messaging

import (
	"context"

	"glimpse/pkg/logger"
	"glimpse/pkg/models"
	"glimpse/pkg/store"
	"glimpse/pkg/utils"
)

// CreateConversationInput is the validated payload for conversation
// creation. Participants lists the other members; the creator is added
// automatically.
type CreateConversationInput struct {
	Name         string
	IsGroup      bool
	Participants []string
	Settings     *models.GroupSettings
}

// CreateConversation creates a direct or group conversation. Direct
// conversations hold exactly two participants; groups hold the creator
// plus at least one more, with the creator as admin unless one is set
// later.
func (s *Service) CreateConversation(ctx context.Context, creatorID string, in CreateConversationInput) (models.Conversation, error) {
	now := s.now().UTC().UnixNano()

	members := []string{creatorID}
	for _, id := range in.Participants {
		if id != creatorID && !contains(members, id) {
			members = append(members, id)
		}
	}
	if in.IsGroup {
		if len(members) < 2 {
			return models.Conversation{}, Validationf([]string{"participants"}, "a group needs at least one other participant")
		}
	} else if len(members) != 2 {
		return models.Conversation{}, Validationf([]string{"participants"}, "a direct conversation has exactly two participants")
	}

	c := models.Conversation{
		ID:        utils.GenConvID(),
		Name:      in.Name,
		IsGroup:   in.IsGroup,
		Active:    true,
		Settings:  models.DefaultGroupSettings(),
		CreatedTS: now,
		UpdatedTS: now,
	}
	if in.IsGroup {
		c.Admin = creatorID
		if in.Settings != nil {
			c.Settings = *in.Settings
		}
	}
	for _, id := range members {
		c.Participants = append(c.Participants, models.Participant{UserID: id, JoinedTS: now})
	}
	if err := store.SaveConversation(c); err != nil {
		return c, err
	}
	for _, id := range members {
		s.emit.EmitPublish(RoomUser(id), EventConversationUpdate, &c)
	}
	return c, nil
}

// AddParticipant adds a user to a group conversation. Requires admin or
// member-invite permission; adding an existing member is a no-op.
func (s *Service) AddParticipant(ctx context.Context, convID, actorID, userID string) (models.Conversation, error) {
	conv, err := s.requireParticipant(convID, actorID)
	if err != nil {
		return conv, err
	}
	if !conv.IsGroup {
		return conv, Policyf("cannot add participants to a direct conversation")
	}
	if !conv.CanInvite(actorID) {
		return conv, Forbiddenf("user %s may not invite into %s", actorID, convID)
	}
	now := s.now().UTC().UnixNano()
	updated, err := store.MutateConversation(convID, func(c *models.Conversation) error {
		if c.HasParticipant(userID) {
			return nil
		}
		c.Participants = append(c.Participants, models.Participant{UserID: userID, JoinedTS: now})
		c.UpdatedTS = now
		return nil
	})
	if err != nil {
		return updated, err
	}
	s.emit.EmitPublish(RoomConversation(convID), EventParticipantAdded, &ParticipantEvent{
		Conversation: convID, User: userID, Actor: actorID, TS: now,
	})
	s.emit.EmitPublish(RoomUser(userID), EventConversationUpdate, &updated)
	return updated, nil
}

// RemoveParticipant removes a user from a group conversation. A user may
// remove themselves (leave); removing others requires the admin. When the
// last participant leaves the conversation is deactivated, not deleted;
// when the admin leaves, the longest-standing member inherits the role.
func (s *Service) RemoveParticipant(ctx context.Context, convID, actorID, userID string) (models.Conversation, error) {
	conv, err := s.requireParticipant(convID, actorID)
	if err != nil {
		return conv, err
	}
	if actorID != userID && (!conv.IsGroup || conv.Admin != actorID) {
		return conv, Forbiddenf("only the admin may remove other participants")
	}
	now := s.now().UTC().UnixNano()
	updated, err := store.MutateConversation(convID, func(c *models.Conversation) error {
		i := c.ParticipantIndex(userID)
		if i < 0 {
			return NotFoundf("user %s is not a participant of %s", userID, convID)
		}
		c.Participants = append(c.Participants[:i], c.Participants[i+1:]...)
		c.UpdatedTS = now
		if len(c.Participants) == 0 {
			c.Active = false
			return nil
		}
		if c.IsGroup && c.Admin == userID {
			c.Admin = c.Participants[0].UserID
		}
		return nil
	})
	if err != nil {
		return updated, err
	}
	if err := store.RemoveMembership(userID, convID); err != nil {
		logger.Warn("membership_index_remove_failed", "user", userID, "conversation", convID, "error", err)
	}
	s.emit.EmitPublish(RoomConversation(convID), EventParticipantRemoved, &ParticipantEvent{
		Conversation: convID, User: userID, Actor: actorID, TS: now,
	})
	return updated, nil
}

// UpdateSettings replaces a group's member-permission settings. Admin
// only.
func (s *Service) UpdateSettings(ctx context.Context, convID, actorID string, settings models.GroupSettings) (models.Conversation, error) {
	conv, err := s.requireParticipant(convID, actorID)
	if err != nil {
		return conv, err
	}
	if !conv.IsGroup {
		return conv, Policyf("direct conversations have no group settings")
	}
	if conv.Admin != actorID {
		return conv, Forbiddenf("only the admin may change group settings")
	}
	now := s.now().UTC().UnixNano()
	updated, err := store.MutateConversation(convID, func(c *models.Conversation) error {
		c.Settings = settings
		c.UpdatedTS = now
		return nil
	})
	if err != nil {
		return updated, err
	}
	s.emit.EmitPublish(RoomConversation(convID), EventConversationUpdate, &updated)
	return updated, nil
}

// ConversationView is a sidebar entry: the conversation plus its resolved
// display name and the caller's unread count.
type ConversationView struct {
	models.Conversation
	DisplayName string `json:"display_name"`
	Unread      int    `json:"unread"`
}

// ListConversations returns the caller's active conversations for the
// sidebar, with unread counts derived from the participant cursor.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]ConversationView, error) {
	convs, err := store.ListConversationsForUser(userID)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		if !c.Active {
			continue
		}
		view := ConversationView{Conversation: c, DisplayName: s.DisplayName(&c, userID)}
		if i := c.ParticipantIndex(userID); i >= 0 {
			n, err := store.CountUnread(c.ID, userID, c.Participants[i].LastReadTS)
			if err == nil {
				view.Unread = n
			}
		}
		out = append(out, view)
	}
	return out, nil
}

// GetConversation fetches one conversation for a participant.
func (s *Service) GetConversation(ctx context.Context, convID, userID string) (ConversationView, error) {
	conv, err := store.GetConversation(convID)
	if err != nil {
		return ConversationView{}, NotFoundf("conversation %s not found", convID)
	}
	if !conv.HasParticipant(userID) {
		return ConversationView{}, Forbiddenf("user %s is not a participant of %s", userID, convID)
	}
	return ConversationView{Conversation: conv, DisplayName: s.DisplayName(&conv, userID)}, nil
}

// DisplayName resolves a conversation's display name for a viewer. Named
// conversations use their name; unnamed ones fall back to the other
// participants' usernames from the directory.
func (s *Service) DisplayName(c *models.Conversation, viewerID string) string {
	if c.Name != "" {
		return c.Name
	}
	var names []string
	for _, p := range c.Participants {
		if p.UserID == viewerID {
			continue
		}
		name := p.UserID
		if s.users != nil {
			if u, err := s.users.GetUser(p.UserID); err == nil && u.Username != "" {
				name = u.Username
			}
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "(empty)"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}
