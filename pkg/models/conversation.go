package models

// Participant is one member of a conversation together with their read
// cursor. LastReadTS/LastReadMessageID only move forward.
type Participant struct {
	UserID            string `json:"user_id"`
	LastReadMessageID string `json:"last_read_message_id,omitempty"`
	LastReadTS        int64  `json:"last_read_ts,omitempty"`
	JoinedTS          int64  `json:"joined_ts"`
}

// GroupSettings gates member actions in group conversations. Defaults are
// permissive invite, restrictive edit/delete/pin.
type GroupSettings struct {
	AllowMemberInvite bool `json:"allow_member_invite"`
	AllowMemberEdit   bool `json:"allow_member_edit"`
	AllowMemberDelete bool `json:"allow_member_delete"`
	AllowMemberPin    bool `json:"allow_member_pin"`
}

// DefaultGroupSettings returns the group defaults applied at creation.
func DefaultGroupSettings() GroupSettings {
	return GroupSettings{AllowMemberInvite: true}
}

// LastMessage is the denormalized summary shown in conversation lists. It
// always reflects the most recently created non-deleted message.
type LastMessage struct {
	MessageID string `json:"message_id"`
	Preview   string `json:"preview"`
	Sender    string `json:"sender"`
	TS        int64  `json:"ts"`
}

type Conversation struct {
	ID string `json:"id"`
	// Name is empty for direct conversations; display name then falls
	// back to the other participant's username.
	Name         string        `json:"name,omitempty"`
	IsGroup      bool          `json:"is_group"`
	Admin        string        `json:"admin,omitempty"`
	Participants []Participant `json:"participants"`
	Settings     GroupSettings `json:"settings"`

	LastMessage    *LastMessage `json:"last_message,omitempty"`
	PinnedMessages []string     `json:"pinned_messages,omitempty"`

	// ParentConversation links a thread conversation to its origin.
	// Message-level threading (Message.Thread) is the primary path.
	ParentConversation string `json:"parent_conversation,omitempty"`

	// Active is the soft-delete flag; cleared once all participants left
	// or the admin deleted the conversation. Never hard-deleted.
	Active    bool  `json:"active"`
	CreatedTS int64 `json:"created_ts"`
	UpdatedTS int64 `json:"updated_ts"`
}

// HasParticipant reports whether the user is a current participant.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.ParticipantIndex(userID) >= 0
}

// ParticipantIndex returns the index of the participant or -1.
func (c *Conversation) ParticipantIndex(userID string) int {
	for i, p := range c.Participants {
		if p.UserID == userID {
			return i
		}
	}
	return -1
}

// CanPin reports whether the user may pin or unpin messages here. Groups
// reserve pinning for the admin unless settings allow members.
func (c *Conversation) CanPin(userID string) bool {
	if !c.HasParticipant(userID) {
		return false
	}
	if !c.IsGroup {
		return true
	}
	return c.Admin == userID || c.Settings.AllowMemberPin
}

// CanInvite reports whether the user may add participants.
func (c *Conversation) CanInvite(userID string) bool {
	if !c.HasParticipant(userID) {
		return false
	}
	if !c.IsGroup {
		return false
	}
	return c.Admin == userID || c.Settings.AllowMemberInvite
}

// ParticipantIDs returns all participant user ids in join order.
func (c *Conversation) ParticipantIDs() []string {
	out := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		out = append(out, p.UserID)
	}
	return out
}
