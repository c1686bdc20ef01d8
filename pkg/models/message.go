package models

// Status is the coarse delivery state of a message. It is a single
// watermark per message (strictly correct only for two-party
// conversations); per-recipient read state is derived from participant
// cursors at query time.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// Rank orders statuses so transitions can be checked for regression.
func (s Status) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool { return s.Rank() != 0 }

// Reaction is a single user's reaction to a message. Reactions are keyed
// by user id on the message, so a user holds at most one at a time.
type Reaction struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

// ReplyInfo is an immutable snapshot of the replied-to message taken when
// the reply is created. It is never re-synced if the original message is
// later edited or deleted.
type ReplyInfo struct {
	MessageID string `json:"message_id"`
	Sender    string `json:"sender"`
	Preview   string `json:"preview,omitempty"`
	BodyKind  string `json:"body_kind,omitempty"`
}

// ForwardInfo is an immutable snapshot of the origin of a forwarded
// message. Forwarding does not require the origin to still exist.
type ForwardInfo struct {
	MessageID    string `json:"message_id"`
	Sender       string `json:"sender"`
	Conversation string `json:"conversation"`
	Preview      string `json:"preview,omitempty"`
}

// ThreadInfo tracks the reply chain rooted at a parent message. On the
// parent it aggregates counters; on a reply it carries the parent link.
type ThreadInfo struct {
	Parent       string   `json:"parent,omitempty"`
	ReplyCount   int      `json:"reply_count,omitempty"`
	LastReplyTS  int64    `json:"last_reply_ts,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

// EditEntry records a prior body text, appended on each edit.
type EditEntry struct {
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// Metadata carries client-supplied request metadata, echoed back so
// clients can reconcile optimistic UI state.
type Metadata struct {
	ClientMessageID string `json:"client_message_id,omitempty"`
	DeviceID        string `json:"device_id,omitempty"`
	Platform        string `json:"platform,omitempty"`
}

type Message struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	Sender       string `json:"sender"`
	// TS is the creation timestamp (ns). Immutable after creation; edits
	// do not move the message in the timeline.
	TS   int64 `json:"ts"`
	Body Body  `json:"body,omitempty"`

	ReplyTo     string       `json:"reply_to,omitempty"`
	ReplyInfo   *ReplyInfo   `json:"reply_info,omitempty"`
	Forwarded   string       `json:"forwarded_from,omitempty"`
	ForwardInfo *ForwardInfo `json:"forward_info,omitempty"`
	Thread      *ThreadInfo  `json:"thread,omitempty"`

	Reactions map[string]Reaction `json:"reactions,omitempty"`

	Status Status `json:"status"`
	// Deleted marks a tombstone: body and reactions are cleared but the
	// record remains so replies and forwards still resolve.
	Deleted     bool        `json:"deleted,omitempty"`
	Edited      bool        `json:"edited,omitempty"`
	EditHistory []EditEntry `json:"edit_history,omitempty"`
	Pinned      bool        `json:"pinned,omitempty"`
	PinnedBy    []string    `json:"pinned_by,omitempty"`

	Metadata *Metadata `json:"metadata,omitempty"`
}

// Preview returns a short display text for denormalized summaries
// (conversation last-message line, reply snapshots).
func (m *Message) Preview() string {
	if m.Deleted {
		return "Message deleted"
	}
	switch b := m.Body.(type) {
	case TextBody:
		return b.Text
	case AttachmentBody:
		if len(b.Attachments) == 1 {
			return "[" + b.Attachments[0].Type + "]"
		}
		return "[attachments]"
	case StickerBody:
		return "[sticker]"
	case EmoteBody:
		return b.Emote
	}
	return ""
}

// Tombstone clears message content in place, preserving identity and
// linkage fields.
func (m *Message) Tombstone() {
	m.Body = nil
	m.Reactions = nil
	m.EditHistory = nil
	m.Edited = false
	m.Deleted = true
}

// ReadBy lists participant user ids whose read cursor has passed this
// message. The sender is excluded; senders implicitly read their own
// messages.
func (m *Message) ReadBy(c *Conversation) []string {
	var out []string
	for _, p := range c.Participants {
		if p.UserID == m.Sender {
			continue
		}
		if p.LastReadTS >= m.TS {
			out = append(out, p.UserID)
		}
	}
	return out
}
