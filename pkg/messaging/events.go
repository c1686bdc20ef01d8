package messaging

import (
	"glimpse/pkg/models"
)

// Event names emitted on the delivery channel. Delivery is at-most-once
// and best-effort; durable state is always recoverable via the pull APIs.
const (
	EventMessageSend        = "message:send"
	EventMessageUpdated     = "message:updated"
	EventMessageDeleted     = "message:deleted"
	EventMessageRead        = "message:read"
	EventConversationUpdate = "conversation:updated"
	EventParticipantAdded   = "conversation:participant_added"
	EventParticipantRemoved = "conversation:participant_removed"
)

// RoomConversation names the broadcast scope for a conversation.
func RoomConversation(id string) string { return "conv:" + id }

// RoomUser names the broadcast scope for a single user.
func RoomUser(id string) string { return "user:" + id }

// NotifyIntent asks the fan-out worker to create notification records for
// recipients that are not reachable on the live channel.
type NotifyIntent struct {
	Recipients   []string
	Kind         string
	Conversation string
	Message      string
	Actor        string
	Preview      string
	TS           int64
}

// Emitter is the outbox boundary. The service hands side effects to it
// after the primary write succeeded; emission failures are logged by the
// outbox and structurally cannot fail the operation that produced them.
type Emitter interface {
	EmitPublish(room, event string, payload any)
	EmitDeliver(convID, msgID string)
	EmitNotify(intent NotifyIntent)
}

// Directory resolves user ids to profiles. It is an external collaborator;
// the messaging core never owns account state.
type Directory interface {
	GetUser(id string) (models.User, error)
}

// ReadReceipt is the payload of a message:read broadcast.
type ReadReceipt struct {
	Conversation string          `json:"conversation"`
	User         string          `json:"user"`
	LastRead     *models.Message `json:"last_read,omitempty"`
	TS           int64           `json:"ts"`
}

// ParticipantEvent is the payload of participant add/remove broadcasts.
type ParticipantEvent struct {
	Conversation string `json:"conversation"`
	User         string `json:"user"`
	Actor        string `json:"actor"`
	TS           int64  `json:"ts"`
}
