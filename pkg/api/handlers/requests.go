package handlers

import (
	"encoding/json"

	"glimpse/pkg/models"
)

// Request DTOs. The API boundary owns shape validation; decoded values
// cross into the service layer as typed inputs, never raw JSON.

type sendMessageRequest struct {
	Body         json.RawMessage  `json:"body"`
	ReplyTo      string           `json:"reply_to,omitempty"`
	ThreadParent string           `json:"thread_parent,omitempty"`
	Metadata     *models.Metadata `json:"metadata,omitempty"`
}

type editMessageRequest struct {
	Text string `json:"text"`
}

type reactionRequest struct {
	Type string `json:"type"`
}

type pinRequest struct {
	Action string `json:"action"` // pin | unpin
}

type statusRequest struct {
	Status string `json:"status"`
}

type forwardRequest struct {
	MessageIDs            []string `json:"message_ids"`
	TargetConversationIDs []string `json:"target_conversation_ids"`
}

type createConversationRequest struct {
	Name         string                `json:"name,omitempty"`
	IsGroup      bool                  `json:"is_group"`
	Participants []string              `json:"participants"`
	Settings     *models.GroupSettings `json:"settings,omitempty"`
}

type participantRequest struct {
	UserID string `json:"user_id"`
}

type lastReadRequest struct {
	MessageID string `json:"message_id"`
}

type markNotificationsRequest struct {
	IDs []string `json:"ids"`
}
