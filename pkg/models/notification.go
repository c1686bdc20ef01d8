package models

// Notification is an async fan-out record created for recipients who were
// not reachable on the live channel when an event fired.
type Notification struct {
	ID           string `json:"id"`
	User         string `json:"user"`
	Kind         string `json:"kind"` // message|mention|reaction|participant
	Conversation string `json:"conversation,omitempty"`
	Message      string `json:"message,omitempty"`
	Actor        string `json:"actor,omitempty"`
	Preview      string `json:"preview,omitempty"`
	Read         bool   `json:"read,omitempty"`
	TS           int64  `json:"ts"`
}
