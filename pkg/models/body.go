package models

import (
	"encoding/json"
	"fmt"
)

// Body is the message content union. Exactly one concrete variant is
// populated per message; the JSON encoding carries a `kind` tag so the
// variant round-trips. A nil Body is only legal on tombstones.
type Body interface {
	Kind() string
}

// TextBody is plain text content.
type TextBody struct {
	Text string `json:"text"`
}

func (TextBody) Kind() string { return "text" }

// Attachment describes one uploaded media object. URLs point at the
// external object-storage provider; this service never touches bytes.
type Attachment struct {
	URL       string `json:"url"`
	Type      string `json:"type"` // image|video|file|audio
	FileName  string `json:"file_name,omitempty"`
	FileSize  int64  `json:"file_size,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// AttachmentBody carries one or more attachments with an optional caption.
type AttachmentBody struct {
	Attachments []Attachment `json:"attachments"`
	Caption     string       `json:"caption,omitempty"`
}

func (AttachmentBody) Kind() string { return "attachment" }

// StickerBody references a sticker by pack and id.
type StickerBody struct {
	Pack string `json:"pack,omitempty"`
	ID   string `json:"sticker"`
}

func (StickerBody) Kind() string { return "sticker" }

// EmoteBody is a single large emoji rendered standalone.
type EmoteBody struct {
	Emote string `json:"emote"`
}

func (EmoteBody) Kind() string { return "emote" }

type bodyEnvelope struct {
	Kind string `json:"kind"`
	TextBody
	AttachmentBody
	StickerBody
	EmoteBody
}

// EncodeBody marshals a Body with its kind tag.
func EncodeBody(b Body) ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	env := bodyEnvelope{Kind: b.Kind()}
	switch v := b.(type) {
	case TextBody:
		env.TextBody = v
	case AttachmentBody:
		env.AttachmentBody = v
	case StickerBody:
		env.StickerBody = v
	case EmoteBody:
		env.EmoteBody = v
	default:
		return nil, fmt.Errorf("unknown body kind %q", b.Kind())
	}
	return json.Marshal(env)
}

// DecodeBody unmarshals a tagged body. A JSON null yields a nil Body.
func DecodeBody(data []byte) (Body, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var env bodyEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid body: %w", err)
	}
	switch env.Kind {
	case "text":
		return env.TextBody, nil
	case "attachment":
		return env.AttachmentBody, nil
	case "sticker":
		return env.StickerBody, nil
	case "emote":
		return env.EmoteBody, nil
	case "":
		return nil, fmt.Errorf("body kind missing")
	}
	return nil, fmt.Errorf("unknown body kind %q", env.Kind)
}

// messageAlias avoids recursing into Message's own JSON methods.
type messageAlias Message

type messageJSON struct {
	messageAlias
	Body json.RawMessage `json:"body,omitempty"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	raw, err := EncodeBody(m.Body)
	if err != nil {
		return nil, err
	}
	a := messageAlias(m)
	a.Body = nil
	out := messageJSON{messageAlias: a}
	if string(raw) != "null" {
		out.Body = raw
	}
	return json.Marshal(out)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var in messageJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	b, err := DecodeBody(in.Body)
	if err != nil {
		return err
	}
	*m = Message(in.messageAlias)
	m.Body = b
	return nil
}
