package validation

import (
	"strconv"
	"strings"

	"glimpse/pkg/models"
)

// Limits bound user-supplied message content. Zero values fall back to
// the package defaults below.
type Limits struct {
	MaxTextLen     int
	MaxAttachments int
	MaxReactionLen int
}

const (
	defaultMaxTextLen     = 4096
	defaultMaxAttachments = 10
	defaultMaxReactionLen = 64
)

var limits Limits

// SetLimits installs the configured limits. Called once at startup.
func SetLimits(l Limits) { limits = l }

func maxTextLen() int {
	if limits.MaxTextLen > 0 {
		return limits.MaxTextLen
	}
	return defaultMaxTextLen
}

func maxAttachments() int {
	if limits.MaxAttachments > 0 {
		return limits.MaxAttachments
	}
	return defaultMaxAttachments
}

func maxReactionLen() int {
	if limits.MaxReactionLen > 0 {
		return limits.MaxReactionLen
	}
	return defaultMaxReactionLen
}

// Body checks a decoded message body against the configured limits and
// returns the offending field paths, empty when valid.
func Body(b models.Body) []string {
	var fields []string
	switch v := b.(type) {
	case models.TextBody:
		if strings.TrimSpace(v.Text) == "" {
			fields = append(fields, "body.text")
		} else if len(v.Text) > maxTextLen() {
			fields = append(fields, "body.text")
		}
	case *models.TextBody:
		return Body(*v)
	case models.AttachmentBody:
		if len(v.Attachments) == 0 || len(v.Attachments) > maxAttachments() {
			fields = append(fields, "body.attachments")
		}
		for i, a := range v.Attachments {
			if strings.TrimSpace(a.URL) == "" {
				fields = append(fields, attachmentField(i, "url"))
			}
			if a.Type == "" {
				fields = append(fields, attachmentField(i, "type"))
			}
		}
		if len(v.Caption) > maxTextLen() {
			fields = append(fields, "body.caption")
		}
	case *models.AttachmentBody:
		return Body(*v)
	case models.StickerBody:
		if strings.TrimSpace(v.ID) == "" {
			fields = append(fields, "body.sticker")
		}
	case *models.StickerBody:
		return Body(*v)
	case models.EmoteBody:
		if strings.TrimSpace(v.Emote) == "" {
			fields = append(fields, "body.emote")
		}
	case *models.EmoteBody:
		return Body(*v)
	default:
		fields = append(fields, "body.kind")
	}
	return fields
}

func attachmentField(i int, name string) string {
	return "body.attachments[" + strconv.Itoa(i) + "]." + name
}

// Reaction checks an emote identifier used for message reactions.
func Reaction(emote string) []string {
	if strings.TrimSpace(emote) == "" || len(emote) > maxReactionLen() {
		return []string{"type"}
	}
	return nil
}

// EditText checks replacement text for a message edit.
func EditText(text string) []string {
	if strings.TrimSpace(text) == "" || len(text) > maxTextLen() {
		return []string{"text"}
	}
	return nil
}

// ConversationName checks an optional conversation display name.
func ConversationName(name string) []string {
	if len(name) > 256 {
		return []string{"name"}
	}
	return nil
}
