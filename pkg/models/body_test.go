package models

import (
	"encoding/json"
	"testing"
)

func TestBodyRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		body Body
	}{
		{"text", TextBody{Text: "hello"}},
		{"attachment", AttachmentBody{
			Attachments: []Attachment{{URL: "https://cdn.example/a.jpg", Type: "image", Width: 640, Height: 480}},
			Caption:     "look",
		}},
		{"sticker", StickerBody{Pack: "cats", ID: "cat_01"}},
		{"emote", EmoteBody{Emote: "🔥"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := EncodeBody(tc.body)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			var probe struct {
				Kind string `json:"kind"`
			}
			if err := json.Unmarshal(data, &probe); err != nil || probe.Kind != tc.body.Kind() {
				t.Fatalf("kind tag = %q, want %q", probe.Kind, tc.body.Kind())
			}
			got, err := DecodeBody(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Kind() != tc.body.Kind() {
				t.Fatalf("round trip kind = %q", got.Kind())
			}
		})
	}
}

func TestDecodeBodyRejectsUnknownKind(t *testing.T) {
	if _, err := DecodeBody([]byte(`{"kind":"voice","text":"x"}`)); err == nil {
		t.Fatal("unknown kind accepted")
	}
	if _, err := DecodeBody([]byte(`{"text":"x"}`)); err == nil {
		t.Fatal("missing kind accepted")
	}
	if _, err := DecodeBody([]byte(`{`)); err == nil {
		t.Fatal("malformed json accepted")
	}
}

func TestDecodeBodyNull(t *testing.T) {
	b, err := DecodeBody([]byte("null"))
	if err != nil || b != nil {
		t.Fatalf("null body = %v, %v", b, err)
	}
	b, err = DecodeBody(nil)
	if err != nil || b != nil {
		t.Fatalf("empty body = %v, %v", b, err)
	}
}

func TestMessageJSONCarriesTaggedBody(t *testing.T) {
	m := Message{ID: "msg_1", Conversation: "conv_1", Sender: "alice", TS: 42, Status: StatusSent, Body: TextBody{Text: "hi"}}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tb, ok := back.Body.(TextBody); !ok || tb.Text != "hi" {
		t.Fatalf("body = %#v", back.Body)
	}

	// tombstones have no body key at all
	m.Tombstone()
	data, err = json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal tombstone: %v", err)
	}
	var raw map[string]json.RawMessage
	_ = json.Unmarshal(data, &raw)
	if _, ok := raw["body"]; ok {
		t.Fatalf("tombstone still carries body: %s", data)
	}
}

func TestPreview(t *testing.T) {
	m := Message{Body: TextBody{Text: "a text"}}
	if m.Preview() != "a text" {
		t.Errorf("text preview = %q", m.Preview())
	}
	m.Tombstone()
	if m.Preview() != "Message deleted" {
		t.Errorf("tombstone preview = %q", m.Preview())
	}
}
