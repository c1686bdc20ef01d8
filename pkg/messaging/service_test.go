package messaging

import (
	"context"
	"testing"
	"time"

	"glimpse/pkg/models"
	"glimpse/pkg/store"
)

type recordedEvent struct {
	Room    string
	Event   string
	Payload any
}

// captureEmitter records emissions synchronously so tests can assert on
// the side-effect stream without a running worker pool.
type captureEmitter struct {
	events    []recordedEvent
	delivered [][2]string
	notified  []NotifyIntent
}

func (c *captureEmitter) EmitPublish(room, event string, payload any) {
	c.events = append(c.events, recordedEvent{Room: room, Event: event, Payload: payload})
}

func (c *captureEmitter) EmitDeliver(convID, msgID string) {
	c.delivered = append(c.delivered, [2]string{convID, msgID})
}

func (c *captureEmitter) EmitNotify(in NotifyIntent) {
	c.notified = append(c.notified, in)
}

func (c *captureEmitter) count(event string) int {
	n := 0
	for _, e := range c.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (c *captureEmitter) reset() {
	c.events = nil
	c.delivered = nil
	c.notified = nil
}

type mapDirectory map[string]models.User

func (d mapDirectory) GetUser(id string) (models.User, error) {
	if u, ok := d[id]; ok {
		return u, nil
	}
	return models.User{}, store.ErrNotFound
}

func newTestService(t *testing.T) (*Service, *captureEmitter) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	em := &captureEmitter{}
	dir := mapDirectory{
		"alice": {ID: "alice", Username: "alice"},
		"bob":   {ID: "bob", Username: "bob"},
		"carol": {ID: "carol", Username: "carol"},
	}
	return New(em, dir, 0), em
}

func directConv(t *testing.T, svc *Service, a, b string) models.Conversation {
	t.Helper()
	c, err := svc.CreateConversation(context.Background(), a, CreateConversationInput{Participants: []string{b}})
	if err != nil {
		t.Fatalf("create direct conversation: %v", err)
	}
	return c
}

func sendText(t *testing.T, svc *Service, convID, sender, text string) models.Message {
	t.Helper()
	m, err := svc.Send(context.Background(), sender, SendInput{
		Conversation: convID,
		Body:         models.TextBody{Text: text},
	})
	if err != nil {
		t.Fatalf("send %q: %v", text, err)
	}
	return m
}

func TestSendUpdatesSummaryAndCursor(t *testing.T) {
	svc, em := newTestService(t)
	conv := directConv(t, svc, "alice", "bob")
	em.reset()

	m := sendText(t, svc, conv.ID, "alice", "hello")

	got, err := store.GetConversation(conv.ID)
	if err != nil {
		t.Fatalf("reload conversation: %v", err)
	}
	if got.LastMessage == nil || got.LastMessage.MessageID != m.ID {
		t.Fatalf("last message summary not updated: %+v", got.LastMessage)
	}
	if got.LastMessage.Preview != "hello" {
		t.Errorf("preview = %q, want %q", got.LastMessage.Preview, "hello")
	}
	i := got.ParticipantIndex("alice")
	if got.Participants[i].LastReadMessageID != m.ID {
		t.Errorf("sender cursor not advanced past own message")
	}

	if n := em.count(EventMessageSend); n != 1 {
		t.Errorf("message:send events = %d, want 1", n)
	}
	if len(em.delivered) != 1 || em.delivered[0][1] != m.ID {
		t.Errorf("deliver intent = %v, want message %s", em.delivered, m.ID)
	}
	if len(em.notified) != 1 {
		t.Fatalf("notify intents = %d, want 1", len(em.notified))
	}
	if rs := em.notified[0].Recipients; len(rs) != 1 || rs[0] != "bob" {
		t.Errorf("notify recipients = %v, want [bob]", rs)
	}
}

func TestSendRejectsNonParticipant(t *testing.T) {
	svc, _ := newTestService(t)
	conv := directConv(t, svc, "alice", "bob")

	_, err := svc.Send(context.Background(), "carol", SendInput{
		Conversation: conv.ID,
		Body:         models.TextBody{Text: "hi"},
	})
	if KindOf(err) != KindForbidden {
		t.Fatalf("kind = %v, want forbidden", KindOf(err))
	}

	_, err = svc.Send(context.Background(), "alice", SendInput{Conversation: "conv_missing", Body: models.TextBody{Text: "hi"}})
	if KindOf(err) != KindNotFound {
		t.Fatalf("kind = %v, want not_found", KindOf(err))
	}
}

func TestSendDropsDeadReplyLinkage(t *testing.T) {
	svc, _ := newTestService(t)
	conv := directConv(t, svc, "alice", "bob")

	m, err := svc.Send(context.Background(), "alice", SendInput{
		Conversation: conv.ID,
		Body:         models.TextBody{Text: "hi"},
		ReplyTo:      "msg_gone",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.ReplyTo != "" || m.ReplyInfo != nil {
		t.Errorf("dangling reply linkage kept: reply_to=%q", m.ReplyTo)
	}
}

func TestEditWindow(t *testing.T) {
	svc, _ := newTestService(t)
	conv := directConv(t, svc, "alice", "bob")
	m := sendText(t, svc, conv.ID, "alice", "orig")

	edited, err := svc.Edit(context.Background(), m.ID, "alice", "fixed")
	if err != nil {
		t.Fatalf("edit inside window: %v", err)
	}
	if tb, ok := edited.Body.(models.TextBody); !ok || tb.Text != "fixed" {
		t.Fatalf("body after edit = %+v", edited.Body)
	}
	if !edited.Edited || len(edited.EditHistory) != 1 || edited.EditHistory[0].Text != "orig" {
		t.Errorf("edit history = %+v", edited.EditHistory)
	}
	if edited.TS != m.TS {
		t.Errorf("edit moved timeline position: %d -> %d", m.TS, edited.TS)
	}

	svc.now = func() time.Time { return time.Unix(0, m.TS).Add(DefaultEditWindow + time.Minute) }
	if _, err := svc.Edit(context.Background(), m.ID, "alice", "late"); KindOf(err) != KindPolicy {
		t.Fatalf("kind = %v, want policy_violation", KindOf(err))
	}

	if _, err := svc.Edit(context.Background(), m.ID, "bob", "theirs"); KindOf(err) != KindForbidden {
		t.Fatalf("kind = %v, want forbidden for non-sender", KindOf(err))
	}
}

func TestDeleteLeavesTombstone(t *testing.T) {
	svc, _ := newTestService(t)
	conv := directConv(t, svc, "alice", "bob")
	m := sendText(t, svc, conv.ID, "alice", "secret")

	if err := svc.Delete(context.Background(), m.ID, "bob"); KindOf(err) != KindForbidden {
		t.Fatalf("non-sender delete kind = %v, want forbidden", KindOf(err))
	}
	if err := svc.Delete(context.Background(), m.ID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := svc.GetMessage(context.Background(), m.ID, "bob")
	if err != nil {
		t.Fatalf("tombstone fetch: %v", err)
	}
	if !got.Deleted || got.Body != nil {
		t.Errorf("tombstone = deleted:%v body:%v", got.Deleted, got.Body)
	}

	conv2, _ := store.GetConversation(conv.ID)
	if conv2.LastMessage != nil {
		t.Errorf("summary still points at deleted only message: %+v", conv2.LastMessage)
	}
}

func TestReactionReplaceAndIdempotentRemove(t *testing.T) {
	svc, _ := newTestService(t)
	conv := directConv(t, svc, "alice", "bob")
	m := sendText(t, svc, conv.ID, "alice", "react to me")

	if _, err := svc.AddReaction(context.Background(), m.ID, "bob", "heart"); err != nil {
		t.Fatalf("add reaction: %v", err)
	}
	got, err := svc.AddReaction(context.Background(), m.ID, "bob", "fire")
	if err != nil {
		t.Fatalf("replace reaction: %v", err)
	}
	if len(got.Reactions) != 1 || got.Reactions["bob"].Type != "fire" {
		t.Fatalf("reactions = %+v, want single fire from bob", got.Reactions)
	}

	if _, err := svc.RemoveReaction(context.Background(), m.ID, "bob"); err != nil {
		t.Fatalf("remove reaction: %v", err)
	}
	got, err = svc.RemoveReaction(context.Background(), m.ID, "bob")
	if err != nil {
		t.Fatalf("second remove should be a no-op, got %v", err)
	}
	if len(got.Reactions) != 0 {
		t.Errorf("reactions after remove = %+v", got.Reactions)
	}

	if _, err := svc.AddReaction(context.Background(), m.ID, "carol", "heart"); KindOf(err) != KindForbidden {
		t.Fatalf("outsider reaction kind = %v, want forbidden", KindOf(err))
	}
}

func TestForwardPartialSuccess(t *testing.T) {
	svc, _ := newTestService(t)
	src := directConv(t, svc, "alice", "bob")
	dst := directConv(t, svc, "alice", "carol")
	foreign := directConv(t, svc, "bob", "carol")
	m := sendText(t, svc, src.ID, "alice", "fwd me")

	out := svc.Forward(context.Background(), "alice", []string{m.ID, "msg_gone"}, []string{dst.ID, foreign.ID, "conv_gone"})
	if len(out) != 1 {
		t.Fatalf("forwarded = %d, want 1 (only the reachable pair)", len(out))
	}
	fwd := out[0]
	if fwd.Conversation != dst.ID || fwd.Forwarded != "alice" {
		t.Errorf("forward copy = conv:%s from:%s", fwd.Conversation, fwd.Forwarded)
	}
	if fwd.ForwardInfo == nil || fwd.ForwardInfo.MessageID != m.ID {
		t.Errorf("forward origin snapshot = %+v", fwd.ForwardInfo)
	}
	_ = foreign
}

func TestMarkConversationRead(t *testing.T) {
	svc, em := newTestService(t)
	conv := directConv(t, svc, "alice", "bob")
	sendText(t, svc, conv.ID, "alice", "one")
	m2 := sendText(t, svc, conv.ID, "alice", "two")
	em.reset()

	last, err := svc.MarkConversationRead(context.Background(), conv.ID, "bob")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if last == nil || last.ID != m2.ID {
		t.Fatalf("watermark = %+v, want %s", last, m2.ID)
	}

	got, _ := store.GetConversation(conv.ID)
	i := got.ParticipantIndex("bob")
	if got.Participants[i].LastReadMessageID != m2.ID {
		t.Errorf("cursor = %q, want %s", got.Participants[i].LastReadMessageID, m2.ID)
	}

	page, err := svc.ListMessages(context.Background(), conv.ID, "bob", 10, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, mv := range page.Items {
		if mv.Status != models.StatusRead {
			t.Errorf("message %s status = %s, want read", mv.ID, mv.Status)
		}
	}

	if n := em.count(EventMessageRead); n != 1 {
		t.Errorf("message:read events = %d, want 1", n)
	}

	// unread count drops to zero for the reader
	views, err := svc.ListConversations(context.Background(), "bob")
	if err != nil || len(views) != 1 {
		t.Fatalf("list conversations: %v (%d)", err, len(views))
	}
	if views[0].Unread != 0 {
		t.Errorf("unread after mark read = %d", views[0].Unread)
	}
}

func TestUpdateParticipantLastReadMonotone(t *testing.T) {
	svc, _ := newTestService(t)
	conv := directConv(t, svc, "alice", "bob")
	m1 := sendText(t, svc, conv.ID, "alice", "one")
	m2 := sendText(t, svc, conv.ID, "alice", "two")

	if err := svc.UpdateParticipantLastRead(context.Background(), conv.ID, "bob", m2.ID); err != nil {
		t.Fatalf("advance cursor: %v", err)
	}
	// moving backward is ignored, not an error
	if err := svc.UpdateParticipantLastRead(context.Background(), conv.ID, "bob", m1.ID); err != nil {
		t.Fatalf("stale cursor update: %v", err)
	}
	got, _ := store.GetConversation(conv.ID)
	i := got.ParticipantIndex("bob")
	if got.Participants[i].LastReadMessageID != m2.ID {
		t.Errorf("cursor regressed to %q", got.Participants[i].LastReadMessageID)
	}

	other := directConv(t, svc, "alice", "carol")
	if err := svc.UpdateParticipantLastRead(context.Background(), other.ID, "alice", m1.ID); KindOf(err) != KindValidation {
		t.Fatalf("cross-conversation cursor kind = %v, want validation", KindOf(err))
	}
}

func TestUpdateStatusNeverRegresses(t *testing.T) {
	svc, _ := newTestService(t)
	conv := directConv(t, svc, "alice", "bob")
	m := sendText(t, svc, conv.ID, "alice", "status")

	got, err := svc.UpdateStatus(context.Background(), m.ID, "bob", models.StatusRead)
	if err != nil || got.Status != models.StatusRead {
		t.Fatalf("upgrade: %v status=%s", err, got.Status)
	}
	got, err = svc.UpdateStatus(context.Background(), m.ID, "bob", models.StatusDelivered)
	if err != nil {
		t.Fatalf("stale downgrade should succeed as no-op: %v", err)
	}
	if got.Status != models.StatusRead {
		t.Errorf("status regressed to %s", got.Status)
	}
	if _, err := svc.UpdateStatus(context.Background(), m.ID, "bob", models.Status("seen")); KindOf(err) != KindValidation {
		t.Fatalf("unknown status kind = %v, want validation", KindOf(err))
	}
}

func TestReplyBuildsThread(t *testing.T) {
	svc, _ := newTestService(t)
	conv := directConv(t, svc, "alice", "bob")
	parent := sendText(t, svc, conv.ID, "alice", "root")

	r1, err := svc.Reply(context.Background(), parent.ID, "bob", SendInput{Body: models.TextBody{Text: "first"}})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if r1.Thread == nil || r1.Thread.Parent != parent.ID || r1.ReplyTo != parent.ID {
		t.Fatalf("reply linkage = %+v", r1)
	}
	if _, err := svc.Reply(context.Background(), parent.ID, "alice", SendInput{Body: models.TextBody{Text: "second"}}); err != nil {
		t.Fatalf("second reply: %v", err)
	}

	page, err := svc.Thread(context.Background(), parent.ID, "alice", 0, 10)
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	if page.Parent.Thread == nil || page.Parent.Thread.ReplyCount != 2 {
		t.Fatalf("parent counters = %+v", page.Parent.Thread)
	}
	if len(page.Parent.Thread.Participants) != 2 {
		t.Errorf("thread participants = %v", page.Parent.Thread.Participants)
	}
	if len(page.Items) != 2 || page.Items[0].ID != r1.ID {
		t.Errorf("thread items not oldest-first: %v", page.Items)
	}

	if _, err := svc.Reply(context.Background(), "msg_gone", "alice", SendInput{Body: models.TextBody{Text: "x"}}); KindOf(err) != KindNotFound {
		t.Fatalf("reply to missing parent kind = %v", KindOf(err))
	}
}

func TestDeleteReplyDecrementsThreadCounter(t *testing.T) {
	svc, _ := newTestService(t)
	conv := directConv(t, svc, "alice", "bob")
	parent := sendText(t, svc, conv.ID, "alice", "root")

	r1, err := svc.Reply(context.Background(), parent.ID, "bob", SendInput{Body: models.TextBody{Text: "first"}})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	r2, err := svc.Reply(context.Background(), parent.ID, "alice", SendInput{Body: models.TextBody{Text: "second"}})
	if err != nil {
		t.Fatalf("second reply: %v", err)
	}

	if err := svc.Delete(context.Background(), r1.ID, "bob"); err != nil {
		t.Fatalf("delete reply: %v", err)
	}
	got, err := store.GetMessage(parent.ID)
	if err != nil {
		t.Fatalf("reload parent: %v", err)
	}
	if got.Thread == nil || got.Thread.ReplyCount != 1 {
		t.Fatalf("reply count after delete = %+v, want 1", got.Thread)
	}

	// repeating the delete is a no-op; the counter must not drop again
	if err := svc.Delete(context.Background(), r1.ID, "bob"); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	if err := svc.Delete(context.Background(), r2.ID, "alice"); err != nil {
		t.Fatalf("delete second reply: %v", err)
	}
	got, _ = store.GetMessage(parent.ID)
	if got.Thread.ReplyCount != 0 {
		t.Fatalf("reply count after deleting all replies = %d, want 0", got.Thread.ReplyCount)
	}
}

func TestGetMessageAccessControl(t *testing.T) {
	svc, _ := newTestService(t)
	conv := directConv(t, svc, "alice", "bob")
	m := sendText(t, svc, conv.ID, "alice", "private")

	if _, err := svc.GetMessage(context.Background(), m.ID, "carol"); KindOf(err) != KindForbidden {
		t.Fatalf("outsider fetch kind = %v, want forbidden", KindOf(err))
	}
	if _, err := svc.GetMessage(context.Background(), "msg_gone", "alice"); KindOf(err) != KindNotFound {
		t.Fatalf("missing fetch kind = %v, want not_found", KindOf(err))
	}
}

func TestSearchScopedToMembership(t *testing.T) {
	svc, _ := newTestService(t)
	mine := directConv(t, svc, "alice", "bob")
	theirs := directConv(t, svc, "bob", "carol")
	sendText(t, svc, mine.ID, "alice", "needle in mine")
	sendText(t, svc, theirs.ID, "bob", "needle in theirs")

	out, err := svc.Search(context.Background(), "alice", SearchQuery{Text: "needle"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(out) != 1 || out[0].Conversation != mine.ID {
		t.Fatalf("search leaked across membership: %v", out)
	}
}
