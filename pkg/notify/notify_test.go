package notify

import (
	"fmt"
	"testing"

	"glimpse/pkg/models"
	"glimpse/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewStore()
}

func seed(t *testing.T, s *Store, user string, n int) []models.Notification {
	t.Helper()
	out := make([]models.Notification, 0, n)
	for i := 0; i < n; i++ {
		rec := models.Notification{
			ID:           fmt.Sprintf("ntf_%d", i),
			User:         user,
			Kind:         "message",
			Conversation: "c1",
			Message:      fmt.Sprintf("m%d", i),
			Actor:        "alice",
			Preview:      "hi",
			TS:           int64((i + 1) * 100),
		}
		if err := s.Create(rec); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "bob", 3)

	got, err := s.List("bob", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || got[0].ID != "ntf_2" || got[2].ID != "ntf_0" {
		t.Fatalf("order = %v", got)
	}

	// limit keeps the newest entries
	got, err = s.List("bob", 2)
	if err != nil || len(got) != 2 {
		t.Fatalf("limited list: %v (%d)", err, len(got))
	}
	if got[0].ID != "ntf_2" || got[1].ID != "ntf_1" {
		t.Fatalf("limited order = %v", got)
	}

	other, err := s.List("carol", 10)
	if err != nil || len(other) != 0 {
		t.Fatalf("cross-user leak: %v (%d)", err, len(other))
	}
}

func TestMarkReadSubset(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "bob", 3)

	if err := s.MarkRead("bob", []string{"ntf_1", "ntf_missing"}); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	got, _ := s.List("bob", 10)
	for _, n := range got {
		want := n.ID == "ntf_1"
		if n.Read != want {
			t.Errorf("%s read = %v", n.ID, n.Read)
		}
	}
}

func TestPurgeReadNotifications(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "bob", 3)
	if err := s.MarkRead("bob", nil); err != nil {
		t.Fatalf("mark all read: %v", err)
	}

	// cutoff after the second record removes the two older ones
	removed, err := store.PurgeReadNotifications(250)
	if err != nil || removed != 2 {
		t.Fatalf("purged = %d (%v), want 2", removed, err)
	}
	got, _ := s.List("bob", 10)
	if len(got) != 1 || got[0].ID != "ntf_2" {
		t.Fatalf("survivors = %v", got)
	}
}
