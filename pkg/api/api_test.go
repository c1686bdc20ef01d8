package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"glimpse/pkg/api/handlers"
	"glimpse/pkg/messaging"
	"glimpse/pkg/models"
	"glimpse/pkg/notify"
	"glimpse/pkg/outbox"
	"glimpse/pkg/realtime"
	"glimpse/pkg/store"
	"glimpse/pkg/users"
)

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Kind   string   `json:"kind"`
		Fields []string `json:"fields"`
	} `json:"error"`
}

func newTestServer(t *testing.T) (*httptest.Server, *outbox.Processor) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	hub := realtime.NewHub()
	notifs := notify.NewStore()
	dir := users.NewDirectory()
	proc := outbox.NewProcessor(outbox.NewQueue(64), hub, notifs, 1)
	proc.Start()
	t.Cleanup(proc.Stop)

	svc := messaging.New(proc, dir, 0)
	srv := httptest.NewServer(NewHandler(handlers.New(svc, notifs, dir), hub))
	t.Cleanup(srv.Close)
	return srv, proc
}

func doJSON(t *testing.T, method, url, user string, body any) (*http.Response, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	// the role gateway normally stamps these after key verification
	req.Header.Set("X-Role-Name", "backend")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
	}
	return resp, env
}

func TestConversationAndMessageFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/v1/conversations", "alice", map[string]any{
		"participants": []string{"bob"},
	})
	if resp.StatusCode != http.StatusCreated || !env.OK {
		t.Fatalf("create conversation: %d %+v", resp.StatusCode, env.Error)
	}
	var conv struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &conv); err != nil || conv.ID == "" {
		t.Fatalf("conversation payload: %s", env.Data)
	}

	resp, env = doJSON(t, http.MethodPost, srv.URL+"/v1/conversations/"+conv.ID+"/messages", "alice", map[string]any{
		"body": map[string]any{"kind": "text", "text": "hello"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send message: %d %+v", resp.StatusCode, env.Error)
	}
	var msg struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &msg); err != nil || msg.ID == "" {
		t.Fatalf("message payload: %s", env.Data)
	}

	resp, env = doJSON(t, http.MethodGet, srv.URL+"/v1/conversations/"+conv.ID+"/messages", "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list messages: %d %+v", resp.StatusCode, env.Error)
	}
	var page struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil || len(page.Items) != 1 {
		t.Fatalf("page payload: %s", env.Data)
	}

	resp, env = doJSON(t, http.MethodGet, srv.URL+"/v1/conversations", "bob", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sidebar: %d", resp.StatusCode)
	}

	// outsiders are rejected with a stable error kind
	resp, env = doJSON(t, http.MethodGet, srv.URL+"/v1/conversations/"+conv.ID+"/messages", "carol", nil)
	if resp.StatusCode != http.StatusForbidden || env.Error == nil || env.Error.Kind != "forbidden" {
		t.Fatalf("outsider list: %d %+v", resp.StatusCode, env.Error)
	}
}

func TestValidationErrorsCarryFields(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/v1/conversations", "alice", map[string]any{
		"participants": []string{"bob"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: %d", resp.StatusCode)
	}
	var conv struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(env.Data, &conv)

	resp, env = doJSON(t, http.MethodPost, srv.URL+"/v1/conversations/"+conv.ID+"/messages", "alice", map[string]any{
		"body": map[string]any{"kind": "text", "text": ""},
	})
	if resp.StatusCode != http.StatusBadRequest || env.Error == nil || env.Error.Kind != "validation" {
		t.Fatalf("empty text: %d %+v", resp.StatusCode, env.Error)
	}
	if len(env.Error.Fields) == 0 || env.Error.Fields[0] != "body.text" {
		t.Fatalf("fields = %v", env.Error.Fields)
	}

	resp, env = doJSON(t, http.MethodPost, srv.URL+"/v1/conversations/"+conv.ID+"/messages", "alice", map[string]any{
		"body": map[string]any{"kind": "voice"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown kind: %d", resp.StatusCode)
	}
}

func TestMissingUserRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/v1/conversations", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("backend without user: %d %+v", resp.StatusCode, env.Error)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/v1/notifications", "alice", nil)
	if resp.StatusCode != http.StatusOK || !env.OK {
		t.Fatalf("empty feed: %d %+v", resp.StatusCode, env.Error)
	}

	notifs := notify.NewStore()
	for i, id := range []string{"ntf_a", "ntf_b"} {
		if err := notifs.Create(models.Notification{ID: id, User: "alice", Kind: "message", TS: int64(i + 1)}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	// empty ids marks the whole inbox read
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/notifications/read", "alice", map[string]any{"ids": []string{}})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("mark all read: %d", resp.StatusCode)
	}
	out, err := notifs.List("alice", 10)
	if err != nil || len(out) != 2 {
		t.Fatalf("list after mark all: %v (%d)", err, len(out))
	}
	for _, n := range out {
		if !n.Read {
			t.Errorf("notification %s still unread", n.ID)
		}
	}
}

func TestUserSyncRequiresBackendRole(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/v1/users/alice", bytes.NewBufferString(`{"username":"alice"}`))
	req.Header.Set("X-Role-Name", "frontend")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("frontend user sync: %d", resp.StatusCode)
	}

	resp2, env := doJSON(t, http.MethodPut, srv.URL+"/v1/users/alice", "", map[string]any{"username": "alice"})
	if resp2.StatusCode != http.StatusOK || !env.OK {
		t.Fatalf("backend user sync: %d %+v", resp2.StatusCode, env.Error)
	}
}
