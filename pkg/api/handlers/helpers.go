package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"glimpse/pkg/auth"
	"glimpse/pkg/logger"
	"glimpse/pkg/messaging"
	"glimpse/pkg/notify"
	"glimpse/pkg/users"
	"glimpse/pkg/utils"
)

// maxRequestBytes caps request bodies; message content limits are
// enforced separately by validation.
const maxRequestBytes = 1 << 20 // 1 MiB

// API groups the handler dependencies. Collaborators are injected at
// startup; handlers never construct their own.
type API struct {
	svc    *messaging.Service
	notifs *notify.Store
	dir    *users.Directory
}

// New builds the handler set around the injected collaborators.
func New(svc *messaging.Service, notifs *notify.Store, dir *users.Directory) *API {
	return &API{svc: svc, notifs: notifs, dir: dir}
}

// requireUser resolves the acting user for the request, writing the
// failure response when no acceptable identity is present.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, status, reason := auth.ResolveUserFromRequest(r)
	if status != 0 {
		kind := "forbidden"
		if status == http.StatusBadRequest {
			kind = "validation"
		}
		logger.Debug("user_resolve_rejected", "status", status, "reason", reason, "path", r.URL.Path)
		utils.JSONError(w, status, kind)
		return "", false
	}
	return id, true
}

// decode reads a JSON request body into v with a size cap.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "validation", "body")
		return false
	}
	return true
}

// writeErr maps a service error onto the wire envelope.
func writeErr(w http.ResponseWriter, err error) {
	kind := messaging.KindOf(err)
	status := messaging.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		logger.Error("request_failed", "error", err)
	}
	utils.JSONError(w, status, string(kind), messaging.FieldsOf(err)...)
}

// queryInt parses an integer query parameter, returning def when absent
// or malformed.
func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// queryInt64 parses an int64 query parameter.
func queryInt64(r *http.Request, name string, def int64) int64 {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
