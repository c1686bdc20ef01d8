package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"glimpse/pkg/api/handlers"
	"glimpse/pkg/auth"
	"glimpse/pkg/realtime"
)

// NewHandler assembles the versioned API surface. Identity verification
// runs on every /v1 route; the role gateway and telemetry middleware are
// layered on by the caller so tests can mount this handler bare.
func NewHandler(h *handlers.API, hub *realtime.Hub) http.Handler {
	r := mux.NewRouter()

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(mux.MiddlewareFunc(auth.RequireSignedUser))

	h.RegisterConversations(v1)
	h.RegisterMessages(v1)
	h.RegisterNotifications(v1)
	h.RegisterUsers(v1)

	v1.HandleFunc("/ws", realtime.ServeWS(hub)).Methods(http.MethodGet)

	return r
}
