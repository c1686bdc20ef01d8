package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"glimpse/pkg/utils"
)

// RegisterNotifications registers the notification inbox endpoints.
func (a *API) RegisterNotifications(r *mux.Router) {
	r.HandleFunc("/notifications", a.listNotifications).Methods(http.MethodGet)
	r.HandleFunc("/notifications/read", a.markNotificationsRead).Methods(http.MethodPost)
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	out, err := a.notifs.List(userID, queryInt(r, "limit", 50))
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, out)
}

func (a *API) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req markNotificationsRequest
	if !decode(w, r, &req) {
		return
	}
	// empty ids marks the whole inbox read
	if err := a.notifs.MarkRead(userID, req.IDs); err != nil {
		writeErr(w, err)
		return
	}
	utils.NoContent(w)
}
