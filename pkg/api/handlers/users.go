package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"glimpse/pkg/logger"
	"glimpse/pkg/models"
	"glimpse/pkg/utils"
)

// RegisterUsers registers the directory sync endpoint. Profiles are
// owned by the account service; this surface only mirrors them, so it
// is restricted to backend and admin callers.
func (a *API) RegisterUsers(r *mux.Router) {
	r.HandleFunc("/users/{id}", a.upsertUser).Methods(http.MethodPut)
}

func (a *API) upsertUser(w http.ResponseWriter, r *http.Request) {
	role := r.Header.Get("X-Role-Name")
	if role != "backend" && role != "admin" {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	var u models.User
	if !decode(w, r, &u) {
		return
	}
	u.ID = mux.Vars(r)["id"]
	if u.ID == "" || u.Username == "" {
		utils.JSONError(w, http.StatusBadRequest, "validation", "id", "username")
		return
	}
	if err := a.dir.Upsert(u); err != nil {
		writeErr(w, err)
		return
	}
	logger.Debug("user_profile_synced", "id", u.ID)
	_ = utils.JSONWrite(w, http.StatusOK, u)
}
