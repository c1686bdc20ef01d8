package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"glimpse/pkg/logger"
	"glimpse/pkg/messaging"
	"glimpse/pkg/utils"
	"glimpse/pkg/validation"
)

// RegisterConversations registers HTTP handlers for conversation
// lifecycle, membership and read-tracking endpoints.
func (a *API) RegisterConversations(r *mux.Router) {
	r.HandleFunc("/conversations", a.createConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations", a.listConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", a.getConversation).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/participants", a.addParticipant).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/participants/{userID}", a.removeParticipant).Methods(http.MethodDelete)
	r.HandleFunc("/conversations/{id}/settings", a.updateSettings).Methods(http.MethodPut)
	r.HandleFunc("/conversations/{id}/read", a.markRead).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/last-read", a.updateLastRead).Methods(http.MethodPut)
}

func (a *API) createConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createConversationRequest
	if !decode(w, r, &req) {
		return
	}
	if fields := validation.ConversationName(req.Name); len(fields) > 0 {
		utils.JSONError(w, http.StatusBadRequest, "validation", fields...)
		return
	}
	c, err := a.svc.CreateConversation(r.Context(), userID, messaging.CreateConversationInput{
		Name:         req.Name,
		IsGroup:      req.IsGroup,
		Participants: req.Participants,
		Settings:     req.Settings,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	logger.Info("conversation_created", "id", c.ID, "group", c.IsGroup, "creator", userID)
	_ = utils.JSONWrite(w, http.StatusCreated, c)
}

func (a *API) listConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	views, err := a.svc.ListConversations(r.Context(), userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, views)
}

func (a *API) getConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	v, err := a.svc.GetConversation(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, v)
}

func (a *API) addParticipant(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req participantRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		utils.JSONError(w, http.StatusBadRequest, "validation", "user_id")
		return
	}
	c, err := a.svc.AddParticipant(r.Context(), mux.Vars(r)["id"], userID, req.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, c)
}

func (a *API) removeParticipant(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	c, err := a.svc.RemoveParticipant(r.Context(), vars["id"], userID, vars["userID"])
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, c)
}

func (a *API) updateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createConversationRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Settings == nil {
		utils.JSONError(w, http.StatusBadRequest, "validation", "settings")
		return
	}
	c, err := a.svc.UpdateSettings(r.Context(), mux.Vars(r)["id"], userID, *req.Settings)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, c)
}

// markRead advances the caller's read watermark to the newest message
// and reports which message became the watermark, if any.
func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	last, err := a.svc.MarkConversationRead(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if last == nil {
		utils.NoContent(w)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, last)
}

func (a *API) updateLastRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req lastReadRequest
	if !decode(w, r, &req) {
		return
	}
	if req.MessageID == "" {
		utils.JSONError(w, http.StatusBadRequest, "validation", "message_id")
		return
	}
	if err := a.svc.UpdateParticipantLastRead(r.Context(), mux.Vars(r)["id"], userID, req.MessageID); err != nil {
		writeErr(w, err)
		return
	}
	utils.NoContent(w)
}
