package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"glimpse/pkg/logger"
	"glimpse/pkg/messaging"
	"glimpse/pkg/models"
	"glimpse/pkg/utils"
	"glimpse/pkg/validation"
)

// RegisterMessages registers HTTP handlers for message-related endpoints.
func (a *API) RegisterMessages(r *mux.Router) {
	// conversation-scoped timeline
	r.HandleFunc("/conversations/{id}/messages", a.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages", a.listMessages).Methods(http.MethodGet)

	// cross-conversation operations; /messages/search and /messages/forward
	// are registered before /messages/{id} so the literal segments win
	r.HandleFunc("/messages/search", a.searchMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages/forward", a.forwardMessages).Methods(http.MethodPost)

	// /v1/messages/{id}
	r.HandleFunc("/messages/{id}", a.getMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", a.editMessage).Methods(http.MethodPut)
	r.HandleFunc("/messages/{id}", a.deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/replies", a.replyMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/thread", a.getThread).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}/reactions", a.addReaction).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/reactions", a.removeReaction).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/pin", a.pinMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/status", a.updateStatus).Methods(http.MethodPut)
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	body, err := models.DecodeBody(req.Body)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "validation", "body.kind")
		return
	}
	if body == nil {
		utils.JSONError(w, http.StatusBadRequest, "validation", "body")
		return
	}
	if fields := validation.Body(body); len(fields) > 0 {
		utils.JSONError(w, http.StatusBadRequest, "validation", fields...)
		return
	}
	m, err := a.svc.Send(r.Context(), userID, messaging.SendInput{
		Conversation: mux.Vars(r)["id"],
		Body:         body,
		ReplyTo:      req.ReplyTo,
		ThreadParent: req.ThreadParent,
		Metadata:     req.Metadata,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	logger.Info("message_created", "conversation", m.Conversation, "id", m.ID)
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 50)
	before := r.URL.Query().Get("before")
	page, err := a.svc.ListMessages(r.Context(), mux.Vars(r)["id"], userID, limit, before)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, page)
}

func (a *API) getMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	m, err := a.svc.GetMessage(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func (a *API) editMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req editMessageRequest
	if !decode(w, r, &req) {
		return
	}
	if fields := validation.EditText(req.Text); len(fields) > 0 {
		utils.JSONError(w, http.StatusBadRequest, "validation", fields...)
		return
	}
	m, err := a.svc.Edit(r.Context(), mux.Vars(r)["id"], userID, req.Text)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := a.svc.Delete(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		writeErr(w, err)
		return
	}
	utils.NoContent(w)
}

func (a *API) replyMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	body, err := models.DecodeBody(req.Body)
	if err != nil || body == nil {
		utils.JSONError(w, http.StatusBadRequest, "validation", "body")
		return
	}
	if fields := validation.Body(body); len(fields) > 0 {
		utils.JSONError(w, http.StatusBadRequest, "validation", fields...)
		return
	}
	m, err := a.svc.Reply(r.Context(), mux.Vars(r)["id"], userID, messaging.SendInput{
		Body:     body,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

func (a *API) getThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, err := a.svc.Thread(r.Context(), mux.Vars(r)["id"], userID, queryInt(r, "offset", 0), queryInt(r, "limit", 50))
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, page)
}

func (a *API) forwardMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req forwardRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.MessageIDs) == 0 || len(req.TargetConversationIDs) == 0 {
		utils.JSONError(w, http.StatusBadRequest, "validation", "message_ids", "target_conversation_ids")
		return
	}
	out := a.svc.Forward(r.Context(), userID, req.MessageIDs, req.TargetConversationIDs)
	logger.Info("messages_forwarded", "user", userID, "requested", len(req.MessageIDs)*len(req.TargetConversationIDs), "created", len(out))
	_ = utils.JSONWrite(w, http.StatusOK, out)
}

func (a *API) addReaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req reactionRequest
	if !decode(w, r, &req) {
		return
	}
	if fields := validation.Reaction(req.Type); len(fields) > 0 {
		utils.JSONError(w, http.StatusBadRequest, "validation", fields...)
		return
	}
	m, err := a.svc.AddReaction(r.Context(), mux.Vars(r)["id"], userID, req.Type)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func (a *API) removeReaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	m, err := a.svc.RemoveReaction(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func (a *API) pinMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req pinRequest
	if !decode(w, r, &req) {
		return
	}
	var err error
	switch req.Action {
	case "pin":
		err = a.svc.Pin(r.Context(), mux.Vars(r)["id"], userID)
	case "unpin":
		err = a.svc.Unpin(r.Context(), mux.Vars(r)["id"], userID)
	default:
		utils.JSONError(w, http.StatusBadRequest, "validation", "action")
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.NoContent(w)
}

func (a *API) updateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := a.svc.UpdateStatus(r.Context(), mux.Vars(r)["id"], userID, models.Status(req.Status))
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func (a *API) searchMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	q := messaging.SearchQuery{
		Text:         r.URL.Query().Get("q"),
		Conversation: r.URL.Query().Get("conversation"),
		Sender:       r.URL.Query().Get("sender"),
		BodyKind:     r.URL.Query().Get("kind"),
		DateFrom:     queryInt64(r, "from", 0),
		DateTo:       queryInt64(r, "to", 0),
		Limit:        queryInt(r, "limit", 50),
	}
	out, err := a.svc.Search(r.Context(), userID, q)
	if err != nil {
		writeErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, out)
}
