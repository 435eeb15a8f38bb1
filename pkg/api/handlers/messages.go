package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"chatsync/pkg/engine"
	"chatsync/pkg/models"
	"chatsync/pkg/utils"
)

func (a *API) registerMessages(r *mux.Router) {
	r.HandleFunc("/scopes/{scope}/messages", a.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/scopes/{scope}/messages", a.listMessages).Methods(http.MethodGet)
	r.HandleFunc("/scopes/{scope}/messages/edit", a.editMessage).Methods(http.MethodPost)
	r.HandleFunc("/scopes/{scope}/messages/delete", a.deleteMessage).Methods(http.MethodPost)
	r.HandleFunc("/scopes/{scope}/messages/react", a.toggleReaction).Methods(http.MethodPost)
}

func scopeVar(r *http.Request) models.ScopeID {
	return models.ScopeID(mux.Vars(r)["scope"])
}

type sendRequest struct {
	Text    string           `json:"text"`
	Kind    models.Kind      `json:"kind,omitempty"`
	Media   *models.Media    `json:"media,omitempty"`
	Audio   *models.Audio    `json:"audio,omitempty"`
	ReplyTo *models.ReplyRef `json:"replyTo,omitempty"`
	LocalID string           `json:"localId,omitempty"`
}

// sendMessage applies the draft optimistically and returns the local
// record; the definitive identity arrives later over the channel.
func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	msg, err := a.Engine.SendMessage(scopeVar(r), engine.SendInput{
		Text:    req.Text,
		Kind:    req.Kind,
		Media:   req.Media,
		Audio:   req.Audio,
		ReplyTo: req.ReplyTo,
		LocalID: req.LocalID,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusAccepted, msg)
}

func (a *API) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs := a.Engine.Messages(scopeVar(r))
	if msgs == nil {
		msgs = []models.Message{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, msgs)
}

type editRequest struct {
	Target  engine.TargetRef `json:"target"`
	NewText string           `json:"newText"`
}

func (a *API) editMessage(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := a.Engine.EditMessage(scopeVar(r), req.Target, req.NewText); err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusAccepted, map[string]string{"status": "pending"})
}

type deleteRequest struct {
	Target engine.TargetRef `json:"target"`
}

func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := a.Engine.DeleteMessage(scopeVar(r), req.Target); err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusAccepted, map[string]string{"status": "pending"})
}

type reactRequest struct {
	Target engine.TargetRef `json:"target"`
	Emoji  string           `json:"emoji"`
}

func (a *API) toggleReaction(w http.ResponseWriter, r *http.Request) {
	var req reactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := a.Engine.ToggleReaction(scopeVar(r), req.Target, req.Emoji); err != nil {
		writeEngineError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusAccepted, map[string]string{"status": "applied"})
}
