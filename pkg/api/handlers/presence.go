package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"chatsync/pkg/notify"
	"chatsync/pkg/presence"
	"chatsync/pkg/utils"
)

func (a *API) registerPresence(r *mux.Router) {
	r.HandleFunc("/scopes/{scope}/typing", a.listTyping).Methods(http.MethodGet)
	r.HandleFunc("/scopes/{scope}/typing", a.setTyping).Methods(http.MethodPost)
	r.HandleFunc("/notices", a.listNotices).Methods(http.MethodGet)
}

func (a *API) listTyping(w http.ResponseWriter, r *http.Request) {
	entries := a.Engine.Presence().ListTyping(scopeVar(r))
	if entries == nil {
		entries = []presence.Entry{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, entries)
}

type typingRequest struct {
	Typing bool `json:"typing"`
}

func (a *API) setTyping(w http.ResponseWriter, r *http.Request) {
	var req typingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	a.Engine.SetTyping(scopeVar(r), req.Typing)
	_ = utils.JSONWrite(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

func (a *API) listNotices(w http.ResponseWriter, r *http.Request) {
	var list []notify.Notice
	if a.Notices != nil {
		list = a.Notices.List()
	}
	if list == nil {
		list = []notify.Notice{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, list)
}
