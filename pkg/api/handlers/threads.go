package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatsync/pkg/engine"
	"chatsync/pkg/utils"
)

func (a *API) registerThreads(r *mux.Router) {
	r.HandleFunc("/threads", a.listThreads).Methods(http.MethodGet)
	r.HandleFunc("/scopes/{scope}/focus", a.focusScope).Methods(http.MethodPost)
	r.HandleFunc("/scopes/{scope}/hide", a.hideScope).Methods(http.MethodPost)
	r.HandleFunc("/scopes/{scope}", a.clearScope).Methods(http.MethodDelete)
}

func (a *API) listThreads(w http.ResponseWriter, r *http.Request) {
	list := a.Engine.Threads()
	if list == nil {
		list = []engine.ThreadInfo{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, list)
}

func (a *API) focusScope(w http.ResponseWriter, r *http.Request) {
	a.Engine.Focus(scopeVar(r))
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) hideScope(w http.ResponseWriter, r *http.Request) {
	a.Engine.Hide(scopeVar(r))
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) clearScope(w http.ResponseWriter, r *http.Request) {
	a.Engine.ClearThread(scopeVar(r))
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}
