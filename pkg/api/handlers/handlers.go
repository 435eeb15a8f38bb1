// Package handlers exposes the engine over a local HTTP surface so UI
// shells and debugging tools can drive it without linking Go.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"chatsync/pkg/engine"
	"chatsync/pkg/notify"
	"chatsync/pkg/utils"
)

// API holds the handler dependencies.
type API struct {
	Engine  *engine.Engine
	Notices *notify.Store
}

// New builds the handler set.
func New(e *engine.Engine, notices *notify.Store) *API {
	return &API{Engine: e, Notices: notices}
}

// Register attaches all routes to the router. The caller mounts it
// under /v1.
func (a *API) Register(r *mux.Router) {
	a.registerMessages(r)
	a.registerThreads(r)
	a.registerPresence(r)
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrEmptyMessage),
		errors.Is(err, engine.ErrEmptyEdit):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotAuthor):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrReplyUnresolved),
		errors.Is(err, engine.ErrUnconfirmedDelete):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	utils.JSONError(w, statusFor(err), err.Error())
}
