package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *App) ActionsList(w http.ResponseWriter, r *http.Request) {
	actions := a.Ledger.PendingActions()
	items := make([]actionView, 0, len(actions))
	for i := len(actions) - 1; i >= 0; i-- {
		items = append(items, a.actionView(actions[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) ActionGet(w http.ResponseWriter, r *http.Request) {
	action, err := a.Ledger.Action(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.actionView(action))
}

func (a *App) StreamChanges(w http.ResponseWriter, r *http.Request) {
	if a.Stream == nil {
		a.error(w, r, http.StatusServiceUnavailable, codeConnectionUnavailable)
		return
	}
	a.Stream.ServeHTTP(w, r)
}
