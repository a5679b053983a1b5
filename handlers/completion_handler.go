package handlers

import (
	"context"
	"net/http"

	"barakahAPI/internal/catalog"
	"barakahAPI/internal/identity"
	"barakahAPI/internal/progression"
	"barakahAPI/internal/store"
	"barakahAPI/internal/streak"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type completionResponse struct {
	ItemID          uuid.UUID            `json:"item_id"`
	Kind            store.ItemKind       `json:"kind"`
	Date            string               `json:"date"`
	Completed       bool                 `json:"completed"`
	Changed         bool                 `json:"changed"`
	Profile         *store.Profile       `json:"profile,omitempty"`
	Progress        progression.Progress `json:"progress"`
	EffectiveStreak int                  `json:"effective_streak"`
}

// GetToday lists the day's items split into pending and done. Anonymous callers see
// everything as pending.
func (a *API) GetToday(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	kind, err := store.ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.users.CurrentUser(ctx)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	today := a.today(r)
	view, err := a.ledger.Today(ctx, identity.IDOf(user), kind, today, a.calendar.DayOf(today))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if view.Pending == nil {
		view.Pending = []catalog.Group{}
	}
	respondWithJSON(w, http.StatusOK, view)
}

func (a *API) CompleteItem(w http.ResponseWriter, r *http.Request) {
	a.toggle(w, r, true)
}

func (a *API) UncompleteItem(w http.ResponseWriter, r *http.Request) {
	a.toggle(w, r, false)
}

func (a *API) toggle(w http.ResponseWriter, r *http.Request, on bool) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	vars := mux.Vars(r)
	kind, err := store.ParseKind(vars["kind"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	itemID, err := uuid.Parse(vars["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	user, err := a.requireUser(ctx)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	today := a.today(r)
	res, err := a.sessions.For(user.ID).Toggle(ctx, kind, itemID, today, on)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	resp := completionResponse{
		ItemID:    itemID,
		Kind:      kind,
		Date:      today.String(),
		Completed: res.Completed,
		Changed:   res.Changed,
		Profile:   res.Profile,
		Progress:  progression.BandProgress(0),
	}
	if res.Profile != nil {
		resp.Progress = progression.BandProgress(res.Profile.TotalBP)
		resp.EffectiveStreak = streak.Effective(res.Profile.State, today)
	}
	respondWithJSON(w, http.StatusOK, resp)
}
