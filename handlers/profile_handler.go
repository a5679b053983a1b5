package handlers

import (
	"context"
	"errors"
	"net/http"

	"barakahAPI/internal/apperr"
	"barakahAPI/internal/observance"
	"barakahAPI/internal/session"
)

type profileResponse struct {
	session.Snapshot
	Observance            observance.State `json:"observance"`
	PendingReconciliation bool             `json:"pending_reconciliation"`
}

// GetProfile refreshes the caller's session and returns the snapshot.
func (a *API) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	user, err := a.requireUser(ctx)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	today := a.today(r)
	sess := a.sessions.For(user.ID)
	snap, err := sess.Refresh(ctx, today)
	if errors.Is(err, apperr.ErrStaleReadDiscarded) {
		// a concurrent toggle already moved the session forward
		snap = sess.Snapshot()
	} else if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, profileResponse{
		Snapshot:              snap,
		Observance:            a.calendar.DayOf(today),
		PendingReconciliation: a.ledger.PendingReconciliation(user.ID),
	})
}

func (a *API) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	user, err := a.requireUser(ctx)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	had := a.sessions.SignOut(user.ID)
	respondWithJSON(w, http.StatusOK, map[string]bool{
		"success":     true,
		"had_session": had,
	})
}
