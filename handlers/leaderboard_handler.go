package handlers

import (
	"context"
	"net/http"
	"strconv"

	"barakahAPI/internal/identity"
	"barakahAPI/internal/leaderboard"
)

// GetLeaderboard returns the top entries and, for a signed-in caller, their own position.
func (a *API) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	limit := leaderboard.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	user, err := a.users.CurrentUser(ctx)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	board, err := a.board.Board(ctx, identity.IDOf(user), limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, board)
}

// GetMyRank returns the caller's entry, or null when they have no BP yet.
func (a *API) GetMyRank(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	user, err := a.requireUser(ctx)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	entry, err := a.board.RankOf(ctx, identity.IDOf(user))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"position": entry})
}
