package handlers

import (
	"context"
	"net/http"
	"time"

	"barakahAPI/internal/apperr"
	"barakahAPI/internal/identity"
	"barakahAPI/internal/leaderboard"
	"barakahAPI/internal/ledger"
	"barakahAPI/internal/observance"
	"barakahAPI/internal/session"
	"barakahAPI/internal/store"

	"cloud.google.com/go/civil"
	"github.com/gorilla/mux"
)

const requestTimeout = 5 * time.Second

// TimezoneHeader carries the caller's IANA zone. The user's day starts at their midnight.
const TimezoneHeader = "X-Timezone"

type Deps struct {
	Store       store.Store
	Ledger      *ledger.Service
	Leaderboard *leaderboard.Service
	Sessions    *session.Registry
	Users       identity.Provider
	Calendar    observance.Calendar
	DefaultTZ   *time.Location
	Now         func() time.Time
}

// API serves the engine over HTTP.
type API struct {
	store     store.Store
	ledger    *ledger.Service
	board     *leaderboard.Service
	sessions  *session.Registry
	users     identity.Provider
	calendar  observance.Calendar
	defaultTZ *time.Location
	now       func() time.Time
}

func NewAPI(d Deps) *API {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.DefaultTZ == nil {
		d.DefaultTZ = time.UTC
	}
	return &API{
		store:     d.Store,
		ledger:    d.Ledger,
		board:     d.Leaderboard,
		sessions:  d.Sessions,
		users:     d.Users,
		calendar:  d.Calendar,
		defaultTZ: d.DefaultTZ,
		now:       d.Now,
	}
}

// Register mounts the routes. requireAuth guards endpoints that need a user, optionalAuth
// identifies the caller when a token is present.
func (a *API) Register(r *mux.Router, requireAuth, optionalAuth mux.MiddlewareFunc) {
	r.HandleFunc("/health", a.Health).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()

	public := v1.NewRoute().Subrouter()
	public.Use(optionalAuth)
	public.HandleFunc("/observance", a.GetObservance).Methods("GET")
	public.HandleFunc("/leaderboard", a.GetLeaderboard).Methods("GET")
	public.HandleFunc("/{kind:quests|videos}/today", a.GetToday).Methods("GET")

	protected := v1.NewRoute().Subrouter()
	protected.Use(requireAuth)
	protected.HandleFunc("/profile", a.GetProfile).Methods("GET")
	protected.HandleFunc("/leaderboard/me", a.GetMyRank).Methods("GET")
	protected.HandleFunc("/{kind:quests|videos}/{id}/completion", a.CompleteItem).Methods("PUT")
	protected.HandleFunc("/{kind:quests|videos}/{id}/completion", a.UncompleteItem).Methods("DELETE")
	protected.HandleFunc("/session/sign-out", a.SignOut).Methods("POST")
}

// today is the caller's calendar date, in the zone from the request header when it
// names a valid location.
func (a *API) today(r *http.Request) civil.Date {
	loc := observance.LoadLocation(r.Header.Get(TimezoneHeader), a.defaultTZ)
	return observance.Today(a.now(), loc)
}

// requireUser resolves the signed-in user or fails with ErrNotAuthenticated.
func (a *API) requireUser(ctx context.Context) (*identity.User, error) {
	user, err := a.users.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.ErrNotAuthenticated
	}
	return user, nil
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.store.Ping(ctx); err != nil {
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "store unavailable",
		})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "barakah-api",
	})
}

type observanceResponse struct {
	Date     string           `json:"date"`
	Timezone string           `json:"timezone"`
	State    observance.State `json:"state"`
}

func (a *API) GetObservance(w http.ResponseWriter, r *http.Request) {
	loc := observance.LoadLocation(r.Header.Get(TimezoneHeader), a.defaultTZ)
	today := observance.Today(a.now(), loc)
	respondWithJSON(w, http.StatusOK, observanceResponse{
		Date:     today.String(),
		Timezone: loc.String(),
		State:    a.calendar.DayOf(today),
	})
}
