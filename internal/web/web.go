package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/singleflight"

	"confsched/internal/agenda"
	"confsched/internal/config"
	appLog "confsched/internal/log"
	"confsched/internal/model"
	"confsched/internal/reservation"
	"confsched/internal/schedule"
	"confsched/internal/userdata"
)

const (
	dayCacheTTL     = 30 * time.Second
	maxRequestBytes = 64 << 10
)

// Days builds conference days.
type Days interface {
	Days() []string
	BuildDay(ctx context.Context, date string) (agenda.Day, error)
	Session(ctx context.Context, sessionID string) (model.Entry, error)
}

// Store holds the attendee's per-session state.
type Store interface {
	Get(ctx context.Context, sessionID string) (userdata.Record, error)
	SetInSchedule(ctx context.Context, sessionID string, in bool) error
	SetReservationStatus(ctx context.Context, sessionID string, status model.ReservationStatus) error
}

// Refresher reloads the agenda feed.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Server provides the HTTP API for the "My Schedule" view and the
// attendee's schedule and reservation actions.
type Server struct {
	cfg     *config.Config
	days    Days
	store   Store
	refresh Refresher
	mux     *http.ServeMux

	// Built days keyed by date; cleared whenever user data or the feed
	// changes. cacheGen counts invalidations so a build that started before
	// one is never stored.
	cacheMu  sync.RWMutex
	dayCache map[string]dayCacheEntry
	cacheGen uint64
	builds   singleflight.Group
}

type dayCacheEntry struct {
	day       agenda.Day
	updatedAt time.Time
}

// NewServer constructs a new Server. refresh may be nil.
func NewServer(cfg *config.Config, days Days, store Store, refresh Refresher) *Server {
	s := &Server{
		cfg:      cfg,
		days:     days,
		store:    store,
		refresh:  refresh,
		mux:      http.NewServeMux(),
		dayCache: make(map[string]dayCacheEntry),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Invalidate drops every cached day and discards builds still in flight.
func (s *Server) Invalidate() {
	s.cacheMu.Lock()
	clear(s.dayCache)
	s.cacheGen++
	s.cacheMu.Unlock()
}

// Run serves on cfg.Listen until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="confsched", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/days", s.handleDays)
	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/sessions/{id}/schedule", s.handleSetSchedule)
	s.mux.HandleFunc("GET /api/sessions/{id}/reservation", s.handleGetReservation)
	s.mux.HandleFunc("POST /api/sessions/{id}/reservation", s.handleReservation)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type daysResponse struct {
	Days     []string `json:"days"`
	Timezone string   `json:"timezone"`
}

func (s *Server) handleDays(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, daysResponse{Days: s.days.Days(), Timezone: s.cfg.Timezone})
}

// handleSchedule returns one built day.
//
// GET /api/schedule?day=2014-06-25
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("day")
	if date == "" {
		writeError(w, http.StatusBadRequest, "day is required")
		return
	}

	day, err := s.day(r.Context(), date)
	if err != nil {
		s.writeDayError(w, date, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// day serves from the cache, building on a miss. Concurrent misses for the
// same date and generation share one build.
func (s *Server) day(ctx context.Context, date string) (agenda.Day, error) {
	s.cacheMu.RLock()
	c, ok := s.dayCache[date]
	gen := s.cacheGen
	s.cacheMu.RUnlock()
	if ok && time.Since(c.updatedAt) < dayCacheTTL {
		return c.day, nil
	}

	v, err, _ := s.builds.Do(fmt.Sprintf("%s@%d", date, gen), func() (any, error) {
		day, err := s.days.BuildDay(ctx, date)
		if err != nil {
			return agenda.Day{}, err
		}

		s.cacheMu.Lock()
		if s.cacheGen == gen {
			s.dayCache[date] = dayCacheEntry{day: day, updatedAt: time.Now()}
		}
		s.cacheMu.Unlock()
		return day, nil
	})
	if err != nil {
		return agenda.Day{}, err
	}
	return v.(agenda.Day), nil
}

func (s *Server) writeDayError(w http.ResponseWriter, date string, err error) {
	var verr *schedule.ValidationError
	switch {
	case errors.Is(err, agenda.ErrUnknownDay):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, verr.Error())
	default:
		appLog.Error("api schedule: build failed", err, "day", date)
		writeError(w, http.StatusInternalServerError, "failed to build schedule")
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresh == nil {
		writeError(w, http.StatusNotImplemented, "refresh not available")
		return
	}
	err := s.refresh.Refresh(r.Context())
	s.Invalidate()
	if err != nil {
		appLog.Error("api refresh: feed refresh failed", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

type scheduleRequest struct {
	InSchedule bool `json:"in_schedule"`
}

type sessionResponse struct {
	SessionID         string                  `json:"session_id"`
	InSchedule        bool                    `json:"in_schedule"`
	ReservationStatus model.ReservationStatus `json:"reservation_status"`
	State             reservation.State       `json:"state,omitempty"`
}

// handleSetSchedule stars or unstars a session.
//
// POST /api/sessions/{id}/schedule  {"in_schedule": true}
func (s *Server) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var req scheduleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.sessionExists(ctx, w, id) {
		return
	}

	if err := s.store.SetInSchedule(ctx, id, req.InSchedule); err != nil {
		appLog.Error("api schedule: store failed", err, "session", id)
		writeError(w, http.StatusInternalServerError, "failed to update schedule")
		return
	}
	s.Invalidate()
	appLog.Info("session schedule updated", "session", id, "in_schedule", req.InSchedule)

	rec, err := s.record(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read session")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:         id,
		InSchedule:        rec.InSchedule,
		ReservationStatus: rec.ReservationStatus,
	})
}

type reservationRequest struct {
	Action string `json:"action"`
}

// handleGetReservation reports the current reservation state.
func (s *Server) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	entry, err := s.days.Session(ctx, id)
	if err != nil {
		s.writeSessionError(w, id, err)
		return
	}
	rec, err := s.record(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read session")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:         id,
		InSchedule:        rec.InSchedule,
		ReservationStatus: rec.ReservationStatus,
		State:             reservation.Derive(rec.ReservationStatus, s.conditions(entry)),
	})
}

// handleReservation applies a reservation action.
//
// POST /api/sessions/{id}/reservation  {"action": "request"|"confirm"|"cancel"}
func (s *Server) handleReservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var req reservationRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	action, err := reservation.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := s.days.Session(ctx, id)
	if err != nil {
		s.writeSessionError(w, id, err)
		return
	}
	rec, err := s.record(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read session")
		return
	}

	current := reservation.Derive(rec.ReservationStatus, s.conditions(entry))
	next, err := reservation.Next(current, action)
	switch {
	case current == reservation.StateAuthRequired:
		writeError(w, http.StatusUnauthorized, "sign-in required to reserve")
		return
	case errors.Is(err, reservation.ErrBlocked), errors.Is(err, reservation.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := reservation.StatusOf(next)
	if err := s.store.SetReservationStatus(ctx, id, status); err != nil {
		appLog.Error("api reservation: store failed", err, "session", id)
		writeError(w, http.StatusInternalServerError, "failed to update reservation")
		return
	}
	s.Invalidate()
	appLog.Info("reservation updated", "session", id, "action", string(action), "from", string(current), "to", string(next))

	rec, err = s.record(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read session")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:         id,
		InSchedule:        rec.InSchedule,
		ReservationStatus: rec.ReservationStatus,
		State:             next,
	})
}

// conditions reflect the deployment: the attendee is signed in when the API
// sits behind basic auth, and reservations open per config.
func (s *Server) conditions(e model.Entry) reservation.Conditions {
	return reservation.Conditions{
		SignedIn:  s.basicAuthEnabled(),
		Open:      s.cfg.Reservations.Enabled,
		SeatsLeft: e.SeatsLeft,
	}
}

// record returns the stored record, or the unreserved default.
func (s *Server) record(ctx context.Context, id string) (userdata.Record, error) {
	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, userdata.ErrNotFound) {
		return userdata.Record{SessionID: id, ReservationStatus: model.ReservationUnreserved}, nil
	}
	return rec, err
}

func (s *Server) sessionExists(ctx context.Context, w http.ResponseWriter, id string) bool {
	if _, err := s.days.Session(ctx, id); err != nil {
		s.writeSessionError(w, id, err)
		return false
	}
	return true
}

func (s *Server) writeSessionError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, agenda.ErrUnknownSession) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	appLog.Error("api session lookup failed", err, "session", id)
	writeError(w, http.StatusInternalServerError, "failed to look up session")
}

func readJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("request body is empty")
	}
	return sonic.Unmarshal(body, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		appLog.Error("failed to encode JSON response", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
