package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tcgsim/tcgsim-go/internal/config"
	"github.com/tcgsim/tcgsim-go/internal/game"
	"github.com/tcgsim/tcgsim-go/internal/repository"
	"github.com/tcgsim/tcgsim-go/internal/sim"
	"github.com/tcgsim/tcgsim-go/internal/tournament"
)

// AdminPasswordHeader carries the admin password for guarded routes.
const AdminPasswordHeader = "X-Admin-Password"

// HTTPServer serves the JSON API under /api and the websocket at /api/ws.
type HTTPServer struct {
	r         *chi.Mux
	session   *Session
	hub       *Hub
	runs      *tournament.Manager
	defaults  config.SimulationConfig
	logger    *zap.Logger
	adminHash string
	shutdown  func()
}

// NewHTTPServer builds the router. shutdown is invoked by a successful
// POST /api/shutdown and may be nil. The tournament routes are mounted only
// when runs is not nil.
func NewHTTPServer(session *Session, hub *Hub, runs *tournament.Manager, cfg *config.Config, shutdown func(), logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &HTTPServer{
		r:         chi.NewRouter(),
		session:   session,
		hub:       hub,
		runs:      runs,
		defaults:  cfg.Simulation,
		logger:    logger.Named("http"),
		adminHash: cfg.Server.AdminPasswordHash,
		shutdown:  shutdown,
	}

	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(chimw.Recoverer)
	s.r.Use(s.requestLogger)

	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	s.r.Route("/api", func(r chi.Router) {
		r.Get("/ws", hub.ServeWS)

		r.Group(func(r chi.Router) {
			r.Use(jsonContentType)

			r.Get("/state", s.handleState)
			r.Post("/step", s.handleStep)
			r.Post("/turn", s.handleTurn)
			r.Post("/game", s.handleGame)
			r.Post("/declare-attackers", s.handleDeclareAttackers)
			r.Post("/declare-blockers", s.handleDeclareBlockers)
			r.Post("/main/land", s.handlePlayLand)
			r.Post("/main/cast", s.handleCastCreature)
			r.Post("/main/end", s.handleEndMain)
			r.Post("/auto-play", s.handleAutoPlay)
			r.Post("/deck", s.handleDeck)
			r.Post("/restart", s.handleRestart)
			r.Get("/replay", s.handleReplay)
			r.With(s.requireAdmin).Post("/shutdown", s.handleShutdown)

			r.Get("/snapshots", s.handleListSnapshots)
			r.Post("/snapshots", s.handleSaveSnapshot)
			r.Post("/snapshots/{name}/load", s.handleLoadSnapshot)

			if runs != nil {
				r.Route("/tournaments", func(r chi.Router) {
					r.Get("/", s.handleListTournaments)
					r.Post("/", s.handleStartTournament)
					r.Get("/{id}", s.handleGetTournament)
					r.Post("/{id}/cancel", s.handleCancelTournament)
					r.Delete("/{id}", s.handleRemoveTournament)
				})
			}
		})
	})

	if cfg.Server.StaticDir != "" {
		s.r.Handle("/*", http.FileServer(http.Dir(cfg.Server.StaticDir)))
	}

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found: "+r.URL.Path)
	})
	return s
}

// Handler exposes the router.
func (s *HTTPServer) Handler() http.Handler { return s.r }

// ----------------------------- middleware ----------------------------------

func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

// requireAdmin checks the admin password against the configured bcrypt hash.
func (s *HTTPServer) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminHash == "" {
			writeError(w, http.StatusForbidden, "admin access not configured")
			return
		}
		password := r.Header.Get(AdminPasswordHeader)
		if err := bcrypt.CompareHashAndPassword([]byte(s.adminHash), []byte(password)); err != nil {
			s.logger.Warn("admin authentication failed", zap.String("remote", r.RemoteAddr))
			writeError(w, http.StatusUnauthorized, "invalid admin password")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ payloads -----------------------------------

type attackersRequest struct {
	Attackers []int `json:"attackers"`
}

type blockersRequest struct {
	// Blocking maps blocker position to attacker position.
	Blocking map[int]int `json:"blocking"`
}

type handRequest struct {
	Index int `json:"index"`
}

type autoPlayRequest struct {
	Enabled bool `json:"enabled"`
}

type deckRequest struct {
	Lands    int `json:"lands"`
	Nonlands int `json:"nonlands"`
	Games    int `json:"games"`
}

type deckResponse struct {
	Stats sim.BatchStats `json:"stats"`
	State View           `json:"state"`
}

// tournamentRequest overrides the configured optimizer settings. Zero
// fields keep the configured value.
type tournamentRequest struct {
	Lands         int   `json:"lands"`
	Nonlands      int   `json:"nonlands"`
	Games         int   `json:"games"`
	ChangeSize    int   `json:"change_size"`
	ConsensusWins int   `json:"consensus_wins"`
	MaxIterations int   `json:"max_iterations"`
	Seed          int64 `json:"seed"`
}

func (req tournamentRequest) optimizerConfig(d config.SimulationConfig) sim.OptimizerConfig {
	pick := func(v, def int) int {
		if v != 0 {
			return v
		}
		return def
	}
	seed := req.Seed
	if seed == 0 {
		seed = d.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return sim.OptimizerConfig{
		Start:         sim.Ratio{Lands: pick(req.Lands, d.Lands), Nonlands: pick(req.Nonlands, d.Nonlands)},
		ChangeSize:    pick(req.ChangeSize, d.ChangeSize),
		ConsensusWins: pick(req.ConsensusWins, d.ConsensusWins),
		MaxIterations: pick(req.MaxIterations, d.MaxIterations),
		Batch: sim.BatchConfig{
			Players: d.Players,
			Games:   pick(req.Games, d.GamesPerTrial),
			Workers: d.Workers,
			Seed:    seed,
		},
	}
}

type snapshotRequest struct {
	Name string `json:"name"`
}

type replayResponse struct {
	MatchID string `json:"match_id"`
	States  int    `json:"states"`
}

// ------------------------------ handlers -----------------------------------

func (s *HTTPServer) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *HTTPServer) handleStep(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Step())
}

func (s *HTTPServer) handleTurn(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.StepTurn())
}

func (s *HTTPServer) handleGame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.RunGame())
}

func (s *HTTPServer) handleDeclareAttackers(w http.ResponseWriter, r *http.Request) {
	var req attackersRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := s.session.DeclareAttackers(req.Attackers)
	s.respond(w, v, err)
}

func (s *HTTPServer) handleDeclareBlockers(w http.ResponseWriter, r *http.Request) {
	var req blockersRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := s.session.DeclareBlockers(req.Blocking)
	s.respond(w, v, err)
}

func (s *HTTPServer) handlePlayLand(w http.ResponseWriter, r *http.Request) {
	var req handRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := s.session.PlayLand(req.Index)
	s.respond(w, v, err)
}

func (s *HTTPServer) handleCastCreature(w http.ResponseWriter, r *http.Request) {
	var req handRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := s.session.CastCreature(req.Index)
	s.respond(w, v, err)
}

func (s *HTTPServer) handleEndMain(w http.ResponseWriter, r *http.Request) {
	v, err := s.session.EndMain()
	s.respond(w, v, err)
}

func (s *HTTPServer) handleAutoPlay(w http.ResponseWriter, r *http.Request) {
	var req autoPlayRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.session.SetAutoPlay(req.Enabled))
}

func (s *HTTPServer) handleDeck(w http.ResponseWriter, r *http.Request) {
	var req deckRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Lands < 0 || req.Nonlands < 0 || req.Lands+req.Nonlands == 0 {
		writeError(w, http.StatusBadRequest, "deck needs a non-negative, non-empty ratio")
		return
	}
	stats, state, err := s.session.RunDeck(r.Context(), req.Lands, req.Nonlands, req.Games)
	if err != nil {
		s.logger.Warn("deck run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, deckResponse{Stats: stats, State: state})
}

func (s *HTTPServer) handleRestart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Restart())
}

func (s *HTTPServer) handleReplay(w http.ResponseWriter, r *http.Request) {
	replay, ok := s.session.Replay()
	if !ok {
		writeError(w, http.StatusNotFound, "live match is not being recorded")
		return
	}
	writeJSON(w, http.StatusOK, replayResponse{MatchID: replay.MatchID, States: replay.Size()})
}

func (s *HTTPServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("shutdown requested", zap.String("remote", r.RemoteAddr))
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
	if s.shutdown != nil {
		go s.shutdown()
	}
}

func (s *HTTPServer) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	infos, err := s.session.ListSnapshots(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if infos == nil {
		infos = []repository.SnapshotInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *HTTPServer) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "snapshot name is required")
		return
	}
	info, err := s.session.SaveSnapshot(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *HTTPServer) handleLoadSnapshot(w http.ResponseWriter, r *http.Request) {
	state, err := s.session.LoadSnapshot(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *HTTPServer) handleListTournaments(w http.ResponseWriter, r *http.Request) {
	all := s.runs.GetAllTournaments()
	out := make([]tournament.Snapshot, 0, len(all))
	for _, t := range all {
		out = append(out, t.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleStartTournament(w http.ResponseWriter, r *http.Request) {
	var req tournamentRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	t, err := s.runs.Start(req.optimizerConfig(s.defaults))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, t.Snapshot())
}

func (s *HTTPServer) handleGetTournament(w http.ResponseWriter, r *http.Request) {
	t, err := s.runs.GetTournament(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, t.Snapshot())
}

func (s *HTTPServer) handleCancelTournament(w http.ResponseWriter, r *http.Request) {
	t, err := s.runs.GetTournament(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	t.Cancel()
	select {
	case <-t.Done():
	case <-r.Context().Done():
	}
	writeJSON(w, http.StatusOK, t.Snapshot())
}

func (s *HTTPServer) handleRemoveTournament(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.runs.GetTournament(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.runs.RemoveTournament(id)
	w.WriteHeader(http.StatusNoContent)
}

// ------------------------------- helpers -----------------------------------

func (s *HTTPServer) respond(w http.ResponseWriter, v View, err error) {
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, tournament.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInvalidCard):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNotAwaiting),
		errors.Is(err, game.ErrLandAlreadyPlayed),
		errors.Is(err, game.ErrCannotPay):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
