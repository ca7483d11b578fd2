// Package admin implements the HTTP operator surface named in §6 HTTP
// admin: a config hot-reload endpoint plus read-only exploration
// inspection, built on gorilla/mux the way the runtime template's own
// admin surfaces are.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/lowtide/hexplore/internal/config"
	"github.com/lowtide/hexplore/internal/explore"
)

// Server is the admin HTTP listener. One instance runs per service
// process (platformd and exploresvc both embed one, each wired to
// whatever it actually owns).
type Server struct {
	logger     *slog.Logger
	router     *mux.Router
	httpServer *http.Server

	gamedata *config.GameData
	explores *explore.Registry
}

// New builds a Server listening on addr. gamedata may be nil on a
// process that doesn't own config hot-reload; explores may be nil on a
// process that doesn't own any live explorations (platformd, today).
func New(addr string, gamedata *config.GameData, explores *explore.Registry, logger *slog.Logger) *Server {
	s := &Server{
		logger:   logger,
		router:   mux.NewRouter(),
		gamedata: gamedata,
		explores: explores,
	}
	s.routes()
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/reload", s.handleReload).Methods(http.MethodPost)
	s.router.HandleFunc("/explores", s.handleListExplores).Methods(http.MethodGet)
	s.router.HandleFunc("/explores/{player_id}", s.handleGetExplore).Methods(http.MethodGet)
}

// Handler returns the admin router, for tests to drive directly with
// httptest without binding a real listener.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return s.httpServer.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.gamedata == nil {
		http.Error(w, "reload not available on this process", http.StatusBadRequest)
		return
	}
	if err := s.gamedata.Reload(); err != nil {
		s.logger.Warn("config reload failed", slog.String("error", err.Error()))
		http.Error(w, fmt.Sprintf("reload failed: %v", err), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListExplores(w http.ResponseWriter, r *http.Request) {
	if s.explores == nil {
		writeJSON(w, http.StatusOK, []explore.Summary{})
		return
	}
	writeJSON(w, http.StatusOK, s.explores.List())
}

func (s *Server) handleGetExplore(w http.ResponseWriter, r *http.Request) {
	if s.explores == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	idStr := mux.Vars(r)["player_id"]
	playerID, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid player_id", http.StatusBadRequest)
		return
	}
	e, ok := s.explores.Get(playerID)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, e.Summary())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
