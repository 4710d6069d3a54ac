// Package server is the operational HTTP console: liveness, per-connection
// diagnostics and backend availability.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"github.com/koustreak/racedb/internal/database"
	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/logger"
	"github.com/koustreak/racedb/internal/pool"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server serves the console for one pool.
type Server struct {
	pool     *pool.Pool
	counters *database.Counters
	log      *logger.Logger
	http     *http.Server
}

// New creates a console listening on addr.
func New(addr string, p *pool.Pool, counters *database.Counters, log *logger.Logger) *Server {
	s := &Server{
		pool:     p,
		counters: counters,
		log:      log.With().Str("component", "http").Logger(),
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Routes returns the console's router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/connections", s.handleConnections)
		r.Get("/drivers", s.handleDrivers)
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("console listening on %s", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.Wrap(errs.ErrKindConnectionFailed, "console server failed", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

// --- handlers ---

type healthResponse struct {
	Status    string `json:"status"`
	ReadHeld  int    `json:"read_held"`
	ReadSize  int    `json:"read_size"`
	WriteHeld int    `json:"write_held"`
	WriteSize int    `json:"write_size"`

	BackupHeld int `json:"backup_held,omitempty"`
	BackupSize int `json:"backup_size,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		ReadHeld:  s.pool.Held(pool.Read),
		ReadSize:  s.pool.Size(pool.Read),
		WriteHeld: s.pool.Held(pool.Write),
		WriteSize: s.pool.Size(pool.Write),

		BackupHeld: s.pool.Held(pool.WriteBackup),
		BackupSize: s.pool.Size(pool.WriteBackup),
	})
}

type connectionsResponse struct {
	Connections []pool.SlotDescription `json:"connections"`
	Live        map[string]int64       `json:"live"`
}

func (s *Server) handleConnections(w http.ResponseWriter, _ *http.Request) {
	live := make(map[string]int64)
	for d, n := range s.counters.Snapshot() {
		live[string(d)] = n
	}
	s.writeJSON(w, http.StatusOK, connectionsResponse{
		Connections: s.pool.Describe(),
		Live:        live,
	})
}

type driverStatus struct {
	Driver    database.Driver `json:"driver"`
	Name      string          `json:"name"`
	Available bool            `json:"available"`
}

func (s *Server) handleDrivers(w http.ResponseWriter, _ *http.Request) {
	var out []driverStatus
	for _, d := range database.Drivers() {
		out = append(out, driverStatus{
			Driver:    d,
			Name:      d.DisplayName(),
			Available: database.Available(d),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.ErrorWith("encode response", err, nil)
	}
}

// --- middleware ---

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.log.HTTPEvent().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
