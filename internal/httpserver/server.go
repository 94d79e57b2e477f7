// internal/httpserver/server.go
//
// HTTP server wiring for the Wavelength backend.
// Responsibilities:
//   - Router + middleware (request IDs, access logs, panic recovery, timeouts, JSON, CORS).
//   - Public endpoints: "/", "/health".
//   - Game endpoints under /api/game (create, state, join, hint, guess, next, chat, ws).
//   - Chat helpers: /api/upload, /api/gifs, /api/scales/random.
//   - Admin endpoints: /api/admin/token, /api/admin/clear.
//
// Notes:
//   - CORS is single-origin and credentials-enabled; the same origin gates websocket upgrades.
//   - The websocket route sits outside the timeout group, since it is long-lived.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wavelength/internal/gifs"
	"github.com/robalobadob/wavelength/internal/live"
	"github.com/robalobadob/wavelength/internal/scales"
	"github.com/robalobadob/wavelength/internal/service"
	"github.com/robalobadob/wavelength/internal/store"
	"github.com/robalobadob/wavelength/internal/upload"
)

// Deps are the collaborators the HTTP layer dispatches to.
type Deps struct {
	Service      *service.Service
	Store        store.Store // health checks and admin clear
	Hub          *live.Hub
	Uploads      *upload.Service
	Gifs         *gifs.Client
	Scales       *scales.Deck
	Admin        AdminConfig
	ClientOrigin string
}

// Server bundles the router and its dependencies.
type Server struct {
	r    *chi.Mux
	deps Deps

	mu   sync.Mutex // guards http
	http *http.Server
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	if d.Hub == nil {
		d.Hub = live.NewHub(nil)
	}
	if d.Uploads == nil {
		d.Uploads = upload.NewService(nil, 0)
	}
	if d.Gifs == nil {
		d.Gifs = gifs.NewClient("", "")
	}
	if d.ClientOrigin == "" {
		d.ClientOrigin = "http://localhost:5173"
	}
	s := &Server{r: chi.NewRouter(), deps: d}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(hlog.NewHandler(log.Logger))
	s.r.Use(requestIDLogField)
	s.r.Use(hlog.AccessHandler(accessLog))
	s.r.Use(chimw.Recoverer)
	s.r.Use(jsonContentType)
	s.r.Use(corsFor(d.ClientOrigin))

	// --- long-lived ---
	s.r.Get("/api/game/{gameId}/ws", s.handleWS)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))

		// --- diagnostics ---
		r.Get("/", s.handleRoot)
		r.Get("/health", s.handleHealth)

		r.Route("/api/game", func(r chi.Router) {
			r.Post("/", s.handleCreate)
			r.Get("/{gameId}", s.handleState)
			r.Post("/{gameId}/join", s.handleJoin)
			r.Post("/{gameId}/hint", s.handleHint)
			r.Post("/{gameId}/guess", s.handleGuess)
			r.Post("/{gameId}/next", s.handleNext)
			r.Post("/{gameId}/chat", s.handleChat)
		})

		r.Post("/api/upload", s.handleUpload)
		r.Get("/api/gifs", s.handleGifs)
		r.Get("/api/scales/random", s.handleRandomScale)

		s.mountAdmin(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Handler exposes the router (useful for tests).
func (s *Server) Handler() http.Handler { return s.r }

// Start serves HTTP on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "wavelength-go",
		"endpoints": []string{
			"/health",
			"POST /api/game",
			"GET /api/game/{gameId}",
			"POST /api/game/{gameId}/{join|hint|guess|next|chat}",
			"GET /api/game/{gameId}/ws",
			"POST /api/upload",
			"GET /api/gifs",
			"GET /api/scales/random",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("health: store ping")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "store": "down"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFor enables credentialed CORS for a single origin.
func corsFor(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestIDLogField copies chi's request id onto the request logger.
func requestIDLogField(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("req_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	ev := hlog.FromRequest(r).Info()
	if status >= 500 {
		ev = hlog.FromRequest(r).Warn()
	}
	ev.Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}
