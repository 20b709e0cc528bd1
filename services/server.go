package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/krshsl/skillcards/backend/metrics"
	"github.com/krshsl/skillcards/backend/repository"
	ws "github.com/krshsl/skillcards/backend/websocket"
	"gorm.io/gorm"
)

// Capabilities reports which collaborators were configured at startup
type Capabilities struct {
	QuestionGeneration bool   `json:"question_generation"`
	Evaluation         bool   `json:"evaluation"`
	CardImages         bool   `json:"card_images"`
	CardStore          string `json:"card_store"`
	LockBackend        string `json:"lock_backend"`
}

// Server holds all server dependencies
type Server struct {
	config             *Config
	db                 *gorm.DB
	interviews         InterviewService
	interviewEndpoints *InterviewEndpoints
	authService        *AuthService
	wsHub              *ws.Hub
	capabilities       Capabilities
	upgrader           websocket.Upgrader
}

// NewServer creates a new server instance. db may be nil in tests.
func NewServer(config *Config, db *gorm.DB, interviews InterviewService, hub *ws.Hub, caps Capabilities) *Server {
	s := &Server{
		config:             config,
		db:                 db,
		interviews:         interviews,
		interviewEndpoints: NewInterviewEndpoints(interviews),
		wsHub:              hub,
		capabilities:       caps,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}
	if config.JWT.Secret != "" {
		s.authService = NewAuthService(config.JWT.Secret)
		slog.Info("Authentication enabled for interview routes")
	}
	return s
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	if origins := splitOrigins(s.config.Server.CORSOrigins); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
			AllowCredentials: true,
		}))
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// API v1 route group
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)

		r.Route("/interviews", func(r chi.Router) {
			if s.authService != nil {
				r.Use(s.authService.Middleware)
			}
			s.interviewEndpoints.RegisterRoutes(r)
			if s.wsHub != nil {
				r.Get("/{id}/ws", s.websocketHandlerFunc)
			}
		})
	})

	return r
}

// Start serves until ctx is cancelled or SIGINT/SIGTERM arrives
func (s *Server) Start(ctx context.Context) error {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("Server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}
	if s.wsHub != nil {
		s.wsHub.Stop()
	}

	slog.Info("Server exited")
	return nil
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range splitOrigins(allowedOriginsStr) {
		if allowed == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func splitOrigins(list string) []string {
	var origins []string
	for _, origin := range strings.Split(list, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

type healthResponse struct {
	Status       string       `json:"status"`
	Database     string       `json:"database"`
	Capabilities Capabilities `json:"capabilities"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "not configured", Capabilities: s.capabilities}

	if s.db != nil {
		if err := repository.Ping(r.Context(), s.db); err != nil {
			slog.Warn("Database ping failed", "error", err)
			resp.Database = "down"
			resp.Status = "degraded"
		} else {
			resp.Database = "up"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "API v1", "version": "1.0.0"})
}

func (s *Server) websocketHandlerFunc(w http.ResponseWriter, r *http.Request) {
	id, ok := interviewIDParam(w, r)
	if !ok {
		return
	}
	// The interview must exist before anyone can watch it
	if _, err := s.interviews.GetQuestions(r.Context(), id); err != nil {
		writeServiceError(w, err, "Failed to open progress stream")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}

	client := s.wsHub.RegisterClient(conn, id)
	slog.Info("WebSocket connection established", "interview_id", id, "client_id", client.ID)

	go client.WritePump()
	client.ReadPump()
}
