package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sujithputta02/LifeFlow-AI/internal/config"
	"github.com/sujithputta02/LifeFlow-AI/internal/events"
	"github.com/sujithputta02/LifeFlow-AI/internal/gamification"
	"github.com/sujithputta02/LifeFlow-AI/internal/generator"
	"github.com/sujithputta02/LifeFlow-AI/internal/logging"
	"github.com/sujithputta02/LifeFlow-AI/internal/store"
)

type Server struct {
	store     store.Store
	generator Generator
	profiles  ProfileService
	broker    Broker
	cfg       config.Config
	log       *logging.Logger
	now       func() time.Time
}

type Generator interface {
	Generate(ctx context.Context, req generator.Request) (generator.Result, error)
	Verify(ctx context.Context, req generator.VerifyRequest) (generator.VerifyResult, error)
}

type ProfileService interface {
	Profile(ctx context.Context, guestID string) (store.GuestProfile, error)
	Update(ctx context.Context, profile store.GuestProfile) (store.GuestProfile, error)
	CompleteStep(ctx context.Context, guestID string, verified bool) (gamification.Award, error)
}

type Broker interface {
	Publish(event events.GuestEvent)
	Subscribe(ctx context.Context, guestID string) <-chan events.GuestEvent
}

func NewServer(store store.Store, gen Generator, profiles ProfileService, broker Broker, cfg config.Config, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	return &Server{
		store:     store,
		generator: gen,
		profiles:  profiles,
		broker:    broker,
		cfg:       cfg,
		log:       log.With("component", "api"),
		now:       time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/", s.root)
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate-workflow", s.generateWorkflow)
		r.Get("/history", s.listHistory)
		r.Delete("/history/{id}", s.deleteHistory)
		r.Post("/verify-step", s.verifyStep)
		r.Get("/events", s.streamEvents)

		r.Route("/gamification", func(r chi.Router) {
			r.Post("/update", s.updateProfile)
			r.Post("/complete-step", s.completeStep)
			r.Get("/{guestId}", s.getProfile)
		})
	})

	return r
}

// requestLogger writes one structured line per request, skipping probes
// and long-lived streams.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(started),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if method == http.MethodGet && (strings.HasSuffix(cleanPath, "/events") || cleanPath == "/health" || cleanPath == "/ready") {
		return true
	}
	return method == http.MethodOptions
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origin := strings.TrimSpace(s.cfg.CORSOrigin)
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Workflow-Id, X-Workflow-Outcome")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("LifeFlow API is running"))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if err := s.store.Ping(ctx); err != nil {
		subsystems["store"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["store"] = subsystemStatus{Status: "ok"}
	}

	if s.cfg.UseMockData {
		subsystems["llm"] = subsystemStatus{Status: "mock"}
	} else {
		subsystems["llm"] = subsystemStatus{Status: "ok"}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func writeJSON(w http.ResponseWriter, value any) {
	writeJSONStatus(w, value, http.StatusOK)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

// writeError answers with the {"error": message} body browser clients expect.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, map[string]string{"error": message}, statusCode)
}

func (s *Server) publish(guestID, eventType string, payload map[string]any) {
	if s.broker == nil || guestID == "" {
		return
	}
	s.broker.Publish(events.New(guestID, eventType, payload))
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	return server.ListenAndServe()
}
