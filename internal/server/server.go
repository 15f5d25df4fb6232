// Package server exposes the Plainly HTTP API: the stateless processing
// endpoints used during capture, the recording library CRUD surface, and
// playback and settings controls.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olayinkafad/plainly/internal/observe"
	"github.com/olayinkafad/plainly/internal/orchestrator"
	"github.com/olayinkafad/plainly/internal/pipeline"
	"github.com/olayinkafad/plainly/internal/playback"
	"github.com/olayinkafad/plainly/internal/recording"
	"github.com/olayinkafad/plainly/internal/settings"
)

// maxUploadBytes caps multipart audio uploads (64 MiB).
const maxUploadBytes = 64 << 20

// Server wires the HTTP routes to the orchestrator and pipeline.
type Server struct {
	orch     *orchestrator.Orchestrator
	store    recording.Store
	settings settings.Store
	player   *playback.Player
	proc     *pipeline.Processor
	metrics  *observe.Metrics

	corsOrigins []string
}

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithCORSOrigins sets the allowed CORS origins. Default: none (CORS
// middleware still answers preflights but allows no cross-origin callers).
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New returns a [Server] wired to the given collaborators.
func New(orch *orchestrator.Orchestrator, store recording.Store, settingsStore settings.Store, player *playback.Player, proc *pipeline.Processor, opts ...Option) *Server {
	s := &Server{
		orch:     orch,
		store:    store,
		settings: settingsStore,
		player:   player,
		proc:     proc,
		metrics:  observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the chi router with all routes and middleware attached.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(observe.Middleware(s.metrics))

	// Stateless processing endpoints.
	r.Post("/process-recording", s.handleProcessRecording)
	r.Post("/transcribe", s.handleTranscribe)
	r.Post("/generate-title", s.handleGenerateTitle)

	// Recording library.
	r.Route("/recordings", func(r chi.Router) {
		r.Get("/", s.handleListRecordings)
		r.Post("/", s.handleCreateRecording)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetRecording)
			r.Patch("/", s.handlePatchRecording)
			r.Delete("/", s.handleDeleteRecording)
			r.Post("/retry", s.handleRetryRecording)
		})
	})

	// Playback control.
	r.Route("/playback", func(r chi.Router) {
		r.Get("/", s.handlePlaybackState)
		r.Post("/play/{id}", s.handlePlay)
		r.Post("/seek", s.handleSeek)
		r.Post("/speed", s.handleCycleSpeed)
		r.Post("/close", s.handleClosePlayback)
	})

	// Settings.
	r.Get("/settings/{key}", s.handleGetSetting)
	r.Put("/settings/{key}", s.handlePutSetting)
	r.Post("/milestones/{n}/seen", s.handleMilestoneSeen)

	// Operational endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
