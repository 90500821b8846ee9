// Package api exposes the query pipeline over HTTP: batched and streaming
// query endpoints, session history reads, and knowledge-base ingestion.
package api

import (
	"errors"
	"log/slog"
	"net/http"
)

// ServerConfig contains the dependencies for the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Engine       answerer      // Required
	SessionStore sessionReader // Optional: nil disables session endpoints
	Knowledge    ingester      // Optional: nil disables document ingestion
	Pool         pinger        // Optional: nil makes /ready trivially ready
	RateBurst    int           // Rate limiter burst per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the server with all routes and middleware configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	qh := &queryHandler{engine: cfg.Engine, logger: logger}
	mux.HandleFunc("POST /api/v1/query", qh.answer)
	mux.HandleFunc("POST /api/v1/query/stream", qh.stream)

	if cfg.SessionStore != nil {
		sh := &sessionHandler{store: cfg.SessionStore, logger: logger}
		mux.HandleFunc("GET /api/v1/sessions", sh.list)
		mux.HandleFunc("GET /api/v1/sessions/{id}", sh.get)
		mux.HandleFunc("GET /api/v1/sessions/{id}/messages", sh.messages)
	}

	if cfg.Knowledge != nil {
		dh := &documentHandler{knowledge: cfg.Knowledge, logger: logger}
		mux.HandleFunc("POST /api/v1/documents", dh.add)
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first: Recovery → RequestID → Logging →
	// RateLimit → Routes. RequestID precedes Logging so request_id is
	// available in log attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
