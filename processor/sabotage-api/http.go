package sabotageapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/c360studio/coderonin/challenge"
	"github.com/c360studio/coderonin/llm"
	"github.com/c360studio/coderonin/sabotage"
	"github.com/google/uuid"
)

// maxRequestBodySize limits POST body sizes to prevent DoS.
const maxRequestBodySize = 1 << 20 // 1 MB

// Error messages returned by POST /api/sabotage.
const (
	msgInvalidRequest = "Missing or invalid code / difficulty"
	msgUnavailable    = "Sabotage unavailable (check GROQ_API_KEY)"
	msgFailed         = "Sabotage failed"
)

// Runner performs one sabotage orchestration. *sabotage.Saboteur satisfies it.
type Runner interface {
	Run(ctx context.Context, req sabotage.Request) (*sabotage.Result, error)
	Available() bool
	Registry() *sabotage.Registry
}

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status            string `json:"status"`
	SabotageAvailable bool   `json:"sabotage_available"`
	Challenges        int    `json:"challenges"`
}

// sabotageRequest mirrors sabotage.Request with pointers so missing fields can be told
// apart from zero values.
type sabotageRequest struct {
	Code        *string  `json:"code"`
	Difficulty  *float64 `json:"difficulty"`
	Skill       string   `json:"skill,omitempty"`
	EndGoal     string   `json:"endGoal,omitempty"`
	DocQuery    string   `json:"docQuery,omitempty"`
	ChallengeID string   `json:"challengeId,omitempty"`
}

// Server exposes the sabotage API.
type Server struct {
	runner      Runner
	catalog     *challenge.Catalog
	corsOrigin  string
	metricsPath string
	metrics     http.Handler
	logger      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithCatalog enables GET /api/challenges.
func WithCatalog(c *challenge.Catalog) Option {
	return func(s *Server) { s.catalog = c }
}

// WithCORSOrigin sets Access-Control-Allow-Origin. Empty disables CORS headers.
func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

// WithMetrics mounts a metrics handler at path.
func WithMetrics(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metrics = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates the API server around a sabotage runner.
func NewServer(runner Runner, opts ...Option) *Server {
	s := &Server{
		runner:     runner,
		corsOrigin: "*",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterHTTPHandlers registers the API handlers on mux under prefix (e.g. "api").
func (s *Server) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}

	mux.HandleFunc(prefix+"sabotage", s.handleSabotage)
	mux.HandleFunc(prefix+"patterns", s.handlePatterns)
	mux.HandleFunc(prefix+"challenges", s.handleChallenges)
}

// Handler returns the complete HTTP handler: API routes, /health, optional metrics, wrapped
// in request-id, CORS, logging and panic recovery middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterHTTPHandlers("api", mux)
	mux.HandleFunc("/health", s.handleHealth)
	if s.metrics != nil && s.metricsPath != "" {
		mux.Handle(s.metricsPath, s.metrics)
	}
	return s.withRequestID(s.withCORS(s.withRecovery(s.withAccessLog(mux))))
}

// ----------------------------------------------------------------------------
// POST /api/sabotage
// ----------------------------------------------------------------------------

func (s *Server) handleSabotage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var body sabotageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == nil || body.Difficulty == nil {
		writeJSONError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Sabotage panicked", "request_id", llm.RequestIDFromContext(r.Context()), "panic", rec)
			writeJSONError(w, http.StatusInternalServerError, msgFailed)
		}
	}()

	result, err := s.runner.Run(r.Context(), sabotage.Request{
		Code:        *body.Code,
		Difficulty:  *body.Difficulty,
		Skill:       body.Skill,
		EndGoal:     body.EndGoal,
		DocQuery:    body.DocQuery,
		ChallengeID: body.ChallengeID,
	})
	switch {
	case errors.Is(err, sabotage.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, msgInvalidRequest)
	case err != nil:
		s.logger.Error("Sabotage failed", "request_id", llm.RequestIDFromContext(r.Context()), "error", err)
		writeJSONError(w, http.StatusInternalServerError, msgFailed)
	case result == nil:
		writeJSONError(w, http.StatusServiceUnavailable, msgUnavailable)
	default:
		writeJSON(w, http.StatusOK, result)
	}
}

// ----------------------------------------------------------------------------
// GET /api/patterns
// ----------------------------------------------------------------------------

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.runner.Registry().All())
}

// ----------------------------------------------------------------------------
// GET /api/challenges
// ----------------------------------------------------------------------------

func (s *Server) handleChallenges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeJSONError(w, http.StatusNotFound, "No challenge catalog configured")
		return
	}

	skill := r.URL.Query().Get("skill")
	if skill == "" {
		writeJSONError(w, http.StatusBadRequest, "skill is required")
		return
	}

	category := sabotage.CategorySyntax
	if d := r.URL.Query().Get("difficulty"); d != "" {
		parsed, err := sabotage.ParseCategory(d)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		category = parsed
	}

	tmpl, ok := s.catalog.Pick(skill, category)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "No challenge for "+skill+"/"+string(category))
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// ----------------------------------------------------------------------------
// GET /health
// ----------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:            "ok",
		SabotageAvailable: s.runner.Available(),
	}
	if s.catalog != nil {
		resp.Challenges = s.catalog.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ----------------------------------------------------------------------------
// Middleware
// ----------------------------------------------------------------------------

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(llm.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsOrigin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", s.corsOrigin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			h.Set("Access-Control-Expose-Headers", "X-Request-ID")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Handler panicked",
					"request_id", llm.RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"panic", rec)
				writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("HTTP request",
			"request_id", llm.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
