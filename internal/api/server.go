// Package api implements the HTTP surface of the analysis service: job
// submission, status polling, result retrieval and artifact downloads.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pocket-drs/pocketdrs/internal/jobs"
	"github.com/pocket-drs/pocketdrs/internal/monitoring"
	"github.com/pocket-drs/pocketdrs/internal/version"
)

// ANSI color codes for request logging.
const (
	colorReset     = "\033[0m"
	colorCyan      = "\033[36m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// DefaultMaxUploadBytes caps the multipart upload size. Clips are short
// phone recordings; anything bigger is a client bug.
const DefaultMaxUploadBytes = 256 << 20

// Server routes HTTP requests to the job store and data directory.
type Server struct {
	store  *jobs.Store
	layout jobs.Layout

	// MaxUploadBytes defaults to DefaultMaxUploadBytes when zero.
	MaxUploadBytes int64
}

// NewServer creates a Server backed by the given store and data layout.
func NewServer(store *jobs.Store, layout jobs.Layout) *Server {
	return &Server{store: store, layout: layout}
}

// ServeMux returns the route table for the service.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/jobs", s.handleSubmitJob)
	mux.HandleFunc("/v1/jobs/", s.handleJobSubtree)
	return mux
}

// loggingResponseWriter captures the status code for request logging.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if f, ok := lrw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func statusCodeColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return colorBoldGreen
	case code >= 400 && code < 500:
		return colorYellow
	case code >= 500:
		return colorBoldRed
	default:
		return colorReset
	}
}

// LoggingMiddleware logs every request with its status, method, URI and
// duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf("%s[%d]%s %s %s%s%s %v",
			statusCodeColor(lrw.statusCode), lrw.statusCode, colorReset,
			r.Method, colorCyan, r.RequestURI, colorReset, time.Since(start))
	})
}

// CORSMiddleware allows the mobile client's embedded webviews to call the
// API from any origin.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("Error encoding response: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	counts, err := s.store.CountByStatus()
	if err != nil {
		monitoring.Logf("Error counting jobs: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
		"jobs":    counts,
	})
}
