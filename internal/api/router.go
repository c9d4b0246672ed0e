package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/winrate/internal/api/handlers"
	"github.com/wonny/winrate/pkg/logger"
)

// RequestIDHeader carries the per-request id
const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

// RequestID returns the id assigned by the request-id middleware
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Handlers groups the endpoint handlers mounted by NewRouter
type Handlers struct {
	WinRate *handlers.WinRateHandler
	Import  *handlers.ImportHandler
	Events  http.HandlerFunc // websocket; nil 이면 /ws/events 미등록
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if h.Events != nil {
		r.HandleFunc("/ws/events", h.Events).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Prediction endpoints
	api.HandleFunc("/predictions", h.WinRate.CreatePrediction).Methods("POST")
	api.HandleFunc("/predictions/preview", h.WinRate.PreviewPrediction).Methods("POST")
	api.HandleFunc("/predictions/batch", h.WinRate.BatchPredict).Methods("POST")
	api.HandleFunc("/predictions/{id:[0-9]+}", h.WinRate.GetPrediction).Methods("GET")
	api.HandleFunc("/qualitative", h.WinRate.AnalyzeQualitative).Methods("POST")

	// Opportunity endpoints
	api.HandleFunc("/opportunities/{id:[0-9]+}/predictions", h.WinRate.ListPredictions).Methods("GET")
	api.HandleFunc("/opportunities/{id:[0-9]+}/outcome", h.WinRate.RecordOutcome).Methods("POST")

	// Accuracy endpoints
	api.HandleFunc("/accuracy", h.WinRate.GetAccuracy).Methods("GET")
	api.HandleFunc("/accuracy/distribution", h.WinRate.GetDistribution).Methods("GET")
	api.HandleFunc("/accuracy/validation", h.WinRate.GetValidation).Methods("GET")

	// Import endpoints
	if h.Import != nil {
		api.HandleFunc("/imports/history", h.Import.ImportHistory).Methods("POST")
	}

	// Apply middleware (outermost first)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "winrate-api",
	})
}

// requestIDMiddleware keeps an incoming X-Request-ID or assigns a new uuid
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			entry := log.WithFields(map[string]interface{}{
				"request_id": RequestID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"duration":   time.Since(start),
			})
			if rec.status >= http.StatusInternalServerError {
				entry.Warn("HTTP request failed")
				return
			}
			entry.Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error":      err,
						"path":       r.URL.Path,
						"request_id": RequestID(r.Context()),
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
