// Package api exposes the engine over HTTP and WebSocket: candle ingestion,
// record and signal queries, and alert rule management.
package api

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/wayneWudh/aiagent/internal/engine"
	"github.com/wayneWudh/aiagent/internal/logger"
	"github.com/wayneWudh/aiagent/internal/model"
	"github.com/wayneWudh/aiagent/internal/requestid"
)

// Server serves the v1 API on a single mux.
type Server struct {
	svc *engine.Service
	srv *http.Server
}

// NewServer builds the API server around an engine service.
func NewServer(addr string, svc *engine.Service) *Server {
	s := &Server{svc: svc}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/candles", s.handleCandles)
	mux.HandleFunc("/api/v1/candles/ws", s.handleCandleWS)
	mux.HandleFunc("/api/v1/query", s.handleQuery)
	mux.HandleFunc("/api/v1/signals/query", s.handleSignalsQuery)
	mux.HandleFunc("/api/v1/alerts/rules", s.handleRules)
	mux.HandleFunc("/api/v1/alerts/rules/", s.handleRuleByID)
	mux.HandleFunc("/api/v1/alerts/history", s.handleHistory)
	mux.HandleFunc("/api/v1/alerts/stats", s.handleStats)

	s.srv = &http.Server{Addr: addr, Handler: s.withRequestID(mux)}
	return s
}

// withRequestID tags every request with an ID (honoring a caller-supplied
// X-Request-ID), threads it through the context for structured logs, and
// echoes it on the response. The envelope picks it up in respond.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := requestid.OrNew(r.Header.Get("X-Request-ID"))
		w.Header().Set("X-Request-ID", rid)
		ctx := logger.WithRequestID(r.Context(), rid)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(ctx))
		slog.Debug("api request",
			append([]any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Duration("took", time.Since(start)),
			}, logger.LogWithRequestID(ctx)...)...)
	})
}

// Handler exposes the full handler chain for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[api] server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

func respond(w http.ResponseWriter, status int, resp Response) {
	if resp.RequestID == "" {
		if rid := w.Header().Get("X-Request-ID"); rid != "" {
			resp.RequestID = rid
		} else {
			resp.RequestID = requestid.New()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func respondOK(w http.ResponseWriter, data interface{}, fields map[string]string) {
	respond(w, http.StatusOK, Response{
		Success:           true,
		Data:              data,
		FieldDescriptions: fields,
	})
}

// respondError maps engine errors to HTTP statuses: validation errors are
// 400 with their stable code, missing rules are 404, the rest is 500.
func respondError(w http.ResponseWriter, err error, fields map[string]string) {
	status := http.StatusInternalServerError
	code := "INTERNAL"

	if ve, ok := model.AsValidation(err); ok {
		status = http.StatusBadRequest
		code = ve.Code
	} else if err == model.ErrRuleNotFound {
		status = http.StatusNotFound
		code = "RULE_NOT_FOUND"
	}

	respond(w, status, Response{
		Success:           false,
		Message:           err.Error(),
		ErrorCode:         code,
		FieldDescriptions: fields,
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	respond(w, http.StatusMethodNotAllowed, Response{
		Success:   false,
		Message:   "method not allowed",
		ErrorCode: "METHOD_NOT_ALLOWED",
	})
}
