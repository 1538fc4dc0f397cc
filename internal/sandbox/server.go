// Package sandbox is a local journey service that speaks the same JSON/HTTP
// protocol as the orchestration service, driven by TOML journey scripts.
package sandbox

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jask/idojourney/internal/ido"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// Server exposes an Engine over HTTP.
type Server struct {
	engine *Engine
	log    *zap.Logger
}

func NewServer(engine *Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{engine: engine, log: log}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/v1/journeys/{journeyID}/start", s.start).Methods(http.MethodPost)
	r.HandleFunc("/v1/interactions/{interactionID}/submit", s.submit).Methods(http.MethodPost)
	r.Use(s.logRequests)
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}
	reply, err := s.engine.Start(r.Context(), mux.Vars(r)["journeyID"], req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		s.fail(w, &Error{Kind: ido.ErrInvalidStateToken, Status: http.StatusUnauthorized, Message: "missing bearer token"})
		return
	}
	var req SubmitRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, err)
		return
	}
	reply, err := s.engine.Submit(r.Context(), mux.Vars(r)["interactionID"], token, req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return invalidInput("request body: %v", err)
	}
	return nil
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	var pe *Error
	if !errors.As(err, &pe) {
		s.log.Error("sandbox internal error", zap.Error(err))
		pe = &Error{Kind: ido.ErrServer, Status: http.StatusInternalServerError, Message: "internal error"}
	}
	writeJSON(w, pe.Status, errorBody{Code: string(pe.Kind), Message: pe.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(started)),
		)
	})
}
