package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const redactedValue = "[redacted]"

type Server struct {
	config    *Config
	collector *Collector
	stream    *Broadcaster
	log       *zap.Logger
}

func newServer(config *Config, collector *Collector, stream *Broadcaster, log *zap.Logger) *Server {
	return &Server{config: config, collector: collector, stream: stream, log: log}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(s.cors)

	r.Get("/api/metrics", s.handleMetrics)
	r.Get("/api/env", s.handleEnv)
	r.Get("/ws", s.stream.HandleWS)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// handleMetrics re-samples on every call; nothing is cached between
// requests.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collector.Snapshot(r.Context())
	if err != nil {
		s.log.Error("poll cycle failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "metrics unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleEnv returns the process environment as name/value pairs. Values
// whose names match a configured redact pattern are masked before they
// leave the process.
func (s *Server) handleEnv(w http.ResponseWriter, r *http.Request) {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if s.redacted(name) {
			value = redactedValue
		}
		vars[name] = value
	}
	writeJSON(w, http.StatusOK, vars)
}

func (s *Server) redacted(name string) bool {
	upper := strings.ToUpper(name)
	for _, pat := range s.config.EnvRedact {
		if strings.Contains(upper, strings.ToUpper(pat)) {
			return true
		}
	}
	return false
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.config.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
