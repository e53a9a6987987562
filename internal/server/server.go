/*
 * This file is part of Projetor Sync (https://github.com/projetor/projetor-sync).
 * Copyright (C) 2025 Projetor Contributors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package server hosts the HTTP control API of the sync daemon
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/projetor/projetor-sync/internal/api"
	"github.com/projetor/projetor-sync/internal/config"
	"github.com/projetor/projetor-sync/internal/logging"
	"github.com/projetor/projetor-sync/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// ConnectionChecker reports the state of an optional dependency
type ConnectionChecker interface {
	IsConnected() bool
}

// Options wires the server to the rest of the daemon. Only Engine is required.
type Options struct {
	Engine   api.Engine
	Events   api.EventStore
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	NATS     ConnectionChecker
}

// Server represents the HTTP control server
type Server struct {
	cfg       *config.Config
	opts      Options
	mux       *http.ServeMux
	server    *http.Server
	startedAt time.Time
}

// New creates a new server and registers its routes
func New(cfg *config.Config, opts Options) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	s := &Server{
		cfg:       cfg,
		opts:      opts,
		mux:       mux,
		startedAt: time.Now(),
	}

	s.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      s.mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.routes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves HTTP until Stop
func (s *Server) Start() error {
	logging.LogServerEvent("http", "listening", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logging.LogServerEvent("http", "stopped")
	return nil
}

func (s *Server) routes() {
	control := api.NewSyncHandler(s.opts.Engine)

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	s.handle("/api/sync/start", control.HandleStart)
	s.handle("/api/sync/stop", control.HandleStop)
	s.handle("/api/sync/slides", control.HandleSlides)
	s.handle("/api/sync/status", control.HandleStatus)

	if s.opts.Events != nil {
		history := api.NewSyncEventsHandler(s.opts.Events)
		s.handle("/api/sync/events", history.HandleSyncEvents)
		s.handle("/api/sync/events/", history.HandleSyncEventByID)
	}
}

// handle registers an API route, recording request metrics when enabled
func (s *Server) handle(pattern string, handler http.HandlerFunc) {
	if s.opts.Metrics == nil {
		s.mux.HandleFunc(pattern, handler)
		return
	}

	m := s.opts.Metrics
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r)
		m.RecordHTTPRequest(r.Method, pattern, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HealthResponse is served on /health
type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Uptime        string    `json:"uptime"`
	EngineReady   bool      `json:"engine_ready"`
	EngineState   string    `json:"engine_state"`
	NATSConnected *bool     `json:"nats_connected,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
		EngineReady: true,
		EngineState: s.opts.Engine.State().String(),
	}

	if err := s.opts.Engine.Ready(); err != nil {
		health.Status = "degraded"
		health.EngineReady = false
		health.Reason = err.Error()
	}

	if s.opts.NATS != nil {
		connected := s.opts.NATS.IsConnected()
		health.NATSConnected = &connected
		if !connected && health.Status == "ok" {
			health.Status = "degraded"
			health.Reason = "NATS disconnected"
		}
	}

	writeJSON(w, health)
}
