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

// Package api implements the HTTP handlers of the sync daemon
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/projetor/projetor-sync/internal/audio"
	"github.com/projetor/projetor-sync/internal/livesync"
	"github.com/projetor/projetor-sync/internal/logging"
	"github.com/projetor/projetor-sync/internal/slides"
)

// Engine is the sync engine surface driven over HTTP
type Engine interface {
	Ready() error
	Start(slides []string, startIndex int) error
	Stop()
	UpdateSlides(slides []string, index int)
	State() livesync.State
	CurrentSlide() int
	Slides() []string
	SessionID() string
}

// StartRequest starts a session. Lyrics is split into slides when Slides is empty.
type StartRequest struct {
	Slides     []string `json:"slides,omitempty"`
	Lyrics     string   `json:"lyrics,omitempty"`
	StartIndex int      `json:"start_index"`
}

// SlidesRequest re-points a session. Omitted slides keep the current list.
type SlidesRequest struct {
	Slides []string `json:"slides,omitempty"`
	Lyrics string   `json:"lyrics,omitempty"`
	Index  int      `json:"index"`
}

// StatusResponse describes the engine
type StatusResponse struct {
	State        string `json:"state"`
	Listening    bool   `json:"listening"`
	Ready        bool   `json:"ready"`
	Error        string `json:"error,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	CurrentSlide int    `json:"current_slide"`
	SlideCount   int    `json:"slide_count"`
}

// SyncHandler handles the engine control endpoints
type SyncHandler struct {
	engine Engine
}

// NewSyncHandler creates a new engine control handler
func NewSyncHandler(engine Engine) *SyncHandler {
	return &SyncHandler{engine: engine}
}

// HandleStart handles POST /api/sync/start
func (h *SyncHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	list := req.Slides
	if len(list) == 0 && req.Lyrics != "" {
		list = slides.FromLyrics(req.Lyrics)
	}
	if len(list) == 0 {
		http.Error(w, "slides or lyrics required", http.StatusBadRequest)
		return
	}
	if req.StartIndex < 0 || req.StartIndex >= len(list) {
		http.Error(w, "start_index out of range", http.StatusBadRequest)
		return
	}

	if err := h.engine.Start(list, req.StartIndex); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, livesync.ErrNotReady):
			status = http.StatusConflict
		case errors.Is(err, audio.ErrDevice):
			status = http.StatusServiceUnavailable
		}
		logging.LogError(err, "Failed to start sync session", zap.Int("status", status))
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, h.status())
}

// HandleStop handles POST /api/sync/stop
func (h *SyncHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.engine.Stop()
	writeJSON(w, http.StatusOK, h.status())
}

// HandleSlides handles POST /api/sync/slides
func (h *SyncHandler) HandleSlides(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SlidesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	list := req.Slides
	if list == nil && req.Lyrics != "" {
		list = slides.FromLyrics(req.Lyrics)
	}

	// A nil list keeps the engine's slides, so the index is checked against those
	effective := list
	if effective == nil {
		effective = h.engine.Slides()
	}
	if req.Index < 0 || req.Index >= max(len(effective), 1) {
		http.Error(w, "index out of range", http.StatusBadRequest)
		return
	}

	h.engine.UpdateSlides(list, req.Index)
	writeJSON(w, http.StatusOK, h.status())
}

// HandleStatus handles GET /api/sync/status
func (h *SyncHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, h.status())
}

func (h *SyncHandler) status() StatusResponse {
	state := h.engine.State()
	resp := StatusResponse{
		State:        state.String(),
		Listening:    state != livesync.StateIdle,
		Ready:        true,
		SessionID:    h.engine.SessionID(),
		CurrentSlide: h.engine.CurrentSlide(),
		SlideCount:   len(h.engine.Slides()),
	}
	if err := h.engine.Ready(); err != nil {
		resp.Ready = false
		resp.Error = err.Error()
	}
	return resp
}
