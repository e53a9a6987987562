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

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/projetor/projetor-sync/internal/events"
	"github.com/projetor/projetor-sync/internal/logging"
	"github.com/projetor/projetor-sync/internal/security"
	"github.com/projetor/projetor-sync/internal/storage"
)

// EventStore is the read side of the sync event history
type EventStore interface {
	GetByUUID(uuid string) (*events.SyncEvent, error)
	List(options storage.ListOptions) ([]*events.SyncEvent, error)
	Count(options storage.ListOptions) (int64, error)
}

// SyncEventsHandler handles HTTP requests for recorded sync events
type SyncEventsHandler struct {
	store EventStore
}

// NewSyncEventsHandler creates a new sync events handler
func NewSyncEventsHandler(store EventStore) *SyncEventsHandler {
	return &SyncEventsHandler{store: store}
}

// ListSyncEventsResponse represents the response for listing sync events
type ListSyncEventsResponse struct {
	Events     []*events.SyncEvent `json:"events"`
	Total      int64               `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	TotalPages int                 `json:"total_pages"`
}

// HandleSyncEvents handles GET /api/sync/events
func (h *SyncEventsHandler) HandleSyncEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.listSyncEvents(w, r)
}

// HandleSyncEventByID handles GET /api/sync/events/{id}
func (h *SyncEventsHandler) HandleSyncEventByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/sync/events/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		http.Error(w, "Event ID is required", http.StatusBadRequest)
		return
	}

	if err := security.ValidateEventID(pathParts[0]); err != nil {
		http.Error(w, "Event ID must be a UUID", http.StatusBadRequest)
		return
	}

	h.getSyncEventByID(w, pathParts[0])
}

func (h *SyncEventsHandler) listSyncEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := parseIntParam(query.Get("page"), 1)
	pageSize := parseIntParam(query.Get("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}

	options := storage.ListOptions{
		SessionID: query.Get("session_id"),
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
		Ascending: strings.EqualFold(query.Get("order"), "asc"),
	}

	if kind := query.Get("kind"); kind != "" {
		options.Kind = events.Kind(kind)
		if !options.Kind.Valid() {
			http.Error(w, "Unknown event kind", http.StatusBadRequest)
			return
		}
	}

	if since := parseTimeParam(query.Get("since")); since != nil {
		options.Since = since
	}
	if until := parseTimeParam(query.Get("until")); until != nil {
		options.Until = until
	}

	total, err := h.store.Count(options)
	if err != nil {
		logging.LogError(err, "Failed to count sync events",
			zap.String("session_id", security.SanitizeLogInput(options.SessionID)))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	list, err := h.store.List(options)
	if err != nil {
		logging.LogError(err, "Failed to list sync events")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*events.SyncEvent{}
	}

	response := ListSyncEventsResponse{
		Events:     list,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *SyncEventsHandler) getSyncEventByID(w http.ResponseWriter, uuid string) {
	event, err := h.store.GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Sync event not found", http.StatusNotFound)
			return
		}
		logging.LogError(err, "Failed to get sync event", zap.String("uuid", uuid))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// parseIntParam parses integer parameter with default value
func parseIntParam(param string, defaultValue int) int {
	if param == "" {
		return defaultValue
	}

	if value, err := strconv.Atoi(param); err == nil {
		return value
	}

	return defaultValue
}

func parseTimeParam(param string) *time.Time {
	if param == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, param)
	if err != nil {
		return nil
	}
	return &t
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.LogError(err, "Failed to write JSON response")
	}
}
