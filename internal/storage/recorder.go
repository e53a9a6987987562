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

package storage

import (
	"strings"

	"go.uber.org/zap"

	"github.com/projetor/projetor-sync/internal/events"
	"github.com/projetor/projetor-sync/internal/livesync"
	"github.com/projetor/projetor-sync/internal/logging"
)

// EventRecorder persists engine jumps, statuses and session boundaries.
// Interim transcript previews are not stored.
type EventRecorder struct {
	livesync.NopRecorder
	store *SyncEventsStore
}

// NewEventRecorder creates a recorder writing to store
func NewEventRecorder(store *SyncEventsStore) *EventRecorder {
	return &EventRecorder{store: store}
}

// RecordSession stores a session boundary
func (r *EventRecorder) RecordSession(sessionID string, started bool) {
	kind := events.KindSessionStop
	if started {
		kind = events.KindSessionStart
	}
	r.insert(events.NewSyncEvent(sessionID, kind))
}

// RecordStatus stores a status change
func (r *EventRecorder) RecordStatus(sessionID string, state livesync.State, message string) {
	if strings.HasPrefix(message, livesync.PreviewPrefix) {
		return
	}
	event := events.NewSyncEvent(sessionID, events.KindStatus)
	event.SetStatus(state.String(), message)
	r.insert(event)
}

// RecordJump stores an automatic slide change
func (r *EventRecorder) RecordJump(jump livesync.JumpRecord) {
	event := events.NewSyncEvent(jump.SessionID, events.KindJump)
	event.Timestamp = jump.At.UTC()
	event.SetJump(jump.From, jump.To, jump.Phrase, jump.Score)
	r.insert(event)
}

func (r *EventRecorder) insert(event *events.SyncEvent) {
	if err := r.store.Insert(event); err != nil {
		logging.LogError(err, "Failed to persist sync event",
			zap.String("kind", string(event.Kind)),
			zap.String("session_id", event.SessionID),
		)
	}
}
