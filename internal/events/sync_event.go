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

package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a sync event
type Kind string

const (
	KindJump         Kind = "jump"
	KindStatus       Kind = "status"
	KindSessionStart Kind = "session_start"
	KindSessionStop  Kind = "session_stop"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	switch k {
	case KindJump, KindStatus, KindSessionStart, KindSessionStop:
		return true
	}
	return false
}

// SyncEvent is one entry of the live sync history
type SyncEvent struct {
	// Core identification
	UUID      string    `json:"uuid" db:"uuid"`
	SessionID string    `json:"session_id" db:"session_id"`
	Kind      Kind      `json:"kind" db:"kind"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	// Jump details
	FromSlide int     `json:"from_slide" db:"from_slide"`
	ToSlide   int     `json:"to_slide" db:"to_slide"`
	Phrase    string  `json:"phrase,omitempty" db:"phrase"`
	Score     float64 `json:"score" db:"score"`

	// Status details
	State   string            `json:"state,omitempty" db:"state"`
	Message string            `json:"message,omitempty" db:"message"`
	Details map[string]string `json:"details,omitempty" db:"details"`
}

// NewSyncEvent creates an event with a fresh UUID and the current time
func NewSyncEvent(sessionID string, kind Kind) *SyncEvent {
	return &SyncEvent{
		UUID:      uuid.NewString(),
		SessionID: sessionID,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		FromSlide: -1,
		ToSlide:   -1,
		Details:   make(map[string]string),
	}
}

// SetJump records the slide change and the phrase that caused it
func (se *SyncEvent) SetJump(from, to int, phrase string, score float64) {
	se.FromSlide = from
	se.ToSlide = to
	se.Phrase = phrase
	se.Score = score
}

// SetStatus records a status message and the engine state that produced it
func (se *SyncEvent) SetStatus(state, message string) {
	se.State = state
	se.Message = message
}

// DetailsJSON returns details as JSON for database storage
func (se *SyncEvent) DetailsJSON() (string, error) {
	if len(se.Details) == 0 {
		return "{}", nil
	}

	data, err := json.Marshal(se.Details)
	if err != nil {
		return "", fmt.Errorf("failed to marshal details: %w", err)
	}
	return string(data), nil
}

// SetDetailsFromJSON parses stored details
func (se *SyncEvent) SetDetailsFromJSON(jsonStr string) error {
	if jsonStr == "" || jsonStr == "{}" {
		se.Details = make(map[string]string)
		return nil
	}

	var details map[string]string
	if err := json.Unmarshal([]byte(jsonStr), &details); err != nil {
		return fmt.Errorf("failed to unmarshal details JSON: %w", err)
	}
	se.Details = details
	return nil
}

// IsValid performs basic validation on the event
func (se *SyncEvent) IsValid() error {
	if se.UUID == "" {
		return fmt.Errorf("UUID is required")
	}
	if !se.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", se.Kind)
	}
	if se.Kind != KindStatus && se.SessionID == "" {
		return fmt.Errorf("sessionID is required for %s events", se.Kind)
	}
	if se.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if se.Kind == KindJump && (se.ToSlide < 0 || se.FromSlide == se.ToSlide) {
		return fmt.Errorf("jump must move to a different, non-negative slide")
	}
	if se.Score < 0 {
		return fmt.Errorf("score must not be negative")
	}
	return nil
}

// String returns a human-readable representation of the event
func (se *SyncEvent) String() string {
	switch se.Kind {
	case KindJump:
		return fmt.Sprintf("SyncEvent{UUID: %s, Session: %s, Jump: %d->%d, Phrase: %q, Score: %.2f}",
			se.UUID, se.SessionID, se.FromSlide, se.ToSlide, se.Phrase, se.Score)
	default:
		return fmt.Sprintf("SyncEvent{UUID: %s, Session: %s, Kind: %s, Message: %q}",
			se.UUID, se.SessionID, se.Kind, se.Message)
	}
}
