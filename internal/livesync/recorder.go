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

package livesync

import (
	"time"

	"github.com/projetor/projetor-sync/internal/matcher"
	"github.com/projetor/projetor-sync/internal/stt"
)

// JumpRecord describes one automatic slide change
type JumpRecord struct {
	SessionID string
	From      int
	To        int
	Phrase    string
	Score     float64
	At        time.Time
}

// Recorder observes an engine for persistence, messaging and metrics.
// Methods are called from the engine worker and must not block for long.
type Recorder interface {
	RecordSession(sessionID string, started bool)
	RecordStatus(sessionID string, state State, message string)
	RecordChunk(sessionID string)
	RecordTranscript(sessionID string, ev stt.Event)
	RecordAttempt(sessionID string, decision matcher.Decision)
	RecordJump(jump JumpRecord)
}

// NopRecorder ignores everything. Embed it to implement part of Recorder.
type NopRecorder struct{}

func (NopRecorder) RecordSession(string, bool) {}
func (NopRecorder) RecordStatus(string, State, string) {}
func (NopRecorder) RecordChunk(string) {}
func (NopRecorder) RecordTranscript(string, stt.Event) {}
func (NopRecorder) RecordAttempt(string, matcher.Decision) {}
func (NopRecorder) RecordJump(JumpRecord) {}

// MultiRecorder fans every observation out to several recorders in order
type MultiRecorder []Recorder

func (m MultiRecorder) RecordSession(sessionID string, started bool) {
	for _, r := range m {
		r.RecordSession(sessionID, started)
	}
}

func (m MultiRecorder) RecordStatus(sessionID string, state State, message string) {
	for _, r := range m {
		r.RecordStatus(sessionID, state, message)
	}
}

func (m MultiRecorder) RecordChunk(sessionID string) {
	for _, r := range m {
		r.RecordChunk(sessionID)
	}
}

func (m MultiRecorder) RecordTranscript(sessionID string, ev stt.Event) {
	for _, r := range m {
		r.RecordTranscript(sessionID, ev)
	}
}

func (m MultiRecorder) RecordAttempt(sessionID string, decision matcher.Decision) {
	for _, r := range m {
		r.RecordAttempt(sessionID, decision)
	}
}

func (m MultiRecorder) RecordJump(jump JumpRecord) {
	for _, r := range m {
		r.RecordJump(jump)
	}
}
