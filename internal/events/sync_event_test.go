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
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSyncEvent(t *testing.T) {
	ev := NewSyncEvent("session-1", KindJump)

	_, err := uuid.Parse(ev.UUID)
	assert.NoError(t, err)
	assert.Equal(t, "session-1", ev.SessionID)
	assert.Equal(t, KindJump, ev.Kind)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, -1, ev.ToSlide)

	other := NewSyncEvent("session-1", KindJump)
	assert.NotEqual(t, ev.UUID, other.UUID)
}

func TestSyncEvent_IsValid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SyncEvent)
		kind    Kind
		wantErr string
	}{
		{"valid jump", func(e *SyncEvent) { e.SetJump(0, 1, "lord god", 0.9) }, KindJump, ""},
		{"valid status without session", func(e *SyncEvent) { e.SessionID = "" }, KindStatus, ""},
		{"valid session start", func(e *SyncEvent) {}, KindSessionStart, ""},
		{"missing uuid", func(e *SyncEvent) { e.UUID = "" }, KindStatus, "UUID"},
		{"unknown kind", func(e *SyncEvent) { e.Kind = "teleport" }, KindStatus, "unknown event kind"},
		{"session required", func(e *SyncEvent) { e.SessionID = "" }, KindSessionStop, "sessionID"},
		{"jump without target", func(e *SyncEvent) {}, KindJump, "jump"},
		{"jump to same slide", func(e *SyncEvent) { e.SetJump(2, 2, "x y", 0.5) }, KindJump, "jump"},
		{"negative score", func(e *SyncEvent) { e.SetJump(0, 1, "x y", -0.1) }, KindJump, "score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewSyncEvent("session-1", tt.kind)
			tt.mutate(ev)
			err := ev.IsValid()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSyncEvent_DetailsJSON(t *testing.T) {
	ev := NewSyncEvent("s", KindStatus)

	empty, err := ev.DetailsJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", empty)

	ev.Details["backend"] = "websocket"
	data, err := ev.DetailsJSON()
	require.NoError(t, err)

	restored := NewSyncEvent("s", KindStatus)
	require.NoError(t, restored.SetDetailsFromJSON(data))
	assert.Equal(t, map[string]string{"backend": "websocket"}, restored.Details)

	assert.Error(t, restored.SetDetailsFromJSON("{not json"))
}

func TestSyncEvent_String(t *testing.T) {
	jump := NewSyncEvent("s", KindJump)
	jump.SetJump(0, 1, "lord god almighty early", 1.0)
	assert.True(t, strings.Contains(jump.String(), "Jump: 0->1"))

	status := NewSyncEvent("s", KindStatus)
	status.SetStatus("listening", "AI: Listening...")
	assert.Contains(t, status.String(), `Message: "AI: Listening..."`)
}
