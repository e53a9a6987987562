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
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetor/projetor-sync/internal/audio"
	"github.com/projetor/projetor-sync/internal/events"
	"github.com/projetor/projetor-sync/internal/livesync"
	"github.com/projetor/projetor-sync/internal/storage"
)

type fakeEngine struct {
	mu       sync.Mutex
	readyErr error
	startErr error
	state    livesync.State
	slides   []string
	current  int
	updates  int
}

func (f *fakeEngine) Ready() error { return f.readyErr }

func (f *fakeEngine) Start(slides []string, startIndex int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.slides = slides
	f.current = startIndex
	f.state = livesync.StateListening
	return nil
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = livesync.StateIdle
}

func (f *fakeEngine) UpdateSlides(slides []string, index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if slides != nil {
		f.slides = slides
	}
	f.current = index
	f.updates++
}

func (f *fakeEngine) State() livesync.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeEngine) CurrentSlide() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeEngine) Slides() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slides
}

func (f *fakeEngine) SessionID() string {
	if f.State() == livesync.StateIdle {
		return ""
	}
	return "session-1"
}

func post(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) StatusResponse {
	t.Helper()
	var resp StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHandleStart(t *testing.T) {
	engine := &fakeEngine{}
	h := NewSyncHandler(engine)

	rec := post(t, h.HandleStart, "/api/sync/start", `{"slides":["Holy holy","Lord God"],"start_index":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeStatus(t, rec)
	assert.Equal(t, "listening", resp.State)
	assert.True(t, resp.Listening)
	assert.True(t, resp.Ready)
	assert.Equal(t, "session-1", resp.SessionID)
	assert.Equal(t, 1, resp.CurrentSlide)
	assert.Equal(t, 2, resp.SlideCount)
}

func TestHandleStart_Lyrics(t *testing.T) {
	engine := &fakeEngine{}
	h := NewSyncHandler(engine)

	body := `{"lyrics":"Holy holy holy\nLord God almighty\n\nEarly in the morning","start_index":0}`
	rec := post(t, h.HandleStart, "/api/sync/start", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, engine.Slides(), 2)
}

func TestHandleStart_Errors(t *testing.T) {
	tests := []struct {
		name     string
		startErr error
		body     string
		want     int
	}{
		{"bad json", nil, `{`, http.StatusBadRequest},
		{"no slides", nil, `{"start_index":0}`, http.StatusBadRequest},
		{"index out of range", nil, `{"slides":["a"],"start_index":3}`, http.StatusBadRequest},
		{"not ready", fmt.Errorf("%w: %w", livesync.ErrNotReady, errors.New("no key")), `{"slides":["a"]}`, http.StatusConflict},
		{"device error", &audio.DeviceError{Op: "open", Err: errors.New("busy")}, `{"slides":["a"]}`, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), `{"slides":["a"]}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSyncHandler(&fakeEngine{startErr: tt.startErr})
			rec := post(t, h.HandleStart, "/api/sync/start", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHandleStop(t *testing.T) {
	engine := &fakeEngine{state: livesync.StateListening}
	h := NewSyncHandler(engine)

	rec := post(t, h.HandleStop, "/api/sync/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", decodeStatus(t, rec).State)
}

func TestHandleSlides(t *testing.T) {
	engine := &fakeEngine{slides: []string{"a", "b"}}
	h := NewSyncHandler(engine)

	rec := post(t, h.HandleSlides, "/api/sync/slides", `{"index":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b"}, engine.Slides())
	assert.Equal(t, 1, engine.CurrentSlide())

	rec = post(t, h.HandleSlides, "/api/sync/slides", `{"slides":["x","y","z"],"index":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, decodeStatus(t, rec).SlideCount)

	rec = post(t, h.HandleSlides, "/api/sync/slides", `{"index":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h.HandleSlides, "/api/sync/slides", `nope`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 2, engine.updates)
}

func TestHandleSlides_IndexOutOfRange(t *testing.T) {
	engine := &fakeEngine{slides: []string{"a", "b"}}
	h := NewSyncHandler(engine)

	// No slides in the request: checked against the engine's current list
	rec := post(t, h.HandleSlides, "/api/sync/slides", `{"index":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h.HandleSlides, "/api/sync/slides", `{"index":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Replacement slides: checked against the new list
	rec = post(t, h.HandleSlides, "/api/sync/slides", `{"slides":["x"],"index":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h.HandleSlides, "/api/sync/slides", `{"lyrics":"one\n\ntwo\n\nthree","index":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, engine.CurrentSlide())

	assert.Equal(t, 1, engine.updates)
	assert.Equal(t, 3, len(engine.Slides()))
}

func TestHandleStatus_NotReady(t *testing.T) {
	h := NewSyncHandler(&fakeEngine{readyErr: livesync.ErrNotReady})

	req := httptest.NewRequest(http.MethodGet, "/api/sync/status", nil)
	rec := httptest.NewRecorder()
	h.HandleStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeStatus(t, rec)
	assert.False(t, resp.Ready)
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, "idle", resp.State)
}

func TestMethodNotAllowed(t *testing.T) {
	h := NewSyncHandler(&fakeEngine{})
	eh := NewSyncEventsHandler(nil)

	for _, handler := range []http.HandlerFunc{h.HandleStart, h.HandleStop, h.HandleSlides} {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	}
	for _, handler := range []http.HandlerFunc{h.HandleStatus, eh.HandleSyncEvents, eh.HandleSyncEventByID} {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	}
}

func newTestStore(t *testing.T) *storage.SyncEventsStore {
	t.Helper()
	db, err := storage.NewDatabase(storage.DatabaseConfig{Path: filepath.Join(t.TempDir(), "sync.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return storage.NewSyncEventsStore(db)
}

func TestSyncEventsHandler_List(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		ev := events.NewSyncEvent("s1", events.KindJump)
		ev.SetJump(i, i+1, "lord god", 0.9)
		require.NoError(t, store.Insert(ev))
	}
	status := events.NewSyncEvent("s2", events.KindStatus)
	status.SetStatus("listening", "AI: Listening...")
	require.NoError(t, store.Insert(status))

	h := NewSyncEventsHandler(store)

	rec := httptest.NewRecorder()
	h.HandleSyncEvents(rec, httptest.NewRequest(http.MethodGet, "/api/sync/events?session_id=s1&page_size=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListSyncEventsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(3), resp.Total)
	assert.Len(t, resp.Events, 2)
	assert.Equal(t, 2, resp.TotalPages)

	rec = httptest.NewRecorder()
	h.HandleSyncEvents(rec, httptest.NewRequest(http.MethodGet, "/api/sync/events?kind=status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp = ListSyncEventsResponse{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "AI: Listening...", resp.Events[0].Message)

	rec = httptest.NewRecorder()
	h.HandleSyncEvents(rec, httptest.NewRequest(http.MethodGet, "/api/sync/events?kind=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncEventsHandler_Empty(t *testing.T) {
	h := NewSyncEventsHandler(newTestStore(t))

	rec := httptest.NewRecorder()
	h.HandleSyncEvents(rec, httptest.NewRequest(http.MethodGet, "/api/sync/events", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"events":[]`)
}

func TestSyncEventsHandler_ByID(t *testing.T) {
	store := newTestStore(t)
	ev := events.NewSyncEvent("s1", events.KindSessionStart)
	require.NoError(t, store.Insert(ev))

	h := NewSyncEventsHandler(store)

	rec := httptest.NewRecorder()
	h.HandleSyncEventByID(rec, httptest.NewRequest(http.MethodGet, "/api/sync/events/"+ev.UUID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got events.SyncEvent
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, ev.UUID, got.UUID)

	rec = httptest.NewRecorder()
	h.HandleSyncEventByID(rec, httptest.NewRequest(http.MethodGet, "/api/sync/events/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleSyncEventByID(rec, httptest.NewRequest(http.MethodGet, "/api/sync/events/missing", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleSyncEventByID(rec, httptest.NewRequest(http.MethodGet, "/api/sync/events/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
