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

// Package livesync follows a live performance and moves the presentation to
// the slide being sung or spoken.
//
// The engine runs one worker per session. The worker pulls audio chunks,
// feeds them to a streaming transcriber, buffers the words of final results
// and periodically asks the matcher whether to jump. Stop closes the audio
// source, which unblocks the worker wherever it is waiting.
package livesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/projetor/projetor-sync/internal/audio"
	"github.com/projetor/projetor-sync/internal/logging"
	"github.com/projetor/projetor-sync/internal/matcher"
	"github.com/projetor/projetor-sync/internal/stt"
)

// Status messages sent through Callbacks.OnStatus
const (
	StatusListening   = "AI: Listening..."
	StatusStopped     = "AI: Stopped."
	StatusMicError    = "AI: Mic error."
	StatusNotReady    = "AI: Not ready."
	StatusStreamEnded = "AI: Stream ended."
	StatusInitError   = "AI: initialization error."

	// PreviewPrefix starts every interim transcript preview
	PreviewPrefix = "AI: ..."
)

// Default engine tuning
const (
	DefaultWordsPerAttempt = 4
	DefaultPostJumpPause   = 4 * time.Second
	DefaultJoinTimeout     = time.Second
	DefaultPreviewLength   = 30
)

// ErrNotReady is returned by Start when the transcriber could not be built
var ErrNotReady = errors.New("sync engine not ready")

// State is the engine lifecycle state
type State int32

const (
	StateIdle State = iota
	StateListening
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Callbacks connect the engine to the presentation layer. Matching results
// are delivered from the engine worker; lifecycle and slide-update statuses
// are delivered on the goroutine that called Start, Stop or UpdateSlides. No
// engine lock is held while a callback runs, so callbacks may call
// UpdateSlides and the read accessors. They must not call Start or Stop
// synchronously.
type Callbacks struct {
	OnGotoSlide func(index int)
	OnStatus    func(message string)
}

// AudioSource is a restartable chunk producer. Close must unblock a
// consumer waiting on Chunks.
type AudioSource interface {
	Open(cfg audio.Config) error
	Chunks() <-chan audio.Chunk
	Close()
}

// Transcriber turns chunks into recognition events
type Transcriber interface {
	StreamRecognize(ctx context.Context, chunks <-chan audio.Chunk) <-chan stt.Event
}

// TranscriberFactory builds the transcriber once, at engine construction
type TranscriberFactory func() (Transcriber, error)

// Options tunes the engine
type Options struct {
	Audio           audio.Config
	WordsPerAttempt int
	PostJumpPause   time.Duration
	JoinTimeout     time.Duration
	PreviewLength   int
	Matcher         *matcher.Matcher
	Recorder        Recorder
}

// DefaultOptions returns the standard tuning for 16 kHz mono capture
func DefaultOptions() Options {
	return Options{
		Audio:           audio.Config{SampleRate: 16000, ChunkSize: 1600, Channels: 1},
		WordsPerAttempt: DefaultWordsPerAttempt,
		PostJumpPause:   DefaultPostJumpPause,
		JoinTimeout:     DefaultJoinTimeout,
		PreviewLength:   DefaultPreviewLength,
		Matcher:         matcher.New(matcher.DefaultParams()),
	}
}

func (o Options) withDefaults() Options {
	if o.WordsPerAttempt <= 0 {
		o.WordsPerAttempt = DefaultWordsPerAttempt
	}
	if o.PostJumpPause < 0 {
		o.PostJumpPause = 0
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = DefaultJoinTimeout
	}
	if o.PreviewLength <= 0 {
		o.PreviewLength = DefaultPreviewLength
	}
	if o.Matcher == nil {
		o.Matcher = matcher.New(matcher.DefaultParams())
	}
	if o.Recorder == nil {
		o.Recorder = NopRecorder{}
	}
	return o
}

// session is one Start..Stop run of the worker
type session struct {
	id     string
	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

func (s *session) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// Engine synchronizes slides with live speech
type Engine struct {
	opts        Options
	source      AudioSource
	transcriber Transcriber
	initErr     error
	callbacks   Callbacks

	// lifecycle serializes Start, Stop and Close
	lifecycle sync.Mutex

	mu         sync.Mutex
	state      State
	slides     []string
	current    int
	generation uint64 // bumped by UpdateSlides
	sess       *session
}

// New creates an idle engine. The transcriber is built once here; if that
// fails the engine reports it through OnStatus and Start returns ErrNotReady.
func New(opts Options, source AudioSource, factory TranscriberFactory, callbacks Callbacks) *Engine {
	e := &Engine{
		opts:      opts.withDefaults(),
		source:    source,
		callbacks: callbacks,
		current:   0,
	}

	if factory == nil {
		e.initErr = errors.New("no transcriber configured")
	} else if tr, err := factory(); err != nil {
		e.initErr = err
	} else if tr == nil {
		e.initErr = errors.New("transcriber factory returned nil")
	} else {
		e.transcriber = tr
	}

	if e.initErr != nil {
		logging.LogError(e.initErr, "Failed to initialize transcriber")
		e.emitStatus("", StatusInitError)
	}

	return e
}

// Ready returns nil when the engine can start
func (e *Engine) Ready() error {
	if e.initErr != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, e.initErr)
	}
	return nil
}

// Start opens the audio source and begins following slides from startIndex.
// It is a no-op while a session is running.
func (e *Engine) Start(slides []string, startIndex int) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if err := e.Ready(); err != nil {
		e.emitStatus("", StatusNotReady)
		return err
	}

	e.mu.Lock()
	running := e.state != StateIdle
	e.mu.Unlock()
	if running {
		return nil
	}

	if err := e.source.Open(e.opts.Audio); err != nil {
		logging.LogError(err, "Failed to open audio source")
		e.emitStatus("", StatusMicError)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:     uuid.NewString(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	e.mu.Lock()
	e.slides = slices.Clone(slides)
	e.current = startIndex
	e.generation++
	e.sess = s
	e.state = StateListening
	e.mu.Unlock()

	logging.LogSyncEvent(s.id, "Session started",
		zap.Int("slides", len(slides)),
		zap.Int("start_index", startIndex),
	)
	e.opts.Recorder.RecordSession(s.id, true)
	e.emitStatus(s.id, StatusListening)

	go e.run(ctx, s)
	return nil
}

// Stop ends the running session and waits up to the join timeout for the
// worker to exit. It is a no-op when idle.
func (e *Engine) Stop() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	s := e.sess
	e.sess = nil
	e.mu.Unlock()

	if s == nil {
		return
	}

	close(s.stop)
	s.cancel()
	e.source.Close()

	select {
	case <-s.done:
	case <-time.After(e.opts.JoinTimeout):
		logging.LogWarn("Sync worker did not exit within join timeout",
			zap.String("session_id", s.id),
			zap.Duration("join_timeout", e.opts.JoinTimeout),
		)
	}

	e.mu.Lock()
	e.state = StateIdle
	e.mu.Unlock()

	logging.LogSyncEvent(s.id, "Session stopped")
	e.opts.Recorder.RecordSession(s.id, false)
	e.emitStatus(s.id, StatusStopped)
}

// Close stops the engine and releases the transcriber
func (e *Engine) Close() error {
	e.Stop()
	if closer, ok := e.transcriber.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// UpdateSlides re-points the engine, typically after manual navigation.
// A nil slides keeps the current list. A match attempt already in flight
// against the old list is discarded. The slide status is only announced
// while a session runs.
func (e *Engine) UpdateSlides(slides []string, index int) {
	e.mu.Lock()
	if slides != nil {
		e.slides = slices.Clone(slides)
	}
	e.current = index
	e.generation++
	sessionID := ""
	if e.sess != nil {
		sessionID = e.sess.id
	}
	e.mu.Unlock()

	logging.LogSyncEvent(sessionID, "Slides updated",
		zap.Bool("replaced", slides != nil),
		zap.Int("index", index),
	)
	if sessionID != "" {
		e.emitStatus(sessionID, fmt.Sprintf("AI: Slide %d...", index+1))
	}
}

// State returns the lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsListening reports whether a session is running
func (e *Engine) IsListening() bool {
	return e.State() != StateIdle
}

// CurrentSlide returns the index the engine believes is on screen
func (e *Engine) CurrentSlide() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Slides returns a copy of the slide list
func (e *Engine) Slides() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.slides)
}

// SessionID returns the running session ID, or "" when idle
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return ""
	}
	return e.sess.id
}

func (e *Engine) run(ctx context.Context, s *session) {
	defer close(s.done)

	events := e.transcriber.StreamRecognize(ctx, e.relay(ctx, s, e.source.Chunks()))
	buffer := NewWordBuffer()

	for {
		select {
		case <-s.stop:
			return
		case ev, ok := <-events:
			if !ok {
				e.streamEnded(s)
				return
			}
			if s.stopped() {
				return
			}
			if !e.handleEvent(s, buffer, ev) {
				return
			}
		}
	}
}

// relay forwards chunks unbuffered so the recognizer still throttles capture
func (e *Engine) relay(ctx context.Context, s *session, in <-chan audio.Chunk) <-chan audio.Chunk {
	out := make(chan audio.Chunk)
	go func() {
		defer close(out)
		for chunk := range in {
			e.opts.Recorder.RecordChunk(s.id)
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// handleEvent processes one transcription result. It returns false when the
// session was stopped during the post-jump pause.
func (e *Engine) handleEvent(s *session, buffer *WordBuffer, ev stt.Event) bool {
	e.opts.Recorder.RecordTranscript(s.id, ev)

	if !ev.IsFinal {
		if ev.Text != "" {
			e.emitStatus(s.id, PreviewPrefix+lastRunes(ev.Text, e.opts.PreviewLength))
		}
		return true
	}

	words := matcher.Words(ev.Text)
	if len(words) == 0 {
		return true
	}
	buffer.Append(words...)
	if buffer.Len() < e.opts.WordsPerAttempt {
		return true
	}

	e.mu.Lock()
	slides, current, generation := e.slides, e.current, e.generation
	e.mu.Unlock()

	decision := e.opts.Matcher.Evaluate(buffer.Phrase(), slides, current)
	e.opts.Recorder.RecordAttempt(s.id, decision)

	if !decision.Jump {
		buffer.DropOldest(e.opts.WordsPerAttempt)
		return true
	}

	e.mu.Lock()
	if e.generation != generation || e.sess != s {
		e.mu.Unlock()
		logging.LogSyncEvent(s.id, "Discarding jump computed against replaced slides",
			zap.Int("target", decision.Target))
		buffer.DropOldest(e.opts.WordsPerAttempt)
		return true
	}
	e.current = decision.Target
	e.state = StatePaused
	e.mu.Unlock()

	logging.LogSyncEvent(s.id, "Jumping to slide",
		zap.Int("from", current),
		zap.Int("to", decision.Target),
		zap.Float64("score", decision.BestScore),
		zap.String("phrase", decision.Phrase),
	)
	e.gotoSlide(decision.Target)
	e.opts.Recorder.RecordJump(JumpRecord{
		SessionID: s.id,
		From:      current,
		To:        decision.Target,
		Phrase:    decision.Phrase,
		Score:     decision.BestScore,
		At:        time.Now(),
	})
	buffer.Clear()

	return e.cooldown(s)
}

// cooldown suppresses matching right after a jump so trailing words of the
// same phrase do not trigger again.
func (e *Engine) cooldown(s *session) bool {
	e.emitStatus(s.id, fmt.Sprintf("AI: Pause (%.1fs)...", e.opts.PostJumpPause.Seconds()))

	timer := time.NewTimer(e.opts.PostJumpPause)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-s.stop:
		return false
	}

	e.mu.Lock()
	if e.sess == s {
		e.state = StateListening
	}
	e.mu.Unlock()

	e.emitStatus(s.id, StatusListening)
	return true
}

// streamEnded handles a worker exit that Stop did not request
func (e *Engine) streamEnded(s *session) {
	if s.stopped() {
		return
	}

	e.mu.Lock()
	owned := e.sess == s
	if owned {
		// Closed under the lock so a concurrent Start cannot reopen first.
		e.source.Close()
		e.sess = nil
		e.state = StateIdle
	}
	e.mu.Unlock()

	s.cancel()
	if !owned {
		return
	}

	logging.LogSyncEvent(s.id, "Transcription stream ended")
	e.opts.Recorder.RecordSession(s.id, false)
	e.emitStatus(s.id, StatusStreamEnded)
}

func (e *Engine) gotoSlide(index int) {
	if e.callbacks.OnGotoSlide == nil {
		return
	}
	e.invoke("goto_slide", func() { e.callbacks.OnGotoSlide(index) })
}

func (e *Engine) emitStatus(sessionID, message string) {
	e.opts.Recorder.RecordStatus(sessionID, e.State(), message)
	if e.callbacks.OnStatus == nil {
		return
	}
	e.invoke("status", func() { e.callbacks.OnStatus(message) })
}

// invoke runs a caller callback, absorbing panics so they never reach the worker
func (e *Engine) invoke(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.LogError(fmt.Errorf("callback %s panicked: %v", name, r), "Callback failed")
		}
	}()
	fn()
}

func lastRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
