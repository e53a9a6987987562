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

//go:build whisper

package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"go.uber.org/zap"

	"github.com/projetor/projetor-sync/internal/audio"
	"github.com/projetor/projetor-sync/internal/logging"
)

// WhisperTranscriber recognizes speech locally with a ggml Whisper model.
// Audio is transcribed in fixed windows, each window yielding one final event.
type WhisperTranscriber struct {
	model whisper.Model
	opts  WhisperOptions
}

// NewWhisperTranscriber loads the model named in opts
func NewWhisperTranscriber(opts WhisperOptions) (*WhisperTranscriber, error) {
	opts = opts.withDefaults()

	if opts.ModelPath == "" {
		return nil, &ConfigError{Backend: backendWhisper, Reason: "missing model path"}
	}
	if opts.SampleRate != whisper.SampleRate {
		return nil, &ConfigError{
			Backend: backendWhisper,
			Reason:  fmt.Sprintf("sample rate must be %d, got %d", whisper.SampleRate, opts.SampleRate),
		}
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, &ConfigError{Backend: backendWhisper, Reason: "model not found at " + opts.ModelPath, Err: err}
	}

	model, err := whisper.New(opts.ModelPath)
	if err != nil {
		return nil, &ConfigError{Backend: backendWhisper, Reason: "failed to load model", Err: err}
	}

	logging.LogTranscription(backendWhisper, "model loaded", zap.String("model_path", opts.ModelPath))
	return &WhisperTranscriber{model: model, opts: opts}, nil
}

// StreamRecognize accumulates one window of audio at a time and transcribes
// it. Audio left over when chunks closes is transcribed before the channel
// closes.
func (wt *WhisperTranscriber) StreamRecognize(ctx context.Context, chunks <-chan audio.Chunk) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		windowSamples := int(wt.opts.Window.Seconds() * float64(wt.opts.SampleRate))
		window := make([]float32, 0, windowSamples)

		emit := func(samples []float32) bool {
			ev, err := wt.transcribe(samples)
			if err != nil {
				logging.LogError(fmt.Errorf("%w: %v", ErrTranscription, err), "Local recognition failed")
				return false
			}
			if ev.Text == "" {
				return true
			}
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-chunks:
				if !ok {
					if len(window) >= minFlushSamples(wt.opts.SampleRate) {
						emit(window)
					}
					return
				}
				window = append(window, PCM16ToMono(chunk.Data, wt.opts.Channels)...)
				if len(window) < windowSamples {
					continue
				}
				if !emit(window) {
					return
				}
				window = window[:0]
			}
		}
	}()

	return events
}

func (wt *WhisperTranscriber) transcribe(samples []float32) (Event, error) {
	wctx, err := wt.model.NewContext()
	if err != nil {
		return Event{}, fmt.Errorf("failed to create whisper context: %w", err)
	}

	if lang := whisperLanguage(wt.opts.Language); lang != "" && wt.model.IsMultilingual() {
		if err := wctx.SetLanguage(lang); err != nil {
			return Event{}, fmt.Errorf("failed to set language %q: %w", lang, err)
		}
	}

	started := time.Now()
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return Event{}, fmt.Errorf("failed to process audio: %w", err)
	}

	var (
		text      strings.Builder
		probSum   float64
		probCount int
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Event{}, fmt.Errorf("failed to read segment: %w", err)
		}
		text.WriteString(segment.Text)
		for _, token := range segment.Tokens {
			probSum += float64(token.P)
			probCount++
		}
	}

	ev := Event{Text: strings.TrimSpace(text.String()), IsFinal: true}
	if probCount > 0 {
		ev.Confidence = probSum / float64(probCount)
	}

	logging.LogTranscription(backendWhisper, "window transcribed",
		zap.Int("samples", len(samples)),
		zap.Duration("elapsed", time.Since(started)),
		zap.String("text", ev.Text),
	)
	return ev, nil
}

// Close releases the model
func (wt *WhisperTranscriber) Close() error {
	if wt.model == nil {
		return nil
	}
	err := wt.model.Close()
	wt.model = nil
	logging.LogTranscription(backendWhisper, "model closed")
	return err
}
