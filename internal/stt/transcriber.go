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

// Package stt turns a stream of PCM chunks into transcription events.
package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/projetor/projetor-sync/internal/audio"
	"github.com/projetor/projetor-sync/internal/config"
)

var (
	// ErrConfig is matched by every construction failure
	ErrConfig = errors.New("transcriber configuration error")
	// ErrTranscription marks a failure of a running recognition session.
	// It is logged and ends the event channel, it is never returned.
	ErrTranscription = errors.New("transcription error")
)

// ConfigError reports a recognition backend that cannot be used
type ConfigError struct {
	Backend string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s transcriber: %s: %v", e.Backend, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s transcriber: %s", e.Backend, e.Reason)
}

// Unwrap exposes both ErrConfig and the underlying cause
func (e *ConfigError) Unwrap() []error {
	return []error{ErrConfig, e.Err}
}

// Event is one transcription result. Interim events may be revised later;
// final events are settled.
type Event struct {
	Text       string
	IsFinal    bool
	Confidence float64
}

// Transcriber defines a streaming speech-to-text backend
type Transcriber interface {
	// StreamRecognize forwards chunks to a new recognition session and returns
	// its events. The channel closes when the input closes, the session fails
	// or ctx is cancelled.
	StreamRecognize(ctx context.Context, chunks <-chan audio.Chunk) <-chan Event

	// Close cleans up resources
	Close() error
}

// NewTranscriber builds the backend selected in cfg
func NewTranscriber(cfg config.STTConfig, audioCfg config.AudioConfig) (Transcriber, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendWebSocket:
		client, err := NewStreamingClient(StreamingOptions{
			URL:            cfg.URL,
			APIKey:         cfg.APIKey,
			Language:       cfg.Language,
			Model:          cfg.Model,
			SampleRate:     audioCfg.SampleRate,
			Channels:       audioCfg.Channels,
			Punctuate:      cfg.Punctuate,
			InterimResults: cfg.InterimResults,
			DialTimeout:    cfg.DialTimeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.BackendWhisper:
		wt, err := NewWhisperTranscriber(WhisperOptions{
			ModelPath:  cfg.ModelPath,
			Language:   cfg.Language,
			SampleRate: audioCfg.SampleRate,
			Channels:   audioCfg.Channels,
			Window:     cfg.Window,
		})
		if err != nil {
			return nil, err
		}
		return wt, nil
	default:
		return nil, &ConfigError{Backend: cfg.Backend, Reason: "unknown backend"}
	}
}
