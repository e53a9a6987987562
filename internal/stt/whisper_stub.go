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

//go:build !whisper

package stt

import (
	"context"

	"github.com/projetor/projetor-sync/internal/audio"
)

// WhisperTranscriber is unavailable in builds without the whisper tag
type WhisperTranscriber struct{}

// NewWhisperTranscriber always fails; rebuild with -tags whisper to enable
// local recognition.
func NewWhisperTranscriber(opts WhisperOptions) (*WhisperTranscriber, error) {
	return nil, &ConfigError{
		Backend: backendWhisper,
		Reason:  "whisper support disabled (build with -tags whisper to enable)",
	}
}

// StreamRecognize returns a closed channel
func (wt *WhisperTranscriber) StreamRecognize(_ context.Context, _ <-chan audio.Chunk) <-chan Event {
	events := make(chan Event)
	close(events)
	return events
}

// Close is a no-op
func (wt *WhisperTranscriber) Close() error {
	return nil
}
