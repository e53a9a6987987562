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

package stt

import (
	"strings"
	"time"
)

const (
	backendWhisper = "whisper"

	defaultWhisperWindow = 3 * time.Second
)

// WhisperOptions configures the local recognizer
type WhisperOptions struct {
	ModelPath  string
	Language   string // BCP 47 tag, only the primary subtag is used
	SampleRate int
	Channels   int
	Window     time.Duration // audio transcribed per event
}

func (o WhisperOptions) withDefaults() WhisperOptions {
	if o.SampleRate <= 0 {
		o.SampleRate = defaultSampleRate
	}
	if o.Channels <= 0 {
		o.Channels = 1
	}
	if o.Window <= 0 {
		o.Window = defaultWhisperWindow
	}
	return o
}

// whisperLanguage maps "pt-BR" to "pt"
func whisperLanguage(tag string) string {
	primary, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(strings.TrimSpace(primary))
}

// minFlushSamples is the shortest trailing audio worth transcribing
func minFlushSamples(sampleRate int) int {
	return sampleRate / 2
}
