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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultValues(t *testing.T) {
	clearEnvVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 3000)
	}
	if cfg.Server.GRPCPort != 50051 {
		t.Errorf("Server.GRPCPort = %d, want %d", cfg.Server.GRPCPort, 50051)
	}

	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Audio.SampleRate = %d, want %d", cfg.Audio.SampleRate, 16000)
	}
	if cfg.Audio.ChunkSize != 1600 {
		t.Errorf("Audio.ChunkSize = %d, want %d", cfg.Audio.ChunkSize, 1600)
	}
	if cfg.Audio.DeviceIndex != nil {
		t.Errorf("Audio.DeviceIndex = %v, want nil", *cfg.Audio.DeviceIndex)
	}

	if cfg.STT.Backend != BackendWebSocket {
		t.Errorf("STT.Backend = %q, want %q", cfg.STT.Backend, BackendWebSocket)
	}
	if cfg.STT.Language != "pt-BR" {
		t.Errorf("STT.Language = %q, want %q", cfg.STT.Language, "pt-BR")
	}
	if !cfg.STT.Punctuate || !cfg.STT.InterimResults {
		t.Error("STT punctuation and interim results should be enabled by default")
	}

	if cfg.Sync.WordsPerAttempt != 4 {
		t.Errorf("Sync.WordsPerAttempt = %d, want %d", cfg.Sync.WordsPerAttempt, 4)
	}
	if cfg.Sync.PostJumpPause != 4*time.Second {
		t.Errorf("Sync.PostJumpPause = %v, want %v", cfg.Sync.PostJumpPause, 4*time.Second)
	}
	if cfg.Sync.JoinTimeout != time.Second {
		t.Errorf("Sync.JoinTimeout = %v, want %v", cfg.Sync.JoinTimeout, time.Second)
	}

	if cfg.Matcher.MatchThreshold != 0.40 {
		t.Errorf("Matcher.MatchThreshold = %f, want %f", cfg.Matcher.MatchThreshold, 0.40)
	}
	if cfg.Matcher.CurrentSlideBias != 0.05 {
		t.Errorf("Matcher.CurrentSlideBias = %f, want %f", cfg.Matcher.CurrentSlideBias, 0.05)
	}
	if cfg.Matcher.NextSlideBonus != 0.15 {
		t.Errorf("Matcher.NextSlideBonus = %f, want %f", cfg.Matcher.NextSlideBonus, 0.15)
	}
	if cfg.Matcher.MinWordsForPhrase != 2 {
		t.Errorf("Matcher.MinWordsForPhrase = %d, want %d", cfg.Matcher.MinWordsForPhrase, 2)
	}
}

func TestDefault_ChunkSizeFollowsSampleRate(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	if got := Default().Audio.ChunkSize; got != 0 {
		t.Errorf("Default().Audio.ChunkSize = %d, want 0 so it derives from the sample rate", got)
	}

	_ = os.Setenv("AUDIO_SAMPLE_RATE", "8000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Audio.ChunkSize != 800 {
		t.Errorf("Audio.ChunkSize = %d, want %d", cfg.Audio.ChunkSize, 800)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name: "Audio configuration",
			envVars: map[string]string{
				"AUDIO_SAMPLE_RATE":  "48000",
				"AUDIO_CHUNK_SIZE":   "0",
				"AUDIO_DEVICE_INDEX": "2",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Audio.SampleRate != 48000 {
					t.Errorf("Audio.SampleRate = %d, want %d", cfg.Audio.SampleRate, 48000)
				}
				if cfg.Audio.ChunkSize != 4800 {
					t.Errorf("Audio.ChunkSize = %d, want %d", cfg.Audio.ChunkSize, 4800)
				}
				if cfg.Audio.DeviceIndex == nil || *cfg.Audio.DeviceIndex != 2 {
					t.Errorf("Audio.DeviceIndex = %v, want 2", cfg.Audio.DeviceIndex)
				}
			},
		},
		{
			name: "Default device keyword",
			envVars: map[string]string{
				"AUDIO_DEVICE_INDEX": "default",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Audio.DeviceIndex != nil {
					t.Errorf("Audio.DeviceIndex = %v, want nil", *cfg.Audio.DeviceIndex)
				}
			},
		},
		{
			name: "STT configuration",
			envVars: map[string]string{
				"STT_BACKEND":  "WHISPER",
				"STT_LANGUAGE": "en-US",
				"STT_API_KEY":  "secret",
				"STT_WINDOW":   "5s",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.STT.Backend != BackendWhisper {
					t.Errorf("STT.Backend = %q, want %q", cfg.STT.Backend, BackendWhisper)
				}
				if cfg.STT.Language != "en-US" {
					t.Errorf("STT.Language = %q, want %q", cfg.STT.Language, "en-US")
				}
				if cfg.STT.APIKey != "secret" {
					t.Errorf("STT.APIKey = %q, want %q", cfg.STT.APIKey, "secret")
				}
				if cfg.STT.Window != 5*time.Second {
					t.Errorf("STT.Window = %v, want %v", cfg.STT.Window, 5*time.Second)
				}
			},
		},
		{
			name: "Sync and matcher tuning",
			envVars: map[string]string{
				"SYNC_WORDS_PER_ATTEMPT": "6",
				"SYNC_POST_JUMP_PAUSE":   "2500ms",
				"MATCH_THRESHOLD":        "0.5",
				"MATCH_NEXT_BONUS":       "0.2",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Sync.WordsPerAttempt != 6 {
					t.Errorf("Sync.WordsPerAttempt = %d, want %d", cfg.Sync.WordsPerAttempt, 6)
				}
				if cfg.Sync.PostJumpPause != 2500*time.Millisecond {
					t.Errorf("Sync.PostJumpPause = %v, want %v", cfg.Sync.PostJumpPause, 2500*time.Millisecond)
				}
				if cfg.Matcher.MatchThreshold != 0.5 {
					t.Errorf("Matcher.MatchThreshold = %f, want %f", cfg.Matcher.MatchThreshold, 0.5)
				}
				if cfg.Matcher.NextSlideBonus != 0.2 {
					t.Errorf("Matcher.NextSlideBonus = %f, want %f", cfg.Matcher.NextSlideBonus, 0.2)
				}
			},
		},
		{
			name: "Invalid numbers fall back to defaults",
			envVars: map[string]string{
				"PROJETOR_HTTP_PORT": "not-a-number",
				"MATCH_THRESHOLD":    "high",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 3000 {
					t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 3000)
				}
				if cfg.Matcher.MatchThreshold != 0.40 {
					t.Errorf("Matcher.MatchThreshold = %f, want %f", cfg.Matcher.MatchThreshold, 0.40)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			for key, value := range tt.envVars {
				_ = os.Setenv(key, value)
			}
			defer clearEnvVars()

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			tt.validate(t, cfg)
		})
	}
}

func TestLoad_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name          string
		envVars       map[string]string
		errorContains string
	}{
		{
			name:          "Invalid server port",
			envVars:       map[string]string{"PROJETOR_HTTP_PORT": "0"},
			errorContains: "invalid server port",
		},
		{
			name:          "Invalid gRPC port",
			envVars:       map[string]string{"PROJETOR_GRPC_PORT": "99999"},
			errorContains: "invalid gRPC port",
		},
		{
			name:          "Unknown backend",
			envVars:       map[string]string{"STT_BACKEND": "carrier-pigeon"},
			errorContains: "unknown STT backend",
		},
		{
			name:          "Too many channels",
			envVars:       map[string]string{"AUDIO_CHANNELS": "6"},
			errorContains: "channels must be 1 or 2",
		},
		{
			name:          "Zero words per attempt",
			envVars:       map[string]string{"SYNC_WORDS_PER_ATTEMPT": "0"},
			errorContains: "words per attempt",
		},
		{
			name:          "Threshold out of range",
			envVars:       map[string]string{"MATCH_THRESHOLD": "1.5"},
			errorContains: "match threshold",
		},
		{
			name:          "Zero join timeout",
			envVars:       map[string]string{"SYNC_JOIN_TIMEOUT": "0s"},
			errorContains: "join timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars()
			for key, value := range tt.envVars {
				_ = os.Setenv(key, value)
			}
			defer clearEnvVars()

			_, err := Load()
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Expected error to contain %q, got: %v", tt.errorContains, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	dir := t.TempDir()
	path := filepath.Join(dir, "projetor-sync.yaml")
	content := `
server:
  port: 8088
audio:
  sample_rate: 44100
  chunk_size: 0
  device_index: 1
stt:
  backend: websocket
  url: ws://localhost:9000/listen
  language: en-US
sync:
  post_jump_pause: 3s
matcher:
  current_slide_bias: 0.1
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_ = os.Setenv("STT_LANGUAGE", "es")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 8088 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8088)
	}
	if cfg.Audio.ChunkSize != 4410 {
		t.Errorf("Audio.ChunkSize = %d, want %d", cfg.Audio.ChunkSize, 4410)
	}
	if cfg.Audio.DeviceIndex == nil || *cfg.Audio.DeviceIndex != 1 {
		t.Errorf("Audio.DeviceIndex = %v, want 1", cfg.Audio.DeviceIndex)
	}
	if cfg.STT.URL != "ws://localhost:9000/listen" {
		t.Errorf("STT.URL = %q, want %q", cfg.STT.URL, "ws://localhost:9000/listen")
	}
	// Environment wins over the file
	if cfg.STT.Language != "es" {
		t.Errorf("STT.Language = %q, want %q", cfg.STT.Language, "es")
	}
	if cfg.Sync.PostJumpPause != 3*time.Second {
		t.Errorf("Sync.PostJumpPause = %v, want %v", cfg.Sync.PostJumpPause, 3*time.Second)
	}
	if cfg.Matcher.CurrentSlideBias != 0.1 {
		t.Errorf("Matcher.CurrentSlideBias = %f, want %f", cfg.Matcher.CurrentSlideBias, 0.1)
	}
	// Untouched values keep their defaults
	if cfg.Matcher.NextSlideBonus != 0.15 {
		t.Errorf("Matcher.NextSlideBonus = %f, want %f", cfg.Matcher.NextSlideBonus, 0.15)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	clearEnvVars()

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadFile(path); err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

// Helper function to clear environment variables used in tests
func clearEnvVars() {
	envVars := []string{
		"PROJETOR_HOST", "PROJETOR_HTTP_PORT", "PROJETOR_GRPC_PORT",
		"PROJETOR_READ_TIMEOUT", "PROJETOR_WRITE_TIMEOUT",
		"AUDIO_SAMPLE_RATE", "AUDIO_CHUNK_SIZE", "AUDIO_CHANNELS", "AUDIO_DEVICE_INDEX",
		"STT_BACKEND", "STT_URL", "STT_API_KEY", "STT_LANGUAGE", "STT_MODEL", "STT_MODEL_PATH",
		"STT_PUNCTUATE", "STT_INTERIM_RESULTS", "STT_DIAL_TIMEOUT", "STT_WINDOW",
		"SYNC_WORDS_PER_ATTEMPT", "SYNC_POST_JUMP_PAUSE", "SYNC_JOIN_TIMEOUT", "SYNC_PREVIEW_LENGTH",
		"MATCH_THRESHOLD", "MATCH_CURRENT_BIAS", "MATCH_NEXT_BONUS", "MATCH_MIN_WORDS",
		"DB_PATH", "LOG_LEVEL", "LOG_FORMAT",
		"NATS_ENABLED", "NATS_URL", "NATS_SUBJECT_PREFIX", "NATS_MAX_RECONNECT", "NATS_RECONNECT_WAIT",
	}

	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}
