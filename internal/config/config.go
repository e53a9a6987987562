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
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported recognition backends
const (
	BackendWebSocket = "websocket"
	BackendWhisper   = "whisper"
)

// Config holds all configuration for the sync daemon
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Audio   AudioConfig   `yaml:"audio"`
	STT     STTConfig     `yaml:"stt"`
	Sync    SyncConfig    `yaml:"sync"`
	Matcher MatcherConfig `yaml:"matcher"`
	Storage StorageConfig `yaml:"storage"`
	NATS    NATSConfig    `yaml:"nats"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP and gRPC listener configuration
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	GRPCPort     int           `yaml:"grpc_port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AudioConfig holds microphone capture parameters
type AudioConfig struct {
	SampleRate  int  `yaml:"sample_rate"`
	ChunkSize   int  `yaml:"chunk_size"` // samples per chunk, 0 = sample_rate/10
	Channels    int  `yaml:"channels"`
	DeviceIndex *int `yaml:"device_index"` // nil = system default input
}

// STTConfig holds speech recognition configuration
type STTConfig struct {
	Backend        string        `yaml:"backend"` // "websocket" or "whisper"
	URL            string        `yaml:"url"`
	APIKey         string        `yaml:"api_key"`
	Language       string        `yaml:"language"`
	Model          string        `yaml:"model"`
	ModelPath      string        `yaml:"model_path"` // ggml model for the whisper backend
	Punctuate      bool          `yaml:"punctuate"`
	InterimResults bool          `yaml:"interim_results"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	Window         time.Duration `yaml:"window"` // whisper transcription window
}

// SyncConfig holds the sync engine timing and buffering parameters
type SyncConfig struct {
	WordsPerAttempt int           `yaml:"words_per_attempt"`
	PostJumpPause   time.Duration `yaml:"post_jump_pause"`
	JoinTimeout     time.Duration `yaml:"join_timeout"`
	PreviewLength   int           `yaml:"preview_length"`
}

// MatcherConfig holds the slide matching thresholds
type MatcherConfig struct {
	MatchThreshold    float64 `yaml:"match_threshold"`
	CurrentSlideBias  float64 `yaml:"current_slide_bias"`
	NextSlideBonus    float64 `yaml:"next_slide_bonus"`
	MinWordsForPhrase int     `yaml:"min_words_for_phrase"`
}

// StorageConfig holds the SQLite database location
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// NATSConfig holds NATS messaging configuration
type NATSConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	MaxReconnect  int           `yaml:"max_reconnect"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration before any file or environment overrides
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3000,
			GRPCPort:     50051,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			ChunkSize:  0, // derived from the sample rate on load
			Channels:   1,
		},
		STT: STTConfig{
			Backend:        BackendWebSocket,
			URL:            "wss://api.deepgram.com/v1/listen",
			Language:       "pt-BR",
			Model:          "nova-2",
			Punctuate:      true,
			InterimResults: true,
			DialTimeout:    10 * time.Second,
			Window:         3 * time.Second,
		},
		Sync: SyncConfig{
			WordsPerAttempt: 4,
			PostJumpPause:   4 * time.Second,
			JoinTimeout:     time.Second,
			PreviewLength:   30,
		},
		Matcher: MatcherConfig{
			MatchThreshold:    0.40,
			CurrentSlideBias:  0.05,
			NextSlideBonus:    0.15,
			MinWordsForPhrase: 2,
		},
		Storage: StorageConfig{
			DBPath: "./data/projetor-sync.db",
		},
		NATS: NATSConfig{
			Enabled:       false,
			URL:           "nats://localhost:4222",
			SubjectPrefix: "projetor.sync",
			MaxReconnect:  10,
			ReconnectWait: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	config := Default()
	config.applyEnv()

	if err := config.finalize(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadFile loads a YAML configuration file over the defaults; environment
// variables still take precedence over values from the file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	config.applyEnv()

	if err := config.finalize(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnvString("PROJETOR_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("PROJETOR_HTTP_PORT", c.Server.Port)
	c.Server.GRPCPort = getEnvInt("PROJETOR_GRPC_PORT", c.Server.GRPCPort)
	c.Server.ReadTimeout = getEnvDuration("PROJETOR_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("PROJETOR_WRITE_TIMEOUT", c.Server.WriteTimeout)

	c.Audio.SampleRate = getEnvInt("AUDIO_SAMPLE_RATE", c.Audio.SampleRate)
	c.Audio.ChunkSize = getEnvInt("AUDIO_CHUNK_SIZE", c.Audio.ChunkSize)
	c.Audio.Channels = getEnvInt("AUDIO_CHANNELS", c.Audio.Channels)
	c.Audio.DeviceIndex = getEnvOptionalInt("AUDIO_DEVICE_INDEX", c.Audio.DeviceIndex)

	c.STT.Backend = getEnvString("STT_BACKEND", c.STT.Backend)
	c.STT.URL = getEnvString("STT_URL", c.STT.URL)
	c.STT.APIKey = getEnvString("STT_API_KEY", c.STT.APIKey)
	c.STT.Language = getEnvString("STT_LANGUAGE", c.STT.Language)
	c.STT.Model = getEnvString("STT_MODEL", c.STT.Model)
	c.STT.ModelPath = getEnvString("STT_MODEL_PATH", c.STT.ModelPath)
	c.STT.Punctuate = getEnvBool("STT_PUNCTUATE", c.STT.Punctuate)
	c.STT.InterimResults = getEnvBool("STT_INTERIM_RESULTS", c.STT.InterimResults)
	c.STT.DialTimeout = getEnvDuration("STT_DIAL_TIMEOUT", c.STT.DialTimeout)
	c.STT.Window = getEnvDuration("STT_WINDOW", c.STT.Window)

	c.Sync.WordsPerAttempt = getEnvInt("SYNC_WORDS_PER_ATTEMPT", c.Sync.WordsPerAttempt)
	c.Sync.PostJumpPause = getEnvDuration("SYNC_POST_JUMP_PAUSE", c.Sync.PostJumpPause)
	c.Sync.JoinTimeout = getEnvDuration("SYNC_JOIN_TIMEOUT", c.Sync.JoinTimeout)
	c.Sync.PreviewLength = getEnvInt("SYNC_PREVIEW_LENGTH", c.Sync.PreviewLength)

	c.Matcher.MatchThreshold = getEnvFloat64("MATCH_THRESHOLD", c.Matcher.MatchThreshold)
	c.Matcher.CurrentSlideBias = getEnvFloat64("MATCH_CURRENT_BIAS", c.Matcher.CurrentSlideBias)
	c.Matcher.NextSlideBonus = getEnvFloat64("MATCH_NEXT_BONUS", c.Matcher.NextSlideBonus)
	c.Matcher.MinWordsForPhrase = getEnvInt("MATCH_MIN_WORDS", c.Matcher.MinWordsForPhrase)

	c.Storage.DBPath = getEnvString("DB_PATH", c.Storage.DBPath)

	c.NATS.Enabled = getEnvBool("NATS_ENABLED", c.NATS.Enabled)
	c.NATS.URL = getEnvString("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getEnvString("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)
	c.NATS.MaxReconnect = getEnvInt("NATS_MAX_RECONNECT", c.NATS.MaxReconnect)
	c.NATS.ReconnectWait = getEnvDuration("NATS_RECONNECT_WAIT", c.NATS.ReconnectWait)

	c.Logging.Level = getEnvString("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvString("LOG_FORMAT", c.Logging.Format)
}

// finalize fills derived values and validates the result
func (c *Config) finalize() error {
	if c.Audio.ChunkSize == 0 && c.Audio.SampleRate > 0 {
		c.Audio.ChunkSize = c.Audio.SampleRate / 10
	}
	c.STT.Backend = strings.ToLower(c.STT.Backend)
	return c.validate()
}

// validate checks if the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.Server.GRPCPort)
	}

	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive: %d", c.Audio.SampleRate)
	}

	if c.Audio.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive: %d", c.Audio.ChunkSize)
	}

	if c.Audio.Channels < 1 || c.Audio.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2: %d", c.Audio.Channels)
	}

	if c.Audio.DeviceIndex != nil && *c.Audio.DeviceIndex < 0 {
		return fmt.Errorf("device index must not be negative: %d", *c.Audio.DeviceIndex)
	}

	switch c.STT.Backend {
	case BackendWebSocket:
		if c.STT.URL == "" {
			return fmt.Errorf("STT URL must be provided for the %s backend", BackendWebSocket)
		}
	case BackendWhisper:
	default:
		return fmt.Errorf("unknown STT backend: %q", c.STT.Backend)
	}

	if c.Sync.WordsPerAttempt < 1 {
		return fmt.Errorf("words per attempt must be at least 1: %d", c.Sync.WordsPerAttempt)
	}

	if c.Sync.PostJumpPause < 0 {
		return fmt.Errorf("post-jump pause must not be negative: %s", c.Sync.PostJumpPause)
	}

	if c.Sync.JoinTimeout <= 0 {
		return fmt.Errorf("join timeout must be positive: %s", c.Sync.JoinTimeout)
	}

	for name, v := range map[string]float64{
		"match threshold":    c.Matcher.MatchThreshold,
		"current slide bias": c.Matcher.CurrentSlideBias,
		"next slide bonus":   c.Matcher.NextSlideBonus,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1]: %f", name, v)
		}
	}

	if c.Matcher.MinWordsForPhrase < 1 {
		return fmt.Errorf("min words for phrase must be at least 1: %d", c.Matcher.MinWordsForPhrase)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvOptionalInt treats "default" or a negative number as "unset"
func getEnvOptionalInt(key string, defaultValue *int) *int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if strings.EqualFold(value, "default") {
		return nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	if intValue < 0 {
		return nil
	}
	return &intValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
