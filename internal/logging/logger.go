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

package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

var (
	// Global logger instance
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "console"
}

// Initialize sets up the global logger based on environment variables
func Initialize() error {
	config := LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "console"),
	}

	return InitializeWithConfig(config)
}

// InitializeWithConfig sets up the global logger with provided configuration
func InitializeWithConfig(config LogConfig) error {
	var zapConfig zap.Config

	switch strings.ToLower(config.Format) {
	case "json":
		zapConfig = zap.NewProductionConfig()
	default:
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(strings.ToLower(config.Level))
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	logger, err := zapConfig.Build(
		zap.AddCallerSkip(1), // Skip the wrapper functions
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		return err
	}

	SetLogger(logger)

	Sugar.Infof("🚀 Structured logging initialized (level: %s, format: %s)",
		config.Level, config.Format)

	return nil
}

// SetLogger replaces the global logger, mainly so tests can install an observer core.
func SetLogger(logger *zap.Logger) {
	Logger = logger
	if logger == nil {
		Sugar = nil
		return
	}
	Sugar = logger.Sugar()
}

// Sync flushes any buffered log entries
func Sync() {
	if Logger != nil {
		// Sync fails on stdout/stderr on some platforms; nothing useful to do about it.
		_ = Logger.Sync()
	}
}

// Close cleans up the logger
func Close() {
	Sync()
}

// LogSyncEvent logs a sync engine lifecycle event for a session
func LogSyncEvent(sessionID, message string, fields ...zap.Field) {
	if Logger == nil {
		return
	}

	baseFields := []zap.Field{
		zap.String("component", "sync_engine"),
	}
	if sessionID != "" {
		baseFields = append(baseFields, zap.String("session_id", sessionID))
	}

	Logger.Info(message, append(baseFields, fields...)...)
}

// LogAudioCapture logs microphone capture events
func LogAudioCapture(stage string, fields ...zap.Field) {
	if Logger == nil {
		return
	}

	baseFields := []zap.Field{
		zap.String("component", "audio_capture"),
		zap.String("stage", stage),
	}

	Logger.Info("Audio capture", append(baseFields, fields...)...)
}

// LogTranscription logs streaming recognition events
func LogTranscription(backend, stage string, fields ...zap.Field) {
	if Logger == nil {
		return
	}

	baseFields := []zap.Field{
		zap.String("component", "transcriber"),
		zap.String("backend", backend),
		zap.String("stage", stage),
	}

	Logger.Debug("Transcription", append(baseFields, fields...)...)
}

// LogMatchDecision logs the outcome of a slide match attempt
func LogMatchDecision(phrase string, best, current int, bestScore, currentScore float64, jump bool) {
	if Logger == nil {
		return
	}

	Logger.Debug("Match decision",
		zap.String("component", "slide_matcher"),
		zap.String("phrase", phrase),
		zap.Int("best_slide", best),
		zap.Int("current_slide", current),
		zap.Float64("best_score", bestScore),
		zap.Float64("current_score", currentScore),
		zap.Bool("jump", jump),
	)
}

// LogNATSEvent logs NATS messaging events
func LogNATSEvent(subject, action string, fields ...zap.Field) {
	if Logger == nil {
		return
	}

	baseFields := []zap.Field{
		zap.String("component", "messaging"),
		zap.String("subject", subject),
		zap.String("action", action),
	}

	Logger.Info("NATS event", append(baseFields, fields...)...)
}

// LogDatabaseOperation logs database operations
func LogDatabaseOperation(operation, table string, fields ...zap.Field) {
	if Logger == nil {
		return
	}

	baseFields := []zap.Field{
		zap.String("component", "database"),
		zap.String("operation", operation),
		zap.String("table", table),
	}

	Logger.Info("Database operation", append(baseFields, fields...)...)
}

// LogServerEvent logs HTTP and gRPC server lifecycle events
func LogServerEvent(server, action string, fields ...zap.Field) {
	if Logger == nil {
		return
	}

	baseFields := []zap.Field{
		zap.String("component", "server"),
		zap.String("server", server),
		zap.String("action", action),
	}

	Logger.Info("Server event", append(baseFields, fields...)...)
}

// LogError logs errors with context
func LogError(err error, message string, fields ...zap.Field) {
	if Logger == nil {
		return
	}

	Logger.Error(message, append([]zap.Field{zap.Error(err)}, fields...)...)
}

// LogWarn logs warnings with context
func LogWarn(message string, fields ...zap.Field) {
	if Logger == nil {
		return
	}

	Logger.Warn(message, fields...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
