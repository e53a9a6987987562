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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projetor/projetor-sync/internal/config"
)

func TestNewTranscriber(t *testing.T) {
	audioCfg := config.Default().Audio

	t.Run("websocket backend", func(t *testing.T) {
		cfg := config.Default().STT
		cfg.APIKey = "key"

		tr, err := NewTranscriber(cfg, audioCfg)
		require.NoError(t, err)
		_, ok := tr.(*StreamingClient)
		assert.True(t, ok)
		assert.NoError(t, tr.Close())
	})

	t.Run("websocket without credentials", func(t *testing.T) {
		cfg := config.Default().STT
		cfg.APIKey = ""

		tr, err := NewTranscriber(cfg, audioCfg)
		assert.Nil(t, tr)
		assert.ErrorIs(t, err, ErrConfig)
	})

	t.Run("whisper without model", func(t *testing.T) {
		cfg := config.Default().STT
		cfg.Backend = config.BackendWhisper
		cfg.ModelPath = ""

		tr, err := NewTranscriber(cfg, audioCfg)
		assert.Nil(t, tr)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "whisper", cfgErr.Backend)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := config.Default().STT
		cfg.Backend = "carrier-pigeon"

		_, err := NewTranscriber(cfg, audioCfg)
		assert.ErrorIs(t, err, ErrConfig)
		assert.Contains(t, err.Error(), "carrier-pigeon")
	})
}

func TestConfigError(t *testing.T) {
	cause := errors.New("permission denied")
	err := &ConfigError{Backend: "whisper", Reason: "failed to load model", Err: cause}

	assert.ErrorIs(t, err, ErrConfig)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "whisper transcriber: failed to load model: permission denied", err.Error())

	bare := &ConfigError{Backend: "websocket", Reason: "missing API key"}
	assert.Equal(t, "websocket transcriber: missing API key", bare.Error())
	assert.ErrorIs(t, bare, ErrConfig)
}
