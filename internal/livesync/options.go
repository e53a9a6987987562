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

package livesync

import (
	"github.com/projetor/projetor-sync/internal/audio"
	"github.com/projetor/projetor-sync/internal/config"
	"github.com/projetor/projetor-sync/internal/matcher"
)

// OptionsFromConfig maps the daemon configuration onto engine options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Audio: audio.Config{
			SampleRate:  cfg.Audio.SampleRate,
			ChunkSize:   cfg.Audio.ChunkSize,
			Channels:    cfg.Audio.Channels,
			DeviceIndex: cfg.Audio.DeviceIndex,
		},
		WordsPerAttempt: cfg.Sync.WordsPerAttempt,
		PostJumpPause:   cfg.Sync.PostJumpPause,
		JoinTimeout:     cfg.Sync.JoinTimeout,
		PreviewLength:   cfg.Sync.PreviewLength,
		Matcher: matcher.New(matcher.Params{
			MatchThreshold:    cfg.Matcher.MatchThreshold,
			CurrentSlideBias:  cfg.Matcher.CurrentSlideBias,
			NextSlideBonus:    cfg.Matcher.NextSlideBonus,
			MinWordsForPhrase: cfg.Matcher.MinWordsForPhrase,
		}),
	}
}
