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

// Package slides splits song lyrics into presentation slides.
package slides

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// blankLines matches one or more empty or whitespace-only lines
var blankLines = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)

// FromLyrics returns one slide per stanza. Stanzas are separated by blank
// lines; surrounding whitespace is trimmed and empty stanzas are dropped.
func FromLyrics(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	for _, block := range blankLines.Split(text, -1) {
		if block = strings.TrimSpace(block); block != "" {
			out = append(out, block)
		}
	}
	return out
}

// LoadFile reads a lyrics file and splits it into slides
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lyrics file: %w", err)
	}

	slides := FromLyrics(string(data))
	if len(slides) == 0 {
		return nil, fmt.Errorf("lyrics file %s has no slides", path)
	}
	return slides, nil
}
