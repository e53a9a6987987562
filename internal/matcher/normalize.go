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

package matcher

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// asciiPunctuation mirrors the classic ASCII punctuation set, which includes
// symbols such as $ + < = > ^ ` | ~ that Unicode does not class as punctuation.
const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Normalize lowercases text, removes punctuation and collapses whitespace
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || strings.ContainsRune(asciiPunctuation, r) {
			return -1
		}
		return r
	}, strings.ToLower(text))

	return strings.Join(strings.Fields(stripped), " ")
}

// Words splits text into normalized words
func Words(text string) []string {
	return strings.Fields(Normalize(text))
}

// Similarity returns the Ratcliff/Obershelp ratio of a and b in [0,1],
// compared rune by rune.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return difflib.NewMatcher(splitRunes(a), splitRunes(b)).Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
