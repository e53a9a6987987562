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

import "strings"

// WordBuffer holds the normalized words recognized since the last jump
type WordBuffer struct {
	words []string
}

// NewWordBuffer creates an empty buffer
func NewWordBuffer() *WordBuffer {
	return &WordBuffer{}
}

// Append adds words at the end
func (b *WordBuffer) Append(words ...string) {
	b.words = append(b.words, words...)
}

// Len returns the number of buffered words
func (b *WordBuffer) Len() int {
	return len(b.words)
}

// Phrase joins the buffered words with single spaces
func (b *WordBuffer) Phrase() string {
	return strings.Join(b.words, " ")
}

// DropOldest removes the n oldest words
func (b *WordBuffer) DropOldest(n int) {
	if n <= 0 {
		return
	}
	if n >= len(b.words) {
		b.words = b.words[:0]
		return
	}
	b.words = append(b.words[:0], b.words[n:]...)
}

// Clear empties the buffer
func (b *WordBuffer) Clear() {
	b.words = b.words[:0]
}

// Words returns a copy of the buffered words
func (b *WordBuffer) Words() []string {
	out := make([]string, len(b.words))
	copy(out, b.words)
	return out
}
