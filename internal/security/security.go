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

// Package security validates and sanitizes values arriving from API callers
package security

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidEventID is returned when an event ID is not a UUID
	ErrInvalidEventID = errors.New("invalid event ID")

	logBreaks = strings.NewReplacer("\n", "", "\r", "")
)

// SanitizeLogInput strips line breaks so caller-controlled values cannot
// forge log lines. Use it for anything from a request before logging.
func SanitizeLogInput(input string) string {
	return logBreaks.Replace(input)
}

// ValidateEventID accepts only canonical UUIDs, the format used for every
// stored sync event and session.
func ValidateEventID(id string) error {
	if len(id) != 36 {
		return ErrInvalidEventID
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidEventID
	}
	return nil
}
