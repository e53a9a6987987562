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

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/projetor/projetor-sync/internal/events"
	"github.com/projetor/projetor-sync/internal/logging"
)

// ErrNotFound is returned when no event matches
var ErrNotFound = errors.New("sync event not found")

const syncEventColumns = `uuid, session_id, kind, timestamp,
		from_slide, to_slide, phrase, score,
		state, message, details`

// SyncEventsStore handles database operations for sync events
type SyncEventsStore struct {
	db *Database
}

// NewSyncEventsStore creates a new sync events store
func NewSyncEventsStore(db *Database) *SyncEventsStore {
	return &SyncEventsStore{db: db}
}

// Insert stores a new sync event
func (s *SyncEventsStore) Insert(event *events.SyncEvent) error {
	if err := event.IsValid(); err != nil {
		return fmt.Errorf("invalid sync event: %w", err)
	}

	detailsJSON, err := event.DetailsJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize details: %w", err)
	}

	query := `INSERT INTO sync_events (` + syncEventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.DB().Exec(query,
		event.UUID, event.SessionID, string(event.Kind), event.Timestamp.UTC(),
		event.FromSlide, event.ToSlide, event.Phrase, event.Score,
		event.State, event.Message, detailsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync event: %w", err)
	}

	logging.LogDatabaseOperation("insert", "sync_events",
		zap.String("uuid", event.UUID),
		zap.String("kind", string(event.Kind)),
	)
	return nil
}

// GetByUUID retrieves an event by its UUID
func (s *SyncEventsStore) GetByUUID(uuid string) (*events.SyncEvent, error) {
	query := `SELECT ` + syncEventColumns + ` FROM sync_events WHERE uuid = ?`
	return scanSyncEvent(s.db.DB().QueryRow(query, uuid))
}

// ListOptions defines filtering and pagination options
type ListOptions struct {
	// Filtering
	SessionID string
	Kind      events.Kind
	Since     *time.Time
	Until     *time.Time

	// Pagination
	Limit  int
	Offset int

	// Ascending returns oldest first; the default is newest first
	Ascending bool
}

// List retrieves events with pagination and filtering
func (s *SyncEventsStore) List(options ListOptions) ([]*events.SyncEvent, error) {
	query, args := buildListQuery(options)

	rows, err := s.db.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []*events.SyncEvent
	for rows.Next() {
		event, err := scanSyncEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync event: %w", err)
		}
		list = append(list, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync events: %w", err)
	}

	return list, nil
}

// Count returns the number of events matching the filter, ignoring pagination
func (s *SyncEventsStore) Count(options ListOptions) (int64, error) {
	options.Limit = 0
	options.Offset = 0
	query, args := buildListQuery(options)

	var count int64
	if err := s.db.DB().QueryRow("SELECT COUNT(*) FROM ("+query+") AS filtered", args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sync events: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes events recorded before cutoff and returns how many
// were removed
func (s *SyncEventsStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := s.db.DB().Exec("DELETE FROM sync_events WHERE timestamp < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old sync events: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	logging.LogDatabaseOperation("prune", "sync_events", zap.Int64("removed", removed))
	return removed, nil
}

// buildListQuery constructs the SQL query based on ListOptions
func buildListQuery(options ListOptions) (string, []any) {
	query := `SELECT ` + syncEventColumns + ` FROM sync_events WHERE 1=1`
	var args []any

	if options.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, options.SessionID)
	}

	if options.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(options.Kind))
	}

	if options.Since != nil {
		query += " AND timestamp >= ?"
		args = append(args, options.Since.UTC())
	}

	if options.Until != nil {
		query += " AND timestamp <= ?"
		args = append(args, options.Until.UTC())
	}

	if options.Ascending {
		query += " ORDER BY timestamp ASC, rowid ASC"
	} else {
		query += " ORDER BY timestamp DESC, rowid DESC"
	}

	if options.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, options.Limit)

		if options.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, options.Offset)
		}
	}

	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSyncEvent scans a database row into a SyncEvent
func scanSyncEvent(row rowScanner) (*events.SyncEvent, error) {
	var (
		event       events.SyncEvent
		kind        string
		detailsJSON string
	)

	err := row.Scan(
		&event.UUID, &event.SessionID, &kind, &event.Timestamp,
		&event.FromSlide, &event.ToSlide, &event.Phrase, &event.Score,
		&event.State, &event.Message, &detailsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	event.Kind = events.Kind(kind)
	if err := event.SetDetailsFromJSON(detailsJSON); err != nil {
		return nil, fmt.Errorf("failed to parse details JSON: %w", err)
	}

	return &event, nil
}
