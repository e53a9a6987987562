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

// Package messaging bridges the sync engine to NATS: slide jumps and status
// changes are published, slide updates from remote controllers are received.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/projetor/projetor-sync/internal/config"
	"github.com/projetor/projetor-sync/internal/logging"
)

// ErrNotConnected is returned when publishing before Connect
var ErrNotConnected = errors.New("NATS connection not established")

// Conn is the part of *nats.Conn the service uses
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	IsConnected() bool
	Close()
}

// GotoEvent announces an automatic slide change
type GotoEvent struct {
	SessionID string  `json:"session_id"`
	Index     int     `json:"index"`
	From      int     `json:"from"`
	Phrase    string  `json:"phrase,omitempty"`
	Score     float64 `json:"score"`
	Timestamp int64   `json:"timestamp"`
}

// StatusEvent carries an engine status line
type StatusEvent struct {
	SessionID string `json:"session_id,omitempty"`
	State     string `json:"state"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// SlideUpdateCommand re-points the engine. Slides may be omitted to keep
// the current list.
type SlideUpdateCommand struct {
	Slides []string `json:"slides,omitempty"`
	Index  int      `json:"index"`
}

// Subjects used by the service, derived from the configured prefix
type Subjects struct {
	Goto         string
	Status       string
	SlidesUpdate string
}

// NewSubjects builds the subject set under prefix
func NewSubjects(prefix string) Subjects {
	prefix = strings.TrimSuffix(prefix, ".")
	return Subjects{
		Goto:         prefix + ".goto",
		Status:       prefix + ".status",
		SlidesUpdate: prefix + ".slides.update",
	}
}

// NATSService publishes engine events and receives slide updates
type NATSService struct {
	cfg      config.NATSConfig
	conn     Conn
	subjects Subjects
}

// NewNATSService creates a service; call Connect before publishing
func NewNATSService(cfg config.NATSConfig) *NATSService {
	return &NATSService{
		cfg:      cfg,
		subjects: NewSubjects(cfg.SubjectPrefix),
	}
}

// NewNATSServiceWithConn creates a service over an existing connection
func NewNATSServiceWithConn(cfg config.NATSConfig, conn Conn) *NATSService {
	ns := NewNATSService(cfg)
	ns.conn = conn
	return ns
}

// Subjects returns the subjects in use
func (ns *NATSService) Subjects() Subjects {
	return ns.subjects
}

// Connect establishes connection to the NATS server
func (ns *NATSService) Connect() error {
	logging.LogNATSEvent(ns.cfg.URL, "connecting")

	opts := []nats.Option{
		nats.Name("projetor-sync"),
		nats.ReconnectWait(ns.cfg.ReconnectWait),
		nats.MaxReconnects(ns.cfg.MaxReconnect),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.LogWarn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.LogNATSEvent(nc.ConnectedUrl(), "reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logging.LogNATSEvent(ns.cfg.URL, "closed")
		}),
	}

	conn, err := nats.Connect(ns.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	ns.conn = conn
	logging.LogNATSEvent(conn.ConnectedUrl(), "connected")
	return nil
}

// PublishGoto publishes a slide jump
func (ns *NATSService) PublishGoto(event *GotoEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	return ns.publish(ns.subjects.Goto, event)
}

// PublishStatus publishes a status line
func (ns *NATSService) PublishStatus(event *StatusEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	return ns.publish(ns.subjects.Status, event)
}

func (ns *NATSService) publish(subject string, event any) error {
	if ns.conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", subject, err)
	}

	if err := ns.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	logging.LogNATSEvent(subject, "published", zap.Int("bytes", len(data)))
	return nil
}

// SubscribeSlideUpdates delivers slide update commands to handler.
// Malformed messages are logged and dropped.
func (ns *NATSService) SubscribeSlideUpdates(handler func(SlideUpdateCommand)) (*nats.Subscription, error) {
	if ns.conn == nil {
		return nil, ErrNotConnected
	}

	subject := ns.subjects.SlidesUpdate
	return ns.conn.Subscribe(subject, func(msg *nats.Msg) {
		var cmd SlideUpdateCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			logging.LogError(err, "Malformed slide update", zap.String("subject", subject))
			return
		}
		if cmd.Index < 0 {
			logging.LogWarn("Slide update with negative index dropped", zap.Int("index", cmd.Index))
			return
		}

		logging.LogNATSEvent(subject, "received",
			zap.Int("index", cmd.Index),
			zap.Int("slides", len(cmd.Slides)),
		)
		handler(cmd)
	})
}

// Close closes the NATS connection
func (ns *NATSService) Close() {
	if ns.conn != nil {
		ns.conn.Close()
	}
}

// IsConnected returns true if connected to NATS
func (ns *NATSService) IsConnected() bool {
	return ns.conn != nil && ns.conn.IsConnected()
}
