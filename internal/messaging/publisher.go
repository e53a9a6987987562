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

package messaging

import (
	"go.uber.org/zap"

	"github.com/projetor/projetor-sync/internal/livesync"
	"github.com/projetor/projetor-sync/internal/logging"
)

// Publisher forwards engine jumps and statuses to NATS
type Publisher struct {
	livesync.NopRecorder
	service *NATSService
}

// NewPublisher creates an engine recorder publishing through service
func NewPublisher(service *NATSService) *Publisher {
	return &Publisher{service: service}
}

// RecordJump publishes the jump on the goto subject
func (p *Publisher) RecordJump(jump livesync.JumpRecord) {
	err := p.service.PublishGoto(&GotoEvent{
		SessionID: jump.SessionID,
		Index:     jump.To,
		From:      jump.From,
		Phrase:    jump.Phrase,
		Score:     jump.Score,
		Timestamp: jump.At.UnixMilli(),
	})
	if err != nil {
		logging.LogWarn("Failed to publish slide jump", zap.Error(err), zap.Int("index", jump.To))
	}
}

// RecordStatus publishes the status line on the status subject
func (p *Publisher) RecordStatus(sessionID string, state livesync.State, message string) {
	err := p.service.PublishStatus(&StatusEvent{
		SessionID: sessionID,
		State:     state.String(),
		Message:   message,
	})
	if err != nil {
		logging.LogWarn("Failed to publish status", zap.Error(err))
	}
}
