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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/projetor/projetor-sync/internal/audio"
	"github.com/projetor/projetor-sync/internal/logging"
)

const (
	backendWebSocket = "websocket"

	defaultEncoding    = "linear16"
	defaultSampleRate  = 16000
	defaultDialTimeout = 10 * time.Second
)

// closeStreamMessage asks the service to flush pending results and hang up
var closeStreamMessage = []byte(`{"type":"CloseStream"}`)

// StreamingOptions configures a websocket recognition service
type StreamingOptions struct {
	URL            string
	APIKey         string
	Language       string
	Model          string
	SampleRate     int
	Channels       int
	Encoding       string
	Punctuate      bool
	InterimResults bool
	DialTimeout    time.Duration
	Dialer         *websocket.Dialer // nil uses websocket.DefaultDialer
}

// StreamingClient recognizes speech through a websocket streaming service
// that accepts raw audio frames and answers with JSON results.
type StreamingClient struct {
	endpoint    string
	header      http.Header
	dialer      *websocket.Dialer
	dialTimeout time.Duration
}

// streamMessage is the subset of the service response we consume
type streamMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	Description string `json:"description"`
	Message     string `json:"message"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// NewStreamingClient validates the options and prepares the session endpoint.
// No connection is made until StreamRecognize.
func NewStreamingClient(opts StreamingOptions) (*StreamingClient, error) {
	if opts.URL == "" {
		return nil, &ConfigError{Backend: backendWebSocket, Reason: "missing service URL"}
	}

	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, &ConfigError{Backend: backendWebSocket, Reason: "invalid service URL", Err: err}
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, &ConfigError{
			Backend: backendWebSocket,
			Reason:  fmt.Sprintf("service URL scheme must be ws or wss, got %q", u.Scheme),
		}
	}
	if opts.APIKey == "" {
		return nil, &ConfigError{Backend: backendWebSocket, Reason: "missing API key"}
	}

	if opts.Encoding == "" {
		opts.Encoding = defaultEncoding
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = defaultSampleRate
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}

	q := u.Query()
	q.Set("encoding", opts.Encoding)
	q.Set("sample_rate", strconv.Itoa(opts.SampleRate))
	q.Set("channels", strconv.Itoa(opts.Channels))
	q.Set("punctuate", strconv.FormatBool(opts.Punctuate))
	q.Set("interim_results", strconv.FormatBool(opts.InterimResults))
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	if opts.Model != "" {
		q.Set("model", opts.Model)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Token "+opts.APIKey)

	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	return &StreamingClient{
		endpoint:    u.String(),
		header:      header,
		dialer:      dialer,
		dialTimeout: opts.DialTimeout,
	}, nil
}

// Endpoint returns the session URL including the audio parameters
func (c *StreamingClient) Endpoint() string {
	return c.endpoint
}

// StreamRecognize opens one recognition session and streams chunks into it
func (c *StreamingClient) StreamRecognize(ctx context.Context, chunks <-chan audio.Chunk) <-chan Event {
	events := make(chan Event)
	go c.run(ctx, chunks, events)
	return events
}

func (c *StreamingClient) run(ctx context.Context, chunks <-chan audio.Chunk, events chan<- Event) {
	defer close(events)

	dialCtx, cancelDial := context.WithTimeout(ctx, c.dialTimeout)
	conn, resp, err := c.dialer.DialContext(dialCtx, c.endpoint, c.header)
	cancelDial()
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("status %d: %w", resp.StatusCode, err)
			_ = resp.Body.Close()
		}
		if ctx.Err() == nil {
			logging.LogError(fmt.Errorf("%w: connect: %v", ErrTranscription, err), "Streaming recognition unavailable")
		}
		return
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the socket is what unblocks a pending ReadMessage.
	go func() {
		<-sessionCtx.Done()
		_ = conn.Close()
	}()

	logging.LogTranscription(backendWebSocket, "session opened")

	go c.send(sessionCtx, cancel, conn, chunks)
	c.receive(sessionCtx, conn, events)

	logging.LogTranscription(backendWebSocket, "session closed")
}

func (c *StreamingClient) send(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, chunks <-chan audio.Chunk) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				if err := conn.WriteMessage(websocket.TextMessage, closeStreamMessage); err != nil && ctx.Err() == nil {
					logging.LogTranscription(backendWebSocket, "close stream failed", zap.Error(err))
				}
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk.Data); err != nil {
				if ctx.Err() == nil {
					logging.LogError(fmt.Errorf("%w: send audio: %v", ErrTranscription, err), "Streaming recognition failed")
				}
				cancel()
				return
			}
		}
	}
}

func (c *StreamingClient) receive(ctx context.Context, conn *websocket.Conn, events chan<- Event) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logging.LogError(fmt.Errorf("%w: receive: %v", ErrTranscription, err), "Streaming recognition failed")
			}
			return
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.LogTranscription(backendWebSocket, "malformed message skipped", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "Results":
			if len(msg.Channel.Alternatives) == 0 {
				continue
			}
			top := msg.Channel.Alternatives[0]
			text := strings.TrimSpace(top.Transcript)
			if text == "" {
				continue
			}
			select {
			case events <- Event{Text: text, IsFinal: msg.IsFinal, Confidence: top.Confidence}:
			case <-ctx.Done():
				return
			}
		case "Error":
			reason := msg.Description
			if reason == "" {
				reason = msg.Message
			}
			logging.LogError(fmt.Errorf("%w: service error: %s", ErrTranscription, reason), "Streaming recognition failed")
			return
		default:
			// Metadata, SpeechStarted, UtteranceEnd
		}
	}
}

// Close releases client resources. Sessions end with their context.
func (c *StreamingClient) Close() error {
	return nil
}
