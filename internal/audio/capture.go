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

// Package audio captures fixed-size PCM16 chunks from an input device.
package audio

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/projetor/projetor-sync/internal/logging"
)

// ErrDevice is matched by every device failure
var ErrDevice = errors.New("audio device error")

// DeviceError reports a device that could not be claimed or failed mid-stream
type DeviceError struct {
	Op          string
	DeviceIndex *int
	Err         error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s (%s): %v", e.Op, deviceLabel(e.DeviceIndex), e.Err)
}

// Unwrap exposes both ErrDevice and the underlying cause
func (e *DeviceError) Unwrap() []error {
	return []error{ErrDevice, e.Err}
}

func deviceLabel(index *int) string {
	if index == nil {
		return "default"
	}
	return "index " + strconv.Itoa(*index)
}

// Config describes the capture stream
type Config struct {
	SampleRate  int
	ChunkSize   int // samples per channel in one chunk
	Channels    int
	DeviceIndex *int // nil selects the system default input
}

// FrameBytes returns the size in bytes of one chunk
func (c Config) FrameBytes() int {
	return c.ChunkSize * c.Channels * 2
}

// Validate checks the capture parameters
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case c.ChunkSize <= 0:
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	case c.Channels < 1 || c.Channels > 2:
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	case c.DeviceIndex != nil && *c.DeviceIndex < 0:
		return fmt.Errorf("device index must not be negative, got %d", *c.DeviceIndex)
	}
	return nil
}

// Chunk is one fixed-size block of little-endian PCM16 audio
type Chunk struct {
	Data []byte
	Seq  uint64 // arrival order within a capture session
}

// Device is a claimed input device. Read blocks until audio is available;
// Close must unblock a pending Read.
type Device interface {
	Read(p []byte) (int, error)
	Close() error
}

// Opener claims a device for the given configuration
type Opener func(Config) (Device, error)

// Capture owns one input device per session and exposes it as a chunk channel
type Capture struct {
	opener Opener

	mu     sync.Mutex
	device Device
	cfg    Config
	done   chan struct{}

	stopped atomic.Bool
}

// NewCapture creates a capture that claims devices through opener
func NewCapture(opener Opener) *Capture {
	c := &Capture{opener: opener}
	c.stopped.Store(true)
	return c
}

// NewMalgoCapture creates a capture backed by the system audio stack
func NewMalgoCapture() *Capture {
	return NewCapture(OpenMalgoDevice)
}

// Open claims the device. Opening an already open capture is a no-op.
func (c *Capture) Open(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return &DeviceError{Op: "open", DeviceIndex: cfg.DeviceIndex, Err: err}
	}

	device, err := c.opener(cfg)
	if err != nil {
		var deviceErr *DeviceError
		if errors.As(err, &deviceErr) {
			return err
		}
		return &DeviceError{Op: "open", DeviceIndex: cfg.DeviceIndex, Err: err}
	}

	c.device = device
	c.cfg = cfg
	c.done = make(chan struct{})
	c.stopped.Store(false)

	logging.LogAudioCapture("opened",
		zap.String("device", deviceLabel(cfg.DeviceIndex)),
		zap.Int("sample_rate", cfg.SampleRate),
		zap.Int("chunk_size", cfg.ChunkSize),
		zap.Int("channels", cfg.Channels),
	)
	return nil
}

// Chunks returns the audio of the current session. The channel is unbuffered:
// the next chunk is read from the device only after the previous one was
// received. It closes on Close, on a short read or on a device error. When
// the capture is not open the returned channel is already closed.
func (c *Capture) Chunks() <-chan Chunk {
	out := make(chan Chunk)

	c.mu.Lock()
	device, cfg, done := c.device, c.cfg, c.done
	c.mu.Unlock()

	if device == nil {
		close(out)
		return out
	}

	go func() {
		defer close(out)

		size := cfg.FrameBytes()
		for seq := uint64(0); ; seq++ {
			select {
			case <-done:
				return
			default:
			}

			data := make([]byte, size)
			if _, err := io.ReadFull(device, data); err != nil {
				c.readFailed(done, cfg.DeviceIndex, err)
				return
			}

			select {
			case out <- Chunk{Data: data, Seq: seq}:
			case <-done:
				return
			}
		}
	}()

	return out
}

// readFailed ends the stream identified by done. A reader outliving its
// session must not mark a newer session as stopped.
func (c *Capture) readFailed(done chan struct{}, deviceIndex *int, err error) {
	select {
	case <-done:
		// Closed on purpose, the failed read is the cancellation itself.
		logging.LogAudioCapture("stream closed")
		return
	default:
	}

	c.mu.Lock()
	stale := c.done != done || c.stopped.Swap(true)
	c.mu.Unlock()
	if stale {
		return
	}

	logging.LogError(&DeviceError{Op: "read", DeviceIndex: deviceIndex, Err: err},
		"Audio stream ended")
}

// Close releases the device and unblocks a pending read. It is idempotent and
// safe to call from any goroutine. The capture may be opened again afterwards.
func (c *Capture) Close() {
	c.mu.Lock()
	device, done := c.device, c.done
	c.device = nil
	c.done = nil
	c.mu.Unlock()

	if device == nil {
		return
	}

	close(done)
	c.stopped.Store(true)

	if err := device.Close(); err != nil {
		logging.LogWarn("Failed to close audio device", zap.Error(err))
	}
	logging.LogAudioCapture("closed")
}

// Stopped reports whether no stream is currently being read
func (c *Capture) Stopped() bool {
	return c.stopped.Load()
}
