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

package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/projetor/projetor-sync/internal/logging"
)

// maxBufferedSeconds bounds how much captured audio is kept when the reader
// falls behind. Older samples are dropped first.
const maxBufferedSeconds = 5

// DeviceInfo describes an input device
type DeviceInfo struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// MalgoDevice is a capture device driven by miniaudio
type MalgoDevice struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu       sync.Mutex
	cond     *sync.Cond
	buf      []byte
	maxBytes int
	closed   bool

	closeOnce sync.Once
}

// OpenMalgoDevice claims the configured input and starts capturing
func OpenMalgoDevice(cfg Config) (Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &DeviceError{Op: "init context", DeviceIndex: cfg.DeviceIndex, Err: err}
	}

	d := &MalgoDevice{
		ctx:      ctx,
		maxBytes: cfg.SampleRate * cfg.Channels * 2 * maxBufferedSeconds,
	}
	d.cond = sync.NewCond(&d.mu)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)

	if cfg.DeviceIndex != nil {
		infos, err := ctx.Devices(malgo.Capture)
		if err != nil {
			d.releaseContext()
			return nil, &DeviceError{Op: "enumerate", DeviceIndex: cfg.DeviceIndex, Err: err}
		}
		if *cfg.DeviceIndex >= len(infos) {
			d.releaseContext()
			return nil, &DeviceError{
				Op:          "select",
				DeviceIndex: cfg.DeviceIndex,
				Err:         fmt.Errorf("only %d input devices available", len(infos)),
			}
		}
		deviceConfig.Capture.DeviceID = infos[*cfg.DeviceIndex].ID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			d.push(input)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		d.releaseContext()
		return nil, &DeviceError{Op: "init device", DeviceIndex: cfg.DeviceIndex, Err: err}
	}
	d.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		d.releaseContext()
		return nil, &DeviceError{Op: "start", DeviceIndex: cfg.DeviceIndex, Err: err}
	}

	return d, nil
}

func (d *MalgoDevice) push(samples []byte) {
	d.mu.Lock()
	if !d.closed {
		d.buf = append(d.buf, samples...)
		if over := len(d.buf) - d.maxBytes; d.maxBytes > 0 && over > 0 {
			d.buf = d.buf[over:]
		}
	}
	d.mu.Unlock()
	d.cond.Signal()
}

// Read blocks until captured audio is available or the device is closed
func (d *MalgoDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for len(d.buf) == 0 && !d.closed {
		d.cond.Wait()
	}
	if d.closed {
		return 0, io.ErrClosedPipe
	}

	n := copy(p, d.buf)
	d.buf = d.buf[n:]
	return n, nil
}

// Close stops capturing and wakes any pending Read
func (d *MalgoDevice) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.buf = nil
		d.mu.Unlock()
		d.cond.Broadcast()

		if d.device != nil {
			err = d.device.Stop()
			d.device.Uninit()
		}
		d.releaseContext()
	})
	return err
}

func (d *MalgoDevice) releaseContext() {
	if d.ctx == nil {
		return
	}
	if err := d.ctx.Uninit(); err != nil {
		logging.LogWarn("Failed to release audio context", zap.Error(err))
	}
	d.ctx.Free()
	d.ctx = nil
}

// ListInputDevices enumerates the capture devices in selection order
func ListInputDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &DeviceError{Op: "init context", Err: err}
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, &DeviceError{Op: "enumerate", Err: err}
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, DeviceInfo{
			Index:     i,
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return devices, nil
}
