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

import "encoding/binary"

// PCM16ToFloat32 converts little-endian signed 16-bit samples to [-1, 1).
// A trailing odd byte is ignored.
func PCM16ToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}

// PCM16ToMono converts interleaved PCM16 frames to mono float samples by
// averaging the channels.
func PCM16ToMono(data []byte, channels int) []float32 {
	samples := PCM16ToFloat32(data)
	if channels <= 1 {
		return samples
	}

	mono := make([]float32, len(samples)/channels)
	for i := range mono {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
