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

// Package metrics exposes sync engine activity as Prometheus metrics
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/projetor/projetor-sync/internal/livesync"
	"github.com/projetor/projetor-sync/internal/matcher"
	"github.com/projetor/projetor-sync/internal/stt"
)

const namespace = "projetor_sync"

// Metrics contains all Prometheus metrics for the sync service
type Metrics struct {
	// Engine metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	AudioChunks    prometheus.Counter
	Transcripts    *prometheus.CounterVec
	MatchAttempts  prometheus.Counter
	MatchBestScore prometheus.Histogram
	Jumps          prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of listening sessions currently running",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of listening sessions started",
		}),
		AudioChunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_total",
			Help:      "Total number of audio chunks forwarded to the recognizer",
		}),
		Transcripts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_events_total",
			Help:      "Total number of recognition events by finality",
		}, []string{"final"}),
		MatchAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_attempts_total",
			Help:      "Total number of slide match attempts",
		}),
		MatchBestScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_best_score",
			Help:      "Best bonus-adjusted score per match attempt",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 12),
		}),
		Jumps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jumps_total",
			Help:      "Total number of automatic slide changes",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordHTTPRequest records one served request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Recorder returns an engine recorder feeding these metrics
func (m *Metrics) Recorder() livesync.Recorder {
	return engineRecorder{m: m}
}

type engineRecorder struct {
	m *Metrics
}

func (r engineRecorder) RecordSession(_ string, started bool) {
	if started {
		r.m.SessionsTotal.Inc()
		r.m.SessionsActive.Inc()
		return
	}
	r.m.SessionsActive.Dec()
}

func (r engineRecorder) RecordStatus(string, livesync.State, string) {}

func (r engineRecorder) RecordChunk(string) {
	r.m.AudioChunks.Inc()
}

func (r engineRecorder) RecordTranscript(_ string, ev stt.Event) {
	r.m.Transcripts.WithLabelValues(strconv.FormatBool(ev.IsFinal)).Inc()
}

func (r engineRecorder) RecordAttempt(_ string, decision matcher.Decision) {
	r.m.MatchAttempts.Inc()
	if decision.Target >= 0 {
		r.m.MatchBestScore.Observe(decision.BestScore)
	}
}

func (r engineRecorder) RecordJump(livesync.JumpRecord) {
	r.m.Jumps.Inc()
}
