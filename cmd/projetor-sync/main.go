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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/projetor/projetor-sync/internal/audio"
	"github.com/projetor/projetor-sync/internal/config"
	"github.com/projetor/projetor-sync/internal/grpc"
	"github.com/projetor/projetor-sync/internal/livesync"
	"github.com/projetor/projetor-sync/internal/logging"
	"github.com/projetor/projetor-sync/internal/messaging"
	"github.com/projetor/projetor-sync/internal/metrics"
	"github.com/projetor/projetor-sync/internal/server"
	"github.com/projetor/projetor-sync/internal/slides"
	"github.com/projetor/projetor-sync/internal/storage"
	"github.com/projetor/projetor-sync/internal/stt"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to a YAML configuration file")
		lyricsPath  = flag.String("lyrics", "", "Start listening immediately with slides from this lyrics file")
		startIndex  = flag.Int("index", 0, "Starting slide index for -lyrics")
		listDevices = flag.Bool("list-devices", false, "List audio input devices and exit")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	if *listDevices {
		if err := printDevices(); err != nil {
			log.Fatalf("Failed to list devices: %v", err)
		}
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.InitializeWithConfig(logging.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logging.Close()

	if err := run(cfg, *lyricsPath, *startIndex); err != nil {
		logging.LogError(err, "projetor-sync exited with error")
		logging.Sync()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func run(cfg *config.Config, lyricsPath string, startIndex int) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.Storage.DBPath})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	store := storage.NewSyncEventsStore(db)

	m := metrics.New(prometheus.DefaultRegisterer)
	recorders := livesync.MultiRecorder{storage.NewEventRecorder(store), m.Recorder()}

	var nats *messaging.NATSService
	if cfg.NATS.Enabled {
		nats = messaging.NewNATSService(cfg.NATS)
		if err := nats.Connect(); err != nil {
			logging.LogWarn("Continuing without NATS", zap.Error(err))
			nats = nil
		} else {
			defer nats.Close()
			recorders = append(recorders, messaging.NewPublisher(nats))
		}
	}

	opts := livesync.OptionsFromConfig(cfg)
	opts.Recorder = recorders

	factory := func() (livesync.Transcriber, error) {
		t, err := stt.NewTranscriber(cfg.STT, cfg.Audio)
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	engine := livesync.New(opts, audio.NewMalgoCapture(), factory, livesync.Callbacks{
		OnGotoSlide: func(index int) {
			logging.LogSyncEvent("", "Go to slide", zap.Int("index", index))
		},
		OnStatus: func(message string) {
			logging.LogSyncEvent("", "Status", zap.String("message", message))
		},
	})
	defer func() {
		if err := engine.Close(); err != nil {
			logging.LogError(err, "Failed to close sync engine")
		}
	}()

	if nats != nil {
		if _, err := nats.SubscribeSlideUpdates(func(cmd messaging.SlideUpdateCommand) {
			engine.UpdateSlides(cmd.Slides, cmd.Index)
		}); err != nil {
			logging.LogWarn("Failed to subscribe to slide updates", zap.Error(err))
		}
	}

	srvOpts := server.Options{Engine: engine, Events: store, Metrics: m}
	if nats != nil {
		srvOpts.NATS = nats
	}
	httpServer := server.New(cfg, srvOpts)
	health := grpc.NewHealthService(net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.GRPCPort)), engine)

	errs := make(chan error, 2)
	go func() { errs <- httpServer.Start() }()
	go func() { errs <- health.Start() }()

	if lyricsPath != "" {
		list, err := slides.LoadFile(lyricsPath)
		if err != nil {
			return fmt.Errorf("failed to load lyrics: %w", err)
		}
		if err := engine.Start(list, startIndex); err != nil {
			logging.LogError(err, "Failed to start listening", zap.String("lyrics", lyricsPath))
		}
	}

	logging.LogServerEvent("daemon", "started",
		zap.Int("http_port", cfg.Server.Port),
		zap.Int("grpc_port", cfg.Server.GRPCPort),
		zap.String("stt_backend", cfg.STT.Backend),
		zap.Bool("nats", nats != nil),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
	}

	logging.LogServerEvent("daemon", "shutting down")
	engine.Stop()
	health.Stop()
	if err := httpServer.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func printDevices() error {
	devices, err := audio.ListInputDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Printf("%s %2d  %s\n", marker, d.Index, d.Name)
	}
	return nil
}
