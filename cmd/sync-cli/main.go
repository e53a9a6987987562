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
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

const (
	defaultHubURL = "http://localhost:3000"
)

type SyncStatus struct {
	State        string `json:"state"`
	Listening    bool   `json:"listening"`
	Ready        bool   `json:"ready"`
	Error        string `json:"error,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	CurrentSlide int    `json:"current_slide"`
	SlideCount   int    `json:"slide_count"`
}

type SyncEvent struct {
	UUID      string    `json:"uuid"`
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	FromSlide int       `json:"from_slide"`
	ToSlide   int       `json:"to_slide"`
	Phrase    string    `json:"phrase,omitempty"`
	Score     float64   `json:"score"`
	State     string    `json:"state,omitempty"`
	Message   string    `json:"message,omitempty"`
}

type EventPage struct {
	Events     []SyncEvent `json:"events"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

func main() {
	var (
		hubURL     = flag.String("hub", defaultHubURL, "URL of the projetor-sync daemon")
		action     = flag.String("action", "status", "Action to perform: start, stop, slides, status, events")
		lyricsPath = flag.String("lyrics", "", "Lyrics file for start and slides actions")
		index      = flag.Int("index", 0, "Slide index for start and slides actions")
		sessionID  = flag.String("session", "", "Session ID filter for events action")
		kind       = flag.String("kind", "", "Event kind filter for events action: jump, status, session_start, session_stop")
		page       = flag.Int("page", 1, "Page for events action")
		verbose    = flag.Bool("v", false, "Verbose output")
		format     = flag.String("format", "table", "Output format: table, json")
	)
	flag.Parse()

	client := &SyncCLI{
		hubURL:  strings.TrimSuffix(*hubURL, "/"),
		verbose: *verbose,
		format:  *format,
		http:    &http.Client{Timeout: 10 * time.Second},
	}

	var err error
	switch *action {
	case "start":
		if *lyricsPath == "" {
			err = fmt.Errorf("lyrics file required for start action")
			break
		}
		err = client.start(*lyricsPath, *index)
	case "stop":
		err = client.stop()
	case "slides":
		err = client.slides(*lyricsPath, *index)
	case "status":
		err = client.status()
	case "events":
		err = client.events(*sessionID, *kind, *page)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown action %s\n", *action)
		fmt.Fprintf(os.Stderr, "Valid actions: start, stop, slides, status, events\n")
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type SyncCLI struct {
	hubURL  string
	verbose bool
	format  string
	http    *http.Client
}

func (c *SyncCLI) start(lyricsPath string, index int) error {
	lyrics, err := os.ReadFile(lyricsPath)
	if err != nil {
		return fmt.Errorf("failed to read lyrics: %w", err)
	}

	var status SyncStatus
	body := map[string]any{"lyrics": string(lyrics), "start_index": index}
	if err := c.do(http.MethodPost, "/api/sync/start", body, &status); err != nil {
		return err
	}
	return c.printStatus(status)
}

func (c *SyncCLI) stop() error {
	var status SyncStatus
	if err := c.do(http.MethodPost, "/api/sync/stop", nil, &status); err != nil {
		return err
	}
	return c.printStatus(status)
}

func (c *SyncCLI) slides(lyricsPath string, index int) error {
	body := map[string]any{"index": index}
	if lyricsPath != "" {
		lyrics, err := os.ReadFile(lyricsPath)
		if err != nil {
			return fmt.Errorf("failed to read lyrics: %w", err)
		}
		body["lyrics"] = string(lyrics)
	}

	var status SyncStatus
	if err := c.do(http.MethodPost, "/api/sync/slides", body, &status); err != nil {
		return err
	}
	return c.printStatus(status)
}

func (c *SyncCLI) status() error {
	var status SyncStatus
	if err := c.do(http.MethodGet, "/api/sync/status", nil, &status); err != nil {
		return err
	}
	return c.printStatus(status)
}

func (c *SyncCLI) events(sessionID, kind string, page int) error {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	if sessionID != "" {
		query.Set("session_id", sessionID)
	}
	if kind != "" {
		query.Set("kind", kind)
	}

	var result EventPage
	if err := c.do(http.MethodGet, "/api/sync/events?"+query.Encode(), nil, &result); err != nil {
		return err
	}

	if c.format == "json" {
		return printJSON(result)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tSESSION\tSLIDE\tSCORE\tDETAIL")
	for _, ev := range result.Events {
		slide, score, detail := "-", "-", ev.Message
		if ev.Kind == "jump" {
			slide = fmt.Sprintf("%d -> %d", ev.FromSlide+1, ev.ToSlide+1)
			score = fmt.Sprintf("%.2f", ev.Score)
			detail = ev.Phrase
		}
		session := ev.SessionID
		if len(session) > 8 && !c.verbose {
			session = session[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.Timestamp.Local().Format("15:04:05"), ev.Kind, session, slide, score, detail)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nPage %d of %d (%d events)\n", result.Page, result.TotalPages, result.Total)
	return nil
}

func (c *SyncCLI) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.hubURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.verbose {
		fmt.Fprintf(os.Stderr, "%s %s\n", method, req.URL)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *SyncCLI) printStatus(status SyncStatus) error {
	if c.format == "json" {
		return printJSON(status)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "State:\t%s\n", status.State)
	fmt.Fprintf(w, "Ready:\t%t\n", status.Ready)
	if status.Error != "" {
		fmt.Fprintf(w, "Error:\t%s\n", status.Error)
	}
	if status.SessionID != "" {
		fmt.Fprintf(w, "Session:\t%s\n", status.SessionID)
	}
	fmt.Fprintf(w, "Slide:\t%d of %d\n", status.CurrentSlide+1, status.SlideCount)
	return w.Flush()
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
