package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

type snapshot struct {
	ID             string          `json:"id"`
	Step           string          `json:"step"`
	ElapsedSeconds int             `json:"elapsedSeconds"`
	Paused         bool            `json:"paused"`
	Closed         bool            `json:"closed"`
	Outcome        string          `json:"outcome"`
	ErrorCode      string          `json:"errorCode"`
	Error          string          `json:"error"`
	Warning        string          `json:"warning"`
	Instruction    json.RawMessage `json:"instruction"`
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Session API base URL")
	poll := flag.Duration("poll", 500*time.Millisecond, "Polling interval")
	cancelAfter := flag.Duration("cancel-after", 0, "Cancel the session after this long (0 = run to completion)")
	timeout := flag.Duration("timeout", 3*time.Minute, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}

	var snap snapshot
	if err := call(ctx, client, http.MethodPost, *server+"/v1/sessions", http.StatusCreated, &snap); err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}
	log.Printf("Session %s opened", snap.ID)

	started := time.Now()
	lastStep := ""
	lastElapsed := -1

	for !snap.Closed {
		if snap.Step != lastStep {
			log.Printf("→ %s", snap.Step)
			lastStep = snap.Step
		}
		if snap.Step == "recording" && snap.ElapsedSeconds != lastElapsed {
			log.Printf("  recording %ds", snap.ElapsedSeconds)
			lastElapsed = snap.ElapsedSeconds
		}
		if snap.Paused {
			log.Printf("Session paused: %s (%s)", snap.Error, snap.ErrorCode)
			break
		}
		if *cancelAfter > 0 && time.Since(started) >= *cancelAfter {
			log.Printf("Cancelling after %v", *cancelAfter)
			if err := call(ctx, client, http.MethodDelete, *server+"/v1/sessions/current", http.StatusOK, &snap); err != nil {
				log.Fatalf("Failed to cancel: %v", err)
			}
			break
		}

		select {
		case <-ctx.Done():
			log.Fatalf("Timed out waiting for session: %v", ctx.Err())
		case <-time.After(*poll):
		}
		if err := call(ctx, client, http.MethodGet, *server+"/v1/sessions/current", http.StatusOK, &snap); err != nil {
			log.Fatalf("Failed to poll session: %v", err)
		}
	}

	if !snap.Closed {
		if err := call(ctx, client, http.MethodDelete, *server+"/v1/sessions/current", http.StatusOK, &snap); err != nil {
			log.Fatalf("Failed to close paused session: %v", err)
		}
	}
	if snap.Warning != "" {
		log.Printf("Warning: %s", snap.Warning)
	}
	log.Printf("Session finished: outcome=%s step=%s", snap.Outcome, snap.Step)

	var report json.RawMessage
	if err := call(ctx, client, http.MethodGet, *server+"/v1/reports/"+snap.ID, http.StatusOK, &report); err != nil {
		log.Fatalf("Failed to fetch report: %v", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, report, "", "  "); err != nil {
		log.Fatalf("Invalid report: %v", err)
	}
	fmt.Println(pretty.String())
}

func call(ctx context.Context, client *http.Client, method, url string, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		var e apiError
		if json.Unmarshal(body, &e) == nil && e.Code != "" {
			return fmt.Errorf("HTTP %d %s: %s", resp.StatusCode, e.Code, e.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.Unmarshal(body, out)
}
