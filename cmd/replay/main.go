// Command replay sends recorded login events to a running gate and prints
// each decision, or generates a deterministic set of test-mode events.
//
// Usage:
//
//	go run ./cmd/replay -generate data/events.json -n 50
//	go run ./cmd/replay -file data/events.json -url http://localhost:8080 [-token JWT]
//
// Generated events carry TEST_MODE=true and emails containing "approve",
// "decline" or "verify", so a provider sandbox returns a known verdict.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"lumina/login-gate/internal/api"
	"lumina/login-gate/internal/domain"
)

func main() {
	file := flag.String("file", "data/events.json", "JSON array of login events to replay")
	baseURL := flag.String("url", "http://localhost:8080", "gate base URL")
	token := flag.String("token", "", "bearer token for /api/v1")
	generate := flag.String("generate", "", "write generated events to this path instead of replaying")
	n := flag.Int("n", 30, "number of events to generate")
	seed := flag.Int64("seed", 42, "generator seed")
	flag.Parse()

	if *generate != "" {
		if err := writeEvents(*generate, generateEvents(*seed, *n)); err != nil {
			fmt.Fprintf(os.Stderr, "generate error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %d events to %s\n", *n, *generate)
		return
	}

	events, err := readEvents(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read error: %v\n", err)
		os.Exit(1)
	}

	client := &replayClient{
		baseURL: strings.TrimRight(*baseURL, "/"),
		token:   *token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}

	var failed int
	for i, ev := range events {
		resp, err := client.post(context.Background(), ev)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "event %d: %v\n", i, err)
			continue
		}
		fmt.Println(formatDecision(i, ev, resp))
	}
	fmt.Printf("replayed %d events, %d failed\n", len(events), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func readEvents(path string) ([]domain.LoginEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var events []domain.LoginEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return events, nil
}

func writeEvents(path string, events []domain.LoginEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

// replayClient posts events to the gate's post-login endpoint.
type replayClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *replayClient) post(ctx context.Context, ev domain.LoginEvent) (*api.PostLoginResponse, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/post-login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var env struct {
		Data api.PostLoginResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &env.Data, nil
}

func formatDecision(i int, ev domain.LoginEvent, resp *api.PostLoginResponse) string {
	account := "-"
	if ev.User != nil && ev.User.UserID != "" {
		account = ev.User.UserID
	}
	cmds := make([]string, 0, len(resp.Commands))
	for _, c := range resp.Commands {
		cmds = append(cmds, c.Type)
	}
	return fmt.Sprintf("%3d  %-24s  %-8s  %s  [%s]",
		i, account, resp.Outcome, resp.DecisionID, strings.Join(cmds, ","))
}
