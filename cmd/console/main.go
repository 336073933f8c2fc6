package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

type ConsoleConfig struct {
	APIBaseURL string
	Timeout    time.Duration
	Player     uuid.UUID
}

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:    30 * time.Second,
		Player:     uuid.New(),
	}
	if raw := os.Getenv("PLAYER_ID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid PLAYER_ID %q: %v\n", raw, err)
			os.Exit(1)
		}
		cfg.Player = id
	}

	client := &http.Client{
		Timeout: cfg.Timeout,
	}

	if !testConnection(client, cfg.APIBaseURL) {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	api := NewAPI(client, cfg.APIBaseURL, cfg.Player)
	p := tea.NewProgram(NewConsoleUI(cfg, api),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())

	// The event stream has no client timeout; it ends with the program.
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan SSEEvent, 16)
	go func() {
		err := listenToSSE(ctx, &http.Client{}, cfg.APIBaseURL, cfg.Player, events)
		close(events)
		p.Send(sseClosedMsg{err: err})
	}()
	go func() {
		for ev := range events {
			p.Send(sseEventMsg(ev))
		}
	}()

	_, err := p.Run()
	cancel()
	if leaveErr := api.Leave(); leaveErr != nil {
		fmt.Fprintf(os.Stderr, "Failed to leave: %v\n", leaveErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
