package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Command is a side-effect command waiting for a worker
type Command struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`

	// Source names the process that dispatched the command
	Source string `json:"source,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempts   int       `json:"attempts,omitempty"`
}

// NewCommand creates a command with a fresh request id
func NewCommand(text, source string, now time.Time) *Command {
	return &Command{
		RequestID:  uuid.New().String(),
		Text:       text,
		Source:     source,
		EnqueuedAt: now,
	}
}

// Validate checks the fields a worker needs
func (c *Command) Validate() error {
	if c.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	if _, err := uuid.Parse(c.RequestID); err != nil {
		return fmt.Errorf("invalid request_id: %w", err)
	}
	if c.Text == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}

// ToJSON converts the command to JSON bytes for Redis
func (c *Command) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

// FromJSON parses a command from JSON bytes
func FromJSON(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}
