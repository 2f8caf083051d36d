// Package action defines the record that crosses the process boundary and its
// wire encoding.
package action

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action is one user action handed from a producer process to the consumer.
// Actions are immutable: they are created, read, and deleted, never updated.
type Action struct {
	SubjectID   string    `json:"subject_id"`
	CompletedAt time.Time `json:"completed_at"`
	Source      string    `json:"source"`
}

// Encode serializes an Action for storage as a queue item payload.
func Encode(a Action) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode action: %w", err)
	}
	return data, nil
}

// Decode parses a single queue item payload.
func Decode(data []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, fmt.Errorf("decode action: %w", err)
	}
	return a, nil
}

// DecodeList parses the legacy single-blob representation: a JSON array of
// Actions.
func DecodeList(data []byte) ([]Action, error) {
	var actions []Action
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("decode action list: %w", err)
	}
	return actions, nil
}
