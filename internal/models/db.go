package models

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is a single conversation turn. It is never modified after being appended.
type Message struct {
	Role Role
	Text string
}

// messagePart and messageJSON mirror the on-disk format of the dialog files,
// which stores each turn the way the Gemini API expects contents.
type messagePart struct {
	Text string `json:"text"`
}

type messageJSON struct {
	Role  Role          `json:"role"`
	Parts []messagePart `json:"parts"`
}

// MarshalJSON encodes the message as {"role":..., "parts":[{"text":...}]}.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{Role: m.Role, Parts: []messagePart{{Text: m.Text}}})
}

// UnmarshalJSON accepts the parts format; multiple parts are concatenated.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	m.Text = ""
	for _, p := range raw.Parts {
		m.Text += p.Text
	}
	return nil
}

// Conversation is the stored message log of one user.
type Conversation struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"username"`
	Messages    []Message `json:"messages"`
	// LastTrimAt is stamped on creation, on every trim and on clear.
	LastTrimAt time.Time `json:"lastCleanup"`
	// UpdatedAt is stamped on every persist. Zero for records written before it existed.
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Prompt is an administrator-authored system instruction.
type Prompt struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
