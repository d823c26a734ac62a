package models

import "time"

// --- Request Structs ---

// LoginRequest defines the expected body for the admin login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreatePromptRequest defines the body for creating a prompt. Both fields are required.
type CreatePromptRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// UpdatePromptRequest uses pointers so omitted fields are left unchanged.
type UpdatePromptRequest struct {
	Name    *string `json:"name,omitempty"`
	Content *string `json:"content,omitempty"`
}

// --- Response Structs ---

// AuthResponse defines the response body for successful authentication.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ListPromptsResponse lists all prompts together with the active pointer.
type ListPromptsResponse struct {
	Prompts  []Prompt `json:"prompts"`
	ActiveID *string  `json:"activeId"`
}

// ActivatePromptResponse is returned after switching the active prompt.
type ActivatePromptResponse struct {
	Success  bool   `json:"success"`
	ActiveID string `json:"activeId"`
}

// DialogUserInfo summarizes one user's conversation for the dashboard.
type DialogUserInfo struct {
	UserID        string    `json:"userId"`
	Username      string    `json:"username"`
	MessageCount  int       `json:"messageCount"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// ListDialogUsersResponse wraps the user summaries, newest activity first.
type ListDialogUsersResponse struct {
	Users []DialogUserInfo `json:"users"`
}

// DialogStatsResponse holds aggregate usage statistics.
type DialogStatsResponse struct {
	TotalUsers             int `json:"totalUsers"`
	TotalMessages          int `json:"totalMessages"`
	ActiveToday            int `json:"activeToday"`
	AverageMessagesPerUser int `json:"averageMessagesPerUser"`
}
