package services

import "errors"

// Pipeline failure kinds. Each maps to exactly one user-facing reply.
var (
	ErrDuplicateDelivery    = errors.New("message already being processed")
	ErrNoActivePrompt       = errors.New("no active prompt configured")
	ErrPromptNotFound       = errors.New("active prompt not found")
	ErrModelFailure         = errors.New("model request failed")
	ErrTranscriptionFailure = errors.New("voice transcription failed")
	ErrStorageFailure       = errors.New("storage failure")
	ErrDeliveryFailure      = errors.New("reply delivery failed")
)

// Admin API errors.
var (
	ErrValidation         = errors.New("input validation failed")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrCreatingToken      = errors.New("failed to create access token")
)
