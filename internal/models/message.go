package models

// InboundMessage is a text message (or command) received from a chat user.
type InboundMessage struct {
	// MessageID identifies the delivery for deduplication. Retries carry the same value.
	MessageID   string
	UserID      string
	ChatID      string
	DisplayName string
	Text        string
}

// InboundVoice is a voice message whose audio has already been downloaded.
// Audio is empty when the download failed.
type InboundVoice struct {
	MessageID   string
	UserID      string
	ChatID      string
	DisplayName string
	Audio       []byte
	MimeType    string
}

// GenerationOptions bounds a single model completion request.
type GenerationOptions struct {
	MaxOutputTokens int32
	Temperature     float32
}
