package services

import (
	"errors"
	"fmt"
	"html"
)

// User-facing texts, sent with HTML formatting.
const (
	replyNoActivePrompt = "⚠️ No active prompt configured. Please contact administrator."
	replyPromptNotFound = "⚠️ Active prompt not found. Please contact administrator."
	replyModelFailure   = "❌ Sorry, an error occurred processing your message. Please try again."
	replyTranscription  = "❌ Sorry, I couldn't recognize your voice message. Please try again or type your question."
	replyGenericFailure = "❌ Sorry, something went wrong on our side. Please try again later."
	replyHistoryCleared = "✅ Your conversation history has been cleared. Let's start fresh!"
	replyClearFailed    = "❌ Failed to clear history. Please try again."
	replyUnknownCommand = "🤔 Unknown command. Send /help to see what I can do."
	replyHelp           = "🆘 Available Commands:\n\n" +
		"/start - Welcome message and introduction\n" +
		"/clear - Clear your conversation history\n" +
		"/help - Show this help message\n\n" +
		"Just send me any question to get started!"
)

func greeting(firstName string) string {
	if firstName == "" {
		firstName = "there"
	}
	return fmt.Sprintf("👋 Hello %s!\n\n"+
		"I'm your AI tutor for depilation techniques. Ask me anything about:\n"+
		"• Waxing methods\n"+
		"• Sugaring techniques\n"+
		"• Skin preparation\n"+
		"• Client care\n"+
		"• Product recommendations\n\n"+
		"Just send me your question!", html.EscapeString(firstName))
}

// replyFor picks the single message a user sees for a failed pipeline run.
// The boolean is false for failures that stay silent.
func replyFor(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrDuplicateDelivery):
		return "", false
	case errors.Is(err, ErrNoActivePrompt):
		return replyNoActivePrompt, true
	case errors.Is(err, ErrPromptNotFound):
		return replyPromptNotFound, true
	case errors.Is(err, ErrModelFailure):
		return replyModelFailure, true
	case errors.Is(err, ErrTranscriptionFailure):
		return replyTranscription, true
	default:
		return replyGenericFailure, true
	}
}
