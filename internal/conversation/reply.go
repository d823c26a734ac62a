package conversation

import "strings"

// replyMarkers open a new speaker turn in a model reply that goes on to
// imagine the rest of the dialogue.
var replyMarkers = []string{"👋", "🤔", "💡", "⚠️", "✅", "❌", "❓"}

// FirstReply returns the part of text before the first blank line that is
// directly followed by a reply marker, trimmed. Text without such a break is
// returned trimmed and otherwise unchanged.
func FirstReply(text string) string {
	rest := text
	offset := 0
	for {
		i := strings.Index(rest, "\n\n")
		if i < 0 {
			return strings.TrimSpace(text)
		}
		after := rest[i+2:]
		for _, m := range replyMarkers {
			if strings.HasPrefix(after, m) {
				if head := strings.TrimSpace(text[:offset+i]); head != "" {
					return head
				}
				break
			}
		}
		offset += i + 2
		rest = after
	}
}
