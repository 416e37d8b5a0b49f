package assist

import (
	"encoding/json"
	"strings"
)

// Entry is one piece of assistive text: the advice body plus optional
// passage highlights keyed by passage id.
type Entry struct {
	Advice   string            `json:"advice"`
	Passages map[string]string `json:"passages,omitempty"`
	Source   string            `json:"source,omitempty"`
}

// FallbackAdvice is stored when a generation call fails so the client
// always has something to display.
const FallbackAdvice = "Assistance is temporarily unavailable for this question. Please try again later."

// ParseResponse interprets the collaborator's raw output. Models usually
// return JSON {advice, passages}, often wrapped in a markdown fence;
// anything that does not parse is treated as plain advice with no
// highlighted passages.
func ParseResponse(raw string) Entry {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var entry Entry
	if err := json.Unmarshal([]byte(clean), &entry); err == nil && entry.Advice != "" {
		entry.Source = ""
		return Entry{Advice: entry.Advice, Passages: entry.Passages}
	}
	return Entry{Advice: clean}
}
