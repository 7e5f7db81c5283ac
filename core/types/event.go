package types

import "strings"

// Event is a typed record appended by a state transition and published with
// the transaction that produced it.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Attr returns the trimmed attribute value, or "" when it is absent.
func (e *Event) Attr(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return strings.TrimSpace(e.Attributes[key])
}
