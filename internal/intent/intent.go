// Package intent decides whether a chat message is a weather lookup.
package intent

import (
	"regexp"
	"strings"
)

// Kind names the handler a message is routed to.
type Kind string

const (
	KindChat    Kind = "chat"
	KindWeather Kind = "weather"
)

// Intent is the routing decision for one message. City is set only for KindWeather.
type Intent struct {
	Kind Kind
	City string
}

var weatherPattern = regexp.MustCompile(`(?i)weather in ([a-zA-Z\s]+)`)

// Classify routes message by the first "weather in <letters>" phrase it contains.
func Classify(message string) Intent {
	m := weatherPattern.FindStringSubmatch(message)
	if m == nil {
		return Intent{Kind: KindChat}
	}
	city := strings.TrimSpace(m[1])
	if city == "" {
		return Intent{Kind: KindChat}
	}
	return Intent{Kind: KindWeather, City: city}
}
