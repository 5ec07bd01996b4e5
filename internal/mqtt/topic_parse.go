package mqtt

import (
	"fmt"
	"strings"
)

// TerminalTopic is a parsed {prefix}/terminal/{terminalId}/{kind}[/{requestId}] topic.
type TerminalTopic struct {
	TerminalID string
	Kind       string
	RequestID  string
}

func ParseTerminalTopic(topic, prefix string) (TerminalTopic, error) {
	parts := strings.Split(topic, "/")
	prefixParts := strings.Split(prefix, "/")
	if len(parts) < len(prefixParts)+3 {
		return TerminalTopic{}, fmt.Errorf("invalid topic: %s", topic)
	}
	for i, p := range prefixParts {
		if parts[i] != p {
			return TerminalTopic{}, fmt.Errorf("topic prefix mismatch: %s", topic)
		}
	}
	rest := parts[len(prefixParts):]
	if rest[0] != "terminal" || rest[1] == "" {
		return TerminalTopic{}, fmt.Errorf("invalid topic pattern: %s", topic)
	}
	out := TerminalTopic{TerminalID: rest[1], Kind: rest[2]}
	if len(rest) > 3 {
		out.RequestID = rest[len(rest)-1]
	}
	return out, nil
}

func ParseTerminalID(topic, prefix string) (string, error) {
	t, err := ParseTerminalTopic(topic, prefix)
	if err != nil {
		return "", err
	}
	return t.TerminalID, nil
}

func ParseRequestID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
