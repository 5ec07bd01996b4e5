package domain

import (
	"fmt"
	"strings"

	"intentc/internal/normalize"
)

// ToolName identifies one tool of the closed vocabulary.
type ToolName string

const (
	ToolGetWeather     ToolName = "get_weather"
	ToolSetAlarm       ToolName = "set_alarm"
	ToolSetTimer       ToolName = "set_timer"
	ToolSendMessage    ToolName = "send_message"
	ToolCreateReminder ToolName = "create_reminder"
	ToolSearchContacts ToolName = "search_contacts"
	ToolPlayMusic      ToolName = "play_music"
)

var toolNames = []ToolName{
	ToolGetWeather,
	ToolSetAlarm,
	ToolSetTimer,
	ToolSendMessage,
	ToolCreateReminder,
	ToolSearchContacts,
	ToolPlayMusic,
}

// ToolNames returns every known tool in declaration order.
func ToolNames() []ToolName {
	return append([]ToolName{}, toolNames...)
}

func (t ToolName) Valid() bool {
	for _, n := range toolNames {
		if n == t {
			return true
		}
	}
	return false
}

// ParseToolNames turns a list of raw names into tool names, rejecting unknown ones.
func ParseToolNames(raw []string) ([]ToolName, error) {
	out := make([]ToolName, 0, len(raw))
	for _, r := range raw {
		name := ToolName(strings.TrimSpace(r))
		if name == "" {
			continue
		}
		if !name.Valid() {
			return nil, fmt.Errorf("unknown tool: %s", name)
		}
		out = append(out, name)
	}
	return out, nil
}

// HourFormat selects the integer representation of alarm hours.
type HourFormat string

const (
	Hour24 HourFormat = "24h"
	Hour12 HourFormat = "12h"
)

func ParseHourFormat(s string) (HourFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "24", "24h":
		return Hour24, nil
	case "12", "12h":
		return Hour12, nil
	default:
		return "", fmt.Errorf("invalid hour format: %s", s)
	}
}

// Segment is a span of the utterance carrying one intent.
// Start and End are byte offsets into the original utterance.
type Segment struct {
	Index int            `json:"index"`
	Start int            `json:"start"`
	End   int            `json:"end"`
	Text  string         `json:"text"`
	Form  normalize.Form `json:"-"`
}

// Arguments maps slot names to typed values.
type Arguments map[string]any

func (a Arguments) Clone() Arguments {
	if a == nil {
		return nil
	}
	out := make(Arguments, len(a))
	for k, v := range a {
		if items, ok := v.([]any); ok {
			v = append([]any{}, items...)
		}
		out[k] = v
	}
	return out
}

type ToolCall struct {
	Tool      ToolName  `json:"name"`
	Arguments Arguments `json:"arguments"`
	Source    Segment   `json:"-"`
}

// OutputRecord is the wire result of one compile.
type OutputRecord struct {
	Calls       []ToolCall `json:"function_calls"`
	TotalTimeMS float64    `json:"total_time_ms"`
	Confidence  float64    `json:"confidence"`
	Source      string     `json:"source,omitempty"`
}

const (
	SourceRules    = "rules"
	SourceFallback = "fallback"
)
