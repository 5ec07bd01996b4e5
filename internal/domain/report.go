package domain

import "time"

type TextSpan struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// SegmentReport explains what happened to one segment.
type SegmentReport struct {
	Index       int       `json:"segment_index"`
	Span        TextSpan  `json:"span"`
	Tool        ToolName  `json:"tool,omitempty"`
	Trigger     string    `json:"trigger,omitempty"`
	Specificity int       `json:"specificity,omitempty"`
	Status      string    `json:"status"`
	Field       string    `json:"field,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Arguments   Arguments `json:"arguments,omitempty"`
	Repairs     []string  `json:"repairs,omitempty"`
}

const (
	ActionEmit     = "emit"
	ActionFallback = "fallback"
)

type Decision struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Report is the full trace of one compile: record, per-segment outcomes and decision.
type Report struct {
	RequestID    string          `json:"request_id,omitempty"`
	TerminalID   string          `json:"terminal_id,omitempty"`
	Utterance    string          `json:"utterance"`
	RulesVersion int             `json:"rules_version"`
	Record       OutputRecord    `json:"result"`
	Segments     []SegmentReport `json:"segments"`
	Decision     Decision        `json:"decision"`
	Meta         map[string]any  `json:"meta,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
