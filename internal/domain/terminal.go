package domain

import "encoding/json"

// SkillReport is the tool subset a terminal announces it can run.
type SkillReport struct {
	TerminalID   string   `json:"terminal_id"`
	SkillVersion int64    `json:"skill_version"`
	Tools        []string `json:"tools"`
}

// UtteranceRequest is what a terminal publishes to have text compiled.
type UtteranceRequest struct {
	RequestID  string   `json:"request_id,omitempty"`
	Text       string   `json:"text"`
	Tools      []string `json:"tools,omitempty"`
	HourFormat string   `json:"hour_format,omitempty"`
}

type InvokeRequest struct {
	RequestID string    `json:"request_id"`
	Tool      ToolName  `json:"tool"`
	Arguments Arguments `json:"arguments"`
}

type InvokeResult struct {
	RequestID string          `json:"request_id"`
	OK        bool            `json:"ok"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
}
