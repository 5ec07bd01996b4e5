package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnclassified         = errors.New("unclassified segment")
	ErrExtractionIncomplete = errors.New("extraction incomplete")
	ErrSchemaViolation      = errors.New("schema violation")
	ErrImplausibleValue     = errors.New("implausible value")
)

// FieldError reports a failure tied to one slot of one tool.
type FieldError struct {
	Kind   error
	Tool   ToolName
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	msg := fmt.Sprintf("%v: %s.%s", e.Kind, e.Tool, e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *FieldError) Unwrap() error { return e.Kind }

func Incomplete(tool ToolName, field, reason string) error {
	return &FieldError{Kind: ErrExtractionIncomplete, Tool: tool, Field: field, Reason: reason}
}

func Violation(tool ToolName, field, reason string) error {
	return &FieldError{Kind: ErrSchemaViolation, Tool: tool, Field: field, Reason: reason}
}

func Implausible(tool ToolName, field string, value any, reason string) error {
	return &FieldError{Kind: ErrImplausibleValue, Tool: tool, Field: field, Value: value, Reason: reason}
}

// Segment statuses reported per segment.
const (
	StatusOK                   = "ok"
	StatusUnclassified         = "unclassified"
	StatusExtractionIncomplete = "extraction_incomplete"
	StatusSchemaViolation      = "schema_violation"
	StatusImplausibleValue     = "implausible_value"
)

// StatusOf maps a per-segment error onto its report status.
func StatusOf(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrUnclassified):
		return StatusUnclassified
	case errors.Is(err, ErrExtractionIncomplete):
		return StatusExtractionIncomplete
	case errors.Is(err, ErrImplausibleValue):
		return StatusImplausibleValue
	default:
		return StatusSchemaViolation
	}
}
