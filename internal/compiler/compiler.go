package compiler

import (
	"errors"
	"fmt"
	"math"
	"time"

	"intentc/internal/classify"
	"intentc/internal/domain"
	"intentc/internal/extract"
	"intentc/internal/normalize"
	"intentc/internal/rules"
	"intentc/internal/schema"
	"intentc/internal/segment"
	"intentc/internal/validate"
)

type Options struct {
	HourFormat domain.HourFormat
	// MinConfidence is the lowest confidence that still emits directly.
	MinConfidence float64
}

// Compiler runs the whole pipeline. It holds only read-only tables and is
// safe for concurrent use.
type Compiler struct {
	table      *rules.Table
	registry   *schema.Registry
	segmenter  *segment.Segmenter
	classifier *classify.Classifier
	extractor  *extract.Extractor
	validator  *validate.Validator
	opts       Options
}

func New(table *rules.Table, registry *schema.Registry, opts Options) *Compiler {
	if opts.HourFormat == "" {
		opts.HourFormat = domain.Hour24
	}
	return &Compiler{
		table:      table,
		registry:   registry,
		segmenter:  segment.New(table),
		classifier: classify.New(table),
		extractor:  extract.New(table, extract.Options{HourFormat: opts.HourFormat}),
		validator:  validate.New(registry, validate.Options{HourFormat: opts.HourFormat}),
		opts:       opts,
	}
}

// WithHourFormat returns a compiler sharing the same tables but emitting
// alarm hours in format.
func (c *Compiler) WithHourFormat(format domain.HourFormat) *Compiler {
	if format == "" || format == c.opts.HourFormat {
		return c
	}
	opts := c.opts
	opts.HourFormat = format
	return New(c.table, c.registry, opts)
}

func (c *Compiler) Table() *rules.Table            { return c.table }
func (c *Compiler) Registry() *schema.Registry     { return c.registry }
func (c *Compiler) Validator() *validate.Validator { return c.validator }
func (c *Compiler) HourFormat() domain.HourFormat  { return c.opts.HourFormat }

// Compile turns an utterance into an ordered list of validated calls. It
// never fails: segments that cannot be compiled are reported and dropped,
// lowering the confidence.
func (c *Compiler) Compile(utterance string, allowed []domain.ToolName) domain.Report {
	started := time.Now()
	report := domain.Report{
		Utterance:    utterance,
		RulesVersion: c.table.Version,
		Segments:     []domain.SegmentReport{},
		CreatedAt:    started.UTC(),
	}
	calls := []domain.ToolCall{}
	ctx := extract.Context{}
	total := 0

	for seg := range c.segmenter.Segments(normalize.New(utterance)) {
		total++
		sr := domain.SegmentReport{
			Index: seg.Index,
			Span:  domain.TextSpan{Text: seg.Text, Start: seg.Start, End: seg.End},
		}
		call, err := c.compileSegment(seg, allowed, ctx, &sr)
		if err != nil {
			sr.Status = domain.StatusOf(err)
			sr.Reason = err.Error()
			var fe *domain.FieldError
			if errors.As(err, &fe) {
				sr.Field = fe.Field
			}
		} else {
			sr.Status = domain.StatusOK
			sr.Arguments = call.Arguments.Clone()
			calls = append(calls, call)
			ctx = ctx.Observe(call)
		}
		report.Segments = append(report.Segments, sr)
	}

	confidence := 0.0
	if total > 0 && len(calls) > 0 {
		confidence = round(float64(len(calls))/float64(total), 4)
	}
	switch {
	case len(calls) == 0:
		report.Decision = domain.Decision{Action: domain.ActionFallback, Reason: "no extraction possible"}
	case confidence < c.opts.MinConfidence:
		report.Decision = domain.Decision{
			Action: domain.ActionFallback,
			Reason: fmt.Sprintf("confidence %.4f below %.4f: %d of %d segments compiled", confidence, c.opts.MinConfidence, len(calls), total),
		}
	default:
		report.Decision = domain.Decision{Action: domain.ActionEmit, Reason: fmt.Sprintf("%d of %d segments compiled", len(calls), total)}
	}
	report.Record = domain.OutputRecord{
		Calls:       calls,
		Confidence:  confidence,
		TotalTimeMS: RoundMillis(time.Since(started)),
	}
	return report
}

func (c *Compiler) compileSegment(seg domain.Segment, allowed []domain.ToolName, ctx extract.Context, sr *domain.SegmentReport) (domain.ToolCall, error) {
	m := c.classifier.Classify(seg, allowed)
	if !m.Matched() {
		return domain.ToolCall{}, domain.ErrUnclassified
	}
	sr.Tool = m.Tool
	sr.Trigger = m.Trigger
	sr.Specificity = m.Specificity

	args, err := c.extractor.Extract(seg, m, ctx)
	if err != nil {
		return domain.ToolCall{}, err
	}
	call, notes, err := c.validator.Validate(domain.ToolCall{Tool: m.Tool, Arguments: args, Source: seg})
	sr.Repairs = notes
	if err != nil {
		sr.Arguments = args
		return domain.ToolCall{}, err
	}
	return call, nil
}

// RoundMillis renders d in milliseconds with microsecond precision.
func RoundMillis(d time.Duration) float64 {
	return round(float64(d.Microseconds())/1000.0, 3)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
