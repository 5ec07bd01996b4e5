package classify

import (
	"intentc/internal/domain"
	"intentc/internal/normalize"
	"intentc/internal/rules"
)

// Match is the winning trigger for a segment. Start and End are folded byte
// offsets within the segment. A zero Tool means no trigger matched.
type Match struct {
	Tool        domain.ToolName
	Trigger     string
	Start       int
	End         int
	Specificity int
}

func (m Match) Matched() bool { return m.Tool != "" }

type Classifier struct {
	table *rules.Table
}

func New(table *rules.Table) *Classifier {
	return &Classifier{table: table}
}

// Classify picks the most specific trigger found in the segment, breaking
// ties by the table's priority order and then by earliest position. When
// allowed is non-empty, only those tools are considered.
func (c *Classifier) Classify(seg domain.Segment, allowed []domain.ToolName) Match {
	text := Mask(c.table, seg.Form.Folded)
	var best Match
	found := false
	for _, tr := range c.table.Triggers() {
		if !permitted(tr.Tool, allowed) {
			continue
		}
		start, end, ok := tr.Find(text)
		if !ok {
			continue
		}
		cand := Match{Tool: tr.Tool, Trigger: tr.Phrase, Start: start, End: end, Specificity: tr.Specificity}
		if !found || c.better(cand, best) {
			best = cand
			found = true
		}
	}
	return best
}

func (c *Classifier) better(a, b Match) bool {
	if a.Specificity != b.Specificity {
		return a.Specificity > b.Specificity
	}
	if ra, rb := c.table.Rank(a.Tool), c.table.Rank(b.Tool); ra != rb {
		return ra < rb
	}
	return a.Start < b.Start
}

func permitted(tool domain.ToolName, allowed []domain.ToolName) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == tool {
			return true
		}
	}
	return false
}

// Mask blanks out quoted spans and everything after a message-body marker,
// keeping byte offsets intact.
func Mask(table *rules.Table, s string) string {
	b := []byte(s)
	for _, q := range normalize.QuoteSpans(s) {
		blank(b, q.Open, q.Close)
	}
	if _, at, ok := table.BodyStart(string(b), 0); ok {
		blank(b, at, len(b))
	}
	return string(b)
}

func blank(b []byte, from, to int) {
	for i := from; i < to && i < len(b); i++ {
		b[i] = ' '
	}
}
