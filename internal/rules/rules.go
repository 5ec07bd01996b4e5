package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"intentc/internal/domain"
	"intentc/internal/normalize"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

const maxRulesBytes = 1 << 20

var ErrInvalidTable = errors.New("invalid rule table")

// Table is the versioned trigger table and the lexicons the pipeline reads.
// Immutable after Parse; safe for concurrent use.
type Table struct {
	Version         int               `yaml:"version"`
	Priority        []domain.ToolName `yaml:"priority"`
	GoverningVerbs  []string          `yaml:"governing_verbs"`
	LeadingFillers  []string          `yaml:"leading_fillers"`
	TrailingFillers []string          `yaml:"trailing_fillers"`
	Abbreviations   []string          `yaml:"abbreviations"`
	BodyMarkers     []string          `yaml:"body_markers"`
	Rules           []Rule            `yaml:"rules"`
	Slots           Slots             `yaml:"slots"`

	triggers []Trigger
	rank     map[domain.ToolName]int
	lex      Lexicons
}

type Rule struct {
	Tool     domain.ToolName `yaml:"tool"`
	Phrases  []string        `yaml:"phrases"`
	Patterns []PatternRule   `yaml:"patterns"`
}

type PatternRule struct {
	Regex       string `yaml:"regex"`
	Specificity int    `yaml:"specificity"`
}

type Slots struct {
	LocationPrepositions  []string `yaml:"location_prepositions"`
	LocationStops         []string `yaml:"location_stops"`
	Honorifics            []string `yaml:"honorifics"`
	Pronouns              []string `yaml:"pronouns"`
	RecipientStops        []string `yaml:"recipient_stops"`
	RecipientPrepositions []string `yaml:"recipient_prepositions"`
	ContactVerbs          []string `yaml:"contact_verbs"`
	ContactNoise          []string `yaml:"contact_noise"`
	MusicVerbs            []string `yaml:"music_verbs"`
	MusicLeading          []string `yaml:"music_leading"`
	MusicQuantifiers      []string `yaml:"music_quantifiers"`
	MusicTrailing         []string `yaml:"music_trailing"`
	MusicGeneric          []string `yaml:"music_generic"`
	ReminderLeadIns       []string `yaml:"reminder_lead_ins"`
	TitleFillers          []string `yaml:"title_fillers"`
	DayWords              []string `yaml:"day_words"`
	PMContext             []string `yaml:"pm_context"`
	AMContext             []string `yaml:"am_context"`
}

// Lexicons holds every phrase list of the table in compiled form.
type Lexicons struct {
	Verbs                 Lexicon
	Leading               Lexicon
	Trailing              Lexicon
	Abbreviations         Lexicon
	BodyMarkers           Lexicon
	LocationPrepositions  Lexicon
	LocationStops         Lexicon
	Honorifics            Lexicon
	Pronouns              Lexicon
	RecipientStops        Lexicon
	RecipientPrepositions Lexicon
	ContactVerbs          Lexicon
	ContactNoise          Lexicon
	MusicVerbs            Lexicon
	MusicLeading          Lexicon
	MusicQuantifiers      Lexicon
	MusicTrailing         Lexicon
	MusicGeneric          Lexicon
	ReminderLeadIns       Lexicon
	TitleFillers          Lexicon
	DayWords              Lexicon
	PMContext             Lexicon
	AMContext             Lexicon
}

// Trigger is one phrase or pattern that votes for a tool.
type Trigger struct {
	Tool        domain.ToolName
	Phrase      string
	Specificity int
	Pattern     bool
	re          *regexp.Regexp
}

// Find returns the first bounded occurrence of the trigger in s.
func (t Trigger) Find(s string) (int, int, bool) {
	if t.Pattern {
		loc := t.re.FindStringIndex(s)
		if loc == nil {
			return 0, 0, false
		}
		return loc[0], loc[1], true
	}
	for pos := 0; pos < len(s); pos++ {
		loc := t.re.FindStringIndex(s[pos:])
		if loc == nil || loc[1] == 0 {
			continue
		}
		if Bounded(s, pos, pos+loc[1]) {
			return pos, pos + loc[1], true
		}
	}
	return 0, 0, false
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// Default returns the embedded table, parsed once.
func Default() (*Table, error) {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = Parse(defaultRulesYAML)
	})
	return defaultTable, defaultErr
}

// Load returns the table at path, or the embedded table when path is empty.
func Load(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxRulesBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	if len(data) > maxRulesBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidTable, maxRulesBytes)
	}
	return Parse(data)
}

// Parse decodes and compiles a YAML rule table. Unknown keys are rejected.
func Parse(data []byte) (*Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var t Table
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) compile() error {
	if t.Version <= 0 {
		return fmt.Errorf("%w: version must be positive", ErrInvalidTable)
	}
	t.rank = make(map[domain.ToolName]int, len(t.Priority))
	for i, name := range t.Priority {
		if !name.Valid() {
			return fmt.Errorf("%w: unknown tool in priority: %s", ErrInvalidTable, name)
		}
		if _, dup := t.rank[name]; dup {
			return fmt.Errorf("%w: duplicate tool in priority: %s", ErrInvalidTable, name)
		}
		t.rank[name] = i
	}
	for _, name := range domain.ToolNames() {
		if _, ok := t.rank[name]; !ok {
			return fmt.Errorf("%w: priority is missing %s", ErrInvalidTable, name)
		}
	}

	t.triggers = t.triggers[:0]
	for _, r := range t.Rules {
		if !r.Tool.Valid() {
			return fmt.Errorf("%w: unknown tool in rules: %s", ErrInvalidTable, r.Tool)
		}
		if len(r.Phrases) == 0 && len(r.Patterns) == 0 {
			return fmt.Errorf("%w: rule for %s has no triggers", ErrInvalidTable, r.Tool)
		}
		for _, p := range r.Phrases {
			folded := strings.Join(strings.Fields(normalize.New(p).Folded), " ")
			if folded == "" {
				return fmt.Errorf("%w: empty phrase for %s", ErrInvalidTable, r.Tool)
			}
			re, err := PhraseRegexp(folded)
			if err != nil {
				return fmt.Errorf("%w: phrase %q: %v", ErrInvalidTable, p, err)
			}
			t.triggers = append(t.triggers, Trigger{
				Tool:        r.Tool,
				Phrase:      folded,
				Specificity: len(normalize.Fields(folded)),
				re:          re,
			})
		}
		for _, p := range r.Patterns {
			if p.Specificity <= 0 {
				return fmt.Errorf("%w: pattern %q needs a positive specificity", ErrInvalidTable, p.Regex)
			}
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return fmt.Errorf("%w: pattern %q: %v", ErrInvalidTable, p.Regex, err)
			}
			t.triggers = append(t.triggers, Trigger{
				Tool:        r.Tool,
				Phrase:      p.Regex,
				Specificity: p.Specificity,
				Pattern:     true,
				re:          re,
			})
		}
	}
	if len(t.GoverningVerbs) == 0 {
		return fmt.Errorf("%w: governing_verbs is empty", ErrInvalidTable)
	}

	lists := []struct {
		dst *Lexicon
		src []string
	}{
		{&t.lex.Verbs, t.GoverningVerbs},
		{&t.lex.Leading, t.LeadingFillers},
		{&t.lex.Trailing, t.TrailingFillers},
		{&t.lex.Abbreviations, t.Abbreviations},
		{&t.lex.BodyMarkers, t.BodyMarkers},
		{&t.lex.LocationPrepositions, t.Slots.LocationPrepositions},
		{&t.lex.LocationStops, t.Slots.LocationStops},
		{&t.lex.Honorifics, t.Slots.Honorifics},
		{&t.lex.Pronouns, t.Slots.Pronouns},
		{&t.lex.RecipientStops, t.Slots.RecipientStops},
		{&t.lex.RecipientPrepositions, t.Slots.RecipientPrepositions},
		{&t.lex.ContactVerbs, t.Slots.ContactVerbs},
		{&t.lex.ContactNoise, t.Slots.ContactNoise},
		{&t.lex.MusicVerbs, t.Slots.MusicVerbs},
		{&t.lex.MusicLeading, t.Slots.MusicLeading},
		{&t.lex.MusicQuantifiers, t.Slots.MusicQuantifiers},
		{&t.lex.MusicTrailing, t.Slots.MusicTrailing},
		{&t.lex.MusicGeneric, t.Slots.MusicGeneric},
		{&t.lex.ReminderLeadIns, t.Slots.ReminderLeadIns},
		{&t.lex.TitleFillers, t.Slots.TitleFillers},
		{&t.lex.DayWords, t.Slots.DayWords},
		{&t.lex.PMContext, t.Slots.PMContext},
		{&t.lex.AMContext, t.Slots.AMContext},
	}
	for _, l := range lists {
		lex, err := NewLexicon(l.src)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTable, err)
		}
		*l.dst = lex
	}
	return nil
}

// Triggers returns the compiled triggers in table order.
func (t *Table) Triggers() []Trigger { return append([]Trigger{}, t.triggers...) }

// Rank is the tool's position in the priority list; lower wins ties.
func (t *Table) Rank(tool domain.ToolName) int {
	if r, ok := t.rank[tool]; ok {
		return r
	}
	return len(t.rank)
}

func (t *Table) Lex() *Lexicons { return &t.lex }

// AbbreviationBefore reports whether the period at dot ends a known abbreviation.
func (t *Table) AbbreviationBefore(s string, dot int) bool {
	for _, a := range t.lex.Abbreviations.raw {
		start := dot - len(a)
		if start < 0 || s[start:dot] != a {
			continue
		}
		if start == 0 || !normalize.IsWordAt(s, start-1) {
			return true
		}
	}
	return false
}

// BodyStart locates an unquoted message body at or after from: the text after
// ": " or after a body marker phrase, whichever comes first. marker is where
// the colon or phrase begins, body where the body text begins.
func (t *Table) BodyStart(s string, from int) (marker, body int, ok bool) {
	marker, body = -1, -1
	if i := colonAt(s, from); i >= 0 {
		marker, body = i, i+1
	}
	if h, found := t.lex.BodyMarkers.Find(s, from); found && (marker < 0 || h.Start < marker) {
		marker, body = h.Start, h.End
	}
	return marker, body, marker >= 0
}

// colonAt finds a colon that introduces text, skipping clock times like 5:30.
func colonAt(s string, from int) int {
	for i := max(from, 0); i < len(s); i++ {
		if s[i] != ':' {
			continue
		}
		if i > 0 && isDigit(s[i-1]) && i+1 < len(s) && isDigit(s[i+1]) {
			continue
		}
		return i
	}
	return -1
}

func isDigit(b byte) bool { return '0' <= b && b <= '9' }
