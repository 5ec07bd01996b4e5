package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"intentc/internal/domain"
)

func TestDefaultTableLoads(t *testing.T) {
	table, err := Default()
	if err != nil {
		t.Fatalf("default table: %v", err)
	}
	if table.Version <= 0 {
		t.Fatalf("version=%d, want positive", table.Version)
	}
	seen := map[domain.ToolName]bool{}
	for _, tr := range table.Triggers() {
		seen[tr.Tool] = true
	}
	for _, name := range domain.ToolNames() {
		if !seen[name] {
			t.Fatalf("no trigger for %s", name)
		}
	}
	if table.Rank(domain.ToolSearchContacts) >= table.Rank(domain.ToolGetWeather) {
		t.Fatalf("search_contacts must outrank get_weather")
	}
}

func TestTriggerSpecificityIsWordCount(t *testing.T) {
	table, err := Default()
	if err != nil {
		t.Fatalf("default table: %v", err)
	}
	for _, tr := range table.Triggers() {
		if tr.Phrase == "set an alarm for" && tr.Specificity != 4 {
			t.Fatalf("specificity=%d, want 4", tr.Specificity)
		}
	}
}

func TestParseRejectsBadTables(t *testing.T) {
	cases := map[string]string{
		"zero version":  "version: 0\n",
		"unknown key":   "version: 1\nbogus: true\n",
		"unknown tool":  "version: 1\npriority: [fly_kite]\n",
		"missing tools": "version: 1\npriority: [get_weather]\ngoverning_verbs: [set]\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalidTable) {
			t.Fatalf("%s: err=%v, want ErrInvalidTable", name, err)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := append([]byte{}, defaultRulesYAML...)
	data = append([]byte("# override\n"), data...)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	table, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, _ := Default()
	if table.Version != def.Version {
		t.Fatalf("version=%d, want %d", table.Version, def.Version)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLexiconMatching(t *testing.T) {
	lex, err := NewLexicon([]string{"and", "and then", "'s number", "Right Now"})
	if err != nil {
		t.Fatalf("lexicon: %v", err)
	}
	if n := lex.Prefix([]string{"and", "then", "set"}); n != 2 {
		t.Fatalf("prefix=%d, want 2", n)
	}
	if n := lex.Suffix([]string{"paris", "right", "now"}); n != 2 {
		t.Fatalf("suffix=%d, want 2", n)
	}
	hits := lex.FindAll("sandy's number and   then right now")
	want := []string{"'s number", "and then", "right now"}
	if len(hits) != len(want) {
		t.Fatalf("hits=%v, want %v", hits, want)
	}
	for i, h := range hits {
		if h.Phrase != want[i] {
			t.Fatalf("hit[%d]=%q, want %q", i, h.Phrase, want[i])
		}
	}
}

func TestTriggerFindRespectsBoundaries(t *testing.T) {
	table, err := Default()
	if err != nil {
		t.Fatalf("default table: %v", err)
	}
	var text Trigger
	for _, tr := range table.Triggers() {
		if tr.Phrase == "text" {
			text = tr
		}
	}
	if _, _, ok := text.Find("context matters"); ok {
		t.Fatalf("text matched inside context")
	}
	if s, e, ok := text.Find("please text bob"); !ok || s != 7 || e != 11 {
		t.Fatalf("find=(%d,%d,%v), want (7,11,true)", s, e, ok)
	}
}

func TestAbbreviationBefore(t *testing.T) {
	table, err := Default()
	if err != nil {
		t.Fatalf("default table: %v", err)
	}
	s := "text dr. patel"
	if !table.AbbreviationBefore(s, 7) {
		t.Fatalf("dr. should be an abbreviation")
	}
	s = "set it at 5 a.m. then go"
	if !table.AbbreviationBefore(s, len("set it at 5 a.m")) {
		t.Fatalf("a.m. should be an abbreviation")
	}
	if table.AbbreviationBefore("call hendr. now", len("call hendr")) {
		t.Fatalf("hendr. is not an abbreviation")
	}
}
