package normalize

import "testing"

func TestNewFoldsAndKeepsOriginal(t *testing.T) {
	f := New("Text Emma SAYING Good Night")
	if f.Folded != "text emma saying good night" {
		t.Fatalf("folded=%q", f.Folded)
	}
	if got := f.Span(5, 9); got != "Emma" {
		t.Fatalf("span=%q, want Emma", got)
	}
}

func TestNewIsIdempotent(t *testing.T) {
	inputs := []string{
		"What's the Weather in MÜNCHEN?",
		"Straße nach Köln",
		"Text Łukasz ‘see you’",
		"",
		"ΣΊΣΥΦΟΣ",
	}
	for _, in := range inputs {
		once := New(in).Folded
		twice := New(once).Folded
		if once != twice {
			t.Fatalf("fold(%q)=%q, refold=%q", in, once, twice)
		}
	}
}

func TestSpanAcrossExpandingFold(t *testing.T) {
	f := New("Große Straße now")
	// ß folds to "ss", so folded offsets drift from original offsets.
	idx := len("grosse strasse")
	if got := f.Span(0, idx); got != "Große Straße" {
		t.Fatalf("span=%q, want Große Straße", got)
	}
	if got := f.Span(idx+1, f.Len()); got != "now" {
		t.Fatalf("tail=%q, want now", got)
	}
}

func TestSliceRebases(t *testing.T) {
	f := New("Play Jazz, then Text ÉMILE")
	start := len("play jazz, then ")
	sub := f.Slice(start, f.Len())
	if sub.Original != "Text ÉMILE" {
		t.Fatalf("original=%q", sub.Original)
	}
	if sub.Folded != "text émile" {
		t.Fatalf("folded=%q", sub.Folded)
	}
	if got := sub.Span(5, sub.Len()); got != "ÉMILE" {
		t.Fatalf("span=%q, want ÉMILE", got)
	}
}

func TestCurlyApostropheFolds(t *testing.T) {
	f := New("What’s up")
	if f.Folded != "what's up" {
		t.Fatalf("folded=%q", f.Folded)
	}
	if got := f.Span(0, 6); got != "What’s" {
		t.Fatalf("span=%q", got)
	}
}

func TestEmptyForm(t *testing.T) {
	f := New("")
	if !f.Empty() || f.Len() != 0 || f.Span(0, 3) != "" {
		t.Fatalf("empty form misbehaves: %+v", f)
	}
}
