package skills

import (
	"testing"
	"time"

	"intentc/internal/domain"
)

func TestSetToolsVersioning(t *testing.T) {
	r := NewRegistry(time.Minute)
	if !r.SetTools("t1", 2, []domain.ToolName{domain.ToolSetAlarm}) {
		t.Fatalf("first snapshot rejected")
	}
	if r.SetTools("t1", 1, []domain.ToolName{domain.ToolPlayMusic}) {
		t.Fatalf("older snapshot accepted")
	}
	if r.SetTools("t1", 0, []domain.ToolName{domain.ToolPlayMusic}) {
		t.Fatalf("unversioned snapshot accepted after a versioned one")
	}
	got := r.Tools("t1")
	if len(got) != 1 || got[0] != domain.ToolSetAlarm {
		t.Fatalf("tools=%v, want [set_alarm]", got)
	}
	if !r.SetTools("t1", 3, []domain.ToolName{domain.ToolPlayMusic, domain.ToolSetTimer}) {
		t.Fatalf("newer snapshot rejected")
	}
	state, ok := r.GetState("t1")
	if !ok || state.SkillVersion != 3 || len(state.Tools) != 2 {
		t.Fatalf("state=%+v ok=%v", state, ok)
	}
}

func TestToolsOfflineAndExpired(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.SetTools("t1", 1, []domain.ToolName{domain.ToolSetAlarm})
	r.SetOnline("t1", false)
	if got := r.Tools("t1"); got != nil {
		t.Fatalf("offline tools=%v, want nil", got)
	}
	if got := r.Tools("missing"); got != nil {
		t.Fatalf("unknown tools=%v, want nil", got)
	}

	r.mu.Lock()
	state := r.data["t1"]
	state.Online = true
	state.LastUpdated = time.Now().Add(-2 * time.Minute)
	r.data["t1"] = state
	r.mu.Unlock()
	if got := r.Tools("t1"); got != nil {
		t.Fatalf("expired tools=%v, want nil", got)
	}
	if _, ok := r.GetState("t1"); ok {
		t.Fatalf("expired state returned")
	}
}

func TestToolsReturnsCopy(t *testing.T) {
	r := NewRegistry(0)
	r.SetTools("t1", 1, []domain.ToolName{domain.ToolSetAlarm})
	got := r.Tools("t1")
	got[0] = domain.ToolPlayMusic
	if r.Tools("t1")[0] != domain.ToolSetAlarm {
		t.Fatalf("registry mutated through returned slice")
	}
}

func TestListOnlineStatesSorted(t *testing.T) {
	r := NewRegistry(time.Minute)
	r.SetTools("b", 1, nil)
	r.SetTools("a", 1, nil)
	r.SetOnline("c", false)
	states := r.ListOnlineStates()
	if len(states) != 2 || states[0].TerminalID != "a" || states[1].TerminalID != "b" {
		t.Fatalf("states=%+v", states)
	}
}
