package skills

import (
	"slices"
	"strings"
	"sync"
	"time"

	"intentc/internal/domain"
)

// TerminalState is the last known tool subset and presence of one terminal.
type TerminalState struct {
	TerminalID   string            `json:"terminal_id"`
	SkillVersion int64             `json:"skill_version"`
	Tools        []domain.ToolName `json:"tools"`
	Online       bool              `json:"online"`
	LastUpdated  time.Time         `json:"last_updated"`
}

type Registry struct {
	mu       sync.RWMutex
	data     map[string]TerminalState
	skillTTL time.Duration
}

func NewRegistry(skillTTL time.Duration) *Registry {
	if skillTTL <= 0 {
		skillTTL = 60 * time.Second
	}
	return &Registry{
		data:     make(map[string]TerminalState),
		skillTTL: skillTTL,
	}
}

// SetTools stores a terminal's tool subset and reports whether it was accepted.
func (r *Registry) SetTools(terminalID string, skillVersion int64, tools []domain.ToolName) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.data[terminalID]
	// Only accept newer skill versions once the terminal reports a versioned snapshot.
	if current.SkillVersion > 0 && skillVersion > 0 && skillVersion < current.SkillVersion {
		return false
	}
	if current.SkillVersion > 0 && skillVersion == 0 {
		return false
	}
	if skillVersion == 0 {
		skillVersion = current.SkillVersion
	}

	r.data[terminalID] = TerminalState{
		TerminalID:   terminalID,
		SkillVersion: skillVersion,
		Tools:        slices.Clone(tools),
		Online:       true,
		LastUpdated:  time.Now(),
	}
	return true
}

func (r *Registry) SetOnline(terminalID string, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.data[terminalID]
	state.TerminalID = terminalID
	state.Online = online
	state.LastUpdated = time.Now()
	r.data[terminalID] = state
}

func (r *Registry) GetState(terminalID string) (TerminalState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.data[terminalID]
	if !ok || r.isExpired(state) {
		return TerminalState{}, false
	}
	out := state
	out.Tools = slices.Clone(state.Tools)
	return out, true
}

// Tools returns the subset an online terminal reported. A nil result means
// the terminal is unknown, offline or stale, and callers should allow every tool.
func (r *Registry) Tools(terminalID string) []domain.ToolName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.data[terminalID]
	if !ok || !state.Online || r.isExpired(state) || len(state.Tools) == 0 {
		return nil
	}
	return slices.Clone(state.Tools)
}

func (r *Registry) ListOnlineStates() []TerminalState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TerminalState, 0, len(r.data))
	for _, state := range r.data {
		if strings.TrimSpace(state.TerminalID) == "" {
			continue
		}
		if !state.Online || r.isExpired(state) {
			continue
		}
		item := state
		item.Tools = slices.Clone(state.Tools)
		out = append(out, item)
	}
	slices.SortFunc(out, func(a, b TerminalState) int { return strings.Compare(a.TerminalID, b.TerminalID) })
	return out
}

func (r *Registry) isExpired(state TerminalState) bool {
	if r.skillTTL <= 0 {
		return false
	}
	return time.Since(state.LastUpdated) > r.skillTTL
}
