package schema

import (
	"encoding/json"

	"intentc/internal/domain"
)

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
)

// Param is one required argument of a tool. Minimum and Maximum bound
// numeric values when set.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Minimum     *float64
	Maximum     *float64
}

type Tool struct {
	Name        domain.ToolName
	Description string
	Params      []Param
}

func (t Tool) Param(name string) (Param, bool) {
	for _, p := range t.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

func (t Tool) Required() []string {
	out := make([]string, len(t.Params))
	for i, p := range t.Params {
		out[i] = p.Name
	}
	return out
}

// JSONSchema renders the tool parameters as a JSON schema object.
func (t Tool) JSONSchema() json.RawMessage {
	props := make(map[string]any, len(t.Params))
	for _, p := range t.Params {
		prop := map[string]any{"type": string(p.Type), "description": p.Description}
		if p.Type == TypeArray {
			prop["items"] = map[string]any{"type": "string"}
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		props[p.Name] = prop
	}
	raw, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": props,
		"required":   t.Required(),
	})
	return raw
}

// Definition is a tool in OpenAI function-calling format.
type Definition struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Registry is the closed set of tools. Read-only after construction.
type Registry struct {
	tools map[domain.ToolName]Tool
	order []domain.ToolName
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[domain.ToolName]Tool, len(tools))}
	for _, t := range tools {
		if _, ok := r.tools[t.Name]; !ok {
			r.order = append(r.order, t.Name)
		}
		r.tools[t.Name] = t
	}
	return r
}

func (r *Registry) Lookup(name domain.ToolName) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Definitions exports the tools in allowed (all tools when empty).
func (r *Registry) Definitions(allowed []domain.ToolName) []Definition {
	keep := make(map[domain.ToolName]bool, len(allowed))
	for _, a := range allowed {
		keep[a] = true
	}
	out := make([]Definition, 0, len(r.order))
	for _, t := range r.Tools() {
		if len(keep) > 0 && !keep[t.Name] {
			continue
		}
		out = append(out, Definition{
			Type: "function",
			Function: Function{
				Name:        string(t.Name),
				Description: t.Description,
				Parameters:  t.JSONSchema(),
			},
		})
	}
	return out
}

func bound(v float64) *float64 { return &v }

// Default returns the seven assistant tools.
func Default() *Registry {
	return NewRegistry(
		Tool{
			Name:        domain.ToolGetWeather,
			Description: "Get current weather for a location",
			Params: []Param{
				{Name: "location", Type: TypeString, Description: "City name"},
			},
		},
		Tool{
			Name:        domain.ToolSetAlarm,
			Description: "Set an alarm for a given time",
			Params: []Param{
				{Name: "hour", Type: TypeInteger, Description: "Hour to set the alarm for", Minimum: bound(0), Maximum: bound(23)},
				{Name: "minute", Type: TypeInteger, Description: "Minute to set the alarm for", Minimum: bound(0), Maximum: bound(59)},
			},
		},
		Tool{
			Name:        domain.ToolSendMessage,
			Description: "Send a message to a contact",
			Params: []Param{
				{Name: "recipient", Type: TypeString, Description: "Name of the person to send the message to"},
				{Name: "message", Type: TypeString, Description: "The message content to send"},
			},
		},
		Tool{
			Name:        domain.ToolCreateReminder,
			Description: "Create a reminder with a title and time",
			Params: []Param{
				{Name: "title", Type: TypeString, Description: "Reminder title"},
				{Name: "time", Type: TypeString, Description: "Time for the reminder (e.g. 3:00 PM)"},
			},
		},
		Tool{
			Name:        domain.ToolSearchContacts,
			Description: "Search for a contact by name",
			Params: []Param{
				{Name: "query", Type: TypeString, Description: "Name to search for"},
			},
		},
		Tool{
			Name:        domain.ToolPlayMusic,
			Description: "Play a song or playlist",
			Params: []Param{
				{Name: "song", Type: TypeString, Description: "Song or playlist name"},
			},
		},
		Tool{
			Name:        domain.ToolSetTimer,
			Description: "Set a countdown timer",
			Params: []Param{
				{Name: "minutes", Type: TypeInteger, Description: "Number of minutes", Minimum: bound(1), Maximum: bound(1_000_000)},
			},
		},
	)
}
