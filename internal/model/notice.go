package model

import "fmt"

// Notice is a state-change notification published by the core. The UI
// subscribes to these instead of reading a global toast.
type Notice struct {
	Type    string         `json:"type"`
	Entity  string         `json:"entity"`
	Action  string         `json:"action"`
	ID      int64          `json:"id,omitempty"`
	Level   string         `json:"level,omitempty"`
	Message string         `json:"message,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// NewNotice creates a Notice with Type derived from entity and action.
func NewNotice(entity, action string, id int64) Notice {
	return Notice{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Level:  "info",
	}
}

// WithMessage returns a copy of n carrying a user-facing message at the given level.
func (n Notice) WithMessage(level, message string) Notice {
	n.Level = level
	n.Message = message
	return n
}
