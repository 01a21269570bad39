package event

import (
	"fmt"
)

// sysVersion defines the version of system events
const sysVersion = "v0.1"

type sysEvent struct {
	Id      Id             `json:"id,omitempty"`
	Version string         `json:"version"`
	Op      Op             `json:"op,omitempty"`
	Data    map[string]any `json:"data"`
}

// EventType is required for all event types by the eventlogger broker
func (s *sysEvent) EventType() string { return string(SystemType) }

func (s *sysEvent) validate() error {
	const op = "event.(sysEvent).validate"
	if s.Id == "" {
		return fmt.Errorf("%s: missing id: %w", op, ErrInvalidParameter)
	}
	if s.Op == "" {
		return fmt.Errorf("%s: missing operation: %w", op, ErrInvalidParameter)
	}
	return nil
}
