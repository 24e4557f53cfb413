package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

// Pauses is a fixed set of paused module names, typically loaded from the
// node configuration.
type Pauses map[string]struct{}

// NewPauses builds a pause set from module names. Blank names are ignored.
func NewPauses(modules ...string) Pauses {
	out := make(Pauses, len(modules))
	for _, module := range modules {
		if trimmed := strings.ToLower(strings.TrimSpace(module)); trimmed != "" {
			out[trimmed] = struct{}{}
		}
	}
	return out
}

func (p Pauses) IsPaused(module string) bool {
	_, ok := p[strings.ToLower(strings.TrimSpace(module))]
	return ok
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
