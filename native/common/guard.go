package common

import "errors"

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
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

// StaticPauses is a fixed pause set resolved once at start-up, typically from
// configuration.
type StaticPauses map[string]bool

// IsPaused implements the PauseView interface.
func (s StaticPauses) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	return s[module]
}
