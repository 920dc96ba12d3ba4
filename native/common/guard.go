package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module has been switched off by the operator.
type PauseView interface {
	IsPaused(module string) bool
}

// StaticPauses is a PauseView backed by a fixed module set, typically built
// from configuration at start-up.
type StaticPauses map[string]bool

// IsPaused implements PauseView.
func (s StaticPauses) IsPaused(module string) bool {
	return s[module]
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
