// Package output renders command results for terminals, pipes and machines.
package output

import (
	"fmt"
	"strings"
)

// Mode selects how command output is rendered.
type Mode string

const (
	// ModeAuto renders styled text on a terminal and plain text otherwise.
	ModeAuto Mode = "auto"
	// ModeText renders human-readable text.
	ModeText Mode = "text"
	// ModeJSON renders machine-readable JSON.
	ModeJSON Mode = "json"
)

// ParseMode validates a mode name. Empty means ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeText, ModeJSON:
		return m, nil
	default:
		return "", fmt.Errorf("unknown output mode %q (want auto, text or json)", s)
	}
}
