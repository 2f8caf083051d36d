// Package notify posts desktop notifications when the watcher delivers
// actions.
package notify

import (
	"fmt"
	"os/exec"
	"strings"
)

// Desktop posts macOS notifications via osascript. The zero value is
// disabled and posts nothing.
type Desktop struct {
	Enabled bool
}

// Post sends a notification. Disabled instances return nil without doing
// anything.
func (d Desktop) Post(title, body string) error {
	if !d.Enabled {
		return nil
	}

	script := fmt.Sprintf(
		`display notification %q with title %q`,
		escapeAppleScript(body), escapeAppleScript(title),
	)

	cmd := exec.Command("osascript", "-e", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
