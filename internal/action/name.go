package action

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileExt is the extension of committed queue item files.
const FileExt = ".json"

// StagingPrefix marks not-yet-committed files. The leading dot keeps staging
// files (and the wake file) out of normal drain enumeration.
const StagingPrefix = ".staging-"

// stampLayout is ISO-8601 basic format: no colons, so names stay valid on
// every filesystem while remaining lexically sortable by time.
const stampLayout = "20060102T150405.000Z"

// ItemName derives a committed queue item file name from the action's
// timestamp plus a random token. Timestamps sort lexically; the token keeps
// concurrent producers collision-free without locking.
func ItemName(at time.Time) string {
	return fmt.Sprintf("%s-%s%s", at.UTC().Format(stampLayout), uuid.NewString(), FileExt)
}

// StagingName derives the transient staging file name for the same item.
func StagingName(at time.Time) string {
	return fmt.Sprintf("%s%s-%s%s", StagingPrefix, at.UTC().Format(stampLayout), uuid.NewString(), FileExt)
}

// IsItemName reports whether name looks like a committed queue item.
func IsItemName(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.HasSuffix(name, FileExt)
}

// IsStagingName reports whether name is a staging file.
func IsStagingName(name string) bool {
	return strings.HasPrefix(name, StagingPrefix)
}

// ItemTime extracts the timestamp embedded in a committed item name.
func ItemTime(name string) (time.Time, error) {
	if !IsItemName(name) {
		return time.Time{}, fmt.Errorf("not a queue item name: %s", name)
	}
	if len(name) < len(stampLayout) {
		return time.Time{}, fmt.Errorf("queue item name too short: %s", name)
	}
	ts, err := time.Parse(stampLayout, name[:len(stampLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp from %s: %w", name, err)
	}
	return ts, nil
}
