package downloadcfg

import "strings"

// StartOptions carries backend-agnostic options for starting or resuming an
// operation.
type StartOptions struct {
	// Tags is the resolved install-tag list. Empty means the backend's default content.
	Tags []string
	// BaseDir is the install root for new installs.
	BaseDir string
	// Destination is the new location for a move.
	Destination string
}

// NormalizeTags trims blanks and drops empty entries. Order and duplicates
// are preserved.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
