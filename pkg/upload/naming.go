package upload

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	unsafeFileChars = regexp.MustCompile(`[^a-z0-9._-]`)
	underscoreRuns  = regexp.MustCompile(`_+`)
)

// SanitizeFileName keeps the final path component, lowercases it and
// replaces anything outside [a-z0-9._-] with underscores. An empty result
// becomes "unnamed".
func SanitizeFileName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(strings.ToLower(name))
	name = unsafeFileChars.ReplaceAllString(name, "_")
	name = strings.Trim(underscoreRuns.ReplaceAllString(name, "_"), "_")
	if name == "" {
		return "unnamed"
	}
	return name
}

// Extension returns the lowercase extension of name without the dot. A
// dotless name such as "Dockerfile" returns the whole name lowercased.
func Extension(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if ext := path.Ext(name); ext != "" {
		return strings.ToLower(ext[1:])
	}
	return strings.ToLower(name)
}

// ObjectName builds the storage key for an upload:
// uploads/YYYY/MM/DD/<8 hex>-<sanitized name>.
func ObjectName(original string, now time.Time) string {
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("uploads/%s/%s-%s", now.UTC().Format("2006/01/02"), short, SanitizeFileName(original))
}
