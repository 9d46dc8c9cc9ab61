package promotion

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"trustdir/internal/directory/models"
	"trustdir/internal/identity/canonical"
)

// BaseSlug derives the slug stem for an application: its name, else its
// handle, else canonical.FallbackSlug.
func BaseSlug(app *models.Application) string {
	if s := canonical.Slug(app.Name); s != canonical.FallbackSlug {
		return s
	}
	if app.Handle != "" {
		return canonical.Slug(app.Handle)
	}
	return canonical.FallbackSlug
}

// NextSlug returns base when no existing slug equals it, otherwise
// base-<n> where n is one more than the largest numeric suffix in use.
// base itself counts as suffix 1.
func NextSlug(base string, existing []string) string {
	baseUsed := false
	maxSuffix := 1
	for _, s := range existing {
		if s == base {
			baseUsed = true
			continue
		}
		rest, ok := strings.CutPrefix(s, base+"-")
		if !ok || !isDigits(rest) {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > maxSuffix {
			maxSuffix = n
		}
	}
	if !baseUsed {
		return base
	}
	return base + "-" + strconv.Itoa(maxSuffix+1)
}

// FallbackSlug appends a high-entropy token: base-36 milliseconds plus
// four random hex digits.
func FallbackSlug(base string, now time.Time) string {
	entropy := strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
	return base + "-" + strconv.FormatInt(now.UnixMilli(), 36) + entropy
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
