package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/campusdesk/circular-api/internal/models"
	appErrors "github.com/campusdesk/circular-api/pkg/errors"
)

// NormalizeAudience canonicalizes a raw audience specification into a sorted,
// lowercase, deduplicated token list. It runs identically for admin creation
// and faculty submission so stored audiences are always canonical and
// membership queries never re-normalize at read time.
func NormalizeAudience(spec models.AudienceSpec) ([]string, error) {
	seen := make(map[string]struct{})
	normalized := make([]string, 0, len(spec.Values()))

	for _, raw := range spec.Values() {
		token := strings.ToLower(strings.TrimSpace(raw))
		if token == "" {
			continue
		}
		if token != models.AudienceFaculty && token != models.AudienceStudent {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown audience token %q", raw))
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		normalized = append(normalized, token)
	}

	if len(normalized) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target audience must not be empty")
	}

	sort.Strings(normalized)
	return normalized, nil
}
