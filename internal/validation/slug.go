// slug.go provides product slug format validation used when creating product
// listings and resolving install URLs.
package validation

import (
	"fmt"
	"regexp"
)

// MaxSlugLength bounds slug size so install URLs stay readable
const MaxSlugLength = 64

// Slugs are lowercase kebab-case: letters and digits separated by single hyphens.
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidateSlug validates that a string is usable as a product slug
func ValidateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("slug is required")
	}
	if len(slug) > MaxSlugLength {
		return fmt.Errorf("slug exceeds %d characters", MaxSlugLength)
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("invalid slug %q: must be lowercase letters, digits, and single hyphens", slug)
	}
	return nil
}
