package domain

import (
	"errors"
	"strings"
)

// Projects are identified by their name. The name is used verbatim as the
// persistence key; on the filesystem it is flattened by ProjectSlug. The two
// forms can collide ("My App" and "my-app" share a directory) and callers
// that care must pick distinct names.

// ValidateProjectName rejects names that cannot serve as a key or a path
// component.
func ValidateProjectName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("domain: project name is required")
	}
	if strings.ContainsAny(name, "/\\") {
		return errors.New("domain: project name must not contain path separators")
	}
	return nil
}

// ProjectSlug returns the filesystem form of a project name: lowercased with
// spaces replaced by hyphens.
func ProjectSlug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}
