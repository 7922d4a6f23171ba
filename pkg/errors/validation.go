package errors

import (
	"strings"
	"unicode"
)

// ValidateRepository validates an "owner/name" repository identifier.
// It rejects identifiers that could be used for path traversal or URL
// injection when embedded in archive download requests.
//
// The validation rules are intentionally conservative:
//   - Exactly one slash separating non-empty owner and name
//   - No control characters or whitespace
//   - No path traversal sequences
//   - Maximum length of 256 characters
func ValidateRepository(repository string) error {
	if repository == "" {
		return New(ErrCodeInvalidRepository, "repository cannot be empty")
	}

	if len(repository) > 256 {
		return New(ErrCodeInvalidRepository, "repository too long (max 256 characters)")
	}

	owner, name, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return New(ErrCodeInvalidRepository, "repository must be in owner/name form: %q", repository)
	}

	for _, r := range repository {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidRepository, "repository contains invalid characters")
		}
	}

	for _, pattern := range []string{"..", "\\", "\x00"} {
		if strings.Contains(repository, pattern) {
			return New(ErrCodeInvalidRepository, "repository contains invalid sequence: %q", pattern)
		}
	}

	return nil
}

// ValidateDependencyName validates a target dependency name. The name is
// matched against the artifact component of Maven coordinates, so it must be
// a plain token without separators or shell metacharacters.
func ValidateDependencyName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidDependency, "dependency name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidDependency, "dependency name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidDependency, "dependency name contains invalid characters")
		}
	}

	if strings.ContainsAny(name, "/\\:$`\"'") {
		return New(ErrCodeInvalidDependency, "dependency name contains invalid characters")
	}

	return nil
}

// ValidateRef validates a git reference (branch, tag, or commit).
// An empty ref is allowed; the fetcher falls back to the default branches.
func ValidateRef(ref string) error {
	if ref == "" {
		return nil
	}

	if len(ref) > 256 {
		return New(ErrCodeInvalidInput, "ref too long (max 256 characters)")
	}

	for _, r := range ref {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "ref contains invalid characters")
		}
	}

	if strings.Contains(ref, "..") || strings.Contains(ref, "\\") {
		return New(ErrCodeInvalidInput, "ref contains invalid sequence")
	}

	return nil
}
