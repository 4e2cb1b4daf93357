package challenge

import (
	"regexp"
	"strings"
)

var (
	idShape     = regexp.MustCompile(`^[A-Za-z0-9]{4,32}$`)
	pathPattern = regexp.MustCompile(`/(?:challenge|results)/([A-Za-z0-9]{4,32})(?:[/?#]|$)`)
)

// ExtractID pulls a challenge id out of a bare id or a challenge/results URL.
func ExtractID(reference string) (string, bool) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return "", false
	}
	if idShape.MatchString(ref) {
		return ref, true
	}
	if m := pathPattern.FindStringSubmatch(ref); m != nil {
		return m[1], true
	}
	return "", false
}

// ResolveID is ExtractID with an InvalidReference error for unusable input.
func ResolveID(reference string) (string, error) {
	id, ok := ExtractID(reference)
	if !ok {
		return "", Errorf(KindInvalidReference, "invalid challenge reference %q", truncate(reference, 80))
	}
	return id, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
