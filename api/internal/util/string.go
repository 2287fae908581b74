package util

import "strings"

// StripCodeFences removes a code fence wrapping the whole answer
// ("```markdown ... ```"). When another fence line sits between the outer
// ones the answer holds several blocks and is returned unchanged.
func StripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	body := strings.TrimSuffix(t, "```")
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return s
	}
	// the opening line may carry a language tag only
	if tag := strings.TrimSpace(body[3:nl]); strings.ContainsAny(tag, " \t`") {
		return s
	}
	inner := body[nl+1:]
	for _, line := range strings.Split(inner, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			return s
		}
	}
	return strings.TrimSpace(inner)
}

// Truncate cuts s to at most n runes, appending an ellipsis when shortened.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
