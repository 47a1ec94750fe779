package provider

import (
	"strconv"
	"strings"
)

func splitAndTrim(s, sep string) []string {
	var parts []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// parseArgNames extracts parameter names from a Python/JS style parameter
// list, dropping type annotations and default values.
func parseArgNames(params string) []string {
	var names []string
	depth := 0
	current := strings.Builder{}
	flush := func() {
		part := strings.TrimSpace(current.String())
		current.Reset()
		if part == "" {
			return
		}
		// Strip annotation and default: "x: int = 3" -> "x".
		if i := strings.IndexAny(part, ":="); i >= 0 {
			part = strings.TrimSpace(part[:i])
		}
		part = strings.TrimLeft(part, "*&.")
		if part != "" {
			names = append(names, part)
		}
	}
	for _, r := range params {
		switch r {
		case '[', '(', '{', '<':
			depth++
		case ']', ')', '}', '>':
			depth--
		case ',':
			if depth == 0 {
				flush()
				continue
			}
		}
		current.WriteRune(r)
	}
	flush()
	return names
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
