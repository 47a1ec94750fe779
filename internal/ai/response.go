package ai

import "strings"

// StripCodeFence removes a surrounding markdown code fence from a model
// response, with or without a language tag. Text without a fence is
// returned trimmed but otherwise untouched.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := s[3:]
	// Drop the language tag on the opening fence line.
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		return s
	}
	if i := strings.LastIndex(body, "```"); i >= 0 {
		body = body[:i]
	}
	return strings.TrimSpace(body)
}
