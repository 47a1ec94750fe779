package provider

import (
	"fmt"
	"strings"

	"github.com/DigitalProductInnovationAndDevelopment/Predictable-Secure-Code-Generation/pkg/types"
)

// balanceOptions tunes the delimiter scanner per language.
type balanceOptions struct {
	lineComment       string
	blockCommentStart string
	blockCommentEnd   string
	quotes            []byte
	tripleQuotes      bool // Python ''' / """
	backtickStrings   bool // JS template literals
}

type openDelim struct {
	ch   byte
	line int
	col  int
}

var closingFor = map[byte]byte{')': '(', ']': '[', '}': '{'}

// checkBalance scans source text for unbalanced brackets and unterminated
// string literals, skipping comments and string contents. It is the shared
// syntax heuristic for providers that have no real parser; problems carry
// 1-based line and column positions.
func checkBalance(path, content string, opts balanceOptions) []types.ValidationProblem {
	var problems []types.ValidationProblem
	var stack []openDelim

	line, col := 1, 0
	i := 0
	n := len(content)

	for i < n {
		ch := content[i]
		col++

		if ch == '\n' {
			line++
			col = 0
			i++
			continue
		}

		// Line comment: skip to end of line.
		if opts.lineComment != "" && strings.HasPrefix(content[i:], opts.lineComment) {
			for i < n && content[i] != '\n' {
				i++
			}
			col = 0
			continue
		}

		// Block comment: skip to terminator.
		if opts.blockCommentStart != "" && strings.HasPrefix(content[i:], opts.blockCommentStart) {
			end := strings.Index(content[i+len(opts.blockCommentStart):], opts.blockCommentEnd)
			if end < 0 {
				i = n
				continue
			}
			skipped := content[i : i+len(opts.blockCommentStart)+end+len(opts.blockCommentEnd)]
			line += strings.Count(skipped, "\n")
			col = colAfter(skipped, col)
			i += len(skipped)
			continue
		}

		// Triple-quoted strings span lines and may hold anything.
		if opts.tripleQuotes && (strings.HasPrefix(content[i:], `"""`) || strings.HasPrefix(content[i:], "'''")) {
			quote := content[i : i+3]
			end := strings.Index(content[i+3:], quote)
			if end < 0 {
				problems = append(problems, types.ValidationProblem{
					Severity:   types.SeverityError,
					Message:    "unterminated triple-quoted string",
					FilePath:   path,
					LineNumber: line,
					Column:     col,
				})
				i = n
				continue
			}
			skipped := content[i : i+3+end+3]
			line += strings.Count(skipped, "\n")
			col = colAfter(skipped, col)
			i += len(skipped)
			continue
		}

		if isQuote(ch, opts) {
			endLine, endIdx, ok := scanString(content, i, line, ch == '`')
			if !ok {
				problems = append(problems, types.ValidationProblem{
					Severity:   types.SeverityError,
					Message:    "unterminated string literal",
					FilePath:   path,
					LineNumber: line,
					Column:     col,
				})
				// Resync at the next line rather than giving up on the file.
				nl := strings.IndexByte(content[i:], '\n')
				if nl < 0 {
					i = n
					continue
				}
				i += nl
				continue
			}
			col = colAfter(content[i:endIdx], col)
			line = endLine
			i = endIdx
			continue
		}

		switch ch {
		case '(', '[', '{':
			stack = append(stack, openDelim{ch: ch, line: line, col: col})
		case ')', ']', '}':
			want := closingFor[ch]
			if len(stack) == 0 || stack[len(stack)-1].ch != want {
				problems = append(problems, types.ValidationProblem{
					Severity:   types.SeverityError,
					Message:    fmt.Sprintf("unmatched closing '%c'", ch),
					FilePath:   path,
					LineNumber: line,
					Column:     col,
				})
			} else {
				stack = stack[:len(stack)-1]
			}
		}
		i++
	}

	for _, open := range stack {
		problems = append(problems, types.ValidationProblem{
			Severity:   types.SeverityError,
			Message:    fmt.Sprintf("unterminated '%c' opened here", open.ch),
			FilePath:   path,
			LineNumber: open.line,
			Column:     open.col,
		})
	}

	return problems
}

// colAfter returns the column of the last byte of a skipped span, given
// the column of its first byte. Spans crossing a newline restart the
// count from the last line.
func colAfter(skipped string, startCol int) int {
	if nl := strings.LastIndexByte(skipped, '\n'); nl >= 0 {
		return len(skipped) - nl - 1
	}
	return startCol + len(skipped) - 1
}

func isQuote(ch byte, opts balanceOptions) bool {
	if ch == '`' {
		return opts.backtickStrings
	}
	for _, q := range opts.quotes {
		if ch == q {
			return true
		}
	}
	return false
}

// scanString advances past a string literal starting at content[start].
// Multiline is only allowed for backtick template literals. Returns the
// line after the closing quote, the index just past it, and whether the
// literal terminated.
func scanString(content string, start, startLine int, multiline bool) (int, int, bool) {
	quote := content[start]
	line := startLine
	i := start + 1
	for i < len(content) {
		switch content[i] {
		case '\\':
			i += 2
			continue
		case '\n':
			if !multiline {
				return line, i, false
			}
			line++
		case quote:
			return line, i + 1, true
		}
		i++
	}
	return line, i, false
}
