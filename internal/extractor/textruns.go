package extractor

import (
	"strings"
)

// decodeTextRuns walks a PDF page content stream and collects the string
// operands of the text-showing operators (Tj, TJ, ' and "). Runs come out in
// stream order, which approximates reading order for text-based PDFs. Only
// literal strings are decoded; hex strings and glyph-encoded fonts fall out
// as empty runs rather than garbage.
func decodeTextRuns(content []byte) string {
	var out strings.Builder
	var pending []string
	i := 0

	flush := func(keep bool) {
		if keep {
			for _, run := range pending {
				out.WriteString(run)
			}
		}
		pending = pending[:0]
	}

	for i < len(content) {
		c := content[i]
		switch {
		case c == '(':
			run, next := readLiteralString(content, i)
			pending = append(pending, run)
			i = next
		case c == '\'' || c == '"':
			flush(true)
			out.WriteByte('\n')
			i++
		case c == '%':
			// Comment runs to end of line.
			for i < len(content) && content[i] != '\n' {
				i++
			}
		case isOperatorChar(c):
			start := i
			for i < len(content) && isOperatorChar(content[i]) {
				i++
			}
			switch op := string(content[start:i]); op {
			case "Tj", "TJ":
				flush(true)
			case "Td", "TD", "T*":
				out.WriteByte('\n')
			case "ET":
				flush(false)
				out.WriteByte('\n')
			default:
				// Any other operator consumes whatever operands preceded it.
				flush(false)
			}
		default:
			i++
		}
	}

	return collapseBlankRuns(out.String())
}

func isOperatorChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '*'
}

// readLiteralString consumes a PDF literal string starting at the opening
// parenthesis and returns its decoded value plus the index just past the
// closing parenthesis. Balanced inner parentheses and backslash escapes are
// honored per the PDF string grammar.
func readLiteralString(content []byte, start int) (string, int) {
	var out strings.Builder
	depth := 0
	i := start

	for i < len(content) {
		c := content[i]
		switch c {
		case '\\':
			if i+1 < len(content) {
				out.WriteByte(unescapePDFChar(content[i+1]))
				i += 2
				continue
			}
			i++
		case '(':
			depth++
			if depth > 1 {
				out.WriteByte(c)
			}
			i++
		case ')':
			depth--
			if depth == 0 {
				return out.String(), i + 1
			}
			out.WriteByte(c)
			i++
		default:
			if depth > 0 {
				out.WriteByte(c)
			}
			i++
		}
	}
	return out.String(), i
}

func unescapePDFChar(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	default:
		return c
	}
}

func collapseBlankRuns(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
