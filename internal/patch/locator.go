package patch

import "strings"

// findContextCore runs the three-pass fuzzy search for context inside lines,
// starting at start. Pass 1 requires exact canonical equality (fuzz 0), pass
// 2 tolerates trailing whitespace (fuzz 1), pass 3 tolerates leading and
// trailing whitespace on every line (fuzz 100). Returns (-1, 0) if context is
// not found by any pass.
func findContextCore(lines, context []string, start int) (int, int) {
	if len(context) == 0 {
		return start, 0
	}
	if start < 0 {
		return -1, 0
	}

	canonicalContext := canon(strings.Join(context, "\n"))

	for i := start; i+len(context) <= len(lines); i++ {
		segment := canon(strings.Join(lines[i:i+len(context)], "\n"))
		if segment == canonicalContext {
			return i, 0
		}
	}

	rstrippedContext := rstripAll(context)
	canonicalRstripped := canon(strings.Join(rstrippedContext, "\n"))
	for i := start; i+len(context) <= len(lines); i++ {
		segment := canon(strings.Join(rstripAll(lines[i:i+len(context)]), "\n"))
		if segment == canonicalRstripped {
			return i, 1
		}
	}

	strippedContext := stripAll(context)
	canonicalStripped := canon(strings.Join(strippedContext, "\n"))
	for i := start; i+len(context) <= len(lines); i++ {
		segment := canon(strings.Join(stripAll(lines[i:i+len(context)]), "\n"))
		if segment == canonicalStripped {
			return i, 100
		}
	}

	return -1, 0
}

// findContext wraps findContextCore with the EOF-anchored retry: when a hunk
// claims to describe the tail of the file, the search first tries the exact
// tail offset, then falls back to a free search from start with a 10000 fuzz
// penalty if the tail anchor doesn't hold.
func findContext(lines, context []string, start int, eof bool) (int, int) {
	if eof {
		if tailStart := len(lines) - len(context); tailStart >= 0 {
			if idx, fuzz := findContextCore(lines, context, tailStart); idx != -1 {
				return idx, fuzz
			}
		}
		idx, fuzz := findContextCore(lines, context, start)
		return idx, fuzz + 10000
	}
	return findContextCore(lines, context, start)
}

func rstripAll(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimRight(l, " \t\r\n\v\f")
	}
	return out
}

func stripAll(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimSpace(l)
	}
	return out
}
