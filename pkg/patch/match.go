package patch

import (
	"strings"
)

// Matching penalties. Each rung of the ladder reports how far it had to
// bend the comparison to succeed; the parser accumulates them into the
// fuzz score.
const (
	fuzzTrailingWS  = 1
	fuzzFullTrim    = 100
	fuzzCanonical   = 1000
	fuzzIgnoredEOF  = 10000
	fuzzShiftWindow = 50000
)

// shiftWindow is how far rung 5 may slide from the expected origin.
const shiftWindow = 2

// findContext locates a context slice within the file lines, starting the
// search at start. When eof is set the context is anchored at the end of
// the file: the terminal position is tried first and a mid-file match is
// penalised.
func findContext(lines []string, context []string, start int, eof bool) (int, int) {
	if len(context) == 0 {
		return start, 0
	}

	if eof {
		if len(lines) >= len(context) {
			tail := len(lines) - len(context)
			if fuzz, ok := matchRungsAt(lines, context, tail); ok {
				return tail, fuzz
			}
		}
		index, fuzz := findContextCore(lines, context, start)
		if index != -1 {
			return index, fuzz + fuzzIgnoredEOF
		}
		return -1, 0
	}

	return findContextCore(lines, context, start)
}

// findContextCore runs the equivalence ladder: each rung scans the whole
// file from start before the next, looser rung is tried. The first rung
// that succeeds wins and contributes its penalty.
func findContextCore(lines []string, context []string, start int) (int, int) {
	if len(context) == 0 {
		return start, 0
	}

	rungs := []struct {
		canon func(string) string
		fuzz  int
	}{
		{func(s string) string { return s }, 0},
		{func(s string) string { return strings.TrimRight(s, " \t") }, fuzzTrailingWS},
		{strings.TrimSpace, fuzzFullTrim},
		{canonicalLine, fuzzCanonical},
	}

	for _, rung := range rungs {
		for i := start; i <= len(lines)-len(context); i++ {
			if matchAt(lines, context, i, rung.canon) {
				return i, rung.fuzz
			}
		}
	}

	// Last resort: allow the context to sit within a small window around
	// the expected origin as long as most lines still match exactly.
	lo := start - shiftWindow
	if lo < 0 {
		lo = 0
	}
	hi := start + shiftWindow
	if last := len(lines) - len(context); hi > last {
		hi = last
	}
	for i := lo; i <= hi; i++ {
		matched := 0
		for j := range context {
			if lines[i+j] == context[j] {
				matched++
			}
		}
		if matched*5 >= len(context)*4 {
			return i, fuzzShiftWindow
		}
	}

	return -1, 0
}

// matchRungsAt tries rungs 1-4 at a single position, used for the
// end-of-file anchor.
func matchRungsAt(lines []string, context []string, index int) (int, bool) {
	if index < 0 || index+len(context) > len(lines) {
		return 0, false
	}
	identity := func(s string) string { return s }
	rtrim := func(s string) string { return strings.TrimRight(s, " \t") }
	switch {
	case matchAt(lines, context, index, identity):
		return 0, true
	case matchAt(lines, context, index, rtrim):
		return fuzzTrailingWS, true
	case matchAt(lines, context, index, strings.TrimSpace):
		return fuzzFullTrim, true
	case matchAt(lines, context, index, canonicalLine):
		return fuzzCanonical, true
	}
	return 0, false
}

func matchAt(lines []string, context []string, index int, canon func(string) string) bool {
	for j := range context {
		if canon(lines[index+j]) != canon(context[j]) {
			return false
		}
	}
	return true
}
