package patch

import (
	"fmt"
	"regexp"
	"strings"
)

// tokenLinePattern keeps only lines that can be part of a patch. Model
// output routinely wraps a patch in prose; everything that does not start
// with a recognised token is dropped before parsing.
var tokenLinePattern = regexp.MustCompile(`^(\*\*\*|---|\+\+\+|@@|[ +\-])`)

// hunkHeaderPattern recognises numeric hunk headers with missing counts,
// e.g. "@@ -3 +3 @@" or "@@ -3 8 +3 2 @@".
var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(?:[ ,](\d+))? \+(\d+)(?:[ ,](\d+))? @@$`)

// SanitizePatchText turns raw patch text into a clean sequence of lines.
//
// Line endings are normalised to "\n", surrounding whitespace is trimmed,
// non-token lines are discarded, surviving lines are right-trimmed and
// stripped of stray control characters. Returned warnings describe lines
// that were altered by control-character stripping; they are advisory and
// never fatal.
func SanitizePatchText(text string) (lines []string, warnings []string) {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	normalized = strings.TrimSpace(normalized)

	for _, line := range strings.Split(normalized, "\n") {
		if !tokenLinePattern.MatchString(line) {
			continue
		}
		line = strings.TrimRight(line, " \t")
		cleaned := stripControlChars(line)
		if cleaned != line {
			warnings = append(warnings, fmt.Sprintf("stripped control characters from line: %q", line))
		}
		lines = append(lines, cleaned)
	}
	return lines, warnings
}

// stripControlChars removes C0 control characters other than tab, newline
// and carriage return. Tabs stay significant for diff content; newlines and
// carriage returns never occur inside a normalised, split line.
func stripControlChars(line string) string {
	var b strings.Builder
	for _, r := range line {
		switch {
		case r <= 0x08,
			r >= 0x0B && r <= 0x0C,
			r >= 0x0E && r <= 0x1F:
			continue
		}
		b.WriteRune(r)
	}
	if b.Len() == len(line) {
		return line
	}
	return b.String()
}

// RepairHunkHeaders rewrites recognisable numeric hunk headers into the
// canonical "@@ -S,D +S2,I @@" form, supplying zero for missing counts.
// All other lines pass through unchanged.
func RepairHunkHeaders(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		m := hunkHeaderPattern.FindStringSubmatch(line)
		if m == nil {
			out[i] = line
			continue
		}
		delCount := m[2]
		if delCount == "" {
			delCount = "0"
		}
		insCount := m[4]
		if insCount == "" {
			insCount = "0"
		}
		out[i] = fmt.Sprintf("@@ -%s,%s +%s,%s @@", m[1], delCount, m[3], insCount)
	}
	return out
}

// SplitBlocks extracts the patch blocks from a sanitized line sequence.
// Each block includes its Begin/End markers. Lines outside any block are
// ignored. A Begin marker without a matching End marker is fatal.
func SplitBlocks(lines []string) ([][]string, error) {
	var blocks [][]string
	var current []string
	inside := false

	for _, line := range lines {
		switch {
		case line == PatchBeginMarker:
			inside = true
			current = []string{line}
		case line == PatchEndMarker && inside:
			current = append(current, line)
			blocks = append(blocks, current)
			current = nil
			inside = false
		case inside:
			current = append(current, line)
		}
	}

	if inside {
		return nil, &DiffError{Kind: ErrUnterminatedBlock, Message: "Unterminated patch block: missing *** End Patch"}
	}
	return blocks, nil
}
