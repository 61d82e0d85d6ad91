package patch

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// punctFold maps Unicode look-alike punctuation to ASCII. The table is
// deliberately narrow: alphabetic confusables (Cyrillic vs Latin) are
// excluded since folding those would corrupt identifiers. Zero-width
// characters are left alone; they must appear on both sides or neither.
var punctFold = map[rune]rune{
	// hyphens and dashes
	0x002D: '-', 0x2010: '-', 0x2011: '-', 0x2012: '-', 0x2013: '-',
	0x2014: '-', 0x2015: '-', 0x2212: '-',
	// double quotes
	0x0022: '"', 0x201C: '"', 0x201D: '"', 0x201E: '"', 0x201F: '"',
	0x00AB: '"', 0x00BB: '"',
	// single quotes
	0x0027: '\'', 0x2018: '\'', 0x2019: '\'', 0x201A: '\'', 0x201B: '\'',
	// spaces
	0x00A0: ' ', 0x2002: ' ', 0x2003: ' ', 0x2004: ' ', 0x2005: ' ',
	0x2006: ' ', 0x2007: ' ', 0x2008: ' ', 0x2009: ' ', 0x200A: ' ',
	0x202F: ' ', 0x205F: ' ', 0x3000: ' ',
}

// canonicalLine normalises a line to NFC and folds punctuation
// look-alikes so that model output and file content compare equal when
// they differ only in Unicode spelling.
func canonicalLine(line string) string {
	line = norm.NFC.String(line)
	var b strings.Builder
	b.Grow(len(line))
	for _, r := range line {
		if folded, ok := punctFold[r]; ok {
			r = folded
		}
		b.WriteRune(r)
	}
	return b.String()
}
