package patch

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// punctFold maps Unicode punctuation look-alikes onto a small canonical set
// so that hunks written with smart quotes or em-dashes still match context
// pulled from a file using plain ASCII punctuation, and vice versa.
var punctFold = map[rune]rune{
	// hyphen / dash family -> ASCII hyphen-minus
	'-':      '-',
	'‐': '-', // hyphen
	'‑': '-', // non-breaking hyphen
	'‒': '-', // figure dash
	'–': '-', // en dash
	'—': '-', // em dash
	'−': '-', // minus sign

	// double-quote family -> ASCII quotation mark
	'"':      '"',
	'“': '"', // left double quotation mark
	'”': '"', // right double quotation mark
	'„': '"', // double low-9 quotation mark
	'«': '"', // left-pointing double angle quotation mark
	'»': '"', // right-pointing double angle quotation mark

	// single-quote / apostrophe family -> ASCII apostrophe
	'\'':     '\'',
	'‘': '\'', // left single quotation mark
	'’': '\'', // right single quotation mark
	'‛': '\'', // single high-reversed-9 quotation mark

	// non-breaking space variants -> ASCII space
	' ': ' ', // no-break space
	' ': ' ', // narrow no-break space
}

// Canon reduces s to a normal form for tolerant equality: Unicode NFC
// normalization followed by a fixed punctuation fold. It is idempotent and
// never mutates stored or emitted text -- callers apply it only at the
// comparison site.
func Canon(s string) string {
	normalized := norm.NFC.String(s)
	return strings.Map(func(r rune) rune {
		if folded, ok := punctFold[r]; ok {
			return folded
		}
		return r
	}, normalized)
}

// canon is the internal alias used throughout the package.
func canon(s string) string { return Canon(s) }
