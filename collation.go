package sqlitex

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// alphanumFolder performs the Unicode case folding used by the ALPHANUM
// collation. Using golang.org/x/text here instead of strings.ToLower keeps
// folding consistent with full Unicode case mapping rather than the
// byte-oriented ASCII mapping unicode.ToLower alone would give for
// multi-rune case pairs.
var alphanumFolder = cases.Fold(cases.Compact)

func init() {
	_ = language.Und // collation folding is locale-independent; Und documents that choice
}

// alphanumCompare implements the ALPHANUM collation (spec §6): step
// through code points on both sides, skipping any non-alphanumeric code
// point on either side, and compare the remaining ones case-folded. It is
// registered against every opened connection under the name "ALPHANUM".
func alphanumCompare(a, b string) int {
	af, bf := alphanumFolder.String(a), alphanumFolder.String(b)
	for len(af) > 0 || len(bf) > 0 {
		ra, sa := nextAlphanum(af)
		rb, sb := nextAlphanum(bf)
		if sa == 0 && sb == 0 {
			return 0
		}
		if sa == 0 {
			return -1
		}
		if sb == 0 {
			return 1
		}
		if ra != rb {
			if ra < rb {
				return -1
			}
			return 1
		}
		af = af[sa:]
		bf = bf[sb:]
	}
	return 0
}

// nextAlphanum returns the next alphanumeric code point in s after
// skipping any leading run of non-alphanumeric code points, along with the
// byte length consumed to reach and include it. It returns (0, 0) if s is
// exhausted without finding one.
func nextAlphanum(s string) (rune, int) {
	consumed := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		consumed += size
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r, consumed
		}
		s = s[size:]
	}
	return 0, 0
}
