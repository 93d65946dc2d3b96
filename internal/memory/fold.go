package memory

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold returns s NFC-normalized and Unicode case-folded. Document search
// compares folded terms against folded titles and contents, so "ß" matches
// "SS" and "Ö" matches "ö".
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
