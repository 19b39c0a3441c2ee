package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

// fold returns the case-folded form of s. A Caser keeps state, so each call
// gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// compareFold compares a and b after case folding, byte-wise.
func compareFold(a, b string) int {
	return strings.Compare(fold(a), fold(b))
}
