package util

import "golang.org/x/text/unicode/norm"

// Normalize applies NFKC normalization so that visually equivalent user
// input compares and measures consistently before validation.
func Normalize(s string) string {
	return norm.NFKC.String(s)
}
