package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName makes name safe to use as a single path segment. The
// result is NFC-normalized so visually identical names map to the same
// directory. Slashes, backslashes, colons, and asterisks become dashes; other
// unsafe characters and control characters are removed. Names that reduce to
// nothing or to a relative path element return "".
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, fileNameReplacer.Replace(name))
	name = strings.TrimSpace(name)
	if name == "." || name == ".." || strings.Trim(name, ".") == "" {
		return ""
	}
	return name
}
