package recognitionService

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"PlateRecognition/internal/entity"
)

// NormalizeText keeps only letters and digits of the first recognized entry.
// Compatibility forms are folded first, so full width "ＡＢ１２" becomes "AB12".
func NormalizeText(raw []string) string {
	if len(raw) == 0 {
		return entity.NoTextFound
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, norm.NFKC.String(raw[0]))

	if cleaned == "" {
		return entity.NoTextFound
	}
	return cleaned
}
