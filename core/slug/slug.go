// Package slug derives URL-safe identifiers from human readable titles.
package slug

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxAttempts bounds the suffix search in Unique.
const MaxAttempts = 1000

var ErrExhausted = errors.New("could not find a free slug")

// Make lowercases s, folds it to ASCII and replaces every run of whitespace, punctuation or
// other non alphanumeric characters with a single hyphen. "Intro to Café!" becomes "intro-to-cafe".
func Make(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '_' || r == '-' || unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			pendingHyphen = true
		}
		// remaining non-ASCII runes that have no decomposition are dropped
	}
	return b.String()
}

// ExistsFunc reports whether slug is already taken by another row.
type ExistsFunc func(ctx context.Context, slug string) (bool, error)

// Unique returns base if it is free, otherwise the first free base-1, base-2, ...
func Unique(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	candidate := base
	for i := 1; i <= MaxAttempts; i++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", errors.Wrap(err, "checking slug")
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
	return "", ErrExhausted
}
