package participant

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	handleMinLen = 2
	handleMaxLen = 255
)

// Handles may contain letters, digits and -_.{}[] and must include at least
// one letter. The letter requirement is checked separately because RE2 has no
// lookahead.
var (
	handleCharsRx = regexp.MustCompile(`^[a-zA-Z0-9.\-_{}\[\]]+$`)
	hasLetterRx   = regexp.MustCompile(`[a-zA-Z]`)

	whitespaceRx    = regexp.MustCompile(`\s+`)
	slugStripRx     = regexp.MustCompile(`[^a-z0-9]+`)
	handleResidueRx = regexp.MustCompile(`[^a-z0-9_{}\[\]]+`)
)

var handleReplacer = strings.NewReplacer(
	"@", "a",
	"&", "and",
	"#", "",
	"*", "",
	",", "",
	".", "",
	"'", "",
	";", "",
	"-", "",
	"=", "",
	"(", "_",
	")", "_",
	" ", "_",
)

var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeHandle turns an arbitrary display name into a valid handle. The
// transformation is deterministic and idempotent: sanitizing an already
// sanitized handle yields the same string.
func SanitizeHandle(raw string) string {
	folded, _, err := transform.String(asciiFold, raw)
	if err != nil {
		folded = raw
	}
	// Drop any non-ASCII leftovers the fold could not decompose.
	var b strings.Builder
	for _, r := range folded {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	s := strings.ToLower(b.String())
	s = whitespaceRx.ReplaceAllString(strings.TrimSpace(s), "_")
	s = handleReplacer.Replace(s)
	// Drop anything still outside the permitted handle character set.
	return handleResidueRx.ReplaceAllString(s, "")
}

// ValidateHandle checks the handle character class and length constraints.
func ValidateHandle(name string) []FieldError {
	var errs []FieldError
	if len(name) < handleMinLen || len(name) > handleMaxLen {
		errs = append(errs, FieldError{Field: "name", Message: "must be between 2 and 255 characters"})
		return errs
	}
	if !handleCharsRx.MatchString(name) {
		errs = append(errs, FieldError{
			Field:   "name",
			Message: "can contain numbers and these characters -_.{}[] and at least one letter",
		})
		return errs
	}
	if !hasLetterRx.MatchString(name) {
		errs = append(errs, FieldError{
			Field:   "name",
			Message: "can contain numbers and these characters -_.{}[] and at least one letter",
		})
	}
	return errs
}

// Slugify derives the URL slug from a handle. Slugs only regenerate when the
// handle changes; the service compares against the stored name before calling
// this.
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = slugStripRx.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
