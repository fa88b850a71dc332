package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxLength is the slug length used when none is configured.
const DefaultMaxLength = 50

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// letters that carry no combining mark under NFKD and would otherwise be dropped.
var asciiReplacer = strings.NewReplacer(
	"ı", "i", // Turkish dotless i
	"ß", "ss",
	"æ", "ae",
	"œ", "oe",
	"ø", "o",
	"ł", "l",
	"đ", "d",
	"ð", "d",
	"þ", "th",
)

// Generate creates a URL-friendly slug from the given name.
// Accented letters are folded to their ASCII base letter; anything else that
// is not a lowercase letter or digit becomes a single hyphen.
//
// Examples:
//   - "Kadın Giyim" → "kadin-giyim"
//   - "Crème Brûlée" → "creme-brulee"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))

	slug = asciiReplacer.Replace(slug)
	slug = foldDiacritics(slug)

	slug = slugRegexp.ReplaceAllString(slug, "-")

	return strings.Trim(slug, "-")
}

// Normalize returns Generate(name) cut to at most maxLen bytes, without a
// trailing hyphen. A non-positive maxLen disables truncation.
// Normalize is idempotent: Normalize(Normalize(s, n), n) == Normalize(s, n).
func Normalize(name string, maxLen int) string {
	return truncate(Generate(name), maxLen)
}

// Valid reports whether s is already a normalized slug.
func Valid(s string) bool {
	return s != "" && Generate(s) == s
}

func truncate(slug string, maxLen int) string {
	if maxLen <= 0 || len(slug) <= maxLen {
		return slug
	}
	return strings.TrimRight(slug[:maxLen], "-")
}

// foldDiacritics decomposes s, drops combining marks and recomposes it.
// Letters without an ASCII base survive and are later replaced by hyphens.
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
