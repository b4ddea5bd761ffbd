// Package transliterate folds Unicode text into ASCII-safe text ahead of urlization.
//
// Every non-ASCII rune goes through gosimple/slug with the language of the
// transliterator, so language-specific spellings apply first (de: ä → ae) and
// unidecode romanizes the rest, Latin, Cyrillic, Greek, CJK and Arabic alike.
// ASCII is left untouched for the urlizer and the rune case is kept for the
// camel and upper styles.
package transliterate

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Func converts text into ASCII-safe text. The separator and the record being
// slugged are passed for transliterators that need them.
type Func func(text, separator string, record any) string

// New returns the default transliterator for the given language. Only the base
// language counts, de-AT folds like de.
func New(tag language.Tag) Func {
	base, _ := tag.Base()
	lang := base.String()

	return func(text, _ string, _ any) string {
		return Fold(text, lang)
	}
}

// Default is the transliterator for an undetermined language.
func Default() Func {
	return New(language.Und)
}

// Fold folds text to ASCII using the substitutions of lang, an ISO 639 code.
// Unknown codes fall back to the generic rules.
func Fold(text, lang string) string {
	var b strings.Builder
	b.Grow(len(text))

	// unidecode ends a syllable of word-less scripts with a space; keep the
	// break between them but not at the end of the text.
	pendingBreak := false
	for _, r := range norm.NFC.String(text) {
		if pendingBreak && !unicode.IsSpace(r) {
			b.WriteByte(' ')
		}
		pendingBreak = false

		if r < utf8.RuneSelf {
			b.WriteRune(r)
			continue
		}

		s, brk := foldRune(r, lang)
		b.WriteString(s)
		pendingBreak = brk
	}
	return b.String()
}

func foldRune(r rune, lang string) (string, bool) {
	raw := unidecode.Unidecode(string(r))
	s := slug.MakeLang(string(r), lang)
	if s == "" {
		// punctuation and symbols; the urlizer decides what they become
		return strings.TrimSpace(raw), false
	}
	if unicode.IsUpper(r) || unicode.IsTitle(r) {
		s = strings.ToUpper(s[:1]) + s[1:]
	}
	return s, strings.HasSuffix(raw, " ")
}
