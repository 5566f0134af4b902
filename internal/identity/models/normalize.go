package models

import (
	"strings"
	"unicode"
)

// NormalizeEmail canonicalizes an email for uniqueness comparison.
// Emails are compared case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeNationalID strips formatting (dots, dashes, spaces) so national
// IDs compare digits-only: "111.222.333-44" and "11122233344" are the same key.
func NormalizeNationalID(nationalID string) string {
	var b strings.Builder
	b.Grow(len(nationalID))
	for _, r := range nationalID {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DeriveLogin builds a login handle from a display name: lowercase,
// diacritics folded, non-letter characters dropped, then collapsed to the
// first token, or "first.last" when the name has several tokens. Logins have
// no uniqueness guarantee of their own; only email and national ID are
// enforced as unique keys.
func DeriveLogin(displayName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(displayName) {
		r = foldDiacritic(r)
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	switch len(tokens) {
	case 0:
		return ""
	case 1:
		return tokens[0]
	default:
		return tokens[0] + "." + tokens[len(tokens)-1]
	}
}

// foldDiacritic maps accented Latin letters onto their base letter. The fold
// set covers Latin-1 Supplement and Latin Extended-A, which is closed over
// the locales this system ingests names from.
func foldDiacritic(r rune) rune {
	switch r {
	case 'á', 'à', 'â', 'ã', 'ä', 'å', 'ā', 'ă', 'ą':
		return 'a'
	case 'ç', 'ć', 'ĉ', 'č':
		return 'c'
	case 'é', 'è', 'ê', 'ë', 'ē', 'ĕ', 'ė', 'ę', 'ě':
		return 'e'
	case 'í', 'ì', 'î', 'ï', 'ĩ', 'ī', 'į':
		return 'i'
	case 'ñ', 'ń', 'ň':
		return 'n'
	case 'ó', 'ò', 'ô', 'õ', 'ö', 'ø', 'ō', 'ŏ', 'ő':
		return 'o'
	case 'ś', 'ŝ', 'š', 'ş':
		return 's'
	case 'ú', 'ù', 'û', 'ü', 'ũ', 'ū', 'ŭ', 'ů':
		return 'u'
	case 'ý', 'ÿ':
		return 'y'
	case 'ź', 'ż', 'ž':
		return 'z'
	default:
		return r
	}
}
