package render

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Katakana block shifted down by this offset lands on hiragana.
const kanaShift = 0x60

// Kana ranges with a hiragana counterpart. ヺ and friends past ヶ have no
// hiragana equivalent and are left alone, as is the long-vowel mark.
const (
	katakanaFirst = 'ァ'
	katakanaLast  = 'ヶ'
)

// KatakanaToHiragana shifts katakana code points onto their hiragana
// counterparts, leaving everything else untouched.
func KatakanaToHiragana(text string) string {
	var builder strings.Builder

	builder.Grow(len(text))

	for _, r := range text {
		if r >= katakanaFirst && r <= katakanaLast {
			r -= kanaShift
		}

		builder.WriteRune(r)
	}

	return builder.String()
}

// normalizeSurface folds full-width ASCII to half-width and uppercases, so
// "ｇｐｔ" and "gpt" both hit the "GPT" lexicon entry.
func normalizeSurface(surface string) string {
	return strings.ToUpper(width.Fold.String(surface))
}

// hasASCIIAlnum reports whether the surface contains any ASCII letter or digit.
func hasASCIIAlnum(surface string) bool {
	for _, r := range surface {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return true
		}
	}

	return false
}

// isBareDigit reports whether the surface is digits and nothing else.
func isBareDigit(surface string) bool {
	if surface == "" {
		return false
	}

	for _, r := range surface {
		if !unicode.IsDigit(r) {
			return false
		}
	}

	return true
}

// endsWithDigit reports whether the previously emitted surface ends in a
// digit, which is what makes a following counter word keep its reading.
func endsWithDigit(surface string) bool {
	runes := []rune(surface)
	if len(runes) == 0 {
		return false
	}

	return unicode.IsDigit(runes[len(runes)-1])
}
