package types

import "strings"

// LanguageCode identifies one of the languages the service answers in.
type LanguageCode string

const (
	LangEnglish   LanguageCode = "en"
	LangHindi     LanguageCode = "hi"
	LangTamil     LanguageCode = "ta"
	LangTelugu    LanguageCode = "te"
	LangKannada   LanguageCode = "kn"
	LangMalayalam LanguageCode = "ml"
)

// SupportedLanguages lists every language the pipeline can detect, translate
// and answer in.
var SupportedLanguages = []LanguageCode{
	LangEnglish, LangHindi, LangTamil, LangTelugu, LangKannada, LangMalayalam,
}

// IsSupported reports whether code names a supported language.
func IsSupported(code LanguageCode) bool {
	for _, l := range SupportedLanguages {
		if l == code {
			return true
		}
	}
	return false
}

// ParseLanguage normalizes a client-supplied language tag. Unknown or empty
// tags fall back to English.
func ParseLanguage(s string) LanguageCode {
	code := LanguageCode(strings.ToLower(strings.TrimSpace(s)))
	if IsSupported(code) {
		return code
	}
	return LangEnglish
}

// scriptRange is a half-open range of Unicode code points.
type scriptRange struct {
	lo, hi rune
}

// Native script blocks for the non-English languages. Hindi uses Devanagari.
var scriptRanges = map[LanguageCode]scriptRange{
	LangHindi:     {0x0900, 0x097F},
	LangTamil:     {0x0B80, 0x0BFF},
	LangTelugu:    {0x0C00, 0x0C7F},
	LangKannada:   {0x0C80, 0x0CFF},
	LangMalayalam: {0x0D00, 0x0D7F},
}

// HasNativeScript reports whether text contains at least one code point in
// the native script block of lang. English always reports true.
func HasNativeScript(text string, lang LanguageCode) bool {
	if lang == LangEnglish {
		return true
	}
	r, ok := scriptRanges[lang]
	if !ok {
		return false
	}
	for _, c := range text {
		if c >= r.lo && c <= r.hi {
			return true
		}
	}
	return false
}

// DetectScript returns the language whose native script block the text's
// first non-Latin code point falls in, or English when none matches.
func DetectScript(text string) LanguageCode {
	for _, c := range text {
		for lang, r := range scriptRanges {
			if c >= r.lo && c <= r.hi {
				return lang
			}
		}
	}
	return LangEnglish
}
