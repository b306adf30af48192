package mockservice

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultLanguage is used when a request names no language.
const DefaultLanguage = "German"

// languageAliases maps lower-cased names, native names and ISO codes to the
// canonical English language name.
var languageAliases = map[string]string{
	// Turkish
	"turkish": "Turkish", "türkisch": "Turkish", "tuerkisch": "Turkish", "tr": "Turkish",
	"tur": "Turkish", "türkçe": "Turkish", "türk": "Turkish", "turkish / türkisch": "Turkish",
	// German
	"german": "German", "deutsch": "German", "de": "German", "ger": "German",
	"germanisch": "German", "deu": "German", "german / deutsch": "German",
	// English
	"english": "English", "englisch": "English", "en": "English", "eng": "English",
	"english / englisch": "English",
	// French
	"french": "French", "français": "French", "francais": "French", "französisch": "French",
	"fr": "French", "fra": "French", "french / français": "French",
	// Spanish
	"spanish": "Spanish", "español": "Spanish", "espanol": "Spanish", "spanisch": "Spanish",
	"es": "Spanish", "spa": "Spanish", "spanish / español": "Spanish",
	// Italian
	"italian": "Italian", "italiano": "Italian", "italienisch": "Italian", "it": "Italian",
	"ita": "Italian", "italian / italiano": "Italian",
	// Japanese
	"japanese": "Japanese", "japanisch": "Japanese", "日本語": "Japanese", "ja": "Japanese",
	"jpn": "Japanese", "nihongo": "Japanese", "japanese / 日本語": "Japanese",
	// Chinese
	"chinese": "Chinese", "chinesisch": "Chinese", "中文": "Chinese", "zh": "Chinese",
	"mandarin": "Chinese", "zho": "Chinese", "chinese / 中文": "Chinese",
	// Portuguese
	"portuguese": "Portuguese", "portugiesisch": "Portuguese", "português": "Portuguese",
	"pt": "Portuguese", "por": "Portuguese", "portuguese / português": "Portuguese",
	// Russian
	"russian": "Russian", "russisch": "Russian", "русский": "Russian", "ru": "Russian",
	"rus": "Russian", "russian / русский": "Russian",
	// Dutch
	"dutch": "Dutch", "niederländisch": "Dutch", "holländisch": "Dutch", "nl": "Dutch",
	"nld": "Dutch", "nederlands": "Dutch", "dutch / nederlands": "Dutch",
	// Korean
	"korean": "Korean", "koreanisch": "Korean", "한국어": "Korean", "ko": "Korean",
	"kor": "Korean", "korean / 한국어": "Korean",
	// Arabic
	"arabic": "Arabic", "arabisch": "Arabic", "العربية": "Arabic", "ar": "Arabic",
	"ara": "Arabic", "arabic / العربية": "Arabic",
	// Polish
	"polish": "Polish", "polnisch": "Polish", "polski": "Polish", "pl": "Polish",
	"pol": "Polish", "polish / polski": "Polish",
}

// NormalizeLanguage maps a free-form language name to its canonical form.
// Unknown names are trimmed and returned with only the first letter upper
// case; an empty name gives DefaultLanguage.
func NormalizeLanguage(lang string) string {
	trimmed := strings.TrimSpace(lang)
	if trimmed == "" {
		return DefaultLanguage
	}
	if canonical, ok := languageAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return capitalize(trimmed)
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
