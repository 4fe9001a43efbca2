package translate

import "strings"

const DefaultLanguage = "es"

var languageNames = map[string]string{
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"ru": "Russian",
	"ar": "Arabic",
}

// LanguageName maps a language code to the name used in the prompt.
// Unknown codes fall back to Spanish.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return languageNames[DefaultLanguage]
}

func normalizeLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return DefaultLanguage
	}
	return code
}
