package translate

import "strings"

// Language is an ISO 639-1 code supported by the assistant.
type Language string

const (
	English   Language = "en"
	Hindi     Language = "hi"
	Marathi   Language = "mr"
	Tamil     Language = "ta"
	Telugu    Language = "te"
	Bengali   Language = "bn"
	Gujarati  Language = "gu"
	Kannada   Language = "kn"
	Malayalam Language = "ml"
	Punjabi   Language = "pa"
)

// Auto asks the detector to pick the language from the text itself.
const Auto Language = "auto"

var names = map[Language]string{
	English:   "English",
	Hindi:     "Hindi",
	Marathi:   "Marathi",
	Tamil:     "Tamil",
	Telugu:    "Telugu",
	Bengali:   "Bengali",
	Gujarati:  "Gujarati",
	Kannada:   "Kannada",
	Malayalam: "Malayalam",
	Punjabi:   "Punjabi",
}

// Supported reports whether l is one of the ten supported codes.
func (l Language) Supported() bool {
	_, ok := names[l]
	return ok
}

// Name returns the English display name, or the raw code when unknown.
func (l Language) Name() string {
	if n, ok := names[l]; ok {
		return n
	}
	return string(l)
}

// ParseLanguage normalises a request value. Empty means English and "auto"
// is returned as Auto; anything else must be a supported code.
func ParseLanguage(s string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	switch {
	case l == "":
		return English, nil
	case l == Auto:
		return Auto, nil
	case l.Supported():
		return l, nil
	}
	return "", &UnsupportedLanguageError{Code: s}
}

// Languages lists the supported codes in a stable order.
func Languages() []Language {
	return []Language{English, Hindi, Marathi, Tamil, Telugu, Bengali, Gujarati, Kannada, Malayalam, Punjabi}
}
