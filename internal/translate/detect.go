package translate

import "unicode"

var (
	devanagari = &unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x0900, Hi: 0x097F, Stride: 1}}}
	bengali    = &unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x0980, Hi: 0x09FF, Stride: 1}}}
	gurmukhi   = &unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x0A00, Hi: 0x0A7F, Stride: 1}}}
	gujarati   = &unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x0A80, Hi: 0x0AFF, Stride: 1}}}
	tamil      = &unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x0B80, Hi: 0x0BFF, Stride: 1}}}
	telugu     = &unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x0C00, Hi: 0x0C7F, Stride: 1}}}
	kannada    = &unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x0C80, Hi: 0x0CFF, Stride: 1}}}
	malayalam  = &unicode.RangeTable{R16: []unicode.Range16{{Lo: 0x0D00, Hi: 0x0D7F, Stride: 1}}}
)

// scripts is checked in order; the first script present anywhere in the
// text decides. Devanagari covers both Hindi and Marathi and reports Hindi.
var scripts = [...]struct {
	table *unicode.RangeTable
	lang  Language
}{
	{devanagari, Hindi},
	{tamil, Tamil},
	{telugu, Telugu},
	{bengali, Bengali},
	{gujarati, Gujarati},
	{kannada, Kannada},
	{malayalam, Malayalam},
	{gurmukhi, Punjabi},
}

// DetectLanguage classifies text by Unicode script. Text with no recognised
// Indic script is English.
func DetectLanguage(text string) Language {
	var seen [len(scripts)]bool
	for _, r := range text {
		if r < 0x0900 || r > 0x0D7F {
			continue
		}
		for i, s := range scripts {
			if unicode.Is(s.table, r) {
				seen[i] = true
				break
			}
		}
	}
	for i, s := range scripts {
		if seen[i] {
			return s.lang
		}
	}
	return English
}
