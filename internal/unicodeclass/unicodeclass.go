// Package unicodeclass labels characters of converted output by Unicode block
// and general category.
package unicodeclass

import (
	"sort"
	"strings"
	"unicode"
)

// Unknown is returned for characters outside the known tables.
const Unknown = "Unknown"

type block struct {
	lo, hi rune
	name   string
}

// blocks is sorted by lo and covers the ranges ASCII and ANSI art converters
// emit in practice, plus the common scripts captions and art are made of.
var blocks = []block{
	{0x0000, 0x007F, "Basic Latin"},
	{0x0080, 0x00FF, "Latin-1 Supplement"},
	{0x0100, 0x017F, "Latin Extended-A"},
	{0x0180, 0x024F, "Latin Extended-B"},
	{0x0250, 0x02AF, "IPA Extensions"},
	{0x02B0, 0x02FF, "Spacing Modifier Letters"},
	{0x0300, 0x036F, "Combining Diacritical Marks"},
	{0x0370, 0x03FF, "Greek and Coptic"},
	{0x0400, 0x04FF, "Cyrillic"},
	{0x0590, 0x05FF, "Hebrew"},
	{0x0600, 0x06FF, "Arabic"},
	{0x0900, 0x097F, "Devanagari"},
	{0x0E00, 0x0E7F, "Thai"},
	{0x1E00, 0x1EFF, "Latin Extended Additional"},
	{0x2000, 0x206F, "General Punctuation"},
	{0x2070, 0x209F, "Superscripts and Subscripts"},
	{0x20A0, 0x20CF, "Currency Symbols"},
	{0x2100, 0x214F, "Letterlike Symbols"},
	{0x2150, 0x218F, "Number Forms"},
	{0x2190, 0x21FF, "Arrows"},
	{0x2200, 0x22FF, "Mathematical Operators"},
	{0x2300, 0x23FF, "Miscellaneous Technical"},
	{0x2400, 0x243F, "Control Pictures"},
	{0x2460, 0x24FF, "Enclosed Alphanumerics"},
	{0x2500, 0x257F, "Box Drawing"},
	{0x2580, 0x259F, "Block Elements"},
	{0x25A0, 0x25FF, "Geometric Shapes"},
	{0x2600, 0x26FF, "Miscellaneous Symbols"},
	{0x2700, 0x27BF, "Dingbats"},
	{0x2800, 0x28FF, "Braille Patterns"},
	{0x2E80, 0x2EFF, "CJK Radicals Supplement"},
	{0x3000, 0x303F, "CJK Symbols and Punctuation"},
	{0x3040, 0x309F, "Hiragana"},
	{0x30A0, 0x30FF, "Katakana"},
	{0x4E00, 0x9FFF, "CJK Unified Ideographs"},
	{0xAC00, 0xD7AF, "Hangul Syllables"},
	{0xE000, 0xF8FF, "Private Use Area"},
	{0xFE00, 0xFE0F, "Variation Selectors"},
	{0xFF00, 0xFFEF, "Halfwidth and Fullwidth Forms"},
	{0xFFF0, 0xFFFF, "Specials"},
	{0x1D400, 0x1D7FF, "Mathematical Alphanumeric Symbols"},
	{0x1F300, 0x1F5FF, "Miscellaneous Symbols and Pictographs"},
	{0x1F600, 0x1F64F, "Emoticons"},
	{0x1FB00, 0x1FBFF, "Symbols for Legacy Computing"},
}

// Section returns the Unicode block containing r.
func Section(r rune) string {
	i := sort.Search(len(blocks), func(i int) bool { return blocks[i].hi >= r })
	if i < len(blocks) && blocks[i].lo <= r {
		return blocks[i].name
	}
	return Unknown
}

type category struct {
	table *unicode.RangeTable
	name  string
}

// categories uses the two-letter general categories; order matters only for
// readability since they are disjoint.
var categories = []category{
	{unicode.Lu, "Uppercase Letter"},
	{unicode.Ll, "Lowercase Letter"},
	{unicode.Lt, "Titlecase Letter"},
	{unicode.Lm, "Modifier Letter"},
	{unicode.Lo, "Other Letter"},
	{unicode.Mn, "Nonspacing Mark"},
	{unicode.Mc, "Spacing Mark"},
	{unicode.Me, "Enclosing Mark"},
	{unicode.Nd, "Decimal Number"},
	{unicode.Nl, "Letter Number"},
	{unicode.No, "Other Number"},
	{unicode.Pc, "Connector Punctuation"},
	{unicode.Pd, "Dash Punctuation"},
	{unicode.Ps, "Open Punctuation"},
	{unicode.Pe, "Close Punctuation"},
	{unicode.Pi, "Initial Punctuation"},
	{unicode.Pf, "Final Punctuation"},
	{unicode.Po, "Other Punctuation"},
	{unicode.Sm, "Math Symbol"},
	{unicode.Sc, "Currency Symbol"},
	{unicode.Sk, "Modifier Symbol"},
	{unicode.So, "Other Symbol"},
	{unicode.Zs, "Space Separator"},
	{unicode.Zl, "Line Separator"},
	{unicode.Zp, "Paragraph Separator"},
	{unicode.Cc, "Control"},
	{unicode.Cf, "Format"},
	{unicode.Co, "Private Use"},
	{unicode.Cs, "Surrogate"},
}

// Category returns the long name of the general category of r.
func Category(r rune) string {
	for _, c := range categories {
		if unicode.Is(c.table, r) {
			return c.name
		}
	}
	return "Unassigned"
}

// Distinct maps every character of s through fn and joins the distinct
// results with commas, in first-seen order.
func Distinct(s string, fn func(rune) string) string {
	seen := make(map[string]struct{})
	var parts []string
	for _, r := range s {
		value := fn(r)
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		parts = append(parts, value)
	}
	return strings.Join(parts, ",")
}
