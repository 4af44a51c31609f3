package sources

import (
	"encoding/xml"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ligatures covers letters that have no canonical decomposition.
var ligatures = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O",
	"ł", "l", "Ł", "L",
	"đ", "d", "Đ", "D",
	"ð", "d", "Ð", "D",
	"þ", "th", "Þ", "Th",
	"ı", "i",
	"ﬁ", "fi", "ﬂ", "fl", "ﬀ", "ff",
	"‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-",
	"‘", "'", "’", "'", "“", "\"", "”", "\"",
)

// AbstractSeparator separates abstract sections and paragraphs.
const AbstractSeparator = "\n\n"

// Fold strips diacritics where a decomposition exists, expands common
// ligatures and collapses whitespace.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	s = ligatures.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	return strings.Join(strings.Fields(folded), " ")
}

// FoldPtr folds *s, keeping nil as nil.
func FoldPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := Fold(*s)
	return &v
}

// Text is element content with inline markup flattened into plain text.
type Text string

// UnmarshalXML implements xml.Unmarshaler.
func (t *Text) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	s, err := Flatten(d, start)
	if err != nil {
		return err
	}
	*t = Text(s)
	return nil
}

// String returns the folded text.
func (t Text) String() string {
	return Fold(string(t))
}

// Flatten consumes the element opened by start and returns its character data,
// descending into children. Children whose local name is in skip are dropped.
func Flatten(d *xml.Decoder, start xml.StartElement, skip ...string) (string, error) {
	var b strings.Builder
	depth := 0
	skipDepth := -1

	for {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}

		switch tk := tok.(type) {
		case xml.StartElement:
			depth++
			if skipDepth < 0 && contains(skip, tk.Name.Local) {
				skipDepth = depth
			}
			if skipDepth < 0 && isBlock(tk.Name.Local) {
				b.WriteByte(' ')
			}
		case xml.EndElement:
			if depth == 0 {
				return b.String(), nil
			}
			if depth == skipDepth {
				skipDepth = -1
			}
			depth--
		case xml.CharData:
			if skipDepth < 0 {
				b.Write(tk)
			}
		}
	}
}

// isBlock reports elements whose content must not run into the preceding text.
func isBlock(name string) bool {
	switch name {
	case "p", "title", "sec", "list-item", "break":
		return true
	default:
		return false
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
