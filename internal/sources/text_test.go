package sources

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  plain  ", "plain"},
		{"Müller", "Muller"},
		{"José Nuñez", "Jose Nunez"},
		{"Øresund Straße", "Oresund Strasse"},
		{"Łódź", "Lodz"},
		{"Encyclopædia", "Encyclopaedia"},
		{"dose–response", "dose-response"},
		{"line\n\tbreak", "line break"},
		{"漢字", "漢字"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Fold(tt.in))
		})
	}
}

func TestFoldPtr(t *testing.T) {
	assert.Nil(t, FoldPtr(nil))
	s := " Zürich "
	assert.Equal(t, "Zurich", *FoldPtr(&s))
}

func TestText_UnmarshalXML(t *testing.T) {
	var doc struct {
		Title Text `xml:"title"`
	}
	err := xml.Unmarshal([]byte(`<doc><title>Role of <i>p53</i> in<sup>2</sup> cells</title></doc>`), &doc)
	require.NoError(t, err)
	assert.Equal(t, "Role of p53 in2 cells", doc.Title.String())
}

func TestFlatten_Skip(t *testing.T) {
	dec := xml.NewDecoder(strings.NewReader(`<aff id="a1"><label>1</label>Dept of <b>Biology</b>, <sup>x</sup>Oslo</aff>`))
	tok, err := dec.Token()
	require.NoError(t, err)

	start, ok := tok.(xml.StartElement)
	require.True(t, ok)

	text, err := Flatten(dec, start, "label", "sup")
	require.NoError(t, err)
	assert.Equal(t, "Dept of Biology, Oslo", Fold(text))
}
