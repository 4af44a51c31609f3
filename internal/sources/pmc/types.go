// Package pmc maps PubMed Central JATS documents fetched through
// E-utilities into domain records.
package pmc

import (
	"encoding/xml"

	"github.com/helixir/ncbi-query-service/internal/sources"
)

// ArticleSet represents the response from efetch with db=pmc.
type ArticleSet struct {
	XMLName  xml.Name  `xml:"pmc-articleset"`
	Articles []Article `xml:"article"`
	Error    string    `xml:"error,omitempty"`
}

// Article is a JATS article; only the front matter is mapped.
type Article struct {
	Front Front `xml:"front"`
}

// Front holds journal and article metadata.
type Front struct {
	JournalMeta JournalMeta `xml:"journal-meta"`
	ArticleMeta ArticleMeta `xml:"article-meta"`
}

// JournalMeta describes the journal.
type JournalMeta struct {
	TitleGroups []JournalTitleGroup `xml:"journal-title-group"`
	// LegacyTitle is the pre-JATS-3 journal-title placement.
	LegacyTitle sources.Text `xml:"journal-title"`
	ISSNs       []ISSN       `xml:"issn"`
}

// JournalTitleGroup wraps journal titles.
type JournalTitleGroup struct {
	Titles []sources.Text `xml:"journal-title"`
}

// ISSN carries the print or electronic ISSN.
type ISSN struct {
	PubType           string `xml:"pub-type,attr"`
	PublicationFormat string `xml:"publication-format,attr"`
	Value             string `xml:",chardata"`
}

// ArticleMeta describes the article.
type ArticleMeta struct {
	ArticleIDs    []ArticleID    `xml:"article-id"`
	TitleGroup    *TitleGroup    `xml:"title-group"`
	ContribGroups []ContribGroup `xml:"contrib-group"`
	Affs          []Aff          `xml:"aff"`
	PubDates      []PubDate      `xml:"pub-date"`
	Abstracts     []Abstract     `xml:"abstract"`
	FundingGroups []FundingGroup `xml:"funding-group"`
}

// ArticleID is an identifier such as pmc, pmid or doi.
type ArticleID struct {
	PubIDType string `xml:"pub-id-type,attr"`
	Value     string `xml:",chardata"`
}

// TitleGroup holds the article title.
type TitleGroup struct {
	ArticleTitle *sources.Text `xml:"article-title"`
}

// ContribGroup lists contributors and, in some documents, their affiliations.
type ContribGroup struct {
	Contribs []Contrib `xml:"contrib"`
	Affs     []Aff     `xml:"aff"`
}

// Contrib is one contributor.
type Contrib struct {
	ContribType string       `xml:"contrib-type,attr"`
	Name        *Name        `xml:"name"`
	Collab      sources.Text `xml:"collab"`
	XRefs       []XRef       `xml:"xref"`
	Affs        []Aff        `xml:"aff"`
}

// Name is a structured personal name.
type Name struct {
	Surname    string     `xml:"surname"`
	GivenNames GivenNames `xml:"given-names"`
}

// GivenNames may carry explicit initials.
type GivenNames struct {
	Initials string `xml:"initials,attr"`
	Value    string `xml:",chardata"`
}

// XRef points at another element by id.
type XRef struct {
	RefType string `xml:"ref-type,attr"`
	RID     string `xml:"rid,attr"`
}

// Aff is an affiliation; its label is dropped from the text.
type Aff struct {
	ID   string
	Text string
}

// UnmarshalXML reads the id attribute and flattens the content without labels.
func (a *Aff) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "id" {
			a.ID = attr.Value
		}
	}
	text, err := sources.Flatten(d, start, "label", "sup")
	if err != nil {
		return err
	}
	a.Text = text
	return nil
}

// PubDate is one publication date; older documents use pub-type, newer ones
// date-type with publication-format.
type PubDate struct {
	PubType           string `xml:"pub-type,attr"`
	DateType          string `xml:"date-type,attr"`
	PublicationFormat string `xml:"publication-format,attr"`
	Year              string `xml:"year"`
	Month             string `xml:"month"`
	Day               string `xml:"day"`
	Season            string `xml:"season"`
}

// Abstract holds paragraphs directly or grouped in titled sections.
type Abstract struct {
	AbstractType string            `xml:"abstract-type,attr"`
	Paragraphs   []sources.Text    `xml:"p"`
	Sections     []AbstractSection `xml:"sec"`
}

// AbstractSection is a titled abstract section.
type AbstractSection struct {
	Title      sources.Text   `xml:"title"`
	Paragraphs []sources.Text `xml:"p"`
}

// FundingGroup lists award groups.
type FundingGroup struct {
	AwardGroups []AwardGroup `xml:"award-group"`
}

// AwardGroup names funders and their award ids.
type AwardGroup struct {
	FundingSources []sources.Text `xml:"funding-source"`
	AwardIDs       []string       `xml:"award-id"`
}
