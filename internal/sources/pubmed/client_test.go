package pubmed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/ncbi-query-service/internal/domain"
	"github.com/helixir/ncbi-query-service/internal/sources"
)

const esearchResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE eSearchResult PUBLIC "-//NLM//DTD esearch 20060628//EN" "https://eutils.ncbi.nlm.nih.gov/eutils/dtd/20060628/esearch.dtd">
<eSearchResult>
	<Count>2</Count>
	<RetMax>2</RetMax>
	<RetStart>0</RetStart>
	<IdList>
		<Id>23144831</Id>
		<Id>87654321</Id>
	</IdList>
</eSearchResult>`

const esearchPhraseNotFoundXML = `<?xml version="1.0" encoding="UTF-8" ?>
<eSearchResult>
	<Count>0</Count>
	<RetMax>0</RetMax>
	<RetStart>0</RetStart>
	<IdList>
	</IdList>
	<ErrorList>
		<PhraseNotFound>nonexistent_term_xyz</PhraseNotFound>
	</ErrorList>
</eSearchResult>`

const esearchErrorXML = `<?xml version="1.0" encoding="UTF-8" ?>
<eSearchResult>
	<ERROR>Invalid query</ERROR>
</eSearchResult>`

const efetchResponseXML = `<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE PubmedArticleSet PUBLIC "-//NLM//DTD PubMedArticle, 1st January 2019//EN" "https://dtd.nlm.nih.gov/ncbi/pubmed/out/pubmed_190101.dtd">
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation Status="MEDLINE" Owner="NLM">
			<PMID Version="1">23144831</PMID>
			<DateCreated>
				<Year>2012</Year>
				<Month>11</Month>
				<Day>12</Day>
			</DateCreated>
			<DateCompleted>
				<Year>2013</Year>
				<Month>04</Month>
				<Day>22</Day>
			</DateCompleted>
			<Article PubModel="Electronic-eCollection">
				<Journal>
					<ISSN IssnType="Electronic">1932-6203</ISSN>
					<JournalIssue CitedMedium="Internet">
						<Volume>7</Volume>
						<Issue>11</Issue>
						<PubDate>
							<Year>2012</Year>
						</PubDate>
					</JournalIssue>
					<Title>PloS one</Title>
					<ISOAbbreviation>PLoS ONE</ISOAbbreviation>
				</Journal>
				<ArticleTitle>Regulation of <i>Arabidopsis</i> gene expression in Müller cells.</ArticleTitle>
				<Abstract>
					<AbstractText Label="BACKGROUND" NlmCategory="BACKGROUND">Gene regulation is <b>complex</b>.</AbstractText>
					<AbstractText Label="RESULTS" NlmCategory="RESULTS">We found   three   factors.</AbstractText>
				</Abstract>
				<AuthorList CompleteYN="Y">
					<Author ValidYN="Y">
						<LastName>Ødegård</LastName>
						<ForeName>José</ForeName>
						<Initials>J</Initials>
						<AffiliationInfo>
							<Affiliation>Department of Genetics, Universität Zürich, Switzerland.</Affiliation>
						</AffiliationInfo>
						<AffiliationInfo>
							<Affiliation>Institute of Molecular Biology, Oslo, Norway.</Affiliation>
						</AffiliationInfo>
					</Author>
					<Author ValidYN="N">
						<LastName>Wrong</LastName>
						<ForeName>Entry</ForeName>
						<Initials>E</Initials>
					</Author>
					<Author ValidYN="Y">
						<LastName>Smith</LastName>
						<ForeName>Anna B</ForeName>
						<Initials>AB</Initials>
					</Author>
					<Author ValidYN="Y">
						<CollectiveName>Plant Genomics Consortium</CollectiveName>
					</Author>
					<Author ValidYN="Y">
						<Initials>KL</Initials>
					</Author>
					<Author ValidYN="Y">
						<AffiliationInfo>
							<Affiliation>Nameless author affiliation.</Affiliation>
						</AffiliationInfo>
					</Author>
				</AuthorList>
				<GrantList CompleteYN="Y">
					<Grant>
						<GrantID>R01 GM012345</GrantID>
						<Acronym>GM</Acronym>
						<Agency>NIGMS NIH HHS</Agency>
						<Country>United States</Country>
					</Grant>
					<Grant>
						<Agency>Wellcome Trust</Agency>
						<Country>United Kingdom</Country>
					</Grant>
				</GrantList>
				<ArticleDate DateType="Electronic">
					<Year>2012</Year>
					<Month>11</Month>
					<Day>07</Day>
				</ArticleDate>
			</Article>
			<MeshHeadingList>
				<MeshHeading>
					<DescriptorName UI="D017360" MajorTopicYN="N">Arabidopsis</DescriptorName>
					<QualifierName UI="Q000235" MajorTopicYN="N">genetics</QualifierName>
					<QualifierName UI="Q000378" MajorTopicYN="Y">metabolism</QualifierName>
				</MeshHeading>
				<MeshHeading>
					<DescriptorName UI="D015964" MajorTopicYN="N">Gene Expression Regulation, Plant</DescriptorName>
				</MeshHeading>
				<MeshHeading>
					<DescriptorName UI="D000000" MajorTopicYN="N"></DescriptorName>
				</MeshHeading>
			</MeshHeadingList>
		</MedlineCitation>
		<PubmedData>
			<ArticleIdList>
				<ArticleId IdType="pubmed">23144831</ArticleId>
				<ArticleId IdType="pmc">PMC3492325</ArticleId>
			</ArticleIdList>
		</PubmedData>
	</PubmedArticle>
</PubmedArticleSet>`

const efetchMedlineDateXML = `<?xml version="1.0" encoding="UTF-8" ?>
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation>
			<PMID Version="1">87654321</PMID>
			<Article>
				<Journal>
					<JournalIssue>
						<PubDate>
							<MedlineDate>2022 Jan-Feb</MedlineDate>
						</PubDate>
					</JournalIssue>
				</Journal>
				<ArticleTitle>Advances in Gene Therapy Delivery Systems</ArticleTitle>
				<Abstract>
					<AbstractText>Unlabelled abstract.</AbstractText>
				</Abstract>
			</Article>
		</MedlineCitation>
	</PubmedArticle>
</PubmedArticleSet>`

const efetchEmptyXML = `<?xml version="1.0" encoding="UTF-8" ?>
<PubmedArticleSet></PubmedArticleSet>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
		RateLimit:  100,
		BurstSize:  10,
		MaxRetries: 1,
		RetryDelay: 10 * time.Millisecond,
	})
	eutils := sources.NewEUtils(sources.EUtilsConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Tool:    "ncbi-query-service",
		Email:   "ops@example.org",
	}, httpClient)

	return New(eutils)
}

func TestClient_Search(t *testing.T) {
	t.Run("returns identifiers", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, strings.HasSuffix(r.URL.Path, "/esearch.fcgi"))
			q := r.URL.Query()
			assert.Equal(t, "pubmed", q.Get("db"))
			assert.Equal(t, "asthma AND children", q.Get("term"))
			assert.Equal(t, "25", q.Get("retmax"))
			assert.Equal(t, "test-key", q.Get("api_key"))
			assert.Equal(t, "ncbi-query-service", q.Get("tool"))
			assert.Equal(t, "ops@example.org", q.Get("email"))
			w.Write([]byte(esearchResponseXML))
		})

		result, err := client.Search(context.Background(), domain.SearchParams{Query: "asthma AND children", MaxResults: 25})
		require.NoError(t, err)
		assert.Equal(t, []string{"23144831", "87654321"}, result.Identifiers)
		assert.Equal(t, 2, result.TotalCount)
	})

	t.Run("phrase not found is an empty result", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(esearchPhraseNotFoundXML))
		})

		result, err := client.Search(context.Background(), domain.SearchParams{Query: "nonexistent_term_xyz"})
		require.NoError(t, err)
		assert.Empty(t, result.Identifiers)
		assert.Zero(t, result.TotalCount)
	})

	t.Run("error element is reported", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(esearchErrorXML))
		})

		_, err := client.Search(context.Background(), domain.SearchParams{Query: "((("})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("non-200 status is an API error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("bad request"))
		})

		_, err := client.Search(context.Background(), domain.SearchParams{Query: "asthma"})
		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})
}

func TestClient_Fetch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/efetch.fcgi"))
		q := r.URL.Query()
		assert.Equal(t, "pubmed", q.Get("db"))
		assert.Equal(t, "xml", q.Get("rettype"))
		assert.Equal(t, "23144831", q.Get("id"))
		w.Write([]byte(efetchResponseXML))
	})

	record, err := client.Fetch(context.Background(), "23144831")
	require.NoError(t, err)

	assert.Equal(t, domain.DatabasePubMed, record.Source)
	assert.Equal(t, "23144831", record.Identifier)
	assert.Equal(t, "PMC3492325", record.AlternateID)

	require.NotNil(t, record.Title)
	assert.Equal(t, "Regulation of Arabidopsis gene expression in Muller cells.", *record.Title)
	assert.Equal(t, "BACKGROUND: Gene regulation is complex.\n\nRESULTS: We found three factors.", record.Abstract)

	require.NotNil(t, record.Date)
	assert.Equal(t, time.Date(2012, time.November, 12, 0, 0, 0, 0, time.UTC), *record.Date)

	require.NotNil(t, record.Journal)
	assert.Equal(t, "PloS one", record.Journal.Title)
	assert.Equal(t, "1932-6203", record.Journal.ISSN)

	require.Len(t, record.Authors, 4)
	assert.Equal(t, domain.RecordAuthor{
		LastName: "Odegard",
		ForeName: "Jose",
		Initials: "J",
		Affiliations: []string{
			"Department of Genetics, Universitat Zurich, Switzerland.",
			"Institute of Molecular Biology, Oslo, Norway.",
		},
	}, record.Authors[0])
	assert.Equal(t, "Smith", record.Authors[1].LastName)
	assert.Empty(t, record.Authors[1].Affiliations)
	assert.Equal(t, "Plant Genomics Consortium", record.Authors[2].LastName)
	assert.Empty(t, record.Authors[2].ForeName)
	assert.Equal(t, domain.RecordAuthor{Initials: "KL"}, record.Authors[3])

	assert.Equal(t, []domain.RecordHeading{
		{Descriptor: "Arabidopsis", Qualifier: "genetics"},
		{Descriptor: "Arabidopsis", Qualifier: "metabolism"},
		{Descriptor: "Gene Expression Regulation, Plant"},
	}, record.MeSHHeadings)

	assert.Equal(t, []domain.RecordGrant{
		{GrantID: "R01 GM012345", Acronym: "GM", Agency: "NIGMS NIH HHS", Country: "United States"},
		{Agency: "Wellcome Trust", Country: "United Kingdom"},
	}, record.Grants)
}

func TestParse(t *testing.T) {
	t.Run("medline date falls back to leading month", func(t *testing.T) {
		record, err := Parse([]byte(efetchMedlineDateXML), "87654321")
		require.NoError(t, err)

		require.NotNil(t, record.Date)
		assert.Equal(t, time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC), *record.Date)
		assert.Equal(t, "Unlabelled abstract.", record.Abstract)
		assert.Nil(t, record.Journal, "journal without a title is dropped")
		assert.Empty(t, record.Authors)
		assert.Empty(t, record.MeSHHeadings)
	})

	t.Run("empty article set is not found", func(t *testing.T) {
		_, err := Parse([]byte(efetchEmptyXML), "1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("malformed document is a parse error", func(t *testing.T) {
		_, err := Parse([]byte("<PubmedArticleSet><PubmedArticle>"), "1")
		assert.ErrorIs(t, err, domain.ErrMalformedResponse)
		var perr *domain.ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "1", perr.Identifier)
	})

	t.Run("missing title stays nil", func(t *testing.T) {
		doc := `<PubmedArticleSet><PubmedArticle><MedlineCitation><PMID>5</PMID><Article></Article></MedlineCitation></PubmedArticle></PubmedArticleSet>`
		record, err := Parse([]byte(doc), "5")
		require.NoError(t, err)
		assert.Nil(t, record.Title)
		assert.Nil(t, record.Date)
		assert.Equal(t, "", record.Abstract)
	})
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name             string
		year, month, day string
		want             *time.Time
	}{
		{"numeric", "2020", "03", "15", ptrTime(2020, time.March, 15)},
		{"month name", "2019", "Sep", "", ptrTime(2019, time.September, 1)},
		{"year only", "2001", "", "", ptrTime(2001, time.January, 1)},
		{"invalid year", "n/a", "", "", nil},
		{"day overflow", "2021", "02", "30", ptrTime(2021, time.February, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDate(tt.year, tt.month, tt.day))
		})
	}
}

func ptrTime(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
