package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSearchResponseMarkdownLinks(t *testing.T) {
	content := "Lessees recognise a right-of-use asset per IFRS 16.22.\n\n" +
		"Sources:\n" +
		"- [IFRS 16](https://www.ifrs.org/standards/ifrs16)\n" +
		"- [IASB Update](https://www.iasb.org/update)\n"

	resp := extractSearchResponse(content)

	assert.Equal(t, "Lessees recognise a right-of-use asset per IFRS 16.22.", resp.Answer)
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "https://www.ifrs.org/standards/ifrs16", resp.Sources[0].URL)
	assert.Equal(t, "IFRS 16", resp.Sources[0].Title)
	assert.Equal(t, "IASB Update", resp.Sources[1].Title)
}

func TestExtractSearchResponseBareURLs(t *testing.T) {
	content := "Answer text.\n\nSources:\nhttps://www.oecd.org/tax/beps/, https://rra.gov.rw/guidance."

	resp := extractSearchResponse(content)

	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "https://www.oecd.org/tax/beps/", resp.Sources[0].URL)
	assert.Equal(t, "https://rra.gov.rw/guidance", resp.Sources[1].URL)
	assert.Empty(t, resp.Sources[0].Title)
}

func TestExtractSearchResponseDeduplicatesURLs(t *testing.T) {
	content := "Answer.\n\nSources:\n[A](https://ifrs.org/x)\n[B](https://ifrs.org/x)"

	resp := extractSearchResponse(content)

	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "A", resp.Sources[0].Title)
}

func TestExtractSearchResponseNoSourcesSection(t *testing.T) {
	content := "An answer with an inline link [IFRS 16](https://ifrs.org/ifrs16) but no sources section."

	resp := extractSearchResponse(content)

	assert.Equal(t, content, resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "https://ifrs.org/ifrs16", resp.Sources[0].URL)
}

func TestExtractSearchResponseCaseInsensitiveHeading(t *testing.T) {
	content := "Answer.\n\nSOURCES:\n[A](https://ifrs.org/x)"

	resp := extractSearchResponse(content)

	assert.Equal(t, "Answer.", resp.Answer)
	require.Len(t, resp.Sources, 1)
}
