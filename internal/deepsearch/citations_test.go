package deepsearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCitations(t *testing.T) {
	citations := ExtractCitations("See IAS 21.28-37 and Section 14(a).")

	assert.ElementsMatch(t, []string{"IAS 21.28-37", "Section 14(a)"}, citations)
}

func TestExtractCitationsStandards(t *testing.T) {
	text := "Revenue recognition follows IFRS 15.9, while ifric 23 covers uncertainty and ISA 315 risk assessment."

	citations := ExtractCitations(text)

	assert.Contains(t, citations, "IFRS 15.9")
	assert.Contains(t, citations, "ifric 23")
	assert.Contains(t, citations, "ISA 315")
}

func TestExtractCitationsArticleAndParagraph(t *testing.T) {
	text := "Per Article 9.2 of the directive and Paragraph 12 of the guidance."

	citations := ExtractCitations(text)

	assert.Contains(t, citations, "Article 9.2")
	assert.Contains(t, citations, "Paragraph 12")
}

func TestExtractCitationsDeduplicates(t *testing.T) {
	citations := ExtractCitations("IAS 21 applies. As noted, IAS 21 requires translation at closing rates.")

	assert.Equal(t, []string{"IAS 21"}, citations)
}

func TestExtractCitationsNone(t *testing.T) {
	assert.Empty(t, ExtractCitations("No references in this text."))
}
