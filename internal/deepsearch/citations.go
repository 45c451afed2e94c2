package deepsearch

import "regexp"

// Clause-reference patterns: standard codes with optional numeric pinpoints
// and ranges (IAS 21.28-37, IFRS 15.9), plus generic Section/Article/Paragraph
// forms (Section 14(a)).
var citationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(IAS|IFRS|ISA|IFRIC)\s+\d+(?:\.\d+(?:-\d+)?)?`),
	regexp.MustCompile(`(?i)\bSection\s+\d+(?:\([a-z]\))?`),
	regexp.MustCompile(`(?i)\bArticle\s+\d+(?:\.\d+)?`),
	regexp.MustCompile(`(?i)\bParagraph\s+\d+(?:\.\d+)?`),
}

// ExtractCitations pulls clause references out of answer text with exact
// deduplication.
func ExtractCitations(text string) []string {
	var citations []string
	seen := make(map[string]bool)

	for _, pattern := range citationPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			if seen[match] {
				continue
			}
			seen[match] = true
			citations = append(citations, match)
		}
	}

	return citations
}
