package deepsearch

import (
	"strings"

	"github.com/prisma-glow/deepsearch/internal/storage/models"
)

// Hard cap imposed by the external search tool's domain-list limit.
// Truncation past the cap is silent policy.
const maxResolvedDomains = 20

var (
	ifrsDomains  = []string{"ifrs.org", "iasb.org"}
	iaasbDomains = []string{"iaasb.org", "ifac.org"}
	oecdDomains  = []string{"oecd.org"}

	taxAuthorityDomains = map[string][]string{
		"RW": {"rra.gov.rw"},
		"MT": {"cfr.gov.mt", "mfsa.mt"},
		"US": {"irs.gov"},
		"UK": {"gov.uk/hmrc"},
		"EU": {"ec.europa.eu/taxation_customs"},
	}

	secondaryDomains = []string{
		"accaglobal.com",
		"cpacanada.ca", "aicpa.org",
		"pwc.com", "kpmg.com", "ey.com", "deloitte.com",
	}
)

// ResolveDomains maps jurisdictions and topic domains to the trusted web
// domains a live search may consult. Unknown jurisdiction codes are skipped.
// The result is deduplicated in first-seen order and capped at 20 entries.
func ResolveDomains(jurisdictions, domains []string, includeSecondary bool) []string {
	var resolved []string

	if len(domains) == 0 || containsString(domains, "financial_reporting") || containsString(domains, "audit") {
		resolved = append(resolved, ifrsDomains...)
		resolved = append(resolved, iaasbDomains...)
	}

	if len(domains) == 0 || containsString(domains, "tax") {
		resolved = append(resolved, oecdDomains...)
	}

	for _, jurisdiction := range jurisdictions {
		if taxDomains, ok := taxAuthorityDomains[jurisdiction]; ok {
			resolved = append(resolved, taxDomains...)
		}
	}

	if includeSecondary {
		resolved = append(resolved, secondaryDomains...)
	}

	seen := make(map[string]bool, len(resolved))
	deduped := make([]string, 0, len(resolved))
	for _, domain := range resolved {
		if seen[domain] {
			continue
		}
		seen[domain] = true
		deduped = append(deduped, domain)
	}

	if len(deduped) > maxResolvedDomains {
		deduped = deduped[:maxResolvedDomains]
	}

	return deduped
}

// ClassifyURL determines the verification level of a source URL by testing it
// against the primary domain sets first, then the secondary set.
func ClassifyURL(url string) string {
	lowerURL := strings.ToLower(url)

	primarySets := [][]string{ifrsDomains, iaasbDomains, oecdDomains}
	for _, set := range primarySets {
		for _, domain := range set {
			if strings.Contains(lowerURL, domain) {
				return models.VerificationPrimary
			}
		}
	}
	for _, taxDomains := range taxAuthorityDomains {
		for _, domain := range taxDomains {
			if strings.Contains(lowerURL, domain) {
				return models.VerificationPrimary
			}
		}
	}

	for _, domain := range secondaryDomains {
		if strings.Contains(lowerURL, domain) {
			return models.VerificationSecondary
		}
	}

	return models.VerificationTertiary
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
