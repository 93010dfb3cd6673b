package validate

import (
	"net/url"
	"strings"

	"github.com/veritas-audit/veritas/internal/model"
)

// AuthorityClassifier classifies an outbound URL's host into an authority
// tier using a fixed set of domain heuristics. There is no per-deployment
// config for this (unlike the teacher's original page-scoring tool):
// Tier 4 only needs a coarse plausibility signal, not an admin-tunable list.
type AuthorityClassifier struct {
	primary   map[string]bool
	secondary map[string]bool
}

// NewAuthorityClassifier creates a classifier seeded with domains relevant
// to claim auditing: scholarly/reference publishers and the primary-source
// archives the Source Verification tiers already query directly.
func NewAuthorityClassifier() *AuthorityClassifier {
	return &AuthorityClassifier{
		primary: map[string]bool{
			"perseus.tufts.edu":       true,
			"ccel.org":                true,
			"www.ccel.org":            true,
			"arxiv.org":               true,
			"pubmed.ncbi.nlm.nih.gov": true,
			"api.semanticscholar.org": true,
		},
		secondary: map[string]bool{
			"books.google.com":   true,
			"scholar.google.com": true,
			"jstor.org":          true,
			"www.jstor.org":      true,
			"en.wikipedia.org":   true,
		},
	}
}

// Classify classifies a URL's host into an authority tier.
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.TierUnknown
	}

	host := parsed.Host
	if idx := strings.Index(host, ":"); idx > 0 {
		host = host[:idx]
	}

	if a.primary[host] {
		return model.TierPrimary
	}
	for domain := range a.primary {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return model.TierPrimary
		}
	}

	if a.secondary[host] {
		return model.TierSecondary
	}
	for domain := range a.secondary {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return model.TierSecondary
		}
	}

	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return model.TierPrimary
	}

	return model.TierTertiary
}
