package model

import "time"

// Source is owned by exactly one ClaimCard and is deleted with it.
type Source struct {
	ID          string
	ClaimCardID string

	Citation     string
	URL          string
	QuoteText    string
	UsageContext string
	SourceType   SourceType

	VerificationMethod VerificationMethod
	VerificationStatus VerificationStatus
	ContentType        ContentType
	URLVerified         bool
}

// NormalizeURLVerification enforces spec §8 P2: a Source may only carry a
// non-empty URL if that URL was actually verified, unless its
// VerificationMethod is llm_unverified — in which case the URL must be
// empty regardless (an unverified LLM recall never gets to keep a URL, even
// one it happened to be constructed with). Call this after any assignment
// to URL, URLVerified, or VerificationMethod.
func (s *Source) NormalizeURLVerification() {
	if s.VerificationMethod == MethodLLMUnverified {
		s.URL = ""
		return
	}
	if !s.URLVerified {
		s.URL = ""
	}
}

// VerifiedSource is a long-lived library entry, independent of any single
// ClaimCard. It stores book/paper metadata and a verified URL, never a
// claim-specific quote.
type VerifiedSource struct {
	ID        string
	CreatedAt time.Time

	SourceType      string
	Title           string
	Author          string
	Publisher       string
	PublicationDate string
	ISBN            string
	DOI             string
	URL             string
	ContentSnippet  string
	TopicKeywords   []string

	Embedding []float32

	VerificationMethod VerificationMethod
	VerificationStatus VerificationStatus
}

// NormalizedIdentifier returns the key used to dedup library entries on
// conflict (§4.D: "keyed by normalized identifier, dedup on conflict").
func (v *VerifiedSource) NormalizedIdentifier() string {
	switch {
	case v.DOI != "":
		return "doi:" + v.DOI
	case v.ISBN != "":
		return "isbn:" + v.ISBN
	case v.URL != "":
		return "url:" + v.URL
	default:
		return "title:" + v.Title
	}
}
