package model

// Verdict is the five-value outcome of an audited claim.
type Verdict string

const (
	VerdictTrue                  Verdict = "True"
	VerdictMisleading            Verdict = "Misleading"
	VerdictFalse                 Verdict = "False"
	VerdictUnfalsifiable         Verdict = "Unfalsifiable"
	VerdictDependsOnDefinitions  Verdict = "Depends on Definitions"
)

// ConfidenceLevel grades how strongly the sources support the verdict.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "High"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceLow    ConfidenceLevel = "Low"
)

// ClaimTypeCategory routes a claim toward the kind of scrutiny it needs.
type ClaimTypeCategory string

const (
	CategoryHistorical     ClaimTypeCategory = "historical"
	CategoryEpistemology   ClaimTypeCategory = "epistemology"
	CategoryInterpretation ClaimTypeCategory = "interpretation"
	CategoryTheological    ClaimTypeCategory = "theological"
	CategoryTextual        ClaimTypeCategory = "textual"
)

// SourceType distinguishes the two kinds of evidence a Source Checker gathers.
type SourceType string

const (
	SourcePrimaryHistorical    SourceType = "primary_historical"
	SourceScholarlyPeerReviewed SourceType = "scholarly_peer_reviewed"
)

// VerificationMethod records which §4.D tier (or library reuse) produced a Source.
type VerificationMethod string

const (
	MethodLibraryReuse     VerificationMethod = "library_reuse"
	MethodGoogleBooks      VerificationMethod = "google_books"
	MethodSemanticScholar  VerificationMethod = "semantic_scholar"
	MethodArxiv            VerificationMethod = "arxiv"
	MethodPubmed           VerificationMethod = "pubmed"
	MethodCCEL             VerificationMethod = "ccel"
	MethodPerseus          VerificationMethod = "perseus"
	MethodWebSearch        VerificationMethod = "tavily"
	MethodLLMUnverified    VerificationMethod = "llm_unverified"
)

// VerificationStatus is the confidence the verification service has in a Source.
type VerificationStatus string

const (
	StatusVerified           VerificationStatus = "verified"
	StatusPartiallyVerified  VerificationStatus = "partially_verified"
	StatusUnverified         VerificationStatus = "unverified"
)

// ContentType describes how literally a Source's quote_text matches its origin.
type ContentType string

const (
	ContentExactQuote        ContentType = "exact_quote"
	ContentVerifiedParaphrase ContentType = "verified_paraphrase"
	ContentUnverified        ContentType = "unverified_content"
)

// RoutingMode is the Router's Mode-1/2/3 decision, persisted uppercase per §9.
type RoutingMode string

const (
	ModeExactMatch RoutingMode = "EXACT_MATCH"
	ModeContextual RoutingMode = "CONTEXTUAL"
	ModeNovelClaim RoutingMode = "NOVEL_CLAIM"
)

// TopicStatus tracks a TopicQueueEntry through the scheduler lifecycle.
type TopicStatus string

const (
	TopicQueued     TopicStatus = "queued"
	TopicProcessing TopicStatus = "processing"
	TopicCompleted  TopicStatus = "completed"
	TopicFailed     TopicStatus = "failed"
)

// ReviewStatus tracks reviewer action on a completed topic/blog post.
type ReviewStatus string

const (
	ReviewPending       ReviewStatus = "pending_review"
	ReviewApproved      ReviewStatus = "approved"
	ReviewRejected      ReviewStatus = "rejected"
	ReviewNeedsRevision ReviewStatus = "needs_revision"
)
