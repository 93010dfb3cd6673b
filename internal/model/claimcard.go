package model

import "time"

// ClaimCard is the atomic audit record: one claim, its verdict, its prose,
// and the sources that back it up. See spec §3.
type ClaimCard struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	ClaimText         string
	Claimant          string
	ClaimType         string
	ClaimTypeCategory ClaimTypeCategory

	Verdict               Verdict
	ShortAnswer           string
	DeepAnswer            string
	WhyPersists           []string
	ConfidenceLevel       ConfidenceLevel
	ConfidenceExplanation string

	// AgentAudit is keyed by agent name; each entry captures that stage's
	// output summary, limitations, and what-would-change-the-verdict notes.
	AgentAudit map[string]AgentAuditEntry

	VisibleInAudits bool

	// Embedding is produced from ClaimText; it MUST be regenerated whenever
	// ClaimText is mutated (P3).
	Embedding []float32

	Sources         []Source
	ApologeticsTags []string
	CategoryTags    []string
}

// AgentAuditEntry is one stage's contribution to ClaimCard.AgentAudit.
type AgentAuditEntry struct {
	Summary          string         `json:"summary"`
	Limitations      string         `json:"limitations,omitempty"`
	ChangeVerdictIf   string        `json:"change_verdict_if,omitempty"`
	ReverificationNotes []ReverificationNote `json:"reverification_notes,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// ReverificationNote flags a discrepancy the Adversarial Checker found when
// re-walking §4.D for a given source (spec §4.F.3, scenario 5).
type ReverificationNote struct {
	SourceURL      string  `json:"source_url"`
	QuoteMatched   bool    `json:"quote_matched"`
	OverlapScore   float64 `json:"overlap_score"`
	URLReachable   bool    `json:"url_reachable"`
	Flag           string  `json:"flag"`
}

// Validate enforces the card-level invariants of spec §3 that must hold
// before a card is persisted.
func (c *ClaimCard) Validate() error {
	if c.ClaimText == "" {
		return errEmptyClaimText
	}
	if c.ShortAnswer == "" {
		return errMissingShortAnswer
	}
	if c.Verdict == "" {
		return errMissingVerdict
	}
	if c.ConfidenceLevel == "" {
		return errMissingConfidence
	}
	if len(c.Sources) == 0 {
		return errNoSources
	}
	for _, s := range c.Sources {
		if s.URL != "" && !s.URLVerified && s.VerificationMethod != MethodLLMUnverified {
			return errUnverifiedSourceHasURL
		}
	}
	return nil
}
