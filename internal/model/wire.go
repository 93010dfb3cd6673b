package model

import "time"

// ClaimCardWire is the JSON shape a ClaimCard takes on the wire (spec §6's
// stored-state layout names snake_case columns; ClaimCard itself carries
// no json tags since Go field names alone don't match the wire contract).
// It is shared by the HTTP surface (chat responses) and the Progress Bus
// (the claim_card_ready event), so both publish the same shape.
type ClaimCardWire struct {
	ID                string       `json:"id"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	ClaimText         string       `json:"claim_text"`
	Claimant          string       `json:"claimant,omitempty"`
	ClaimType         string       `json:"claim_type"`
	ClaimTypeCategory string       `json:"claim_type_category,omitempty"`
	Verdict           string       `json:"verdict"`
	ShortAnswer       string       `json:"short_answer"`
	DeepAnswer        string       `json:"deep_answer"`
	WhyPersists       []string     `json:"why_persists"`
	ConfidenceLevel   string       `json:"confidence_level"`
	Confidence        string       `json:"confidence_explanation"`
	Sources           []SourceWire `json:"sources"`
	ApologeticsTags   []string     `json:"apologetics_tags,omitempty"`
	CategoryTags      []string     `json:"category_tags,omitempty"`
}

// SourceWire is one Source's wire shape, embedded in ClaimCardWire.
type SourceWire struct {
	Citation           string `json:"citation"`
	URL                string `json:"url"`
	QuoteText          string `json:"quote_text,omitempty"`
	UsageContext       string `json:"usage_context"`
	SourceType         string `json:"source_type"`
	VerificationMethod string `json:"verification_method"`
	VerificationStatus string `json:"verification_status"`
	ContentType        string `json:"content_type"`
	URLVerified        bool   `json:"url_verified"`
}

// NewClaimCardWire converts c to its wire shape, or nil for a nil card.
func NewClaimCardWire(c *ClaimCard) *ClaimCardWire {
	if c == nil {
		return nil
	}
	sources := make([]SourceWire, len(c.Sources))
	for i, src := range c.Sources {
		sources[i] = SourceWire{
			Citation:           src.Citation,
			URL:                src.URL,
			QuoteText:          src.QuoteText,
			UsageContext:       src.UsageContext,
			SourceType:         string(src.SourceType),
			VerificationMethod: string(src.VerificationMethod),
			VerificationStatus: string(src.VerificationStatus),
			ContentType:        string(src.ContentType),
			URLVerified:        src.URLVerified,
		}
	}
	return &ClaimCardWire{
		ID:                c.ID,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		ClaimText:         c.ClaimText,
		Claimant:          c.Claimant,
		ClaimType:         c.ClaimType,
		ClaimTypeCategory: string(c.ClaimTypeCategory),
		Verdict:           string(c.Verdict),
		ShortAnswer:       c.ShortAnswer,
		DeepAnswer:        c.DeepAnswer,
		WhyPersists:       c.WhyPersists,
		ConfidenceLevel:   string(c.ConfidenceLevel),
		Confidence:        c.ConfidenceExplanation,
		Sources:           sources,
		ApologeticsTags:   c.ApologeticsTags,
		CategoryTags:      c.CategoryTags,
	}
}
