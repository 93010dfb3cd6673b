package model

import "errors"

var (
	errEmptyClaimText     = errors.New("claim_text must not be empty")
	errMissingShortAnswer = errors.New("short_answer must not be empty")
	errMissingVerdict     = errors.New("verdict must be set")
	errMissingConfidence  = errors.New("confidence_level must be set")
	errNoSources          = errors.New("claim card must own at least one source")
	errUnverifiedSourceHasURL = errors.New("source has a non-empty url with url_verified=false and a verification method other than llm_unverified")
)
