package retry

import (
	"context"
	"errors"
	"strings"

	"github.com/vietddude/farewatch/internal/core/domain"
)

// Class is the failure taxonomy used to pick a retry action.
type Class int

const (
	ClassNone Class = iota
	ClassTransientNetwork
	ClassChallenge
	ClassExtractionEmpty
	ClassResourceExhausted
	ClassUnclassified
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTransientNetwork:
		return "transient_network"
	case ClassChallenge:
		return "challenge"
	case ClassExtractionEmpty:
		return "extraction_empty"
	case ClassResourceExhausted:
		return "resource_exhausted"
	default:
		return "unclassified"
	}
}

// Signatures of a bot challenge in driver error text.
var challengeSignatures = []string{
	"captcha",
	"verify you're a human",
	"are you a robot",
	"access denied",
	"forbidden",
}

// Signatures of a slow or broken relay in driver error text.
var transientSignatures = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"err_timed_out",
	"err_proxy_connection_failed",
	"err_tunnel_connection_failed",
	"err_connection_reset",
	"err_connection_closed",
	"err_empty_response",
	"connection refused",
	"connection reset",
	"no such host",
}

// ClassifyError determines the failure class of an attempt error.
func ClassifyError(err error) Class {
	if err == nil {
		return ClassNone
	}

	switch {
	case errors.Is(err, domain.ErrStoreWrite):
		return ClassUnclassified
	case errors.Is(err, domain.ErrNoActiveProxies):
		return ClassResourceExhausted
	case errors.Is(err, domain.ErrChallengeDetected):
		return ClassChallenge
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ClassTransientNetwork
	case errors.Is(err, domain.ErrExtractionEmpty):
		return ClassExtractionEmpty
	}

	sLower := strings.ToLower(err.Error())
	for _, sig := range challengeSignatures {
		if strings.Contains(sLower, sig) {
			return ClassChallenge
		}
	}
	for _, sig := range transientSignatures {
		if strings.Contains(sLower, sig) {
			return ClassTransientNetwork
		}
	}

	return ClassUnclassified
}

// OutcomeOf maps the result of a session plus extraction onto an Outcome.
func OutcomeOf(err error, records int) domain.Outcome {
	if err == nil {
		if records == 0 {
			return domain.OutcomeEmpty
		}
		return domain.OutcomeSuccess
	}

	switch {
	case errors.Is(err, domain.ErrNoActiveProxies):
		return domain.OutcomeExhausted
	case errors.Is(err, domain.ErrChallengeDetected):
		return domain.OutcomeChallenge
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.OutcomeTimeout
	case errors.Is(err, domain.ErrExtractionEmpty):
		return domain.OutcomeEmpty
	default:
		return domain.OutcomeError
	}
}
