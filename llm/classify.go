package llm

import (
	"errors"

	"github.com/deletexiumu/screen-analyzer/errs"
)

// transient reports whether err is worth retrying with backoff: a network
// hiccup, a 5xx, or a rate limit. Anything classified as auth or bad
// schema is treated as a fixed condition that a retry cannot change, so it
// surfaces immediately instead of spending the retry budget on it.
func transient(err error) bool {
	var e *errs.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case errs.LLMUnavailable, errs.LLMRateLimited:
			return true
		default:
			return false
		}
	}

	var repairErr *SchemaRepairError
	if errors.As(err, &repairErr) {
		return false
	}

	// No classification attached: a raw network/transport error from a
	// provider's HTTP client, or test-injected error. Assume transient.
	return true
}
