package generate

import "errors"

var (
	// ErrGenerationFailed wraps any upstream provider failure. Propagated to
	// the caller verbatim; the caller's usage counters stay untouched.
	ErrGenerationFailed = errors.New("generate: generation failed")

	ErrInvalidKind   = errors.New("generate: invalid content kind")
	ErrEmptyPrompt   = errors.New("generate: empty prompt")
	ErrPromptTooLong = errors.New("generate: prompt too long")
)

// MaxPromptLength bounds prompt size before the request leaves the process.
const MaxPromptLength = 1000

// ValidateRequest checks a request before it reaches a provider.
func ValidateRequest(req Request) error {
	if !req.Kind.Valid() {
		return ErrInvalidKind
	}
	if req.Prompt == "" {
		return ErrEmptyPrompt
	}
	if len(req.Prompt) > MaxPromptLength {
		return ErrPromptTooLong
	}
	return nil
}
