package pipeline

import (
	"context"
	"errors"

	"github.com/seanblong/readmegen/internal/ai"
	"github.com/seanblong/readmegen/internal/repourl"
	"github.com/seanblong/readmegen/internal/source"
)

// FailureKind tells callers what went wrong without inspecting errors.
type FailureKind string

const (
	FailureMalformedInput   FailureKind = "malformed_input"
	FailureNotFound         FailureKind = "not_found"
	FailureAccessDenied     FailureKind = "access_denied"
	FailureRateLimited      FailureKind = "rate_limited"
	FailureGenerationFailed FailureKind = "generation_failed"
	FailureCanceled         FailureKind = "canceled"
	FailureInternal         FailureKind = "internal"
)

// Classify maps a Run error onto a FailureKind. A nil error has no kind.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, repourl.ErrMalformedInput):
		return FailureMalformedInput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCanceled
	case source.IsRateLimited(err):
		return FailureRateLimited
	case source.IsAccessDenied(err):
		return FailureAccessDenied
	case source.IsNotFound(err):
		return FailureNotFound
	case ai.IsGenerationError(err):
		return FailureGenerationFailed
	default:
		return FailureInternal
	}
}

// AuthMayHelp reports whether signing in could change the outcome. Hosts
// hide private repositories from anonymous callers behind a not-found.
func (k FailureKind) AuthMayHelp() bool {
	return k == FailureAccessDenied || k == FailureNotFound
}

// Message is a short, user-facing description of err.
func Message(err error) string {
	switch Classify(err) {
	case FailureMalformedInput:
		return "Enter a GitHub repository as owner/repo or a github.com URL."
	case FailureNotFound:
		return "Repository not found. If it is private, sign in with an account that can see it."
	case FailureAccessDenied:
		return "Access to this repository was denied."
	case FailureRateLimited:
		return "The repository host is rate limiting requests. Try again later."
	case FailureGenerationFailed:
		return "README generation failed: " + err.Error()
	case FailureCanceled:
		return "Generation was canceled."
	default:
		if err == nil {
			return ""
		}
		return "Unexpected error: " + err.Error()
	}
}
