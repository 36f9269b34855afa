package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/kontrategy/kontrategy-api/internal/ai"
	"github.com/kontrategy/kontrategy-api/internal/apify"
)

// Messages stored on failed jobs. Clients display them as is.
const (
	MsgProfileNotFound    = "Profile not found"
	MsgNoUsableMedia      = "No usable images"
	MsgInvalidIdentity    = "Invalid username"
	MsgStartFailed        = "Could not start data collection"
	MsgCollectionTimeout  = "Data collection timed out"
	MsgCollectionDown     = "Data collection service unavailable"
	MsgScoringInvalid     = "Could not score the profile"
	MsgScoringUnavailable = "Scoring service unavailable"
	MsgScoringTimeout     = "Scoring timed out"
	MsgAnalysisTimeout    = "Analysis timed out"
	MsgInternal           = "Internal error during analysis"
)

// UserMessage maps a pipeline error to the message stored on the failed job.
// Internal details never reach the client.
func UserMessage(err error) string {
	var taskFailed *apify.TaskFailedError
	switch {
	case errors.Is(err, ErrProfileNotFound):
		return MsgProfileNotFound
	case errors.Is(err, ErrNoUsableMedia):
		return MsgNoUsableMedia
	case errors.Is(err, ErrInvalidIdentity):
		return MsgInvalidIdentity
	case errors.Is(err, apify.ErrStartFailed):
		return MsgStartFailed
	case errors.As(err, &taskFailed):
		return fmt.Sprintf("Data collection failed (%s)", taskFailed.Status)
	case errors.Is(err, apify.ErrPollTimeout):
		return MsgCollectionTimeout
	case errors.Is(err, context.DeadlineExceeded):
		return MsgAnalysisTimeout
	case errors.Is(err, apify.ErrUnreachable), errors.Is(err, apify.ErrTimeout), errors.Is(err, apify.ErrRequestFailed):
		return MsgCollectionDown
	case errors.Is(err, ai.ErrScoring):
		return MsgScoringInvalid
	case errors.Is(err, ai.ErrInferenceTimeout):
		return MsgScoringTimeout
	case errors.Is(err, ai.ErrProviderUnavailable):
		return MsgScoringUnavailable
	default:
		return MsgInternal
	}
}
