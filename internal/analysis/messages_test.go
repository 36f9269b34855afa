package analysis_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kontrategy/kontrategy-api/internal/ai"
	"github.com/kontrategy/kontrategy-api/internal/analysis"
	"github.com/kontrategy/kontrategy-api/internal/apify"
	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: ghost", analysis.ErrProfileNotFound), "Profile not found"},
		{analysis.ErrNoUsableMedia, "No usable images"},
		{fmt.Errorf("%w: x", analysis.ErrInvalidIdentity), "Invalid username"},
		{fmt.Errorf("posts task: %w: status 402", apify.ErrStartFailed), "Could not start data collection"},
		{fmt.Errorf("profile task: %w", &apify.TaskFailedError{Status: apify.StatusTimedOut}), "Data collection failed (TIMED-OUT)"},
		{fmt.Errorf("posts task: %w", apify.ErrPollTimeout), "Data collection timed out"},
		{fmt.Errorf("%w: dial tcp", apify.ErrUnreachable), "Data collection service unavailable"},
		{fmt.Errorf("scoring foo: %w", ai.ErrScoring), "Could not score the profile"},
		{fmt.Errorf("scoring foo: %w", ai.ErrInferenceTimeout), "Scoring timed out"},
		{fmt.Errorf("scoring foo: %w: boom", ai.ErrProviderUnavailable), "Scoring service unavailable"},
		{fmt.Errorf("posts task: %w: %w", apify.ErrTimeout, context.DeadlineExceeded), "Analysis timed out"},
		{errors.New("something unexpected"), "Internal error during analysis"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, analysis.UserMessage(tt.err), "error: %v", tt.err)
	}
}
