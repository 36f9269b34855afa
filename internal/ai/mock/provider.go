package mock

import (
	"context"

	"github.com/kontrategy/kontrategy-api/pkg/models"
)

// DefaultResponse is what NewMockProvider answers with.
const DefaultResponse = `{"scores":{"color_palette":4,"visual_noise":4,"graphic_consistency":5,"visual_quality":5,"human_presence":4},` +
	`"dominant_content_type":"mixto","interpretation":"Estética sólida y profesional con identidad clara."}`

// MockProvider satisfies models.Scorer for testing and local runs.
type MockProvider struct {
	Name_     string
	Model_    string
	ScoreFunc func(ctx context.Context, req models.ScoreRequest) (string, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Model() string { return m.Model_ }

func (m *MockProvider) Score(ctx context.Context, req models.ScoreRequest) (string, error) {
	if m.ScoreFunc != nil {
		return m.ScoreFunc(ctx, req)
	}
	return "", nil
}

// NewMockProvider returns a MockProvider with a fixed, valid scoring response.
func NewMockProvider() *MockProvider {
	return NewStaticProvider(DefaultResponse)
}

// NewStaticProvider returns a MockProvider that always answers with raw.
func NewStaticProvider(raw string) *MockProvider {
	return &MockProvider{
		Name_:  "mock",
		Model_: "mock-v1",
		ScoreFunc: func(_ context.Context, _ models.ScoreRequest) (string, error) {
			return raw, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_:  "mock-failing",
		Model_: "mock-v1",
		ScoreFunc: func(_ context.Context, _ models.ScoreRequest) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_:  "mock-timeout",
		Model_: "mock-v1",
		ScoreFunc: func(ctx context.Context, _ models.ScoreRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
}

// Compile-time check that MockProvider implements Scorer.
var _ models.Scorer = (*MockProvider)(nil)
