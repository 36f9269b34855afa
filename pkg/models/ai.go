// Package models contains shared data models used across the Kontrategy codebase.
package models

import "context"

// Scorer is the core interface that every generative scoring integration must implement.
// Never call specific AI providers directly; always inject this interface.
type Scorer interface {
	// Score sends the images and captions to the model and returns its raw
	// text answer, which is expected to be a JSON object.
	Score(ctx context.Context, req ScoreRequest) (string, error)
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string
	// Model returns the model identifier used for scoring.
	Model() string
}

// ScoreRequest is the input to a scoring operation.
type ScoreRequest struct {
	Username  string
	ImageURLs []string // at most the configured image cap, in post order
	Captions  []string
}
