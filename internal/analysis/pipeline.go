// Package analysis turns a profile identity into a scored AnalysisResult by
// collecting the profile and its recent posts, extracting media and asking the
// scoring model for a verdict.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kontrategy/kontrategy-api/internal/ai"
	"github.com/kontrategy/kontrategy-api/internal/apify"
	"github.com/kontrategy/kontrategy-api/pkg/instagram"
	"github.com/kontrategy/kontrategy-api/pkg/models"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidIdentity = errors.New("invalid profile identity")
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoUsableMedia   = errors.New("no usable images")
)

const (
	DefaultPostsLimit  = 15
	DefaultMaxImages   = 8
	DefaultTaskTimeout = 180 * time.Second
)

// Scorer rates a set of images and captions. *ai.Service satisfies it.
type Scorer interface {
	Score(ctx context.Context, req models.ScoreRequest) (*ai.Scoring, error)
	Name() string
	Model() string
}

// Config bounds the work done per analysis.
type Config struct {
	PostsLimit  int
	MaxImages   int
	TaskTimeout time.Duration
}

// Pipeline runs one profile analysis end to end.
type Pipeline struct {
	tasks  apify.Client
	scorer Scorer
	cfg    Config
	now    func() time.Time
}

// NewPipeline creates a Pipeline. Zero config values select the defaults.
func NewPipeline(tasks apify.Client, scorer Scorer, cfg Config) *Pipeline {
	if cfg.PostsLimit <= 0 {
		cfg.PostsLimit = DefaultPostsLimit
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = DefaultMaxImages
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	return &Pipeline{
		tasks:  tasks,
		scorer: scorer,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run analyzes the profile behind identity. The profile and posts tasks run
// concurrently; scoring starts once both have returned.
func (p *Pipeline) Run(ctx context.Context, identity string) (*models.AnalysisResult, error) {
	ref, err := instagram.Normalize(identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}

	var (
		profileRow apify.Record
		postRows   []apify.Record
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := p.tasks.Run(gctx, apify.KindProfile, apify.Input{InstagramURLs: []string{ref.URL}}, p.cfg.TaskTimeout)
		if err != nil {
			return fmt.Errorf("profile task: %w", err)
		}
		row, ok := firstProfileRow(rows)
		if !ok {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, ref.Username)
		}
		profileRow = row
		return nil
	})
	g.Go(func() error {
		rows, err := p.tasks.Run(gctx, apify.KindPosts, apify.Input{
			InstagramURLs: []string{ref.URL},
			ResultsLimit:  p.cfg.PostsLimit,
		}, p.cfg.TaskTimeout)
		if err != nil {
			return fmt.Errorf("posts task: %w", err)
		}
		postRows = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	media := ExtractMedia(postRows)
	if len(media.Images) == 0 {
		return nil, fmt.Errorf("%w: %d posts, none with an image", ErrNoUsableMedia, len(postRows))
	}
	images := media.Images[:min(len(media.Images), p.cfg.MaxImages)]

	scoring, err := p.scorer.Score(ctx, models.ScoreRequest{
		Username:  ref.Username,
		ImageURLs: images,
		Captions:  media.Captions,
	})
	if err != nil {
		return nil, fmt.Errorf("scoring %s: %w", ref.Username, err)
	}

	result := &models.AnalysisResult{
		Profile:             ExtractProfile(profileRow, ref),
		Scores:              scoring.Scores,
		TotalScore:          TotalScore(scoring.Scores),
		DominantContentType: scoring.DominantContentType,
		Interpretation:      scoring.Interpretation,
		ImagesAnalyzed:      len(images),
		PostsAnalyzed:       media.Posts,
		Provider:            p.scorer.Name(),
		Model:               p.scorer.Model(),
		AnalyzedAt:          p.now(),
	}

	slog.Info("profile analyzed",
		"username", ref.Username,
		"posts", media.Posts,
		"images", len(images),
		"total_score", result.TotalScore,
	)
	return result, nil
}

// TotalScore is round(sum/5*10, 1). Inputs in [1,5] yield a value in
// [10.0, 50.0].
func TotalScore(s models.Scores) float64 {
	return math.Round(float64(s.Sum())/5*10*10) / 10
}

// firstProfileRow returns the first row describing an actual profile. The
// scraper reports missing or private accounts as rows carrying only an error.
func firstProfileRow(rows []apify.Record) (apify.Record, bool) {
	for _, row := range rows {
		if _, failed := row["error"]; failed && stringField(row, "username") == "" {
			continue
		}
		return row, true
	}
	return nil, false
}
