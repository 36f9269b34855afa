package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/kontrategy/kontrategy-api/internal/metrics"
	"github.com/kontrategy/kontrategy-api/pkg/models"
)

const maxInterpretationBytes = 2000

// scoreKeys maps each dimension to the keys accepted for it. The first key is
// the one the prompt asks for; the rest are the Spanish names used by the
// first version of the product.
var scoreKeys = [5][]string{
	{"color_palette", "paleta_colores"},
	{"visual_noise", "ruido_visual"},
	{"graphic_consistency", "consistencia_grafica"},
	{"visual_quality", "calidad_visual"},
	{"human_presence", "presencia_humana"},
}

// Scoring is a validated scoring response.
type Scoring struct {
	Scores              models.Scores
	DominantContentType string
	Interpretation      string
}

// Service wraps a Scorer with a timeout, error classification and response validation.
type Service struct {
	scorer  models.Scorer
	timeout time.Duration
}

// NewService creates a new Service.
func NewService(scorer models.Scorer, timeout time.Duration) *Service {
	return &Service{scorer: scorer, timeout: timeout}
}

func (s *Service) Name() string { return s.scorer.Name() }

func (s *Service) Model() string { return s.scorer.Model() }

// Score asks the provider to rate the images and captions and validates the answer.
func (s *Service) Score(ctx context.Context, req models.ScoreRequest) (*Scoring, error) {
	scoreCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		scoreCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.scorer.Score(scoreCtx, req)
	if err != nil {
		err = s.classify(ctx, scoreCtx, err)
		metrics.ObserveScoring(s.scorer.Name(), outcome(err))
		slog.Warn("scoring call failed", "provider", s.scorer.Name(), "username", req.Username, "error", err)
		return nil, err
	}

	scoring, err := ParseScoring(raw)
	if err != nil {
		metrics.ObserveScoring(s.scorer.Name(), "invalid")
		slog.Warn("scoring response rejected", "provider", s.scorer.Name(), "username", req.Username, "error", err)
		return nil, err
	}

	metrics.ObserveScoring(s.scorer.Name(), "ok")
	slog.Debug("scoring finished", "provider", s.scorer.Name(), "images", len(req.ImageURLs), "duration", time.Since(start))
	return scoring, nil
}

// classify maps a provider error to one of the package sentinels. A cancelled
// parent context is returned as is so callers see their own deadline.
func (s *Service) classify(parent, scoreCtx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrInferenceTimeout), errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrScoring):
		return err
	case parent.Err() != nil:
		return fmt.Errorf("scoring: %w", parent.Err())
	case errors.Is(scoreCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s after %s", ErrInferenceTimeout, s.scorer.Name(), s.timeout)
	default:
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInferenceTimeout):
		return "timeout"
	case errors.Is(err, ErrProviderUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// ParseScoring validates a raw model answer. A Markdown code fence around the
// JSON object is tolerated; anything else that deviates from the expected
// shape is reported as ErrScoring.
func ParseScoring(raw string) (*Scoring, error) {
	obj, err := stripCodeFence(raw)
	if err != nil {
		return nil, err
	}

	var body struct {
		Scores              map[string]any `json:"scores"`
		DominantContentType any            `json:"dominant_content_type"`
		Interpretation      any            `json:"interpretation"`
	}
	if err := sonic.UnmarshalString(obj, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScoring, err)
	}
	if body.Scores == nil {
		return nil, fmt.Errorf("%w: missing scores object", ErrScoring)
	}

	var values [5]int
	for i, keys := range scoreKeys {
		v, err := scoreValue(body.Scores, keys)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	contentType, ok := body.DominantContentType.(string)
	if !ok {
		return nil, fmt.Errorf("%w: dominant_content_type must be a string", ErrScoring)
	}
	if !isContentType(contentType) {
		return nil, fmt.Errorf("%w: dominant_content_type %q is not one of %s", ErrScoring, contentType, strings.Join(models.ContentTypes, ", "))
	}

	interpretation, ok := body.Interpretation.(string)
	if !ok || strings.TrimSpace(interpretation) == "" {
		return nil, fmt.Errorf("%w: interpretation must be a non-empty string", ErrScoring)
	}

	return &Scoring{
		Scores: models.Scores{
			ColorPalette:       values[0],
			VisualNoise:        values[1],
			GraphicConsistency: values[2],
			VisualQuality:      values[3],
			HumanPresence:      values[4],
		},
		DominantContentType: contentType,
		Interpretation:      truncateString(strings.TrimSpace(interpretation), maxInterpretationBytes),
	}, nil
}

func scoreValue(scores map[string]any, keys []string) (int, error) {
	for _, k := range keys {
		raw, ok := scores[k]
		if !ok {
			continue
		}
		f, ok := raw.(float64)
		if !ok {
			return 0, fmt.Errorf("%w: score %s must be a number, got %T", ErrScoring, keys[0], raw)
		}
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("%w: score %s must be an integer, got %v", ErrScoring, keys[0], f)
		}
		if f < 1 || f > 5 {
			return 0, fmt.Errorf("%w: score %s must be between 1 and 5, got %v", ErrScoring, keys[0], f)
		}
		return int(f), nil
	}
	return 0, fmt.Errorf("%w: missing score %s", ErrScoring, keys[0])
}

// stripCodeFence removes an optional Markdown code fence and requires the
// remainder to be a single JSON object.
func stripCodeFence(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return "", fmt.Errorf("%w: response is not a JSON object", ErrScoring)
	}
	return s, nil
}

func isContentType(s string) bool {
	for _, ct := range models.ContentTypes {
		if s == ct {
			return true
		}
	}
	return false
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
