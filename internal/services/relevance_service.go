package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/charlesng35/campusalert/internal/classifier"
	"github.com/charlesng35/campusalert/internal/models"
	"github.com/charlesng35/campusalert/internal/warnings"
)

// RankedWarning is a stored warning with its relevance score for one user.
type RankedWarning struct {
	Warning models.Warning `json:"warning"`
	Score   int            `json:"score"`
}

// RelevanceOptions tunes RelevanceService. A zero Lookback searches back one
// calendar month, the same cutoff the recency check uses.
type RelevanceOptions struct {
	MinScore int
	Lookback time.Duration
	Clock    clockwork.Clock
}

// RelevanceService ranks recent warnings for a user.
type RelevanceService struct {
	warnings   *WarningService
	profiles   *ProfileService
	classifier *classifier.Classifier
	minScore   int
	lookback   time.Duration
	clock      clockwork.Clock
}

// NewRelevanceService wires the warning and profile stores to a classifier.
func NewRelevanceService(ws *WarningService, ps *ProfileService, c *classifier.Classifier, opts RelevanceOptions) (*RelevanceService, error) {
	if ws == nil || ps == nil {
		return nil, errors.New("relevance service: warning and profile services are required")
	}
	if c == nil {
		return nil, errors.New("relevance service: classifier is required")
	}
	if opts.Lookback < 0 {
		opts.Lookback = 0
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &RelevanceService{
		warnings:   ws,
		profiles:   ps,
		classifier: c,
		minScore:   opts.MinScore,
		lookback:   opts.Lookback,
		clock:      opts.Clock,
	}, nil
}

// ForUser scores every warning inside the lookback window against the
// user's profile and returns those reaching the minimum score, most relevant
// first. ErrProfileNotFound is returned for unknown users.
func (s *RelevanceService) ForUser(ctx context.Context, userID string) ([]RankedWarning, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.warnings.ListSince(ctx, s.windowStart(s.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("relevance service: %w", err)
	}

	byID := make(map[string]models.Warning, len(rows))
	items := make([]warnings.Warning, 0, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
		items = append(items, row.Domain())
	}

	scored := s.classifier.Rank(items, profile, s.minScore)
	ranked := make([]RankedWarning, 0, len(scored))
	for _, sc := range scored {
		ranked = append(ranked, RankedWarning{Warning: byID[sc.Warning.ID], Score: sc.Score})
	}
	return ranked, nil
}

func (s *RelevanceService) windowStart(now time.Time) time.Time {
	if s.lookback > 0 {
		return now.Add(-s.lookback)
	}
	return now.AddDate(0, -1, 0)
}
