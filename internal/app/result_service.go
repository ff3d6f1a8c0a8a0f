package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/domain"
)

// ResultStore is the write/read surface the registration and scoring flows
// use. Implementations must treat email case-insensitively.
type ResultStore interface {
	Create(ctx context.Context, result domain.QuizResult) error
	GetByEmail(ctx context.Context, email string) (domain.QuizResult, error)
	RecordCompletion(ctx context.Context, email string, score, correct, attended int) error
	// Reset clears score and completion to allow a retake. The certificate
	// ID, if already issued, is retained; verification reports it as
	// ineligible until the retake passes again.
	Reset(ctx context.Context, email string) error
	ListCompleted(ctx context.Context, limit int) ([]domain.QuizResult, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

// LeaderboardSource serves leaderboard reads, possibly through a cache.
type LeaderboardSource interface {
	Leaderboard(ctx context.Context) (domain.Leaderboard, error)
	// Invalidate drops any cached snapshot after a score change.
	Invalidate(ctx context.Context) error
}

// ErrValidation wraps registration input problems.
var ErrValidation = errors.New("invalid registration input")

// RegistrationInput carries the fields collected by the registration form.
type RegistrationInput struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	RegisterNumber string `json:"registerNumber"`
	Class          string `json:"class"`
}

// ResultService covers registration, score recording and the scoreboard.
type ResultService struct {
	store          ResultStore
	leaderboard    LeaderboardSource
	broadcaster    *LeaderboardBroadcaster
	totalQuestions int
}

func NewResultService(store ResultStore, leaderboard LeaderboardSource, broadcaster *LeaderboardBroadcaster, totalQuestions int) *ResultService {
	return &ResultService{
		store:          store,
		leaderboard:    leaderboard,
		broadcaster:    broadcaster,
		totalQuestions: totalQuestions,
	}
}

// Register creates a new participant record.
func (s *ResultService) Register(ctx context.Context, input RegistrationInput) (domain.QuizResult, error) {
	if err := validateRegistration(input); err != nil {
		return domain.QuizResult{}, err
	}

	result := domain.QuizResult{
		Email:          NormalizeEmail(input.Email),
		Name:           strings.TrimSpace(input.Name),
		Phone:          strings.TrimSpace(input.Phone),
		RegisterNumber: strings.TrimSpace(input.RegisterNumber),
		Class:          strings.TrimSpace(input.Class),
		CreatedAt:      time.Now(),
	}
	if err := s.store.Create(ctx, result); err != nil {
		return domain.QuizResult{}, err
	}
	return result, nil
}

// RecordCompletion is the scoring engine's write path: it stores the final
// score and marks the attempt completed, then refreshes the scoreboard.
func (s *ResultService) RecordCompletion(ctx context.Context, email string, score, correct, attended int) error {
	if score < 0 || score > s.totalQuestions {
		return fmt.Errorf("%w: score %d out of range [0,%d]", ErrValidation, score, s.totalQuestions)
	}
	if err := s.store.RecordCompletion(ctx, NormalizeEmail(email), score, correct, attended); err != nil {
		return err
	}
	s.publishLeaderboard(ctx)
	return nil
}

// Reset clears a participant's score and completion for a retake.
func (s *ResultService) Reset(ctx context.Context, email string) error {
	if err := s.store.Reset(ctx, NormalizeEmail(email)); err != nil {
		return err
	}
	s.publishLeaderboard(ctx)
	return nil
}

// Leaderboard returns the current scoreboard.
func (s *ResultService) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	return s.leaderboard.Leaderboard(ctx)
}

// Stats returns participation counters for the operator dashboard.
func (s *ResultService) Stats(ctx context.Context) (domain.Stats, error) {
	return s.store.Stats(ctx)
}

func (s *ResultService) publishLeaderboard(ctx context.Context) {
	// Cache refresh and broadcast are best effort; the write already landed.
	_ = s.leaderboard.Invalidate(ctx)
	if s.broadcaster == nil {
		return
	}
	if lb, err := s.leaderboard.Leaderboard(ctx); err == nil {
		s.broadcaster.Publish(lb)
	}
}

// NormalizeEmail canonicalizes the owner identity used as the store key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(input RegistrationInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	email := NormalizeEmail(input.Email)
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || !strings.Contains(email[at:], ".") {
		return fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if phone := strings.TrimSpace(input.Phone); phone != "" {
		if len(phone) != 10 {
			return fmt.Errorf("%w: phone must be 10 digits", ErrValidation)
		}
		for _, c := range phone {
			if c < '0' || c > '9' {
				return fmt.Errorf("%w: phone must be 10 digits", ErrValidation)
			}
		}
	}
	return nil
}

// StoreLeaderboard is the cache-less LeaderboardSource used when Redis is
// not configured: every read goes straight to the store.
type StoreLeaderboard struct {
	store          ResultStore
	totalQuestions int
	limit          int
}

func NewStoreLeaderboard(store ResultStore, totalQuestions, limit int) *StoreLeaderboard {
	return &StoreLeaderboard{store: store, totalQuestions: totalQuestions, limit: limit}
}

func (l *StoreLeaderboard) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	results, err := l.store.ListCompleted(ctx, l.limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return BuildLeaderboard(results, l.totalQuestions), nil
}

func (l *StoreLeaderboard) Invalidate(context.Context) error { return nil }

// BuildLeaderboard converts completed results (already sorted by score) into
// the public scoreboard shape.
func BuildLeaderboard(results []domain.QuizResult, totalQuestions int) domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(results))
	for _, r := range results {
		score := 0
		if r.Score != nil {
			score = *r.Score
		}
		entries = append(entries, domain.LeaderboardEntry{
			Name:       r.Name,
			Score:      score,
			Percentage: domain.Percentage(score, totalQuestions),
		})
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: time.Now()}
}
