package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/domain"
)

// ResultStore is an in-memory implementation of the app store interfaces.
// It mirrors the conditional-claim and uniqueness semantics the Postgres
// store gets from its WHERE clause and unique index, which lets the
// allocator tests exercise real race behavior without a database.
type ResultStore struct {
	totalQuestions int

	mu      sync.RWMutex
	results map[string]*domain.QuizResult
	claimed map[string]string // certificate ID -> owner email
}

func NewResultStore(totalQuestions int) *ResultStore {
	return &ResultStore{
		totalQuestions: totalQuestions,
		results:        make(map[string]*domain.QuizResult),
		claimed:        make(map[string]string),
	}
}

func (s *ResultStore) Create(_ context.Context, result domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[result.Email]; ok {
		return domain.ErrAlreadyRegistered
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	stored := result
	s.results[result.Email] = &stored
	if result.CertificateID != nil {
		s.claimed[*result.CertificateID] = result.Email
	}
	return nil
}

func (s *ResultStore) GetByEmail(_ context.Context, email string) (domain.QuizResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[email]
	if !ok {
		return domain.QuizResult{}, domain.ErrNotFound
	}
	return cloneResult(result), nil
}

func (s *ResultStore) GetByCertificateID(_ context.Context, id string) (domain.QuizResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.claimed[id]
	if !ok {
		return domain.QuizResult{}, domain.ErrNotFound
	}
	return cloneResult(s.results[email]), nil
}

func (s *ResultStore) AssignedCertificateIDs(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.claimed))
	for id := range s.claimed {
		ids = append(ids, id)
	}
	return ids, nil
}

// ClaimCertificate succeeds only when the owner's row has no certificate yet
// and the ID itself is unclaimed, matching the database's conditional update
// plus unique index.
func (s *ResultStore) ClaimCertificate(_ context.Context, email, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[email]
	if !ok {
		return domain.ErrNotFound
	}
	if result.CertificateID != nil {
		return domain.ErrConflict
	}
	if _, taken := s.claimed[id]; taken {
		return domain.ErrConflict
	}
	claimed := id
	result.CertificateID = &claimed
	s.claimed[id] = email
	return nil
}

func (s *ResultStore) RecordCompletion(_ context.Context, email string, score, correct, attended int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[email]
	if !ok {
		return domain.ErrNotFound
	}
	sc, co, at := score, correct, attended
	result.Score = &sc
	result.CorrectAnswers = &co
	result.AttendedQuestions = &at
	result.Completed = true
	return nil
}

func (s *ResultStore) Reset(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, ok := s.results[email]
	if !ok {
		return domain.ErrNotFound
	}
	result.Score = nil
	result.CorrectAnswers = nil
	result.AttendedQuestions = nil
	result.Completed = false
	// The issued certificate ID is retained on purpose; see Reset on the
	// app.ResultStore interface.
	return nil
}

func (s *ResultStore) ListCompleted(_ context.Context, limit int) ([]domain.QuizResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	completed := make([]domain.QuizResult, 0, len(s.results))
	for _, result := range s.results {
		if result.Completed {
			completed = append(completed, cloneResult(result))
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		si, sj := 0, 0
		if completed[i].Score != nil {
			si = *completed[i].Score
		}
		if completed[j].Score != nil {
			sj = *completed[j].Score
		}
		if si != sj {
			return si > sj
		}
		return completed[i].CreatedAt.Before(completed[j].CreatedAt)
	})
	if limit > 0 && len(completed) > limit {
		completed = completed[:limit]
	}
	return completed, nil
}

func (s *ResultStore) Stats(context.Context) (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.Stats{Registered: len(s.results)}
	for _, result := range s.results {
		if result.Completed {
			stats.Completed++
		}
		if result.CertificateID != nil {
			stats.CertificatesIssued++
		}
		if result.Eligible(s.totalQuestions) {
			stats.Passed++
		}
	}
	return stats, nil
}

func cloneResult(r *domain.QuizResult) domain.QuizResult {
	clone := *r
	clone.Score = cloneInt(r.Score)
	clone.CorrectAnswers = cloneInt(r.CorrectAnswers)
	clone.AttendedQuestions = cloneInt(r.AttendedQuestions)
	if r.CertificateID != nil {
		id := *r.CertificateID
		clone.CertificateID = &id
	}
	return clone
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
