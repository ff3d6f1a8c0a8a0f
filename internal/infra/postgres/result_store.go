package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/domain"
)

const (
	retryAttempts = 3
	retryBackoff  = 100 * time.Millisecond

	uniqueViolation = "23505"
)

const resultColumns = `email, name, phone, register_number, class, score,
	correct_answers, attended_questions, completed, certificate_id, created_at`

// ResultStore persists quiz results in Postgres. The certificate_id column
// carries a unique index and is only ever written through ClaimCertificate's
// conditional UPDATE, which is where allocation races are decided.
type ResultStore struct {
	pool           *pgxpool.Pool
	totalQuestions int
}

func NewResultStore(pool *pgxpool.Pool, totalQuestions int) *ResultStore {
	return &ResultStore{pool: pool, totalQuestions: totalQuestions}
}

func (s *ResultStore) Create(ctx context.Context, result domain.QuizResult) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO quiz_results (email, name, phone, register_number, class, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			result.Email, result.Name, result.Phone, result.RegisterNumber, result.Class, result.CreatedAt)
		if isUniqueViolation(err) {
			return domain.ErrAlreadyRegistered
		}
		return err
	})
}

func (s *ResultStore) GetByEmail(ctx context.Context, email string) (domain.QuizResult, error) {
	var result domain.QuizResult
	err := s.withRetry(ctx, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx,
			`SELECT `+resultColumns+` FROM quiz_results WHERE email = $1`, email)
		return scanResult(row, &result)
	})
	return result, err
}

func (s *ResultStore) GetByCertificateID(ctx context.Context, id string) (domain.QuizResult, error) {
	var result domain.QuizResult
	err := s.withRetry(ctx, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx,
			`SELECT `+resultColumns+` FROM quiz_results WHERE certificate_id = $1`, id)
		return scanResult(row, &result)
	})
	return result, err
}

func (s *ResultStore) AssignedCertificateIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx,
			`SELECT certificate_id FROM quiz_results WHERE certificate_id IS NOT NULL`)
		if err != nil {
			return err
		}
		defer rows.Close()

		ids = ids[:0]
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	return ids, err
}

// ClaimCertificate is the single enforcement point for allocation: the
// UPDATE commits only if the row is still unclaimed, and the unique index on
// certificate_id rejects a suffix another allocation committed concurrently.
// Both outcomes surface as domain.ErrConflict so the allocator retries.
func (s *ResultStore) ClaimCertificate(ctx context.Context, email, id string) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `
			UPDATE quiz_results
			SET certificate_id = $2
			WHERE email = $1 AND certificate_id IS NULL`,
			email, id)
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrConflict
		}
		return nil
	})
}

func (s *ResultStore) RecordCompletion(ctx context.Context, email string, score, correct, attended int) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `
			UPDATE quiz_results
			SET score = $2, correct_answers = $3, attended_questions = $4, completed = TRUE
			WHERE email = $1`,
			email, score, correct, attended)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// Reset clears the attempt but keeps certificate_id: issued IDs are never
// reused, and verification re-checks the live score anyway.
func (s *ResultStore) Reset(ctx context.Context, email string) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		tag, err := s.pool.Exec(ctx, `
			UPDATE quiz_results
			SET score = NULL, correct_answers = NULL, attended_questions = NULL, completed = FALSE
			WHERE email = $1`,
			email)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (s *ResultStore) ListCompleted(ctx context.Context, limit int) ([]domain.QuizResult, error) {
	var results []domain.QuizResult
	err := s.withRetry(ctx, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, `
			SELECT `+resultColumns+`
			FROM quiz_results
			WHERE completed
			ORDER BY score DESC, created_at ASC
			LIMIT $1`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		results = results[:0]
		for rows.Next() {
			var result domain.QuizResult
			if err := scanResult(rows, &result); err != nil {
				return err
			}
			results = append(results, result)
		}
		return rows.Err()
	})
	return results, err
}

func (s *ResultStore) Stats(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, `
			SELECT
				COUNT(*),
				COUNT(*) FILTER (WHERE completed),
				COUNT(*) FILTER (WHERE completed AND ROUND(score * 100.0 / $1) >= $2),
				COUNT(*) FILTER (WHERE certificate_id IS NOT NULL)
			FROM quiz_results`,
			s.totalQuestions, domain.PassThreshold).
			Scan(&stats.Registered, &stats.Completed, &stats.Passed, &stats.CertificatesIssued)
	})
	return stats, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row rowScanner, result *domain.QuizResult) error {
	var registerNumber, class *string
	err := row.Scan(
		&result.Email,
		&result.Name,
		&result.Phone,
		&registerNumber,
		&class,
		&result.Score,
		&result.CorrectAnswers,
		&result.AttendedQuestions,
		&result.Completed,
		&result.CertificateID,
		&result.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if registerNumber != nil {
		result.RegisterNumber = *registerNumber
	}
	if class != nil {
		result.Class = *class
	}
	return nil
}

// withRetry re-runs transient failures a bounded number of times before
// surfacing domain.ErrStoreUnavailable. Domain outcomes (not found,
// conflicts, duplicates) pass through immediately.
func (s *ResultStore) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		err = op(ctx)
		if err == nil || isDomainOutcome(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, ctx.Err())
		case <-time.After(retryBackoff):
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

func isDomainOutcome(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrAlreadyRegistered)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
