package app

import (
	"context"
	"errors"

	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/domain"
)

// allocateAttempts bounds the read→compute→commit retry loop. Each retry
// re-reads the assigned IDs, so a handful of attempts rides out realistic
// contention without spinning forever on a persistent failure.
const allocateAttempts = 5

// CertificateStore is the slice of the result store the certificate use
// cases need. All correctness comes from ClaimCertificate's conditional
// write semantics; there is no cross-client memory to lock.
type CertificateStore interface {
	GetByEmail(ctx context.Context, email string) (domain.QuizResult, error)
	GetByCertificateID(ctx context.Context, id string) (domain.QuizResult, error)
	// AssignedCertificateIDs returns every non-null certificate ID in the store.
	AssignedCertificateIDs(ctx context.Context) ([]string, error)
	// ClaimCertificate persists id onto the owner's row only if that row has
	// no certificate yet. It returns domain.ErrConflict when the row was
	// already claimed or the ID collided with a concurrent allocation.
	ClaimCertificate(ctx context.Context, email, id string) error
}

// CertificateService allocates and verifies certificate IDs.
type CertificateService struct {
	store          CertificateStore
	scheme         domain.CertificateScheme
	totalQuestions int
}

func NewCertificateService(store CertificateStore, scheme domain.CertificateScheme, totalQuestions int) *CertificateService {
	return &CertificateService{store: store, scheme: scheme, totalQuestions: totalQuestions}
}

// Allocate returns the one certificate ID for the given owner, creating it
// on the first eligible call. Repeated calls for the same owner always yield
// the same ID and perform no further writes.
func (s *CertificateService) Allocate(ctx context.Context, email string) (string, error) {
	result, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if result.CertificateID != nil {
		return *result.CertificateID, nil
	}
	if !result.Eligible(s.totalQuestions) {
		return "", domain.ErrNotEligible
	}

	for attempt := 0; attempt < allocateAttempts; attempt++ {
		next, err := s.nextSequence(ctx)
		if err != nil {
			return "", err
		}
		if next > s.scheme.Capacity() {
			return "", domain.ErrCapacityExceeded
		}

		id := s.scheme.Format(next)
		err = s.store.ClaimCertificate(ctx, email, id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return "", err
		}

		// Lost the race. If a duplicate submission for this same owner won,
		// return its ID; otherwise another owner took the number, so rescan.
		current, getErr := s.store.GetByEmail(ctx, email)
		if getErr == nil && current.CertificateID != nil {
			return *current.CertificateID, nil
		}
	}
	return "", domain.ErrConflict
}

// nextSequence scans all assigned IDs and proposes max+1. IDs that do not
// match the canonical scheme (legacy prefixes, other widths) are skipped so
// old data never poisons the counter.
func (s *CertificateService) nextSequence(ctx context.Context) (int, error) {
	ids, err := s.store.AssignedCertificateIDs(ctx)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, id := range ids {
		if n, ok := s.scheme.Parse(id); ok && n > max {
			max = n
		}
	}
	return max + 1, nil
}

// Verify resolves a candidate ID typed by a third party. Malformed input is
// rejected before any store access. Eligibility is recomputed from the
// currently stored score, so a corrected score invalidates old certificates.
func (s *CertificateService) Verify(ctx context.Context, candidate string) (domain.VerificationRecord, error) {
	if !s.scheme.Matches(candidate) {
		return domain.VerificationRecord{}, domain.ErrInvalidFormat
	}

	result, err := s.store.GetByCertificateID(ctx, candidate)
	if err != nil {
		return domain.VerificationRecord{}, err
	}

	score := 0
	if result.Score != nil {
		score = *result.Score
	}
	percentage := domain.Percentage(score, s.totalQuestions)
	if percentage < domain.PassThreshold {
		return domain.VerificationRecord{}, domain.ErrIneligible
	}

	return domain.VerificationRecord{
		CertificateID:     candidate,
		Name:              result.Name,
		Email:             result.Email,
		Score:             score,
		TotalQuestions:    s.totalQuestions,
		Percentage:        percentage,
		IssueDate:         domain.IssueDate(result.CreatedAt),
		RegisterNumber:    result.RegisterNumber,
		Class:             result.Class,
		CorrectAnswers:    result.CorrectAnswers,
		AttendedQuestions: result.AttendedQuestions,
	}, nil
}
