package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/app"
	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/domain"
	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/infra/memory"
)

const totalQuestions = 50

var testScheme = domain.CertificateScheme{Prefix: "BBCCQ20", Digits: 2}

func TestAllocateIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t, completedResult("alice@example.com", 40))
	counting := &countingStore{CertificateStore: store}
	service := app.NewCertificateService(counting, testScheme, totalQuestions)

	first, err := service.Allocate(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("first allocate: %v", err)
	}
	second, err := service.Allocate(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("second allocate: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical IDs, got %q then %q", first, second)
	}
	if counting.claims != 1 {
		t.Fatalf("expected exactly one persisted write, got %d", counting.claims)
	}
}

func TestAllocateNotEligible(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t, completedResult("bob@example.com", 3))
	counting := &countingStore{CertificateStore: store}
	service := app.NewCertificateService(counting, testScheme, 10)

	_, err := service.Allocate(ctx, "bob@example.com")
	if !errors.Is(err, domain.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible for 30%%, got %v", err)
	}
	if counting.claims != 0 {
		t.Fatalf("eligibility failure must not write, got %d claims", counting.claims)
	}
}

func TestAllocateRequiresCompletion(t *testing.T) {
	ctx := context.Background()
	score := 40
	store := newSeededStore(t, domain.QuizResult{Email: "carol@example.com", Name: "Carol", Score: &score})
	service := app.NewCertificateService(store, testScheme, totalQuestions)

	if _, err := service.Allocate(ctx, "carol@example.com"); !errors.Is(err, domain.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible for incomplete result, got %v", err)
	}
}

func TestAllocateUnknownOwner(t *testing.T) {
	service := app.NewCertificateService(memory.NewResultStore(totalQuestions), testScheme, totalQuestions)
	if _, err := service.Allocate(context.Background(), "ghost@example.com"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAllocateSequenceIsConsecutive(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t,
		completedResult("a@example.com", 40),
		completedResult("b@example.com", 35),
	)
	service := app.NewCertificateService(store, testScheme, totalQuestions)

	first, err := service.Allocate(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("allocate a: %v", err)
	}
	second, err := service.Allocate(ctx, "b@example.com")
	if err != nil {
		t.Fatalf("allocate b: %v", err)
	}
	if first != "BBCCQ2001" || second != "BBCCQ2002" {
		t.Fatalf("expected BBCCQ2001 then BBCCQ2002, got %q and %q", first, second)
	}
}

func TestAllocateConcurrentOwnersGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	// Each lost race corresponds to another owner committing, so with the
	// allocator's 5 attempts up to 5 concurrent owners always converge.
	const owners = 5
	results := make([]domain.QuizResult, 0, owners)
	for i := 0; i < owners; i++ {
		results = append(results, completedResult(fmt.Sprintf("user%d@example.com", i), 30+i%20))
	}
	store := newSeededStore(t, results...)
	service := app.NewCertificateService(store, testScheme, totalQuestions)

	var wg sync.WaitGroup
	ids := make([]string, owners)
	errs := make([]error, owners)
	for i := 0; i < owners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = service.Allocate(ctx, fmt.Sprintf("user%d@example.com", i))
		}(i)
	}
	wg.Wait()

	seen := make(map[string]int)
	for i := 0; i < owners; i++ {
		if errs[i] != nil {
			t.Fatalf("allocate %d: %v", i, errs[i])
		}
		seen[ids[i]]++
		if n, ok := testScheme.Parse(ids[i]); !ok || n < 1 || n > owners {
			t.Fatalf("id %q outside expected consecutive range 1..%d", ids[i], owners)
		}
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("id %q allocated %d times", id, count)
		}
	}
}

func TestAllocateConcurrentDuplicateSubmission(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t, completedResult("dup@example.com", 45))
	service := app.NewCertificateService(store, testScheme, totalQuestions)

	var wg sync.WaitGroup
	ids := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = service.Allocate(ctx, "dup@example.com")
		}(i)
	}
	wg.Wait()

	if errs[0] != nil || errs[1] != nil {
		t.Fatalf("duplicate submission must not fail: %v, %v", errs[0], errs[1])
	}
	if ids[0] != ids[1] {
		t.Fatalf("duplicate submission produced two IDs: %q and %q", ids[0], ids[1])
	}
}

func TestAllocateIgnoresLegacyIDs(t *testing.T) {
	ctx := context.Background()
	legacy := "BBCCQ00a1b2c3"
	store := newSeededStore(t, completedResult("new@example.com", 40))
	old := completedResult("old@example.com", 48)
	old.CertificateID = &legacy
	if err := store.Create(ctx, old); err != nil {
		t.Fatalf("seed legacy: %v", err)
	}
	service := app.NewCertificateService(store, testScheme, totalQuestions)

	id, err := service.Allocate(ctx, "new@example.com")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if id != "BBCCQ2001" {
		t.Fatalf("legacy ID must not advance the sequence, got %q", id)
	}
}

func TestAllocateCapacityExceeded(t *testing.T) {
	ctx := context.Background()
	narrow := domain.CertificateScheme{Prefix: "BBCCQ20", Digits: 1}
	store := memory.NewResultStore(totalQuestions)
	for i := 0; i < 10; i++ {
		if err := store.Create(ctx, completedResult(fmt.Sprintf("u%d@example.com", i), 40)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	service := app.NewCertificateService(store, narrow, totalQuestions)

	for i := 0; i < 9; i++ {
		if _, err := service.Allocate(ctx, fmt.Sprintf("u%d@example.com", i)); err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}
	if _, err := service.Allocate(ctx, "u9@example.com"); !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded at suffix overflow, got %v", err)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t, completedResult("round@example.com", 42))
	service := app.NewCertificateService(store, testScheme, totalQuestions)

	id, err := service.Allocate(ctx, "round@example.com")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	record, err := service.Verify(ctx, id)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if record.CertificateID != id || record.Email != "round@example.com" {
		t.Fatalf("round trip mismatch: %+v", record)
	}
	if record.Score != 42 || record.Percentage != 84 || record.TotalQuestions != totalQuestions {
		t.Fatalf("unexpected score fields: %+v", record)
	}
	if record.IssueDate == "" || record.IssueDate == domain.UnknownIssueDate {
		t.Fatalf("expected a concrete issue date, got %q", record.IssueDate)
	}
}

func TestVerifyMalformedSkipsStore(t *testing.T) {
	counting := &countingStore{CertificateStore: memory.NewResultStore(totalQuestions)}
	service := app.NewCertificateService(counting, testScheme, totalQuestions)

	for _, candidate := range []string{"", "nope", "BBCCQ20", "BBCCQ20123", "BBCCQ20xy"} {
		if _, err := service.Verify(context.Background(), candidate); !errors.Is(err, domain.ErrInvalidFormat) {
			t.Fatalf("expected ErrInvalidFormat for %q, got %v", candidate, err)
		}
	}
	if counting.reads != 0 {
		t.Fatalf("malformed input must not touch the store, saw %d reads", counting.reads)
	}
}

func TestVerifyUnknownID(t *testing.T) {
	store := newSeededStore(t, completedResult("someone@example.com", 40))
	service := app.NewCertificateService(store, testScheme, totalQuestions)

	if _, err := service.Verify(context.Background(), "BBCCQ2099"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVerifyRechecksCurrentScore(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t, completedResult("edited@example.com", 40))
	service := app.NewCertificateService(store, testScheme, totalQuestions)

	id, err := service.Allocate(ctx, "edited@example.com")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if _, err := service.Verify(ctx, id); err != nil {
		t.Fatalf("verify before edit: %v", err)
	}

	// Correcting the stored score below threshold must invalidate the
	// already-issued certificate on the next verification.
	if err := store.RecordCompletion(ctx, "edited@example.com", 10, 10, 50); err != nil {
		t.Fatalf("edit score: %v", err)
	}
	if _, err := service.Verify(ctx, id); !errors.Is(err, domain.ErrIneligible) {
		t.Fatalf("expected ErrIneligible after score edit, got %v", err)
	}
}

func newSeededStore(t *testing.T, results ...domain.QuizResult) *memory.ResultStore {
	t.Helper()
	store := memory.NewResultStore(totalQuestions)
	for _, r := range results {
		if err := store.Create(context.Background(), r); err != nil {
			t.Fatalf("seed %s: %v", r.Email, err)
		}
	}
	return store
}

func completedResult(email string, score int) domain.QuizResult {
	s := score
	return domain.QuizResult{
		Email:     email,
		Name:      "Participant",
		Score:     &s,
		Completed: true,
	}
}

// countingStore records store traffic so tests can assert on write counts
// and on the no-store-access property of malformed verification input.
type countingStore struct {
	app.CertificateStore
	mu     sync.Mutex
	reads  int
	claims int
}

func (s *countingStore) GetByEmail(ctx context.Context, email string) (domain.QuizResult, error) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	return s.CertificateStore.GetByEmail(ctx, email)
}

func (s *countingStore) GetByCertificateID(ctx context.Context, id string) (domain.QuizResult, error) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	return s.CertificateStore.GetByCertificateID(ctx, id)
}

func (s *countingStore) AssignedCertificateIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	return s.CertificateStore.AssignedCertificateIDs(ctx)
}

func (s *countingStore) ClaimCertificate(ctx context.Context, email, id string) error {
	s.mu.Lock()
	s.claims++
	s.mu.Unlock()
	return s.CertificateStore.ClaimCertificate(ctx, email, id)
}
