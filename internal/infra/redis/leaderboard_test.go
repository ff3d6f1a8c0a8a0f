package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/app"
	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/domain"
	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/infra/memory"
)

const totalQuestions = 50

func TestLeaderboardCachesInRedis(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	defer mr.Close()

	store := seedStore(t, map[string]int{"alice@example.com": 45, "bob@example.com": 30})
	counting := &countingStore{ResultStore: store}
	lb := NewLeaderboard(client, counting, totalQuestions, 100, time.Minute)

	first, err := lb.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(first.Entries) != 2 || first.Entries[0].Score != 45 {
		t.Fatalf("unexpected entries: %+v", first.Entries)
	}
	if counting.lists != 1 {
		t.Fatalf("expected one store load, got %d", counting.lists)
	}

	// Second read must come from the cache.
	second, err := lb.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if counting.lists != 1 {
		t.Fatalf("expected cache hit, store loads=%d", counting.lists)
	}
	if len(second.Entries) != 2 || second.Entries[0].Name != "alice@example.com-name" {
		t.Fatalf("unexpected cached entries: %+v", second.Entries)
	}
}

func TestLeaderboardInvalidateForcesReload(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	defer mr.Close()

	store := seedStore(t, map[string]int{"alice@example.com": 45})
	counting := &countingStore{ResultStore: store}
	lb := NewLeaderboard(client, counting, totalQuestions, 100, time.Minute)

	if _, err := lb.Leaderboard(ctx); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := lb.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if err := store.RecordCompletion(ctx, "alice@example.com", 50, 50, 50); err != nil {
		t.Fatalf("update score: %v", err)
	}

	reloaded, err := lb.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("leaderboard after invalidate: %v", err)
	}
	if counting.lists != 2 {
		t.Fatalf("expected reload after invalidate, store loads=%d", counting.lists)
	}
	if reloaded.Entries[0].Score != 50 {
		t.Fatalf("expected refreshed score 50, got %+v", reloaded.Entries[0])
	}
}

func seedStore(t *testing.T, scores map[string]int) *memory.ResultStore {
	t.Helper()
	store := memory.NewResultStore(totalQuestions)
	for email, score := range scores {
		if err := store.Create(context.Background(), domain.QuizResult{
			Email: email,
			Name:  email + "-name",
		}); err != nil {
			t.Fatalf("seed %s: %v", email, err)
		}
		if err := store.RecordCompletion(context.Background(), email, score, score, totalQuestions); err != nil {
			t.Fatalf("complete %s: %v", email, err)
		}
	}
	return store
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	return mr, goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
}

type countingStore struct {
	app.ResultStore
	mu    sync.Mutex
	lists int
}

func (s *countingStore) ListCompleted(ctx context.Context, limit int) ([]domain.QuizResult, error) {
	s.mu.Lock()
	s.lists++
	s.mu.Unlock()
	return s.ResultStore.ListCompleted(ctx, limit)
}
