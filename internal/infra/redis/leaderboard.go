package redis

import (
	"context"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/app"
	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/domain"
)

const (
	scoresKey = "quiz:leaderboard:scores"
	namesKey  = "quiz:leaderboard:names"
)

// Leaderboard caches the scoreboard in Redis: a ZSET of scores keyed by
// email plus a hash of display names. Misses fall through to the store
// behind a singleflight so a cold cache triggers a single rebuild.
type Leaderboard struct {
	client         *redis.Client
	store          app.ResultStore
	totalQuestions int
	limit          int
	ttl            time.Duration
	sf             singleflight.Group
	rnd            *rand.Rand
}

func NewLeaderboard(client *redis.Client, store app.ResultStore, totalQuestions, limit int, ttl time.Duration) *Leaderboard {
	return &Leaderboard{
		client:         client,
		store:          store,
		totalQuestions: totalQuestions,
		limit:          limit,
		ttl:            ttl,
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (l *Leaderboard) Leaderboard(ctx context.Context) (domain.Leaderboard, error) {
	if lb, ok := l.readCache(ctx); ok {
		return lb, nil
	}

	result, err, _ := l.sf.Do(scoresKey, func() (interface{}, error) {
		// Re-check in case another goroutine rebuilt the cache meanwhile.
		if lb, ok := l.readCache(ctx); ok {
			return lb, nil
		}

		results, err := l.store.ListCompleted(ctx, l.limit)
		if err != nil {
			return domain.Leaderboard{}, err
		}

		pipe := l.client.Pipeline()
		for _, r := range results {
			score := 0
			if r.Score != nil {
				score = *r.Score
			}
			pipe.ZAdd(ctx, scoresKey, redis.Z{Score: float64(score), Member: r.Email})
			pipe.HSet(ctx, namesKey, r.Email, r.Name)
		}
		if ttl := l.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, scoresKey, ttl)
			pipe.Expire(ctx, namesKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return app.BuildLeaderboard(results, l.totalQuestions), nil
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return result.(domain.Leaderboard), nil
}

// Invalidate drops the cached snapshot; the next read rebuilds it.
func (l *Leaderboard) Invalidate(ctx context.Context) error {
	return l.client.Del(ctx, scoresKey, namesKey).Err()
}

func (l *Leaderboard) readCache(ctx context.Context) (domain.Leaderboard, bool) {
	members, err := l.client.ZRevRangeWithScores(ctx, scoresKey, 0, int64(l.limit-1)).Result()
	if err != nil || len(members) == 0 {
		return domain.Leaderboard{}, false
	}
	names, err := l.client.HGetAll(ctx, namesKey).Result()
	if err != nil {
		return domain.Leaderboard{}, false
	}

	entries := make([]domain.LeaderboardEntry, 0, len(members))
	for _, member := range members {
		email, _ := member.Member.(string)
		score := int(member.Score)
		entries = append(entries, domain.LeaderboardEntry{
			Name:       names[email],
			Score:      score,
			Percentage: domain.Percentage(score, l.totalQuestions),
		})
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: time.Now()}, true
}

func (l *Leaderboard) ttlWithJitter() time.Duration {
	if l.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(l.ttl) / 10
	return l.ttl + time.Duration(l.rnd.Int63n(jitterMax+1))
}
