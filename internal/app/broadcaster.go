package app

import (
	"sync"

	"github.com/SOWMIYAN-S/bound-by-code-quiz-e1da3e57/internal/domain"
)

// LeaderboardBroadcaster fans leaderboard snapshots out to in-process
// subscribers (the WebSocket transport). Slow subscribers only ever lose
// stale snapshots, never the most recent one.
type LeaderboardBroadcaster struct {
	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardBroadcaster() *LeaderboardBroadcaster {
	return &LeaderboardBroadcaster{
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// Subscribe returns a channel of leaderboard updates. The caller must invoke
// the returned cancel function to avoid leaks.
func (b *LeaderboardBroadcaster) Subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a snapshot to every subscriber. When a subscriber's
// buffer is full the oldest pending snapshot is dropped in its favor.
func (b *LeaderboardBroadcaster) Publish(lb domain.Leaderboard) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
