package raffleapi

import (
	"net/http"
	"sync"
	"time"

	raffletypes "github.com/Black-And-White-Club/raffle-bot/app/modules/raffle/domain/types"
	"golang.org/x/time/rate"
)

const (
	cleanupThreshold = 500
	maxIdleAge       = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PlayerRateLimiter throttles requests per authenticated player and prunes
// idle players inline.
type PlayerRateLimiter struct {
	mu      sync.Mutex
	players map[raffletypes.PlayerID]*limiterEntry
	r       rate.Limit
	b       int
}

// NewPlayerRateLimiter creates a limiter allowing r requests per second
// with burst b for each player.
func NewPlayerRateLimiter(r rate.Limit, b int) *PlayerRateLimiter {
	return &PlayerRateLimiter{
		players: make(map[raffletypes.PlayerID]*limiterEntry),
		r:       r,
		b:       b,
	}
}

// Allow reports whether player may make a request now.
func (l *PlayerRateLimiter) Allow(player raffletypes.PlayerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if len(l.players) > cleanupThreshold {
		cutoff := now.Add(-maxIdleAge)
		for k, e := range l.players {
			if e.lastSeen.Before(cutoff) {
				delete(l.players, k)
			}
		}
	}

	e, ok := l.players[player]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.r, l.b)}
		l.players[player] = e
	}
	e.lastSeen = now
	return e.limiter.Allow()
}

// RateLimitMiddleware must run after AuthMiddleware.
func RateLimitMiddleware(limiter *PlayerRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			player, _ := PlayerFromContext(r.Context())
			if !limiter.Allow(player) {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
