package mw

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/sigdesk/internal/auth"
	"github.com/MrSnakeDoc/sigdesk/internal/httpserver/respond"
	"github.com/MrSnakeDoc/sigdesk/internal/utils"
)

type RateLimitConfig struct {
	PerSecond     float64 // refill rate per client
	Burst         int
	MaxEntries    int
	SweepInterval time.Duration
	IdleTTL       time.Duration
	TrustProxy    bool // resolve IP from proxy headers when true
}

type limitEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiter struct {
	cfg       RateLimitConfig
	mu        sync.Mutex
	entries   map[string]*limitEntry
	lastSweep time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 1.0 / 60
	}
	return &limiter{
		cfg:       cfg,
		entries:   make(map[string]*limitEntry, 1024),
		lastSweep: time.Now(),
	}
}

func (l *limiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) >= l.cfg.SweepInterval ||
		(l.cfg.MaxEntries > 0 && len(l.entries) >= l.cfg.MaxEntries) {
		l.sweepLocked(now)
	}
	e := l.entries[key]
	if e == nil {
		e = &limitEntry{limiter: rate.NewLimiter(rate.Limit(l.cfg.PerSecond), l.cfg.Burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (l *limiter) allow(key string, now time.Time) (ok bool, remaining int, retryAfterSec int) {
	lim := l.get(key, now)
	if lim.AllowN(now, 1) {
		return true, max(int(math.Floor(lim.TokensAt(now))), 0), 0
	}
	needed := 1.0 - lim.TokensAt(now)
	return false, 0, max(int(math.Ceil(needed/l.cfg.PerSecond)), 1)
}

func (l *limiter) sweepLocked(now time.Time) {
	for key, e := range l.entries {
		if now.Sub(e.lastSeen) > l.cfg.IdleTTL {
			delete(l.entries, key)
		}
	}
	l.lastSweep = now
}

// RateLimit throttles each caller with a token bucket. Authenticated callers
// are keyed by username, others by client IP.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newLimiter(cfg)
	limitStr := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + utils.ClientIP(r, l.cfg.TrustProxy)
			if u, err := auth.GetUser(r.Context()); err == nil {
				key = "user:" + u.Username
			}

			ok, remaining, retry := l.allow(key, time.Now())
			w.Header().Set("X-RateLimit-Limit", limitStr)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				respond.JSON(w, http.StatusTooManyRequests, nil,
					fmt.Sprintf("Too many requests, retry in %ds.", retry))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
