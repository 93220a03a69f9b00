package pagecms

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter rate-limits login attempts per IP address with a token
// bucket per IP: max attempts, refilled evenly over window.
type LoginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	max      int
	window   time.Duration
	stop     chan struct{}
	once     sync.Once
}

type ipLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter creates a LoginLimiter that allows max attempts per window.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	l := &LoginLimiter{
		limiters: make(map[string]*ipLimiter),
		max:      max,
		window:   window,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *LoginLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	il, ok := l.limiters[ip]
	if !ok {
		il = &ipLimiter{lim: rate.NewLimiter(rate.Every(l.window/time.Duration(l.max)), l.max)}
		l.limiters[ip] = il
	}
	il.lastSeen = time.Now()
	return il.lim
}

func (l *LoginLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-l.window)
			l.mu.Lock()
			for ip, il := range l.limiters {
				if il.lastSeen.Before(cutoff) {
					delete(l.limiters, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Stop ends the background cleanup.
func (l *LoginLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// Allow checks if the IP has not exceeded the rate limit and records the attempt.
func (l *LoginLimiter) Allow(ip string) bool {
	return l.get(ip).Allow()
}

// Check returns true if the IP has not exceeded the rate limit.
// It does not record an attempt; call Record separately on failure.
func (l *LoginLimiter) Check(ip string) bool {
	return l.get(ip).Tokens() >= 1
}

// Record registers a failed login attempt for the given IP.
func (l *LoginLimiter) Record(ip string) {
	l.get(ip).Allow()
}
