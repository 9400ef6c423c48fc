package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MFALimiter throttles MFA code attempts per user, independent of the
// password lockout counter. MFA failures never feed the account lock state
// machine, so the two windows cannot interleave.
type MFALimiter struct {
	mutex    sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	ttl      time.Duration
}

func NewMFALimiter(r rate.Limit, burst int, ttl time.Duration) *MFALimiter {
	return &MFALimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     r,
		burst:    burst,
		ttl:      ttl,
	}
}

// Allow reports whether the user may attempt another code right now.
func (l *MFALimiter) Allow(userID string) bool {
	return l.getLimiter(userID).Allow()
}

func (l *MFALimiter) getLimiter(userID string) *rate.Limiter {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if limiter, ok := l.limiters[userID]; ok {
		l.lastSeen[userID] = time.Now()
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[userID] = limiter
	l.lastSeen[userID] = time.Now()
	l.cleanup()
	return limiter
}

func (l *MFALimiter) cleanup() {
	if l.ttl == 0 {
		return
	}
	cutoff := time.Now().Add(-l.ttl)
	for userID, last := range l.lastSeen {
		if last.Before(cutoff) {
			delete(l.lastSeen, userID)
			delete(l.limiters, userID)
		}
	}
}
