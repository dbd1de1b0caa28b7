package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"PlateRecognition/pkg/handlerUtil"
	"PlateRecognition/pkg/response"
)

var (
	ErrTooManyRequests = response.NewError(http.StatusTooManyRequests, "too many requests")
)

const (
	visitorIdleTTL   = 10 * time.Minute
	visitorSweepTick = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	bucket    map[string]*visitor
	rate      rate.Limit
	burstSize int
	idleTTL   time.Duration
	now       func() time.Time
	mutex     *sync.Mutex
	stop      chan struct{}
	stopOnce  sync.Once
}

func newRateLimiter(reqRate rate.Limit, burstSize int) *rateLimiter {
	return &rateLimiter{
		bucket:    make(map[string]*visitor),
		rate:      reqRate,
		burstSize: burstSize,
		idleTTL:   visitorIdleTTL,
		now:       time.Now,
		mutex:     &sync.Mutex{},
		stop:      make(chan struct{}),
	}
}

func (r *rateLimiter) GetLimiterFrom(ip string) *rate.Limiter {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	v, exist := r.bucket[ip]
	if !exist {
		v = &visitor{limiter: rate.NewLimiter(r.rate, r.burstSize)}
		r.bucket[ip] = v
	}
	v.lastSeen = r.now()

	return v.limiter
}

// evictIdle forgets visitors not seen for idleTTL and returns how many were dropped.
func (r *rateLimiter) evictIdle() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cutoff := r.now().Add(-r.idleTTL)
	evicted := 0
	for ip, v := range r.bucket {
		if v.lastSeen.Before(cutoff) {
			delete(r.bucket, ip)
			evicted++
		}
	}
	return evicted
}

func (r *rateLimiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle()
		case <-r.stop:
			return
		}
	}
}

func (r *rateLimiter) close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	clientIP := ctx.IP()
	limiter := m.rateLimitter.GetLimiterFrom(clientIP)

	if !limiter.Allow() {
		return handlerUtil.New(m.log).Handle(ctx, m.GetRequestID(ctx), ErrTooManyRequests, ctx.Path(), "rate_limit")
	}

	return ctx.Next()
}
