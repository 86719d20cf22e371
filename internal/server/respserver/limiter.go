package respserver

import (
	"net"

	"golang.org/x/time/rate"

	"github.com/stefankamdem/minikv/pkg/cmap"
)

// ipLimiter throttles requests per client IP using token buckets.
type ipLimiter struct {
	limiters *cmap.Map[*rate.Limiter]
	limit    rate.Limit
	burst    int
}

func newIPLimiter(requestsPerSecond int) *ipLimiter {
	return &ipLimiter{
		limiters: cmap.New[*rate.Limiter](),
		limit:    rate.Limit(requestsPerSecond),
		burst:    requestsPerSecond,
	}
}

// allow reports whether a request from addr should be served now.
func (l *ipLimiter) allow(addr net.Addr) bool {
	ip := addr.String()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	lim, ok := l.limiters.Get(ip)
	if !ok {
		lim, _ = l.limiters.GetOrSet(ip, rate.NewLimiter(l.limit, l.burst))
	}
	return lim.Allow()
}
