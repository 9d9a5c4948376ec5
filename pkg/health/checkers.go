package health

import (
	"context"
	"runtime"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than limit goroutines are running,
// which on this service means requests are stuck on the courier or the
// audit webhook.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines, limit %d", n, limit)
		}
		return nil
	}
}

// FreshnessCheck fails when the data produced at generatedAt is older than
// maxAge, e.g. a geography snapshot that no longer matches the courier's
// zones.
func FreshnessCheck(generatedAt time.Time, maxAge time.Duration, now func() time.Time) CheckFunc {
	if now == nil {
		now = time.Now
	}
	return func(context.Context) error {
		if age := now().Sub(generatedAt); age > maxAge {
			return errors.Errorf("generated %s ago, older than %s", age.Truncate(time.Hour), maxAge)
		}
		return nil
	}
}

// Pinger is a dependency that can be pinged, such as *pgxpool.Pool or the
// courier client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck wraps the ping error with name so /readyz shows which upstream
// failed.
func PingCheck(name string, p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrapf(err, "ping %s", name)
		}
		return nil
	}
}
