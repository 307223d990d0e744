package health

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker pings the registration store.
type StoreChecker struct {
	store  Pinger
	driver string
}

func NewStoreChecker(store Pinger, driver string) *StoreChecker {
	return &StoreChecker{store: store, driver: driver}
}

func (s *StoreChecker) Name() string { return "store" }

func (s *StoreChecker) Check(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", s.driver, err)
	}
	return nil
}

// RedisChecker checks Redis connectivity and that the server answers INFO.
type RedisChecker struct {
	client *redis.Client
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

func (r *RedisChecker) Name() string { return "redis" }

func (r *RedisChecker) Check(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	// Default sections only; some servers and proxies reject named ones.
	info, err := r.client.Info(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to get redis info: %w", err)
	}
	if len(info) == 0 {
		return fmt.Errorf("empty redis info response")
	}
	return nil
}

// CycleReporter is satisfied by poller.Poller.
type CycleReporter interface {
	LastCycle() time.Time
	Interval() (base, jitter time.Duration)
}

// PollerChecker reports degraded when the poller has not completed a cycle
// within three full intervals (base plus jitter). A poller that has not
// finished its first cycle gets the same allowance measured from startTime.
type PollerChecker struct {
	poller    CycleReporter
	startTime time.Time
	now       func() time.Time
}

func NewPollerChecker(poller CycleReporter) *PollerChecker {
	return &PollerChecker{poller: poller, startTime: time.Now(), now: time.Now}
}

func (p *PollerChecker) Name() string { return "poller" }

func (p *PollerChecker) Check(ctx context.Context) error {
	base, jitter := p.poller.Interval()
	allowance := 3 * (base + jitter)

	last := p.poller.LastCycle()
	ref := last
	if ref.IsZero() {
		ref = p.startTime
	}
	if p.now().Sub(ref) <= allowance {
		return nil
	}
	if last.IsZero() {
		return Degraded(fmt.Errorf("no poll cycle completed since start %s", humanize.Time(p.startTime)))
	}
	return Degraded(fmt.Errorf("last poll cycle completed %s", humanize.Time(last)))
}
