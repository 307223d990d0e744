// Package poller periodically checks every registered video and caches the
// latest result in the store.
package poller

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nwchenyw/tw-live-frontend/internal/config"
	"github.com/nwchenyw/tw-live-frontend/internal/logger"
	"github.com/nwchenyw/tw-live-frontend/internal/metrics"
	"github.com/nwchenyw/tw-live-frontend/internal/store"
	"github.com/nwchenyw/tw-live-frontend/internal/youtube"
)

// VideoChecker is satisfied by *youtube.Checker.
type VideoChecker interface {
	Check(ctx context.Context, videoID string) youtube.Result
}

// Poller runs check cycles separated by base + rand[0, jitter].
type Poller struct {
	store   store.Store
	checker VideoChecker
	limiter *rate.Limiter
	logger  *logrus.Entry

	mu     sync.RWMutex
	base   time.Duration
	jitter time.Duration
	rng    *rand.Rand

	lastCycle atomic.Int64 // unix nanos of the last completed cycle
	now       func() time.Time
}

func New(st store.Store, checker VideoChecker, cfg config.PollingConfig, log *logrus.Logger) *Poller {
	base, jitter := cfg.PollSeconds()

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Poller{
		store:   st,
		checker: checker,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.WithComponent(log, "poller"),
		base:    time.Duration(base) * time.Second,
		jitter:  time.Duration(jitter) * time.Second,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// SetInterval replaces base and jitter; the change applies from the next sleep.
func (p *Poller) SetInterval(base, jitter time.Duration) {
	if base < time.Second {
		base = time.Second
	}
	if jitter < 0 {
		jitter = 0
	}

	p.mu.Lock()
	changed := base != p.base || jitter != p.jitter
	p.base, p.jitter = base, jitter
	p.mu.Unlock()

	if changed {
		p.logger.WithFields(logrus.Fields{"interval": base.String(), "jitter": jitter.String()}).
			Info("Poll interval updated")
	}
}

func (p *Poller) Interval() (base, jitter time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.base, p.jitter
}

// LastCycle returns when the last cycle finished, or the zero time.
func (p *Poller) LastCycle() time.Time {
	n := p.lastCycle.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Run polls until ctx is cancelled. The first cycle starts immediately.
func (p *Poller) Run(ctx context.Context) {
	base, jitter := p.Interval()
	p.logger.WithFields(logrus.Fields{
		"interval": base.String(),
		"jitter":   jitter.String(),
	}).Infof("Poll interval set to %s (plus up to %s jitter)", base, jitter)

	for {
		if err := p.RunCycle(ctx); err != nil && ctx.Err() == nil {
			p.logger.WithError(err).Warn("Poll cycle failed")
		}

		timer := time.NewTimer(p.nextSleep())
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("Poller stopped")
			return
		case <-timer.C:
		}
	}
}

func (p *Poller) nextSleep() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	d := p.base
	if p.jitter > 0 {
		d += time.Duration(p.rng.Int63n(int64(p.jitter) + 1))
	}
	return d
}

// RunCycle checks every registered video once. A failing check is recorded as
// that video's status; a store failure aborts the cycle.
func (p *Poller) RunCycle(ctx context.Context) error {
	regs, err := p.store.ListVideos(ctx)
	if err != nil {
		metrics.RecordPollCycle(metrics.OutcomeFailed, 0, 0)
		return fmt.Errorf("list videos: %w", err)
	}

	live := 0
	for _, reg := range regs {
		if err := p.limiter.Wait(ctx); err != nil {
			metrics.RecordPollCycle(metrics.OutcomeFailed, 0, 0)
			return err
		}

		start := time.Now()
		res := p.checker.Check(ctx, reg.VideoID)
		if ctx.Err() != nil {
			// Cancelled mid-check; the result says nothing about the video.
			metrics.RecordPollCycle(metrics.OutcomeFailed, 0, 0)
			return ctx.Err()
		}
		metrics.RecordCheck(resultLabel(res), time.Since(start))
		if res.IsLive {
			live++
		}

		if err := p.store.SaveStatus(ctx, res.StatusItem(reg.VideoID, p.now().UTC())); err != nil {
			metrics.RecordPollCycle(metrics.OutcomeFailed, 0, 0)
			return fmt.Errorf("save status for %s: %w", reg.VideoID, err)
		}

		entry := p.logger.WithField("video_id", reg.VideoID)
		if res.Note != "" {
			entry.WithField("note", res.Note).Debug("Check did not complete")
		} else {
			entry.WithField("live_status", res.LiveStatus).Debug("Checked video")
		}
	}

	p.lastCycle.Store(p.now().UnixNano())
	metrics.RecordPollCycle(metrics.OutcomeOK, len(regs), live)
	p.logger.WithFields(logrus.Fields{"watching": len(regs), "live": live}).Debug("Poll cycle complete")
	return nil
}

func resultLabel(r youtube.Result) string {
	switch {
	case r.IsLive:
		return metrics.ResultLive
	case r.LiveStatus == youtube.StatusUpcoming:
		return metrics.ResultUpcoming
	case r.LiveStatus == youtube.StatusOff:
		return metrics.ResultOff
	case strings.HasPrefix(r.Note, "HTTP "):
		return metrics.ResultHTTPError
	default:
		return metrics.ResultError
	}
}
