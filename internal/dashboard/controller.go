package dashboard

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nwchenyw/tw-live-frontend/internal/errors"
	"github.com/nwchenyw/tw-live-frontend/internal/logger"
	"github.com/nwchenyw/tw-live-frontend/internal/metrics"
	"github.com/nwchenyw/tw-live-frontend/internal/models"
)

// ErrClosed is returned once the controller has been torn down, and for
// cycles whose result arrived after teardown.
var ErrClosed = stderrors.New("dashboard: controller closed")

const refreshKey = "refresh"

// Gateway is the remote backend as seen by the controller. *gateway.Client
// satisfies it.
type Gateway interface {
	ListVideos(ctx context.Context) ([]models.VideoItem, error)
	ListStatus(ctx context.Context) ([]models.StatusItem, error)
	CheckHealth(ctx context.Context) models.Health
	AddVideo(ctx context.Context, idOrURL string, name *string) (models.VideoItem, error)
	DeleteVideo(ctx context.Context, videoID string) error
}

// Snapshot is the complete dashboard state at one point in time. It is
// replaced as a whole, never patched.
type Snapshot struct {
	Rows          []Row
	Connected     bool
	WatchingCount int
	CachedCount   int
	LastUpdate    time.Time // zero until the first successful refresh
}

// Controller owns the canonical snapshot and funnels refreshes, adds and
// deletes through one reconciliation path.
type Controller struct {
	gw        Gateway
	session   Session
	notifier  Notifier
	listeners []func(Snapshot)
	logger    logger.Logger
	now       func() time.Time
	reconcile ReconcileOptions
	sched     *Scheduler

	snapshot atomic.Pointer[Snapshot]

	mu  sync.Mutex
	cfg ViewConfig

	group  singleflight.Group
	cycles atomic.Uint64 // refresh cycles started so far
	gen    atomic.Uint64 // bumped on teardown
	closed atomic.Bool

	// publishMu covers the teardown check and the snapshot swap as one step.
	publishMu sync.Mutex

	ctx    context.Context // lifetime of the controller, cancelled on teardown
	cancel context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier adds a notification sink. May be given more than once.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if c.notifier == nil {
			c.notifier = n
			return
		}
		c.notifier = multiNotifier{c.notifier, n}
	}
}

// WithListener registers fn to run after every snapshot replacement. fn runs
// while the snapshot is being published and must not call Close.
func WithListener(fn func(Snapshot)) Option {
	return func(c *Controller) { c.listeners = append(c.listeners, fn) }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock overrides time.Now for snapshot and notification stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithReconcileOptions(o ReconcileOptions) Option {
	return func(c *Controller) { c.reconcile = o }
}

// WithViewConfig sets the initial refresh and paging state.
func WithViewConfig(cfg ViewConfig) Option {
	return func(c *Controller) { c.cfg = cfg }
}

func New(gw Gateway, session Session, opts ...Option) *Controller {
	c := &Controller{
		gw:      gw,
		session: session,
		logger:  logger.NewNullLogger(),
		now:     time.Now,
		cfg:     ViewConfig{Filter: FilterAll, PageSize: DefaultPageSize, PageIndex: 1},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = NotifierFunc(func(Notification) {})
	}
	c.logger = c.logger.WithField("component", "dashboard")
	c.cfg = normalizeConfig(c.cfg)
	c.sched = NewScheduler(c.logger)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.snapshot.Store(&Snapshot{})

	if session != nil {
		session.OnInvalidated(func() {
			c.logger.Info("Session invalidated, stopping refresh")
			c.teardown()
		})
	}
	return c
}

// Start arms auto-refresh and runs the initial refresh on the caller's
// goroutine. A failed initial refresh is reported through the snapshot and a
// notification, not the returned error.
func (c *Controller) Start(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.authorize(); err != nil {
		return err
	}

	c.mu.Lock()
	interval := seconds(c.cfg.IntervalSeconds)
	c.mu.Unlock()

	c.sched.Start(c.ctx, interval, c.tick)
	c.sched.Trigger(ctx)
	return nil
}

// TriggerRefresh is the manual refresh entry point. It shares the scheduler's
// in-flight guard and returns false when a refresh is already running.
func (c *Controller) TriggerRefresh(ctx context.Context) bool {
	return c.sched.Trigger(ctx)
}

// Refresh runs a refresh cycle, or joins the one already in flight.
func (c *Controller) Refresh(ctx context.Context) error {
	_, err := c.join(ctx)
	return err
}

// AddMonitor registers a video and then refreshes. The snapshot only changes
// through that refresh; nothing is inserted locally.
func (c *Controller) AddMonitor(ctx context.Context, idOrURL, name string) (models.VideoItem, error) {
	if err := c.authorize(); err != nil {
		return models.VideoItem{}, err
	}

	item, err := c.gw.AddVideo(ctx, idOrURL, models.StringPtr(name))
	if err != nil {
		c.logger.WithError(err).Warn("Add video failed")
		c.notify(LevelError, "新增失敗: "+errors.Message(err))
		return models.VideoItem{}, err
	}

	c.logger.WithField("video_id", item.VideoID).Info("Video added")
	c.notify(LevelInfo, "已新增 "+item.VideoID)
	c.refreshAfterMutation(ctx)
	return item, nil
}

// DeleteMonitor removes the registration behind a row, then refreshes.
func (c *Controller) DeleteMonitor(ctx context.Context, rowID string) error {
	id, err := ParseRowID(rowID)
	if err != nil {
		c.notify(LevelError, "刪除失敗: "+errors.Message(err))
		return err
	}
	if err := c.authorize(); err != nil {
		return err
	}

	if err := c.gw.DeleteVideo(ctx, id.VideoID); err != nil {
		c.logger.WithError(err).WithField("video_id", id.VideoID).Warn("Delete video failed")
		c.notify(LevelError, "刪除失敗: "+errors.Message(err))
		return err
	}

	c.logger.WithField("video_id", id.VideoID).Info("Video deleted")
	c.notify(LevelInfo, "已刪除 "+id.VideoID)
	c.refreshAfterMutation(ctx)
	return nil
}

// Snapshot returns the current snapshot.
func (c *Controller) Snapshot() Snapshot {
	return *c.snapshot.Load()
}

// View paginates the current snapshot with the current view config.
func (c *Controller) View() Page {
	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()
	return Paginate(c.snapshot.Load().Rows, cfg)
}

func (c *Controller) Config() ViewConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// SetInterval changes the auto-refresh period and re-arms the timer. Zero or
// less disables auto-refresh.
func (c *Controller) SetInterval(secs int) {
	if secs < 0 {
		secs = 0
	}
	c.mu.Lock()
	c.cfg.IntervalSeconds = secs
	c.mu.Unlock()
	c.sched.Reconfigure(seconds(secs))
}

// SetFilter changes the status filter and returns to the first page.
func (c *Controller) SetFilter(f Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Filter = f
	c.cfg.PageIndex = 1
}

// SetPageSize changes the page size and returns to the first page.
func (c *Controller) SetPageSize(n int) {
	if n <= 0 {
		n = DefaultPageSize
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.PageSize = n
	c.cfg.PageIndex = 1
}

// SetPage jumps to page i, clamped to the pages that exist.
func (c *Controller) SetPage(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.PageIndex = i
	c.cfg.PageIndex = Paginate(c.snapshot.Load().Rows, c.cfg).PageIndex
}

// NextPage advances one page; it does nothing on the last page.
func (c *Controller) NextPage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := Paginate(c.snapshot.Load().Rows, c.cfg)
	c.cfg.PageIndex = p.PageIndex
	if p.PageIndex < p.TotalPages {
		c.cfg.PageIndex++
	}
}

// PrevPage goes back one page; it does nothing on the first page.
func (c *Controller) PrevPage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := Paginate(c.snapshot.Load().Rows, c.cfg)
	c.cfg.PageIndex = p.PageIndex
	if p.PageIndex > 1 {
		c.cfg.PageIndex--
	}
}

// Scheduler exposes the refresh scheduler for status display.
func (c *Controller) Scheduler() *Scheduler {
	return c.sched
}

// Close stops auto-refresh and discards any cycle still in flight.
func (c *Controller) Close() {
	c.teardown()
}

func (c *Controller) teardown() {
	c.publishMu.Lock()
	if !c.closed.CompareAndSwap(false, true) {
		c.publishMu.Unlock()
		return
	}
	c.gen.Add(1)
	c.publishMu.Unlock()

	c.sched.Stop()
	c.cancel()
}

func (c *Controller) tick(ctx context.Context) {
	_ = c.Refresh(ctx)
}

// join waits for the in-flight cycle, starting one if none is running. It
// returns the sequence number of the cycle it observed.
func (c *Controller) join(ctx context.Context) (uint64, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		return c.cycle()
	})
	select {
	case res := <-ch:
		seq, _ := res.Val.(uint64)
		return seq, res.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// refreshAfterMutation makes sure the snapshot reflects a mutation that just
// succeeded. A cycle already in flight may have read the backend before the
// mutation, so it is awaited and then a cycle that started later is joined or
// started.
func (c *Controller) refreshAfterMutation(ctx context.Context) {
	mark := c.cycles.Load()
	for {
		seq, err := c.join(ctx)
		if seq > mark || stderrors.Is(err, ErrClosed) || ctx.Err() != nil {
			return
		}
	}
}

// cycle is one full refresh. Only one runs at a time; all callers go through
// the singleflight group.
func (c *Controller) cycle() (uint64, error) {
	seq := c.cycles.Add(1)
	gen := c.gen.Load()
	start := time.Now()

	if err := c.authorize(); err != nil {
		return seq, err
	}

	var (
		videos   []models.VideoItem
		statuses []models.StatusItem
		health   models.Health
	)
	g, gctx := errgroup.WithContext(c.ctx)
	g.Go(func() error {
		var err error
		videos, err = c.gw.ListVideos(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		statuses, err = c.gw.ListStatus(gctx)
		return err
	})
	g.Go(func() error {
		health = c.gw.CheckHealth(gctx)
		return nil
	})
	err := g.Wait()

	var rows []Row
	published := c.publish(gen, func(prev Snapshot) Snapshot {
		if err != nil {
			prev.Connected = false
			return prev
		}
		rows = Reconcile(videos, statuses, c.reconcile)
		return Snapshot{
			Rows:          rows,
			Connected:     health.OK,
			WatchingCount: health.Watching,
			CachedCount:   health.Cached,
			LastUpdate:    c.now(),
		}
	})
	if !published {
		metrics.RecordRefresh(metrics.OutcomeDiscarded, time.Since(start))
		c.logger.Debug("Refresh result discarded after teardown")
		return seq, ErrClosed
	}

	if err != nil {
		metrics.RecordRefresh(metrics.OutcomeFailed, time.Since(start))
		c.logger.WithError(err).Warn("Refresh failed")
		c.notify(LevelError, "更新失敗: "+errors.Message(err))
		return seq, err
	}

	metrics.RecordRefresh(metrics.OutcomeOK, time.Since(start))
	c.logger.WithFields(map[string]interface{}{
		"rows":      len(rows),
		"connected": health.OK,
	}).Debug("Refresh completed")
	return seq, nil
}

// publish swaps in build(current) unless the controller was torn down since
// the cycle with generation gen began.
func (c *Controller) publish(gen uint64, build func(prev Snapshot) Snapshot) bool {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	if c.closed.Load() || c.gen.Load() != gen {
		return false
	}
	next := build(*c.snapshot.Load())
	c.replace(&next)
	return true
}

func (c *Controller) replace(s *Snapshot) {
	c.snapshot.Store(s)
	for _, fn := range c.listeners {
		fn(*s)
	}
}

func (c *Controller) authorize() error {
	if c.session != nil && !c.session.IsAuthenticated() {
		return errors.NewUnauthorizedError("session is not authenticated")
	}
	return nil
}

func (c *Controller) notify(level Level, msg string) {
	c.notifier.Notify(Notification{Level: level, Message: msg, At: c.now()})
}

func normalizeConfig(cfg ViewConfig) ViewConfig {
	if cfg.IntervalSeconds < 0 {
		cfg.IntervalSeconds = 0
	}
	if cfg.Filter == "" {
		cfg.Filter = FilterAll
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PageIndex < 1 {
		cfg.PageIndex = 1
	}
	return cfg
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
