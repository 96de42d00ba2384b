package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"botfleet/internal/metrics"
	"botfleet/internal/models"
	storesvc "botfleet/internal/modules/store/service"
	"botfleet/pkg/logger"
)

// timeNow is swapped by tests.
var timeNow = time.Now

// Scheduler owns the timeframe→bots registry and runs one trigger per
// distinct timeframe. Register/Deregister serialize on the mutex; the
// per-bot lock, not registry membership, governs run exclusivity.
type Scheduler struct {
	pipe *Pipeline
	bots storesvc.Bots

	baseCtx context.Context
	sem     chan struct{} // caps concurrently running pipelines
	wg      sync.WaitGroup

	mu      sync.Mutex
	buckets map[models.Timeframe]*bucket
	onTick  func(at time.Time)
}

type bucket struct {
	cancel context.CancelFunc
	bots   map[int64]struct{}
}

func NewScheduler(ctx context.Context, pipe *Pipeline, bots storesvc.Bots, workers int) *Scheduler {
	if workers <= 0 {
		workers = 8
	}
	s := &Scheduler{
		pipe:    pipe,
		bots:    bots,
		baseCtx: ctx,
		sem:     make(chan struct{}, workers),
		buckets: make(map[models.Timeframe]*bucket),
	}
	pipe.onBreach = func(bot *models.Bot) {
		s.Deregister(bot.ID, bot.Timeframe)
	}
	return s
}

// SetTickObserver installs a callback fired on every dispatched tick,
// used by the health surface.
func (s *Scheduler) SetTickObserver(fn func(at time.Time)) {
	s.mu.Lock()
	s.onTick = fn
	s.mu.Unlock()
}

// Register adds the bot to its timeframe bucket, creating the bucket's
// trigger on first use. Idempotent.
func (s *Scheduler) Register(botID int64, tf models.Timeframe) error {
	if !tf.Valid() {
		return errors.Errorf("unknown timeframe %q", tf)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[tf]
	if !ok {
		loopCtx, cancel := context.WithCancel(s.baseCtx)
		b = &bucket{cancel: cancel, bots: make(map[int64]struct{})}
		s.buckets[tf] = b
		go s.loop(loopCtx, tf)
		logger.Info("[SCHED] trigger started for %s", tf)
	}
	b.bots[botID] = struct{}{}
	metrics.ActiveBots.WithLabelValues(string(tf)).Set(float64(len(b.bots)))
	return nil
}

// Deregister removes the bot. The last bot leaving a bucket stops and
// discards its trigger, so idle timers don't accumulate in processes
// that churn bots.
func (s *Scheduler) Deregister(botID int64, tf models.Timeframe) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[tf]
	if !ok {
		return
	}
	delete(b.bots, botID)
	metrics.ActiveBots.WithLabelValues(string(tf)).Set(float64(len(b.bots)))
	if len(b.bots) == 0 {
		b.cancel()
		delete(s.buckets, tf)
		logger.Info("[SCHED] trigger stopped for %s (bucket empty)", tf)
	}
}

// Initialize loads the active bots and registers each. The registry is
// in-memory, so this runs on every process start.
func (s *Scheduler) Initialize(ctx context.Context) error {
	bots, err := s.bots.GetActive(ctx)
	if err != nil {
		return errors.Wrap(err, "load active bots")
	}
	for _, b := range bots {
		if err := s.Register(b.ID, b.Timeframe); err != nil {
			logger.Error("[SCHED] bot=%d register failed: %v", b.ID, err)
			continue
		}
	}
	logger.Info("[SCHED] initialized with %d active bots across %d timeframes", len(bots), s.bucketCount())
	return nil
}

// Shutdown stops all triggers and waits for in-flight pipelines.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for tf, b := range s.buckets {
		b.cancel()
		delete(s.buckets, tf)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// TimeframeActive reports whether a trigger currently exists for tf.
func (s *Scheduler) TimeframeActive(tf models.Timeframe) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.buckets[tf]
	return ok
}

// Registered returns how many bots sit in tf's bucket.
func (s *Scheduler) Registered(tf models.Timeframe) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[tf]
	if !ok {
		return 0
	}
	return len(b.bots)
}

func (s *Scheduler) bucketCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// nextTick aligns firing to wall-clock boundaries of the period
// (a 4h bot ticks at 00:00, 04:00, ...).
func nextTick(now time.Time, period time.Duration) time.Time {
	return now.Truncate(period).Add(period)
}

// loop fires once per period boundary until the bucket is discarded.
// The tick itself never blocks on broker I/O: it dispatches and waits
// for the next boundary.
func (s *Scheduler) loop(ctx context.Context, tf models.Timeframe) {
	period := tf.Period()
	for {
		timer := time.NewTimer(time.Until(nextTick(timeNow(), period)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fanOut(ctx, tf)
		}
	}
}

// fanOut dispatches one pipeline run per registered bot. Bots run
// concurrently under the worker cap; a panic or failure in one never
// reaches its siblings.
func (s *Scheduler) fanOut(ctx context.Context, tf models.Timeframe) {
	s.mu.Lock()
	b, ok := s.buckets[tf]
	if !ok {
		s.mu.Unlock()
		return
	}
	ids := make([]int64, 0, len(b.bots))
	for id := range b.bots {
		ids = append(ids, id)
	}
	onTick := s.onTick
	s.mu.Unlock()

	if onTick != nil {
		onTick(timeNow())
	}

	logger.Info("[SCHED] tick %s: %d bots", tf, len(ids))
	for _, id := range ids {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		s.wg.Add(1)
		go func(botID int64) {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("[SCHED] bot=%d pipeline panic: %v", botID, r)
				}
			}()
			s.pipe.Run(ctx, botID, tf)
		}(id)
	}
}
