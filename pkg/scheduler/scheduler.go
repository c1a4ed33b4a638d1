package scheduler

import (
	"context"
	"sync"
	"time"

	"birdwatcher/internal/crawlqueue"
	"birdwatcher/pkg/logger"
	"birdwatcher/pkg/ratelimit"
	"birdwatcher/pkg/store"
)

// Submission is one planned crawl within a cycle: which account, and how long
// after cycle start it is handed to the worker pool.
type Submission struct {
	Username string
	Offset   time.Duration
}

// BuildSchedule computes the staggered submission plan for one cycle:
// account k runs k cooldowns after cycle start, so submissions land exactly
// when the gate is expected to free up.
func BuildSchedule(usernames []string, cooldown time.Duration) []Submission {
	schedule := make([]Submission, 0, len(usernames))
	for k, username := range usernames {
		schedule = append(schedule, Submission{
			Username: username,
			Offset:   time.Duration(k) * cooldown,
		})
	}
	return schedule
}

// Scheduler decides when each account's crawl runs. A periodic timer starts a
// cycle over all subscribed accounts; within a cycle, submissions are
// staggered one cooldown apart and executed by a single-worker pool behind
// the cooldown gate, so at most one crawl is ever in flight.
type Scheduler struct {
	store         store.Store
	pool          *crawlqueue.WorkerPool
	clock         ratelimit.Clock
	cycleInterval time.Duration
	cooldown      time.Duration
	maxItems      int
	logger        logger.Logger

	mu          sync.Mutex
	cancelCycle chan struct{}
}

// Options configures a Scheduler
type Options struct {
	CycleInterval time.Duration
	Cooldown      time.Duration
	MaxItems      int
	Clock         ratelimit.Clock
}

// New creates a crawl scheduler
func New(st store.Store, pool *crawlqueue.WorkerPool, opts Options, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.GetLogger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = ratelimit.SystemClock()
	}
	return &Scheduler{
		store:         st,
		pool:          pool,
		clock:         clock,
		cycleInterval: opts.CycleInterval,
		cooldown:      opts.Cooldown,
		maxItems:      opts.MaxItems,
		logger:        log,
	}
}

// Run starts the worker pool and drives cycles until the context is
// cancelled. The first cycle starts immediately; subsequent cycles start on
// the configured interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.pool.Start()

	go s.consumeResults()

	s.StartCycle(ctx)

	ticker := time.NewTicker(s.cycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if s.cancelCycle != nil {
				close(s.cancelCycle)
				s.cancelCycle = nil
			}
			s.mu.Unlock()
			s.pool.Stop()
			return
		case <-ticker.C:
			s.StartCycle(ctx)
		}
	}
}

// StartCycle fetches the current account list and launches the staggered
// submission plan for it. Submissions still pending from the previous cycle
// are cancelled so backlog cannot grow without bound.
func (s *Scheduler) StartCycle(ctx context.Context) {
	accounts, err := s.store.ListAccounts()
	if err != nil {
		s.logger.WithError(err).Error("failed to list accounts for cycle")
		return
	}
	if len(accounts) == 0 {
		s.logger.Warn("no subscribed accounts, skipping cycle")
		return
	}

	usernames := make([]string, 0, len(accounts))
	for _, account := range accounts {
		usernames = append(usernames, account.Username)
	}
	schedule := BuildSchedule(usernames, s.cooldown)

	s.mu.Lock()
	if s.cancelCycle != nil {
		close(s.cancelCycle)
	}
	cancel := make(chan struct{})
	s.cancelCycle = cancel
	s.mu.Unlock()

	s.logger.InfoWithFields("starting crawl cycle", map[string]interface{}{
		"accounts": len(schedule),
		"cooldown": s.cooldown,
	})

	go s.runCycle(ctx, schedule, cancel)
}

// Trigger submits a single account crawl outside the cycle plan. It returns
// immediately; the crawl outcome surfaces only through logs.
func (s *Scheduler) Trigger(username string) {
	go func() {
		if err := s.pool.Submit(crawlqueue.CrawlJob{Username: username, MaxItems: s.maxItems}); err != nil {
			s.logger.WithError(err).WithField("username", username).Error("failed to submit manual crawl")
		}
	}()
}

// runCycle walks the submission plan, sleeping until each entry's offset and
// stopping early if the cycle is superseded or the scheduler shuts down
func (s *Scheduler) runCycle(ctx context.Context, schedule []Submission, cancel <-chan struct{}) {
	start := s.clock.Now()

	for _, sub := range schedule {
		// Cancellation wins over a due submission
		select {
		case <-cancel:
			s.logger.Debug("cycle superseded, dropping pending submissions")
			return
		default:
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		if wait := sub.Offset - s.clock.Now().Sub(start); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-cancel:
				s.logger.Debug("cycle superseded, dropping pending submissions")
				return
			case <-s.clock.After(wait):
			}
		}

		if err := s.pool.Submit(crawlqueue.CrawlJob{Username: sub.Username, MaxItems: s.maxItems}); err != nil {
			s.logger.WithError(err).WithField("username", sub.Username).Error("failed to submit scheduled crawl")
			return
		}
	}
}

// consumeResults logs crawl outcomes with account context. Failures are
// reported and forgotten: they do not affect other accounts, do not cancel
// the cycle, and do not bypass the cooldown.
func (s *Scheduler) consumeResults() {
	for result := range s.pool.Results() {
		if result.Err != nil {
			s.logger.ErrorWithFields("crawl failed", map[string]interface{}{
				"username": result.Job.Username,
				"error":    result.Err.Error(),
				"duration": result.Duration,
			})
			continue
		}
		s.logger.InfoWithFields("crawl finished", map[string]interface{}{
			"username":  result.Job.Username,
			"new_posts": result.NewPosts,
			"duration":  result.Duration,
		})
	}
}
