package fairness

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/scootdev/fairshare/async"
	"github.com/scootdev/fairshare/common/stats"
	"github.com/scootdev/fairshare/config/fairnessconfig"
	"github.com/scootdev/fairshare/scheduler/domain"
)

// PolicyServer is the subset of policy.Server the controller talks to. It
// never mutates registry/queue/cores directly — every change goes through
// ApplyPriorityRevision, per spec.md §5.
type PolicyServer interface {
	SnapshotRegistry() []*domain.Job
	ApplyPriorityRevision(revisions []domain.Revision)
	TotalCores() int
	TopologyUpdates() <-chan int
}

// ConfigSource resolves the live fairness config at the top of every
// tick, so alpha (and, via SIGHUP reload, TickInterval/StatsTimeout) can
// change without restarting the controller.
type ConfigSource func() fairnessconfig.Config

// Controller is the fairness controller: a single periodic task that
// polls jobs, computes a new priority batch, and writes it back to the
// policy server.
type Controller struct {
	server PolicyServer
	config ConfigSource
	stat   stats.StatsReceiver

	mu         sync.Mutex
	totalCores int

	runner async.Runner

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewController wires a controller to a policy server and a config
// source. The initial total core count is read once at construction; the
// controller keeps it current afterwards via server.TopologyUpdates().
func NewController(server PolicyServer, config ConfigSource, stat stats.StatsReceiver) *Controller {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &Controller{
		server:     server,
		config:     config,
		stat:       stat,
		totalCores: server.TotalCores(),
		runner:     async.NewRunner(),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start runs the controller's loop on a new goroutine until Stop is
// called. The core spec doesn't mandate cancellation, but real daemons
// need a clean shutdown path, so the implementation adds one.
func (c *Controller) Start() {
	go c.loop()
}

// Stop signals the loop to exit and blocks until it has.
func (c *Controller) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *Controller) loop() {
	defer close(c.doneCh)

	cfg := c.config()
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case total := <-c.server.TopologyUpdates():
			c.mu.Lock()
			c.totalCores = total
			c.mu.Unlock()
		case <-ticker.C:
			c.runner.ProcessMessages()
			latestCfg := c.config()
			if latestCfg.TickInterval != cfg.TickInterval {
				cfg = latestCfg
				ticker.Stop()
				ticker = time.NewTicker(cfg.TickInterval)
			}
			c.tick(latestCfg)
		}
	}
}

// tick runs one fairness revision, per spec.md §4.2's per-tick algorithm.
// A zero core count skips the tick entirely; a snapshot failure (none is
// possible with the in-process PolicyServer, but a remote one could fail)
// would abort just this tick, leaving the loop to retry next interval.
func (c *Controller) tick(cfg fairnessconfig.Config) {
	defer c.stat.Latency("fairness/tick_latency_ms").Time().Stop()

	c.mu.Lock()
	totalCores := c.totalCores
	c.mu.Unlock()

	if totalCores <= 0 {
		return
	}

	jobs := c.server.SnapshotRegistry()
	samples, unresponsive := c.pollAll(jobs, cfg.StatsTimeout)

	c.stat.Gauge("fairness/responsive_jobs").Update(int64(len(samples)))
	c.stat.Gauge("fairness/unresponsive_jobs").Update(int64(unresponsive))

	revisions := revise(samples, float64(totalCores), cfg.Alpha)
	if len(revisions) == 0 {
		return
	}

	red := computeRedistribution(samples, float64(totalCores))
	c.stat.Gauge("fairness/donors").Update(int64(red.Donors))
	c.stat.Gauge("fairness/needy").Update(int64(red.Needy))

	// Submitting the batch is a single call on the policy server; the
	// async.Runner exists so a future out-of-process server (a real RPC
	// write-back) wouldn't block this goroutine past the batch write,
	// per spec.md §5's "never blocks ... longer than the batch write of
	// one revision".
	c.runner.RunAsync(func() error {
		c.server.ApplyPriorityRevision(revisions)
		return nil
	}, func(err error) {
		if err != nil {
			log.WithError(err).Error("fairness: revision submission failed")
		}
	})

	log.WithFields(log.Fields{
		"responsive":   len(samples),
		"unresponsive": unresponsive,
		"donors":       red.Donors,
		"needy":        red.Needy,
		"total_cores":  totalCores,
	}).Info("fairness tick complete")
}

// pollAll fans out a bounded get_stats call to every job's handle
// concurrently. A job that errors, times out, or panics is dropped from
// the result and counted as unresponsive; it simply retains its previous
// priority until a later tick's successful poll.
func (c *Controller) pollAll(jobs []*domain.Job, deadline time.Duration) ([]sample, int) {
	var mu sync.Mutex
	samples := make([]sample, 0, len(jobs))
	unresponsive := 0

	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	g, _ := errgroup.WithContext(ctx)
	for _, j := range jobs {
		job := j
		g.Go(func() error {
			st, err := pollOne(job, deadline)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				unresponsive++
				return nil
			}
			weight := job.Weight
			if weight <= 0 {
				weight = 1.0
			}
			samples = append(samples, sample{
				Id:          job.Id,
				Weight:      weight,
				OldPriority: job.Priority,
				OldCpuTime:  job.CpuTime,
				Pending:     st.Pending,
				Running:     st.Running,
			})
			return nil
		})
	}
	_ = g.Wait() // every per-job error is already swallowed above

	return samples, unresponsive
}

// pollOne enforces the 100ms (or configured) deadline itself rather than
// trusting the handle to: the call runs on its own goroutine and pollOne
// returns as soon as either it answers or the deadline elapses, whichever
// comes first. It also recovers from a panicking handle so one bad job
// can never take down the controller's tick, matching spec.md §4.2's
// "times out, or crashes in response" failure mode.
func pollOne(job *domain.Job, deadline time.Duration) (domain.Stats, error) {
	resultCh := make(chan pollResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- pollResult{err: errors.Errorf("job %v handle panicked during get_stats: %v", job.Id, r)}
			}
		}()
		st, err := job.Handle.GetStats(deadline)
		if err != nil {
			err = errors.Wrapf(err, "job %v get_stats failed", job.Id)
		}
		resultCh <- pollResult{stats: st, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.stats, r.err
	case <-time.After(deadline):
		return domain.Stats{}, errors.Errorf("job %v exceeded its %v stats deadline", job.Id, deadline)
	}
}

type pollResult struct {
	stats domain.Stats
	err   error
}
