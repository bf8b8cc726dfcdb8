// Package policy implements the fair-share scheduling core's policy
// server: the authoritative job registry and priority queue used to
// answer next_job in the cluster scheduler's hot path.
//
// The server serializes every mutation of {registry, queue, total cores}
// behind a single mutex, per the "no locks exposed / implementations using
// shared memory must enforce the same serialization" contract in the
// core spec. Callers only ever see the exported methods; the mutex itself
// is never part of the public surface.
package policy

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/scootdev/fairshare/cloud/cluster"
	"github.com/scootdev/fairshare/common/stats"
	"github.com/scootdev/fairshare/scheduler/domain"
)

// removedIdsCacheSize bounds the LRU of recently-departed job ids the
// server keeps around so a late revision for an already-gone job can be
// counted as a recognized stale write-back rather than a silent no-op.
const removedIdsCacheSize = 4096

// Result is the outcome of a next_job call: either NoJobs, or Selected
// with Id set to the chosen job.
type Result struct {
	NoJobs   bool
	Selected domain.JobId
}

// Server owns the job registry, priority queue, and total core count. Its
// methods are the entire public surface of the policy server; every
// mutation is serialized under mu so concurrent callers observe the
// server as a single sequential actor, matching §5 of the core spec.
type Server struct {
	mu sync.Mutex

	registry   *registry
	queue      *queue
	totalCores int

	removedIds *lru.Cache

	topologyCh chan int // notifies the fairness controller of total core changes

	stat stats.StatsReceiver
}

// NewServer constructs an empty policy server: no jobs, zero cores.
func NewServer(stat stats.StatsReceiver) *Server {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	cache, err := lru.New(removedIdsCacheSize)
	if err != nil {
		// lru.New only fails for a non-positive size, which is a
		// programmer error in the constant above.
		panic(errors.Wrap(err, "policy: building removed-ids cache"))
	}
	return &Server{
		registry:   newRegistry(),
		queue:      newQueue(),
		removedIds: cache,
		topologyCh: make(chan int, 1),
		stat:       stat,
	}
}

// TopologyUpdates returns the channel the fairness controller should read
// total-core notifications from. Buffered with size 1 and always drained
// to the latest value, so a slow controller never blocks update_topology.
func (s *Server) TopologyUpdates() <-chan int {
	return s.topologyCh
}

// NextJob is the critical-path query: traverse the queue in ascending
// priority order and return the first job whose id is not excluded. The
// registry being empty, or every candidate being excluded, both report
// NoJobs. A selected job's bias is advanced before it is returned.
func (s *Server) NextJob(exclude map[domain.JobId]struct{}) Result {
	defer s.stat.Latency("policy/next_job_latency_us").Precision(time.Microsecond).Time().Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.totalCores <= 0 {
		s.stat.Counter("policy/next_job_no_jobs").Inc(1)
		return Result{NoJobs: true}
	}

	if s.registry.len() == 0 {
		s.stat.Counter("policy/next_job_no_jobs").Inc(1)
		return Result{NoJobs: true}
	}

	for _, id := range s.queue.ids() {
		if _, skip := exclude[id]; skip {
			continue
		}
		s.applyBiasStep(id)
		s.stat.Counter("policy/next_job_selected").Inc(1)
		return Result{Selected: id}
	}

	s.stat.Counter("policy/next_job_no_jobs").Inc(1)
	return Result{NoJobs: true}
}

// applyBiasStep implements §4.1's bias step for the job chosen by
// NextJob. Δ = 1/total_cores; bias grows by Δ; the queue entry is moved to
// the job's new projected priority. Called with mu held.
func (s *Server) applyBiasStep(id domain.JobId) {
	job, ok := s.registry.get(id)
	if !ok {
		return
	}
	if s.totalCores <= 0 {
		// A zero-core cluster reports NoJobs before reaching here in
		// every caller path; guard anyway so a bias step never
		// divides by zero.
		return
	}
	delta := 1.0 / float64(s.totalCores)
	job.Bias += delta
	s.queue.reinsert(id, job.Projected())
}

// NewJob registers a new job with initial priority -1/max(1, |registry|)
// (computed before insertion) and zero bias/cputime. terminated is the
// job's lifecycle monitor: when it is closed, the job is removed from both
// registry and queue. Duplicate job ids are a programmer error.
func (s *Server) NewJob(id domain.JobId, name string, handle domain.Handle, terminated <-chan struct{}) error {
	s.mu.Lock()
	if _, exists := s.registry.get(id); exists {
		s.mu.Unlock()
		return errors.Errorf("policy: duplicate job id %q", id)
	}

	initial := -1.0 / float64(maxInt(1, s.registry.len()))
	job := &domain.Job{
		Id:       id,
		Name:     name,
		Priority: initial,
		Bias:     0,
		CpuTime:  0,
		Weight:   1.0,
		Handle:   handle,
	}
	s.registry.put(job)
	s.queue.insert(id, job.Projected())
	s.stat.Gauge("policy/registry_size").Update(int64(s.registry.len()))
	s.mu.Unlock()

	log.WithFields(log.Fields{"job": id, "name": name, "priority": initial}).Info("job arrived")

	if terminated != nil {
		go func() {
			<-terminated
			s.removeJob(id)
		}()
	}
	return nil
}

// removeJob drops a job from registry and queue. Idempotent: removing an
// already-gone job is a no-op, matching the monitor-fired removal contract.
func (s *Server) removeJob(id domain.JobId) {
	s.mu.Lock()
	_, existed := s.registry.get(id)
	s.registry.remove(id)
	s.queue.remove(id)
	if existed {
		s.removedIds.Add(id, time.Now())
		s.stat.Gauge("policy/registry_size").Update(int64(s.registry.len()))
	}
	s.mu.Unlock()

	if existed {
		log.WithFields(log.Fields{"job": id}).Info("job departed")
	}
}

// UpdateTopology recomputes total_cores from a cluster topology report and
// notifies the fairness controller. A report with no nodes is acceptable
// and yields total_cores == 0.
func (s *Server) UpdateTopology(topo cluster.Topology) {
	total := topo.TotalCores()

	s.mu.Lock()
	s.totalCores = total
	s.mu.Unlock()

	log.WithFields(log.Fields{"total_cores": total, "nodes": len(topo.Nodes)}).Info("topology updated")
	s.stat.Gauge("fairness/total_cores").Update(int64(total))

	select {
	case s.topologyCh <- total:
	default:
		// Drain the stale value and replace it so the controller
		// always observes the latest topology, never a backlog.
		select {
		case <-s.topologyCh:
		default:
		}
		s.topologyCh <- total
	}
}

// ApplyPriorityRevision applies a controller-computed batch of per-job
// priority/bias/cputime updates. Entries naming a job that no longer
// exists are silently dropped (it may have terminated since the
// controller's snapshot); after the partial update, the whole queue is
// rebuilt from the surviving registry so ordering stays consistent.
func (s *Server) ApplyPriorityRevision(revisions []domain.Revision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for _, rev := range revisions {
		job, ok := s.registry.get(rev.Id)
		if !ok {
			if s.removedIds.Contains(rev.Id) {
				s.stat.Counter("policy/stale_revision_dropped").Inc(1)
			}
			continue
		}
		job.Priority = rev.Priority
		job.Bias = rev.Bias
		job.CpuTime = rev.CpuTime
		applied++
	}

	entries := make([]entry, 0, s.registry.len())
	for id := range s.registry.jobs {
		job, _ := s.registry.get(id)
		entries = append(entries, entry{priority: job.Projected(), id: id})
	}
	s.queue.rebuild(entries)

	log.WithFields(log.Fields{"submitted": len(revisions), "applied": applied}).Info("priority revision applied")
}

// SnapshotRegistry returns a coherent copy of every live job record, for
// the fairness controller's per-tick read. Safe to call concurrently with
// any other server method.
func (s *Server) SnapshotRegistry() []*domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.snapshot()
}

// TotalCores returns the last core count reported by update_topology.
func (s *Server) TotalCores() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalCores
}

// RegistrySize returns the number of live jobs.
func (s *Server) RegistrySize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.len()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
