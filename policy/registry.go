package policy

import (
	"github.com/scootdev/fairshare/scheduler/domain"
)

// registry is the policy server's map from job id to job record. It is the
// authority on every field except queue ordering, which the queue derives
// from it.
type registry struct {
	jobs map[domain.JobId]*domain.Job
}

func newRegistry() *registry {
	return &registry{jobs: make(map[domain.JobId]*domain.Job)}
}

func (r *registry) get(id domain.JobId) (*domain.Job, bool) {
	j, ok := r.jobs[id]
	return j, ok
}

func (r *registry) put(j *domain.Job) {
	r.jobs[j.Id] = j
}

func (r *registry) remove(id domain.JobId) {
	delete(r.jobs, id)
}

func (r *registry) len() int {
	return len(r.jobs)
}

// snapshot returns a coherent, independently-mutable copy of every live job
// record, for handing out to the fairness controller via snapshot_registry.
func (r *registry) snapshot() []*domain.Job {
	out := make([]*domain.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.Clone())
	}
	return out
}
