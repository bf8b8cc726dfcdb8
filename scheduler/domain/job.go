// Package domain holds the types shared between the policy server and the
// fairness controller: the job record, its external handle, and the
// priority-revision message the controller writes back through.
package domain

import "time"

// JobId uniquely identifies a live job. It is opaque to the core; callers
// mint it however they like (uuid, requestor-assigned name, etc).
type JobId string

// Stats is what a job's external handle reports back on a poll: how many
// tasks it still wants scheduled, and how many it currently has running.
type Stats struct {
	Pending int
	Running int
}

// Handle is the core's view of a job's external process or actor. The
// policy server never calls GetStats itself; only the fairness controller
// does, subject to its own bounded deadline.
type Handle interface {
	GetStats(timeout time.Duration) (Stats, error)
}

// Job is one registry entry. More negative Priority means higher
// scheduling preference. Bias is an intra-interval correction applied by
// next_job and zeroed by every controller revision. Weight scales a job's
// nominal share in the fairness controller's redistribution step; a
// weight of 1.0 reproduces the unweighted algorithm exactly.
type Job struct {
	Id       JobId
	Name     string
	Priority float64
	Bias     float64
	CpuTime  int64
	Weight   float64
	Handle   Handle
}

// Projected is the priority the queue should sort by: the base priority
// plus whatever bias has accumulated since the last controller revision.
func (j *Job) Projected() float64 {
	return j.Priority + j.Bias
}

// Revision is what the fairness controller submits to the policy server
// for one job at the end of a tick. Bias is always 0: the controller's
// fresh measurement supersedes any inter-tick bias correction.
type Revision struct {
	Id       JobId
	Priority float64
	Bias     float64
	CpuTime  int64
}

// Clone returns a shallow copy suitable for handing out of the registry
// across the snapshot boundary; Handle is shared (it is itself safe for
// concurrent use from the controller's point of view: a bounded call).
func (j *Job) Clone() *Job {
	c := *j
	return &c
}
