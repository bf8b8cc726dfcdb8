package policy

import (
	"sort"

	"github.com/scootdev/fairshare/scheduler/domain"
)

// entry is one (priority, job id) pair held by the queue. The queue's sort
// order is the only thing that matters for next_job; the registry remains
// authoritative on the job record itself.
type entry struct {
	priority float64
	id       domain.JobId
}

// queue is an ascending-sorted sequence of (priority, job id) pairs, one per
// live job. It is a derived index over the registry: every mutation here is
// driven by a corresponding registry change made by the caller (the policy
// server), never the other way around.
//
// The source keeps this as a plain sorted list since the expected number of
// live jobs is small; we do the same here with a slice and sort.Search for
// the insertion point, which places a new entry ahead of any existing
// entries of equal priority (newest first among ties). Per spec §4.1
// clients must not rely on a specific tiebreak.
type queue struct {
	entries []entry
}

func newQueue() *queue {
	return &queue{}
}

// insert adds a (priority, id) pair, keeping entries sorted ascending by
// priority. It does not check for an existing entry with the same id; the
// caller is expected to remove before re-inserting when re-prioritizing.
func (q *queue) insert(id domain.JobId, priority float64) {
	i := sort.Search(len(q.entries), func(i int) bool {
		return q.entries[i].priority >= priority
	})
	q.entries = append(q.entries, entry{})
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = entry{priority: priority, id: id}
}

// remove deletes the first entry found for id, if any.
func (q *queue) remove(id domain.JobId) {
	for i, e := range q.entries {
		if e.id == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// reinsert moves id to its new sorted position for a changed priority; this
// is what the bias step and the controller's revision rebuild both do.
func (q *queue) reinsert(id domain.JobId, priority float64) {
	q.remove(id)
	q.insert(id, priority)
}

// rebuild replaces the queue's contents wholesale, sorting ascending. Used
// by apply_priority_revision, which must reconstruct the whole ordering
// after a partial registry update.
func (q *queue) rebuild(entries []entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	q.entries = entries
}

// ids returns the live job ids in ascending priority order.
func (q *queue) ids() []domain.JobId {
	out := make([]domain.JobId, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.id
	}
	return out
}

func (q *queue) len() int {
	return len(q.entries)
}
