package fairness

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/scootdev/fairshare/config/fairnessconfig"
	"github.com/scootdev/fairshare/scheduler/domain"
)

// fakeHandle is a synthetic job handle for controller tests: it reports a
// fixed (pending, running) pair, or fails/hangs if configured to.
type fakeHandle struct {
	pending, running int
	fail             bool
	hang             bool
}

func (h *fakeHandle) GetStats(timeout time.Duration) (domain.Stats, error) {
	if h.fail {
		return domain.Stats{}, errors.New("boom")
	}
	if h.hang {
		time.Sleep(timeout * 10)
		return domain.Stats{}, errors.New("timed out")
	}
	return domain.Stats{Pending: h.pending, Running: h.running}, nil
}

// fakeServer implements PolicyServer entirely in memory for controller
// tests, without pulling in the policy package (keeps this test package
// focused on the controller's orchestration, not the server's storage).
type fakeServer struct {
	mu         sync.Mutex
	jobs       map[domain.JobId]*domain.Job
	totalCores int
	topoCh     chan int
	applied    [][]domain.Revision
}

func newFakeServer(totalCores int) *fakeServer {
	return &fakeServer{
		jobs:       map[domain.JobId]*domain.Job{},
		totalCores: totalCores,
		topoCh:     make(chan int, 1),
	}
}

func (f *fakeServer) addJob(j *domain.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[j.Id] = j
}

func (f *fakeServer) SnapshotRegistry() []*domain.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j.Clone())
	}
	return out
}

func (f *fakeServer) ApplyPriorityRevision(revisions []domain.Revision) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, revisions)
	for _, r := range revisions {
		if j, ok := f.jobs[r.Id]; ok {
			j.Priority = r.Priority
			j.Bias = r.Bias
			j.CpuTime = r.CpuTime
		}
	}
}

func (f *fakeServer) TotalCores() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totalCores
}

func (f *fakeServer) TopologyUpdates() <-chan int {
	return f.topoCh
}

func waitForRevision(t *testing.T, f *fakeServer) []domain.Revision {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		f.mu.Lock()
		n := len(f.applied)
		f.mu.Unlock()
		if n > 0 {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.applied[len(f.applied)-1]
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a revision to be applied")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestControllerTickAppliesRevisionForResponsiveJob(t *testing.T) {
	server := newFakeServer(1)
	server.addJob(&domain.Job{Id: "J1", Priority: -1, Weight: 1, Handle: &fakeHandle{pending: 5, running: 1}})

	cfg := fairnessconfig.Config{Alpha: 0.5, TickInterval: 5 * time.Millisecond, StatsTimeout: 20 * time.Millisecond}
	ctrl := NewController(server, func() fairnessconfig.Config { return cfg }, nil)
	ctrl.Start()
	defer ctrl.Stop()

	rev := waitForRevision(t, server)
	if len(rev) != 1 {
		t.Fatalf("got %d revisions, want 1", len(rev))
	}
	if !approxEqual(rev[0].Priority, -0.5) {
		t.Errorf("priority = %v, want -0.5", rev[0].Priority)
	}
}

func TestControllerSkipsTickWhenZeroCores(t *testing.T) {
	server := newFakeServer(0)
	server.addJob(&domain.Job{Id: "J1", Priority: -1, Weight: 1, Handle: &fakeHandle{pending: 5, running: 1}})

	cfg := fairnessconfig.Config{Alpha: 0.5, TickInterval: 5 * time.Millisecond, StatsTimeout: 20 * time.Millisecond}
	ctrl := NewController(server, func() fairnessconfig.Config { return cfg }, nil)
	ctrl.Start()
	defer ctrl.Stop()

	time.Sleep(30 * time.Millisecond)
	server.mu.Lock()
	applied := len(server.applied)
	server.mu.Unlock()
	if applied != 0 {
		t.Errorf("applied %d revisions with zero cores, want 0", applied)
	}
}

func TestControllerDropsUnresponsiveJobAndKeepsOthers(t *testing.T) {
	server := newFakeServer(2)
	server.addJob(&domain.Job{Id: "OK", Priority: -1, Weight: 1, Handle: &fakeHandle{pending: 5, running: 2}})
	server.addJob(&domain.Job{Id: "SLOW", Priority: -0.5, Weight: 1, Handle: &fakeHandle{hang: true}})

	cfg := fairnessconfig.Config{Alpha: 1.0, TickInterval: 5 * time.Millisecond, StatsTimeout: 10 * time.Millisecond}
	ctrl := NewController(server, func() fairnessconfig.Config { return cfg }, nil)
	ctrl.Start()
	defer ctrl.Stop()

	rev := waitForRevision(t, server)
	ids := map[domain.JobId]bool{}
	for _, r := range rev {
		ids[r.Id] = true
	}
	if !ids["OK"] {
		t.Errorf("expected OK job in revision batch, got %v", rev)
	}
	if ids["SLOW"] {
		t.Errorf("expected SLOW (unresponsive) job omitted from revision batch, got %v", rev)
	}
}
