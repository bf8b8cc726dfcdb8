package policy

import (
	"math"
	"testing"
	"time"

	"github.com/scootdev/fairshare/cloud/cluster"
	"github.com/scootdev/fairshare/scheduler/domain"
)

// fakeHandle is a minimal domain.Handle for server tests; the policy
// server never calls GetStats itself, so this only needs to satisfy the
// interface.
type fakeHandle struct{}

func (fakeHandle) GetStats(timeout time.Duration) (domain.Stats, error) {
	return domain.Stats{}, nil
}

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func setTotalCores(s *Server, n int) {
	s.UpdateTopology(cluster.Topology{Nodes: []cluster.Node{{Id: "n1", Cores: n}}})
}

func TestNextJobOnEmptyRegistryReturnsNoJobs(t *testing.T) {
	s := NewServer(nil)
	res := s.NextJob(nil)
	if !res.NoJobs {
		t.Errorf("NextJob on empty registry = %+v, want NoJobs", res)
	}
}

func TestNewJobInitialPriorities(t *testing.T) {
	s := NewServer(nil)
	setTotalCores(s, 4)

	if err := s.NewJob("J1", "job1", fakeHandle{}, nil); err != nil {
		t.Fatal(err)
	}
	j1, _ := s.registry.get("J1")
	if !approxEqual(j1.Priority, -1) {
		t.Errorf("first job priority = %v, want -1", j1.Priority)
	}

	if err := s.NewJob("J2", "job2", fakeHandle{}, nil); err != nil {
		t.Fatal(err)
	}
	j2, _ := s.registry.get("J2")
	if !approxEqual(j2.Priority, -1) {
		t.Errorf("second job priority = %v, want -1", j2.Priority)
	}

	if err := s.NewJob("J3", "job3", fakeHandle{}, nil); err != nil {
		t.Fatal(err)
	}
	j3, _ := s.registry.get("J3")
	if !approxEqual(j3.Priority, -0.5) {
		t.Errorf("third job priority = %v, want -0.5", j3.Priority)
	}
}

func TestNewJobDuplicateIdIsAnError(t *testing.T) {
	s := NewServer(nil)
	_ = s.NewJob("J1", "a", fakeHandle{}, nil)
	if err := s.NewJob("J1", "b", fakeHandle{}, nil); err == nil {
		t.Error("expected an error registering a duplicate job id")
	}
}

// Scenario D from spec.md §8: every selection adds 1/total_cores to the
// selected job's bias, so J1 stays ahead of J2 after one selection and
// ties with J2 after two.
func TestNextJobBiasStep(t *testing.T) {
	s := NewServer(nil)
	setTotalCores(s, 4)
	s.registry.put(&domain.Job{Id: "J1", Priority: -1.0, Weight: 1, Handle: fakeHandle{}})
	s.registry.put(&domain.Job{Id: "J2", Priority: -0.5, Weight: 1, Handle: fakeHandle{}})
	s.queue.insert("J1", -1.0)
	s.queue.insert("J2", -0.5)

	res := s.NextJob(nil)
	if res.Selected != "J1" {
		t.Fatalf("first NextJob = %v, want J1", res.Selected)
	}
	j1, _ := s.registry.get("J1")
	if !approxEqual(j1.Bias, 0.25) {
		t.Errorf("J1 bias after one selection = %v, want 0.25", j1.Bias)
	}
	if !approxEqual(j1.Projected(), -0.75) {
		t.Errorf("J1 projected priority = %v, want -0.75", j1.Projected())
	}

	res = s.NextJob(nil)
	if res.Selected != "J1" {
		t.Fatalf("second NextJob = %v, want J1 (still smaller)", res.Selected)
	}
	j1, _ = s.registry.get("J1")
	if !approxEqual(j1.Bias, 0.5) {
		t.Errorf("J1 bias after two selections = %v, want 0.5", j1.Bias)
	}
	if !approxEqual(j1.Projected(), -0.5) {
		t.Errorf("J1 projected priority = %v, want -0.5 (tied with J2)", j1.Projected())
	}
}

// Scenario E: exclude set skips J1 without mutating it.
func TestNextJobExcludeSet(t *testing.T) {
	s := NewServer(nil)
	setTotalCores(s, 4)
	s.registry.put(&domain.Job{Id: "J1", Priority: -1.0, Weight: 1, Handle: fakeHandle{}})
	s.registry.put(&domain.Job{Id: "J2", Priority: -0.5, Weight: 1, Handle: fakeHandle{}})
	s.queue.insert("J1", -1.0)
	s.queue.insert("J2", -0.5)

	res := s.NextJob(map[domain.JobId]struct{}{"J1": {}})
	if res.Selected != "J2" {
		t.Fatalf("NextJob(exclude J1) = %v, want J2", res.Selected)
	}

	j1, _ := s.registry.get("J1")
	if j1.Bias != 0 || j1.Priority != -1.0 {
		t.Errorf("excluded job J1 was mutated: bias=%v priority=%v", j1.Bias, j1.Priority)
	}
	j2, _ := s.registry.get("J2")
	if !approxEqual(j2.Bias, 0.25) {
		t.Errorf("J2 bias = %v, want 0.25", j2.Bias)
	}
}

func TestNextJobNeverReturnsExcludedId(t *testing.T) {
	s := NewServer(nil)
	setTotalCores(s, 4)
	_ = s.NewJob("J1", "a", fakeHandle{}, nil)
	_ = s.NewJob("J2", "b", fakeHandle{}, nil)

	res := s.NextJob(map[domain.JobId]struct{}{"J1": {}, "J2": {}})
	if !res.NoJobs {
		t.Errorf("excluding every job should report NoJobs, got %+v", res)
	}
}

func TestMonitorFiredRemovalIsInvisibleToNextJob(t *testing.T) {
	s := NewServer(nil)
	setTotalCores(s, 2)
	terminated := make(chan struct{})
	_ = s.NewJob("J1", "a", fakeHandle{}, terminated)

	close(terminated)
	// give the monitor goroutine a chance to run
	for i := 0; i < 100 && s.RegistrySize() != 0; i++ {
		time.Sleep(time.Millisecond)
	}

	res := s.NextJob(nil)
	if !res.NoJobs {
		t.Errorf("terminated job still selectable: %+v", res)
	}
}

func TestApplyPriorityRevisionDropsUnknownJobs(t *testing.T) {
	s := NewServer(nil)
	setTotalCores(s, 2)
	_ = s.NewJob("J1", "a", fakeHandle{}, nil)

	// Should not panic or otherwise misbehave for a job that never existed.
	s.ApplyPriorityRevision([]domain.Revision{
		{Id: "J1", Priority: 5, Bias: 0, CpuTime: 3},
		{Id: "ghost", Priority: -99, Bias: 0, CpuTime: 1},
	})

	j1, _ := s.registry.get("J1")
	if j1.Priority != 5 || j1.CpuTime != 3 {
		t.Errorf("J1 = %+v, want priority=5 cputime=3", j1)
	}
	if s.RegistrySize() != 1 {
		t.Errorf("RegistrySize() = %d, want 1", s.RegistrySize())
	}
}

func TestApplyPriorityRevisionRebuildsQueueOrder(t *testing.T) {
	s := NewServer(nil)
	setTotalCores(s, 2)
	_ = s.NewJob("J1", "a", fakeHandle{}, nil)
	_ = s.NewJob("J2", "b", fakeHandle{}, nil)

	s.ApplyPriorityRevision([]domain.Revision{
		{Id: "J1", Priority: 10, Bias: 0, CpuTime: 0},
		{Id: "J2", Priority: -10, Bias: 0, CpuTime: 0},
	})

	res := s.NextJob(nil)
	if res.Selected != "J2" {
		t.Errorf("NextJob after revision = %v, want J2 (now most negative)", res.Selected)
	}
}

func TestUpdateTopologyWithNoNodesYieldsZeroCores(t *testing.T) {
	s := NewServer(nil)
	setTotalCores(s, 4)
	s.UpdateTopology(cluster.Topology{})
	if s.TotalCores() != 0 {
		t.Errorf("TotalCores() = %d, want 0", s.TotalCores())
	}

	_ = s.NewJob("J1", "a", fakeHandle{}, nil)
	res := s.NextJob(nil)
	if !res.NoJobs {
		t.Errorf("NextJob with zero cores = %+v, want NoJobs", res)
	}
}

func TestRegistryAndQueueStayInSyncAcrossLifecycle(t *testing.T) {
	s := NewServer(nil)
	setTotalCores(s, 3)
	terminated := make(chan struct{})
	_ = s.NewJob("J1", "a", fakeHandle{}, nil)
	_ = s.NewJob("J2", "b", fakeHandle{}, terminated)
	_ = s.NewJob("J3", "c", fakeHandle{}, nil)

	close(terminated)
	for i := 0; i < 100 && s.RegistrySize() != 2; i++ {
		time.Sleep(time.Millisecond)
	}

	s.mu.Lock()
	regIds := map[domain.JobId]bool{}
	for id := range s.registry.jobs {
		regIds[id] = true
	}
	queueIds := s.queue.ids()
	s.mu.Unlock()

	if len(queueIds) != len(regIds) {
		t.Fatalf("queue has %d entries, registry has %d", len(queueIds), len(regIds))
	}
	for _, id := range queueIds {
		if !regIds[id] {
			t.Errorf("queue entry %v absent from registry", id)
		}
	}
}
