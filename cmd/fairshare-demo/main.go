// Command fairshare-demo runs an in-process policy server and fairness
// controller against a synthetic cluster and a stream of synthetic jobs,
// the way schedulerDemo drives a scheduler against a DynamicLocalNodeCluster
// with generateClusterChurn and generateTasks. It serves the admin
// endpoints so fairsharectl can be pointed at it.
package main

import (
	"flag"
	"math/rand"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/scootdev/fairshare/cloud/cluster"
	"github.com/scootdev/fairshare/common/endpoints"
	"github.com/scootdev/fairshare/common/log/hooks"
	"github.com/scootdev/fairshare/common/stats"
	"github.com/scootdev/fairshare/fairness"
	"github.com/scootdev/fairshare/policy"
	"github.com/scootdev/fairshare/scheduler/domain"
)

// demoHandle is a synthetic domain.Handle whose pending/running task counts
// drift randomly over time, standing in for the real per-job RPC a
// production handle would make.
type demoHandle struct {
	pending *int32Box
	running *int32Box
}

func newDemoHandle() *demoHandle {
	return &demoHandle{pending: newInt32Box(1 + rand.Intn(8)), running: newInt32Box(0)}
}

func (h *demoHandle) GetStats(timeout time.Duration) (domain.Stats, error) {
	return domain.Stats{Pending: h.pending.get(), Running: h.running.get()}, nil
}

// churn randomly promotes pending work to running and occasionally adds new
// pending work, so the demo's job mix keeps changing between fairness ticks.
func (h *demoHandle) churn() {
	if h.pending.get() > 0 && rand.Intn(2) == 0 {
		h.pending.add(-1)
		h.running.add(1)
	}
	if rand.Intn(3) == 0 {
		h.pending.add(1)
	}
	if h.running.get() > 0 && rand.Intn(4) == 0 {
		h.running.add(-1)
	}
}

type int32Box struct{ v int }

func newInt32Box(v int) *int32Box  { return &int32Box{v: v} }
func (b *int32Box) get() int       { return b.v }
func (b *int32Box) add(delta int)  { b.v += delta }

func main() {
	log.AddHook(hooks.NewContextHook())

	logLevelFlag := flag.String("log_level", "info", "log everything at this level and above (error|info|debug)")
	configPath := flag.String("config", "", "path to a fairness JSON config file; re-read on SIGHUP")
	flag.Parse()

	level, err := log.ParseLevel(*logLevelFlag)
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(level)

	stat := stats.DefaultStatsReceiver()
	server := policy.NewServer(stat)
	server.UpdateTopology(cluster.Topology{Nodes: []cluster.Node{
		{Id: "node-0", Cores: 4},
		{Id: "node-1", Cores: 4},
	}})

	live, err := newLiveConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("fairshare-demo: loading fairness config")
	}
	controller := fairness.NewController(server, live.Get, stat)
	controller.Start()
	defer controller.Stop()

	admin := endpoints.NewServer(":9090", stat, server)
	go func() {
		if err := admin.Serve(); err != nil {
			log.WithError(err).Fatal("fairshare-demo: admin server exited")
		}
	}()

	log.Info("fairshare-demo: generating synthetic job arrivals; admin endpoints on :9090")
	generateJobArrivals(server)
}

// generateJobArrivals spawns a new synthetic job every second, forever,
// each with a handle that churns its own pending/running counts on a
// shorter tick, then terminates at a random lifetime.
func generateJobArrivals(server *policy.Server) {
	for {
		id := domain.JobId(uuid.New().String())
		handle := newDemoHandle()
		terminated := make(chan struct{})

		if err := server.NewJob(id, "demo-job", handle, terminated); err != nil {
			log.WithError(err).Error("fairshare-demo: failed to register job")
			continue
		}

		go runJobLifecycle(handle, terminated)

		time.Sleep(time.Second)
	}
}

func runJobLifecycle(handle *demoHandle, terminated chan struct{}) {
	lifetime := time.Duration(5+rand.Intn(20)) * time.Second
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	deadline := time.After(lifetime)
	for {
		select {
		case <-deadline:
			close(terminated)
			return
		case <-ticker.C:
			handle.churn()
		}
	}
}
