// Package endpoints serves the read-only introspection surface
// SPEC_FULL.md §2.4 calls for: /admin/metrics.json and /health. This is
// explicitly not the RPC front end spec.md scopes out — no scheduling
// message is accepted here, only observation of state the policy server
// already exposes via SnapshotRegistry and the stats receiver.
package endpoints

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/scootdev/fairshare/common/stats"
	"github.com/scootdev/fairshare/scheduler/domain"
)

// RegistrySnapshotter is the subset of the policy server's surface the
// introspection endpoint needs: a coherent, read-only view of live jobs.
type RegistrySnapshotter interface {
	SnapshotRegistry() []*domain.Job
	TotalCores() int
}

// Server serves the admin endpoints over plain net/http, matching the
// teacher's common/endpoints: no framework, just http.HandleFunc.
type Server struct {
	Addr     string
	Stats    stats.StatsReceiver
	Registry RegistrySnapshotter
}

// NewServer builds an introspection server bound to addr.
func NewServer(addr string, stat stats.StatsReceiver, registry RegistrySnapshotter) *Server {
	return &Server{Addr: addr, Stats: stat, Registry: registry}
}

// Handler builds the admin mux: / and /health are unauthenticated help
// and liveness probes, /admin/metrics.json and /admin/jobs.json expose the
// read-only state tests and fairsharectl actually care about. Split out
// from Serve so tests can bind it to their own listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", helpHandler)
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/admin/metrics.json", s.statsHandler)
	mux.HandleFunc("/admin/jobs.json", s.jobsHandler)
	return mux
}

// Serve binds s.Addr and blocks serving HTTP. A listen or serve error is
// returned to the caller rather than panicking the process.
func (s *Server) Serve() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	log.WithField("addr", ln.Addr().String()).Info("serving admin endpoints")
	return (&http.Server{Handler: s.Handler()}).Serve(ln)
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "paths: /health, /admin/metrics.json, /admin/jobs.json", http.StatusNotImplemented)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "ok")
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	pretty := r.URL.Query().Get("pretty") == "true"
	if _, err := w.Write(s.Stats.Render(pretty)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// jobView is the admin/jobs.json rendering of one registry entry; it
// mirrors snapshot_registry without exposing the Handle field, which has
// no JSON-stable representation.
type jobView struct {
	Id       domain.JobId `json:"id"`
	Name     string       `json:"name"`
	Priority float64      `json:"priority"`
	Bias     float64      `json:"bias"`
	CpuTime  int64        `json:"cputime"`
}

func (s *Server) jobsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	jobs := s.Registry.SnapshotRegistry()
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, jobView{Id: j.Id, Name: j.Name, Priority: j.Priority, Bias: j.Bias, CpuTime: j.CpuTime})
	}
	body := struct {
		TotalCores int       `json:"total_cores"`
		Jobs       []jobView `json:"jobs"`
	}{TotalCores: s.Registry.TotalCores(), Jobs: views}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
