// Package fairness implements the fair-share controller: the periodic
// loop that polls each job's actual usage, redistributes unused capacity
// among needy jobs, and rewrites priorities via an EMA with an optimistic
// bias correction left to the policy server between ticks.
//
// This file holds the pure numeric core (share redistribution, deficit,
// EMA) so it can be tested without any goroutines, timers, or handles —
// the property tests in algorithm_property_test.go exercise exactly this
// surface.
package fairness

import "github.com/scootdev/fairshare/scheduler/domain"

// sample is one responsive job's poll result plus the state the
// controller needs to carry the revision: its id, weight, and the
// priority/cputime it's revising from.
type sample struct {
	Id          domain.JobId
	Weight      float64
	OldPriority float64
	OldCpuTime  int64
	Pending     int
	Running     int
}

// revisionFor computes one job's new priority given its nominal share and
// the redistribution already computed for this tick (step 9-11 of
// spec.md §4.2, generalized by weight per SPEC_FULL.md §4).
func revisionFor(s sample, nominalShare, extraShare, totalCores, alpha float64) domain.Revision {
	myShare := effectiveShare(s, nominalShare, extraShare)
	deficit := (float64(s.Running) - myShare) / totalCores
	newPriority := alpha*deficit + (1-alpha)*s.OldPriority

	return domain.Revision{
		Id:       s.Id,
		Priority: newPriority,
		Bias:     0,
		CpuTime:  s.OldCpuTime + int64(s.Running),
	}
}

// effectiveShare implements step 9: a job that can't use its whole
// nominal share only gets what it can use (pending_tasks). Of the rest,
// only a job that hasn't yet reached its nominal share in running_tasks
// gets the boost from what the donors gave up; a job already running
// beyond its own nominal share (spec.md §8 Scenario C's "greedy" J1) is
// neither a donor nor needy, and is left at its plain nominal share —
// extra_share only flows to jobs still catching up to their own share.
func effectiveShare(s sample, nominalShare, extraShare float64) float64 {
	if float64(s.Pending) < nominalShare {
		return float64(s.Pending)
	}
	if float64(s.Running) <= nominalShare {
		return nominalShare + extraShare
	}
	return nominalShare
}

// redistribution computes, for one tick, the nominal per-job share, the
// donors/needy partition, and the extra share each needy job receives
// from donated excess capacity (spec.md §4.2 steps 6-8, weighted per
// SPEC_FULL.md §4: share = (total_cores * weight) / sum(weights)). A
// responsive job falls into exactly one of three buckets: donor (can't
// fill its own share), needy (hasn't exceeded its own share, wants the
// donated excess), or neither (already running beyond its own share
// unassisted, per spec.md §8 Scenario C).
type redistribution struct {
	NominalShare func(weight float64) float64
	ExtraShare   float64
	Donors       int
	Needy        int
}

// computeRedistribution is the heart of the algorithm. totalWeight is the
// sum of Weight across every responsive job; with all weights equal to 1
// this reduces exactly to spec.md's unweighted share = total_cores/N.
func computeRedistribution(samples []sample, totalCores float64) redistribution {
	totalWeight := 0.0
	for _, s := range samples {
		totalWeight += s.Weight
	}
	if totalWeight <= 0 {
		totalWeight = float64(maxInt(1, len(samples)))
	}

	nominalShare := func(weight float64) float64 {
		return totalCores * weight / totalWeight
	}

	donated := 0.0
	donors, needy := 0, 0
	for _, s := range samples {
		share := nominalShare(s.Weight)
		switch {
		case float64(s.Pending) < share:
			donated += share - float64(s.Pending)
			donors++
		case float64(s.Running) <= share:
			// Hasn't exceeded its own nominal share yet but has backlog
			// to use more: the candidate set for the donated excess.
			needy++
		}
		// Else: already running beyond its own nominal share on its
		// own merits — neither donates nor draws from extra_share.
	}

	// Open question in spec.md §9: extra_share is unconditionally
	// computed by the source and would divide by zero if needy == 0.
	// It is never read on that branch, so we guard the division and
	// leave it at its zero value rather than propagate NaN.
	extraShare := 0.0
	if needy > 0 {
		extraShare = donated / float64(needy)
	}

	return redistribution{NominalShare: nominalShare, ExtraShare: extraShare, Donors: donors, Needy: needy}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// revise computes the full batch of revisions for one controller tick,
// given the responsive samples and the tick's parameters. Jobs that
// didn't respond are simply absent from samples and therefore absent from
// the returned batch; the policy server leaves their priority untouched.
func revise(samples []sample, totalCores float64, alpha float64) []domain.Revision {
	if totalCores <= 0 || len(samples) == 0 {
		return nil
	}
	red := computeRedistribution(samples, totalCores)

	out := make([]domain.Revision, 0, len(samples))
	for _, s := range samples {
		share := red.NominalShare(s.Weight)
		out = append(out, revisionFor(s, share, red.ExtraShare, totalCores, alpha))
	}
	return out
}
