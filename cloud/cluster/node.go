// Package cluster tracks the cluster topology the fairness controller
// needs: how many cores are available in total. It is adapted from the
// scheduler's own node/cluster tracking, trimmed to the one fact the core
// cares about (core count) rather than full node placement.
package cluster

import "fmt"

// NodeId identifies one cluster node, like "host:port" in a real cluster.
type NodeId string

// Node is one member of the cluster topology report. Cores is the
// capacity that node contributes to the total core count.
type Node struct {
	Id    NodeId
	Cores int
}

func (n Node) String() string {
	return fmt.Sprintf("%s(%dc)", n.Id, n.Cores)
}

// Topology is an immutable snapshot of the cluster's nodes at a point in
// time, as reported by update_topology.
type Topology struct {
	Nodes []Node
}

// TotalCores sums per-node core capacities. A topology report with no
// nodes is acceptable and yields 0, per spec.
func (t Topology) TotalCores() int {
	total := 0
	for _, n := range t.Nodes {
		total += n.Cores
	}
	return total
}
