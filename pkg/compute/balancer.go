package compute

import (
	"errors"
)

// LeastLoadedBalancer picks the candidate node with the fewest active jobs.
type LeastLoadedBalancer struct{}

// Pick selects the least-loaded node among the candidates not present in
// excluded. Ties resolve to the earliest-registered node.
func (LeastLoadedBalancer) Pick(job Job, nodes []*Node, excluded []*Node) (*Node, error) {
	skip := make(map[string]bool, len(excluded))
	for _, n := range excluded {
		skip[n.ID] = true
	}

	var selected *Node
	minActive := int64(^uint64(0) >> 1) // max int64
	for _, node := range nodes {
		if skip[node.ID] {
			continue
		}
		active := node.Active()
		if active < minActive {
			minActive = active
			selected = node
		}
	}
	if selected == nil {
		return nil, errors.New("compute: no eligible nodes")
	}
	return selected, nil
}
