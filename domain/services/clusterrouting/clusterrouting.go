// Package clusterrouting selects which clusters a query should be
// spread through before Spreading Activation Search runs, trading
// recall for reduced hop-budget consumption on a large graph.
package clusterrouting

import (
	"sort"

	"synapse/domain/config"
	"synapse/domain/core/entities"
	"synapse/domain/core/primitives"
)

// Strategy names the routing decision reached for a query.
type Strategy string

const (
	// StrategyAllClusters spreads through every cluster: either none
	// cleared the affinity floor, or the top two are too close to call.
	StrategyAllClusters Strategy = "all_clusters"
	// StrategyPrimaryOnly restricts the search to the single cluster that
	// cleared the affinity floor.
	StrategyPrimaryOnly Strategy = "primary_only"
	// StrategyTopClusters restricts the search to the top-ranked clusters
	// up to MaxClusters.
	StrategyTopClusters Strategy = "top_clusters"
)

// ScoredCluster pairs a cluster with its computed affinity to a query.
type ScoredCluster struct {
	Cluster  entities.Cluster
	Affinity float64
}

// Decision is the outcome of routing one query.
type Decision struct {
	Strategy Strategy
	Clusters []ScoredCluster // the clusters to spread through; empty under StrategyAllClusters
}

// Router computes cluster-affinity routing decisions.
type Router struct {
	cfg config.ClusterRoutingConfig
}

// NewRouter constructs a Router bound to cfg.
func NewRouter(cfg config.ClusterRoutingConfig) *Router {
	return &Router{cfg: cfg}
}

// Route scores every candidate cluster against the query embedding,
// filters below MinAffinity, and picks a strategy per the routing rule:
// zero survivors or an ambiguous top-two gap falls back to all clusters;
// exactly one survivor routes to it alone; otherwise the top-ranked
// clusters (bounded by MaxClusters) are used.
func (r *Router) Route(query primitives.Vector, clusters []entities.Cluster) (Decision, error) {
	scored := make([]ScoredCluster, 0, len(clusters))
	for _, c := range clusters {
		affinity, err := c.Affinity(query)
		if err != nil {
			return Decision{}, err
		}
		if affinity < 0 {
			affinity = 0
		}
		if affinity < r.cfg.MinAffinity {
			continue
		}
		scored = append(scored, ScoredCluster{Cluster: c, Affinity: affinity})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Affinity > scored[j].Affinity })

	switch len(scored) {
	case 0:
		return Decision{Strategy: StrategyAllClusters}, nil
	case 1:
		return Decision{Strategy: StrategyPrimaryOnly, Clusters: scored}, nil
	default:
		gap := scored[0].Affinity - scored[1].Affinity
		if gap <= r.cfg.SearchAllGap {
			return Decision{Strategy: StrategyAllClusters}, nil
		}
		top := scored
		if len(top) > r.cfg.MaxClusters {
			top = top[:r.cfg.MaxClusters]
		}
		return Decision{Strategy: StrategyTopClusters, Clusters: top}, nil
	}
}
