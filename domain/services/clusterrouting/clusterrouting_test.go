package clusterrouting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synapse/domain/config"
	"synapse/domain/core/entities"
	"synapse/domain/core/primitives"
)

func testCfg() config.ClusterRoutingConfig {
	return config.DefaultDomainConfig().ClusterRouting
}

func cluster(id string, centroid primitives.Vector) entities.Cluster {
	return entities.Cluster{ID: id, Name: id, Centroid: centroid, Source: entities.ClusterSourceComputed}
}

func TestRouteNoSurvivorsFallsBackToAllClusters(t *testing.T) {
	r := NewRouter(testCfg())
	query := primitives.Vector{1, 0, 0}
	clusters := []entities.Cluster{
		cluster("a", primitives.Vector{0, 1, 0}),
		cluster("b", primitives.Vector{0, 0, 1}),
	}

	decision, err := r.Route(query, clusters)
	require.NoError(t, err)
	assert.Equal(t, StrategyAllClusters, decision.Strategy)
	assert.Empty(t, decision.Clusters)
}

func TestRouteSingleSurvivorRoutesPrimaryOnly(t *testing.T) {
	r := NewRouter(testCfg())
	query := primitives.Vector{1, 0, 0}
	clusters := []entities.Cluster{
		cluster("a", primitives.Vector{1, 0, 0}),
		cluster("b", primitives.Vector{0, 1, 0}),
	}

	decision, err := r.Route(query, clusters)
	require.NoError(t, err)
	assert.Equal(t, StrategyPrimaryOnly, decision.Strategy)
	require.Len(t, decision.Clusters, 1)
	assert.Equal(t, "a", decision.Clusters[0].Cluster.ID)
}

func TestRouteCloseTopTwoFallsBackToAllClusters(t *testing.T) {
	r := NewRouter(testCfg())
	query := primitives.Vector{1, 0}
	// Both clusters score close (affinity gap <= 0.10).
	clusters := []entities.Cluster{
		cluster("a", primitives.Vector{1, 0.05}),
		cluster("b", primitives.Vector{1, 0.1}),
	}

	decision, err := r.Route(query, clusters)
	require.NoError(t, err)
	assert.Equal(t, StrategyAllClusters, decision.Strategy)
}

func TestRouteDistinctTopClustersBoundedByMaxClusters(t *testing.T) {
	cfg := testCfg()
	cfg.MaxClusters = 2
	cfg.SearchAllGap = 0.001
	r := NewRouter(cfg)

	query := primitives.Vector{1, 0, 0, 0}
	clusters := []entities.Cluster{
		cluster("a", primitives.Vector{1, 0, 0, 0}),
		cluster("b", primitives.Vector{0.9, 0.1, 0, 0}),
		cluster("c", primitives.Vector{0.5, 0.5, 0, 0}),
		cluster("d", primitives.Vector{0.35, 0.35, 0.1, 0}),
	}

	decision, err := r.Route(query, clusters)
	require.NoError(t, err)
	assert.Equal(t, StrategyTopClusters, decision.Strategy)
	assert.LessOrEqual(t, len(decision.Clusters), 2)
	assert.Equal(t, "a", decision.Clusters[0].Cluster.ID)
}

func TestRouteNegativeAffinityTreatedAsZeroAndFiltered(t *testing.T) {
	r := NewRouter(testCfg())
	query := primitives.Vector{1, 0}
	clusters := []entities.Cluster{
		cluster("opposite", primitives.Vector{-1, 0}),
	}

	decision, err := r.Route(query, clusters)
	require.NoError(t, err)
	assert.Equal(t, StrategyAllClusters, decision.Strategy)
}
