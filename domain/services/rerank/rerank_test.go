package rerank

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"synapse/domain/config"
	"synapse/domain/core/valueobjects"
)

func testCfg() config.RerankConfig {
	return config.DefaultDomainConfig().Rerank
}

func TestRecency(t *testing.T) {
	r := NewRanker(testCfg())

	assert.Equal(t, 1.0, r.Recency(0))
	assert.Greater(t, r.Recency(10), r.Recency(60))
	assert.Less(t, r.Recency(-5), 1.0+1e-9)
}

func TestAuthority(t *testing.T) {
	r := NewRanker(testCfg())

	assert.Equal(t, 0.0, r.Authority(0))
	assert.InDelta(t, 0.5, r.Authority(10), 1e-9)
	assert.Equal(t, 1.0, r.Authority(40), "authority saturates at 1.0 beyond the ceiling")
}

func TestScoreIsWeightedSum(t *testing.T) {
	r := NewRanker(testCfg())
	s := Signals{
		NodeID:   valueobjects.NewNodeID(),
		Semantic: 1.0, Lexical: 1.0, Graph: 1.0, Affinity: 1.0,
		AgeDays: 0, AccessCount: 1000,
	}
	scored := r.Score(s)
	assert.InDelta(t, 1.0, scored.Composite, 1e-9, "all signals maxed should yield a composite of 1.0")
}

func TestScorePrimarySignal(t *testing.T) {
	r := NewRanker(testCfg())

	semanticDominant := r.Score(Signals{NodeID: valueobjects.NewNodeID(), Semantic: 1.0})
	assert.Equal(t, PrimarySignalSemantic, semanticDominant.PrimarySignal)

	graphDominant := r.Score(Signals{NodeID: valueobjects.NewNodeID(), Graph: 1.0})
	assert.Equal(t, PrimarySignalGraph, graphDominant.PrimarySignal)
}

func TestRankOrdersByComposite(t *testing.T) {
	r := NewRanker(testCfg())
	high := Signals{NodeID: valueobjects.NewNodeID(), Semantic: 0.9, Lexical: 0.9, Graph: 0.9}
	low := Signals{NodeID: valueobjects.NewNodeID(), Semantic: 0.1, Lexical: 0.1, Graph: 0.1}

	ranked := r.Rank([]Signals{low, high})
	assert.Equal(t, high.NodeID, ranked[0].NodeID)
}

func TestRankTieBreaksOnStabilityThenID(t *testing.T) {
	r := NewRanker(testCfg())

	a, _ := valueobjects.NewNodeIDFromString("node_00000000-0000-0000-0000-00000000000a")
	b, _ := valueobjects.NewNodeIDFromString("node_00000000-0000-0000-0000-00000000000b")

	sigA := Signals{NodeID: a, Semantic: 0.5, Stability: 2.0}
	sigB := Signals{NodeID: b, Semantic: 0.5, Stability: 5.0}

	ranked := r.Rank([]Signals{sigA, sigB})
	assert.Equal(t, b, ranked[0].NodeID, "higher stability wins an exact composite tie")

	t.Run("falls back to lexicographically smaller id when stability also ties", func(t *testing.T) {
		sigA.Stability = 3.0
		sigB.Stability = 3.0
		ranked := r.Rank([]Signals{sigB, sigA})
		assert.Equal(t, a, ranked[0].NodeID)
	})
}
