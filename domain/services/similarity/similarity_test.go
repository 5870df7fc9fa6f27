package similarity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synapse/domain/config"
	"synapse/domain/core/primitives"
	"synapse/domain/core/valueobjects"
)

func testCfg() config.SimilarityConfig {
	return config.DefaultDomainConfig().Similarity
}

func TestEvaluateNewNode(t *testing.T) {
	m := NewMaintainer(testCfg())
	nodeID := valueobjects.NewNodeID()
	embedding := primitives.Vector{1, 0, 0}

	t.Run("below stale-edge threshold is omitted entirely", func(t *testing.T) {
		low := valueobjects.NewNodeID()
		decisions, err := m.EvaluateNewNode(nodeID, embedding, []Candidate{
			{NodeID: low, Embedding: primitives.Vector{0, 1, 0}},
		})
		require.NoError(t, err)
		assert.Empty(t, decisions)
	})

	t.Run("at or above similarity threshold creates an edge", func(t *testing.T) {
		similar := valueobjects.NewNodeID()
		decisions, err := m.EvaluateNewNode(nodeID, embedding, []Candidate{
			{NodeID: similar, Embedding: primitives.Vector{0.95, 0.05, 0}},
		})
		require.NoError(t, err)
		require.Len(t, decisions, 1)
		assert.Equal(t, ActionCreateEdge, decisions[0].Action)
	})

	t.Run("at or above dedup threshold flags duplicate instead of creating an edge", func(t *testing.T) {
		dup := valueobjects.NewNodeID()
		decisions, err := m.EvaluateNewNode(nodeID, embedding, []Candidate{
			{NodeID: dup, Embedding: primitives.Vector{1, 0, 0}},
		})
		require.NoError(t, err)
		require.Len(t, decisions, 1)
		assert.Equal(t, ActionFlagDuplicate, decisions[0].Action)
	})

	t.Run("excludes self-comparison", func(t *testing.T) {
		decisions, err := m.EvaluateNewNode(nodeID, embedding, []Candidate{
			{NodeID: nodeID, Embedding: embedding},
		})
		require.NoError(t, err)
		assert.Empty(t, decisions)
	})

	t.Run("sorted by similarity descending", func(t *testing.T) {
		a := valueobjects.NewNodeID()
		b := valueobjects.NewNodeID()
		decisions, err := m.EvaluateNewNode(nodeID, embedding, []Candidate{
			{NodeID: a, Embedding: primitives.Vector{0.91, 0.1, 0}},
			{NodeID: b, Embedding: primitives.Vector{0.99, 0.01, 0}},
		})
		require.NoError(t, err)
		require.Len(t, decisions, 2)
		assert.GreaterOrEqual(t, decisions[0].Similarity, decisions[1].Similarity)
	})
}

func TestReevaluateEdge(t *testing.T) {
	m := NewMaintainer(testCfg())

	t.Run("similarity below stale threshold marks stale", func(t *testing.T) {
		sim, action, err := m.ReevaluateEdge(primitives.Vector{1, 0}, primitives.Vector{0, 1})
		require.NoError(t, err)
		assert.Equal(t, ActionMarkEdgeStale, action)
		assert.InDelta(t, 0.0, sim, 1e-9)
	})

	t.Run("similarity above stale threshold is left alone", func(t *testing.T) {
		_, action, err := m.ReevaluateEdge(primitives.Vector{1, 0}, primitives.Vector{0.99, 0.1})
		require.NoError(t, err)
		assert.Equal(t, ActionNone, action)
	})
}

func TestRecentWindowTruncates(t *testing.T) {
	cfg := testCfg()
	cfg.RecentNodeWindow = 2
	m := NewMaintainer(cfg)

	candidates := []Candidate{{}, {}, {}}
	assert.Len(t, m.RecentWindow(candidates), 2)
}

func TestBaseWeightForSimilarity(t *testing.T) {
	cfg := testCfg()

	// base_weight equals similarity directly (e.g. sim=0.93 -> 0.93).
	pinned := BaseWeightForSimilarity(cfg, 0.5, 0.93)
	assert.Equal(t, 0.93, pinned)

	atThreshold := BaseWeightForSimilarity(cfg, 0.5, cfg.SimilarityEdgeThreshold)
	assert.Equal(t, cfg.SimilarityEdgeThreshold, atThreshold)

	atDedup := BaseWeightForSimilarity(cfg, 0.5, cfg.DedupCheckThreshold)
	assert.Equal(t, cfg.DedupCheckThreshold, atDedup)

	clampedLow := BaseWeightForSimilarity(cfg, 0.5, 0.05)
	assert.Equal(t, 0.10, clampedLow)
}

func TestProvisionalExpiryCutoff(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cutoff := ProvisionalExpiryCutoff(created, 30*24*time.Hour)
	assert.Equal(t, created.Add(30*24*time.Hour), cutoff)
}
