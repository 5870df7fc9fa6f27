package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synapse/domain/config"
	"synapse/domain/core/aggregates"
	"synapse/domain/core/entities"
	"synapse/domain/core/primitives"
	"synapse/domain/core/valueobjects"
	"synapse/domain/services/budget"
)

func testCfg() config.RetrievalConfig {
	return config.DefaultDomainConfig().Retrieval
}

func TestFusedScore(t *testing.T) {
	cfg := testCfg()
	c := SeedCandidate{DenseScore: 1.0, LexicalScore: 0.0}
	assert.InDelta(t, 0.7, FusedScore(cfg, c), 1e-9)
}

func TestSelectSeeds(t *testing.T) {
	cfg := testCfg()

	candidates := []SeedCandidate{
		{NodeID: valueobjects.NewNodeID(), DenseScore: 0.5, LexicalScore: 0.5},
		{NodeID: valueobjects.NewNodeID(), DenseScore: 0.01, LexicalScore: 0.01},
	}

	seeds := SelectSeeds(cfg, candidates, true)
	assert.Len(t, seeds, 1)
	assert.Equal(t, candidates[0].NodeID, seeds[0].NodeID)
}

func TestSelectSeedsLowerThresholdWithoutEmbeddings(t *testing.T) {
	cfg := testCfg()
	candidates := []SeedCandidate{
		{NodeID: valueobjects.NewNodeID(), DenseScore: 0, LexicalScore: 0.1},
	}

	withEmbeddings := SelectSeeds(cfg, candidates, true)
	withoutEmbeddings := SelectSeeds(cfg, candidates, false)

	assert.Empty(t, withEmbeddings, "0.03 fused score fails the 0.15 embeddings threshold")
	assert.NotEmpty(t, withoutEmbeddings, "0.03 fused score clears the 0.05 lexical-only threshold")
}

func TestHopDiscount(t *testing.T) {
	cfg := testCfg()
	assert.Equal(t, 1.0, HopDiscount(cfg, 0))
	assert.Equal(t, 1.0, HopDiscount(cfg, 1))
	assert.InDelta(t, 0.5, HopDiscount(cfg, 2), 1e-9)
	assert.InDelta(t, 0.25, HopDiscount(cfg, 3), 1e-9)
}

func TestSpreadAccumulatesActivationFromMultiplePaths(t *testing.T) {
	cfg := testCfg()
	s := NewSearcher(cfg)
	now := time.Now()
	g, err := aggregates.NewGraph("user-1", now)
	require.NoError(t, err)

	newNode := func() valueobjects.NodeID {
		content, err := valueobjects.NewNodeContent("node", "body", valueobjects.FormatPlainText)
		require.NoError(t, err)
		temporal := valueobjects.TemporalModel{Ingestion: valueobjects.NewIngestion(now, "UTC")}
		node, err := entities.NewNode("user-1", entities.NodeTypeConcept, content, temporal, entities.Provenance{}, now)
		require.NoError(t, err)
		require.NoError(t, g.AddNode(node, now))
		return node.ID()
	}

	// Two independently seeded nodes both connect to the same target:
	// the target's activation must be the sum of both contributions,
	// not just the larger of the two.
	seedA := newNode()
	seedB := newNode()
	target := newNode()

	edgeA, err := entities.NewEdge(seedA, target, entities.EdgeTypeRelatesTo, true, 0.8, entities.CreationUser, now)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(edgeA, now))
	edgeB, err := entities.NewEdge(seedB, target, entities.EdgeTypeRelatesTo, true, 0.8, entities.CreationUser, now)
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(edgeB, now))

	seeds := []ActivatedNode{
		{NodeID: seedA, Activation: 0.5, Hop: 0},
		{NodeID: seedB, Activation: 0.5, Hop: 0},
	}
	b := budget.Budget{EntryPoints: 2, MaxHops: 2, MaxNodes: 50, MaxTimeMS: 10000}

	result := s.Spread(g, seeds, b, QualityTarget{}, primitives.SystemClock{})

	var targetActivation float64
	for _, a := range result.Activated {
		if a.NodeID.Equals(target) {
			targetActivation = a.Activation
		}
	}

	singlePathContribution := 0.5 * edgeA.Weight().EffectiveWeight() * HopDiscount(cfg, 1)
	assert.Greater(t, targetActivation, singlePathContribution,
		"activation reached via two paths must exceed either single contribution")
	assert.LessOrEqual(t, targetActivation, 1.0)
}

func buildLinearGraph(t *testing.T, n int, weight float64) (*aggregates.Graph, []valueobjects.NodeID) {
	t.Helper()
	now := time.Now()
	g, err := aggregates.NewGraph("user-1", now)
	require.NoError(t, err)

	ids := make([]valueobjects.NodeID, n)
	for i := 0; i < n; i++ {
		content, err := valueobjects.NewNodeContent("node", "body", valueobjects.FormatPlainText)
		require.NoError(t, err)
		temporal := valueobjects.TemporalModel{Ingestion: valueobjects.NewIngestion(now, "UTC")}
		node, err := entities.NewNode("user-1", entities.NodeTypeConcept, content, temporal, entities.Provenance{}, now)
		require.NoError(t, err)
		require.NoError(t, g.AddNode(node, now))
		ids[i] = node.ID()
	}

	for i := 0; i < n-1; i++ {
		edge, err := entities.NewEdge(ids[i], ids[i+1], entities.EdgeTypeRelatesTo, true, weight, entities.CreationUser, now)
		require.NoError(t, err)
		require.NoError(t, g.AddEdge(edge, now))
	}

	return g, ids
}

func TestSpreadPropagatesAcrossHops(t *testing.T) {
	cfg := testCfg()
	s := NewSearcher(cfg)
	g, ids := buildLinearGraph(t, 4, 0.9)

	seeds := []ActivatedNode{{NodeID: ids[0], Activation: 1.0, Hop: 0}}
	b := budget.Budget{EntryPoints: 1, MaxHops: 3, MaxNodes: 50, MaxTimeMS: 10000}

	result := s.Spread(g, seeds, b, QualityTarget{}, primitives.SystemClock{})

	found := make(map[string]bool)
	for _, a := range result.Activated {
		found[a.NodeID.String()] = true
	}
	assert.True(t, found[ids[0].String()])
	assert.True(t, found[ids[1].String()])
}

func TestSpreadRespectsMaxNodes(t *testing.T) {
	cfg := testCfg()
	s := NewSearcher(cfg)
	g, ids := buildLinearGraph(t, 10, 0.9)

	seeds := []ActivatedNode{{NodeID: ids[0], Activation: 1.0, Hop: 0}}
	b := budget.Budget{EntryPoints: 1, MaxHops: 10, MaxNodes: 3, MaxTimeMS: 10000}

	result := s.Spread(g, seeds, b, QualityTarget{}, primitives.SystemClock{})
	assert.LessOrEqual(t, len(result.Activated), 3)
}

func TestSpreadRespectsMaxHops(t *testing.T) {
	cfg := testCfg()
	s := NewSearcher(cfg)
	g, ids := buildLinearGraph(t, 10, 0.95)

	seeds := []ActivatedNode{{NodeID: ids[0], Activation: 1.0, Hop: 0}}
	b := budget.Budget{EntryPoints: 1, MaxHops: 1, MaxNodes: 50, MaxTimeMS: 10000}

	result := s.Spread(g, seeds, b, QualityTarget{}, primitives.SystemClock{})
	for _, a := range result.Activated {
		assert.LessOrEqual(t, a.Hop, 1)
	}
}

func TestSpreadStopsWhenActivationDecaysBelowCutoff(t *testing.T) {
	cfg := testCfg()
	s := NewSearcher(cfg)
	g, ids := buildLinearGraph(t, 10, 0.05)

	seeds := []ActivatedNode{{NodeID: ids[0], Activation: 0.2, Hop: 0}}
	b := budget.Budget{EntryPoints: 1, MaxHops: 10, MaxNodes: 50, MaxTimeMS: 10000}

	result := s.Spread(g, seeds, b, QualityTarget{}, primitives.SystemClock{})
	assert.Equal(t, TerminationExhaustedSpread, result.Reason)
	assert.Len(t, result.Activated, 1, "activation below the spread cutoff after one hop should halt propagation")
}

func TestClassifyQuery(t *testing.T) {
	assert.Equal(t, QueryKindTemporal, ClassifyQuery("what did i discuss yesterday"))
	assert.Equal(t, QueryKindConcept, ClassifyQuery("what is the capital of france"))
}

func TestLexicalFallback(t *testing.T) {
	now := time.Now()
	content1, _ := valueobjects.NewNodeContent("Rust ownership", "move semantics and borrowing", valueobjects.FormatPlainText)
	content2, _ := valueobjects.NewNodeContent("Pasta recipe", "boil water", valueobjects.FormatPlainText)
	temporal := valueobjects.TemporalModel{Ingestion: valueobjects.NewIngestion(now, "UTC")}

	n1, _ := entities.NewNode("user-1", entities.NodeTypeConcept, content1, temporal, entities.Provenance{}, now)
	n2, _ := entities.NewNode("user-1", entities.NodeTypeConcept, content2, temporal, entities.Provenance{}, now)

	cfg := config.DefaultDomainConfig().Lexical
	results := LexicalFallback(cfg, "ownership borrowing", []*entities.Node{n1, n2})

	require.NotEmpty(t, results)
	assert.Equal(t, n1.ID(), results[0])
}
