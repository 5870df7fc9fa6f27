package edgeweight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synapse/domain/config"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
)

func testCfg() config.EdgeWeightConfig {
	return config.DefaultDomainConfig().EdgeWeight
}

func TestBaseWeightLookup(t *testing.T) {
	b := NewBuilder(testCfg())
	assert.Equal(t, 0.95, b.BaseWeight(entities.EdgeTypeSameEntity))
	assert.Equal(t, 0.30, b.BaseWeight(entities.EdgeTypeTemporalContinuation))
}

func TestCreateTyped(t *testing.T) {
	b := NewBuilder(testCfg())
	edge, err := b.CreateTyped(valueobjects.NewNodeID(), valueobjects.NewNodeID(), entities.EdgeTypePartOf, false, entities.CreationExtraction, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0.85, edge.Weight().Base)
}

func TestTemporalLinkSameSession(t *testing.T) {
	b := NewBuilder(testCfg())

	edgeType, weight, ok := b.TemporalLink(true, 10*time.Minute, false)
	require.True(t, ok)
	assert.Equal(t, entities.EdgeTypeTemporalAdjacent, edgeType)
	assert.Greater(t, weight, 0.20)

	_, _, ok = b.TemporalLink(true, 3*time.Hour, false)
	assert.False(t, ok, "outside the adjacent window with no shared cluster yields no temporal link")
}

func TestTemporalLinkMinWeightFloor(t *testing.T) {
	b := NewBuilder(testCfg())
	_, weight, ok := b.TemporalLink(true, 119*time.Minute, false)
	require.True(t, ok)
	assert.GreaterOrEqual(t, weight, 0.20)
}

func TestTemporalLinkCrossSessionContinuation(t *testing.T) {
	b := NewBuilder(testCfg())
	edgeType, weight, ok := b.TemporalLink(false, 12*time.Hour, true)
	require.True(t, ok)
	assert.Equal(t, entities.EdgeTypeTemporalContinuation, edgeType)
	assert.Equal(t, 0.30, weight)
}

func TestCreateTemporalEdge(t *testing.T) {
	b := NewBuilder(testCfg())
	edge, created, err := b.CreateTemporalEdge(valueobjects.NewNodeID(), valueobjects.NewNodeID(), true, 5*time.Minute, false, time.Now())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, entities.CreationTemporal, edge.CreationSource())
	assert.True(t, edge.Bidirectional())
}

func TestUserLinkStrengthClamping(t *testing.T) {
	b := NewBuilder(testCfg())

	assert.Equal(t, 0.90, b.UserLinkStrength(0))
	assert.Equal(t, 0.50, b.UserLinkStrength(0.1))
	assert.Equal(t, 1.00, b.UserLinkStrength(5))
	assert.Equal(t, 0.75, b.UserLinkStrength(0.75))
}

func TestCreateUserEdgeConfirmedImmediately(t *testing.T) {
	b := NewBuilder(testCfg())
	edge, err := b.CreateUserEdge(valueobjects.NewNodeID(), valueobjects.NewNodeID(), entities.EdgeTypeUserLinked, 0.8, time.Now())
	require.NoError(t, err)
	assert.Equal(t, entities.EdgeStatusConfirmed, edge.Status())
}

func TestIsCompressionEligible(t *testing.T) {
	b := NewBuilder(testCfg())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	eligible := CompressionCandidate{
		DormantSince: now.Add(-61 * 24 * time.Hour),
		Importance:   0.1,
		StrongEdges:  0,
	}
	assert.True(t, b.IsCompressionEligible(now, eligible, 0.3))

	t.Run("pinned nodes never compress", func(t *testing.T) {
		pinned := eligible
		pinned.Pinned = true
		assert.False(t, b.IsCompressionEligible(now, pinned, 0.3))
	})

	t.Run("too recently dormant does not compress", func(t *testing.T) {
		recent := eligible
		recent.DormantSince = now.Add(-10 * 24 * time.Hour)
		assert.False(t, b.IsCompressionEligible(now, recent, 0.3))
	})

	t.Run("too important does not compress", func(t *testing.T) {
		important := eligible
		important.Importance = 0.9
		assert.False(t, b.IsCompressionEligible(now, important, 0.3))
	})

	t.Run("enough strong edges does not compress", func(t *testing.T) {
		wellConnected := eligible
		wellConnected.StrongEdges = 2
		assert.False(t, b.IsCompressionEligible(now, wellConnected, 0.3))
	})
}

func TestRestorableUntil(t *testing.T) {
	b := NewBuilder(testCfg())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(365*24*time.Hour), b.RestorableUntil(now))
}

func TestCountStrongEdges(t *testing.T) {
	b := NewBuilder(testCfg())
	now := time.Now()
	a := valueobjects.NewNodeID()
	other := valueobjects.NewNodeID()

	strong, err := entities.NewEdge(a, other, entities.EdgeTypeSameEntity, false, 0.95, entities.CreationExtraction, now)
	require.NoError(t, err)
	weak, err := entities.NewEdge(a, valueobjects.NewNodeID(), entities.EdgeTypeTemporalContinuation, false, 0.30, entities.CreationTemporal, now)
	require.NoError(t, err)

	count := b.CountStrongEdges(a, []*entities.Edge{strong, weak})
	assert.Equal(t, 1, count)
}
