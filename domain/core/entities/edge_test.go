package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synapse/domain/core/valueobjects"
)

func TestEffectiveWeight(t *testing.T) {
	t.Run("base weight alone when no learning has occurred", func(t *testing.T) {
		w := EdgeWeight{Base: 0.5}
		assert.InDelta(t, 0.5, w.EffectiveWeight(), 1e-9)
	})

	t.Run("implements clamp(base*(1+learned)+coactivation, 0.10, 1.00)", func(t *testing.T) {
		w := EdgeWeight{Base: 0.5, Learned: 0.2, CoActivation: 0.1}
		expected := 0.5*(1+0.2) + 0.1
		assert.InDelta(t, expected, w.EffectiveWeight(), 1e-9)
	})

	t.Run("clamps above 1.00", func(t *testing.T) {
		w := EdgeWeight{Base: 1.0, Learned: 0.3, CoActivation: 0.3}
		assert.Equal(t, 1.0, w.EffectiveWeight())
	})

	t.Run("clamps below 0.10", func(t *testing.T) {
		w := EdgeWeight{Base: 0.10, Learned: -0.30, CoActivation: 0}
		assert.Equal(t, 0.10, w.EffectiveWeight())
	})
}

func newTestEdge(t *testing.T) *Edge {
	t.Helper()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	edge, err := NewEdge(valueobjects.NewNodeID(), valueobjects.NewNodeID(), EdgeTypeRelatesTo, true, 0.5, CreationSimilarity, now)
	require.NoError(t, err)
	return edge
}

func TestNewEdgeCreationSource(t *testing.T) {
	t.Run("user-created edges are confirmed immediately", func(t *testing.T) {
		now := time.Now()
		edge, err := NewEdge(valueobjects.NewNodeID(), valueobjects.NewNodeID(), EdgeTypeUserLinked, false, 0.9, CreationUser, now)
		require.NoError(t, err)
		assert.Equal(t, EdgeStatusConfirmed, edge.Status())
		assert.Nil(t, edge.ExpiresAt())
	})

	t.Run("non-user edges start provisional with an expiry", func(t *testing.T) {
		edge := newTestEdge(t)
		assert.Equal(t, EdgeStatusProvisional, edge.Status())
		require.NotNil(t, edge.ExpiresAt())
	})

	t.Run("rejects self-loops", func(t *testing.T) {
		id := valueobjects.NewNodeID()
		_, err := NewEdge(id, id, EdgeTypeRelatesTo, false, 0.5, CreationSimilarity, time.Now())
		assert.Error(t, err)
	})

	t.Run("rejects out-of-range base weight", func(t *testing.T) {
		_, err := NewEdge(valueobjects.NewNodeID(), valueobjects.NewNodeID(), EdgeTypeRelatesTo, false, 1.5, CreationSimilarity, time.Now())
		assert.Error(t, err)
	})
}

func TestRecordActivationEngaged(t *testing.T) {
	edge := newTestEdge(t)
	now := edge.CreatedAt()

	before := edge.Weight().EffectiveWeight()
	edge.RecordActivation(true, now.Add(time.Minute))
	after := edge.Weight().EffectiveWeight()

	assert.Greater(t, after, before)
	assert.Equal(t, 0, edge.Neural().ConsecutiveIgnored)
	assert.Equal(t, 1, edge.Neural().CoActivationCount)
}

func TestRecordActivationPromotesAfterThreeEngagements(t *testing.T) {
	edge := newTestEdge(t)
	now := edge.CreatedAt()

	for i := 0; i < 3; i++ {
		edge.RecordActivation(true, now.Add(time.Duration(i+1)*time.Hour))
	}

	assert.Equal(t, EdgeStatusConfirmed, edge.Status())
	assert.Nil(t, edge.ExpiresAt())
}

func TestRecordActivationIgnoredDecaysAfterThreeConsecutive(t *testing.T) {
	edge := newTestEdge(t)
	now := edge.CreatedAt()

	edge.RecordActivation(true, now.Add(time.Minute))
	bonusAfterEngage := edge.Weight().CoActivation
	require.Greater(t, bonusAfterEngage, 0.0)

	edge.RecordActivation(false, now.Add(2*time.Minute))
	edge.RecordActivation(false, now.Add(3*time.Minute))
	edge.RecordActivation(false, now.Add(4*time.Minute))

	assert.InDelta(t, bonusAfterEngage*0.95, edge.Weight().CoActivation, 1e-9)
	assert.Equal(t, 0, edge.Neural().ConsecutiveIgnored)
}

func TestApplyTimeDecay(t *testing.T) {
	edge := newTestEdge(t)
	now := edge.CreatedAt()
	edge.RecordActivation(true, now)
	bonus := edge.Weight().CoActivation
	require.Greater(t, bonus, 0.0)

	edge.ApplyTimeDecay(now.Add(61 * 24 * time.Hour))
	assert.InDelta(t, bonus*0.95, edge.Weight().CoActivation, 1e-9)

	edge.ApplyTimeDecay(now.Add(61 * 24 * time.Hour))
	assert.InDelta(t, bonus*0.95, edge.Weight().CoActivation, 1e-9, "re-applying decay at an unchanged LastActivatedAt must be a no-op")
}

func TestIsExpired(t *testing.T) {
	edge := newTestEdge(t)
	now := edge.CreatedAt()

	assert.False(t, edge.IsExpired(now))
	assert.True(t, edge.IsExpired(now.Add(31*24*time.Hour)))
}

func TestAdjustLearnedClamps(t *testing.T) {
	edge := newTestEdge(t)

	edge.AdjustLearned(10)
	assert.Equal(t, 0.30, edge.Weight().Learned)

	edge.AdjustLearned(-10)
	assert.Equal(t, -0.30, edge.Weight().Learned)
}

func TestOtherEnd(t *testing.T) {
	a := valueobjects.NewNodeID()
	b := valueobjects.NewNodeID()

	edge, err := NewEdge(a, b, EdgeTypeRelatesTo, false, 0.5, CreationSimilarity, time.Now())
	require.NoError(t, err)

	other, ok := edge.OtherEnd(a)
	require.True(t, ok)
	assert.True(t, other.Equals(b))

	_, ok = edge.OtherEnd(b)
	assert.False(t, ok, "non-bidirectional edge has no reverse traversal")
}
