package fsrs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synapse/domain/config"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
)

func testEngine() *Engine {
	return NewEngine(config.DefaultDomainConfig().FSRS)
}

func TestRetrievability(t *testing.T) {
	e := testEngine()

	t.Run("zero elapsed time is fully retrievable", func(t *testing.T) {
		assert.Equal(t, 1.0, e.Retrievability(5.0, 0))
	})

	t.Run("decreasing in elapsed time", func(t *testing.T) {
		r1 := e.Retrievability(5.0, 24*time.Hour)
		r2 := e.Retrievability(5.0, 48*time.Hour)
		assert.Less(t, r2, r1)
	})

	t.Run("strictly less than 1 for any positive elapsed time", func(t *testing.T) {
		r := e.Retrievability(100.0, time.Minute)
		assert.Less(t, r, 1.0)
	})
}

func TestLifecycleForRetrievability(t *testing.T) {
	e := testEngine()

	assert.Equal(t, entities.LifecycleActive, e.LifecycleForRetrievability(0.9))
	assert.Equal(t, entities.LifecycleActive, e.LifecycleForRetrievability(0.5))
	assert.Equal(t, entities.LifecycleWeak, e.LifecycleForRetrievability(0.3))
	assert.Equal(t, entities.LifecycleWeak, e.LifecycleForRetrievability(0.1))
	assert.Equal(t, entities.LifecycleDormant, e.LifecycleForRetrievability(0.05))
}

func TestApplyRecall(t *testing.T) {
	e := testEngine()

	t.Run("successful recall never reduces stability", func(t *testing.T) {
		result := e.ApplyRecall(10.0, 5.0, 0.01, 4)
		assert.GreaterOrEqual(t, result.NewStability, 10.0)
	})

	t.Run("higher retrievability at recall grows stability more", func(t *testing.T) {
		low := e.ApplyRecall(10.0, 5.0, 0.2, 4)
		high := e.ApplyRecall(10.0, 5.0, 0.9, 4)
		assert.Greater(t, high.NewStability, low.NewStability)
	})

	t.Run("difficulty moves toward 1 for above-default grades", func(t *testing.T) {
		result := e.ApplyRecall(5.0, 5.0, 0.5, 5)
		assert.Less(t, result.NewDifficulty, 5.0)
	})

	t.Run("difficulty clamped to configured bounds", func(t *testing.T) {
		result := e.ApplyRecall(5.0, 1.0, 0.5, 1)
		assert.GreaterOrEqual(t, result.NewDifficulty, e.cfg.MinDifficulty)

		result = e.ApplyRecall(5.0, 10.0, 0.5, 5)
		assert.LessOrEqual(t, result.NewDifficulty, e.cfg.MaxDifficulty)
	})

	t.Run("grade defaults to 4 when unset", func(t *testing.T) {
		withZero := e.ApplyRecall(5.0, 5.0, 0.5, 0)
		withDefault := e.ApplyRecall(5.0, 5.0, 0.5, 4)
		assert.Equal(t, withDefault.NewDifficulty, withZero.NewDifficulty)
	})
}

func TestReadDecayNeverPromotesDormant(t *testing.T) {
	e := testEngine()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	content, err := valueobjects.NewNodeContent("title", "body", valueobjects.FormatPlainText)
	require.NoError(t, err)
	temporal := valueobjects.TemporalModel{Ingestion: valueobjects.NewIngestion(now, "UTC")}

	node, err := entities.NewNode("user-1", entities.NodeTypeConcept, content, temporal, entities.Provenance{}, now)
	require.NoError(t, err)

	node.TransitionLifecycle(entities.LifecycleDormant, now)

	later := now.Add(90 * 24 * time.Hour)
	_, lifecycle := e.ReadDecay(node, later)
	assert.Equal(t, entities.LifecycleDormant, lifecycle)
}

func TestNeuralDefaultsVaryByType(t *testing.T) {
	e := testEngine()

	episodeStability, episodeDifficulty := e.NeuralDefaults(entities.NodeTypeEpisode)
	conceptStability, conceptDifficulty := e.NeuralDefaults(entities.NodeTypeConcept)

	assert.Less(t, episodeStability, conceptStability)
	assert.Greater(t, episodeDifficulty, conceptDifficulty)
}
