package versioning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synapse/domain/core/aggregates"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
)

func makeVersioningTestNode(t *testing.T, userID, title string, now time.Time) *entities.Node {
	t.Helper()
	content, err := valueobjects.NewNodeContent(title, "body", valueobjects.FormatPlainText)
	require.NoError(t, err)
	temporal := valueobjects.TemporalModel{Ingestion: valueobjects.NewIngestion(now, "UTC")}
	node, err := entities.NewNode(userID, entities.NodeTypeConcept, content, temporal, entities.Provenance{Source: "test", Confidence: 1.0}, now)
	require.NoError(t, err)
	return node
}

func TestChecksumChangesWithGraphContent(t *testing.T) {
	now := time.Now()
	graph, err := aggregates.NewGraph("user-1", now)
	require.NoError(t, err)

	before, err := Checksum(graph)
	require.NoError(t, err)

	node := makeVersioningTestNode(t, "user-1", "first node", now)
	require.NoError(t, graph.AddNode(node, now))

	after, err := Checksum(graph)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestCreateVersionIncrementsAndStampsCounts(t *testing.T) {
	now := time.Now()
	graph, err := aggregates.NewGraph("user-2", now)
	require.NoError(t, err)
	node := makeVersioningTestNode(t, "user-2", "node", now)
	require.NoError(t, graph.AddNode(node, now))

	svc := NewVersioningService(10, true)
	version, err := svc.CreateVersion(graph, 3, "user-2", "manual snapshot")
	require.NoError(t, err)

	assert.Equal(t, 4, version.Version)
	assert.Equal(t, 1, version.NodeCount)
	assert.Equal(t, graph.ID().String(), version.GraphID)
	assert.NotEmpty(t, version.Checksum)
}

func TestCompareVersionsReportsNodeDelta(t *testing.T) {
	v1 := &GraphVersion{Version: 1, NodeCount: 2, EdgeCount: 1, CreatedAt: time.Now()}
	v2 := &GraphVersion{Version: 2, NodeCount: 5, EdgeCount: 3, CreatedAt: time.Now().Add(time.Hour)}

	svc := NewVersioningService(10, true)
	diff, err := svc.CompareVersions(v1, v2)
	require.NoError(t, err)

	assert.Equal(t, 3, diff.NodesDiff.Added)
	assert.Equal(t, 2, diff.EdgesDiff.Added)
	assert.Equal(t, time.Hour, diff.TimeDiff)
}

func TestShouldCreateVersionOnNodeCountThreshold(t *testing.T) {
	policy := DefaultVersioningPolicy()
	policy.VersionOnNodeCount = 5

	last := &GraphVersion{NodeCount: 10, CreatedAt: time.Now()}
	assert.False(t, policy.ShouldCreateVersion(last, 12, time.Now()))
	assert.True(t, policy.ShouldCreateVersion(last, 16, time.Now()))
}
