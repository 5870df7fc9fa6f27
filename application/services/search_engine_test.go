package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synapse/application/ports"
	"synapse/domain/config"
	"synapse/domain/core/aggregates"
	"synapse/domain/core/entities"
	"synapse/domain/core/primitives"
	"synapse/domain/core/valueobjects"
)

type fakeNodeRepo struct {
	byUser map[string][]*entities.Node
	byID   map[string]*entities.Node
}

func newFakeNodeRepo() *fakeNodeRepo {
	return &fakeNodeRepo{byUser: map[string][]*entities.Node{}, byID: map[string]*entities.Node{}}
}

func (r *fakeNodeRepo) add(n *entities.Node) {
	r.byUser[n.UserID()] = append(r.byUser[n.UserID()], n)
	r.byID[n.ID().String()] = n
}

func (r *fakeNodeRepo) Save(ctx context.Context, node *entities.Node) error { r.add(node); return nil }
func (r *fakeNodeRepo) GetByID(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	return r.byID[id.String()], nil
}
func (r *fakeNodeRepo) GetByUserID(ctx context.Context, userID string) ([]*entities.Node, error) {
	return r.byUser[userID], nil
}
func (r *fakeNodeRepo) Delete(ctx context.Context, id valueobjects.NodeID) error { return nil }
func (r *fakeNodeRepo) Search(ctx context.Context, criteria ports.SearchCriteria) ([]*entities.Node, error) {
	return nil, nil
}
func (r *fakeNodeRepo) BulkSave(ctx context.Context, nodes []*entities.Node) error { return nil }
func (r *fakeNodeRepo) DeleteBatch(ctx context.Context, nodeIDs []valueobjects.NodeID) error {
	return nil
}

type fakeGraphRepo struct {
	graphs map[string]*aggregates.Graph
}

func newFakeGraphRepo() *fakeGraphRepo { return &fakeGraphRepo{graphs: map[string]*aggregates.Graph{}} }

func (r *fakeGraphRepo) Save(ctx context.Context, graph *aggregates.Graph) error { return nil }
func (r *fakeGraphRepo) GetByUserID(ctx context.Context, userID string) (*aggregates.Graph, error) {
	return r.graphs[userID], nil
}
func (r *fakeGraphRepo) GetOrCreateForUser(ctx context.Context, userID string) (*aggregates.Graph, error) {
	if g, ok := r.graphs[userID]; ok {
		return g, nil
	}
	g, err := aggregates.NewGraph(userID, time.Now())
	if err != nil {
		return nil, err
	}
	r.graphs[userID] = g
	return g, nil
}
func (r *fakeGraphRepo) Delete(ctx context.Context, id aggregates.GraphID) error { return nil }

type fakeEmbedder struct {
	vectors map[string]primitives.Vector
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (primitives.Vector, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return primitives.Vector{1, 0, 0}, nil
}
func (f *fakeEmbedder) Dimensions() int  { return 3 }
func (f *fakeEmbedder) ModelID() string  { return "fake-embedder" }

func makeNode(t *testing.T, userID, title, body string, vec primitives.Vector, now time.Time) *entities.Node {
	t.Helper()
	content, err := valueobjects.NewNodeContent(title, body, valueobjects.FormatPlainText)
	require.NoError(t, err)
	temporal := valueobjects.TemporalModel{Ingestion: valueobjects.NewIngestion(now, "UTC")}
	node, err := entities.NewNode(userID, entities.NodeTypeConcept, content, temporal, entities.Provenance{Source: "test", Confidence: 1.0}, now)
	require.NoError(t, err)
	if vec != nil {
		require.NoError(t, node.AttachEmbedding(valueobjects.NodeEmbedding{
			Vector:     vec,
			Dimensions: len(vec),
			Model:      "fake-embedder",
			CreatedAt:  now,
			Version:    1,
		}, now))
	}
	return node
}

func newTestEngine(nodeRepo ports.NodeRepository, graphRepo ports.GraphRepository, embedder ports.EmbeddingProvider) *SearchEngine {
	cfg := *config.DefaultDomainConfig()
	return NewSearchEngine(nodeRepo, graphRepo, embedder, nil, nil, cfg, primitives.SystemClock{}, zap.NewNop())
}

func TestSearchReturnsDenseMatch(t *testing.T) {
	now := time.Now()
	nodeRepo := newFakeNodeRepo()
	graphRepo := newFakeGraphRepo()

	match := makeNode(t, "user-1", "apples", "apples are a fruit", primitives.Vector{1, 0, 0}, now)
	other := makeNode(t, "user-1", "unrelated", "something else entirely", primitives.Vector{0, 1, 0}, now)
	nodeRepo.add(match)
	nodeRepo.add(other)

	graph, err := graphRepo.GetOrCreateForUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.NoError(t, graph.AddNode(match, now))
	require.NoError(t, graph.AddNode(other, now))

	embedder := &fakeEmbedder{vectors: map[string]primitives.Vector{"apples": {1, 0, 0}}}
	engine := newTestEngine(nodeRepo, graphRepo, embedder)

	result, err := engine.Search(context.Background(), SearchRequest{UserID: "user-1", Query: "apples", TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, result.Results)
	assert.Equal(t, match.ID().String(), result.Results[0].NodeID.String())
}

func TestSearchDegradesToLexicalWithoutEmbedder(t *testing.T) {
	now := time.Now()
	nodeRepo := newFakeNodeRepo()
	graphRepo := newFakeGraphRepo()

	node := makeNode(t, "user-2", "bananas overview", "bananas are yellow and sweet", nil, now)
	nodeRepo.add(node)
	graph, err := graphRepo.GetOrCreateForUser(context.Background(), "user-2")
	require.NoError(t, err)
	require.NoError(t, graph.AddNode(node, now))

	engine := newTestEngine(nodeRepo, graphRepo, nil)

	result, err := engine.Search(context.Background(), SearchRequest{UserID: "user-2", Query: "bananas", TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, result.Results)
	assert.Equal(t, node.ID().String(), result.Results[0].NodeID.String())
}

func TestSearchEmptyGraphReturnsNoResults(t *testing.T) {
	nodeRepo := newFakeNodeRepo()
	graphRepo := newFakeGraphRepo()
	engine := newTestEngine(nodeRepo, graphRepo, nil)

	result, err := engine.Search(context.Background(), SearchRequest{UserID: "user-3", Query: "anything", TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, result.Results)
}

func TestSearchValidatesRequest(t *testing.T) {
	nodeRepo := newFakeNodeRepo()
	graphRepo := newFakeGraphRepo()
	engine := newTestEngine(nodeRepo, graphRepo, nil)

	_, err := engine.Search(context.Background(), SearchRequest{Query: "x"})
	assert.Error(t, err)

	_, err = engine.Search(context.Background(), SearchRequest{UserID: "user-4"})
	assert.Error(t, err)
}

func TestSearchExcludesNonRetrievableNodes(t *testing.T) {
	now := time.Now()
	nodeRepo := newFakeNodeRepo()
	graphRepo := newFakeGraphRepo()

	active := makeNode(t, "user-5", "mango notes", "mango season notes", primitives.Vector{1, 0, 0}, now)
	compressed := makeNode(t, "user-5", "mango archive", "mango season archive", primitives.Vector{1, 0, 0}, now)
	require.NoError(t, compressed.Compress(active.ID(), now, now.Add(365*24*time.Hour)))

	nodeRepo.add(active)
	nodeRepo.add(compressed)
	graph, err := graphRepo.GetOrCreateForUser(context.Background(), "user-5")
	require.NoError(t, err)
	require.NoError(t, graph.AddNode(active, now))

	embedder := &fakeEmbedder{vectors: map[string]primitives.Vector{"mango": {1, 0, 0}}}
	engine := newTestEngine(nodeRepo, graphRepo, embedder)

	result, err := engine.Search(context.Background(), SearchRequest{UserID: "user-5", Query: "mango", TopK: 5})
	require.NoError(t, err)
	for _, r := range result.Results {
		assert.NotEqual(t, compressed.ID().String(), r.NodeID.String())
	}
}

func TestSearchGrowsStabilityAndAccessCountOnReturnedNodes(t *testing.T) {
	now := time.Now()
	nodeRepo := newFakeNodeRepo()
	graphRepo := newFakeGraphRepo()

	match := makeNode(t, "user-6", "kiwi", "kiwi is a fruit", primitives.Vector{1, 0, 0}, now)
	nodeRepo.add(match)
	graph, err := graphRepo.GetOrCreateForUser(context.Background(), "user-6")
	require.NoError(t, err)
	require.NoError(t, graph.AddNode(match, now))

	beforeAccessCount := match.Neural().AccessCount
	beforeStability := match.Neural().Stability

	embedder := &fakeEmbedder{vectors: map[string]primitives.Vector{"kiwi": {1, 0, 0}}}
	engine := newTestEngine(nodeRepo, graphRepo, embedder)

	result, err := engine.Search(context.Background(), SearchRequest{UserID: "user-6", Query: "kiwi", TopK: 5})
	require.NoError(t, err)
	require.NotEmpty(t, result.Results)

	assert.Equal(t, beforeAccessCount+1, match.Neural().AccessCount, "a returned node's access count must bump on every Search")
	assert.GreaterOrEqual(t, match.Neural().Stability, beforeStability, "a returned node's stability must never decrease on recall")
}

func TestSearchAppliesCoActivationTickToCoReturnedEdge(t *testing.T) {
	now := time.Now()
	nodeRepo := newFakeNodeRepo()
	graphRepo := newFakeGraphRepo()

	a := makeNode(t, "user-7", "paris trip", "paris trip notes", primitives.Vector{1, 0, 0}, now)
	b := makeNode(t, "user-7", "paris trip day two", "paris trip day two notes", primitives.Vector{1, 0, 0}, now)
	nodeRepo.add(a)
	nodeRepo.add(b)

	graph, err := graphRepo.GetOrCreateForUser(context.Background(), "user-7")
	require.NoError(t, err)
	require.NoError(t, graph.AddNode(a, now))
	require.NoError(t, graph.AddNode(b, now))

	edge, err := entities.NewEdge(a.ID(), b.ID(), entities.EdgeTypeRelatesTo, true, 0.5, entities.CreationUser, now)
	require.NoError(t, err)
	require.NoError(t, graph.AddEdge(edge, now))
	beforeBonus := edge.Weight().CoActivation

	embedder := &fakeEmbedder{vectors: map[string]primitives.Vector{"paris": {1, 0, 0}}}
	engine := newTestEngine(nodeRepo, graphRepo, embedder)

	result, err := engine.Search(context.Background(), SearchRequest{UserID: "user-7", Query: "paris", TopK: 5})
	require.NoError(t, err)
	require.Len(t, result.Results, 2, "both co-relevant nodes should be returned together")

	assert.Greater(t, edge.Weight().CoActivation, beforeBonus, "an edge between two co-returned nodes should gain a co-activation tick")
}

func TestRecordEngagementAppliesActivationToResultSetEdge(t *testing.T) {
	now := time.Now()
	nodeRepo := newFakeNodeRepo()
	graphRepo := newFakeGraphRepo()

	a := makeNode(t, "user-8", "a", "a", primitives.Vector{1, 0, 0}, now)
	b := makeNode(t, "user-8", "b", "b", primitives.Vector{1, 0, 0}, now)
	graph, err := graphRepo.GetOrCreateForUser(context.Background(), "user-8")
	require.NoError(t, err)
	require.NoError(t, graph.AddNode(a, now))
	require.NoError(t, graph.AddNode(b, now))

	edge, err := entities.NewEdge(a.ID(), b.ID(), entities.EdgeTypeRelatesTo, true, 0.5, entities.CreationUser, now)
	require.NoError(t, err)
	require.NoError(t, graph.AddEdge(edge, now))
	beforeBonus := edge.Weight().CoActivation

	engine := newTestEngine(nodeRepo, graphRepo, nil)
	err = engine.RecordEngagement(context.Background(), EngagementRequest{
		UserID:           "user-8",
		NodeID:           a.ID(),
		Engaged:          true,
		ResultSetNodeIDs: []valueobjects.NodeID{a.ID(), b.ID()},
	})
	require.NoError(t, err)

	assert.Greater(t, edge.Weight().CoActivation, beforeBonus)
}
