package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synapse/application/commands"
	"synapse/application/commands/handlers"
	"synapse/application/ports"
	"synapse/domain/config"
	"synapse/domain/core/aggregates"
	"synapse/domain/core/entities"
	"synapse/domain/core/primitives"
	"synapse/domain/core/valueobjects"
	"synapse/domain/events"
)

// fakeNodeRepo is an in-memory ports.NodeRepository for exercising the
// create-node and embedding-attach handlers end to end without a real
// DynamoDB table.
type fakeNodeRepo struct {
	byID map[string]*entities.Node
}

func newFakeNodeRepo() *fakeNodeRepo {
	return &fakeNodeRepo{byID: map[string]*entities.Node{}}
}

func (r *fakeNodeRepo) Save(ctx context.Context, node *entities.Node) error {
	r.byID[node.ID().String()] = node
	return nil
}
func (r *fakeNodeRepo) GetByID(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	return r.byID[id.String()], nil
}
func (r *fakeNodeRepo) GetByUserID(ctx context.Context, userID string) ([]*entities.Node, error) {
	var out []*entities.Node
	for _, n := range r.byID {
		if n.UserID() == userID {
			out = append(out, n)
		}
	}
	return out, nil
}
func (r *fakeNodeRepo) Delete(ctx context.Context, id valueobjects.NodeID) error {
	delete(r.byID, id.String())
	return nil
}
func (r *fakeNodeRepo) Search(ctx context.Context, criteria ports.SearchCriteria) ([]*entities.Node, error) {
	return nil, nil
}
func (r *fakeNodeRepo) BulkSave(ctx context.Context, nodes []*entities.Node) error {
	for _, n := range nodes {
		r.byID[n.ID().String()] = n
	}
	return nil
}
func (r *fakeNodeRepo) DeleteBatch(ctx context.Context, nodeIDs []valueobjects.NodeID) error {
	for _, id := range nodeIDs {
		delete(r.byID, id.String())
	}
	return nil
}

type fakeGraphRepo struct {
	graphs map[string]*aggregates.Graph
}

func newFakeGraphRepo() *fakeGraphRepo {
	return &fakeGraphRepo{graphs: map[string]*aggregates.Graph{}}
}

func (r *fakeGraphRepo) Save(ctx context.Context, graph *aggregates.Graph) error {
	r.graphs[graph.UserID()] = graph
	return nil
}
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

type fakeEdgeRepo struct {
	byGraph map[string][]*entities.Edge
}

func newFakeEdgeRepo() *fakeEdgeRepo {
	return &fakeEdgeRepo{byGraph: map[string][]*entities.Edge{}}
}

func (r *fakeEdgeRepo) Save(ctx context.Context, graphID string, edge *entities.Edge) error {
	r.byGraph[graphID] = append(r.byGraph[graphID], edge)
	return nil
}
func (r *fakeEdgeRepo) GetByGraphID(ctx context.Context, graphID string) ([]*entities.Edge, error) {
	return r.byGraph[graphID], nil
}
func (r *fakeEdgeRepo) GetByNodeID(ctx context.Context, nodeID valueobjects.NodeID) ([]*entities.Edge, error) {
	var out []*entities.Edge
	for _, edges := range r.byGraph {
		for _, e := range edges {
			if e.SourceID().Equals(nodeID) || e.TargetID().Equals(nodeID) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}
func (r *fakeEdgeRepo) Delete(ctx context.Context, graphID string, sourceID, targetID valueobjects.NodeID) error {
	return nil
}
func (r *fakeEdgeRepo) DeleteByNodeID(ctx context.Context, graphID string, nodeID valueobjects.NodeID) error {
	return nil
}
func (r *fakeEdgeRepo) DeleteByNodeIDs(ctx context.Context, graphID string, nodeIDs []valueobjects.NodeID) error {
	return nil
}

type fakeEventBus struct {
	published []events.DomainEvent
}

func (b *fakeEventBus) Publish(ctx context.Context, event events.DomainEvent) error {
	b.published = append(b.published, event)
	return nil
}
func (b *fakeEventBus) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	b.published = append(b.published, evts...)
	return nil
}
func (b *fakeEventBus) Subscribe(eventType string, handler ports.EventHandler) error   { return nil }
func (b *fakeEventBus) Unsubscribe(eventType string, handler ports.EventHandler) error { return nil }

// TestCreateNodeThenAttachEmbedding exercises the two-phase node
// creation pipeline: CreateNodeHandler persists a node with no
// embedding, then EmbeddingOrchestrator attaches one and evaluates it
// against the user's other nodes for similarity edges.
func TestCreateNodeThenAttachEmbedding(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	nodeRepo := newFakeNodeRepo()
	graphRepo := newFakeGraphRepo()
	edgeRepo := newFakeEdgeRepo()
	eventBus := &fakeEventBus{}

	createHandler := commands.NewCreateNodeHandler(nodeRepo, graphRepo, eventBus, logger)
	orchestrator := handlers.NewEmbeddingOrchestrator(nodeRepo, edgeRepo, graphRepo, eventBus, *config.DefaultDomainConfig(), logger)

	t.Run("create persists a node without an embedding", func(t *testing.T) {
		cmd := commands.CreateNodeCommand{
			UserID:  "test-user-123",
			Type:    "concept",
			Title:   "Test Node",
			Content: "This is test content",
			Format:  "text",
			Tags:    []string{"test", "integration"},
		}

		node, err := createHandler.Handle(ctx, cmd)
		require.NoError(t, err)
		require.NotNil(t, node)
		assert.Equal(t, cmd.Title, node.Content().Title())
		assert.Nil(t, node.Embedding())
	})

	t.Run("attaching an embedding runs similarity evaluation", func(t *testing.T) {
		first, err := createHandler.Handle(ctx, commands.CreateNodeCommand{
			UserID: "test-user-456", Type: "concept", Title: "apples", Content: "apples are a fruit", Format: "text",
		})
		require.NoError(t, err)

		err = orchestrator.Handle(ctx, handlers.AttachEmbeddingCommand{
			NodeID: first.ID(),
			Embedding: valueobjects.NodeEmbedding{
				Vector: primitives.Vector{1, 0, 0}, Dimensions: 3, Model: "test", CreatedAt: time.Now(), Version: 1,
			},
		})
		require.NoError(t, err)

		reloaded, err := nodeRepo.GetByID(ctx, first.ID())
		require.NoError(t, err)
		require.NotNil(t, reloaded.Embedding())

		second, err := createHandler.Handle(ctx, commands.CreateNodeCommand{
			UserID: "test-user-456", Type: "concept", Title: "apple pie", Content: "apple pie is made from apples", Format: "text",
		})
		require.NoError(t, err)

		err = orchestrator.Handle(ctx, handlers.AttachEmbeddingCommand{
			NodeID: second.ID(),
			Embedding: valueobjects.NodeEmbedding{
				Vector: primitives.Vector{1, 0.4, 0}, Dimensions: 3, Model: "test", CreatedAt: time.Now(), Version: 1,
			},
		})
		require.NoError(t, err)

		graph, err := graphRepo.GetOrCreateForUser(ctx, "test-user-456")
		require.NoError(t, err)
		edges, err := edgeRepo.GetByGraphID(ctx, graph.ID().String())
		require.NoError(t, err)
		assert.NotEmpty(t, edges, "expected a similarity edge between two near-duplicate nodes")
	})

	t.Run("rejects an invalid command", func(t *testing.T) {
		_, err := createHandler.Handle(ctx, commands.CreateNodeCommand{
			UserID:  "test-user-789",
			Title:   "", // invalid - empty title
			Content: "Content",
		})
		assert.Error(t, err)
	})
}

// TestDistributedRateLimiting documents the sliding-window limiter's
// in-memory contract; the DynamoDB-backed distributed limiter used in
// production wraps the same Allow semantics over a shared table and is
// exercised separately against a real table in deployment smoke tests.
func TestDistributedRateLimiting(t *testing.T) {
	limiter := newInMemorySlidingLimiter(10, time.Minute)

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			assert.True(t, limiter.Allow("test-user-789"), "request %d should be allowed", i+1)
		}
	})

	t.Run("blocks requests exceeding limit", func(t *testing.T) {
		key := "test-user-overflow"
		for i := 0; i < 10; i++ {
			limiter.Allow(key)
		}
		assert.False(t, limiter.Allow(key), "request should be blocked after exceeding limit")
	})
}

type inMemorySlidingLimiter struct {
	limit  int
	window time.Duration
	hits   map[string][]time.Time
}

func newInMemorySlidingLimiter(limit int, window time.Duration) *inMemorySlidingLimiter {
	return &inMemorySlidingLimiter{limit: limit, window: window, hits: map[string][]time.Time{}}
}

func (l *inMemorySlidingLimiter) Allow(key string) bool {
	now := time.Now()
	cutoff := now.Add(-l.window)
	kept := l.hits[key][:0]
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.limit {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}
