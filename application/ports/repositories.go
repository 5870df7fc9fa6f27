package ports

import (
	"context"
	"time"

	"synapse/domain/core/aggregates"
	"synapse/domain/core/entities"
	"synapse/domain/core/primitives"
	"synapse/domain/core/valueobjects"
	"synapse/domain/events"
)

// NodeRepository is the port for node persistence. The domain layer
// depends only on this interface; storage implementations live under
// infrastructure/persistence.
type NodeRepository interface {
	Save(ctx context.Context, node *entities.Node) error
	GetByID(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error)
	GetByUserID(ctx context.Context, userID string) ([]*entities.Node, error)
	Delete(ctx context.Context, id valueobjects.NodeID) error
	Search(ctx context.Context, criteria SearchCriteria) ([]*entities.Node, error)
	BulkSave(ctx context.Context, nodes []*entities.Node) error
	DeleteBatch(ctx context.Context, nodeIDs []valueobjects.NodeID) error
}

// EdgeRepository is the port for edge persistence.
type EdgeRepository interface {
	Save(ctx context.Context, graphID string, edge *entities.Edge) error
	GetByGraphID(ctx context.Context, graphID string) ([]*entities.Edge, error)
	GetByNodeID(ctx context.Context, nodeID valueobjects.NodeID) ([]*entities.Edge, error)
	Delete(ctx context.Context, graphID string, sourceID, targetID valueobjects.NodeID) error
	DeleteByNodeID(ctx context.Context, graphID string, nodeID valueobjects.NodeID) error
	DeleteByNodeIDs(ctx context.Context, graphID string, nodeIDs []valueobjects.NodeID) error
}

// GraphRepository is the port for per-user graph persistence. One
// graph aggregate per user holds that user's adjacency structure; the
// node/edge content itself is fetched through NodeRepository/EdgeRepository.
type GraphRepository interface {
	Save(ctx context.Context, graph *aggregates.Graph) error
	GetByUserID(ctx context.Context, userID string) (*aggregates.Graph, error)
	GetOrCreateForUser(ctx context.Context, userID string) (*aggregates.Graph, error)
	Delete(ctx context.Context, id aggregates.GraphID) error
}

// StorageAdapter bundles the three repositories a concrete storage
// backend (DynamoDB, etc.) provides together, since they typically
// share a table, a client, and a transaction boundary.
type StorageAdapter interface {
	Nodes() NodeRepository
	Edges() EdgeRepository
	Graphs() GraphRepository
}

// EmbeddingProvider produces a contextual embedding for a piece of
// text. Implementations wrap a model API call; the domain layer never
// talks to the model directly.
type EmbeddingProvider interface {
	Embed(ctx context.Context, contextualizedText string) (primitives.Vector, error)
	Dimensions() int
	ModelID() string
}

// ClusterService resolves and maintains the cluster set a user's
// nodes are routed against.
type ClusterService interface {
	ClustersForUser(ctx context.Context, userID string) ([]entities.Cluster, error)
	AssignCluster(ctx context.Context, userID string, nodeID valueobjects.NodeID, embedding primitives.Vector) (clusterID string, err error)
	RecomputeCentroids(ctx context.Context, userID string) error
}

// TelemetrySink records retrieval-quality and latency signals for a
// completed search, independent of structured logging.
type TelemetrySink interface {
	RecordSearchLatency(ctx context.Context, userID string, elapsed time.Duration, nodesVisited, hopsRun int)
	RecordSearchQuality(ctx context.Context, userID string, resultCount int, topScore float64)
	RecordBudgetExhaustion(ctx context.Context, userID string, reason string)
}

// EventStore defines the interface for event persistence
type EventStore interface {
	SaveEvents(ctx context.Context, events []events.DomainEvent) error
	GetEvents(ctx context.Context, aggregateID string) ([]events.DomainEvent, error)
	GetEventsByType(ctx context.Context, eventType string, limit int) ([]events.DomainEvent, error)
	GetEventsAfter(ctx context.Context, aggregateID string, version int) ([]events.DomainEvent, error)
	DeleteEvents(ctx context.Context, aggregateID string) error
	DeleteEventsBatch(ctx context.Context, aggregateIDs []string) error
}

// UnitOfWork defines a transaction boundary for aggregate operations
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback() error

	NodeRepository() NodeRepository
	EdgeRepository() EdgeRepository
	GraphRepository() GraphRepository
}

// SearchCriteria defines search parameters for a repository-level
// filter pass (used ahead of lexical/semantic scoring, e.g. to scope
// a search to a user and a lifecycle/type filter).
type SearchCriteria struct {
	UserID    string
	Query     string
	Tags      []string
	NodeTypes []entities.NodeType
	Lifecycle []entities.LifecycleStage
	Limit     int
	Offset    int
	OrderBy   string
	OrderDesc bool
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// EventBus defines the interface for publishing domain events
type EventBus interface {
	EventPublisher

	Subscribe(eventType string, handler EventHandler) error
	Unsubscribe(eventType string, handler EventHandler) error
}

// EventHandler defines the interface for handling domain events
type EventHandler interface {
	Handle(ctx context.Context, event events.DomainEvent) error
	CanHandle(eventType string) bool
}

// Cache defines the interface for caching
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, ttl int) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
