//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"synapse/application/commands"
	commandbus "synapse/application/commands/bus"
	handlers "synapse/application/commands/handlers"
	"synapse/application/ports"
	querybus "synapse/application/queries/bus"
	queryhandlers "synapse/application/queries/handlers"
	appservices "synapse/application/services"
	"synapse/domain/config"
	"synapse/domain/core/primitives"
	infraconfig "synapse/infrastructure/config"
	"synapse/pkg/auth"
	"synapse/pkg/observability"

	"go.uber.org/zap"
)

// Container holds every wired dependency the HTTP and Lambda entry
// points need to construct their routers/handlers.
type Container struct {
	Config    *infraconfig.Config
	DomainCfg config.DomainConfig
	Clock     primitives.Clock
	Logger    *zap.Logger

	NodeRepo  ports.NodeRepository
	EdgeRepo  ports.EdgeRepository
	GraphRepo ports.GraphRepository

	EmbeddingProvider ports.EmbeddingProvider
	ClusterService    ports.ClusterService

	EventBus       ports.EventBus
	EventPublisher ports.EventPublisher
	EventStore     ports.EventStore

	CreateNodeHandler      *commands.CreateNodeHandler
	EmbeddingOrchestrator  *handlers.EmbeddingOrchestrator
	UpdateNodeHandler      *handlers.UpdateNodeHandler
	DeleteNodeHandler      *handlers.DeleteNodeHandler
	BulkDeleteNodesHandler *handlers.BulkDeleteNodesHandler
	CompressNodeHandler    *handlers.CompressNodeHandler

	GetUserGraphHandler *queryhandlers.GetUserGraphHandler
	GetNodeHandler      *queryhandlers.GetNodeHandler

	SearchEngine *appservices.SearchEngine

	CommandBus *commandbus.CommandBus
	QueryBus   *querybus.QueryBus

	Cache       ports.Cache
	Metrics     *observability.Metrics
	RateLimiter *auth.DistributedRateLimiter
}

// SuperSet is the full provider set wiring every dependency above.
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideBedrockClient,
	ProvideDomainConfig,
	ProvideClock,

	ProvideStorageAdapter,
	ProvideNodeRepository,
	ProvideEdgeRepository,
	ProvideGraphRepository,
	ProvideClusterService,
	ProvideEmbeddingProvider,

	ProvideEventBus,
	ProvideEventPublisher,
	ProvideEventStore,
	ProvideMetrics,
	ProvideDistributedRateLimiter,

	ProvideCreateNodeHandler,
	ProvideEmbeddingOrchestrator,
	ProvideUpdateNodeHandler,
	ProvideDeleteNodeHandler,
	ProvideBulkDeleteNodesHandler,
	ProvideCompressNodeHandler,
	ProvideGetUserGraphHandler,
	ProvideGetNodeHandler,
	ProvideSearchEngine,

	ProvideCommandBus,
	ProvideQueryBus,
	ProvideInMemoryCache,

	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container.
func InitializeContainer(ctx context.Context, cfg *infraconfig.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
