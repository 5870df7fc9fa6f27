package di

import (
	"context"
	"fmt"
	"time"

	"synapse/application/commands"
	handlers "synapse/application/commands/handlers"
	"synapse/application/ports"
	"synapse/application/queries"
	queryhandlers "synapse/application/queries/handlers"
	appservices "synapse/application/services"
	"synapse/domain/config"
	"synapse/domain/core/primitives"
	"synapse/domain/events"
	"synapse/infrastructure/embedding"
	infraconfig "synapse/infrastructure/config"
	"synapse/infrastructure/messaging/eventbridge"
	"synapse/infrastructure/persistence/dynamodb"
	"synapse/pkg/auth"
	"synapse/pkg/observability"

	commandbus "synapse/application/commands/bus"
	querybus "synapse/application/queries/bus"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

// ProvideLogger creates a new logger instance.
func ProvideLogger(cfg *infraconfig.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig creates the shared AWS configuration.
func ProvideAWSConfig(ctx context.Context, cfg *infraconfig.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
}

// ProvideDynamoDBClient creates a DynamoDB client.
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client.
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client.
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideBedrockClient creates a Bedrock Runtime client for the embedding provider.
func ProvideBedrockClient(awsCfg aws.Config) *bedrockruntime.Client {
	return bedrockruntime.NewFromConfig(awsCfg)
}

// ProvideDomainConfig supplies the neural/retrieval tuning constants
// (FSRS, embedding windowing, lexical scoring, edge weighting, cluster
// routing, budget, re-ranking). These are algorithm constants rather
// than deployment configuration, so they are not sourced from the
// environment the way infraconfig.Config is.
func ProvideDomainConfig() config.DomainConfig {
	return *config.DefaultDomainConfig()
}

// ProvideClock supplies the wall clock used by the domain layer.
func ProvideClock() primitives.Clock {
	return primitives.SystemClock{}
}

// ProvideStorageAdapter wires the DynamoDB-backed node, edge, and graph
// repositories off a single table and client.
func ProvideStorageAdapter(client *awsdynamodb.Client, cfg *infraconfig.Config, logger *zap.Logger) *dynamodb.StorageAdapter {
	return dynamodb.NewStorageAdapter(client, cfg.DynamoDBTable, logger)
}

// ProvideNodeRepository exposes the node repository from the shared storage adapter.
func ProvideNodeRepository(storage *dynamodb.StorageAdapter) ports.NodeRepository {
	return storage.Nodes()
}

// ProvideEdgeRepository exposes the edge repository from the shared storage adapter.
func ProvideEdgeRepository(storage *dynamodb.StorageAdapter) ports.EdgeRepository {
	return storage.Edges()
}

// ProvideGraphRepository exposes the graph repository from the shared storage adapter.
func ProvideGraphRepository(storage *dynamodb.StorageAdapter) ports.GraphRepository {
	return storage.Graphs()
}

// ProvideClusterService creates the cluster-routing repository used by
// the retrieval engine's cluster-affinity routing step.
func ProvideClusterService(client *awsdynamodb.Client, cfg *infraconfig.Config, domainCfg config.DomainConfig, logger *zap.Logger) ports.ClusterService {
	return dynamodb.NewClusterRepository(client, cfg.DynamoDBTable, domainCfg.ClusterRouting, logger)
}

// ProvideEmbeddingProvider creates the contextual embedding provider
// backing the async embedding-attach step.
func ProvideEmbeddingProvider(client *bedrockruntime.Client, cfg *infraconfig.Config, logger *zap.Logger) ports.EmbeddingProvider {
	return embedding.NewTitanEmbedder(client, cfg.EmbeddingModelID, cfg.EmbeddingDimensions, logger)
}

// ProvideEventBus creates an EventBridge-backed event bus.
func ProvideEventBus(client *awseventbridge.Client, cfg *infraconfig.Config, logger *zap.Logger) ports.EventBus {
	return eventbridge.NewEventBridgePublisher(client, cfg.EventBusName, logger)
}

// ProvideEventPublisher adapts EventBus to the narrower EventPublisher
// port used by handlers that only ever publish, never subscribe.
func ProvideEventPublisher(eventBus ports.EventBus) ports.EventPublisher {
	return &eventPublisherAdapter{eventBus: eventBus}
}

type eventPublisherAdapter struct {
	eventBus ports.EventBus
}

func (a *eventPublisherAdapter) Publish(ctx context.Context, event events.DomainEvent) error {
	return a.eventBus.Publish(ctx, event)
}

func (a *eventPublisherAdapter) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	return a.eventBus.PublishBatch(ctx, evts)
}

// ProvideEventStore creates the durable outbox store events are staged
// in before EventBridge publication; the outbox processor drains it.
func ProvideEventStore(client *awsdynamodb.Client, cfg *infraconfig.Config) ports.EventStore {
	return dynamodb.NewDynamoDBEventStore(client, cfg.DynamoDBTable)
}

// ProvideMetrics creates the CloudWatch-backed metrics/telemetry sink,
// serving both command-bus instrumentation and ports.TelemetrySink.
func ProvideMetrics(client *awscloudwatch.Client, cfg *infraconfig.Config) *observability.Metrics {
	namespace := fmt.Sprintf("Synapse/%s", cfg.Environment)
	return observability.NewMetrics(namespace, client)
}

// ProvideDistributedRateLimiter creates a DynamoDB-backed API rate limiter.
func ProvideDistributedRateLimiter(client *awsdynamodb.Client, cfg *infraconfig.Config) *auth.DistributedRateLimiter {
	return auth.NewDistributedRateLimiter(client, cfg.DynamoDBTable, 100, 1*time.Minute, "API")
}

// ProvideCreateNodeHandler wires the node-creation command handler.
func ProvideCreateNodeHandler(nodeRepo ports.NodeRepository, graphRepo ports.GraphRepository, eventBus ports.EventBus, logger *zap.Logger) *commands.CreateNodeHandler {
	return commands.NewCreateNodeHandler(nodeRepo, graphRepo, eventBus, logger)
}

// ProvideEmbeddingOrchestrator wires the asynchronous embedding-attach
// and similarity-edge-maintenance step.
func ProvideEmbeddingOrchestrator(
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	graphRepo ports.GraphRepository,
	eventPublisher ports.EventPublisher,
	domainCfg config.DomainConfig,
	logger *zap.Logger,
) *handlers.EmbeddingOrchestrator {
	return handlers.NewEmbeddingOrchestrator(nodeRepo, edgeRepo, graphRepo, eventPublisher, domainCfg, logger)
}

// ProvideSearchEngine wires the retrieval orchestrator: cluster routing,
// budget planning, spreading-activation search, and re-ranking.
func ProvideSearchEngine(
	nodeRepo ports.NodeRepository,
	graphRepo ports.GraphRepository,
	embedder ports.EmbeddingProvider,
	clusters ports.ClusterService,
	metrics *observability.Metrics,
	domainCfg config.DomainConfig,
	clock primitives.Clock,
	logger *zap.Logger,
) *appservices.SearchEngine {
	return appservices.NewSearchEngine(nodeRepo, graphRepo, embedder, clusters, metrics, domainCfg, clock, logger)
}

// CommandHandlerAdapter adapts a typed command handler function to the
// generic bus.CommandHandler interface.
type CommandHandlerAdapter struct {
	handler func(context.Context, commandbus.Command) error
}

// Handle implements commandbus.CommandHandler.
func (a *CommandHandlerAdapter) Handle(ctx context.Context, cmd commandbus.Command) error {
	return a.handler(ctx, cmd)
}

// ProvideCommandBus creates the command bus and registers every write handler.
func ProvideCommandBus(
	createNodeHandler *commands.CreateNodeHandler,
	embeddingOrchestrator *handlers.EmbeddingOrchestrator,
	updateNodeHandler *handlers.UpdateNodeHandler,
	deleteNodeHandler *handlers.DeleteNodeHandler,
	bulkDeleteHandler *handlers.BulkDeleteNodesHandler,
	compressNodeHandler *handlers.CompressNodeHandler,
	metrics *observability.Metrics,
) *commandbus.CommandBus {
	bus := commandbus.NewCommandBusWithDependencies(nil, metrics)

	bus.Register(commands.CreateNodeCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd commandbus.Command) error {
			typed, ok := cmd.(commands.CreateNodeCommand)
			if !ok {
				return fmt.Errorf("invalid command type for CreateNodeCommand")
			}
			_, err := createNodeHandler.Handle(ctx, typed)
			return err
		},
	})

	bus.Register(handlers.AttachEmbeddingCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd commandbus.Command) error {
			typed, ok := cmd.(handlers.AttachEmbeddingCommand)
			if !ok {
				return fmt.Errorf("invalid command type for AttachEmbeddingCommand")
			}
			return embeddingOrchestrator.Handle(ctx, typed)
		},
	})

	bus.Register(handlers.UpdateNodeCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd commandbus.Command) error {
			typed, ok := cmd.(handlers.UpdateNodeCommand)
			if !ok {
				return fmt.Errorf("invalid command type for UpdateNodeCommand")
			}
			return updateNodeHandler.Handle(ctx, typed)
		},
	})

	bus.Register(handlers.DeleteNodeCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd commandbus.Command) error {
			typed, ok := cmd.(handlers.DeleteNodeCommand)
			if !ok {
				return fmt.Errorf("invalid command type for DeleteNodeCommand")
			}
			return deleteNodeHandler.Handle(ctx, typed)
		},
	})

	bus.Register(handlers.BulkDeleteNodesCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd commandbus.Command) error {
			typed, ok := cmd.(handlers.BulkDeleteNodesCommand)
			if !ok {
				return fmt.Errorf("invalid command type for BulkDeleteNodesCommand")
			}
			_, err := bulkDeleteHandler.Handle(ctx, typed)
			return err
		},
	})

	bus.Register(handlers.CompressNodeCommand{}, &CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd commandbus.Command) error {
			typed, ok := cmd.(handlers.CompressNodeCommand)
			if !ok {
				return fmt.Errorf("invalid command type for CompressNodeCommand")
			}
			return compressNodeHandler.Handle(ctx, typed)
		},
	})

	return bus
}

// QueryHandlerAdapter adapts a typed query handler function to the
// generic querybus.QueryHandler interface.
type QueryHandlerAdapter struct {
	handler func(context.Context, querybus.Query) (interface{}, error)
}

// Handle implements querybus.QueryHandler.
func (a *QueryHandlerAdapter) Handle(ctx context.Context, query querybus.Query) (interface{}, error) {
	return a.handler(ctx, query)
}

// ProvideQueryBus creates the query bus and registers every read handler.
func ProvideQueryBus(
	getUserGraphHandler *queryhandlers.GetUserGraphHandler,
	getNodeHandler *queryhandlers.GetNodeHandler,
) *querybus.QueryBus {
	bus := querybus.NewQueryBus()

	bus.Register(queries.GetUserGraphQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			typed, ok := query.(queries.GetUserGraphQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type for GetUserGraphQuery")
			}
			return getUserGraphHandler.Handle(ctx, typed)
		},
	})

	bus.Register(queries.GetNodeQuery{}, &QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			typed, ok := query.(queries.GetNodeQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type for GetNodeQuery")
			}
			return getNodeHandler.Handle(ctx, typed)
		},
	})

	return bus
}

// ProvideGetUserGraphHandler wires the graph-snapshot query handler.
func ProvideGetUserGraphHandler(graphRepo ports.GraphRepository, nodeRepo ports.NodeRepository, edgeRepo ports.EdgeRepository, logger *zap.Logger) *queryhandlers.GetUserGraphHandler {
	return queryhandlers.NewGetUserGraphHandler(graphRepo, nodeRepo, edgeRepo, logger)
}

// ProvideGetNodeHandler wires the single-node query handler.
func ProvideGetNodeHandler(nodeRepo ports.NodeRepository) *queryhandlers.GetNodeHandler {
	return queryhandlers.NewGetNodeHandler(nodeRepo)
}

// ProvideUpdateNodeHandler wires the node-update command handler.
func ProvideUpdateNodeHandler(nodeRepo ports.NodeRepository, eventBus ports.EventBus, logger *zap.Logger) *handlers.UpdateNodeHandler {
	return handlers.NewUpdateNodeHandler(nodeRepo, eventBus, logger)
}

// ProvideDeleteNodeHandler wires the node-deletion command handler.
func ProvideDeleteNodeHandler(nodeRepo ports.NodeRepository, edgeRepo ports.EdgeRepository, graphRepo ports.GraphRepository, eventBus ports.EventBus, logger *zap.Logger) *handlers.DeleteNodeHandler {
	return handlers.NewDeleteNodeHandler(nodeRepo, edgeRepo, graphRepo, eventBus, logger)
}

// ProvideBulkDeleteNodesHandler wires the bulk node-deletion command handler.
func ProvideBulkDeleteNodesHandler(nodeRepo ports.NodeRepository, edgeRepo ports.EdgeRepository, graphRepo ports.GraphRepository, logger *zap.Logger) *handlers.BulkDeleteNodesHandler {
	return handlers.NewBulkDeleteNodesHandler(nodeRepo, edgeRepo, graphRepo, logger)
}

// ProvideCompressNodeHandler wires the lifecycle-compression command handler.
func ProvideCompressNodeHandler(nodeRepo ports.NodeRepository, logger *zap.Logger) *handlers.CompressNodeHandler {
	return handlers.NewCompressNodeHandler(nodeRepo, logger)
}

// ProvideInMemoryCache creates a simple in-memory cache.
// In production this would be backed by Redis or a similar shared store.
func ProvideInMemoryCache() ports.Cache {
	return NewInMemoryCache()
}
