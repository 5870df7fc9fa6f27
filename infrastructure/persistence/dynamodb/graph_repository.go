package dynamodb

import (
	"context"
	"fmt"
	"time"

	"synapse/application/ports"
	"synapse/domain/core/aggregates"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// GraphRepository implements ports.GraphRepository: one graph
// aggregate per user. The graph item itself stores only identity and
// timestamps - its node/edge content is loaded separately through
// NodeRepository/EdgeRepository and assembled by the caller (see
// GetOrCreateForUser), since Graph.AddNode/AddEdge re-validate the
// structural invariants a bare unmarshal would skip.
type GraphRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
	nodeRepo  ports.NodeRepository
	edgeRepo  ports.EdgeRepository
}

// NewGraphRepository creates a new GraphRepository. nodeRepo/edgeRepo
// are used to assemble a full aggregate on GetByUserID/GetOrCreateForUser.
func NewGraphRepository(client *dynamodb.Client, tableName string, nodeRepo ports.NodeRepository, edgeRepo ports.EdgeRepository, logger *zap.Logger) ports.GraphRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphRepository{client: client, tableName: tableName, logger: logger, nodeRepo: nodeRepo, edgeRepo: edgeRepo}
}

// graphItem is the DynamoDB item structure for a graph's identity
// record. Node/edge counts are not stored here - Graph.Metrics()
// computes them from the live aggregate instead of a cached counter
// that could drift.
type graphItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`

	EntityType string `dynamodbav:"EntityType"`
	GraphID    string `dynamodbav:"GraphID"`
	UserID     string `dynamodbav:"UserID"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

func toGraphItem(g *aggregates.Graph) graphItem {
	return graphItem{
		PK:         fmt.Sprintf("USER#%s", g.UserID()),
		SK:         fmt.Sprintf("GRAPH#%s", g.ID().String()),
		GSI1PK:     fmt.Sprintf("GRAPHID#%s", g.ID().String()),
		GSI1SK:     "METADATA",
		EntityType: "GRAPH",
		GraphID:    g.ID().String(),
		UserID:     g.UserID(),
		CreatedAt:  g.CreatedAt().Format(time.RFC3339),
		UpdatedAt:  g.UpdatedAt().Format(time.RFC3339),
	}
}

// Save persists the graph's identity record. The node/edge content it
// holds in memory is saved independently by the caller through
// NodeRepository/EdgeRepository - this keeps each repository's write
// path single-purpose rather than cascading a graph save into a
// transaction over every node and edge it has ever touched.
func (r *GraphRepository) Save(ctx context.Context, graph *aggregates.Graph) error {
	av, err := attributevalue.MarshalMap(toGraphItem(graph))
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(r.tableName), Item: av}); err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	r.logger.Debug("graph saved", zap.String("graphID", graph.ID().String()), zap.String("userID", graph.UserID()))
	return nil
}

// GetByUserID loads the user's graph identity record and assembles the
// full aggregate from the node and edge repositories.
func (r *GraphRepository) GetByUserID(ctx context.Context, userID string) (*aggregates.Graph, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", userID)},
			":sk": &types.AttributeValueMemberS{Value: "GRAPH#"},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query graph: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("no graph found for user: %s", userID)
	}

	var item graphItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph: %w", err)
	}

	return r.assembleGraph(ctx, item)
}

func (r *GraphRepository) assembleGraph(ctx context.Context, item graphItem) (*aggregates.Graph, error) {
	createdAt, _ := time.Parse(time.RFC3339, item.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, item.UpdatedAt)

	loadedNodes, err := r.nodeRepo.GetByUserID(ctx, item.UserID)
	if err != nil {
		r.logger.Warn("failed to load nodes for graph", zap.String("graphID", item.GraphID), zap.Error(err))
	}
	loadedEdges, err := r.edgeRepo.GetByGraphID(ctx, item.GraphID)
	if err != nil {
		r.logger.Warn("failed to load edges for graph", zap.String("graphID", item.GraphID), zap.Error(err))
	}

	return aggregates.ReconstructGraph(aggregates.GraphID(item.GraphID), item.UserID, loadedNodes, loadedEdges, createdAt, updatedAt)
}

// GetOrCreateForUser loads the user's graph, creating and persisting a
// fresh empty one the first time a user is seen. The PutItem uses a
// conditional expression so two concurrent first-search requests for
// the same new user race safely: the loser's write is rejected and it
// re-reads the winner's graph rather than creating a duplicate.
func (r *GraphRepository) GetOrCreateForUser(ctx context.Context, userID string) (*aggregates.Graph, error) {
	existing, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return existing, nil
	}

	now := time.Now()
	graph, err := aggregates.NewGraph(userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph: %w", err)
	}

	av, err := attributevalue.MarshalMap(toGraphItem(graph))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		// Lost the race to a concurrent creator; read back whichever
		// graph won.
		if existing, reErr := r.GetByUserID(ctx, userID); reErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create graph: %w", err)
	}

	r.logger.Info("graph created for user", zap.String("graphID", graph.ID().String()), zap.String("userID", userID))
	return graph, nil
}

// Delete removes a graph's identity record by ID. The node/edge
// content is not cascaded here - callers that want a full teardown
// should delete nodes (which also removes their edges) first.
func (r *GraphRepository) Delete(ctx context.Context, id aggregates.GraphID) error {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("GRAPHID#%s", id.String())},
			":sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("failed to find graph for deletion: %w", err)
	}
	if len(result.Items) == 0 {
		return fmt.Errorf("graph not found: %s", id.String())
	}

	var item graphItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return fmt.Errorf("failed to unmarshal graph: %w", err)
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: item.PK},
			"SK": &types.AttributeValueMemberS{Value: item.SK},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete graph: %w", err)
	}
	return nil
}

// StorageAdapter bundles the three DynamoDB-backed repositories behind
// the ports.StorageAdapter interface.
type StorageAdapter struct {
	nodes  ports.NodeRepository
	edges  ports.EdgeRepository
	graphs ports.GraphRepository
}

// NewStorageAdapter wires up a NodeRepository, EdgeRepository, and
// GraphRepository sharing the same DynamoDB client and table.
func NewStorageAdapter(client *dynamodb.Client, tableName string, logger *zap.Logger) *StorageAdapter {
	nodeRepo := NewNodeRepository(client, tableName, logger)
	edgeRepo := NewEdgeRepository(client, tableName, logger)
	graphRepo := NewGraphRepository(client, tableName, nodeRepo, edgeRepo, logger)
	return &StorageAdapter{nodes: nodeRepo, edges: edgeRepo, graphs: graphRepo}
}

func (a *StorageAdapter) Nodes() ports.NodeRepository   { return a.nodes }
func (a *StorageAdapter) Edges() ports.EdgeRepository    { return a.edges }
func (a *StorageAdapter) Graphs() ports.GraphRepository  { return a.graphs }
