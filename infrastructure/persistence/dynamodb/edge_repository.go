package dynamodb

import (
	"context"
	"fmt"
	"time"

	"synapse/application/ports"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// EdgeRepository implements ports.EdgeRepository on the same table as
// NodeRepository. Edges are keyed by their owning graph; GSI1 and GSI2
// index an edge by its source and target node respectively so a
// traversal can find every edge touching a node from either side
// without a table scan.
type EdgeRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewEdgeRepository creates a new EdgeRepository.
func NewEdgeRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.EdgeRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EdgeRepository{client: client, tableName: tableName, logger: logger}
}

type edgeItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`
	GSI2PK string `dynamodbav:"GSI2PK"`
	GSI2SK string `dynamodbav:"GSI2SK"`

	EntityType     string `dynamodbav:"EntityType"`
	EdgeID         string `dynamodbav:"EdgeID"`
	GraphID        string `dynamodbav:"GraphID"`
	SourceID       string `dynamodbav:"SourceID"`
	TargetID       string `dynamodbav:"TargetID"`
	EdgeType       string `dynamodbav:"EdgeType"`
	Bidirectional  bool   `dynamodbav:"Bidirectional"`

	WeightBase         float64 `dynamodbav:"WeightBase"`
	WeightLearned      float64 `dynamodbav:"WeightLearned"`
	WeightCoActivation float64 `dynamodbav:"WeightCoActivation"`

	Status         string `dynamodbav:"Status"`
	CreationSource string `dynamodbav:"CreationSource"`

	NeuralStability          float64 `dynamodbav:"NeuralStability"`
	NeuralLastActivatedAt    string  `dynamodbav:"NeuralLastActivatedAt"`
	NeuralCoActivationCount  int     `dynamodbav:"NeuralCoActivationCount"`
	NeuralConsecutiveIgnored int     `dynamodbav:"NeuralConsecutiveIgnored"`
	NeuralActivationCount    int     `dynamodbav:"NeuralActivationCount"`

	CreatedAt string `dynamodbav:"CreatedAt"`
	ExpiresAt string `dynamodbav:"ExpiresAt,omitempty"`
}

func toEdgeItem(graphID string, e *entities.Edge) edgeItem {
	neural := e.Neural()
	weight := e.Weight()

	item := edgeItem{
		PK:     fmt.Sprintf("GRAPH#%s", graphID),
		SK:     fmt.Sprintf("EDGE#%s", e.ID().String()),
		GSI1PK: fmt.Sprintf("NODE#%s", e.SourceID().String()),
		GSI1SK: fmt.Sprintf("EDGE#%s", e.ID().String()),
		GSI2PK: fmt.Sprintf("NODE#%s", e.TargetID().String()),
		GSI2SK: fmt.Sprintf("EDGE#%s", e.ID().String()),

		EntityType:    "EDGE",
		EdgeID:        e.ID().String(),
		GraphID:       graphID,
		SourceID:      e.SourceID().String(),
		TargetID:      e.TargetID().String(),
		EdgeType:      string(e.Type()),
		Bidirectional: e.Bidirectional(),

		WeightBase:         weight.Base,
		WeightLearned:      weight.Learned,
		WeightCoActivation: weight.CoActivation,

		Status:         string(e.Status()),
		CreationSource: string(e.CreationSource()),

		NeuralStability:          neural.Stability,
		NeuralLastActivatedAt:    neural.LastActivatedAt.Format(time.RFC3339),
		NeuralCoActivationCount:  neural.CoActivationCount,
		NeuralConsecutiveIgnored: neural.ConsecutiveIgnored,
		NeuralActivationCount:    neural.ActivationCount,

		CreatedAt: e.CreatedAt().Format(time.RFC3339),
	}
	if e.ExpiresAt() != nil {
		item.ExpiresAt = e.ExpiresAt().Format(time.RFC3339)
	}
	return item
}

func fromEdgeItem(item edgeItem) (*entities.Edge, error) {
	id, err := valueobjects.NewEdgeIDFromString(item.EdgeID)
	if err != nil {
		return nil, fmt.Errorf("invalid edge ID: %w", err)
	}
	sourceID, err := valueobjects.NewNodeIDFromString(item.SourceID)
	if err != nil {
		return nil, fmt.Errorf("invalid source node ID: %w", err)
	}
	targetID, err := valueobjects.NewNodeIDFromString(item.TargetID)
	if err != nil {
		return nil, fmt.Errorf("invalid target node ID: %w", err)
	}

	lastActivatedAt, _ := time.Parse(time.RFC3339, item.NeuralLastActivatedAt)
	createdAt, _ := time.Parse(time.RFC3339, item.CreatedAt)

	var expiresAt *time.Time
	if item.ExpiresAt != "" {
		parsed, _ := time.Parse(time.RFC3339, item.ExpiresAt)
		expiresAt = &parsed
	}

	edge := entities.ReconstructEdge(
		id,
		sourceID,
		targetID,
		entities.EdgeType(item.EdgeType),
		item.Bidirectional,
		entities.EdgeWeight{Base: item.WeightBase, Learned: item.WeightLearned, CoActivation: item.WeightCoActivation},
		entities.EdgeStatus(item.Status),
		entities.CreationSource(item.CreationSource),
		entities.EdgeNeuralState{
			Stability:          item.NeuralStability,
			LastActivatedAt:    lastActivatedAt,
			CoActivationCount:  item.NeuralCoActivationCount,
			ConsecutiveIgnored: item.NeuralConsecutiveIgnored,
			ActivationCount:    item.NeuralActivationCount,
		},
		createdAt,
		expiresAt,
	)
	return edge, nil
}

// Save persists an edge under its owning graph.
func (r *EdgeRepository) Save(ctx context.Context, graphID string, edge *entities.Edge) error {
	av, err := attributevalue.MarshalMap(toEdgeItem(graphID, edge))
	if err != nil {
		return fmt.Errorf("failed to marshal edge: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(r.tableName), Item: av}); err != nil {
		return fmt.Errorf("failed to save edge: %w", err)
	}
	return nil
}

// GetByGraphID retrieves every edge belonging to a graph.
func (r *EdgeRepository) GetByGraphID(ctx context.Context, graphID string) ([]*entities.Edge, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("GRAPH#%s", graphID)},
			":sk": &types.AttributeValueMemberS{Value: "EDGE#"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	return unmarshalEdgeItems(r.logger, result.Items)
}

// GetByNodeID retrieves every edge touching nodeID from either side.
func (r *EdgeRepository) GetByNodeID(ctx context.Context, nodeID valueobjects.NodeID) ([]*entities.Edge, error) {
	seen := make(map[string]bool)
	edges := make([]*entities.Edge, 0)

	for _, index := range []string{"GSI1", "GSI2"} {
		result, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String(index),
			KeyConditionExpression: aws.String(index + "PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("NODE#%s", nodeID.String())},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query edges by node (%s): %w", index, err)
		}
		found, err := unmarshalEdgeItems(r.logger, result.Items)
		if err != nil {
			return nil, err
		}
		for _, e := range found {
			if !seen[e.ID().String()] {
				seen[e.ID().String()] = true
				edges = append(edges, e)
			}
		}
	}
	return edges, nil
}

// Delete removes the edge between sourceID and targetID in graphID, if
// its ID can first be resolved via a node-side query.
func (r *EdgeRepository) Delete(ctx context.Context, graphID string, sourceID, targetID valueobjects.NodeID) error {
	edges, err := r.GetByNodeID(ctx, sourceID)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if e.ConnectsNode(targetID) {
			_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(r.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("GRAPH#%s", graphID)},
					"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("EDGE#%s", e.ID().String())},
				},
			})
			if err != nil {
				return fmt.Errorf("failed to delete edge: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("edge not found between %s and %s", sourceID.String(), targetID.String())
}

// DeleteByNodeID removes every edge touching nodeID.
func (r *EdgeRepository) DeleteByNodeID(ctx context.Context, graphID string, nodeID valueobjects.NodeID) error {
	edges, err := r.GetByNodeID(ctx, nodeID)
	if err != nil {
		return err
	}
	var firstErr error
	for _, e := range edges {
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("GRAPH#%s", graphID)},
				"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("EDGE#%s", e.ID().String())},
			},
		})
		if err != nil {
			r.logger.Warn("failed to delete edge", zap.String("edgeID", e.ID().String()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// DeleteByNodeIDs removes every edge touching any of nodeIDs.
func (r *EdgeRepository) DeleteByNodeIDs(ctx context.Context, graphID string, nodeIDs []valueobjects.NodeID) error {
	var firstErr error
	for _, id := range nodeIDs {
		if err := r.DeleteByNodeID(ctx, graphID, id); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func unmarshalEdgeItems(logger *zap.Logger, rawItems []map[string]types.AttributeValue) ([]*entities.Edge, error) {
	edges := make([]*entities.Edge, 0, len(rawItems))
	for _, rawItem := range rawItems {
		var item edgeItem
		if err := attributevalue.UnmarshalMap(rawItem, &item); err != nil {
			logger.Warn("failed to unmarshal edge item", zap.Error(err))
			continue
		}
		edge, err := fromEdgeItem(item)
		if err != nil {
			logger.Warn("failed to reconstruct edge", zap.String("edgeID", item.EdgeID), zap.Error(err))
			continue
		}
		edges = append(edges, edge)
	}
	return edges, nil
}
