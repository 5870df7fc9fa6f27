package dynamodb

import (
	"context"
	"fmt"
	"time"

	"synapse/application/ports"
	"synapse/domain/core/entities"
	"synapse/domain/core/primitives"
	"synapse/domain/core/valueobjects"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// NodeRepository implements ports.NodeRepository on a single DynamoDB
// table, storing one item per node keyed by its owning user and a
// GSI1 entry keyed by node ID for direct lookups.
type NodeRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewNodeRepository creates a new NodeRepository.
func NewNodeRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.NodeRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NodeRepository{client: client, tableName: tableName, logger: logger}
}

// nodeItem is the denormalized DynamoDB representation of a node.
type nodeItem struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`

	EntityType string `dynamodbav:"EntityType"`
	NodeID     string `dynamodbav:"NodeID"`
	UserID     string `dynamodbav:"UserID"`
	GraphID    string `dynamodbav:"GraphID"`
	NodeType   string `dynamodbav:"NodeType"`
	Subtype    string `dynamodbav:"Subtype"`

	Title   string `dynamodbav:"Title"`
	Body    string `dynamodbav:"Body"`
	Summary string `dynamodbav:"Summary,omitempty"`
	Format  string `dynamodbav:"Format"`

	EmbeddingVector     []float32 `dynamodbav:"EmbeddingVector,omitempty"`
	EmbeddingDimensions int       `dynamodbav:"EmbeddingDimensions,omitempty"`
	EmbeddingModel      string    `dynamodbav:"EmbeddingModel,omitempty"`
	EmbeddingContextHash string   `dynamodbav:"EmbeddingContextHash,omitempty"`
	EmbeddingCreatedAt  string    `dynamodbav:"EmbeddingCreatedAt,omitempty"`
	EmbeddingProvisional bool     `dynamodbav:"EmbeddingProvisional,omitempty"`
	EmbeddingVersion    int       `dynamodbav:"EmbeddingVersion,omitempty"`

	Stability      float64 `dynamodbav:"Stability"`
	Difficulty     float64 `dynamodbav:"Difficulty"`
	AccessCount    int     `dynamodbav:"AccessCount"`
	LastAccessedAt string  `dynamodbav:"LastAccessedAt,omitempty"`

	Lifecycle string `dynamodbav:"Lifecycle"`
	Depth     string `dynamodbav:"Depth"`

	IngestionAt       string `dynamodbav:"IngestionAt"`
	IngestionTimezone string `dynamodbav:"IngestionTimezone"`
	EventAt           string `dynamodbav:"EventAt,omitempty"`

	ProvenanceSource     string `dynamodbav:"ProvenanceSource,omitempty"`
	ProvenanceConfidence float64 `dynamodbav:"ProvenanceConfidence,omitempty"`

	CompressedInto   string `dynamodbav:"CompressedInto,omitempty"`
	CompressedAt     string `dynamodbav:"CompressedAt,omitempty"`
	RestorableUntil  string `dynamodbav:"RestorableUntil,omitempty"`

	Tags []string `dynamodbav:"Tags,omitempty"`

	CreatedAt   string `dynamodbav:"CreatedAt"`
	UpdatedAt   string `dynamodbav:"UpdatedAt"`
	SyncVersion int    `dynamodbav:"SyncVersion"`
}

func toNodeItem(n *entities.Node) nodeItem {
	content := n.Content()
	neural := n.Neural()
	temporal := n.Temporal()
	provenance := n.Provenance()
	compression := n.Compression()

	item := nodeItem{
		PK:     fmt.Sprintf("USER#%s", n.UserID()),
		SK:     fmt.Sprintf("NODE#%s", n.ID().String()),
		GSI1PK: fmt.Sprintf("NODEID#%s", n.ID().String()),
		GSI1SK: "METADATA",

		EntityType: "NODE",
		NodeID:     n.ID().String(),
		UserID:     n.UserID(),
		GraphID:    n.GraphID(),
		NodeType:   string(n.Type()),
		Subtype:    n.Subtype(),

		Title:   content.Title(),
		Body:    content.Body(),
		Summary: content.Summary(0),
		Format:  string(content.Format()),

		Stability:   neural.Stability,
		Difficulty:  neural.Difficulty,
		AccessCount: neural.AccessCount,

		Lifecycle: string(n.Lifecycle()),
		Depth:     string(n.ExtractionDepth()),

		IngestionAt:       temporal.Ingestion.Timestamp.Format(time.RFC3339),
		IngestionTimezone: temporal.Ingestion.Timezone,

		ProvenanceSource:     provenance.Source,
		ProvenanceConfidence: provenance.Confidence,

		Tags: n.GetTags(),

		CreatedAt:   n.CreatedAt().Format(time.RFC3339),
		UpdatedAt:   n.UpdatedAt().Format(time.RFC3339),
		SyncVersion: n.SyncVersion(),
	}

	if !neural.LastAccessedAt.IsZero() {
		item.LastAccessedAt = neural.LastAccessedAt.Format(time.RFC3339)
	}
	if temporal.Event != nil {
		item.EventAt = temporal.Event.Timestamp.Format(time.RFC3339)
	}
	if emb := n.Embedding(); emb != nil {
		item.EmbeddingVector = emb.Vector
		item.EmbeddingDimensions = emb.Dimensions
		item.EmbeddingModel = emb.Model
		item.EmbeddingContextHash = emb.ContextHash
		item.EmbeddingCreatedAt = emb.CreatedAt.Format(time.RFC3339)
		item.EmbeddingProvisional = emb.Provisional
		item.EmbeddingVersion = emb.Version
	}
	if compression.IsCompressed() {
		item.CompressedInto = compression.CompressedInto.String()
		item.CompressedAt = compression.CompressedAt.Format(time.RFC3339)
		item.RestorableUntil = compression.RestorableUntil.Format(time.RFC3339)
	}

	return item
}

func fromNodeItem(item nodeItem) (*entities.Node, error) {
	id, err := valueobjects.NewNodeIDFromString(item.NodeID)
	if err != nil {
		return nil, fmt.Errorf("invalid node ID: %w", err)
	}

	content, err := valueobjects.NewNodeContent(item.Title, item.Body, valueobjects.ContentFormat(item.Format))
	if err != nil {
		return nil, fmt.Errorf("invalid node content: %w", err)
	}
	if item.Summary != "" {
		content = content.WithSummary(item.Summary)
	}

	var embedding *valueobjects.NodeEmbedding
	if len(item.EmbeddingVector) > 0 {
		createdAt, _ := time.Parse(time.RFC3339, item.EmbeddingCreatedAt)
		embedding = &valueobjects.NodeEmbedding{
			Vector:      primitives.Vector(item.EmbeddingVector),
			Dimensions:  item.EmbeddingDimensions,
			Model:       item.EmbeddingModel,
			ContextHash: item.EmbeddingContextHash,
			CreatedAt:   createdAt,
			Provisional: item.EmbeddingProvisional,
			Version:     item.EmbeddingVersion,
		}
	}

	ingestionAt, _ := time.Parse(time.RFC3339, item.IngestionAt)
	temporal := valueobjects.TemporalModel{
		Ingestion: valueobjects.Ingestion{Timestamp: ingestionAt, Timezone: item.IngestionTimezone},
	}
	if item.EventAt != "" {
		eventAt, _ := time.Parse(time.RFC3339, item.EventAt)
		temporal.Event = &valueobjects.EventTime{Timestamp: eventAt, Source: valueobjects.EventSourceExplicit, Confidence: 1.0}
	}

	neural := entities.NeuralState{
		Stability:   item.Stability,
		Difficulty:  item.Difficulty,
		AccessCount: item.AccessCount,
	}
	if item.LastAccessedAt != "" {
		neural.LastAccessedAt, _ = time.Parse(time.RFC3339, item.LastAccessedAt)
	}

	var compression entities.CompressionState
	if item.CompressedInto != "" {
		summaryID, err := valueobjects.NewNodeIDFromString(item.CompressedInto)
		if err != nil {
			return nil, fmt.Errorf("invalid compressed-into node ID: %w", err)
		}
		compressedAt, _ := time.Parse(time.RFC3339, item.CompressedAt)
		restorableUntil, _ := time.Parse(time.RFC3339, item.RestorableUntil)
		compression = entities.CompressionState{
			CompressedInto:  &summaryID,
			CompressedAt:    &compressedAt,
			RestorableUntil: &restorableUntil,
		}
	}

	createdAt, _ := time.Parse(time.RFC3339, item.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, item.UpdatedAt)

	node, err := entities.ReconstructNode(
		id,
		item.UserID,
		item.GraphID,
		entities.NodeType(item.NodeType),
		content,
		embedding,
		neural,
		entities.LifecycleStage(item.Lifecycle),
		entities.ExtractionDepth(item.Depth),
		temporal,
		entities.Provenance{Source: item.ProvenanceSource, Confidence: item.ProvenanceConfidence},
		compression,
		entities.Metadata{Tags: item.Tags},
		nil,
		createdAt,
		updatedAt,
		item.SyncVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct node: %w", err)
	}
	if item.Subtype != "" {
		node.SetSubtype(item.Subtype, updatedAt)
	}
	return node, nil
}

// Save persists a node, overwriting any existing item with the same ID.
func (r *NodeRepository) Save(ctx context.Context, node *entities.Node) error {
	av, err := attributevalue.MarshalMap(toNodeItem(node))
	if err != nil {
		return fmt.Errorf("failed to marshal node: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(r.tableName), Item: av}); err != nil {
		return fmt.Errorf("failed to save node: %w", err)
	}
	return nil
}

// GetByID retrieves a node by ID via GSI1.
func (r *NodeRepository) GetByID(ctx context.Context, id valueobjects.NodeID) (*entities.Node, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("NODEID#%s", id.String())},
			":sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query node: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("node not found: %s", id.String())
	}
	var item nodeItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node: %w", err)
	}
	return fromNodeItem(item)
}

// GetByUserID retrieves every node belonging to userID.
func (r *NodeRepository) GetByUserID(ctx context.Context, userID string) ([]*entities.Node, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", userID)},
			":sk": &types.AttributeValueMemberS{Value: "NODE#"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}

	nodes := make([]*entities.Node, 0, len(result.Items))
	for _, rawItem := range result.Items {
		var item nodeItem
		if err := attributevalue.UnmarshalMap(rawItem, &item); err != nil {
			r.logger.Warn("failed to unmarshal node item", zap.Error(err))
			continue
		}
		node, err := fromNodeItem(item)
		if err != nil {
			r.logger.Warn("failed to reconstruct node", zap.String("nodeID", item.NodeID), zap.Error(err))
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Delete removes a node by ID. Since the primary key requires the
// owning user, this looks the node up first via GSI1.
func (r *NodeRepository) Delete(ctx context.Context, id valueobjects.NodeID) error {
	node, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", node.UserID())},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("NODE#%s", id.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	return nil
}

// Search applies a repository-level filter pass ahead of lexical/semantic
// scoring (user scope plus optional type/lifecycle/tag filters).
func (r *NodeRepository) Search(ctx context.Context, criteria ports.SearchCriteria) ([]*entities.Node, error) {
	nodes, err := r.GetByUserID(ctx, criteria.UserID)
	if err != nil {
		return nil, err
	}

	filtered := make([]*entities.Node, 0, len(nodes))
	for _, n := range nodes {
		if len(criteria.NodeTypes) > 0 && !containsNodeType(criteria.NodeTypes, n.Type()) {
			continue
		}
		if len(criteria.Lifecycle) > 0 && !containsLifecycle(criteria.Lifecycle, n.Lifecycle()) {
			continue
		}
		if len(criteria.Tags) > 0 && !hasAnyTag(n.GetTags(), criteria.Tags) {
			continue
		}
		filtered = append(filtered, n)
	}

	if criteria.Limit > 0 && criteria.Limit < len(filtered) {
		offset := criteria.Offset
		if offset > len(filtered) {
			offset = len(filtered)
		}
		end := offset + criteria.Limit
		if end > len(filtered) {
			end = len(filtered)
		}
		filtered = filtered[offset:end]
	}

	return filtered, nil
}

func containsNodeType(types []entities.NodeType, t entities.NodeType) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

func containsLifecycle(stages []entities.LifecycleStage, s entities.LifecycleStage) bool {
	for _, want := range stages {
		if want == s {
			return true
		}
	}
	return false
}

func hasAnyTag(nodeTags, wanted []string) bool {
	set := make(map[string]bool, len(nodeTags))
	for _, t := range nodeTags {
		set[t] = true
	}
	for _, w := range wanted {
		if set[w] {
			return true
		}
	}
	return false
}

// BulkSave saves many nodes, continuing past individual failures.
func (r *NodeRepository) BulkSave(ctx context.Context, nodes []*entities.Node) error {
	var firstErr error
	for _, n := range nodes {
		if err := r.Save(ctx, n); err != nil {
			r.logger.Warn("failed to save node in bulk save", zap.String("nodeID", n.ID().String()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// DeleteBatch deletes many nodes, continuing past individual failures.
func (r *NodeRepository) DeleteBatch(ctx context.Context, nodeIDs []valueobjects.NodeID) error {
	var firstErr error
	for _, id := range nodeIDs {
		if err := r.Delete(ctx, id); err != nil {
			r.logger.Warn("failed to delete node in batch delete", zap.String("nodeID", id.String()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
