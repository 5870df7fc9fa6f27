// Package main implements the Lambda worker that attaches embeddings
// to newly created nodes. CreateNodeHandler persists a node without an
// embedding so the write path never blocks on a model call; this
// worker reacts to the resulting node.created event, computes the
// embedding, and hands it to the EmbeddingOrchestrator, which attaches
// it and runs similarity-edge evaluation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"synapse/application/commands/handlers"
	"synapse/application/ports"
	"synapse/domain/config"
	"synapse/domain/core/valueobjects"
	"synapse/domain/services/embedding"
	infraconfig "synapse/infrastructure/config"
	"synapse/infrastructure/di"
)

var (
	nodeRepo    ports.NodeRepository
	orchestrator *handlers.EmbeddingOrchestrator
	embedder    ports.EmbeddingProvider
	domainCfg   config.DomainConfig
)

func init() {
	cfg, err := infraconfig.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	container, err := di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize dependency container: %v", err)
	}

	nodeRepo = container.NodeRepo
	orchestrator = container.EmbeddingOrchestrator
	embedder = container.EmbeddingProvider
	domainCfg = container.DomainCfg

	log.Println("connect-node (embedding attach) worker initialized")
}

// nodeCreatedDetail is the EventBridge detail payload for node.created.
type nodeCreatedDetail struct {
	NodeID string `json:"node_id"`
	UserID string `json:"user_id"`
}

// attachEmbedding loads a node, runs it through the contextual
// embedding pipeline's prefix construction, calls the embedding
// provider, and hands the result to the orchestrator.
func attachEmbedding(ctx context.Context, nodeID string) error {
	id, err := valueobjects.NewNodeIDFromString(nodeID)
	if err != nil {
		return fmt.Errorf("invalid node ID %q: %w", nodeID, err)
	}

	node, err := nodeRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load node %s: %w", nodeID, err)
	}
	if !node.NeedsEmbedding() {
		return nil
	}

	content := node.Content()
	tmpl := embedding.SelectTemplate(node.Type(), node.Provenance().Source)
	prefix := embedding.BuildContextPrefix(domainCfg.Embedding, tmpl, embedding.PrefixInput{
		NodeType: node.Type(),
		SourceType: node.Provenance().Source,
		Title:    content.Title(),
		Keywords: node.GetTags(),
		Body:     content.Body(),
	})

	vector, err := embedder.Embed(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to embed node %s: %w", nodeID, err)
	}

	nodeEmbedding := valueobjects.NodeEmbedding{
		Vector:        vector,
		Dimensions:    embedder.Dimensions(),
		Model:         embedder.ModelID(),
		ContextPrefix: prefix,
		CreatedAt:     node.UpdatedAt(),
		Version:       1,
	}

	cmd := handlers.AttachEmbeddingCommand{NodeID: id, Embedding: nodeEmbedding}
	if err := orchestrator.Handle(ctx, cmd); err != nil {
		return fmt.Errorf("failed to attach embedding to node %s: %w", nodeID, err)
	}

	return nil
}

// handler processes node.created events delivered via EventBridge, or
// a direct {"node_id": "...", "user_id": "..."} invocation for local
// testing and manual re-embedding.
func handler(ctx context.Context, event json.RawMessage) error {
	var cloudWatchEvent awsevents.CloudWatchEvent
	if err := json.Unmarshal(event, &cloudWatchEvent); err == nil && cloudWatchEvent.DetailType != "" {
		if cloudWatchEvent.DetailType != "node.created" {
			log.Printf("ignoring event of type %s", cloudWatchEvent.DetailType)
			return nil
		}
		var detail nodeCreatedDetail
		if err := json.Unmarshal(cloudWatchEvent.Detail, &detail); err != nil {
			return fmt.Errorf("failed to parse node.created detail: %w", err)
		}
		return attachEmbedding(ctx, detail.NodeID)
	}

	var detail nodeCreatedDetail
	if err := json.Unmarshal(event, &detail); err != nil {
		return fmt.Errorf("unable to parse event: %w", err)
	}
	return attachEmbedding(ctx, detail.NodeID)
}

func main() {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		log.Println("Starting connect-node Lambda")
		lambda.Start(handler)
		return
	}

	log.Println("Running in local test mode")
	testEvent, _ := json.Marshal(nodeCreatedDetail{NodeID: "test-node-123", UserID: "test-user-456"})
	if err := handler(context.Background(), testEvent); err != nil {
		log.Fatalf("Test request processing failed: %v", err)
	}
}
