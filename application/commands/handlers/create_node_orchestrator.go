package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"synapse/application/commands"
	"synapse/application/ports"
	"synapse/domain/config"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
	"synapse/domain/services/edgeweight"
	"synapse/domain/services/similarity"
)

// AttachEmbeddingCommand carries a freshly computed embedding for a
// node that was created without one. Embedding computation is done by
// the caller (an EmbeddingProvider-backed worker) outside this
// handler, so Handle never blocks on a model call.
type AttachEmbeddingCommand struct {
	NodeID    valueobjects.NodeID
	Embedding valueobjects.NodeEmbedding
}

// Validate validates the command.
func (cmd AttachEmbeddingCommand) Validate() error {
	if cmd.NodeID.String() == "" {
		return fmt.Errorf("node ID is required")
	}
	return nil
}

// EmbeddingOrchestrator attaches an embedding to a node and, using
// that embedding, evaluates similarity against the user's recent nodes
// to create or flag edges. This is the asynchronous continuation of
// node creation: CreateNodeHandler persists the node immediately,
// this orchestrator runs once the embedding pipeline produces a
// vector for it.
type EmbeddingOrchestrator struct {
	nodeRepo       ports.NodeRepository
	edgeRepo       ports.EdgeRepository
	graphRepo      ports.GraphRepository
	eventPublisher ports.EventPublisher
	similarity     *similarity.Maintainer
	edgeBuilder    *edgeweight.Builder
	cfg            config.DomainConfig
	logger         *zap.Logger
}

// NewEmbeddingOrchestrator constructs an EmbeddingOrchestrator bound to
// the given repositories and domain configuration.
func NewEmbeddingOrchestrator(
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	graphRepo ports.GraphRepository,
	eventPublisher ports.EventPublisher,
	cfg config.DomainConfig,
	logger *zap.Logger,
) *EmbeddingOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingOrchestrator{
		nodeRepo:       nodeRepo,
		edgeRepo:       edgeRepo,
		graphRepo:      graphRepo,
		eventPublisher: eventPublisher,
		similarity:     similarity.NewMaintainer(cfg.Similarity),
		edgeBuilder:    edgeweight.NewBuilder(cfg.EdgeWeight),
		cfg:            cfg,
		logger:         logger,
	}
}

// Handle attaches the embedding, then evaluates it against the user's
// recent nodes to create similarity edges or flag near-duplicates.
func (o *EmbeddingOrchestrator) Handle(ctx context.Context, cmd AttachEmbeddingCommand) error {
	now := time.Now()

	node, err := o.nodeRepo.GetByID(ctx, cmd.NodeID)
	if err != nil {
		return fmt.Errorf("failed to load node for embedding attachment: %w", err)
	}

	if err := node.AttachEmbedding(cmd.Embedding, now); err != nil {
		return fmt.Errorf("failed to attach embedding: %w", err)
	}
	if err := o.nodeRepo.Save(ctx, node); err != nil {
		return fmt.Errorf("failed to save embedded node: %w", err)
	}

	graph, err := o.graphRepo.GetOrCreateForUser(ctx, node.UserID())
	if err != nil {
		return fmt.Errorf("failed to load graph for similarity evaluation: %w", err)
	}

	recent, err := o.nodeRepo.GetByUserID(ctx, node.UserID())
	if err != nil {
		return fmt.Errorf("failed to load recent nodes: %w", err)
	}

	candidates := make([]similarity.Candidate, 0, len(recent))
	for _, other := range recent {
		if other.ID().Equals(node.ID()) || other.Embedding() == nil {
			continue
		}
		candidates = append(candidates, similarity.Candidate{NodeID: other.ID(), Embedding: other.Embedding().Vector})
	}
	candidates = o.similarity.RecentWindow(candidates)

	decisions, err := o.similarity.EvaluateNewNode(node.ID(), cmd.Embedding.Vector, candidates)
	if err != nil {
		return fmt.Errorf("failed to evaluate similarity: %w", err)
	}

	edgesCreated := 0
	for _, decision := range decisions {
		if decision.Action != similarity.ActionCreateEdge {
			continue
		}
		baseWeight := similarity.BaseWeightForSimilarity(o.cfg.Similarity, o.edgeBuilder.BaseWeight(entities.EdgeTypeSimilarTo), decision.Similarity)
		edge, err := o.edgeBuilder.CreateTyped(node.ID(), decision.CandidateID, entities.EdgeTypeSimilarTo, true, entities.CreationSimilarity, now)
		if err != nil {
			o.logger.Warn("failed to build similarity edge", zap.Error(err))
			continue
		}
		edge.AdjustLearned(baseWeight - edge.Weight().Base)
		if err := graph.AddEdge(edge, now); err != nil {
			o.logger.Warn("failed to add similarity edge to graph", zap.Error(err))
			continue
		}
		if err := o.edgeRepo.Save(ctx, graph.ID().String(), edge); err != nil {
			o.logger.Warn("failed to persist similarity edge", zap.Error(err))
			continue
		}
		edgesCreated++
	}

	if edgesCreated > 0 {
		if err := o.graphRepo.Save(ctx, graph); err != nil {
			o.logger.Error("failed to save graph after similarity edges", zap.Error(err))
		}
	}

	evts := node.GetUncommittedEvents()
	if len(evts) > 0 {
		if err := o.eventPublisher.PublishBatch(ctx, evts); err != nil {
			o.logger.Error("failed to publish embedding events", zap.Error(err))
		}
		node.MarkEventsAsCommitted()
	}

	o.logger.Info("embedding attached",
		zap.String("nodeID", node.ID().String()),
		zap.Int("similarityEdgesCreated", edgesCreated),
	)

	return nil
}
