package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"synapse/application/ports"
	"synapse/application/queries"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
	"synapse/domain/versioning"
)

// GetUserGraphHandler handles GetUserGraphQuery, returning a snapshot
// of a user's full node/edge graph for visualization or maintenance
// jobs. It is not on the retrieval hot path - Search bypasses it.
type GetUserGraphHandler struct {
	graphRepo ports.GraphRepository
	nodeRepo  ports.NodeRepository
	edgeRepo  ports.EdgeRepository
	logger    *zap.Logger
}

// NewGetUserGraphHandler creates a new handler instance.
func NewGetUserGraphHandler(
	graphRepo ports.GraphRepository,
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	logger *zap.Logger,
) *GetUserGraphHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GetUserGraphHandler{graphRepo: graphRepo, nodeRepo: nodeRepo, edgeRepo: edgeRepo, logger: logger}
}

// Handle executes the query.
func (h *GetUserGraphHandler) Handle(ctx context.Context, query queries.GetUserGraphQuery) (*queries.GetUserGraphResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	graph, err := h.graphRepo.GetOrCreateForUser(ctx, query.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}

	nodes, err := h.nodeRepo.GetByUserID(ctx, query.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	edges, err := h.edgeRepo.GetByGraphID(ctx, graph.ID().String())
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}

	result := &queries.GetUserGraphResult{
		Nodes: make([]queries.NodeDTO, 0, len(nodes)),
		Edges: make([]queries.EdgeDTO, 0, len(edges)),
	}

	for _, node := range nodes {
		result.Nodes = append(result.Nodes, nodeToDTO(node))
	}

	for _, edge := range edges {
		result.Edges = append(result.Edges, queries.EdgeDTO{
			ID:              edge.ID().String(),
			SourceID:        edge.SourceID().String(),
			TargetID:        edge.TargetID().String(),
			Type:            string(edge.Type()),
			EffectiveWeight: edge.Weight().EffectiveWeight(),
			Bidirectional:   edge.Bidirectional(),
		})
	}

	metrics := graph.Metrics()
	checksum, err := versioning.Checksum(graph)
	if err != nil {
		h.logger.Warn("failed to compute graph checksum", zap.Error(err))
	}
	result.Stats = queries.GraphStats{
		NodeCount:    metrics.TotalNodes,
		EdgeCount:    metrics.TotalEdges,
		Density:      metrics.Density,
		AvgInDegree:  metrics.AvgInDegree,
		AvgOutDegree: metrics.AvgOutDegree,
		Checksum:     checksum,
	}

	h.logger.Debug("user graph retrieved",
		zap.String("userID", query.UserID),
		zap.Int("nodeCount", result.Stats.NodeCount),
		zap.Int("edgeCount", result.Stats.EdgeCount),
	)

	return result, nil
}

// GetNodeHandler handles GetNodeQuery.
type GetNodeHandler struct {
	nodeRepo ports.NodeRepository
}

// NewGetNodeHandler creates a new handler instance.
func NewGetNodeHandler(nodeRepo ports.NodeRepository) *GetNodeHandler {
	return &GetNodeHandler{nodeRepo: nodeRepo}
}

// Handle executes the query.
func (h *GetNodeHandler) Handle(ctx context.Context, query queries.GetNodeQuery) (*queries.NodeDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	nodeID, err := valueobjects.NewNodeIDFromString(query.NodeID)
	if err != nil {
		return nil, fmt.Errorf("invalid node ID: %w", err)
	}

	node, err := h.nodeRepo.GetByID(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	if node.UserID() != query.UserID {
		return nil, fmt.Errorf("node does not belong to user")
	}

	dto := nodeToDTO(node)
	return &dto, nil
}

func nodeToDTO(node *entities.Node) queries.NodeDTO {
	content := node.Content()
	return queries.NodeDTO{
		ID:          node.ID().String(),
		UserID:      node.UserID(),
		Type:        string(node.Type()),
		Title:       content.Title(),
		Content:     content.Body(),
		Format:      string(content.Format()),
		Lifecycle:   string(node.Lifecycle()),
		Tags:        node.GetTags(),
		AccessCount: node.Neural().AccessCount,
		CreatedAt:   node.CreatedAt().Format(time.RFC3339),
		UpdatedAt:   node.UpdatedAt().Format(time.RFC3339),
	}
}
