package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"synapse/application/ports"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
)

// BulkDeleteNodesCommand removes a batch of nodes and their edges
// outright (a hard delete, distinct from lifecycle compression).
type BulkDeleteNodesCommand struct {
	UserID  string   `json:"user_id" validate:"required"`
	NodeIDs []string `json:"node_ids" validate:"required,min=1"`
}

// Validate validates the command.
func (cmd BulkDeleteNodesCommand) Validate() error {
	if cmd.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if len(cmd.NodeIDs) == 0 {
		return fmt.Errorf("at least one node ID is required")
	}
	return nil
}

// BulkDeleteNodesResult reports per-node outcomes of a bulk delete.
type BulkDeleteNodesResult struct {
	DeletedCount int
	FailedIDs    []string
	Errors       []string
}

// BulkDeleteNodesHandler handles bulk delete commands.
type BulkDeleteNodesHandler struct {
	nodeRepo  ports.NodeRepository
	edgeRepo  ports.EdgeRepository
	graphRepo ports.GraphRepository
	logger    *zap.Logger
}

// NewBulkDeleteNodesHandler creates a new bulk delete handler.
func NewBulkDeleteNodesHandler(
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	graphRepo ports.GraphRepository,
	logger *zap.Logger,
) *BulkDeleteNodesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkDeleteNodesHandler{nodeRepo: nodeRepo, edgeRepo: edgeRepo, graphRepo: graphRepo, logger: logger}
}

// Handle executes the bulk delete command, returning a partial-success
// result even if some deletions fail.
func (h *BulkDeleteNodesHandler) Handle(ctx context.Context, cmd BulkDeleteNodesCommand) (*BulkDeleteNodesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	result := &BulkDeleteNodesResult{}

	var graphID string
	if graph, err := h.graphRepo.GetByUserID(ctx, cmd.UserID); err != nil {
		h.logger.Warn("no graph found for user", zap.String("userID", cmd.UserID), zap.Error(err))
	} else {
		graphID = graph.ID().String()
	}

	for _, nodeIDStr := range cmd.NodeIDs {
		nodeID, err := valueobjects.NewNodeIDFromString(nodeIDStr)
		if err != nil {
			result.FailedIDs = append(result.FailedIDs, nodeIDStr)
			result.Errors = append(result.Errors, fmt.Sprintf("invalid node ID %s: %v", nodeIDStr, err))
			continue
		}
		if err := h.deleteNode(ctx, nodeID, cmd.UserID, graphID); err != nil {
			result.FailedIDs = append(result.FailedIDs, nodeIDStr)
			result.Errors = append(result.Errors, fmt.Sprintf("failed to delete node %s: %v", nodeIDStr, err))
			continue
		}
		result.DeletedCount++
	}

	h.logger.Info("bulk delete completed",
		zap.String("userID", cmd.UserID),
		zap.Int("requested", len(cmd.NodeIDs)),
		zap.Int("deleted", result.DeletedCount),
		zap.Int("failed", len(result.FailedIDs)),
	)

	return result, nil
}

func (h *BulkDeleteNodesHandler) deleteNode(ctx context.Context, nodeID valueobjects.NodeID, userID, graphID string) error {
	node, err := h.nodeRepo.GetByID(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("node not found: %w", err)
	}
	if node.UserID() != userID {
		return fmt.Errorf("node does not belong to user")
	}

	if graphID != "" {
		if err := h.edgeRepo.DeleteByNodeID(ctx, graphID, nodeID); err != nil {
			h.logger.Warn("failed to delete edges for node", zap.String("nodeID", nodeID.String()), zap.Error(err))
		}
	}

	return h.nodeRepo.Delete(ctx, nodeID)
}

// CompressNodeCommand moves an eligible dormant node into a compressed
// lifecycle state, folding it into a summary node.
type CompressNodeCommand struct {
	UserID          string
	NodeID          valueobjects.NodeID
	SummaryID       valueobjects.NodeID
	RestorableUntil time.Time
}

// Validate validates the command.
func (cmd CompressNodeCommand) Validate() error {
	if cmd.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if cmd.NodeID.String() == "" {
		return fmt.Errorf("node ID is required")
	}
	return nil
}

// CompressNodeHandler applies a compression decision (made by the
// edgeweight service's eligibility check) to a node.
type CompressNodeHandler struct {
	nodeRepo ports.NodeRepository
	logger   *zap.Logger
}

// NewCompressNodeHandler constructs a CompressNodeHandler.
func NewCompressNodeHandler(nodeRepo ports.NodeRepository, logger *zap.Logger) *CompressNodeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompressNodeHandler{nodeRepo: nodeRepo, logger: logger}
}

// Handle compresses the node and persists the lifecycle transition.
func (h *CompressNodeHandler) Handle(ctx context.Context, cmd CompressNodeCommand) error {
	node, err := h.nodeRepo.GetByID(ctx, cmd.NodeID)
	if err != nil {
		return fmt.Errorf("failed to load node: %w", err)
	}
	if node.UserID() != cmd.UserID {
		return fmt.Errorf("node does not belong to user")
	}
	if node.Lifecycle() != entities.LifecycleDormant {
		return fmt.Errorf("node is not dormant, cannot compress")
	}

	now := time.Now()
	if err := node.Compress(cmd.SummaryID, now, cmd.RestorableUntil); err != nil {
		return fmt.Errorf("failed to compress node: %w", err)
	}
	if err := h.nodeRepo.Save(ctx, node); err != nil {
		return fmt.Errorf("failed to save compressed node: %w", err)
	}

	h.logger.Info("node compressed", zap.String("nodeID", cmd.NodeID.String()))
	return nil
}
