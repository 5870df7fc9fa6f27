package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"synapse/application/ports"
	"synapse/domain/core/valueobjects"
	"synapse/domain/events"
)

// DeleteNodeCommand requests the removal of a node and its edges.
type DeleteNodeCommand struct {
	NodeID string `json:"node_id" validate:"required"`
	UserID string `json:"user_id" validate:"required"`
}

// Validate validates the command.
func (cmd DeleteNodeCommand) Validate() error {
	if cmd.NodeID == "" {
		return fmt.Errorf("node ID is required")
	}
	if cmd.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	return nil
}

// DeleteNodeHandler handles node deletion commands.
type DeleteNodeHandler struct {
	nodeRepo  ports.NodeRepository
	edgeRepo  ports.EdgeRepository
	graphRepo ports.GraphRepository
	eventBus  ports.EventBus
	logger    *zap.Logger
}

// NewDeleteNodeHandler creates a new delete node handler.
func NewDeleteNodeHandler(
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	graphRepo ports.GraphRepository,
	eventBus ports.EventBus,
	logger *zap.Logger,
) *DeleteNodeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeleteNodeHandler{
		nodeRepo:  nodeRepo,
		edgeRepo:  edgeRepo,
		graphRepo: graphRepo,
		eventBus:  eventBus,
		logger:    logger,
	}
}

// Handle executes the delete node command.
func (h *DeleteNodeHandler) Handle(ctx context.Context, cmd DeleteNodeCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	nodeID, err := valueobjects.NewNodeIDFromString(cmd.NodeID)
	if err != nil {
		return fmt.Errorf("invalid node ID: %w", err)
	}

	node, err := h.nodeRepo.GetByID(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("failed to get node: %w", err)
	}
	if node.UserID() != cmd.UserID {
		return fmt.Errorf("node does not belong to user")
	}

	graph, err := h.graphRepo.GetByUserID(ctx, cmd.UserID)
	if err != nil {
		h.logger.Warn("failed to load graph for edge cleanup", zap.String("userID", cmd.UserID), zap.Error(err))
	} else {
		graphID := graph.ID().String()
		if err := h.edgeRepo.DeleteByNodeID(ctx, graphID, nodeID); err != nil {
			h.logger.Error("failed to delete edges for node", zap.String("nodeID", cmd.NodeID), zap.Error(err))
		}
		if err := graph.RemoveNode(nodeID, time.Now()); err != nil {
			h.logger.Warn("failed to remove node from graph aggregate", zap.Error(err))
		} else if err := h.graphRepo.Save(ctx, graph); err != nil {
			h.logger.Error("failed to save graph after node removal", zap.Error(err))
		}
	}

	if err := h.nodeRepo.Delete(ctx, nodeID); err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}

	content := node.Content()
	event := events.NewNodeDeletedEvent(nodeID, cmd.UserID, content.Title(), node.GetTags(), []string{}, node.UpdatedAt())
	if err := h.eventBus.Publish(ctx, event); err != nil {
		h.logger.Warn("failed to publish deletion event", zap.Error(err))
	}

	h.logger.Info("node deleted", zap.String("nodeID", cmd.NodeID), zap.String("userID", cmd.UserID))
	return nil
}
