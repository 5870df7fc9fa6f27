package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"synapse/application/ports"
	"synapse/domain/core/validators"
	"synapse/domain/core/valueobjects"
)

// UpdateNodeCommand carries a partial update to a node's content or
// tags. Nil fields are left unchanged.
type UpdateNodeCommand struct {
	NodeID  string    `json:"node_id" validate:"required"`
	UserID  string    `json:"user_id" validate:"required"`
	Title   *string   `json:"title,omitempty"`
	Content *string   `json:"content,omitempty"`
	Format  *string   `json:"format,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// Validate validates the command.
func (cmd UpdateNodeCommand) Validate() error {
	if cmd.NodeID == "" {
		return fmt.Errorf("node ID is required")
	}
	if cmd.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	return nil
}

// UpdateNodeHandler handles node update commands.
type UpdateNodeHandler struct {
	nodeRepo       ports.NodeRepository
	eventBus       ports.EventBus
	contentChecker *validators.NodeValidator
	logger         *zap.Logger
}

// NewUpdateNodeHandler creates a new update node handler.
func NewUpdateNodeHandler(
	nodeRepo ports.NodeRepository,
	eventBus ports.EventBus,
	logger *zap.Logger,
) *UpdateNodeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpdateNodeHandler{
		nodeRepo:       nodeRepo,
		eventBus:       eventBus,
		contentChecker: validators.NewNodeValidator(),
		logger:         logger,
	}
}

// Handle executes the update node command.
func (h *UpdateNodeHandler) Handle(ctx context.Context, cmd UpdateNodeCommand) error {
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

	now := time.Now()

	if cmd.Title != nil || cmd.Content != nil || cmd.Format != nil {
		current := node.Content()
		title := current.Title()
		body := current.Body()
		format := current.Format()

		if cmd.Title != nil {
			title = *cmd.Title
		}
		if cmd.Content != nil {
			body = *cmd.Content
		}
		if cmd.Format != nil {
			format = valueobjects.ContentFormat(*cmd.Format)
		}

		newContent, err := valueobjects.NewNodeContent(title, body, format)
		if err != nil {
			return fmt.Errorf("invalid content: %w", err)
		}
		if err := h.contentChecker.ValidateNodeContent(&newContent); err != nil {
			return fmt.Errorf("invalid content: %w", err)
		}
		if err := node.UpdateContent(newContent, now); err != nil {
			return fmt.Errorf("failed to update content: %w", err)
		}
	}

	if cmd.Tags != nil {
		if err := h.contentChecker.ValidateTags(*cmd.Tags); err != nil {
			return fmt.Errorf("invalid tags: %w", err)
		}
		for _, tag := range *cmd.Tags {
			if err := node.AddTag(tag, now); err != nil {
				h.logger.Warn("failed to add tag", zap.String("tag", tag), zap.Error(err))
			}
		}
	}

	if err := h.nodeRepo.Save(ctx, node); err != nil {
		return fmt.Errorf("failed to save node: %w", err)
	}

	for _, event := range node.GetUncommittedEvents() {
		if err := h.eventBus.Publish(ctx, event); err != nil {
			h.logger.Warn("failed to publish event", zap.Error(err))
		}
	}
	node.MarkEventsAsCommitted()

	h.logger.Info("node updated",
		zap.String("nodeID", cmd.NodeID),
		zap.String("userID", cmd.UserID),
	)

	return nil
}
