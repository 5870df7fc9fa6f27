package commands

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"synapse/application/ports"
	"synapse/domain/core/entities"
	"synapse/domain/core/validators"
	"synapse/domain/core/valueobjects"
)

const (
	MaxTitleLength   = 200
	MaxContentLength = 50000
)

// CreateNodeCommand represents the command to create a new memory node.
// The embedding is attached later by an asynchronous job (see
// AttachEmbeddingCommand) rather than computed inline, so node creation
// never blocks on a model call.
type CreateNodeCommand struct {
	UserID  string   `json:"user_id" validate:"required"`
	Type    string   `json:"type" validate:"required,oneof=concept episode cluster summary archive query"`
	Title   string   `json:"title" validate:"required,min=1,max=200"`
	Content string   `json:"content" validate:"max=50000"`
	Format  string   `json:"format" validate:"oneof=text markdown html json"`
	Tags    []string `json:"tags" validate:"max=20,dive,min=1,max=30"`
	Source  string   `json:"source"`
}

// Validate validates the command.
func (cmd CreateNodeCommand) Validate() error {
	if cmd.UserID == "" {
		return errors.New("user ID is required")
	}
	if cmd.Title == "" {
		return errors.New("title is required")
	}
	if len(cmd.Title) > MaxTitleLength {
		return errors.New("title exceeds maximum length")
	}
	if len(cmd.Content) > MaxContentLength {
		return errors.New("content exceeds maximum length")
	}
	return nil
}

// CreateNodeHandler handles the CreateNodeCommand.
type CreateNodeHandler struct {
	nodeRepo       ports.NodeRepository
	graphRepo      ports.GraphRepository
	eventBus       ports.EventBus
	contentChecker *validators.NodeValidator
	capacity       *validators.GraphValidator
	logger         *zap.Logger
}

// NewCreateNodeHandler creates a new handler instance.
func NewCreateNodeHandler(
	nodeRepo ports.NodeRepository,
	graphRepo ports.GraphRepository,
	eventBus ports.EventBus,
	logger *zap.Logger,
) *CreateNodeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreateNodeHandler{
		nodeRepo:       nodeRepo,
		graphRepo:      graphRepo,
		eventBus:       eventBus,
		contentChecker: validators.NewNodeValidator(),
		capacity:       validators.NewGraphValidator(),
		logger:         logger,
	}
}

// Handle executes the create node command: builds the node entity,
// attaches it to the user's graph, and persists both.
func (h *CreateNodeHandler) Handle(ctx context.Context, cmd CreateNodeCommand) (*entities.Node, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()

	content, err := valueobjects.NewNodeContent(cmd.Title, cmd.Content, valueobjects.ContentFormat(cmd.Format))
	if err != nil {
		return nil, err
	}
	if err := h.contentChecker.ValidateNodeContent(&content); err != nil {
		return nil, err
	}
	if err := h.contentChecker.ValidateTags(cmd.Tags); err != nil {
		return nil, err
	}

	temporal := valueobjects.TemporalModel{
		Ingestion: valueobjects.NewIngestion(now, "UTC"),
	}

	provenance := entities.Provenance{
		Source:     cmd.Source,
		Confidence: 1.0,
	}

	node, err := entities.NewNode(cmd.UserID, entities.NodeType(cmd.Type), content, temporal, provenance, now)
	if err != nil {
		return nil, err
	}

	for _, tag := range cmd.Tags {
		if err := node.AddTag(tag, now); err != nil {
			h.logger.Warn("skipping invalid tag", zap.String("tag", tag), zap.Error(err))
		}
	}

	graph, err := h.graphRepo.GetOrCreateForUser(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if err := h.capacity.ValidateNodeCount(len(graph.Nodes()) + 1); err != nil {
		return nil, err
	}
	node.SetGraphID(graph.ID().String(), now)

	if err := h.nodeRepo.Save(ctx, node); err != nil {
		return nil, err
	}
	if err := graph.AddNode(node, now); err != nil {
		return nil, err
	}
	if err := h.graphRepo.Save(ctx, graph); err != nil {
		return nil, err
	}

	evts := append(node.GetUncommittedEvents(), graph.GetUncommittedEvents()...)
	if err := h.eventBus.PublishBatch(ctx, evts); err != nil {
		h.logger.Error("failed to publish node creation events", zap.Error(err))
	}
	node.MarkEventsAsCommitted()
	graph.MarkEventsAsCommitted()

	h.logger.Info("node created",
		zap.String("nodeID", node.ID().String()),
		zap.String("userID", cmd.UserID),
		zap.String("type", string(node.Type())),
	)

	return node, nil
}
