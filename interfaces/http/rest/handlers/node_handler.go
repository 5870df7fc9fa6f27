package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"synapse/application/commands"
	"synapse/application/commands/bus"
	"synapse/application/commands/handlers"
	"synapse/application/queries"
	querybus "synapse/application/queries/bus"
	"synapse/pkg/auth"
	"synapse/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NodeHandler handles node-related HTTP requests. Create and bulk-delete
// bypass the fire-and-forget command bus and call their handlers
// directly, since both need a result back to shape the HTTP response.
type NodeHandler struct {
	commandBus        *bus.CommandBus
	queryBus          *querybus.QueryBus
	createNodeHandler *commands.CreateNodeHandler
	bulkDeleteHandler *handlers.BulkDeleteNodesHandler
	logger            *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	createNodeHandler *commands.CreateNodeHandler,
	bulkDeleteHandler *handlers.BulkDeleteNodesHandler,
	logger *zap.Logger,
) *NodeHandler {
	return &NodeHandler{
		commandBus:        commandBus,
		queryBus:          queryBus,
		createNodeHandler: createNodeHandler,
		bulkDeleteHandler: bulkDeleteHandler,
		logger:            logger,
	}
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	Type    string   `json:"type,omitempty" validate:"omitempty,oneof=concept episode cluster summary archive query"`
	Title   string   `json:"title" validate:"required,min=1,max=200"`
	Content string   `json:"content" validate:"max=50000"`
	Format  string   `json:"format,omitempty" validate:"omitempty,oneof=text markdown html json"`
	Tags    []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,min=1,max=30"`
	Source  string   `json:"source,omitempty"`
}

// UpdateNodeRequest represents the request body for updating a node
type UpdateNodeRequest struct {
	Title   *string   `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Content *string   `json:"content,omitempty"`
	Format  *string   `json:"format,omitempty" validate:"omitempty,oneof=text markdown html json"`
	Tags    *[]string `json:"tags,omitempty" validate:"omitempty,max=20,dive,min=1,max=30"`
}

// CreateNodeResponse represents the response for creating a node
type CreateNodeResponse struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
}

// CreateNode handles POST /nodes. The node is persisted immediately
// without an embedding; an asynchronous worker attaches one once the
// embedding provider returns a vector (see AttachEmbeddingCommand).
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if req.Type == "" {
		req.Type = "concept"
	}
	if req.Format == "" {
		req.Format = "text"
	}

	cmd := commands.CreateNodeCommand{
		UserID:  userCtx.UserID,
		Type:    req.Type,
		Title:   req.Title,
		Content: req.Content,
		Format:  req.Format,
		Tags:    req.Tags,
		Source:  req.Source,
	}

	node, err := h.createNodeHandler.Handle(r.Context(), cmd)
	if err != nil {
		h.logger.Error("Failed to create node",
			zap.String("userID", userCtx.UserID),
			zap.Error(err),
		)
		if strings.Contains(err.Error(), "validation") {
			h.respondError(w, http.StatusBadRequest, err.Error())
		} else {
			h.respondError(w, http.StatusInternalServerError, "Failed to create node")
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateNodeResponse{
		ID:        node.ID().String(),
		Message:   "Node created successfully",
		CreatedAt: utils.NowRFC3339(),
	})
}

// GetNode handles GET /nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	if nodeID == "" {
		h.respondError(w, http.StatusBadRequest, "Node ID is required")
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	query := queries.GetNodeQuery{
		UserID: userCtx.UserID,
		NodeID: nodeID,
	}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.logger.Error("Failed to get node",
			zap.String("nodeID", nodeID),
			zap.String("userID", userCtx.UserID),
			zap.Error(err),
		)
		if strings.Contains(err.Error(), "not found") {
			h.respondError(w, http.StatusNotFound, "Node not found")
		} else {
			h.respondError(w, http.StatusInternalServerError, "Failed to retrieve node")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// UpdateNode handles PUT /nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	if nodeID == "" {
		h.respondError(w, http.StatusBadRequest, "Node ID is required")
		return
	}

	var req UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cmd := handlers.UpdateNodeCommand{
		NodeID:  nodeID,
		UserID:  userCtx.UserID,
		Title:   req.Title,
		Content: req.Content,
		Format:  req.Format,
		Tags:    req.Tags,
	}

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.logger.Error("Failed to update node",
			zap.String("nodeID", nodeID),
			zap.String("userID", userCtx.UserID),
			zap.Error(err),
		)
		if strings.Contains(err.Error(), "not found") {
			h.respondError(w, http.StatusNotFound, "Node not found")
		} else if strings.Contains(err.Error(), "validation") {
			h.respondError(w, http.StatusBadRequest, err.Error())
		} else {
			h.respondError(w, http.StatusInternalServerError, "Failed to update node")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"message": "Node updated successfully",
		"id":      nodeID,
	})
}

// BulkDeleteNodes handles POST /nodes/bulk-delete
func (h *NodeHandler) BulkDeleteNodes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NodeIDs []string `json:"node_ids" validate:"required,min=1,max=100"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cmd := handlers.BulkDeleteNodesCommand{
		UserID:  userCtx.UserID,
		NodeIDs: req.NodeIDs,
	}

	bulkResult, err := h.bulkDeleteHandler.Handle(r.Context(), cmd)
	if err != nil {
		h.logger.Error("Failed bulk delete", zap.String("userID", userCtx.UserID), zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to delete nodes")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"deleted_count": bulkResult.DeletedCount,
		"failed_ids":    bulkResult.FailedIDs,
		"errors":        bulkResult.Errors,
	})
}

// DeleteNode handles DELETE /nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	if nodeID == "" {
		h.respondError(w, http.StatusBadRequest, "Node ID is required")
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cmd := handlers.DeleteNodeCommand{
		UserID: userCtx.UserID,
		NodeID: nodeID,
	}

	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.logger.Error("Failed to delete node",
			zap.String("nodeID", nodeID),
			zap.String("userID", userCtx.UserID),
			zap.Error(err),
		)
		if strings.Contains(err.Error(), "not found") {
			h.respondError(w, http.StatusNotFound, "Node not found")
		} else {
			h.respondError(w, http.StatusInternalServerError, "Failed to delete node")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListNodes handles GET /nodes, returning the user's full graph
// snapshot (there is exactly one graph per user, so "list nodes" and
// "get my graph" are the same read).
func (h *NodeHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	query := queries.GetUserGraphQuery{UserID: userCtx.UserID}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.logger.Error("Failed to list nodes",
			zap.String("userID", userCtx.UserID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "Failed to list nodes")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// Helper methods

func (h *NodeHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *NodeHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
