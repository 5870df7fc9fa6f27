package handlers

import (
	"encoding/json"
	"net/http"

	"synapse/application/queries"
	querybus "synapse/application/queries/bus"
	"synapse/pkg/auth"

	"go.uber.org/zap"
)

// GraphHandler handles graph-related HTTP requests. There is exactly
// one graph per user, so there is no list/by-ID distinction: the
// caller always gets their own graph snapshot.
type GraphHandler struct {
	queryBus *querybus.QueryBus
	logger   *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(queryBus *querybus.QueryBus, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		queryBus: queryBus,
		logger:   logger,
	}
}

// GetGraph handles GET /graph, returning the caller's full node/edge
// snapshot plus graph-level stats (density, degree, checksum).
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	query := queries.GetUserGraphQuery{UserID: userCtx.UserID}

	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.logger.Error("Failed to get graph",
			zap.String("userID", userCtx.UserID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "Failed to retrieve graph")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// Helper methods

func (h *GraphHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *GraphHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
