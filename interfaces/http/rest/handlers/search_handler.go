package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"synapse/application/services"
	"synapse/domain/core/valueobjects"
	"synapse/domain/services/budget"
	"synapse/pkg/auth"

	"go.uber.org/zap"
)

// SearchHandler exposes the retrieval orchestrator over HTTP.
type SearchHandler struct {
	engine *services.SearchEngine
	logger *zap.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(engine *services.SearchEngine, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		engine: engine,
		logger: logger,
	}
}

// searchResultDTO is the wire shape for a single ranked result.
type searchResultDTO struct {
	NodeID        string  `json:"nodeId"`
	Composite     float64 `json:"composite"`
	Semantic      float64 `json:"semantic"`
	Lexical       float64 `json:"lexical"`
	Graph         float64 `json:"graph"`
	Recency       float64 `json:"recency"`
	Authority     float64 `json:"authority"`
	Affinity      float64 `json:"affinity"`
	PrimarySignal string  `json:"primarySignal"`
}

// budgetExhaustionDTO is the wire shape of a partial result's
// exhaustion contract: present (with Partial=true) only when a budget
// ceiling was hit before the quality target was met.
type budgetExhaustionDTO struct {
	Partial          bool    `json:"partial"`
	ExhaustedResource string  `json:"exhaustedResource,omitempty"`
	QualityAchieved  float64 `json:"qualityAchieved"`
	QualityTarget    float64 `json:"qualityTarget"`
	CoverageAchieved float64 `json:"coverageAchieved"`
	Explanation      string  `json:"explanation,omitempty"`
	Suggestion       string  `json:"suggestion,omitempty"`
}

// searchResponse is the wire shape for the full search response.
type searchResponse struct {
	Results           []searchResultDTO    `json:"results"`
	TerminationReason string               `json:"terminationReason"`
	HopsRun           int                  `json:"hopsRun"`
	NodesVisited      int                  `json:"nodesVisited"`
	RoutingStrategy   string               `json:"routingStrategy"`
	ElapsedMs         int64                `json:"elapsedMs"`
	Exhaustion        *budgetExhaustionDTO `json:"exhaustion,omitempty"`
}

// Search handles GET /search?q=...&top_k=...&complexity=...&thoroughness=...
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		h.respondError(w, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	topK, err := strconv.Atoi(r.URL.Query().Get("top_k"))
	if err != nil || topK <= 0 {
		topK = 10
	}

	complexity := budget.QueryComplexity(r.URL.Query().Get("complexity"))
	switch complexity {
	case budget.ComplexitySimple, budget.ComplexityStandard, budget.ComplexityComplex:
	default:
		complexity = budget.ComplexityStandard
	}

	thoroughness := budget.Thoroughness(r.URL.Query().Get("thoroughness"))
	switch thoroughness {
	case budget.ThoroughnessQuick, budget.ThoroughnessBalanced, budget.ThoroughnessDeep:
	default:
		thoroughness = budget.ThoroughnessBalanced
	}

	req := services.SearchRequest{
		UserID:       userCtx.UserID,
		Query:        query,
		TopK:         topK,
		Complexity:   complexity,
		Thoroughness: thoroughness,
	}

	result, err := h.engine.Search(r.Context(), req)
	if err != nil {
		h.logger.Error("search failed",
			zap.String("userID", userCtx.UserID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	resp := searchResponse{
		Results:           make([]searchResultDTO, 0, len(result.Results)),
		TerminationReason: string(result.TerminationReason),
		HopsRun:           result.HopsRun,
		NodesVisited:      result.NodesVisited,
		RoutingStrategy:   string(result.RoutingStrategy),
		ElapsedMs:         result.Elapsed.Milliseconds(),
	}
	for _, s := range result.Results {
		resp.Results = append(resp.Results, searchResultDTO{
			NodeID:        s.NodeID.String(),
			Composite:     s.Composite,
			Semantic:      s.Semantic,
			Lexical:       s.Lexical,
			Graph:         s.Graph,
			Recency:       s.Recency,
			Authority:     s.Authority,
			Affinity:      s.Affinity,
			PrimarySignal: string(s.PrimarySignal),
		})
	}
	if result.Partial {
		resp.Exhaustion = &budgetExhaustionDTO{
			Partial:           result.Exhaustion.Partial,
			ExhaustedResource: result.Exhaustion.Reason,
			QualityAchieved:   result.Exhaustion.QualityAchieved,
			QualityTarget:     result.Exhaustion.QualityTarget,
			CoverageAchieved:  result.Exhaustion.CoverageAchieved,
			Explanation:       result.Exhaustion.Explanation,
			Suggestion:        result.Exhaustion.Suggestion,
		}
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// engagementRequestBody is the wire shape of a record-engagement call:
// the caller confirms, after the fact, whether it actually dwelt on a
// node Search previously returned.
type engagementRequestBody struct {
	NodeID           string   `json:"nodeId"`
	Engaged          bool     `json:"engaged"`
	ResultSetNodeIDs []string `json:"resultSetNodeIds"`
}

// RecordEngagement handles POST /search/engagement, confirming whether
// a previously returned node was actually dwelt on (>= 5s) so the
// search engine can strengthen co-activation between it and the rest
// of that search's result set.
func (h *SearchHandler) RecordEngagement(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var body engagementRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	nodeID, err := valueobjects.NewNodeIDFromString(body.NodeID)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid node ID")
		return
	}

	resultSet := make([]valueobjects.NodeID, 0, len(body.ResultSetNodeIDs))
	for _, id := range body.ResultSetNodeIDs {
		parsed, err := valueobjects.NewNodeIDFromString(id)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "Invalid result set node ID")
			return
		}
		resultSet = append(resultSet, parsed)
	}

	req := services.EngagementRequest{
		UserID:           userCtx.UserID,
		NodeID:           nodeID,
		Engaged:          body.Engaged,
		ResultSetNodeIDs: resultSet,
	}

	if err := h.engine.RecordEngagement(r.Context(), req); err != nil {
		h.logger.Error("record engagement failed",
			zap.String("userID", userCtx.UserID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "Failed to record engagement")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"recorded": true})
}

func (h *SearchHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *SearchHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
