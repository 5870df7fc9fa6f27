package queries

import (
	"errors"
)

// GetNodeQuery represents a query to get a single node.
type GetNodeQuery struct {
	UserID string
	NodeID string
}

// Validate validates the GetNodeQuery.
func (q GetNodeQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	if q.NodeID == "" {
		return errors.New("node ID is required")
	}
	return nil
}

// NodeDTO is the read-side representation of a node returned to a caller.
type NodeDTO struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Format      string   `json:"format"`
	Lifecycle   string   `json:"lifecycle"`
	Tags        []string `json:"tags"`
	AccessCount int      `json:"accessCount"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

// GetUserGraphQuery requests a snapshot of a user's full graph
// (every retrievable node plus the edges between them), used for
// visualization and bulk maintenance jobs rather than retrieval.
type GetUserGraphQuery struct {
	UserID string
}

// Validate validates the query.
func (q GetUserGraphQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	return nil
}

// EdgeDTO is the read-side representation of an edge.
type EdgeDTO struct {
	ID            string  `json:"id"`
	SourceID      string  `json:"sourceId"`
	TargetID      string  `json:"targetId"`
	Type          string  `json:"type"`
	EffectiveWeight float64 `json:"effectiveWeight"`
	Bidirectional bool    `json:"bidirectional"`
}

// GraphStats summarizes a graph snapshot.
type GraphStats struct {
	NodeCount      int     `json:"nodeCount"`
	EdgeCount      int     `json:"edgeCount"`
	Density        float64 `json:"density"`
	AvgInDegree    float64 `json:"avgInDegree"`
	AvgOutDegree   float64 `json:"avgOutDegree"`
	Checksum       string  `json:"checksum"`
}

// GetUserGraphResult is the full node/edge snapshot for a user.
type GetUserGraphResult struct {
	Nodes []NodeDTO  `json:"nodes"`
	Edges []EdgeDTO  `json:"edges"`
	Stats GraphStats `json:"stats"`
}
