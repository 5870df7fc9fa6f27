// Package edgeweight builds and maintains weighted edges: typed
// creation with the correct base weight and creation source, temporal
// and user-linked edge derivation, and the compression eligibility
// check that lifecycle management runs against DORMANT nodes.
package edgeweight

import (
	"math"
	"time"

	"synapse/domain/config"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
)

// Builder constructs edges with base weights drawn from configuration.
type Builder struct {
	cfg config.EdgeWeightConfig
}

// NewBuilder constructs a Builder bound to cfg.
func NewBuilder(cfg config.EdgeWeightConfig) *Builder {
	return &Builder{cfg: cfg}
}

// BaseWeight looks up the configured base weight for an edge type,
// falling back to the midpoint of the allowed range if the type is
// unrecognized (should not happen for the closed EdgeType set, but keeps
// the lookup total).
func (b *Builder) BaseWeight(edgeType entities.EdgeType) float64 {
	if w, ok := b.cfg.BaseWeights[string(edgeType)]; ok {
		return w
	}
	return 0.55
}

// CreateTyped builds an edge of edgeType between source and target with
// its configured base weight and the given creation source.
func (b *Builder) CreateTyped(sourceID, targetID valueobjects.NodeID, edgeType entities.EdgeType, bidirectional bool, source entities.CreationSource, now time.Time) (*entities.Edge, error) {
	return entities.NewEdge(sourceID, targetID, edgeType, bidirectional, b.BaseWeight(edgeType), source, now)
}

// TemporalLink classifies the temporal relationship between two nodes'
// access events and returns the edge type and base weight to use, or ok
// = false if neither temporal rule applies.
//
// Same-session access within TemporalAdjacentWindow produces a
// temporal_adjacent edge weighted by recency decay:
// max(TemporalAdjacentMinWeight, exp(-minutes/30)). Overlapping clusters
// across sessions within TemporalContinuationWindow produce a
// temporal_continuation edge at the fixed weight
// TemporalContinuationWeight.
func (b *Builder) TemporalLink(sameSession bool, gap time.Duration, sharedCluster bool) (edgeType entities.EdgeType, baseWeight float64, ok bool) {
	if sameSession && gap <= b.cfg.TemporalAdjacentWindow {
		minutes := gap.Minutes()
		weight := math.Exp(-minutes / 30)
		if weight < b.cfg.TemporalAdjacentMinWeight {
			weight = b.cfg.TemporalAdjacentMinWeight
		}
		return entities.EdgeTypeTemporalAdjacent, weight, true
	}
	if sharedCluster && !sameSession && gap <= b.cfg.TemporalContinuationWindow {
		return entities.EdgeTypeTemporalContinuation, b.cfg.TemporalContinuationWeight, true
	}
	return "", 0, false
}

// CreateTemporalEdge builds the appropriate temporal edge if one of the
// temporal rules fires.
func (b *Builder) CreateTemporalEdge(sourceID, targetID valueobjects.NodeID, sameSession bool, gap time.Duration, sharedCluster bool, now time.Time) (*entities.Edge, bool, error) {
	edgeType, weight, ok := b.TemporalLink(sameSession, gap, sharedCluster)
	if !ok {
		return nil, false, nil
	}
	edge, err := entities.NewEdge(sourceID, targetID, edgeType, true, weight, entities.CreationTemporal, now)
	if err != nil {
		return nil, false, err
	}
	return edge, true, nil
}

// UserLinkStrength clamps a user-supplied link strength into
// [UserEdgeMinStrength, UserEdgeMaxStrength], falling back to the
// default when strength is zero (the caller did not specify one).
func (b *Builder) UserLinkStrength(strength float64) float64 {
	if strength == 0 {
		return b.cfg.UserEdgeDefaultWeight
	}
	if strength < b.cfg.UserEdgeMinStrength {
		return b.cfg.UserEdgeMinStrength
	}
	if strength > b.cfg.UserEdgeMaxStrength {
		return b.cfg.UserEdgeMaxStrength
	}
	return strength
}

// CreateUserEdge builds a user-authored edge (user_linked or
// relates_to), confirmed immediately since it carries no corroboration
// window.
func (b *Builder) CreateUserEdge(sourceID, targetID valueobjects.NodeID, edgeType entities.EdgeType, strength float64, now time.Time) (*entities.Edge, error) {
	return entities.NewEdge(sourceID, targetID, edgeType, false, b.UserLinkStrength(strength), entities.CreationUser, now)
}

// CompressionCandidate carries the facts the compression eligibility
// check needs about one DORMANT node.
type CompressionCandidate struct {
	DormantSince   time.Time
	Importance     float64 // e.g. normalized access/authority signal
	StrongEdges    int     // edges with EffectiveWeight >= CompressionStrongWeight
	Pinned         bool
	Starred        bool
	RecentlyViewed bool
}

// IsCompressionEligible reports whether a DORMANT node qualifies for
// compression into a summary node: dormant for longer than
// CompressionDormantDays, below the importance threshold, fewer than
// CompressionMinStrongEdges strong edges, and not pinned, starred, or
// recently viewed.
func (b *Builder) IsCompressionEligible(now time.Time, c CompressionCandidate, importanceThreshold float64) bool {
	if c.Pinned || c.Starred || c.RecentlyViewed {
		return false
	}
	dormantDays := now.Sub(c.DormantSince).Hours() / 24
	if dormantDays < float64(b.cfg.CompressionDormantDays) {
		return false
	}
	if c.Importance >= importanceThreshold {
		return false
	}
	if c.StrongEdges >= b.cfg.CompressionMinStrongEdges {
		return false
	}
	return true
}

// RestorableUntil computes the compression restorable deadline from now.
func (b *Builder) RestorableUntil(now time.Time) time.Time {
	return now.Add(time.Duration(b.cfg.CompressionRestorableDays) * 24 * time.Hour)
}

// CountStrongEdges counts edges touching nodeID whose effective weight
// meets or exceeds CompressionStrongWeight.
func (b *Builder) CountStrongEdges(nodeID valueobjects.NodeID, edges []*entities.Edge) int {
	count := 0
	for _, e := range edges {
		if !e.ConnectsNode(nodeID) {
			continue
		}
		if e.Weight().EffectiveWeight() >= b.cfg.CompressionStrongWeight {
			count++
		}
	}
	return count
}
