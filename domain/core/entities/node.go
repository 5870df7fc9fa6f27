package entities

import (
	"errors"
	"time"

	"synapse/domain/core/valueobjects"
	"synapse/domain/events"
)

// NodeType is the primary classification of a node's content.
type NodeType string

const (
	NodeTypeConcept NodeType = "concept"
	NodeTypeEpisode NodeType = "episode"
	NodeTypeCluster NodeType = "cluster"
	NodeTypeSummary NodeType = "summary"
	NodeTypeArchive NodeType = "archive"
	NodeTypeQuery   NodeType = "query"
)

// LifecycleStage is the neural-state-driven band a node currently
// occupies, derived from its retrievability and access recency.
type LifecycleStage string

const (
	LifecycleActive     LifecycleStage = "active"
	LifecycleWeak        LifecycleStage = "weak"
	LifecycleDormant     LifecycleStage = "dormant"
	LifecycleCompressed  LifecycleStage = "compressed"
	LifecycleRestorable  LifecycleStage = "restorable"
)

// ExtractionDepth marks whether a node holds the full detail payload or
// only the compressed core extracted from it.
type ExtractionDepth string

const (
	ExtractionCore   ExtractionDepth = "core"
	ExtractionDetail ExtractionDepth = "detail"
)

// NeuralState is the FSRS-derived memory-strength record carried by a
// node: stability and difficulty evolve on each access, retrievability
// is always computed fresh as of a given instant rather than stored
// stale.
type NeuralState struct {
	Stability      float64
	Difficulty     float64
	AccessCount    int
	LastAccessedAt time.Time
}

// Provenance records where a node's content originated and, for
// sensitive content, an encrypted payload tier.
type Provenance struct {
	Source            string
	Confidence         float64
	EncryptedPayload   []byte
	EncryptionTier     string
}

// CompressionState tracks a node's participation in lifecycle
// compression: if set, the node's detail payload has been folded into a
// summary node and is restorable until the given deadline.
type CompressionState struct {
	CompressedInto   *valueobjects.NodeID
	CompressedAt     *time.Time
	RestorableUntil  *time.Time
}

// IsCompressed reports whether this node has been compressed away.
func (c CompressionState) IsCompressed() bool {
	return c.CompressedInto != nil
}

// EdgeType defines the kind of relationship an edge represents.
type EdgeType string

const (
	EdgeTypeSameEntity           EdgeType = "same_entity"
	EdgeTypeSummarizes           EdgeType = "summarizes"
	EdgeTypeUserLinked           EdgeType = "user_linked"
	EdgeTypePartOf               EdgeType = "part_of"
	EdgeTypeRelatesTo            EdgeType = "relates_to"
	EdgeTypeContradicts          EdgeType = "contradicts"
	EdgeTypeSupports             EdgeType = "supports"
	EdgeTypeSimilarTo            EdgeType = "similar_to"
	EdgeTypeReferences           EdgeType = "references"
	EdgeTypePrecedes             EdgeType = "precedes"
	EdgeTypeElaborates           EdgeType = "elaborates"
	EdgeTypeInstanceOf           EdgeType = "instance_of"
	EdgeTypeCausedBy             EdgeType = "caused_by"
	EdgeTypeChildOf              EdgeType = "child_of"
	EdgeTypeTemporalAdjacent     EdgeType = "temporal_adjacent"
	EdgeTypeTemporalContinuation EdgeType = "temporal_continuation"
)

// EdgeReference is a lightweight reference to a connected edge, kept on
// the node for fast local traversal without a join.
type EdgeReference struct {
	EdgeID   string
	TargetID valueobjects.NodeID
	Type     EdgeType
}

// Metadata contains additional node information.
type Metadata struct {
	Tags       []string
	Categories []string
	Custom     map[string]interface{}
}

// Node is the central knowledge-unit entity: content, a dense embedding,
// an FSRS-style neural state driving its lifecycle, a four-type temporal
// record, and provenance/compression bookkeeping. This is a rich domain
// model; all field mutation goes through validated methods that emit
// domain events.
type Node struct {
	id         valueobjects.NodeID
	userID     string
	graphID    string
	nodeType   NodeType
	subtype    string
	content    valueobjects.NodeContent
	embedding  *valueobjects.NodeEmbedding
	neural     NeuralState
	lifecycle  LifecycleStage
	depth      ExtractionDepth
	temporal   valueobjects.TemporalModel
	provenance Provenance
	compression CompressionState
	metadata   Metadata
	edges      []EdgeReference
	createdAt  time.Time
	updatedAt  time.Time
	syncVersion int
	events     []events.DomainEvent
}

// NewNode creates a new node in the ACTIVE lifecycle stage with a
// freshly minted identity.
func NewNode(
	userID string,
	nodeType NodeType,
	content valueobjects.NodeContent,
	temporal valueobjects.TemporalModel,
	provenance Provenance,
	now time.Time,
) (*Node, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty")
	}
	if content.IsEmpty() {
		return nil, errors.New("content cannot be empty")
	}
	if !isValidNodeType(nodeType) {
		return nil, errors.New("invalid node type")
	}

	node := &Node{
		id:       valueobjects.NewNodeID(),
		userID:   userID,
		nodeType: nodeType,
		content:  content,
		neural: NeuralState{
			Stability:      1.0,
			Difficulty:     5.0,
			AccessCount:    0,
			LastAccessedAt: now,
		},
		lifecycle:   LifecycleActive,
		depth:       ExtractionDetail,
		temporal:    temporal,
		provenance:  provenance,
		metadata:    Metadata{Custom: make(map[string]interface{})},
		edges:       []EdgeReference{},
		createdAt:   now,
		updatedAt:   now,
		syncVersion: 1,
		events:      []events.DomainEvent{},
	}

	node.addEvent(events.NewNodeCreated(node.id, userID, now))

	return node, nil
}

// ReconstructNode rebuilds a node from storage without re-validating
// business invariants that were already enforced at write time.
func ReconstructNode(
	id valueobjects.NodeID,
	userID string,
	graphID string,
	nodeType NodeType,
	content valueobjects.NodeContent,
	embedding *valueobjects.NodeEmbedding,
	neural NeuralState,
	lifecycle LifecycleStage,
	depth ExtractionDepth,
	temporal valueobjects.TemporalModel,
	provenance Provenance,
	compression CompressionState,
	metadata Metadata,
	edges []EdgeReference,
	createdAt, updatedAt time.Time,
	syncVersion int,
) (*Node, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty")
	}

	return &Node{
		id:          id,
		userID:      userID,
		graphID:     graphID,
		nodeType:    nodeType,
		content:     content,
		embedding:   embedding,
		neural:      neural,
		lifecycle:   lifecycle,
		depth:       depth,
		temporal:    temporal,
		provenance:  provenance,
		compression: compression,
		metadata:    metadata,
		edges:       edges,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		syncVersion: syncVersion,
		events:      []events.DomainEvent{},
	}, nil
}

func isValidNodeType(t NodeType) bool {
	switch t {
	case NodeTypeConcept, NodeTypeEpisode, NodeTypeCluster, NodeTypeSummary, NodeTypeArchive, NodeTypeQuery:
		return true
	default:
		return false
	}
}

// Accessors

func (n *Node) ID() valueobjects.NodeID            { return n.id }
func (n *Node) UserID() string                      { return n.userID }
func (n *Node) GraphID() string                     { return n.graphID }
func (n *Node) Type() NodeType                      { return n.nodeType }
func (n *Node) Subtype() string                     { return n.subtype }
func (n *Node) Content() valueobjects.NodeContent   { return n.content }
func (n *Node) Embedding() *valueobjects.NodeEmbedding { return n.embedding }
func (n *Node) Neural() NeuralState                 { return n.neural }
func (n *Node) Lifecycle() LifecycleStage           { return n.lifecycle }
func (n *Node) ExtractionDepth() ExtractionDepth    { return n.depth }
func (n *Node) Temporal() valueobjects.TemporalModel { return n.temporal }
func (n *Node) Provenance() Provenance              { return n.provenance }
func (n *Node) Compression() CompressionState       { return n.compression }
func (n *Node) CreatedAt() time.Time                { return n.createdAt }
func (n *Node) UpdatedAt() time.Time                { return n.updatedAt }
func (n *Node) SyncVersion() int                    { return n.syncVersion }

// IsRetrievable reports whether the node is eligible as an SSA seed or
// spreading-activation target: any stage except COMPRESSED.
func (n *Node) IsRetrievable() bool {
	return n.lifecycle != LifecycleCompressed
}

// SetGraphID assigns the node to a graph.
func (n *Node) SetGraphID(graphID string, now time.Time) {
	n.graphID = graphID
	n.updatedAt = now
}

// SetSubtype sets the node's fine-grained subtype classification.
func (n *Node) SetSubtype(subtype string, now time.Time) {
	n.subtype = subtype
	n.updatedAt = now
}

// UpdateContent replaces the node's content, which invalidates its
// current embedding (a fresh one must be computed by the embedding
// pipeline) and bumps the sync version.
func (n *Node) UpdateContent(content valueobjects.NodeContent, now time.Time) error {
	if n.compression.IsCompressed() {
		return errors.New("cannot update a compressed node")
	}
	if content.IsEmpty() {
		return errors.New("content cannot be empty")
	}
	if content.Equals(n.content) {
		return nil
	}

	oldContent := n.content
	n.content = content
	n.embedding = nil
	n.updatedAt = now
	n.syncVersion++

	n.addEvent(events.NewNodeContentUpdated(n.id, oldContent, content, now))
	return nil
}

// AttachEmbedding stores a freshly computed embedding for this node's
// current content.
func (n *Node) AttachEmbedding(embedding valueobjects.NodeEmbedding, now time.Time) error {
	if err := embedding.Validate(); err != nil {
		return err
	}
	n.embedding = &embedding
	n.updatedAt = now
	return nil
}

// NeedsEmbedding reports whether this node has no embedding, or carries
// only a provisional one produced by a fallback provider.
func (n *Node) NeedsEmbedding() bool {
	return n.embedding == nil || n.embedding.Provisional
}

// RecordActivation applies the outcome of an FSRS-style access to this
// node's neural state and recomputes its lifecycle stage. The actual
// stability/difficulty update formula lives in the fsrs service; this
// method only applies the already-computed result and emits events.
func (n *Node) RecordActivation(newStability, newDifficulty float64, now time.Time) {
	n.neural.Stability = newStability
	n.neural.Difficulty = newDifficulty
	n.neural.AccessCount++
	n.neural.LastAccessedAt = now
	n.updatedAt = now

	n.addEvent(events.NewNodeActivated(n.id, n.neural.Stability, newStability, n.neural.AccessCount, now))

	oldStage := n.lifecycle
	newStage := n.lifecycle
	if oldStage == LifecycleDormant || oldStage == LifecycleWeak {
		newStage = LifecycleActive
	}
	if newStage != oldStage {
		n.TransitionLifecycle(newStage, now)
	}
}

// TransitionLifecycle moves the node to a new lifecycle stage, emitting
// a transition event when the stage actually changes.
func (n *Node) TransitionLifecycle(stage LifecycleStage, now time.Time) {
	if stage == n.lifecycle {
		return
	}
	old := n.lifecycle
	n.lifecycle = stage
	n.updatedAt = now
	n.addEvent(events.NewNodeLifecycleChanged(n.id, string(old), string(stage), now))
}

// Compress marks this node as compressed into the given summary node,
// restorable until the given deadline.
func (n *Node) Compress(summaryID valueobjects.NodeID, now, restorableUntil time.Time) error {
	if n.compression.IsCompressed() {
		return errors.New("node is already compressed")
	}
	n.compression = CompressionState{
		CompressedInto:  &summaryID,
		CompressedAt:    &now,
		RestorableUntil: &restorableUntil,
	}
	n.depth = ExtractionCore
	n.TransitionLifecycle(LifecycleCompressed, now)
	return nil
}

// Restore reverses a compression, provided the restorable window has
// not elapsed.
func (n *Node) Restore(now time.Time) error {
	if !n.compression.IsCompressed() {
		return errors.New("node is not compressed")
	}
	if n.compression.RestorableUntil != nil && now.After(*n.compression.RestorableUntil) {
		return errors.New("restorable window has elapsed")
	}
	n.compression = CompressionState{}
	n.depth = ExtractionDetail
	n.TransitionLifecycle(LifecycleRestorable, now)
	return nil
}

// ConnectTo records a lightweight local edge reference. The edge
// aggregate itself (weights, status) lives in the Edge entity; this is
// only the node-local adjacency index.
func (n *Node) ConnectTo(edgeID string, targetID valueobjects.NodeID, edgeType EdgeType, now time.Time) error {
	if n.id.Equals(targetID) {
		return errors.New("cannot connect node to itself")
	}
	for _, edge := range n.edges {
		if edge.TargetID.Equals(targetID) && edge.Type == edgeType {
			return errors.New("connection already exists")
		}
	}

	n.edges = append(n.edges, EdgeReference{EdgeID: edgeID, TargetID: targetID, Type: edgeType})
	n.updatedAt = now
	n.addEvent(events.NewNodesConnected(n.id, targetID, string(edgeType), now))
	return nil
}

// Disconnect removes a local edge reference to targetID.
func (n *Node) Disconnect(targetID valueobjects.NodeID, now time.Time) error {
	found := false
	remaining := make([]EdgeReference, 0, len(n.edges))
	for _, edge := range n.edges {
		if edge.TargetID.Equals(targetID) {
			found = true
			continue
		}
		remaining = append(remaining, edge)
	}
	if !found {
		return errors.New("connection not found")
	}
	n.edges = remaining
	n.updatedAt = now
	n.addEvent(events.NewNodesDisconnected(n.id, targetID, now))
	return nil
}

// AddTag adds a tag to the node's metadata.
func (n *Node) AddTag(tag string, now time.Time) error {
	if tag == "" {
		return errors.New("tag cannot be empty")
	}
	for _, t := range n.metadata.Tags {
		if t == tag {
			return nil
		}
	}
	const maxTags = 20
	if len(n.metadata.Tags) >= maxTags {
		return errors.New("maximum tags reached")
	}
	n.metadata.Tags = append(n.metadata.Tags, tag)
	n.updatedAt = now
	return nil
}

// GetConnections returns a copy of the node's local edge references.
func (n *Node) GetConnections() []EdgeReference {
	out := make([]EdgeReference, len(n.edges))
	copy(out, n.edges)
	return out
}

// GetTags returns a copy of the node's tags.
func (n *Node) GetTags() []string {
	out := make([]string, len(n.metadata.Tags))
	copy(out, n.metadata.Tags)
	return out
}

// GetUncommittedEvents returns domain events raised since the last
// MarkEventsAsCommitted call.
func (n *Node) GetUncommittedEvents() []events.DomainEvent {
	return n.events
}

// MarkEventsAsCommitted clears the uncommitted events list.
func (n *Node) MarkEventsAsCommitted() {
	n.events = []events.DomainEvent{}
}

func (n *Node) addEvent(event events.DomainEvent) {
	n.events = append(n.events, event)
}
