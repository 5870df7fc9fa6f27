package aggregates

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
	"synapse/domain/events"
)

// GraphID represents a unique graph identifier.
type GraphID string

// NewGraphID creates a new random GraphID.
func NewGraphID() GraphID {
	return GraphID(uuid.New().String())
}

// String returns the string representation.
func (id GraphID) String() string {
	return string(id)
}

// GraphMetrics are the aggregate structural statistics the adaptive
// budget system reads to pick a density band and hop limit: total node
// and edge counts, graph density, and average in/out degree.
type GraphMetrics struct {
	TotalNodes   int
	TotalEdges   int
	Density      float64
	AvgInDegree  float64
	AvgOutDegree float64
}

// Graph is the in-memory working set for one user's knowledge graph: a
// node index, an adjacency-indexed edge set, and the traversal
// primitives spreading activation and the adaptive budget system read
// directly (neighbor lookup, degree, density). It is the aggregate root
// enforcing node/edge existence and limit invariants; actual persistence
// is the storage adapter's concern.
type Graph struct {
	id          GraphID
	userID      string
	nodes       map[valueobjects.NodeID]*entities.Node
	edges       map[string]*entities.Edge
	outAdjacency map[valueobjects.NodeID][]string // nodeID -> edge keys leaving it
	inAdjacency  map[valueobjects.NodeID][]string // nodeID -> edge keys entering it
	createdAt   time.Time
	updatedAt   time.Time
	version     int
	events      []events.DomainEvent
}

// NewGraph creates a new, empty graph aggregate for a user.
func NewGraph(userID string, now time.Time) (*Graph, error) {
	if userID == "" {
		return nil, errors.New("userID required")
	}

	graph := &Graph{
		id:           NewGraphID(),
		userID:       userID,
		nodes:        make(map[valueobjects.NodeID]*entities.Node),
		edges:        make(map[string]*entities.Edge),
		outAdjacency: make(map[valueobjects.NodeID][]string),
		inAdjacency:  make(map[valueobjects.NodeID][]string),
		createdAt:    now,
		updatedAt:    now,
		version:      1,
		events:       []events.DomainEvent{},
	}

	graph.addEvent(events.GraphCreated{
		BaseEvent: events.BaseEvent{
			AggregateID: graph.id.String(),
			EventType:   "graph.created",
			Timestamp:   now,
			Version:     1,
		},
		GraphID: graph.id.String(),
		UserID:  userID,
	})

	return graph, nil
}

// ReconstructGraph rebuilds a graph aggregate from a node set and edge
// set already loaded from storage.
func ReconstructGraph(id GraphID, userID string, nodes []*entities.Node, edges []*entities.Edge, createdAt, updatedAt time.Time) (*Graph, error) {
	if userID == "" {
		return nil, errors.New("userID required")
	}

	g := &Graph{
		id:           id,
		userID:       userID,
		nodes:        make(map[valueobjects.NodeID]*entities.Node, len(nodes)),
		edges:        make(map[string]*entities.Edge, len(edges)),
		outAdjacency: make(map[valueobjects.NodeID][]string),
		inAdjacency:  make(map[valueobjects.NodeID][]string),
		createdAt:    createdAt,
		updatedAt:    updatedAt,
		version:      1,
		events:       []events.DomainEvent{},
	}

	for _, n := range nodes {
		g.nodes[n.ID()] = n
	}
	for _, e := range edges {
		key := e.ID().String()
		g.edges[key] = e
		g.indexEdge(key, e)
	}

	return g, nil
}

func (g *Graph) ID() GraphID       { return g.id }
func (g *Graph) UserID() string    { return g.userID }
func (g *Graph) CreatedAt() time.Time { return g.createdAt }
func (g *Graph) UpdatedAt() time.Time { return g.updatedAt }

// Nodes returns a copy of the node index.
func (g *Graph) Nodes() map[valueobjects.NodeID]*entities.Node {
	nodes := make(map[valueobjects.NodeID]*entities.Node, len(g.nodes))
	for k, v := range g.nodes {
		nodes[k] = v
	}
	return nodes
}

// Edges returns a copy of the edge index.
func (g *Graph) Edges() map[string]*entities.Edge {
	edges := make(map[string]*entities.Edge, len(g.edges))
	for k, v := range g.edges {
		edges[k] = v
	}
	return edges
}

// AddNode adds a node to the graph.
func (g *Graph) AddNode(node *entities.Node, now time.Time) error {
	if node == nil {
		return errors.New("node cannot be nil")
	}

	nodeID := node.ID()
	if _, exists := g.nodes[nodeID]; exists {
		return errors.New("node already exists in graph")
	}

	const maxNodes = 1_000_000
	if len(g.nodes) >= maxNodes {
		return errors.New("maximum nodes reached")
	}

	g.nodes[nodeID] = node
	g.updatedAt = now
	g.version++

	g.addEvent(events.NodeAddedToGraph{
		BaseEvent: events.BaseEvent{
			AggregateID: g.id.String(),
			EventType:   "graph.node_added",
			Timestamp:   now,
			Version:     1,
		},
		GraphID: g.id.String(),
		NodeID:  nodeID,
	})

	return nil
}

// AddEdge inserts an already-constructed edge and updates both
// adjacency indices.
func (g *Graph) AddEdge(edge *entities.Edge, now time.Time) error {
	if edge == nil {
		return errors.New("edge cannot be nil")
	}
	if !g.HasNode(edge.SourceID()) || !g.HasNode(edge.TargetID()) {
		return errors.New("both endpoints must exist in graph")
	}

	const maxEdges = 10_000_000
	if len(g.edges) >= maxEdges {
		return errors.New("maximum edges reached")
	}

	key := edge.ID().String()
	if _, exists := g.edges[key]; exists {
		return errors.New("edge already exists")
	}

	g.edges[key] = edge
	g.indexEdge(key, edge)
	g.updatedAt = now
	g.version++

	g.addEvent(events.NodesConnected{
		BaseEvent: events.BaseEvent{
			AggregateID: g.id.String(),
			EventType:   "graph.nodes_connected",
			Timestamp:   now,
			Version:     1,
		},
		SourceID: edge.SourceID(),
		TargetID: edge.TargetID(),
		EdgeType: string(edge.Type()),
	})

	return nil
}

func (g *Graph) indexEdge(key string, edge *entities.Edge) {
	g.outAdjacency[edge.SourceID()] = append(g.outAdjacency[edge.SourceID()], key)
	g.inAdjacency[edge.TargetID()] = append(g.inAdjacency[edge.TargetID()], key)
	if edge.Bidirectional() {
		g.outAdjacency[edge.TargetID()] = append(g.outAdjacency[edge.TargetID()], key)
		g.inAdjacency[edge.SourceID()] = append(g.inAdjacency[edge.SourceID()], key)
	}
}

// RemoveNode removes a node and every edge touching it.
func (g *Graph) RemoveNode(nodeID valueobjects.NodeID, now time.Time) error {
	if _, exists := g.nodes[nodeID]; !exists {
		return errors.New("node not found")
	}

	toRemove := make(map[string]bool)
	for _, key := range g.outAdjacency[nodeID] {
		toRemove[key] = true
	}
	for _, key := range g.inAdjacency[nodeID] {
		toRemove[key] = true
	}
	for key := range toRemove {
		edge := g.edges[key]
		delete(g.edges, key)
		g.removeFromAdjacency(edge)
	}

	delete(g.nodes, nodeID)
	delete(g.outAdjacency, nodeID)
	delete(g.inAdjacency, nodeID)
	g.updatedAt = now
	g.version++

	g.addEvent(events.NodeRemovedFromGraph{
		BaseEvent: events.BaseEvent{
			AggregateID: g.id.String(),
			EventType:   "graph.node_removed",
			Timestamp:   now,
			Version:     1,
		},
		GraphID: g.id.String(),
		NodeID:  nodeID,
	})

	return nil
}

func (g *Graph) removeFromAdjacency(edge *entities.Edge) {
	remove := func(m map[valueobjects.NodeID][]string, nodeID valueobjects.NodeID, key string) {
		list := m[nodeID]
		for i, k := range list {
			if k == key {
				m[nodeID] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
	key := edge.ID().String()
	remove(g.outAdjacency, edge.SourceID(), key)
	remove(g.inAdjacency, edge.TargetID(), key)
	if edge.Bidirectional() {
		remove(g.outAdjacency, edge.TargetID(), key)
		remove(g.inAdjacency, edge.SourceID(), key)
	}
}

// GetNode retrieves a node by ID.
func (g *Graph) GetNode(nodeID valueobjects.NodeID) (*entities.Node, error) {
	node, exists := g.nodes[nodeID]
	if !exists {
		return nil, errors.New("node not found")
	}
	return node, nil
}

// HasNode checks if a node exists in the graph without error.
func (g *Graph) HasNode(nodeID valueobjects.NodeID) bool {
	_, exists := g.nodes[nodeID]
	return exists
}

// GetNodes returns all nodes in the graph.
func (g *Graph) GetNodes() []*entities.Node {
	nodes := make([]*entities.Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	return nodes
}

// GetEdges returns all edges in the graph.
func (g *Graph) GetEdges() []*entities.Edge {
	edges := make([]*entities.Edge, 0, len(g.edges))
	for _, edge := range g.edges {
		edges = append(edges, edge)
	}
	return edges
}

// Neighbors returns the edges reachable from nodeID (outgoing, plus
// incoming edges of bidirectional type), the primitive spreading
// activation hops over.
func (g *Graph) Neighbors(nodeID valueobjects.NodeID) []*entities.Edge {
	keys := g.outAdjacency[nodeID]
	out := make([]*entities.Edge, 0, len(keys))
	for _, key := range keys {
		if edge, ok := g.edges[key]; ok {
			out = append(out, edge)
		}
	}
	return out
}

// FindEdgeBetween returns the edge connecting a and b, if one exists,
// by scanning a's adjacency (cheaper than a full edge-map scan since
// most graphs are sparse relative to node count).
func (g *Graph) FindEdgeBetween(a, b valueobjects.NodeID) (*entities.Edge, bool) {
	for _, edge := range g.Neighbors(a) {
		if other, ok := edge.OtherEnd(a); ok && other.Equals(b) {
			return edge, true
		}
	}
	return nil, false
}

// Metrics computes the structural statistics the adaptive budget system
// uses to pick a density band.
func (g *Graph) Metrics() GraphMetrics {
	n := len(g.nodes)
	m := GraphMetrics{TotalNodes: n, TotalEdges: len(g.edges)}
	if n == 0 {
		return m
	}

	maxPossibleEdges := float64(n) * float64(n-1)
	if maxPossibleEdges > 0 {
		m.Density = float64(len(g.edges)) / maxPossibleEdges
	}

	var totalOut, totalIn int
	for _, keys := range g.outAdjacency {
		totalOut += len(keys)
	}
	for _, keys := range g.inAdjacency {
		totalIn += len(keys)
	}
	m.AvgOutDegree = float64(totalOut) / float64(n)
	m.AvgInDegree = float64(totalIn) / float64(n)

	return m
}

// FindPath finds a path between two nodes using BFS over outgoing
// adjacency.
func (g *Graph) FindPath(startID, endID valueobjects.NodeID) ([]valueobjects.NodeID, error) {
	if !g.HasNode(startID) {
		return nil, errors.New("start node not found")
	}
	if !g.HasNode(endID) {
		return nil, errors.New("end node not found")
	}
	if startID.Equals(endID) {
		return []valueobjects.NodeID{startID}, nil
	}

	visited := make(map[valueobjects.NodeID]bool)
	parent := make(map[valueobjects.NodeID]valueobjects.NodeID)
	queue := []valueobjects.NodeID{startID}
	visited[startID] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, edge := range g.Neighbors(current) {
			next, ok := edge.OtherEnd(current)
			if !ok || visited[next] {
				continue
			}
			visited[next] = true
			parent[next] = current
			queue = append(queue, next)

			if next.Equals(endID) {
				path := []valueobjects.NodeID{}
				for n := endID; !n.IsZero(); n = parent[n] {
					path = append([]valueobjects.NodeID{n}, path...)
					if n.Equals(startID) {
						break
					}
				}
				return path, nil
			}
		}
	}

	return nil, errors.New("no path exists between nodes")
}

// Validate ensures graph invariants: no edge may reference a node
// absent from the node index.
func (g *Graph) Validate() error {
	for _, edge := range g.edges {
		if !g.HasNode(edge.SourceID()) {
			return errors.New("edge references non-existent source node")
		}
		if !g.HasNode(edge.TargetID()) {
			return errors.New("edge references non-existent target node")
		}
	}
	return nil
}

// GetUncommittedEvents returns all uncommitted domain events, including
// those raised by member nodes and edges.
func (g *Graph) GetUncommittedEvents() []events.DomainEvent {
	allEvents := make([]events.DomainEvent, len(g.events))
	copy(allEvents, g.events)

	for _, node := range g.nodes {
		allEvents = append(allEvents, node.GetUncommittedEvents()...)
	}
	for _, edge := range g.edges {
		allEvents = append(allEvents, edge.GetUncommittedEvents()...)
	}

	return allEvents
}

// MarkEventsAsCommitted clears all uncommitted events.
func (g *Graph) MarkEventsAsCommitted() {
	g.events = []events.DomainEvent{}
	for _, node := range g.nodes {
		node.MarkEventsAsCommitted()
	}
	for _, edge := range g.edges {
		edge.MarkEventsAsCommitted()
	}
}

func (g *Graph) addEvent(event events.DomainEvent) {
	g.events = append(g.events, event)
}
