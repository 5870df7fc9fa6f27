package entities

import (
	"errors"
	"math"
	"time"

	"synapse/domain/core/valueobjects"
	"synapse/domain/events"
)

// EdgeStatus marks whether an edge has been confirmed by repeated
// co-activation or still sits in its provisional probation window.
type EdgeStatus string

const (
	EdgeStatusProvisional EdgeStatus = "provisional"
	EdgeStatusConfirmed   EdgeStatus = "confirmed"
)

// CreationSource records what produced an edge.
type CreationSource string

const (
	CreationExtraction  CreationSource = "extraction"
	CreationSimilarity  CreationSource = "similarity"
	CreationTemporal    CreationSource = "temporal"
	CreationUser        CreationSource = "user"
	CreationCoActivation CreationSource = "coactivation"
)

const (
	minBaseWeight        = 0.10
	maxBaseWeight        = 1.00
	minLearnedAdjustment = -0.30
	maxLearnedAdjustment = 0.30
	minCoActivationBonus = 0.0
	maxCoActivationBonus = 0.30

	// engagementDeltaFactor is the 0.10 coefficient applied to
	// (1 - effective_weight) on an engaged activation.
	engagementDeltaFactor = 0.10

	// consecutiveIgnoredDecayThreshold is how many ignored accesses in a
	// row trigger a co-activation bonus decay.
	consecutiveIgnoredDecayThreshold = 3
	ignoredDecayFactor               = 0.95

	// coActivationDecayPeriod is how often (in elapsed time) the time-based
	// lazy decay of the co-activation bonus applies.
	coActivationDecayPeriod = 60 * 24 * time.Hour
	timeDecayFactor         = 0.95

	// engagedActivationsToPromote is the number of engaged activations a
	// provisional edge needs before it is promoted to confirmed.
	engagedActivationsToPromote = 3
	provisionalExpiry           = 30 * 24 * time.Hour
)

// EdgeWeight holds the three independently maintained weight components
// that make up an edge's effective weight. Base is set at creation from
// the edge's type and creation source and never changes on its own;
// Learned (the learned_adjustment) and CoActivation (the
// coactivation_bonus) are the only components that move over an edge's
// lifetime. The components are the authoritative representation —
// EffectiveWeight is always recomputed from them, never stored.
type EdgeWeight struct {
	Base         float64 // base_weight, [0.10, 1.00]
	Learned      float64 // learned_adjustment, [-0.30, 0.30]
	CoActivation float64 // coactivation_bonus, [0, 0.30]
}

// EffectiveWeight implements clamp(base*(1+learned) + coactivation, 0.10, 1.00).
func (w EdgeWeight) EffectiveWeight() float64 {
	eff := w.Base*(1+w.Learned) + w.CoActivation
	if eff < minBaseWeight {
		return minBaseWeight
	}
	if eff > maxBaseWeight {
		return maxBaseWeight
	}
	return eff
}

func clampLearned(v float64) float64 {
	return clampFloat(v, minLearnedAdjustment, maxLearnedAdjustment)
}

func clampCoActivation(v float64) float64 {
	return clampFloat(v, minCoActivationBonus, maxCoActivationBonus)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EdgeNeuralState mirrors a node's access-driven bookkeeping, scoped to
// an edge: how often it has been jointly traversed, and how long it has
// gone unused.
type EdgeNeuralState struct {
	Stability          float64
	LastActivatedAt    time.Time
	CoActivationCount  int
	ConsecutiveIgnored int
	ActivationCount    int

	// decayedThrough marks how far the lazy time-based co-activation decay
	// has already been applied, advanced by whole decay periods each time
	// ApplyTimeDecay runs. It tracks separately from LastActivatedAt so a
	// read-time decay application is idempotent: calling ApplyTimeDecay
	// twice with the same "now" applies each elapsed period exactly once.
	decayedThrough time.Time
}

// Edge is a typed, weighted, directed (optionally bidirectional)
// relationship between two nodes.
type Edge struct {
	id             valueobjects.EdgeID
	sourceID       valueobjects.NodeID
	targetID       valueobjects.NodeID
	edgeType       EdgeType
	bidirectional  bool
	weight         EdgeWeight
	status         EdgeStatus
	creationSource CreationSource
	neural         EdgeNeuralState
	createdAt      time.Time
	expiresAt      *time.Time
	events         []events.DomainEvent
}

// NewEdge creates a new edge with the given base weight. User-created
// edges are confirmed immediately (a human-drawn link needs no
// corroboration); every other creation source starts provisional with a
// 30-day expiry window.
func NewEdge(
	sourceID, targetID valueobjects.NodeID,
	edgeType EdgeType,
	bidirectional bool,
	baseWeight float64,
	source CreationSource,
	now time.Time,
) (*Edge, error) {
	if sourceID.Equals(targetID) {
		return nil, errors.New("cannot create an edge from a node to itself")
	}
	if baseWeight < minBaseWeight || baseWeight > maxBaseWeight {
		return nil, errors.New("base weight must be within [0.10, 1.00]")
	}

	status := EdgeStatusProvisional
	var expires *time.Time
	if source == CreationUser {
		status = EdgeStatusConfirmed
	} else {
		exp := now.Add(provisionalExpiry)
		expires = &exp
	}

	edge := &Edge{
		id:             valueobjects.NewEdgeID(),
		sourceID:       sourceID,
		targetID:       targetID,
		edgeType:       edgeType,
		bidirectional:  bidirectional,
		weight:         EdgeWeight{Base: baseWeight},
		status:         status,
		creationSource: source,
		neural: EdgeNeuralState{
			LastActivatedAt: now,
			decayedThrough:  now,
		},
		createdAt: now,
		expiresAt: expires,
		events:    []events.DomainEvent{},
	}

	edge.addEvent(events.NewEdgeCreated(edge.id.String(), sourceID.String(), targetID.String(), string(edgeType), string(status), now))

	return edge, nil
}

// ReconstructEdge rebuilds an edge from storage.
func ReconstructEdge(
	id valueobjects.EdgeID,
	sourceID, targetID valueobjects.NodeID,
	edgeType EdgeType,
	bidirectional bool,
	weight EdgeWeight,
	status EdgeStatus,
	creationSource CreationSource,
	neural EdgeNeuralState,
	createdAt time.Time,
	expiresAt *time.Time,
) *Edge {
	if neural.decayedThrough.IsZero() {
		neural.decayedThrough = neural.LastActivatedAt
	}
	return &Edge{
		id:             id,
		sourceID:       sourceID,
		targetID:       targetID,
		edgeType:       edgeType,
		bidirectional:  bidirectional,
		weight:         weight,
		status:         status,
		creationSource: creationSource,
		neural:         neural,
		createdAt:      createdAt,
		expiresAt:      expiresAt,
		events:         []events.DomainEvent{},
	}
}

func (e *Edge) ID() valueobjects.EdgeID        { return e.id }
func (e *Edge) SourceID() valueobjects.NodeID  { return e.sourceID }
func (e *Edge) TargetID() valueobjects.NodeID  { return e.targetID }
func (e *Edge) Type() EdgeType                 { return e.edgeType }
func (e *Edge) Bidirectional() bool            { return e.bidirectional }
func (e *Edge) Weight() EdgeWeight             { return e.weight }
func (e *Edge) Status() EdgeStatus             { return e.status }
func (e *Edge) CreationSource() CreationSource { return e.creationSource }
func (e *Edge) Neural() EdgeNeuralState        { return e.neural }
func (e *Edge) CreatedAt() time.Time           { return e.createdAt }
func (e *Edge) ExpiresAt() *time.Time          { return e.expiresAt }

// ConnectsNode reports whether the edge touches nodeID.
func (e *Edge) ConnectsNode(nodeID valueobjects.NodeID) bool {
	return e.sourceID.Equals(nodeID) || e.targetID.Equals(nodeID)
}

// OtherEnd returns the node at the far end of the edge from nodeID,
// respecting direction unless the edge is bidirectional.
func (e *Edge) OtherEnd(nodeID valueobjects.NodeID) (valueobjects.NodeID, bool) {
	if e.sourceID.Equals(nodeID) {
		return e.targetID, true
	}
	if e.bidirectional && e.targetID.Equals(nodeID) {
		return e.sourceID, true
	}
	return valueobjects.NodeID{}, false
}

// IsExpired reports whether a provisional edge's corroboration window
// has elapsed without reaching 3 activations.
func (e *Edge) IsExpired(now time.Time) bool {
	return e.status == EdgeStatusProvisional && e.expiresAt != nil && now.After(*e.expiresAt)
}

// ApplyTimeDecay applies the lazy, elapsed-time-based decay of the
// co-activation bonus: for every full coActivationDecayPeriod elapsed
// since the last activation, the bonus is multiplied by 0.95.
func (e *Edge) ApplyTimeDecay(now time.Time) {
	if e.neural.decayedThrough.IsZero() {
		e.neural.decayedThrough = e.neural.LastActivatedAt
	}
	elapsed := now.Sub(e.neural.decayedThrough)
	if elapsed <= 0 {
		return
	}
	periods := int(elapsed / coActivationDecayPeriod)
	if periods <= 0 {
		return
	}
	e.weight.CoActivation = clampCoActivation(e.weight.CoActivation * math.Pow(timeDecayFactor, float64(periods)))
	e.neural.decayedThrough = e.neural.decayedThrough.Add(time.Duration(periods) * coActivationDecayPeriod)
}

// RecordActivation applies one access outcome to the edge: engaged
// accesses grow the co-activation bonus proportional to remaining
// headroom on the effective weight and reset the ignored streak; a
// third consecutive ignored access decays the bonus instead.
func (e *Edge) RecordActivation(engaged bool, now time.Time) {
	e.ApplyTimeDecay(now)

	if engaged {
		delta := engagementDeltaFactor * (1 - e.weight.EffectiveWeight())
		e.weight.CoActivation = clampCoActivation(e.weight.CoActivation + delta)
		e.neural.ConsecutiveIgnored = 0
		e.neural.CoActivationCount++
		e.neural.ActivationCount++
		e.neural.LastActivatedAt = now
		e.neural.decayedThrough = now

		e.addEvent(events.NewEdgeActivated(e.id.String(), e.weight.CoActivation, now))

		if e.status == EdgeStatusProvisional && e.neural.CoActivationCount >= engagedActivationsToPromote {
			e.promote(now)
		}
		return
	}

	e.neural.ConsecutiveIgnored++
	if e.neural.ConsecutiveIgnored >= consecutiveIgnoredDecayThreshold {
		e.weight.CoActivation = clampCoActivation(e.weight.CoActivation * ignoredDecayFactor)
		e.neural.ConsecutiveIgnored = 0
	}
}

func (e *Edge) promote(now time.Time) {
	e.status = EdgeStatusConfirmed
	e.expiresAt = nil
	e.addEvent(events.NewEdgePromoted(e.id.String(), now))
}

// AdjustLearned nudges the learned_adjustment component by delta,
// clamped to [-0.30, 0.30]. Used by co-activation learning over a
// retrieval's joint result set, distinct from the single-edge
// RecordActivation path.
func (e *Edge) AdjustLearned(delta float64) {
	e.weight.Learned = clampLearned(e.weight.Learned + delta)
}

// GetUncommittedEvents returns domain events raised since the last
// MarkEventsAsCommitted call.
func (e *Edge) GetUncommittedEvents() []events.DomainEvent {
	return e.events
}

// MarkEventsAsCommitted clears the uncommitted events list.
func (e *Edge) MarkEventsAsCommitted() {
	e.events = []events.DomainEvent{}
}

func (e *Edge) addEvent(event events.DomainEvent) {
	e.events = append(e.events, event)
}
