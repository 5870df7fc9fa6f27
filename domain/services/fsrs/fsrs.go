// Package fsrs implements the neural state machine governing each
// node's stability, difficulty, and retrievability: the forgetting-curve
// dynamics that drive lifecycle transitions.
package fsrs

import (
	"math"
	"time"

	"synapse/domain/config"
	"synapse/domain/core/entities"
)

// Engine computes FSRS transitions against a fixed configuration.
type Engine struct {
	cfg config.FSRSConfig
}

// NewEngine constructs an Engine bound to cfg.
func NewEngine(cfg config.FSRSConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Retrievability computes R(deltaT) = exp(-deltaT/S) for a node whose
// stability is S and whose last access was deltaT days ago. Decreasing
// and strictly less than 1 for any deltaT > 0; R(0) = 1.
func (e *Engine) Retrievability(stability float64, deltaT time.Duration) float64 {
	if stability <= 0 {
		stability = e.cfg.MinStability
	}
	days := deltaT.Hours() / 24
	if days <= 0 {
		return 1
	}
	return math.Exp(-days / stability)
}

// LifecycleForRetrievability maps a retrievability value to its
// lifecycle band, per the fixed thresholds.
func (e *Engine) LifecycleForRetrievability(r float64) entities.LifecycleStage {
	switch {
	case r >= e.cfg.ActiveThreshold:
		return entities.LifecycleActive
	case r >= e.cfg.WeakThreshold:
		return entities.LifecycleWeak
	default:
		return entities.LifecycleDormant
	}
}

// RecallResult is the outcome of applying FSRS growth to one successful
// recall.
type RecallResult struct {
	NewStability  float64
	NewDifficulty float64
	RPrev         float64
}

// ApplyRecall computes the post-recall stability and difficulty for a
// node accessed grade-rated recall. It must be called with the
// retrievability computed from elapsed time BEFORE this access (R_prev);
// the caller is responsible for passing the pre-access value, since this
// function does not know the access timestamp relationship on its own.
func (e *Engine) ApplyRecall(stability, difficulty float64, rPrev float64, grade float64) RecallResult {
	if grade == 0 {
		grade = e.cfg.DefaultGrade
	}

	newStability := stability * (1 + e.cfg.StabilityGrowthRate*(11-difficulty)/10*rPrev)
	if newStability < stability {
		// Monotonicity invariant: a successful recall never reduces
		// stability, even when R_prev is small enough that the growth
		// term rounds to a negative adjustment.
		newStability = stability
	}
	if newStability < e.cfg.MinStability {
		newStability = e.cfg.MinStability
	}

	newDifficulty := difficulty + e.cfg.DifficultyChangeRate*(grade-3)
	if newDifficulty < e.cfg.MinDifficulty {
		newDifficulty = e.cfg.MinDifficulty
	}
	if newDifficulty > e.cfg.MaxDifficulty {
		newDifficulty = e.cfg.MaxDifficulty
	}

	return RecallResult{
		NewStability:  newStability,
		NewDifficulty: newDifficulty,
		RPrev:         rPrev,
	}
}

// ReadDecay computes the lazily-derived lifecycle for a node being read,
// honoring the rule that a persisted DORMANT lifecycle is never promoted
// by a read-time recomputation: only an explicit write (RecordActivation
// via the entity, or an explicit PATCH) may reactivate a DORMANT node.
// now and node.Neural().LastAccessedAt determine deltaT.
func (e *Engine) ReadDecay(node *entities.Node, now time.Time) (retrievability float64, lifecycle entities.LifecycleStage) {
	neural := node.Neural()
	deltaT := now.Sub(neural.LastAccessedAt)
	r := e.Retrievability(neural.Stability, deltaT)

	if node.Lifecycle() == entities.LifecycleDormant {
		return r, entities.LifecycleDormant
	}
	return r, e.LifecycleForRetrievability(r)
}

// NeuralDefaults returns the default (stability, difficulty) seed for a
// freshly created node of the given type: episodes start harder to
// retain and less stable than concepts, matching the intuition that raw
// episodic detail decays faster than distilled concepts.
func (e *Engine) NeuralDefaults(nodeType entities.NodeType) (stability, difficulty float64) {
	switch nodeType {
	case entities.NodeTypeEpisode:
		return 0.75, 6.5
	case entities.NodeTypeConcept:
		return 1.5, 4.0
	case entities.NodeTypeSummary:
		return 3.0, 3.0
	default:
		return 1.0, 5.0
	}
}
