// Package budget implements the Adaptive Budget System: it scales a
// retrieval's entry-point count, hop ceiling, node ceiling, and time
// ceiling to the current graph's size and density, plus the caller's
// requested thoroughness, instead of using one fixed budget for graphs
// of every scale.
package budget

import (
	"fmt"
	"math"
	"time"

	"synapse/domain/config"
	"synapse/domain/core/aggregates"
)

// QueryComplexity classifies a query for the purposes of the node-cap
// formula: a simple lookup needs far fewer candidate nodes scored than
// an open-ended exploratory question.
type QueryComplexity string

const (
	ComplexitySimple   QueryComplexity = "simple"
	ComplexityStandard QueryComplexity = "standard"
	ComplexityComplex  QueryComplexity = "complex"
)

// Thoroughness is the caller-selected effort dial: quick trades recall
// for latency, deep spends more of both.
type Thoroughness string

const (
	ThoroughnessQuick    Thoroughness = "quick"
	ThoroughnessBalanced Thoroughness = "balanced"
	ThoroughnessDeep     Thoroughness = "deep"
)

// BaseTimeBudget is the un-scaled time ceiling a balanced-thoroughness
// retrieval targets before the thoroughness multiplier is applied.
const BaseTimeBudget = 800 * time.Millisecond

// Budget bounds one retrieval call's resource consumption.
type Budget struct {
	EntryPoints  int
	MaxHops      int
	MaxNodes     int
	MaxTimeMS    int64
	MaxAPICalls  int
	ColdStart    bool
}

// Planner computes a Budget from graph metrics, query complexity, and
// requested thoroughness.
type Planner struct {
	cfg config.BudgetConfig
}

// NewPlanner constructs a Planner bound to cfg.
func NewPlanner(cfg config.BudgetConfig) *Planner {
	return &Planner{cfg: cfg}
}

// maxAPICallsFloor is a fixed per-retrieval ceiling on provider API
// calls (embedding + any LLM-assisted scoring). Thoroughness never
// scales this: it bounds cost exposure, not recall quality.
const maxAPICallsFloor = 5

// Plan computes the budget for one retrieval against the given graph
// metrics. Below ColdStartNodeThreshold total nodes the system uses a
// fixed, conservative cold-start budget rather than the density-adaptive
// formula, since density and degree statistics are unreliable on a tiny
// graph.
func (p *Planner) Plan(metrics aggregates.GraphMetrics, complexity QueryComplexity, thoroughness Thoroughness) Budget {
	if metrics.TotalNodes < p.cfg.ColdStartNodeThreshold {
		return Budget{
			EntryPoints: p.cfg.ColdStartEntryPoints,
			MaxHops:     p.cfg.ColdStartMaxHops,
			MaxNodes:    p.cfg.ColdStartMaxNodes,
			MaxTimeMS:   BaseTimeBudget.Milliseconds(),
			MaxAPICalls: maxAPICallsFloor,
			ColdStart:   true,
		}
	}

	entryPoints := p.entryPoints(metrics.TotalNodes)
	maxHops := p.maxHops(metrics.Density)
	maxNodes := p.maxNodes(metrics.TotalNodes, complexity)

	mult := p.thoroughnessMultiplier(thoroughness)
	maxNodes = clampInt(int(math.Round(float64(maxNodes)*mult)), p.cfg.MinMaxNodes, p.cfg.MaxMaxNodes)
	timeMS := int64(math.Round(float64(BaseTimeBudget.Milliseconds()) * mult))

	return Budget{
		EntryPoints: entryPoints,
		MaxHops:     maxHops,
		MaxNodes:    maxNodes,
		MaxTimeMS:   timeMS,
		MaxAPICalls: maxAPICallsFloor,
		ColdStart:   false,
	}
}

func (p *Planner) entryPoints(totalNodes int) int {
	n := int(math.Ceil(math.Log10(float64(totalNodes))))
	return clampInt(n, p.cfg.MinEntryPoints, p.cfg.MaxEntryPoints)
}

func (p *Planner) maxHops(density float64) int {
	for i, threshold := range p.cfg.DensityBandThresholds {
		if density < threshold {
			return p.cfg.DensityBandMaxHops[i]
		}
	}
	return p.cfg.DensityBandMaxHops[len(p.cfg.DensityBandMaxHops)-1]
}

func (p *Planner) maxNodes(totalNodes int, complexity QueryComplexity) int {
	var factor float64
	switch complexity {
	case ComplexitySimple:
		factor = p.cfg.NodeCapFactorSimple
	case ComplexityComplex:
		factor = p.cfg.NodeCapFactorComplex
	default:
		factor = p.cfg.NodeCapFactorStandard
	}
	n := int(math.Round(float64(totalNodes) * factor))
	return clampInt(n, p.cfg.MinMaxNodes, p.cfg.MaxMaxNodes)
}

// QualityTarget returns the minimum top-result confidence and minimum
// seed-coverage fraction a search of the given complexity must clear to
// be considered complete rather than budget-exhausted.
func (p *Planner) QualityTarget(complexity QueryComplexity) (confidence, minCoverage float64) {
	switch complexity {
	case ComplexitySimple:
		return p.cfg.QualityConfidenceSimple, p.cfg.QualityMinCoverageSimple
	case ComplexityComplex:
		return p.cfg.QualityConfidenceComplex, p.cfg.QualityMinCoverageComplex
	default:
		return p.cfg.QualityConfidenceStandard, p.cfg.QualityMinCoverageStandard
	}
}

func (p *Planner) thoroughnessMultiplier(t Thoroughness) float64 {
	switch t {
	case ThoroughnessQuick:
		return p.cfg.ThoroughnessQuick
	case ThoroughnessDeep:
		return p.cfg.ThoroughnessDeep
	default:
		return p.cfg.ThoroughnessBalanced
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// exhaustionSuggestion is the fixed caller-facing suggestion offered
// whenever a search stops short of its quality target on a budget
// ceiling; the two options this repository surfaces.
const exhaustionSuggestion = `Try "Search deeper" or be more specific`

// ExhaustionResult reports that a retrieval stopped because it hit a
// budget ceiling rather than a quality target, so the caller can surface
// a partial result instead of a hard failure. Partial is only set when
// the ceiling was hit AND the quality target was missed - hitting a
// ceiling after already meeting the quality target is normal
// termination, not exhaustion.
type ExhaustionResult struct {
	Exhausted   bool
	Partial     bool
	Reason      string // "max_hops", "max_nodes", "max_time", ""
	NodesVisited int
	HopsReached  int
	ElapsedMS    int64

	QualityAchieved  float64
	QualityTarget    float64
	CoverageAchieved float64
	Explanation      string
	Suggestion       string
}

// CheckExhaustion reports whether the current traversal state has hit
// any of the budget's ceilings, and if so, whether it did so before
// reaching qualityTarget - the condition that makes the result partial
// and worth explaining to the caller.
func CheckExhaustion(b Budget, nodesVisited, hopsReached int, elapsed time.Duration, qualityAchieved, qualityTarget, coverageAchieved float64) ExhaustionResult {
	elapsedMS := elapsed.Milliseconds()
	base := ExhaustionResult{
		NodesVisited:     nodesVisited,
		HopsReached:      hopsReached,
		ElapsedMS:        elapsedMS,
		QualityAchieved:  qualityAchieved,
		QualityTarget:    qualityTarget,
		CoverageAchieved: coverageAchieved,
	}

	var reason string
	switch {
	case hopsReached >= b.MaxHops:
		reason = "max_hops"
	case nodesVisited >= b.MaxNodes:
		reason = "max_nodes"
	case elapsedMS >= b.MaxTimeMS:
		reason = "max_time"
	default:
		return base
	}

	base.Exhausted = true
	base.Reason = reason
	if qualityAchieved < qualityTarget {
		base.Partial = true
		base.Explanation = fmt.Sprintf("stopped at %s after reaching %.0f%% of the %.0f%% quality target", reason, qualityAchieved*100, qualityTarget*100)
		base.Suggestion = exhaustionSuggestion
	}
	return base
}
