package budget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"synapse/domain/config"
	"synapse/domain/core/aggregates"
)

func testCfg() config.BudgetConfig {
	return config.DefaultDomainConfig().Budget
}

func TestPlanColdStart(t *testing.T) {
	p := NewPlanner(testCfg())
	metrics := aggregates.GraphMetrics{TotalNodes: 50}

	b := p.Plan(metrics, ComplexityStandard, ThoroughnessBalanced)

	assert.True(t, b.ColdStart)
	assert.Equal(t, 2, b.EntryPoints)
	assert.Equal(t, 2, b.MaxHops)
	assert.Equal(t, 50, b.MaxNodes)
}

func TestPlanAdaptiveEntryPoints(t *testing.T) {
	p := NewPlanner(testCfg())

	small := p.Plan(aggregates.GraphMetrics{TotalNodes: 1000, Density: 0.0005}, ComplexityStandard, ThoroughnessBalanced)
	large := p.Plan(aggregates.GraphMetrics{TotalNodes: 100_000_000, Density: 0.0005}, ComplexityStandard, ThoroughnessBalanced)

	assert.GreaterOrEqual(t, small.EntryPoints, 2)
	assert.LessOrEqual(t, large.EntryPoints, 8)
	assert.GreaterOrEqual(t, large.EntryPoints, small.EntryPoints)
}

func TestPlanDensityBandsMaxHops(t *testing.T) {
	p := NewPlanner(testCfg())

	sparse := p.Plan(aggregates.GraphMetrics{TotalNodes: 1000, Density: 0.0005}, ComplexityStandard, ThoroughnessBalanced)
	dense := p.Plan(aggregates.GraphMetrics{TotalNodes: 1000, Density: 0.06}, ComplexityStandard, ThoroughnessBalanced)

	assert.Equal(t, 5, sparse.MaxHops)
	assert.Equal(t, 2, dense.MaxHops)
}

func TestPlanNodeCapByComplexity(t *testing.T) {
	p := NewPlanner(testCfg())
	metrics := aggregates.GraphMetrics{TotalNodes: 10000, Density: 0.0005}

	simple := p.Plan(metrics, ComplexitySimple, ThoroughnessBalanced)
	complex := p.Plan(metrics, ComplexityComplex, ThoroughnessBalanced)

	assert.Less(t, simple.MaxNodes, complex.MaxNodes)
}

func TestPlanThoroughnessMultiplier(t *testing.T) {
	p := NewPlanner(testCfg())
	metrics := aggregates.GraphMetrics{TotalNodes: 10000, Density: 0.0005}

	quick := p.Plan(metrics, ComplexityStandard, ThoroughnessQuick)
	deep := p.Plan(metrics, ComplexityStandard, ThoroughnessDeep)

	assert.Less(t, quick.MaxNodes, deep.MaxNodes)
	assert.Less(t, quick.MaxTimeMS, deep.MaxTimeMS)

	t.Run("never scales max API calls", func(t *testing.T) {
		assert.Equal(t, quick.MaxAPICalls, deep.MaxAPICalls)
	})
}

func TestPlanNodeCapClampedToBounds(t *testing.T) {
	p := NewPlanner(testCfg())

	tiny := p.Plan(aggregates.GraphMetrics{TotalNodes: 201, Density: 0.0005}, ComplexitySimple, ThoroughnessQuick)
	assert.GreaterOrEqual(t, tiny.MaxNodes, testCfg().MinMaxNodes)

	huge := p.Plan(aggregates.GraphMetrics{TotalNodes: 100_000_000, Density: 0.0005}, ComplexityComplex, ThoroughnessDeep)
	assert.LessOrEqual(t, huge.MaxNodes, testCfg().MaxMaxNodes)
}

func TestQualityTargetScalesWithComplexity(t *testing.T) {
	p := NewPlanner(testCfg())

	simpleConfidence, simpleCoverage := p.QualityTarget(ComplexitySimple)
	complexConfidence, complexCoverage := p.QualityTarget(ComplexityComplex)

	assert.Less(t, simpleConfidence, complexConfidence, "a complex query demands a higher-confidence top result")
	assert.Less(t, simpleCoverage, complexCoverage)
}

func TestCheckExhaustion(t *testing.T) {
	b := Budget{MaxHops: 3, MaxNodes: 10, MaxTimeMS: 1000}

	assert.False(t, CheckExhaustion(b, 1, 1, 10*time.Millisecond, 0.9, 0.7, 0.9).Exhausted)

	r := CheckExhaustion(b, 1, 3, 10*time.Millisecond, 0.9, 0.7, 0.9)
	assert.True(t, r.Exhausted)
	assert.Equal(t, "max_hops", r.Reason)

	r = CheckExhaustion(b, 10, 1, 10*time.Millisecond, 0.9, 0.7, 0.9)
	assert.True(t, r.Exhausted)
	assert.Equal(t, "max_nodes", r.Reason)

	r = CheckExhaustion(b, 1, 1, 2*time.Second, 0.9, 0.7, 0.9)
	assert.True(t, r.Exhausted)
	assert.Equal(t, "max_time", r.Reason)
}

func TestCheckExhaustionPartialWhenQualityTargetMissed(t *testing.T) {
	// Mirrors the worked example: 500-node budget exhausted with a
	// composite quality of 0.58 against a 0.70 target.
	b := Budget{MaxHops: 5, MaxNodes: 500, MaxTimeMS: 100}

	r := CheckExhaustion(b, 500, 3, 80*time.Millisecond, 0.58, 0.70, 0.9)
	assert.True(t, r.Exhausted)
	assert.True(t, r.Partial)
	assert.Equal(t, "max_nodes", r.Reason)
	assert.Contains(t, r.Explanation, "58%")
	assert.Contains(t, r.Explanation, "70%")
	assert.Equal(t, `Try "Search deeper" or be more specific`, r.Suggestion)
}

func TestCheckExhaustionNotPartialWhenQualityTargetMet(t *testing.T) {
	b := Budget{MaxHops: 5, MaxNodes: 500, MaxTimeMS: 100}

	r := CheckExhaustion(b, 500, 3, 80*time.Millisecond, 0.95, 0.70, 0.9)
	assert.True(t, r.Exhausted, "a ceiling was still hit")
	assert.False(t, r.Partial, "but the quality target was already met")
	assert.Empty(t, r.Suggestion)
}
