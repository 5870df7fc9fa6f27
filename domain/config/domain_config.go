package config

import "time"

// CurrentSchemaVersion is the schema version stamped on every persisted
// configuration and aggregate this package produces.
const CurrentSchemaVersion = 1

// FSRSConfig holds the neural-state-machine growth constants.
type FSRSConfig struct {
	SchemaVersion int

	// StabilityGrowthRate is alpha in S <- S * (1 + alpha*(11-D)/10*R_prev).
	StabilityGrowthRate float64
	// DifficultyChangeRate is beta in D <- clamp(D + beta*(grade-3), 1, 10).
	DifficultyChangeRate float64
	DefaultGrade         float64

	MinStability  float64
	MinDifficulty float64
	MaxDifficulty float64

	// Lifecycle band thresholds on retrievability R.
	ActiveThreshold float64 // R >= this -> ACTIVE
	WeakThreshold   float64 // this <= R < ActiveThreshold -> WEAK; below -> DORMANT
}

// EmbeddingConfig holds context-prefix and Matryoshka constants.
type EmbeddingConfig struct {
	SchemaVersion int

	DefaultDimensions int
	MatryoshkaDims    []int
	ComparisonDims    int // dims used for fast similarity comparisons (512 by default)

	MinContentLength     int
	MinExpandedLength     int
	RetryBaseDelay        time.Duration
	MaxRetriesPerProvider int
	InterProviderDelay    time.Duration
}

// LexicalConfig holds BM25 field weights and tokenization constants.
type LexicalConfig struct {
	SchemaVersion int

	FieldWeights map[string]float64
	StopWords    map[string]bool
	MinTokenLen  int
}

// SimilarityConfig holds similarity-edge maintenance thresholds.
type SimilarityConfig struct {
	SchemaVersion int

	SimilarityEdgeThreshold float64
	DedupCheckThreshold     float64
	StaleEdgeThreshold      float64
	RecentNodeWindow        int
}

// EdgeWeightConfig holds base weights by edge type and co-activation
// learning constants.
type EdgeWeightConfig struct {
	SchemaVersion int

	BaseWeights map[string]float64

	EngagementDeltaFactor    float64
	ConsecutiveIgnoredLimit  int
	IgnoredDecayFactor       float64
	CoActivationDecayPeriod  time.Duration
	CoActivationDecayFactor  float64
	EngagedActivationsToPromote int
	ProvisionalExpiry        time.Duration

	TemporalAdjacentWindow     time.Duration
	TemporalContinuationWindow time.Duration
	TemporalAdjacentMinWeight  float64
	TemporalContinuationWeight float64

	UserEdgeDefaultWeight float64
	UserEdgeMinStrength   float64
	UserEdgeMaxStrength   float64

	CompressionDormantDays    int
	CompressionMinStrongEdges int
	CompressionStrongWeight   float64
	CompressionRestorableDays int
}

// ClusterRoutingConfig holds cluster-affinity routing constants.
type ClusterRoutingConfig struct {
	SchemaVersion int

	MinAffinity  float64
	SearchAllGap float64
	MaxClusters  int
}

// BudgetConfig holds Adaptive Budget System constants.
type BudgetConfig struct {
	SchemaVersion int

	ColdStartNodeThreshold int
	ColdStartEntryPoints   int
	ColdStartMaxHops       int
	ColdStartMaxNodes      int

	MinEntryPoints int
	MaxEntryPoints int

	// Density bands: upper-bound density -> max_hops. Checked in order.
	DensityBandThresholds []float64
	DensityBandMaxHops    []int

	NodeCapFactorSimple   float64
	NodeCapFactorStandard float64
	NodeCapFactorComplex  float64
	MinMaxNodes           int
	MaxMaxNodes           int

	ThoroughnessQuick    float64
	ThoroughnessBalanced float64
	ThoroughnessDeep     float64

	// Quality targets per query complexity: confidence is the minimum
	// composite score of the top result; min_coverage is the minimum
	// fraction of the seed set that must survive into the final
	// candidate set for a search to be considered complete rather than
	// budget-exhausted.
	QualityConfidenceSimple   float64
	QualityConfidenceStandard float64
	QualityConfidenceComplex  float64
	QualityMinCoverageSimple   float64
	QualityMinCoverageStandard float64
	QualityMinCoverageComplex  float64
}

// RerankConfig holds the six-signal composite re-ranker weights.
type RerankConfig struct {
	SchemaVersion int

	SemanticWeight float64
	LexicalWeight  float64
	GraphWeight    float64
	RecencyWeight  float64
	AuthorityWeight float64
	AffinityWeight float64

	RecencyHalfLifeDays float64 // tau in exp(-age_days/tau)
	AuthorityCeiling    float64 // access_count at which authority saturates
}

// RetrievalConfig holds Spreading Activation Search constants.
type RetrievalConfig struct {
	SchemaVersion int

	SeedThresholdWithEmbeddings float64
	SeedThresholdLexicalOnly    float64
	DenseFusionWeight           float64
	LexicalFusionWeight         float64

	HopActivationCutoff float64
	SpreadCutoff         float64
	PerNodeEdgeCap       int
	HopDiscountBase      float64
}

// DomainConfig aggregates every sub-config the engine reads.
type DomainConfig struct {
	SchemaVersion int

	FSRS      FSRSConfig
	Embedding EmbeddingConfig
	Lexical   LexicalConfig
	Similarity SimilarityConfig
	EdgeWeight EdgeWeightConfig
	ClusterRouting ClusterRoutingConfig
	Budget    BudgetConfig
	Rerank    RerankConfig
	Retrieval RetrievalConfig

	// Node constraints, carried over from the original graph-editing
	// domain for the ambient CRUD surface.
	MaxConnectionsPerNode int
	MaxTagsPerNode        int
	MaxTitleLength        int
	MaxContentLength      int
}

// DefaultDomainConfig returns the default domain configuration.
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		SchemaVersion: CurrentSchemaVersion,

		FSRS: FSRSConfig{
			SchemaVersion:        CurrentSchemaVersion,
			StabilityGrowthRate:  0.1,
			DifficultyChangeRate: 0.4,
			DefaultGrade:         4,
			MinStability:         0.1,
			MinDifficulty:        1,
			MaxDifficulty:        10,
			ActiveThreshold:      0.5,
			WeakThreshold:        0.1,
		},

		Embedding: EmbeddingConfig{
			SchemaVersion:         CurrentSchemaVersion,
			DefaultDimensions:     1536,
			MatryoshkaDims:        []int{128, 512, 1536},
			ComparisonDims:        512,
			MinContentLength:      10,
			MinExpandedLength:     50,
			RetryBaseDelay:        1 * time.Second,
			MaxRetriesPerProvider: 2,
			InterProviderDelay:    1 * time.Second,
		},

		Lexical: LexicalConfig{
			SchemaVersion: CurrentSchemaVersion,
			FieldWeights: map[string]float64{
				"title":   2.0,
				"summary": 1.5,
				"tags":    1.5,
				"body":    1.0,
			},
			StopWords:   defaultStopWords(),
			MinTokenLen: 2,
		},

		Similarity: SimilarityConfig{
			SchemaVersion:           CurrentSchemaVersion,
			SimilarityEdgeThreshold: 0.90,
			DedupCheckThreshold:     0.95,
			StaleEdgeThreshold:      0.80,
			RecentNodeWindow:        100,
		},

		EdgeWeight: EdgeWeightConfig{
			SchemaVersion:               CurrentSchemaVersion,
			BaseWeights:                 defaultEdgeBaseWeights(),
			EngagementDeltaFactor:       0.10,
			ConsecutiveIgnoredLimit:     3,
			IgnoredDecayFactor:          0.95,
			CoActivationDecayPeriod:     60 * 24 * time.Hour,
			CoActivationDecayFactor:     0.95,
			EngagedActivationsToPromote: 3,
			ProvisionalExpiry:           30 * 24 * time.Hour,
			TemporalAdjacentWindow:      120 * time.Minute,
			TemporalContinuationWindow:  24 * time.Hour,
			TemporalAdjacentMinWeight:   0.20,
			TemporalContinuationWeight:  0.30,
			UserEdgeDefaultWeight:       0.90,
			UserEdgeMinStrength:         0.50,
			UserEdgeMaxStrength:         1.00,
			CompressionDormantDays:      60,
			CompressionMinStrongEdges:   2,
			CompressionStrongWeight:     0.70,
			CompressionRestorableDays:   365,
		},

		ClusterRouting: ClusterRoutingConfig{
			SchemaVersion: CurrentSchemaVersion,
			MinAffinity:   0.30,
			SearchAllGap:  0.10,
			MaxClusters:   3,
		},

		Budget: BudgetConfig{
			SchemaVersion:          CurrentSchemaVersion,
			ColdStartNodeThreshold: 200,
			ColdStartEntryPoints:   2,
			ColdStartMaxHops:       2,
			ColdStartMaxNodes:      50,
			MinEntryPoints:         2,
			MaxEntryPoints:         8,
			DensityBandThresholds:  []float64{0.001, 0.01, 0.05},
			DensityBandMaxHops:     []int{5, 4, 3, 2},
			NodeCapFactorSimple:    0.02,
			NodeCapFactorStandard:  0.05,
			NodeCapFactorComplex:   0.10,
			MinMaxNodes:            50,
			MaxMaxNodes:            5000,
			ThoroughnessQuick:      0.5,
			ThoroughnessBalanced:   1.0,
			ThoroughnessDeep:       2.0,

			QualityConfidenceSimple:    0.5,
			QualityConfidenceStandard:  0.7,
			QualityConfidenceComplex:   0.8,
			QualityMinCoverageSimple:   0.5,
			QualityMinCoverageStandard: 0.6,
			QualityMinCoverageComplex:  0.7,
		},

		Rerank: RerankConfig{
			SchemaVersion:       CurrentSchemaVersion,
			SemanticWeight:      0.25,
			LexicalWeight:       0.20,
			GraphWeight:         0.20,
			RecencyWeight:       0.15,
			AuthorityWeight:     0.10,
			AffinityWeight:      0.10,
			RecencyHalfLifeDays: 30,
			AuthorityCeiling:    20,
		},

		Retrieval: RetrievalConfig{
			SchemaVersion:               CurrentSchemaVersion,
			SeedThresholdWithEmbeddings: 0.15,
			SeedThresholdLexicalOnly:    0.05,
			DenseFusionWeight:           0.7,
			LexicalFusionWeight:         0.3,
			HopActivationCutoff:         0.1,
			SpreadCutoff:                0.05,
			PerNodeEdgeCap:              20,
			HopDiscountBase:             0.5,
		},

		MaxConnectionsPerNode: 50,
		MaxTagsPerNode:        20,
		MaxTitleLength:        200,
		MaxContentLength:      50000,
	}
}

func defaultStopWords() map[string]bool {
	words := []string{
		"a", "an", "the", "and", "or", "but", "of", "to", "in", "on",
		"for", "with", "is", "are", "was", "were", "be", "by", "at",
		"it", "this", "that", "as", "from",
	}
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[w] = true
	}
	return out
}

func defaultEdgeBaseWeights() map[string]float64 {
	return map[string]float64{
		"same_entity":           0.95,
		"summarizes":            0.95,
		"user_linked":           0.90,
		"part_of":               0.85,
		"child_of":              0.80,
		"instance_of":           0.75,
		"caused_by":             0.70,
		"supports":              0.65,
		"contradicts":           0.65,
		"precedes":              0.55,
		"elaborates":            0.50,
		"similar_to":            0.50,
		"relates_to":            0.45,
		"references":            0.45,
		"temporal_adjacent":     0.40,
		"temporal_continuation": 0.30,
	}
}

// ProductionDomainConfig returns production-specific configuration:
// tighter content limits, nothing else differs from the default tuning.
func ProductionDomainConfig() *DomainConfig {
	c := DefaultDomainConfig()
	c.MaxConnectionsPerNode = 30
	c.MaxContentLength = 20000
	return c
}

// DevelopmentDomainConfig returns development-specific configuration:
// permissive content limits for local iteration.
func DevelopmentDomainConfig() *DomainConfig {
	c := DefaultDomainConfig()
	c.MaxContentLength = 100000
	return c
}

// LoadDomainConfig loads domain configuration based on environment.
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks cross-field invariants that can't be expressed in the
// type system alone.
func (c *DomainConfig) Validate() error {
	sum := c.Rerank.SemanticWeight + c.Rerank.LexicalWeight + c.Rerank.GraphWeight +
		c.Rerank.RecencyWeight + c.Rerank.AuthorityWeight + c.Rerank.AffinityWeight
	if sum < 0.999 || sum > 1.001 {
		return errInvalidRerankWeights
	}
	if len(c.Budget.DensityBandMaxHops) != len(c.Budget.DensityBandThresholds)+1 {
		return errInvalidDensityBands
	}
	return nil
}

var errInvalidRerankWeights = configError("rerank signal weights must sum to 1.0")
var errInvalidDensityBands = configError("density band max-hops must have one more entry than thresholds")

type configError string

func (e configError) Error() string { return string(e) }
