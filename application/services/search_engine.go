// Package services holds the application-layer orchestrators that
// compose domain services into end-to-end use cases - the public
// surface a Lambda handler or HTTP handler calls into.
package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"synapse/application/ports"
	"synapse/domain/config"
	"synapse/domain/core/aggregates"
	"synapse/domain/core/entities"
	"synapse/domain/core/primitives"
	"synapse/domain/core/valueobjects"
	"synapse/domain/services/budget"
	"synapse/domain/services/clusterrouting"
	"synapse/domain/services/fsrs"
	"synapse/domain/services/lexical"
	"synapse/domain/services/rerank"
	"synapse/domain/services/retrieval"
)

// SearchRequest is the public input to a retrieval call.
type SearchRequest struct {
	UserID       string
	Query        string
	TopK         int
	Complexity   budget.QueryComplexity
	Thoroughness budget.Thoroughness
}

// SearchResult is the public output: ranked nodes plus the
// termination diagnostics a caller (or telemetry) may want to inspect.
type SearchResult struct {
	Results          []rerank.Scored
	TerminationReason retrieval.TerminationReason
	HopsRun          int
	NodesVisited     int
	RoutingStrategy  clusterrouting.Strategy
	Elapsed          time.Duration

	// Partial and Exhaustion together surface budget.ExhaustionResult's
	// contract to the caller: Partial is true only when a budget
	// ceiling was hit before the quality target was reached.
	Partial   bool
	Exhaustion budget.ExhaustionResult
}

// EngagementRequest confirms, for a node previously returned by a
// Search call, whether the caller actually dwelt on it (engaged) or
// passed over it (ignored). ResultSetNodeIDs is the full set of node
// IDs that search returned alongside NodeID: co-activation strengthens
// any edge already connecting NodeID to another member of that set,
// since nodes retrieved jointly are evidence of association, matching
// the adopted co-return rule (see record_activation in the edge
// weighting service).
type EngagementRequest struct {
	UserID           string
	NodeID           valueobjects.NodeID
	Engaged          bool
	ResultSetNodeIDs []valueobjects.NodeID
}

// SearchEngine is the public retrieval orchestrator: it wires cluster
// routing, the Adaptive Budget System, Spreading Activation Search, and
// the six-signal re-ranker into a single call, and lazily applies FSRS
// read-time decay to the nodes it touches.
type SearchEngine struct {
	nodeRepo   ports.NodeRepository
	graphRepo  ports.GraphRepository
	embedder   ports.EmbeddingProvider
	clusters   ports.ClusterService
	telemetry  ports.TelemetrySink
	cfg        config.DomainConfig
	planner    *budget.Planner
	router     *clusterrouting.Router
	searcher   *retrieval.Searcher
	ranker     *rerank.Ranker
	fsrsEngine *fsrs.Engine
	clock      primitives.Clock
	logger     *zap.Logger
}

// NewSearchEngine constructs a SearchEngine. embedder, clusters, and
// telemetry may be nil: a nil embedder degrades to the lexical-only
// seeding threshold, a nil cluster service skips routing (effectively
// StrategyAllClusters), and a nil telemetry sink simply skips
// recording.
func NewSearchEngine(
	nodeRepo ports.NodeRepository,
	graphRepo ports.GraphRepository,
	embedder ports.EmbeddingProvider,
	clusters ports.ClusterService,
	telemetry ports.TelemetrySink,
	cfg config.DomainConfig,
	clock primitives.Clock,
	logger *zap.Logger,
) *SearchEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = primitives.SystemClock{}
	}
	return &SearchEngine{
		nodeRepo:   nodeRepo,
		graphRepo:  graphRepo,
		embedder:   embedder,
		clusters:   clusters,
		telemetry:  telemetry,
		cfg:        cfg,
		planner:    budget.NewPlanner(cfg.Budget),
		router:     clusterrouting.NewRouter(cfg.ClusterRouting),
		searcher:   retrieval.NewSearcher(cfg.Retrieval),
		ranker:     rerank.NewRanker(cfg.Rerank),
		fsrsEngine: fsrs.NewEngine(cfg.FSRS),
		clock:      clock,
		logger:     logger,
	}
}

// Search runs one retrieval pass for req and returns ranked results.
func (e *SearchEngine) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}
	if req.Complexity == "" {
		req.Complexity = budget.ComplexityStandard
	}
	if req.Thoroughness == "" {
		req.Thoroughness = budget.ThoroughnessBalanced
	}

	start := e.clock.Now()

	graph, err := e.graphRepo.GetOrCreateForUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}

	nodes, err := e.nodeRepo.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}

	now0 := e.clock.Now()
	retrievable := make([]*entities.Node, 0, len(nodes))
	for _, n := range nodes {
		if !n.IsRetrievable() {
			continue
		}
		if _, lifecycle := e.fsrsEngine.ReadDecay(n, now0); lifecycle == entities.LifecycleDormant && n.Lifecycle() != entities.LifecycleDormant {
			continue
		}
		retrievable = append(retrievable, n)
	}

	var queryEmbedding primitives.Vector
	hasEmbeddings := false
	if e.embedder != nil {
		if vec, embedErr := e.embedder.Embed(ctx, req.Query); embedErr == nil {
			queryEmbedding = vec
			hasEmbeddings = true
		} else {
			e.logger.Warn("query embedding failed, falling back to lexical-only seeding", zap.Error(embedErr))
		}
	}

	routing := clusterrouting.Decision{Strategy: clusterrouting.StrategyAllClusters}
	var queryClusterAffinity float64
	if e.clusters != nil && hasEmbeddings {
		clusterSet, clusterErr := e.clusters.ClustersForUser(ctx, req.UserID)
		if clusterErr != nil {
			e.logger.Warn("failed to load clusters, defaulting to all-clusters routing", zap.Error(clusterErr))
		} else if routed, routeErr := e.router.Route(queryEmbedding, clusterSet); routeErr == nil {
			routing = routed
			for _, sc := range routing.Clusters {
				if sc.Affinity > queryClusterAffinity {
					queryClusterAffinity = sc.Affinity
				}
			}
		}
	}

	budgetPlan := e.planner.Plan(graph.Metrics(), req.Complexity, req.Thoroughness)

	index := lexical.NewIndex(e.cfg.Lexical)
	for _, n := range retrievable {
		index.Upsert(n, "", n.Temporal().PrimaryTimestamp().Unix())
	}
	lexicalResults := index.Search(req.Query, lexical.Filter{})
	lexicalScores := make(map[string]float64, len(lexicalResults))
	for _, r := range lexicalResults {
		lexicalScores[r.NodeID.String()] = r.Score
	}

	nodeByID := make(map[string]*entities.Node, len(retrievable))
	candidates := make([]retrieval.SeedCandidate, 0, len(retrievable))
	for _, n := range retrievable {
		nodeByID[n.ID().String()] = n
		var dense float64
		if hasEmbeddings && n.Embedding() != nil {
			if sim, simErr := primitives.CosineSimilarity(queryEmbedding, n.Embedding().Vector); simErr == nil {
				dense = sim
			}
		}
		candidates = append(candidates, retrieval.SeedCandidate{
			NodeID:       n.ID(),
			DenseScore:   dense,
			LexicalScore: lexicalScores[n.ID().String()],
		})
	}

	seeds := retrieval.SelectSeeds(e.cfg.Retrieval, candidates, hasEmbeddings)
	if len(seeds) > budgetPlan.EntryPoints {
		seeds = seeds[:budgetPlan.EntryPoints]
	}

	quality := retrieval.QualityTarget{MinResults: req.TopK, MinActivation: e.cfg.Retrieval.SeedThresholdWithEmbeddings}
	spread := e.searcher.Spread(graph, seeds, budgetPlan, quality, e.clock)

	now := e.clock.Now()
	signals := make([]rerank.Signals, 0, len(spread.Activated))
	for _, a := range spread.Activated {
		n, ok := nodeByID[a.NodeID.String()]
		if !ok {
			continue
		}
		signals = append(signals, rerank.Signals{
			NodeID:      n.ID(),
			Semantic:    candidateDense(candidates, a.NodeID),
			Lexical:     lexicalScores[a.NodeID.String()],
			Graph:       a.Activation,
			Affinity:    queryClusterAffinity,
			AgeDays:     rerank.AgeDaysSince(n.CreatedAt(), now),
			AccessCount: n.Neural().AccessCount,
			Stability:   n.Neural().Stability,
		})
	}

	if len(seeds) == 0 && len(spread.Activated) == 0 {
		fallback := retrieval.LexicalFallback(e.cfg.Lexical, req.Query, retrievable)
		for _, id := range fallback {
			n, ok := nodeByID[id.String()]
			if !ok {
				continue
			}
			signals = append(signals, rerank.Signals{
				NodeID:      n.ID(),
				Lexical:     1.0,
				AgeDays:     rerank.AgeDaysSince(n.CreatedAt(), now),
				AccessCount: n.Neural().AccessCount,
				Stability:   n.Neural().Stability,
			})
		}
	}

	ranked := e.ranker.Rank(signals)
	if len(ranked) > req.TopK {
		ranked = ranked[:req.TopK]
	}

	e.applyReadSideEffects(ctx, graph, nodeByID, ranked, now)

	elapsed := e.clock.Now().Sub(start)

	qualityAchieved := 0.0
	if len(ranked) > 0 {
		qualityAchieved = ranked[0].Composite
	}
	qualityTarget, _ := e.planner.QualityTarget(req.Complexity)
	coverage := 1.0
	if len(seeds) > 0 {
		coverage = float64(len(spread.Activated)) / float64(len(seeds))
	}
	exhaustion := budget.CheckExhaustion(budgetPlan, len(spread.Activated), spread.HopsRun, elapsed, qualityAchieved, qualityTarget, coverage)

	if e.telemetry != nil {
		e.telemetry.RecordSearchLatency(ctx, req.UserID, elapsed, len(spread.Activated), spread.HopsRun)
		e.telemetry.RecordSearchQuality(ctx, req.UserID, len(ranked), qualityAchieved)
		if exhaustion.Partial {
			e.telemetry.RecordBudgetExhaustion(ctx, req.UserID, exhaustion.Reason)
		}
	}

	return &SearchResult{
		Results:           ranked,
		TerminationReason: spread.Reason,
		HopsRun:           spread.HopsRun,
		NodesVisited:      len(spread.Activated),
		RoutingStrategy:   routing.Strategy,
		Elapsed:           elapsed,
		Partial:           exhaustion.Partial,
		Exhaustion:        exhaustion,
	}, nil
}

// applyReadSideEffects implements the write-half of retrieval (spec's
// "retrieval is a read operation that also writes"): every returned
// node grows FSRS stability and bumps its access count, and any edge
// already connecting two co-returned nodes gets a co-activation tick,
// since joint retrieval is itself evidence of association. Mutations
// are persisted before Search returns; failures are logged, not fatal,
// since they must never block the caller from getting their results.
func (e *SearchEngine) applyReadSideEffects(ctx context.Context, graph *aggregates.Graph, nodeByID map[string]*entities.Node, ranked []rerank.Scored, now time.Time) {
	touchedNodes := make([]*entities.Node, 0, len(ranked))
	for _, r := range ranked {
		n, ok := nodeByID[r.NodeID.String()]
		if !ok {
			continue
		}
		neural := n.Neural()
		rPrev, _ := e.fsrsEngine.ReadDecay(n, now)
		recall := e.fsrsEngine.ApplyRecall(neural.Stability, neural.Difficulty, rPrev, 0)
		n.RecordActivation(recall.NewStability, recall.NewDifficulty, now)
		touchedNodes = append(touchedNodes, n)
	}
	if len(touchedNodes) > 0 {
		if err := e.nodeRepo.BulkSave(ctx, touchedNodes); err != nil {
			e.logger.Warn("failed to persist read-time FSRS growth", zap.Error(err))
		}
		for _, n := range touchedNodes {
			n.MarkEventsAsCommitted()
		}
	}

	edgesTouched := false
	for i := 0; i < len(ranked); i++ {
		for j := i + 1; j < len(ranked); j++ {
			edge, ok := graph.FindEdgeBetween(ranked[i].NodeID, ranked[j].NodeID)
			if !ok {
				continue
			}
			edge.RecordActivation(true, now)
			edgesTouched = true
		}
	}
	if edgesTouched {
		if err := e.graphRepo.Save(ctx, graph); err != nil {
			e.logger.Warn("failed to persist co-return activation ticks", zap.Error(err))
		}
	}
}

// RecordEngagement is the explicit entry point a caller invokes once it
// has confirmed whether a previously returned node was actually
// dwelt on (>= 5s) or passed over, since Search itself cannot observe
// that: it only knows what it returned, not what the caller did with
// it. Co-activation strengthens or decays any edge already connecting
// NodeID to another member of the same result set.
func (e *SearchEngine) RecordEngagement(ctx context.Context, req EngagementRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("user ID is required")
	}

	graph, err := e.graphRepo.GetByUserID(ctx, req.UserID)
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}

	now := e.clock.Now()
	touched := false
	for _, other := range req.ResultSetNodeIDs {
		if other.Equals(req.NodeID) {
			continue
		}
		edge, ok := graph.FindEdgeBetween(req.NodeID, other)
		if !ok {
			continue
		}
		edge.RecordActivation(req.Engaged, now)
		touched = true
	}

	if !touched {
		return nil
	}
	if err := e.graphRepo.Save(ctx, graph); err != nil {
		return fmt.Errorf("failed to persist engagement: %w", err)
	}
	return nil
}

func candidateDense(candidates []retrieval.SeedCandidate, id interface{ String() string }) float64 {
	for _, c := range candidates {
		if c.NodeID.String() == id.String() {
			return c.DenseScore
		}
	}
	return 0
}
