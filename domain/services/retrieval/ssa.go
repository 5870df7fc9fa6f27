// Package retrieval implements Spreading Activation Search: the
// hop-based traversal that takes a set of seed nodes (found by dense
// and lexical matching) and propagates activation outward across
// weighted edges, discounted per hop, until a termination condition
// fires.
package retrieval

import (
	"sort"
	"time"

	"synapse/domain/config"
	"synapse/domain/core/aggregates"
	"synapse/domain/core/entities"
	"synapse/domain/core/primitives"
	"synapse/domain/core/valueobjects"
	"synapse/domain/services/budget"
	"synapse/domain/services/lexical"
)

// SeedCandidate is one node considered for seeding the spread, with its
// dense and lexical match scores (each already normalized to [0,1]; a
// zero value means that signal did not fire for this node, e.g. no
// embedding comparison was possible).
type SeedCandidate struct {
	NodeID       valueobjects.NodeID
	DenseScore   float64
	LexicalScore float64
}

// FusedScore implements fused = 0.7*dense + 0.3*bm25.
func FusedScore(cfg config.RetrievalConfig, c SeedCandidate) float64 {
	return cfg.DenseFusionWeight*c.DenseScore + cfg.LexicalFusionWeight*c.LexicalScore
}

// SelectSeeds filters candidates to those clearing the seed threshold
// and returns them sorted by fused score descending. hasEmbeddings
// selects between the two configured thresholds: a query with a usable
// embedding demands a higher bar than a lexical-only fallback, since the
// lexical-only path has no dense signal to cross-check against.
func SelectSeeds(cfg config.RetrievalConfig, candidates []SeedCandidate, hasEmbeddings bool) []ActivatedNode {
	threshold := cfg.SeedThresholdLexicalOnly
	if hasEmbeddings {
		threshold = cfg.SeedThresholdWithEmbeddings
	}

	out := make([]ActivatedNode, 0, len(candidates))
	for _, c := range candidates {
		fused := FusedScore(cfg, c)
		if fused >= threshold {
			out = append(out, ActivatedNode{NodeID: c.NodeID, Activation: fused, Hop: 0})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Activation > out[j].Activation })
	return out
}

// ActivatedNode is one node reached by the spread, with the hop at
// which it was first reached and its accumulated activation level.
type ActivatedNode struct {
	NodeID     valueobjects.NodeID
	Activation float64
	Hop        int
}

// HopDiscount implements 0.5^(h-1) for h >= 1; hop 0 (the seed set
// itself) is never discounted.
func HopDiscount(cfg config.RetrievalConfig, hop int) float64 {
	if hop <= 0 {
		return 1
	}
	discount := 1.0
	for i := 1; i < hop; i++ {
		discount *= cfg.HopDiscountBase
	}
	return discount
}

// TerminationReason names why a spread stopped.
type TerminationReason string

const (
	TerminationMaxHops        TerminationReason = "max_hops"
	TerminationMaxNodes       TerminationReason = "max_nodes"
	TerminationMaxTime        TerminationReason = "max_time"
	TerminationQualityMet     TerminationReason = "quality_target_met"
	TerminationExhaustedSpread TerminationReason = "spread_exhausted"
)

// Result is the outcome of one spreading activation search.
type Result struct {
	Activated []ActivatedNode
	Reason    TerminationReason
	HopsRun   int
}

// QualityTarget lets a caller ask the spread to stop early once enough
// high-activation nodes have been found, instead of always spending the
// full budget.
type QualityTarget struct {
	MinResults     int
	MinActivation  float64
}

func (t QualityTarget) met(activated map[valueobjects.NodeID]*ActivatedNode) bool {
	if t.MinResults <= 0 {
		return false
	}
	count := 0
	for _, a := range activated {
		if a.Activation >= t.MinActivation {
			count++
		}
	}
	return count >= t.MinResults
}

// Searcher runs Spreading Activation Search over a graph.
type Searcher struct {
	cfg config.RetrievalConfig
}

// NewSearcher constructs a Searcher bound to cfg.
func NewSearcher(cfg config.RetrievalConfig) *Searcher {
	return &Searcher{cfg: cfg}
}

// Spread runs the hop-based propagation from a pre-selected seed set
// (hop 0, already filtered and scored by SelectSeeds) outward across the
// graph, bounded by b, until a termination condition fires. clock is
// used only to bound wall-clock time against b.MaxTimeMS; it does not
// affect the propagation math.
func (s *Searcher) Spread(g *aggregates.Graph, seeds []ActivatedNode, b budget.Budget, target QualityTarget, clock primitives.Clock) Result {
	start := clock.Now()
	activated := make(map[valueobjects.NodeID]*ActivatedNode, len(seeds))
	frontier := make([]ActivatedNode, 0, len(seeds))

	for _, seed := range seeds {
		if len(activated) >= b.MaxNodes {
			break
		}
		a := seed
		activated[a.NodeID] = &a
		frontier = append(frontier, a)
	}

	hop := 0
	for hop < b.MaxHops && len(frontier) > 0 {
		if target.met(activated) {
			return s.finish(activated, TerminationQualityMet, hop)
		}
		if clock.Now().Sub(start) >= time.Duration(b.MaxTimeMS)*time.Millisecond {
			return s.finish(activated, TerminationMaxTime, hop)
		}

		hop++
		discount := HopDiscount(s.cfg, hop)
		nextFrontier := make([]ActivatedNode, 0)
		spreadAny := false

		for _, node := range frontier {
			edges := g.Neighbors(node.NodeID)
			sort.Slice(edges, func(i, j int) bool {
				return edges[i].Weight().EffectiveWeight() > edges[j].Weight().EffectiveWeight()
			})
			if len(edges) > s.cfg.PerNodeEdgeCap {
				edges = edges[:s.cfg.PerNodeEdgeCap]
			}

			for _, edge := range edges {
				otherEnd, ok := edge.OtherEnd(node.NodeID)
				if !ok {
					continue
				}
				propagated := node.Activation * edge.Weight().EffectiveWeight() * discount
				if propagated < s.cfg.SpreadCutoff {
					continue
				}
				if propagated < s.cfg.HopActivationCutoff {
					continue
				}
				spreadAny = true

				if existing, seen := activated[otherEnd]; seen {
					existing.Activation += propagated
					if existing.Activation > 1 {
						existing.Activation = 1
					}
					continue
				}
				if len(activated) >= b.MaxNodes {
					continue
				}
				a := ActivatedNode{NodeID: otherEnd, Activation: propagated, Hop: hop}
				activated[otherEnd] = &a
				nextFrontier = append(nextFrontier, a)
			}

			if len(activated) >= b.MaxNodes {
				return s.finish(activated, TerminationMaxNodes, hop)
			}
		}

		if !spreadAny {
			return s.finish(activated, TerminationExhaustedSpread, hop)
		}
		frontier = nextFrontier
	}

	if hop >= b.MaxHops {
		return s.finish(activated, TerminationMaxHops, hop)
	}
	return s.finish(activated, TerminationExhaustedSpread, hop)
}

func (s *Searcher) finish(activated map[valueobjects.NodeID]*ActivatedNode, reason TerminationReason, hops int) Result {
	out := make([]ActivatedNode, 0, len(activated))
	for _, a := range activated {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Activation > out[j].Activation })
	return Result{Activated: out, Reason: reason, HopsRun: hops}
}

// QueryKind distinguishes a temporal query ("what did I discuss
// yesterday") from a concept query, since a temporal query seeds
// differently: from recent episode/session nodes rather than from
// semantic match.
type QueryKind string

const (
	QueryKindConcept  QueryKind = "concept"
	QueryKindTemporal QueryKind = "temporal"
)

// temporalMarkers are phrase fragments whose presence in a query
// indicates a temporal-recency intent rather than a topical one.
var temporalMarkers = []string{
	"yesterday", "today", "this morning", "last night", "this week",
	"last week", "earlier today", "just now", "recently", "this month",
}

// ClassifyQuery inspects tokenized query terms for temporal markers.
// Tokenization is left to the caller (the lexical package's Tokenize is
// the expected source) so this package does not duplicate tokenization
// policy.
func ClassifyQuery(rawQueryLower string) QueryKind {
	for _, marker := range temporalMarkers {
		if containsSubstring(rawQueryLower, marker) {
			return QueryKindTemporal
		}
	}
	return QueryKindConcept
}

func containsSubstring(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	n, m := len(haystack), len(needle)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if haystack[i:i+m] == needle {
			return i
		}
	}
	return -1
}

// LexicalFallback runs a plain substring search over node title/body
// when neither dense nor BM25 matching is available (e.g. the
// embedding provider chain and the lexical index are both
// unavailable): the last-resort degraded path, trading precision for
// guaranteed availability.
func LexicalFallback(cfg config.LexicalConfig, query string, nodes []*entities.Node) []valueobjects.NodeID {
	terms := lexical.Tokenize(cfg, query)
	if len(terms) == 0 {
		return nil
	}

	type hit struct {
		id    valueobjects.NodeID
		count int
	}
	var hits []hit

	for _, node := range nodes {
		title := lowerASCII(node.Content().Title())
		body := lowerASCII(node.Content().Body())
		count := 0
		for _, term := range terms {
			if containsSubstring(title, term) {
				count += 2
			}
			if containsSubstring(body, term) {
				count++
			}
		}
		if count > 0 {
			hits = append(hits, hit{id: node.ID(), count: count})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].count > hits[j].count })
	out := make([]valueobjects.NodeID, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
