// Package rerank computes the six-signal composite score used to order
// a retrieval's final result set: semantic similarity, lexical match,
// graph activation, recency, authority, and cluster affinity.
package rerank

import (
	"math"
	"sort"
	"time"

	"synapse/domain/config"
	"synapse/domain/core/valueobjects"
)

// Signals carries one candidate's six raw signal values, each already
// normalized to [0,1] by its producing subsystem (semantic and lexical
// by the search layer, graph by Spreading Activation Search, affinity by
// cluster routing); recency and authority are computed here from raw
// inputs.
type Signals struct {
	NodeID    valueobjects.NodeID
	Semantic  float64 // cosine similarity to the query embedding
	Lexical   float64 // normalized BM25 score
	Graph     float64 // spreading-activation level reached
	Affinity  float64 // cluster affinity to the query
	AgeDays   float64 // age of the node's most relevant timestamp, in days
	AccessCount int
	Stability float64 // tie-break only
}

// PrimarySignal names the weighted term that contributed the most to a
// candidate's composite score, letting a caller explain why a result
// ranked where it did.
type PrimarySignal string

const (
	PrimarySignalSemantic  PrimarySignal = "semantic"
	PrimarySignalLexical   PrimarySignal = "lexical"
	PrimarySignalGraph     PrimarySignal = "graph"
	PrimarySignalRecency   PrimarySignal = "recency"
	PrimarySignalAuthority PrimarySignal = "authority"
	PrimarySignalAffinity  PrimarySignal = "affinity"
)

// Scored is one candidate with its composite score and signal
// breakdown, suitable for surfacing to a caller that wants to explain a
// ranking.
type Scored struct {
	NodeID        valueobjects.NodeID
	Composite     float64
	Semantic      float64
	Lexical       float64
	Graph         float64
	Recency       float64
	Authority     float64
	Affinity      float64
	PrimarySignal PrimarySignal
}

// Ranker computes composite scores under a fixed signal-weight
// configuration.
type Ranker struct {
	cfg config.RerankConfig
}

// NewRanker constructs a Ranker bound to cfg.
func NewRanker(cfg config.RerankConfig) *Ranker {
	return &Ranker{cfg: cfg}
}

// Recency computes exp(-ageDays/tau), tau = RecencyHalfLifeDays.
func (r *Ranker) Recency(ageDays float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-ageDays / r.cfg.RecencyHalfLifeDays)
}

// Authority computes min(1, accessCount/AuthorityCeiling).
func (r *Ranker) Authority(accessCount int) float64 {
	a := float64(accessCount) / r.cfg.AuthorityCeiling
	if a > 1 {
		return 1
	}
	return a
}

// Score computes one candidate's composite score and signal breakdown.
func (r *Ranker) Score(s Signals) Scored {
	recency := r.Recency(s.AgeDays)
	authority := r.Authority(s.AccessCount)

	weighted := map[PrimarySignal]float64{
		PrimarySignalSemantic:  r.cfg.SemanticWeight * s.Semantic,
		PrimarySignalLexical:   r.cfg.LexicalWeight * s.Lexical,
		PrimarySignalGraph:     r.cfg.GraphWeight * s.Graph,
		PrimarySignalRecency:   r.cfg.RecencyWeight * recency,
		PrimarySignalAuthority: r.cfg.AuthorityWeight * authority,
		PrimarySignalAffinity:  r.cfg.AffinityWeight * s.Affinity,
	}

	composite := weighted[PrimarySignalSemantic] +
		weighted[PrimarySignalLexical] +
		weighted[PrimarySignalGraph] +
		weighted[PrimarySignalRecency] +
		weighted[PrimarySignalAuthority] +
		weighted[PrimarySignalAffinity]

	primary := dominantSignal(weighted)

	return Scored{
		NodeID:        s.NodeID,
		Composite:     composite,
		Semantic:      s.Semantic,
		Lexical:       s.Lexical,
		Graph:         s.Graph,
		Recency:       recency,
		Authority:     authority,
		Affinity:      s.Affinity,
		PrimarySignal: primary,
	}
}

// signalOrder fixes iteration order over the weighted-term map so that
// ties resolve deterministically (semantic first), matching the six
// signals' declared priority in the composite formula.
var signalOrder = []PrimarySignal{
	PrimarySignalSemantic,
	PrimarySignalLexical,
	PrimarySignalGraph,
	PrimarySignalRecency,
	PrimarySignalAuthority,
	PrimarySignalAffinity,
}

func dominantSignal(weighted map[PrimarySignal]float64) PrimarySignal {
	best := signalOrder[0]
	bestValue := weighted[best]
	for _, sig := range signalOrder[1:] {
		if weighted[sig] > bestValue {
			best = sig
			bestValue = weighted[sig]
		}
	}
	return best
}

// Rank scores every candidate and returns them ordered by composite
// score descending. Ties break on higher stability first, then
// lexicographically smaller node id, so the ordering of equally-scored
// candidates is deterministic across calls.
func (r *Ranker) Rank(candidates []Signals) []Scored {
	type ranked struct {
		scored    Scored
		stability float64
		id        string
	}

	tmp := make([]ranked, len(candidates))
	for i, c := range candidates {
		tmp[i] = ranked{scored: r.Score(c), stability: c.Stability, id: c.NodeID.String()}
	}

	sort.Slice(tmp, func(i, j int) bool {
		if tmp[i].scored.Composite != tmp[j].scored.Composite {
			return tmp[i].scored.Composite > tmp[j].scored.Composite
		}
		if tmp[i].stability != tmp[j].stability {
			return tmp[i].stability > tmp[j].stability
		}
		return tmp[i].id < tmp[j].id
	})

	out := make([]Scored, len(tmp))
	for i, t := range tmp {
		out[i] = t.scored
	}
	return out
}

// AgeDaysSince is a convenience for computing Signals.AgeDays from a
// timestamp and the current instant.
func AgeDaysSince(t time.Time, now time.Time) float64 {
	d := now.Sub(t)
	if d < 0 {
		return 0
	}
	return d.Hours() / 24
}
