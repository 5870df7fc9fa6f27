// Package lexical implements the BM25 sparse index over node title,
// summary, body, and tags.
package lexical

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"synapse/domain/config"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tokenize lowercases, splits on Unicode word boundaries, strips
// punctuation, drops single-character tokens, and removes stop words.
func Tokenize(cfg config.LexicalConfig, text string) []string {
	matches := wordPattern.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(matches))
	for _, tok := range matches {
		if len([]rune(tok)) < cfg.MinTokenLen {
			continue
		}
		if cfg.StopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Filter narrows a BM25 search to a subset of nodes by type, lifecycle,
// cluster, or time range. A nil field means "no constraint on that
// dimension".
type Filter struct {
	Types      []entities.NodeType
	Lifecycles []entities.LifecycleStage
	Clusters   []string
	Since      *int64 // unix seconds, inclusive
	Until      *int64 // unix seconds, exclusive
}

func (f Filter) matches(doc *document) bool {
	if len(f.Types) > 0 && !containsType(f.Types, doc.nodeType) {
		return false
	}
	if len(f.Lifecycles) > 0 && !containsLifecycle(f.Lifecycles, doc.lifecycle) {
		return false
	}
	if len(f.Clusters) > 0 {
		found := false
		for _, c := range f.Clusters {
			if c == doc.clusterID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Since != nil && doc.primaryTimestampUnix < *f.Since {
		return false
	}
	if f.Until != nil && doc.primaryTimestampUnix >= *f.Until {
		return false
	}
	return true
}

func containsType(types []entities.NodeType, t entities.NodeType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func containsLifecycle(stages []entities.LifecycleStage, s entities.LifecycleStage) bool {
	for _, x := range stages {
		if x == s {
			return true
		}
	}
	return false
}

type document struct {
	nodeID               valueobjects.NodeID
	nodeType             entities.NodeType
	lifecycle            entities.LifecycleStage
	clusterID            string
	primaryTimestampUnix int64

	fieldTokens map[string][]string
	fieldLens   map[string]int
}

// Result is one ranked hit.
type Result struct {
	NodeID valueobjects.NodeID
	Score  float64 // normalized to [0,1] per query
}

// Index is an incrementally updatable BM25 index. Writers serialize
// under a single mutex; readers take a read lock, matching the
// writers-serialize / readers-snapshot policy the rest of the engine
// uses for shared structures.
type Index struct {
	cfg config.LexicalConfig

	mu            sync.RWMutex
	docs          map[valueobjects.NodeID]*document
	avgFieldLen   map[string]float64
	docFreq       map[string]map[string]int // field -> term -> doc count
}

// NewIndex constructs an empty index.
func NewIndex(cfg config.LexicalConfig) *Index {
	return &Index{
		cfg:         cfg,
		docs:        make(map[valueobjects.NodeID]*document),
		avgFieldLen: make(map[string]float64),
		docFreq:     make(map[string]map[string]int),
	}
}

func (idx *Index) fields(node *entities.Node) map[string]string {
	return map[string]string{
		"title":   node.Content().Title(),
		"summary": node.Content().Summary(0),
		"body":    node.Content().Body(),
		"tags":    strings.Join(node.GetTags(), " "),
	}
}

// Upsert indexes or re-indexes a node's current content.
func (idx *Index) Upsert(node *entities.Node, clusterID string, primaryTimestampUnix int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.docs[node.ID()]; ok {
		idx.removeDocFreqLocked(existing)
	}

	doc := &document{
		nodeID:               node.ID(),
		nodeType:             node.Type(),
		lifecycle:            node.Lifecycle(),
		clusterID:            clusterID,
		primaryTimestampUnix: primaryTimestampUnix,
		fieldTokens:          make(map[string][]string),
		fieldLens:            make(map[string]int),
	}

	for field, text := range idx.fields(node) {
		tokens := Tokenize(idx.cfg, text)
		doc.fieldTokens[field] = tokens
		doc.fieldLens[field] = len(tokens)
	}

	idx.docs[node.ID()] = doc
	idx.addDocFreqLocked(doc)
	idx.recomputeAvgFieldLenLocked()
}

// Delete removes a node from the index.
func (idx *Index) Delete(nodeID valueobjects.NodeID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	doc, ok := idx.docs[nodeID]
	if !ok {
		return
	}
	idx.removeDocFreqLocked(doc)
	delete(idx.docs, nodeID)
	idx.recomputeAvgFieldLenLocked()
}

func (idx *Index) addDocFreqLocked(doc *document) {
	for field, tokens := range doc.fieldTokens {
		seen := make(map[string]bool)
		for _, t := range tokens {
			seen[t] = true
		}
		m, ok := idx.docFreq[field]
		if !ok {
			m = make(map[string]int)
			idx.docFreq[field] = m
		}
		for t := range seen {
			m[t]++
		}
	}
}

func (idx *Index) removeDocFreqLocked(doc *document) {
	for field, tokens := range doc.fieldTokens {
		seen := make(map[string]bool)
		for _, t := range tokens {
			seen[t] = true
		}
		m := idx.docFreq[field]
		for t := range seen {
			if m[t] > 0 {
				m[t]--
			}
		}
	}
}

func (idx *Index) recomputeAvgFieldLenLocked() {
	sums := make(map[string]int)
	for _, doc := range idx.docs {
		for field, n := range doc.fieldLens {
			sums[field] += n
		}
	}
	n := len(idx.docs)
	for field, sum := range sums {
		if n == 0 {
			idx.avgFieldLen[field] = 0
			continue
		}
		idx.avgFieldLen[field] = float64(sum) / float64(n)
	}
}

// Search runs BM25 over the index restricted to filter, min-max
// normalizing scores across the returned set.
func (idx *Index) Search(query string, filter Filter) []Result {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	queryTerms := Tokenize(idx.cfg, query)
	if len(queryTerms) == 0 {
		return nil
	}

	n := len(idx.docs)
	raw := make([]Result, 0, n)

	for _, doc := range idx.docs {
		if !filter.matches(doc) {
			continue
		}
		score := idx.scoreDoc(doc, queryTerms, n)
		if score > 0 {
			raw = append(raw, Result{NodeID: doc.nodeID, Score: score})
		}
	}

	return normalize(raw)
}

func (idx *Index) scoreDoc(doc *document, queryTerms []string, totalDocs int) float64 {
	var total float64
	for field, weight := range idx.cfg.FieldWeights {
		tokens := doc.fieldTokens[field]
		if len(tokens) == 0 {
			continue
		}
		termFreq := make(map[string]int, len(tokens))
		for _, t := range tokens {
			termFreq[t]++
		}
		avgLen := idx.avgFieldLen[field]
		if avgLen == 0 {
			avgLen = float64(len(tokens))
		}
		docLen := float64(len(tokens))

		for _, qt := range queryTerms {
			tf := float64(termFreq[qt])
			if tf == 0 {
				continue
			}
			df := idx.docFreq[field][qt]
			idf := math.Log(1 + (float64(totalDocs)-float64(df)+0.5)/(float64(df)+0.5))
			denom := tf + bm25K1*(1-bm25B+bm25B*docLen/avgLen)
			score := idf * (tf * (bm25K1 + 1)) / denom
			total += weight * score
		}
	}
	return total
}

func normalize(results []Result) []Result {
	if len(results) == 0 {
		return results
	}
	min, max := results[0].Score, results[0].Score
	for _, r := range results {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	out := make([]Result, len(results))
	spread := max - min
	for i, r := range results {
		if spread == 0 {
			out[i] = Result{NodeID: r.NodeID, Score: 1}
			continue
		}
		out[i] = Result{NodeID: r.NodeID, Score: (r.Score - min) / spread}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
