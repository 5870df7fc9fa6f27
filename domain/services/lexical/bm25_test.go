package lexical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synapse/domain/config"
	"synapse/domain/core/entities"
	"synapse/domain/core/valueobjects"
)

func testCfg() config.LexicalConfig {
	return config.DefaultDomainConfig().Lexical
}

func TestTokenize(t *testing.T) {
	cfg := testCfg()

	t.Run("lowercases and strips punctuation", func(t *testing.T) {
		toks := Tokenize(cfg, "Hello, World! It's a test.")
		assert.Equal(t, []string{"hello", "world", "test"}, toks)
	})

	t.Run("drops stop words and short tokens", func(t *testing.T) {
		toks := Tokenize(cfg, "the cat is a big one")
		assert.Equal(t, []string{"cat", "big", "one"}, toks)
	})

	t.Run("handles unicode word boundaries", func(t *testing.T) {
		toks := Tokenize(cfg, "café résumé")
		assert.Equal(t, []string{"café", "résumé"}, toks)
	})
}

func newTestNode(t *testing.T, title, body string, tags []string) *entities.Node {
	t.Helper()
	now := time.Now()
	content, err := valueobjects.NewNodeContent(title, body, valueobjects.FormatPlainText)
	require.NoError(t, err)
	temporal := valueobjects.TemporalModel{Ingestion: valueobjects.NewIngestion(now, "UTC")}
	node, err := entities.NewNode("user-1", entities.NodeTypeConcept, content, temporal, entities.Provenance{}, now)
	require.NoError(t, err)
	for _, tag := range tags {
		require.NoError(t, node.AddTag(tag, now))
	}
	return node
}

func TestIndexSearch(t *testing.T) {
	cfg := testCfg()
	idx := NewIndex(cfg)

	n1 := newTestNode(t, "Rust memory safety", "Rust enforces memory safety without a garbage collector.", []string{"rust", "systems"})
	n2 := newTestNode(t, "Go concurrency", "Go uses goroutines and channels for concurrency.", []string{"go", "concurrency"})
	n3 := newTestNode(t, "Cooking pasta", "Boil water and add pasta for ten minutes.", nil)

	idx.Upsert(n1, "", 0)
	idx.Upsert(n2, "", 0)
	idx.Upsert(n3, "", 0)

	results := idx.Search("memory safety", Filter{})
	require.NotEmpty(t, results)
	assert.Equal(t, n1.ID(), results[0].NodeID)

	t.Run("scores are normalized into [0,1]", func(t *testing.T) {
		for _, r := range results {
			assert.GreaterOrEqual(t, r.Score, 0.0)
			assert.LessOrEqual(t, r.Score, 1.0)
		}
	})

	t.Run("unrelated query returns no pasta hit for memory query", func(t *testing.T) {
		for _, r := range results {
			assert.NotEqual(t, n3.ID(), r.NodeID)
		}
	})
}

func TestIndexFilterByType(t *testing.T) {
	cfg := testCfg()
	idx := NewIndex(cfg)
	n1 := newTestNode(t, "Alpha concept", "alpha body text", nil)
	idx.Upsert(n1, "", 0)

	results := idx.Search("alpha", Filter{Types: []entities.NodeType{entities.NodeTypeEpisode}})
	assert.Empty(t, results)

	results = idx.Search("alpha", Filter{Types: []entities.NodeType{entities.NodeTypeConcept}})
	assert.NotEmpty(t, results)
}

func TestIndexDeleteRemovesDocument(t *testing.T) {
	cfg := testCfg()
	idx := NewIndex(cfg)
	n1 := newTestNode(t, "Deletable node", "some searchable content here", nil)
	idx.Upsert(n1, "", 0)

	require.NotEmpty(t, idx.Search("searchable", Filter{}))

	idx.Delete(n1.ID())
	assert.Empty(t, idx.Search("searchable", Filter{}))
}

func TestIndexUpsertReindexesOnUpdate(t *testing.T) {
	cfg := testCfg()
	idx := NewIndex(cfg)
	n1 := newTestNode(t, "Original title", "original body", nil)
	idx.Upsert(n1, "", 0)

	updated, err := valueobjects.NewNodeContent("Updated title", "updated body about astronomy", valueobjects.FormatPlainText)
	require.NoError(t, err)
	require.NoError(t, n1.UpdateContent(updated, time.Now()))
	idx.Upsert(n1, "", 0)

	assert.Empty(t, idx.Search("original", Filter{}))
	assert.NotEmpty(t, idx.Search("astronomy", Filter{}))
}

func TestFieldWeightsPrioritizeTitle(t *testing.T) {
	cfg := testCfg()
	idx := NewIndex(cfg)

	titleHit := newTestNode(t, "zephyr", "unrelated content", nil)
	bodyHit := newTestNode(t, "unrelated title", "zephyr appears here only", nil)

	idx.Upsert(titleHit, "", 0)
	idx.Upsert(bodyHit, "", 0)

	results := idx.Search("zephyr", Filter{})
	require.Len(t, results, 2)
	assert.Equal(t, titleHit.ID(), results[0].NodeID, "title field weight (2.0) should outrank body field weight (1.0)")
}
