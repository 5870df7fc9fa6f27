// Package embedding implements the contextual embedding pipeline:
// context-prefix construction, provider-fallback invocation, and
// Matryoshka truncation.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"synapse/domain/config"
	"synapse/domain/core/entities"
	"synapse/domain/core/primitives"
	"synapse/domain/core/valueobjects"
	"synapse/pkg/errors"
)

// Template names the context-prefix template selected for a node.
type Template string

const (
	TemplateConceptExtracted Template = "concept_extracted"
	TemplateConceptManual    Template = "concept_manual"
	TemplateEpisode          Template = "episode"
	TemplateDocumentChunk    Template = "document_chunk"
	TemplateSection          Template = "section"
	TemplateNote             Template = "note"
	TemplateRawArchive       Template = "raw_archive"
	TemplateQuery            Template = "query"
)

// PrefixInput carries the fields a template may fill in.
type PrefixInput struct {
	NodeType        entities.NodeType
	SourceType      string
	Title           string
	ClusterName     string
	ClusterSummary  string
	Keywords        []string
	SourceEpisode   string
	ChunkPosition   int
	EventTimestamp  *time.Time
	Participants    []string
	Body            string
}

// Provider is an embedding backend: the primary, secondary, or local
// fallback model in the chain.
type Provider interface {
	Name() string
	Embed(ctx context.Context, texts []string, modelID string) ([]primitives.Vector, error)
}

// ErrorClass classifies a provider error for the retry manager.
type ErrorClass string

const (
	ErrTransient        ErrorClass = "transient"
	ErrRateLimited       ErrorClass = "rate_limited"
	ErrContentPolicy     ErrorClass = "content_policy"
	ErrServiceUnavailable ErrorClass = "service_unavailable"
	ErrContextTooLong    ErrorClass = "context_too_long"
)

// Retryable reports whether a provider error of this class should be
// retried by the fallback chain.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ErrTransient, ErrRateLimited, ErrServiceUnavailable:
		return true
	default:
		return false
	}
}

// ClassifiedError wraps a provider error with its retry classification.
type ClassifiedError struct {
	Class ErrorClass
	Err   error
}

func (e *ClassifiedError) Error() string { return fmt.Sprintf("%s: %v", e.Class, e.Err) }
func (e *ClassifiedError) Unwrap() error { return e.Err }

// Pipeline builds context prefixes, invokes the provider chain with
// retry/fallback, and produces NodeEmbedding value objects.
type Pipeline struct {
	cfg       config.EmbeddingConfig
	providers []Provider // in fallback order: primary, secondary, local, degraded
	clock     primitives.Clock
}

// NewPipeline constructs a Pipeline over an ordered provider chain.
func NewPipeline(cfg config.EmbeddingConfig, providers []Provider, clock primitives.Clock) *Pipeline {
	return &Pipeline{cfg: cfg, providers: providers, clock: clock}
}

// SelectTemplate chooses a context-prefix template from node type and
// source type.
func SelectTemplate(nodeType entities.NodeType, sourceType string) Template {
	switch {
	case nodeType == entities.NodeTypeQuery:
		return TemplateQuery
	case nodeType == entities.NodeTypeEpisode:
		return TemplateEpisode
	case nodeType == entities.NodeTypeArchive:
		return TemplateRawArchive
	case sourceType == "document_chunk":
		return TemplateDocumentChunk
	case sourceType == "section":
		return TemplateSection
	case sourceType == "manual":
		return TemplateConceptManual
	case sourceType == "note":
		return TemplateNote
	default:
		return TemplateConceptExtracted
	}
}

// BuildContextPrefix fills the selected template's slots and expands
// short content with cluster context until the minimum length is met.
func BuildContextPrefix(cfg config.EmbeddingConfig, tmpl Template, in PrefixInput) string {
	var b strings.Builder

	switch tmpl {
	case TemplateEpisode:
		b.WriteString("Episode")
		if in.EventTimestamp != nil {
			fmt.Fprintf(&b, " (%s)", in.EventTimestamp.Format("2006-01-02"))
		}
		if len(in.Participants) > 0 {
			fmt.Fprintf(&b, " with %s", strings.Join(in.Participants, ", "))
		}
		b.WriteString(": ")
	case TemplateDocumentChunk:
		fmt.Fprintf(&b, "Chunk %d of \"%s\": ", in.ChunkPosition, in.SourceEpisode)
	case TemplateSection:
		fmt.Fprintf(&b, "Section of \"%s\": ", in.SourceEpisode)
	case TemplateConceptManual:
		b.WriteString("Concept (manually added): ")
	case TemplateRawArchive:
		b.WriteString("Archived raw content: ")
	case TemplateNote:
		b.WriteString("Note: ")
	case TemplateQuery:
		b.WriteString("Query: ")
	default:
		b.WriteString("Concept: ")
	}

	if in.Title != "" {
		b.WriteString(in.Title)
		b.WriteString(". ")
	}
	b.WriteString(in.Body)

	prefix := strings.TrimSpace(b.String())
	if len([]rune(in.Body)) < cfg.MinContentLength && len([]rune(prefix)) < cfg.MinExpandedLength {
		var expansion strings.Builder
		expansion.WriteString(prefix)
		if in.ClusterName != "" {
			fmt.Fprintf(&expansion, " Part of cluster \"%s\".", in.ClusterName)
		}
		if in.ClusterSummary != "" {
			expansion.WriteString(" ")
			expansion.WriteString(in.ClusterSummary)
		}
		if len(in.Keywords) > 0 {
			fmt.Fprintf(&expansion, " Keywords: %s.", strings.Join(in.Keywords, ", "))
		}
		prefix = strings.TrimSpace(expansion.String())
	}

	return prefix
}

// EmbedTexts invokes the provider chain with retry-then-fallback
// semantics: each provider gets up to MaxRetriesPerProvider retries on a
// retryable error, waiting RetryBaseDelay between attempts; a
// non-retryable error skips straight to the next provider after
// InterProviderDelay. Returns the vectors, the name of the provider that
// produced them, and whether that provider was non-primary
// (provisional).
func (p *Pipeline) EmbedTexts(ctx context.Context, texts []string, modelID string) ([]primitives.Vector, string, bool, error) {
	var lastErr error

	for i, provider := range p.providers {
		for attempt := 0; attempt <= p.cfg.MaxRetriesPerProvider; attempt++ {
			select {
			case <-ctx.Done():
				return nil, "", false, errors.NewCancelled("embedding call cancelled")
			default:
			}

			vectors, err := provider.Embed(ctx, texts, modelID)
			if err == nil {
				return vectors, provider.Name(), i > 0, nil
			}

			lastErr = err
			classified, ok := err.(*ClassifiedError)
			if !ok || !classified.Class.Retryable() {
				break
			}
			if attempt < p.cfg.MaxRetriesPerProvider {
				sleep(ctx, p.cfg.RetryBaseDelay)
			}
		}
		sleep(ctx, p.cfg.InterProviderDelay)
	}

	return nil, "", false, errors.NewProviderDegraded("all embedding providers exhausted", lastErr)
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// EmbedNode runs the full pipeline for a node: template selection,
// prefix construction, provider invocation, and NodeEmbedding assembly.
func (p *Pipeline) EmbedNode(ctx context.Context, in PrefixInput, modelID string) (valueobjects.NodeEmbedding, error) {
	tmpl := SelectTemplate(in.NodeType, in.SourceType)
	prefix := BuildContextPrefix(p.cfg, tmpl, in)
	hash := primitives.StableHash(prefix)

	vectors, providerName, provisional, err := p.EmbedTexts(ctx, []string{prefix}, modelID)
	if err != nil {
		return valueobjects.NodeEmbedding{}, err
	}
	if len(vectors) == 0 {
		return valueobjects.NodeEmbedding{}, errors.NewInternal("embedding provider returned no vectors")
	}

	return valueobjects.NodeEmbedding{
		Vector:        vectors[0],
		Dimensions:    len(vectors[0]),
		Model:         providerName,
		ContextPrefix: prefix,
		ContextHash:   hash,
		CreatedAt:     p.clock.Now(),
		Provisional:   provisional,
		Version:       1,
	}, nil
}

// EmbedQuery embeds free-text query input for retrieval, without the
// node context-prefix machinery.
func (p *Pipeline) EmbedQuery(ctx context.Context, text, modelID string) (primitives.Vector, error) {
	vectors, _, _, err := p.EmbedTexts(ctx, []string{text}, modelID)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.NewInternal("embedding provider returned no vectors")
	}
	return vectors[0], nil
}

// NeedsReembedding reports whether a node's current embedding is stale
// per the three re-embedding triggers: context hash drift, a
// provisional embedding now that the primary provider is healthy, or a
// content body change (signalled by the caller via contentChanged,
// since only the caller knows whether UpdateContent was just called).
func NeedsReembedding(embedding *valueobjects.NodeEmbedding, currentContextHash string, primaryHealthy bool, contentChanged bool) bool {
	if embedding == nil || contentChanged {
		return true
	}
	if embedding.ContextHash != currentContextHash {
		return true
	}
	if embedding.Provisional && primaryHealthy {
		return true
	}
	return false
}

// TruncateToMatryoshka returns the head of embedding at one of the
// supported Matryoshka widths.
func TruncateToMatryoshka(cfg config.EmbeddingConfig, v primitives.Vector, k int) (primitives.Vector, error) {
	valid := false
	for _, d := range cfg.MatryoshkaDims {
		if d == k {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("embedding: %d is not a supported Matryoshka dimension", k)
	}
	return primitives.TruncateTo(v, k), nil
}
