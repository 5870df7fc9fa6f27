package embedding

import (
	"context"
	"encoding/json"
	"fmt"

	"synapse/application/ports"
	"synapse/domain/core/primitives"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"
)

// TitanEmbedder implements ports.EmbeddingProvider over Amazon Bedrock's
// Titan Text Embeddings model. The contextualized text a caller builds
// (title + body + surrounding context, per the embedding pipeline's
// windowing rules) is passed straight through as the model input; this
// type only owns the wire format for the InvokeModel call.
type TitanEmbedder struct {
	client     *bedrockruntime.Client
	modelID    string
	dimensions int
	logger     *zap.Logger
}

// NewTitanEmbedder creates a Bedrock-backed embedding provider. dimensions
// must match the output size configured for modelID (1024 for Titan Text
// Embeddings V2 at default precision).
func NewTitanEmbedder(client *bedrockruntime.Client, modelID string, dimensions int, logger *zap.Logger) ports.EmbeddingProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TitanEmbedder{client: client, modelID: modelID, dimensions: dimensions, logger: logger}
}

type titanEmbedRequest struct {
	InputText string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type titanEmbedResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embed invokes the Titan embeddings model and returns the resulting
// vector. It does not cache or retry; callers that need resilience wrap
// this in their own backoff (the asynchronous embedding orchestrator
// already tolerates a failed attempt by leaving the node without an
// embedding and retrying on the next pass).
func (e *TitanEmbedder) Embed(ctx context.Context, contextualizedText string) (primitives.Vector, error) {
	if contextualizedText == "" {
		return nil, fmt.Errorf("embedding input text must not be empty")
	}

	payload, err := json.Marshal(titanEmbedRequest{InputText: contextualizedText, Dimensions: e.dimensions})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &e.modelID,
		Body:        payload,
		ContentType: strPtr("application/json"),
		Accept:      strPtr("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke embedding model: %w", err)
	}

	var resp titanEmbedResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("embedding model returned an empty vector")
	}

	return primitives.Vector(resp.Embedding), nil
}

// Dimensions returns the configured output vector size.
func (e *TitanEmbedder) Dimensions() int { return e.dimensions }

// ModelID returns the Bedrock model identifier used for every call.
func (e *TitanEmbedder) ModelID() string { return e.modelID }

func strPtr(s string) *string { return &s }
