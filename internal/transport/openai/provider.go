// Package openai adapts the OpenAI-compatible API to the pipeline's
// provider contracts: text embeddings, image description, and the intent
// classifier. Every failure is wrapped with domain.ErrProviderUnavailable
// so upper layers can take a fallback tier instead of erroring out.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/shopdex-io/shopdex/internal/domain"
	"github.com/shopdex-io/shopdex/internal/metrics"
)

// Config holds the provider settings.
type Config struct {
	APIKey          string
	BaseURL         string
	EmbeddingModel  string
	VisionModel     string
	ClassifierModel string
	Timeout         time.Duration
	Logger          *zap.Logger
}

// Provider implements domain.Embedder, domain.ImageDescriber and
// domain.Classifier over one OpenAI-compatible client.
type Provider struct {
	client          *openai.Client
	embeddingModel  openai.EmbeddingModel
	visionModel     string
	classifierModel string
	timeout         time.Duration
	logger          *zap.Logger
}

var (
	_ domain.Embedder       = (*Provider)(nil)
	_ domain.ImageDescriber = (*Provider)(nil)
	_ domain.Classifier     = (*Provider)(nil)
	_ domain.HealthChecker  = (*Provider)(nil)
)

// New creates a provider.
func New(cfg *Config) *Provider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Provider{
		client:          openai.NewClientWithConfig(clientCfg),
		embeddingModel:  openai.EmbeddingModel(cfg.EmbeddingModel),
		visionModel:     cfg.VisionModel,
		classifierModel: cfg.ClassifierModel,
		timeout:         timeout,
		logger:          logger,
	}
}

// ProviderTimeout exposes the per-call timeout so callers can implement
// the deadline guard (skip provider calls when less than this remains).
func (p *Provider) ProviderTimeout() time.Duration {
	return p.timeout
}

// EmbedText implements domain.Embedder.
func (p *Provider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          p.embeddingModel,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("text", "error").Inc()
		return nil, wrapAPIError("create embeddings", err)
	}
	if len(resp.Data) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues("text", "error").Inc()
		return nil, fmt.Errorf("empty embedding response: %w", domain.ErrProviderUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("text", "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues("text").Observe(time.Since(start).Seconds())

	return resp.Data[0].Embedding, nil
}

// DescribeImage implements domain.ImageDescriber via a vision chat call.
// Best-effort: the returned description feeds the text embedder.
func (p *Provider) DescribeImage(ctx context.Context, image []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.visionModel,
		MaxTokens: 200,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: "Describe this product image in detail, focusing on: type of product, color and style, key features, material or texture if visible, overall appearance. Be concise but descriptive for search purposes.",
				},
				{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
				},
			},
		}},
	})
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("describe", "error").Inc()
		return "", wrapAPIError("describe image", err)
	}
	if len(resp.Choices) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues("describe", "error").Inc()
		return "", fmt.Errorf("empty vision response: %w", domain.ErrProviderUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("describe", "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues("describe").Observe(time.Since(start).Seconds())

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// EmbedImage derives an image vector by describing the image and
// embedding the description, matching how catalog images are indexed.
func (p *Provider) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	desc, err := p.DescribeImage(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("embed image: %w", err)
	}
	if desc == "" {
		return nil, fmt.Errorf("embed image: empty description: %w", domain.ErrProviderUnavailable)
	}
	vec, err := p.EmbedText(ctx, desc)
	if err != nil {
		return nil, fmt.Errorf("embed image description: %w", err)
	}
	return vec, nil
}

// Classify implements domain.Classifier: one low-temperature chat call
// that must answer with a JSON object. The raw payload is returned;
// schema validation belongs to the resolver.
func (p *Provider) Classify(ctx context.Context, prompt string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.classifierModel,
		Temperature: 0.1,
		MaxTokens:   300,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("classify", "error").Inc()
		return nil, wrapAPIError("classify", err)
	}
	if len(resp.Choices) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues("classify", "error").Inc()
		return nil, fmt.Errorf("empty classifier response: %w", domain.ErrProviderUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("classify", "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues("classify").Observe(time.Since(start).Seconds())

	return []byte(stripCodeFence(resp.Choices[0].Message.Content)), nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// stripCodeFence unwraps ```json ... ``` blocks some models insist on.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// wrapAPIError extracts a readable message and tags the error with
// domain.ErrProviderUnavailable for fallback routing.
func wrapAPIError(op string, err error) error {
	wrap := domain.ErrProviderUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%s: API error %d: %s: %w", op, reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: API error %d: %s: %w", op, apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("%s: %v: %w", op, err, wrap)
}
