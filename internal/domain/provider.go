package domain

import "context"

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ImageDescriber produces a natural-language description of an image.
// Best-effort: implementations may return an empty string without error.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, image []byte) (string, error)
}

// Classifier asks an external model for a structured decision and returns
// its raw JSON payload. Callers own schema validation.
type Classifier interface {
	Classify(ctx context.Context, prompt string) ([]byte, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
