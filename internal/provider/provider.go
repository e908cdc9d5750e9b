// Package provider wraps generative-text backends behind a single
// normalized completion interface and a primary/secondary fallback
// policy, so pipeline stages stay provider-agnostic.
package provider

import "context"

// Request describes one logical generative-text call.
type Request struct {
	// System is an optional system prompt prepended to the conversation.
	System string

	// Prompt is the user-role prompt body.
	Prompt string

	// Temperature controls sampling randomness.
	Temperature float64

	// MaxTokens caps the response length. Zero leaves the backend default.
	MaxTokens int

	// JSONResponse requests a structured JSON object response.
	JSONResponse bool
}

// Completion is the normalized response shape shared by all backends.
type Completion struct {
	// Text is the generated content.
	Text string

	// Model is the model that actually served the request.
	Model string

	// Provider names the backend that produced the completion.
	Provider string

	// TokensUsed is the total token count billed for the call.
	TokensUsed int
}

// Provider issues a single completion call against one backend.
// Implementations classify failures into the application error taxonomy:
// overload signatures and transient failures carry distinct codes so the
// fallback policy can tell them apart.
type Provider interface {
	// Name identifies the backend for logging and metrics.
	Name() string

	// Complete issues one completion call.
	Complete(ctx context.Context, req Request) (Completion, error)
}
