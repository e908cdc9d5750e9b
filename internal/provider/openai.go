package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	apperrors "github.com/tailorhq/resume-tailor-api/internal/errors"
)

// DefaultRequestTimeout bounds a single completion call when no timeout
// is configured.
const DefaultRequestTimeout = 60 * time.Second

// OpenAIProviderOptions contains options for creating an OpenAI-backed
// provider. One instance serves exactly one model; primary and secondary
// tiers are two instances wrapped by a FallbackPolicy.
type OpenAIProviderOptions struct {
	// APIKey authenticates against the completion API. Required.
	APIKey string

	// BaseURL overrides the API endpoint for proxies or compatible
	// backends. Empty uses the client default.
	BaseURL string

	// Model is the model this provider serves. Required.
	Model string

	// Timeout bounds a single completion call. Defaults to
	// DefaultRequestTimeout.
	Timeout time.Duration

	// Logger is an optional structured logger.
	Logger *slog.Logger
}

// OpenAIProvider issues completions against the OpenAI chat completions
// API for a fixed model.
type OpenAIProvider struct {
	client  openai.Client
	name    string
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIProvider creates a provider for one model.
func NewOpenAIProvider(opts OpenAIProviderOptions) (*OpenAIProvider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai provider requires an API key")
	}
	if opts.Model == "" {
		return nil, errors.New("openai provider requires a model")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &OpenAIProvider{
		client:  openai.NewClient(clientOpts...),
		name:    "openai/" + opts.Model,
		model:   opts.Model,
		timeout: opts.Timeout,
		logger:  opts.Logger.With("component", "openai_provider", "model", opts.Model),
	}, nil
}

// MustNewOpenAIProvider creates a provider for one model, panicking on
// invalid options.
func MustNewOpenAIProvider(opts OpenAIProviderOptions) *OpenAIProvider {
	p, err := NewOpenAIProvider(opts)
	if err != nil {
		panic(err)
	}
	return p
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Complete implements Provider. Failures are classified: API overload
// signatures become provider_overloaded errors, retryable failures
// (timeouts, network errors, 5xx) become provider_transient errors.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		Messages:    buildMessages(req),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSONResponse {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		}
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, p.classifyError(err)
	}

	if len(completion.Choices) == 0 {
		return Completion{}, apperrors.TransientProvider(p.name,
			errors.New("no completion choices returned"))
	}

	return Completion{
		Text:       completion.Choices[0].Message.Content,
		Model:      string(completion.Model),
		Provider:   p.name,
		TokensUsed: int(completion.Usage.TotalTokens),
	}, nil
}

func (p *OpenAIProvider) classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return classifyAPIStatus(p.name, apiErr.StatusCode, err)
	}

	// Anything without an API status is a network-level failure or a
	// call timeout. Both are worth a retry against the same backend.
	return apperrors.TransientProvider(p.name, err)
}

// classifyAPIStatus maps an HTTP status from the completion API into the
// application error taxonomy. 429 and 529 are overload signatures that
// trigger fallback; 5xx is retryable against the same backend; remaining
// 4xx statuses will not succeed on retry.
func classifyAPIStatus(provider string, status int, err error) error {
	switch {
	case status == 429 || status == 529:
		return apperrors.ProviderOverloaded(provider, err)
	case status >= 500:
		return apperrors.TransientProvider(provider, err)
	default:
		return apperrors.Wrapf(err, apperrors.ErrCodeInternal,
			"provider %s rejected the request (status %d)", provider, status)
	}
}

func buildMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))
	return messages
}

var _ Provider = (*OpenAIProvider)(nil)
