package transcription

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ProviderOpenAI is the name of the go-openai backed provider
const ProviderOpenAI = "openai"

// OpenAIConfig contains OpenAI provider configuration
type OpenAIConfig struct {
	BaseURL string        // empty keeps the SDK default
	Model   string        // default model when the request has none
	Timeout time.Duration // 0 keeps the SDK default of no timeout
}

// OpenAIProvider transcribes through the OpenAI audio API using go-openai.
// A client is built per call because the credential may differ per request.
type OpenAIProvider struct {
	config     OpenAIConfig
	httpClient *http.Client
}

// NewOpenAIProvider creates an OpenAI transcription provider
func NewOpenAIProvider(config OpenAIConfig) *OpenAIProvider {
	if config.Model == "" {
		config.Model = openai.Whisper1
	}

	return &OpenAIProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

// Transcribe sends the staged audio file to the transcription endpoint.
func (p *OpenAIProvider) Transcribe(ctx context.Context, req *Request) (*Response, error) {
	if req.APIKey == "" {
		return nil, &Error{Kind: KindCredential, Op: "openai.transcribe", Message: "missing API key"}
	}

	clientConfig := openai.DefaultConfig(req.APIKey)
	if p.config.BaseURL != "" {
		clientConfig.BaseURL = p.config.BaseURL
	}
	clientConfig.HTTPClient = p.httpClient
	client := openai.NewClientWithConfig(clientConfig)

	model := p.config.Model
	if req.Model != "" {
		model = req.Model
	}

	resp, err := client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    model,
		FilePath: req.AudioPath,
		Language: req.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	return &Response{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
	}, nil
}

func classifyOpenAIError(err error) *Error {
	const op = "openai.transcribe"

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e := ClassifyStatus(op, apiErr.HTTPStatusCode, apiErr.Message)
		if e == nil {
			e = &Error{Kind: KindProvider, Op: op, Message: apiErr.Message}
		}
		e.Err = err
		return e
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		e := ClassifyStatus(op, reqErr.HTTPStatusCode, "")
		if e == nil {
			e = &Error{Kind: KindProvider, Op: op}
		}
		e.Err = err
		return e
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return NewError(KindLocalIO, op, err)
	}

	return ClassifyTransport(op, err)
}
