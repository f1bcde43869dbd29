package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"weatherwax/internal/sse"
	"weatherwax/pkg/types"
)

// OpenAIName is the provider prefix of the OpenAI-compatible provider.
const OpenAIName = "openai"

// OpenAIOptions configures NewOpenAI.
type OpenAIOptions struct {
	BaseURL        string
	APIKey         string
	Models         []string
	ConnectTimeout time.Duration
	Logger         *zerolog.Logger
}

// OpenAI streams chat completions from an OpenAI-compatible server
// (OpenAI itself, llama.cpp server, vLLM, ...).
type OpenAI struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	models     []types.Model
	log        zerolog.Logger
}

// NewOpenAI constructs the provider. When opts.Models is empty the model list
// is fetched from GET /v1/models.
func NewOpenAI(ctx context.Context, opts OpenAIOptions) (*OpenAI, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("openai: base url is required")
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	p := &OpenAI{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Transport: tr},
		log:        zerolog.Nop(),
	}
	if opts.Logger != nil {
		p.log = *opts.Logger
	}
	names := opts.Models
	if len(names) == 0 {
		var err error
		if names, err = p.listModels(ctx); err != nil {
			return nil, err
		}
	}
	for _, n := range names {
		m := types.Model{ID: ModelCode(OpenAIName, n), Name: n, Provider: OpenAIName}
		p.models = append(p.models, m)
		p.log.Debug().Str("model", m.ID).Msg("loaded openai model")
	}
	return p, nil
}

func (p *OpenAI) Name() string { return OpenAIName }

func (p *OpenAI) Models() []types.Model { return append([]types.Model(nil), p.models...) }

func (p *OpenAI) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return req, nil
}

func (p *OpenAI) listModels(ctx context.Context) ([]string, error) {
	req, err := p.newRequest(ctx, http.MethodGet, "/v1/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: list models: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, ErrUpstream("openai: decode model list: " + err.Error())
	}
	names := make([]string, 0, len(body.Data))
	for _, d := range body.Data {
		if d.ID != "" {
			names = append(names, d.ID)
		}
	}
	return names, nil
}

type chatCompletionRequest struct {
	Model    string          `json:"model"`
	Messages []types.Message `json:"messages"`
	Stream   bool            `json:"stream"`
}

// chatCompletionChunk is the subset of a streamed chat.completion.chunk we use.
type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Role    types.Role `json:"role"`
			Content string     `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (p *OpenAI) Invoke(ctx context.Context, model types.Model, messages []types.Message, emit func(types.Message) error) error {
	body, err := json.Marshal(chatCompletionRequest{Model: model.Name, Messages: messages, Stream: true})
	if err != nil {
		return err
	}
	req, err := p.newRequest(ctx, http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", sse.ContentType)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrUpstream("openai: " + err.Error())
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}

	role := types.RoleAssistant
	dec := sse.NewDecoder(resp.Body)
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Warn().Err(err).Msg("openai stream read error")
			return ErrUpstream("openai: read stream: " + err.Error())
		}
		data := strings.TrimSpace(ev.Data)
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return nil
		}
		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			p.log.Warn().Str("data", data).Msg("openai unknown stream event")
			continue
		}
		if len(chunk.Choices) == 0 {
			return ErrUpstream("openai: no choices in stream chunk")
		}
		delta := chunk.Choices[0].Delta
		if delta.Role != "" {
			role = delta.Role
		}
		if delta.Content == "" {
			continue
		}
		if err := emit(types.Message{Role: role, Content: delta.Content}); err != nil {
			return err
		}
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return ErrUpstream("openai http error: " + resp.Status + ": " + strings.TrimSpace(string(b)))
}
