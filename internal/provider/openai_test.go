package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"weatherwax/internal/sse"
	"weatherwax/pkg/types"
)

// upstream mocks an OpenAI-compatible server streaming the given contents.
type upstream struct {
	mu       sync.Mutex
	contents []string
	raw      []string
	status   int
	gotAuth  string
	gotReq   chatCompletionRequest
}

func (u *upstream) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-3.5-turbo"},{"id":"gpt-4o"}]}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&u.gotReq)
		u.mu.Unlock()
		if u.status != 0 {
			w.WriteHeader(u.status)
			_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		enc := sse.NewEncoder(w)
		for i, c := range u.contents {
			chunk := map[string]any{"object": "chat.completion.chunk"}
			delta := map[string]any{"content": c}
			if i == 0 {
				delta["role"] = "assistant"
			}
			chunk["choices"] = []any{map[string]any{"delta": delta}}
			b, _ := json.Marshal(chunk)
			_ = enc.Encode(sse.Event{Data: string(b)})
		}
		for _, raw := range u.raw {
			_ = enc.Encode(sse.Event{Data: raw})
		}
		_ = enc.Encode(sse.Event{Data: "[DONE]"})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func runOpenAI(t *testing.T, p *OpenAI, msgs []types.Message) ([]types.Message, error) {
	t.Helper()
	var out []types.Message
	err := p.Invoke(context.Background(), p.Models()[0], msgs, func(m types.Message) error {
		out = append(out, m)
		return nil
	})
	return out, err
}

func TestOpenAI_RequiresBaseURL(t *testing.T) {
	if _, err := NewOpenAI(context.Background(), OpenAIOptions{}); err == nil {
		t.Fatalf("expected error without base url")
	}
}

func TestOpenAI_DiscoversModels(t *testing.T) {
	ts := (&upstream{}).server(t)
	p, err := NewOpenAI(context.Background(), OpenAIOptions{BaseURL: ts.URL + "/"})
	if err != nil { t.Fatalf("new: %v", err) }
	ms := p.Models()
	if len(ms) != 2 || ms[0].ID != "openai::gpt-3.5-turbo" || ms[1].Name != "gpt-4o" {
		t.Fatalf("unexpected models %+v", ms)
	}
}

func TestOpenAI_DiscoveryFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	_, err := NewOpenAI(context.Background(), OpenAIOptions{BaseURL: ts.URL})
	if !IsUpstream(err) { t.Fatalf("expected upstream error, got %v", err) }
}

func TestOpenAI_StreamsChunks(t *testing.T) {
	u := &upstream{contents: []string{"Hello", " World"}}
	ts := u.server(t)
	p, err := NewOpenAI(context.Background(), OpenAIOptions{BaseURL: ts.URL, APIKey: "sk-test", Models: []string{"gpt-3.5-turbo"}, ConnectTimeout: time.Second})
	if err != nil { t.Fatalf("new: %v", err) }
	out, err := runOpenAI(t, p, []types.Message{{Role: types.RoleUser, Content: "Say hi"}})
	if err != nil { t.Fatalf("invoke: %v", err) }
	var b strings.Builder
	for _, m := range out {
		if m.Role != types.RoleAssistant { t.Fatalf("role=%q", m.Role) }
		b.WriteString(m.Content)
	}
	if b.String() != "Hello World" { t.Fatalf("got %q", b.String()) }
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.gotAuth != "Bearer sk-test" { t.Fatalf("auth=%q", u.gotAuth) }
	if !u.gotReq.Stream || u.gotReq.Model != "gpt-3.5-turbo" || len(u.gotReq.Messages) != 1 {
		t.Fatalf("unexpected upstream request %+v", u.gotReq)
	}
}

func TestOpenAI_SkipsEmptyAndUnknownEvents(t *testing.T) {
	u := &upstream{
		contents: []string{"", "x"},
		raw:      []string{"not json", `{"choices":[{"delta":{},"finish_reason":"stop"}]}`},
	}
	ts := u.server(t)
	p, err := NewOpenAI(context.Background(), OpenAIOptions{BaseURL: ts.URL, Models: []string{"m"}})
	if err != nil { t.Fatalf("new: %v", err) }
	out, err := runOpenAI(t, p, nil)
	if err != nil { t.Fatalf("invoke: %v", err) }
	if len(out) != 1 || out[0].Content != "x" { t.Fatalf("got %+v", out) }
}

func TestOpenAI_NoChoicesIsError(t *testing.T) {
	u := &upstream{raw: []string{`{"object":"chat.completion.chunk","choices":[]}`}}
	ts := u.server(t)
	p, _ := NewOpenAI(context.Background(), OpenAIOptions{BaseURL: ts.URL, Models: []string{"m"}})
	if _, err := runOpenAI(t, p, nil); !IsUpstream(err) {
		t.Fatalf("expected upstream conversion error, got %v", err)
	}
}

func TestOpenAI_HTTPError(t *testing.T) {
	u := &upstream{status: http.StatusInternalServerError}
	ts := u.server(t)
	p, _ := NewOpenAI(context.Background(), OpenAIOptions{BaseURL: ts.URL, Models: []string{"m"}})
	_, err := runOpenAI(t, p, nil)
	if !IsUpstream(err) || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected upstream 500 error, got %v", err)
	}
}

func TestOpenAI_ContextCancel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		enc := sse.NewEncoder(w)
		for i := 0; i < 50; i++ {
			_ = enc.Encode(sse.Event{Data: `{"choices":[{"delta":{"content":"x"}}]}`})
			select {
			case <-r.Context().Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
		}
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	p, _ := NewOpenAI(context.Background(), OpenAIOptions{BaseURL: ts.URL, Models: []string{"m"}})
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	err := p.Invoke(ctx, p.Models()[0], nil, func(types.Message) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
