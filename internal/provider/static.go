package provider

import (
	"context"
	"strings"
	"time"

	"weatherwax/pkg/types"
)

// StaticName is the provider prefix of the static provider.
const StaticName = "static"

// Static replies without any backend: either with a fixed list of chunks or,
// when none are configured, by echoing the last user message word by word.
type Static struct {
	models   []types.Model
	reply    []string
	interval time.Duration
}

// DefaultStaticModels are served when no names are configured. The second
// is the invoke client's default model, so both binaries work together
// without configuration.
var DefaultStaticModels = []string{"echo", "gpt-3.5-turbo"}

// NewStatic builds a static provider serving names (default
// DefaultStaticModels), pausing interval between chunks.
func NewStatic(names, reply []string, interval time.Duration) *Static {
	if len(names) == 0 {
		names = DefaultStaticModels
	}
	s := &Static{reply: append([]string(nil), reply...), interval: interval}
	for _, n := range names {
		s.models = append(s.models, types.Model{ID: ModelCode(StaticName, n), Name: n, Provider: StaticName})
	}
	return s
}

func (s *Static) Name() string { return StaticName }

func (s *Static) Models() []types.Model { return append([]types.Model(nil), s.models...) }

func (s *Static) Invoke(ctx context.Context, _ types.Model, messages []types.Message, emit func(types.Message) error) error {
	chunks := s.reply
	if len(chunks) == 0 {
		chunks = echoChunks(messages)
	}
	for i, c := range chunks {
		if i > 0 && s.interval > 0 {
			t := time.NewTimer(s.interval)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(types.Message{Role: types.RoleAssistant, Content: c}); err != nil {
			return err
		}
	}
	return nil
}

// echoChunks splits the last user message into words, prefixing all but the
// first with a space so the chunks concatenate back to a normalized message.
func echoChunks(messages []types.Message) []string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != types.RoleUser {
			continue
		}
		words := strings.Fields(messages[i].Content)
		for j := 1; j < len(words); j++ {
			words[j] = " " + words[j]
		}
		return words
	}
	return nil
}
