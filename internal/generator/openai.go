package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/charlesng35/longevity/internal/recommendations"
	"github.com/charlesng35/longevity/pkg/logger"
)

// Config configures the OpenAI-compatible generator.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float32
	Timeout           time.Duration
	RequestsPerMinute int
	Burst             int
	MaxItems          int
}

const (
	defaultModel    = openai.GPT4oMini
	defaultTimeout  = 60 * time.Second
	defaultMaxItems = 7
)

// OpenAI produces recommendations with a chat completion model.
type OpenAI struct {
	client  *openai.Client
	cfg     Config
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewOpenAI constructs the generator. One limiter is shared by every call so the
// external quota is protected across users.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("generator: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = defaultMaxItems
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), burst)
	}

	return &OpenAI{
		client:  openai.NewClientWithConfig(clientConfig),
		cfg:     cfg,
		limiter: limiter,
		log:     logger.WithModule("generator"),
	}, nil
}

// For returns a generator bound to kind and source. It satisfies recommendations.GeneratorFactory.
func (g *OpenAI) For(kind recommendations.Kind, source any) recommendations.Generator {
	return recommendations.GeneratorFunc(func(ctx context.Context) ([]recommendations.Item, error) {
		return g.generate(ctx, kind, source)
	})
}

func (g *OpenAI) generate(ctx context.Context, kind recommendations.Kind, source any) ([]recommendations.Item, error) {
	payload, err := json.MarshalIndent(source, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode source data: %w", err)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for quota: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(kind, string(payload), g.cfg.MaxItems)},
		},
	}

	started := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", recommendations.ErrMalformedResult)
	}

	items, err := ParseItems(resp.Choices[0].Message.Content, g.cfg.MaxItems)
	if err != nil {
		return nil, err
	}

	g.log.Debug("completion parsed",
		zap.String("kind", string(kind)),
		zap.Int("count", len(items)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(started)),
	)
	return items, nil
}

// ParseItems decodes a model answer into recommendation items. The answer must be a JSON
// array, optionally wrapped in a code fence or in an object with a "recommendations" key.
func ParseItems(content string, maxItems int) ([]recommendations.Item, error) {
	body := stripFences(content)
	if body == "" {
		return nil, fmt.Errorf("%w: empty answer", recommendations.ErrMalformedResult)
	}

	var items []recommendations.Item
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		var wrapped struct {
			Recommendations []recommendations.Item `json:"recommendations"`
		}
		if wrapErr := json.Unmarshal([]byte(body), &wrapped); wrapErr != nil || wrapped.Recommendations == nil {
			return nil, fmt.Errorf("%w: %v", recommendations.ErrMalformedResult, err)
		}
		items = wrapped.Recommendations
	}
	if items == nil {
		return nil, fmt.Errorf("%w: answer is not a list", recommendations.ErrMalformedResult)
	}

	out := make([]recommendations.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if _, ok := item["priority"]; !ok {
			item["priority"] = "medium"
		}
		out = append(out, item)
		if maxItems > 0 && len(out) == maxItems {
			break
		}
	}
	return out, nil
}

func stripFences(content string) string {
	body := strings.TrimSpace(content)
	if !strings.HasPrefix(body, "```") {
		return body
	}
	body = strings.TrimPrefix(body, "```")
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		body = body[newline+1:]
	} else {
		body = ""
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}
