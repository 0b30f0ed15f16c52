package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OpenAIConfig configures the OpenAI-compatible provider. BaseURL allows
// pointing at any compatible gateway.
type OpenAIConfig struct {
	APIKey     string        `env:"OPENAI_API_KEY,required"`
	BaseURL    string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	TextModel  string        `env:"OPENAI_TEXT_MODEL" envDefault:"gpt-4o-mini"`
	ImageModel string        `env:"OPENAI_IMAGE_MODEL" envDefault:"dall-e-3"`
	Timeout    time.Duration `env:"OPENAI_TIMEOUT" envDefault:"60s"`
}

// OpenAIClient implements Generator against an OpenAI-compatible API.
// Articles and code use chat completions; images use the image endpoint.
type OpenAIClient struct {
	config OpenAIConfig
	http   *http.Client
}

// NewOpenAIClient creates the provider client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrGenerationFailed)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		config: cfg,
		http:   &http.Client{Timeout: timeout},
	}, nil
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Content, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	switch req.Kind {
	case KindImage:
		return c.generateImage(ctx, req)
	default:
		return c.generateText(ctx, req)
	}
}

func (c *OpenAIClient) generateText(ctx context.Context, req Request) (*Content, error) {
	system := "You are a writing assistant. Produce a well-structured article for the given topic."
	if req.Kind == KindCode {
		system = "You are a coding assistant. Produce only code for the given task, with brief comments."
	}

	body := map[string]any{
		"model": c.config.TextModel,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": req.Prompt},
		},
	}
	if lang, ok := req.Options["language"]; ok && req.Kind == KindCode {
		body["messages"] = []map[string]string{
			{"role": "system", "content": system + " Target language: " + lang + "."},
			{"role": "user", "content": req.Prompt},
		}
	}

	var result struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := c.post(ctx, "/chat/completions", body, &result); err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrGenerationFailed)
	}

	return &Content{
		Kind:   req.Kind,
		Output: result.Choices[0].Message.Content,
		Meta: map[string]string{
			"model":  result.Model,
			"tokens": fmt.Sprintf("%d", result.Usage.TotalTokens),
		},
	}, nil
}

func (c *OpenAIClient) generateImage(ctx context.Context, req Request) (*Content, error) {
	size := req.Options["size"]
	if size == "" {
		size = "1024x1024"
	}

	body := map[string]any{
		"model":  c.config.ImageModel,
		"prompt": req.Prompt,
		"n":      1,
		"size":   size,
	}

	var result struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/images/generations", body, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 || result.Data[0].URL == "" {
		return nil, fmt.Errorf("%w: no image returned", ErrGenerationFailed)
	}

	return &Content{
		Kind:   KindImage,
		Output: result.Data[0].URL,
		Meta:   map[string]string{"model": c.config.ImageModel, "size": size},
	}, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%w: provider returned %d: %s", ErrGenerationFailed, resp.StatusCode, apiErr.Error.Message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return nil
}
