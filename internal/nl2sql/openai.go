package nl2sql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const provider = "openai-compatible"

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAIClient translates questions to SQL and summarizes result rows through
// a chat completion endpoint.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: float32(cfg.Temperature),
	}, nil
}

func (c *OpenAIClient) Model() string {
	return c.model
}

func (c *OpenAIClient) Translate(ctx context.Context, req Request) (Result, error) {
	messages, err := buildTranslateMessages(req)
	if err != nil {
		return Result{}, err
	}
	content, err := c.complete(ctx, messages)
	if err != nil {
		return Result{}, err
	}
	sql := stripMarkdownSQL(content)
	if strings.TrimSpace(sql) == "" {
		return Result{}, fmt.Errorf("model returned empty SQL")
	}
	return Result{
		SQL:      sql,
		Provider: provider,
		Model:    c.model,
	}, nil
}

func (c *OpenAIClient) Summarize(ctx context.Context, req SummaryRequest) (string, error) {
	messages, err := buildSummaryMessages(req)
	if err != nil {
		return "", err
	}
	content, err := c.complete(ctx, messages)
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(content)
	if answer == "" {
		return "", fmt.Errorf("model returned empty answer")
	}
	return answer, nil
}

func (c *OpenAIClient) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("request chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty chat completion choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildTranslateMessages(req Request) ([]openai.ChatCompletionMessage, error) {
	tablesJSON, err := json.Marshal(req.Tables)
	if err != nil {
		return nil, fmt.Errorf("marshal table context: %w", err)
	}
	systemPrompt := "You convert natural language questions about a social-benefit case register into a single SQL query. " +
		"The database uses PostgreSQL-like SQL syntax. " +
		"Return ONLY SQL. No markdown, no explanation."
	userPrompt := fmt.Sprintf(
		"Tables and sample rows (JSON):\n%s\n\nQuestion:\n%s\n\nRules:\n- Use only listed tables.\n- Quote mixed-case column names with double quotes.\n- Read data only; never modify it.\n- Output a single SQL query only.",
		string(tablesJSON),
		strings.TrimSpace(req.NaturalLanguage),
	)
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}, nil
}

func buildSummaryMessages(req SummaryRequest) ([]openai.ChatCompletionMessage, error) {
	rowsJSON, err := json.Marshal(struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}{Columns: req.Columns, Rows: req.Rows})
	if err != nil {
		return nil, fmt.Errorf("marshal query rows: %w", err)
	}
	systemPrompt := "You answer questions about a social-benefit case register using only the query result you are given. " +
		"Answer in plain prose. If the result is empty, say that no matching cases were found."
	userPrompt := fmt.Sprintf(
		"Question:\n%s\n\nSQL:\n%s\n\nResult (JSON):\n%s",
		strings.TrimSpace(req.Question),
		req.SQL,
		string(rowsJSON),
	)
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}, nil
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
