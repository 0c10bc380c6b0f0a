package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xicom-labs/presales-bot/models"
)

const (
	openaiAPIURL       = "https://api.openai.com/v1/chat/completions"
	openaiEmbeddingURL = "https://api.openai.com/v1/embeddings"
)

// client implements the Provider interface using OpenAI's API
type client struct {
	apiKey          string
	completionModel string
	embeddingModel  string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// request represents a request to the OpenAI API
type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// response represents a response from the OpenAI API
type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey, completionModel, embeddingModel string, temperature float64, maxTokens int, timeout time.Duration) *client {
	return &client{
		apiKey:          apiKey,
		completionModel: completionModel,
		embeddingModel:  embeddingModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

const slotPrompt = `Extract structured information from the user message.

User message:
"%s"

Return a VALID JSON object with ONLY these keys.
If a value is not mentioned, use null.

Keys:
project_type (new project | enhancement | null)
business_goal
technology
timeline
budget
name
email
company
phone

Do not include any other text or explanation.`

// ExtractSlots asks the model for a JSON mapping of the nine lead fields.
// Unknown keys in the reply are dropped; a malformed reply yields an
// empty mapping rather than an error, matching the merge contract.
func (c *client) ExtractSlots(ctx context.Context, text string) (models.Slots, error) {
	messages := []Message{
		{Role: "user", Content: fmt.Sprintf(slotPrompt, text)},
	}
	raw, err := c.sendRequest(ctx, messages)
	if err != nil {
		return nil, err
	}

	var extracted map[string]*string
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &extracted); err != nil {
		return models.NewSlots(), nil
	}

	slots := models.NewSlots()
	for k, v := range extracted {
		if v != nil && *v != "" {
			slots.Set(k, *v)
		}
	}
	return slots, nil
}

const answerPrompt = `You are a professional pre-sales and support assistant for Xicom Technologies.

Using the information provided in the context, give a clear, detailed, and structured response.
If multiple services or capabilities are mentioned, list them in bullet points.
Write in a professional, business-friendly tone suitable for potential clients.

<context>
%s
</context>

Question: %s

Answer:`

// Answer generates a grounded reply from the retrieved context chunks.
func (c *client) Answer(ctx context.Context, question string, contextChunks []string) (string, error) {
	messages := []Message{
		{Role: "user", Content: fmt.Sprintf(answerPrompt, strings.Join(contextChunks, "\n\n"), question)},
	}
	return c.sendRequest(ctx, messages)
}

// CreateEmbedding generates embeddings for the given texts using OpenAI's API
func (c *client) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	requestBody := map[string]interface{}{
		"model": c.embeddingModel,
		"input": texts,
	}
	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", openaiEmbeddingURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var openaiResp struct {
		Data []struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	vecs := make([][]float32, len(openaiResp.Data))
	for i, d := range openaiResp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

func (c *client) sendRequest(ctx context.Context, messages []Message) (string, error) {
	requestBody := request{
		Model:       c.completionModel,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", openaiAPIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var openaiResp response
	if err := json.NewDecoder(resp.Body).Decode(&openaiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(openaiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(openaiResp.Choices[0].Message.Content), nil
}

// stripCodeFence unwraps ```json fences some models insist on.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
