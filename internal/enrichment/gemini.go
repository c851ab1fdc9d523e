package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hongminglow/cardsavvy-be/internal/models"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	geminiModel        = "gemini-2.5-flash"
	geminiTimeout      = 30 * time.Second
	geminiMaxBodyBytes = 4 << 20

	defaultNotes = "Extracted from web search using Gemini."
)

// ErrNoAPIKey is reported when the client was built without credentials.
var ErrNoAPIKey = errors.New("GEMINI_API_KEY not set")

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// GeminiClient calls the Gemini generateContent endpoint with search
// grounding enabled.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// GeminiOption customizes a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithBaseURL points the client at another endpoint, typically a test server.
func WithBaseURL(baseURL string) GeminiOption {
	return func(c *GeminiClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithModel overrides the model name.
func WithModel(model string) GeminiOption {
	return func(c *GeminiClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout bounds each provider call.
func WithTimeout(timeout time.Duration) GeminiOption {
	return func(c *GeminiClient) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// NewGeminiClient creates a Gemini client. An empty apiKey yields a client
// whose calls fail fast without touching the network.
func NewGeminiClient(apiKey string, opts ...GeminiOption) *GeminiClient {
	c := &GeminiClient{
		apiKey:  apiKey,
		model:   geminiModel,
		baseURL: geminiBaseURL,
		client:  &http.Client{Timeout: geminiTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent  `json:"contents"`
	Tools    []map[string]any `json:"tools,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content           geminiContent `json:"content"`
		GroundingMetadata struct {
			GroundingChunks []struct {
				Web struct {
					URI string `json:"uri"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Extract asks the provider for the card's reward structure. Every failure
// mode, including a missing key, comes back as Failure.
func (c *GeminiClient) Extract(ctx context.Context, q Query) Result {
	resp, err := c.generate(ctx, extractionPrompt(q), true)
	if err != nil {
		return Failure{Reason: err.Error()}
	}
	extraction, err := parseExtraction(resp, q)
	if err != nil {
		return Failure{Reason: err.Error()}
	}
	return Success{Extraction: extraction}
}

// Reply generates a free-form answer for the chat assistant. cards is the
// user's wallet, serialized into the prompt as context.
func (c *GeminiClient) Reply(ctx context.Context, message string, cards []models.CatalogEntry) (string, error) {
	cardsJSON, err := json.Marshal(cards)
	if err != nil {
		return "", fmt.Errorf("failed to marshal wallet: %w", err)
	}
	resp, err := c.generate(ctx, chatPrompt(message, string(cardsJSON)), false)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return text, nil
}

func (c *GeminiClient) generate(ctx context.Context, prompt string, grounded bool) (*geminiResponse, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	req := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}
	if grounded {
		req.Tools = []map[string]any{{"google_search": map[string]any{}}}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, geminiMaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr geminiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("Gemini API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("Gemini API error (%d)", resp.StatusCode)
	}

	var out geminiResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

func responseText(resp *geminiResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

func groundingURLs(resp *geminiResponse) []string {
	if len(resp.Candidates) == 0 {
		return nil
	}
	var urls []string
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		urls = append(urls, chunk.Web.URI)
	}
	return urls
}

type rawExtraction struct {
	CardName    string         `json:"card_name"`
	Issuer      string         `json:"issuer"`
	Network     *string        `json:"network"`
	RewardRules map[string]any `json:"reward_rules"`
	Confidence  any            `json:"confidence"`
	Notes       string         `json:"notes"`
	Evidence    struct {
		URLs  []string `json:"urls"`
		Notes string   `json:"notes"`
	} `json:"evidence"`
}

func parseExtraction(resp *geminiResponse, q Query) (Extraction, error) {
	text := responseText(resp)
	match := jsonObjectPattern.FindString(text)
	if match == "" {
		return Extraction{}, fmt.Errorf("no JSON object in Gemini response")
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return Extraction{}, fmt.Errorf("invalid extraction JSON: %w", err)
	}

	out := Extraction{
		CardName:    firstNonEmpty(raw.CardName, q.CardName),
		Issuer:      firstNonEmpty(raw.Issuer, q.Issuer),
		Network:     q.Network,
		RewardRules: SanitizeRawRules(raw.RewardRules),
		Confidence:  SanitizeConfidence(raw.Confidence, raw.Confidence != nil),
		Evidence: models.Evidence{
			URLs:  DedupeURLs(append(groundingURLs(resp), raw.Evidence.URLs...)),
			Notes: firstNonEmpty(raw.Notes, raw.Evidence.Notes, defaultNotes),
		},
	}
	if raw.Network != nil && strings.TrimSpace(*raw.Network) != "" {
		network := strings.TrimSpace(*raw.Network)
		out.Network = &network
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func extractionPrompt(q Query) string {
	network := "unknown"
	if q.Network != nil && *q.Network != "" {
		network = *q.Network
	}
	return fmt.Sprintf(`You are extracting credit card reward rules.
Search the web for the card below and return ONLY one JSON object, no prose.

Card name: %s
Issuer: %s
Network: %s

Return this shape:
{
  "card_name": string,
  "issuer": string,
  "network": string or null,
  "reward_rules": {
    "dining": number, "groceries": number, "shopping": number, "travel": number,
    "fuel": number, "utilities": number, "entertainment": number, "others": number
  },
  "confidence": number between 0 and 1,
  "notes": string
}

Reward rates are fractions between 0 and 1, so 5%% cashback is 0.05.
Use 0.01 for any category you cannot find evidence for.`, q.CardName, q.Issuer, network)
}

func chatPrompt(message, cardsJSON string) string {
	return fmt.Sprintf(`You are CardWise AI, an assistant that helps users pick the best credit card for a purchase.
Be concise and practical. Only recommend cards from the user's wallet.

User wallet cards (JSON):
%s

User question:
%s`, cardsJSON, message)
}
