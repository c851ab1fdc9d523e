package enrichment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hongminglow/cardsavvy-be/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func geminiServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func textResponse(t *testing.T, text string, uris ...string) string {
	t.Helper()
	chunks := make([]map[string]any, 0, len(uris))
	for _, u := range uris {
		chunks = append(chunks, map[string]any{"web": map[string]any{"uri": u}})
	}
	payload := map[string]any{
		"candidates": []map[string]any{{
			"content":           map[string]any{"parts": []map[string]any{{"text": text}}},
			"groundingMetadata": map[string]any{"groundingChunks": chunks},
		}},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(raw)
}

func newTestClient(srv *httptest.Server) *GeminiClient {
	return NewGeminiClient("test-key", WithBaseURL(srv.URL), WithTimeout(5*time.Second))
}

func TestExtractSuccess(t *testing.T) {
	text := "Here you go:\n```json\n" + `{
		"card_name": "Millennia",
		"issuer": "HDFC Bank",
		"network": "Visa",
		"reward_rules": {"shopping": 0.05, "dining": "0.025", "travel": 1.7, "fuel": -1, "utilities": "n/a"},
		"confidence": 0.85,
		"notes": "5% on partner merchants"
	}` + "\n```"
	srv, calls := geminiServer(t, http.StatusOK, textResponse(t, text,
		"https://hdfcbank.com/millennia", "https://example.com/review", "https://hdfcbank.com/millennia"))

	result := newTestClient(srv).Extract(context.Background(), Query{CardName: "HDFC Millennia", Issuer: "HDFC"})
	success, ok := result.(Success)
	require.True(t, ok, "expected Success, got %#v", result)
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, "Millennia", success.CardName)
	assert.Equal(t, "HDFC Bank", success.Issuer)
	require.NotNil(t, success.Network)
	assert.Equal(t, "Visa", *success.Network)
	assert.Equal(t, 0.85, success.Confidence)
	assert.Equal(t, models.RewardRules{
		"dining":        0.025,
		"groceries":     DefaultRate,
		"shopping":      0.05,
		"travel":        1,
		"fuel":          0,
		"utilities":     DefaultRate,
		"entertainment": DefaultRate,
		"others":        DefaultRate,
	}, success.RewardRules)
	assert.Equal(t, []string{"https://hdfcbank.com/millennia", "https://example.com/review"}, success.Evidence.URLs)
	assert.Equal(t, "5% on partner merchants", success.Evidence.Notes)
}

func TestExtractFallsBackToQueryFields(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusOK, textResponse(t, `{"reward_rules": {"others": 0.02}}`))
	network := "RuPay"

	result := newTestClient(srv).Extract(context.Background(), Query{CardName: "Tata Neu", Issuer: "HDFC", Network: &network})
	success, ok := result.(Success)
	require.True(t, ok)
	assert.Equal(t, "Tata Neu", success.CardName)
	assert.Equal(t, "HDFC", success.Issuer)
	require.NotNil(t, success.Network)
	assert.Equal(t, "RuPay", *success.Network)
	assert.Equal(t, DefaultConfidence, success.Confidence)
	assert.Equal(t, 0.02, success.RewardRules.Rate(models.CategoryOthers))
	assert.Equal(t, defaultNotes, success.Evidence.Notes)
	assert.Empty(t, success.Evidence.URLs)
}

func TestExtractCapsEvidenceURLs(t *testing.T) {
	uris := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		uris = append(uris, "https://example.com/"+strings.Repeat("a", i+1))
	}
	srv, _ := geminiServer(t, http.StatusOK, textResponse(t, `{"confidence": 2}`, uris...))

	success, ok := newTestClient(srv).Extract(context.Background(), Query{CardName: "X", Issuer: "Y"}).(Success)
	require.True(t, ok)
	assert.Len(t, success.Evidence.URLs, MaxEvidenceURLs)
	assert.Equal(t, 1.0, success.Confidence)
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":{"code":500,"message":"boom"}}`},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `slow down`},
		{name: "not json", status: http.StatusOK, body: `<html>`},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`},
		{name: "prose only", status: http.StatusOK, body: textResponse(t, "I could not find that card.")},
		{name: "broken object", status: http.StatusOK, body: textResponse(t, `{"card_name": "X",}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := geminiServer(t, tt.status, tt.body)
			result := newTestClient(srv).Extract(context.Background(), Query{CardName: "X", Issuer: "Y"})
			failure, ok := result.(Failure)
			require.True(t, ok, "expected Failure, got %#v", result)
			assert.NotEmpty(t, failure.Reason)
		})
	}
}

func TestExtractWithoutKeySkipsNetwork(t *testing.T) {
	srv, calls := geminiServer(t, http.StatusOK, textResponse(t, `{}`))
	client := NewGeminiClient("", WithBaseURL(srv.URL))

	failure, ok := client.Extract(context.Background(), Query{CardName: "X", Issuer: "Y"}).(Failure)
	require.True(t, ok)
	assert.Equal(t, ErrNoAPIKey.Error(), failure.Reason)
	assert.Zero(t, calls.Load())
}

func TestExtractTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client := NewGeminiClient("test-key", WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))
	_, ok := client.Extract(context.Background(), Query{CardName: "X", Issuer: "Y"}).(Failure)
	assert.True(t, ok)
}

func TestExtractSendsGroundedPrompt(t *testing.T) {
	var captured geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = io.WriteString(w, textResponse(t, `{}`))
	}))
	t.Cleanup(srv.Close)

	client := NewGeminiClient("test-key", WithBaseURL(srv.URL))
	_, ok := client.Extract(context.Background(), Query{CardName: "Ace", Issuer: "Axis"}).(Success)
	require.True(t, ok)

	require.Len(t, captured.Contents, 1)
	require.Len(t, captured.Contents[0].Parts, 1)
	prompt := captured.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "Card name: Ace")
	assert.Contains(t, prompt, "Issuer: Axis")
	require.Len(t, captured.Tools, 1)
	assert.Contains(t, captured.Tools[0], "google_search")
}

func TestReply(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusOK, textResponse(t, "  Use your Swiggy HDFC card.  "))

	reply, err := newTestClient(srv).Reply(context.Background(), "Which card for Swiggy?", []models.CatalogEntry{{ID: "swiggy-hdfc"}})
	require.NoError(t, err)
	assert.Equal(t, "Use your Swiggy HDFC card.", reply)
}

func TestReplyEmpty(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusOK, textResponse(t, "   "))

	_, err := newTestClient(srv).Reply(context.Background(), "hi", nil)
	assert.Error(t, err)
}
