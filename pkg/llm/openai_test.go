package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader-api/pkg/imageref"
)

type capturedRequest struct {
	Path   string
	Header http.Header
	Body   map[string]any
}

func chatServer(t *testing.T, status int, response string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		captured.Header = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.Body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server
}

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4o",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "Photosynthesis converts light"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 10, "completion_tokens": 4, "total_tokens": 14}
}`

func TestOpenAIInvokerSendsMultimodalTurn(t *testing.T) {
	var captured capturedRequest
	server := chatServer(t, http.StatusOK, completionBody, &captured)

	invoker, err := NewOpenAIInvoker(OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o", BaseURL: server.URL + "/v1", Logger: zerolog.Nop()})
	require.NoError(t, err)

	text, err := invoker.Complete(context.Background(), Request{
		Instruction: "Extract all text from this image.",
		Images: []imageref.Image{
			{URL: "https://cdn.example.com/answer.png"},
			{MIMEType: "image/png", Base64: "iVBORw=="},
		},
		MaxTokens:   2000,
		Temperature: 0.1,
		Detail:      DetailHigh,
	})
	require.NoError(t, err)
	require.Equal(t, "Photosynthesis converts light", text)

	require.Equal(t, "/v1/chat/completions", captured.Path)
	require.Equal(t, "Bearer sk-test", captured.Header.Get("Authorization"))
	require.Equal(t, float64(2000), captured.Body["max_tokens"])

	messages := captured.Body["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 3)
	require.Equal(t, "text", content[0].(map[string]any)["type"])

	remote := content[1].(map[string]any)["image_url"].(map[string]any)
	require.Equal(t, "https://cdn.example.com/answer.png", remote["url"])
	require.Equal(t, "high", remote["detail"])

	inline := content[2].(map[string]any)["image_url"].(map[string]any)
	require.Equal(t, "data:image/png;base64,iVBORw==", inline["url"])
}

func TestOpenAIInvokerIncludesSystemTurn(t *testing.T) {
	var captured capturedRequest
	server := chatServer(t, http.StatusOK, completionBody, &captured)

	invoker, err := NewOpenAIInvoker(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1", Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = invoker.Complete(context.Background(), Request{System: "You are a typesetter.", Instruction: "format", MaxTokens: 10})
	require.NoError(t, err)

	messages := captured.Body["messages"].([]any)
	require.Len(t, messages, 2)
	require.Equal(t, "system", messages[0].(map[string]any)["role"])
	require.Equal(t, "You are a typesetter.", messages[0].(map[string]any)["content"])
}

func TestOpenAIInvokerWrapsProviderErrors(t *testing.T) {
	var captured capturedRequest
	server := chatServer(t, http.StatusTooManyRequests, `{"error": {"message": "rate limit reached", "type": "requests", "code": "rate_limit"}}`, &captured)

	invoker, err := NewOpenAIInvoker(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1", Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = invoker.Complete(context.Background(), Request{Instruction: "hi", MaxTokens: 10})
	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	require.Equal(t, ProviderOpenAI, upstreamErr.Provider)
	require.Contains(t, upstreamErr.Message, "rate limit reached")
}

func TestOpenAIInvokerNoChoices(t *testing.T) {
	var captured capturedRequest
	server := chatServer(t, http.StatusOK, `{"id": "x", "object": "chat.completion", "choices": []}`, &captured)

	invoker, err := NewOpenAIInvoker(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1", Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = invoker.Complete(context.Background(), Request{Instruction: "hi", MaxTokens: 10})
	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	require.Equal(t, "no choices returned", upstreamErr.Message)
}

func TestAzureInvokerUsesDeploymentRoute(t *testing.T) {
	var captured capturedRequest
	server := chatServer(t, http.StatusOK, completionBody, &captured)

	invoker, err := NewOpenAIInvoker(OpenAIConfig{
		APIKey:          "azure-key",
		AzureEndpoint:   server.URL,
		AzureDeployment: "gpt4o-grader",
		Logger:          zerolog.Nop(),
	})
	require.NoError(t, err)

	_, err = invoker.Complete(context.Background(), Request{Instruction: "hi", MaxTokens: 10})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(captured.Path, "/openai/deployments/gpt4o-grader/chat/completions"), captured.Path)
	require.Equal(t, "azure-key", captured.Header.Get("api-key"))
}

func TestNewRejectsUnknownProviderAndMissingKeys(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "ollama"})
	require.Error(t, err)

	_, err = New(context.Background(), Config{Provider: ProviderOpenAI})
	require.Error(t, err)

	_, err = New(context.Background(), Config{Provider: ProviderAzure, APIKey: "k", AzureEndpoint: "https://example.openai.azure.com"})
	require.Error(t, err)

	_, err = New(context.Background(), Config{Provider: ProviderAnthropic})
	require.Error(t, err)

	_, err = New(context.Background(), Config{Provider: ProviderGemini})
	require.Error(t, err)

	invoker, err := New(context.Background(), Config{Provider: ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	require.IsType(t, &AnthropicInvoker{}, invoker)
}
