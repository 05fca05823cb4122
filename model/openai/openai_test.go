package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/turnmesh/model"
)

func TestModel_Generate(t *testing.T) {
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Sunny in Oslo."}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer srv.Close()

	client := openai.NewClient(
		option.WithBaseURL(srv.URL+"/"),
		option.WithAPIKey("test"),
		option.WithMaxRetries(0),
	)
	m := NewModelFromClient(&client, func(o *Options) { o.Model = "gpt-4o-mini" })

	resp, err := model.Collect(context.Background(), m, model.Request{
		Instructions: "Be brief.",
		Messages: []model.Message{
			{Role: model.RoleUser, Text: "weather?"},
			{Role: model.RoleAssistant, Text: "Where?"},
			{Role: model.RoleUser, Text: "Oslo"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Sunny in Oslo.", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 16, resp.Usage.TotalTokens)

	msgs, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])
	assert.Equal(t, "gpt-4o-mini", got["model"])

	assert.Equal(t, model.Info{Name: "gpt-4o-mini", Provider: "openai"}, m.Info())
}

func TestModel_GenerateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "boom", "type": "server_error"}}`))
	}))
	defer srv.Close()

	client := openai.NewClient(option.WithBaseURL(srv.URL+"/"), option.WithAPIKey("test"), option.WithMaxRetries(0))
	m := NewModelFromClient(&client)

	_, err := model.Collect(context.Background(), m, model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "hi"}},
	})
	assert.Error(t, err)
}

func TestBuildMessages_SkipsEmpty(t *testing.T) {
	msgs := buildMessages(model.Request{Messages: []model.Message{
		{Role: model.RoleUser, Text: ""},
		{Role: "narrator", Text: "hello"},
	}})
	assert.Len(t, msgs, 1)
}
