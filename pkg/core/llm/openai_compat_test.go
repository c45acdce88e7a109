package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAICompat_GenerateResponse(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"summary\":\"ok\"}"}}]}`))
	}))
	defer srv.Close()

	p := &OpenAICompatProvider{BaseURL: srv.URL + "/", APIKey: "test-key", Model: "gemini-test"}
	out, err := p.GenerateResponse(context.Background(), "hello", "be brief", map[string]interface{}{OptJSON: true})
	require.NoError(t, err)

	assert.Equal(t, `{"summary":"ok"}`, out)
	assert.Equal(t, "gemini-test", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hello", got.Messages[1].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenAICompat_ModelOverride(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"choices":[{"message":{"content":"x"}}]}`))
	}))
	defer srv.Close()

	p := &OpenAICompatProvider{BaseURL: srv.URL, APIKey: "k", Model: "a"}
	_, err := p.GenerateResponse(context.Background(), "q", "", map[string]interface{}{OptModel: "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", got.Model)
	assert.Len(t, got.Messages, 1, "no system message when prompt is empty")
	assert.Nil(t, got.ResponseFormat)
}

func TestOpenAICompat_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := &OpenAICompatProvider{BaseURL: srv.URL, APIKey: "k"}
	_, err := p.GenerateResponse(context.Background(), "q", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=429")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer empty.Close()
	p.BaseURL = empty.URL
	_, err = p.GenerateResponse(context.Background(), "q", "", nil)
	assert.ErrorContains(t, err, "no choices")
}

func TestOpenAICompat_MissingKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	p := &OpenAICompatProvider{BaseURL: "http://127.0.0.1:1"}
	_, err := p.GenerateResponse(context.Background(), "q", "", nil)
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}
