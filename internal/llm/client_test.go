package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTextFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text("<explanation>a</explanation>"),
				genai.Text("<top-3>1</top-3>"),
			}},
		}},
	}

	text, err := extractTextFromResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "<explanation>a</explanation><top-3>1</top-3>", text)
}

func TestExtractTextFromResponse_Errors(t *testing.T) {
	_, err := extractTextFromResponse(&genai.GenerateContentResponse{})
	assert.ErrorContains(t, err, "no candidates")

	_, err = extractTextFromResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{}},
	})
	assert.ErrorContains(t, err, "no content")

	_, err = extractTextFromResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}},
		}},
	})
	assert.ErrorContains(t, err, "no text parts")
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), DefaultConfig(), "")
	assert.ErrorContains(t, err, "API key is required")
}

func TestNewClient_UnsupportedProvider(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{Provider: "other"}, "key")
	assert.ErrorContains(t, err, "unsupported provider")
}

func TestNewClientPool(t *testing.T) {
	var keys []string
	factory := func(_ context.Context, _ *Config, key string) (Client, error) {
		keys = append(keys, key)
		return &MockLLMClient{}, nil
	}

	pool, err := NewClientPool(context.Background(), DefaultConfig(), []string{"k1", "k2"}, factory)
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Len())
	assert.Equal(t, []string{"k1", "k2"}, keys)

	_, err = pool.Client(2)
	assert.Error(t, err)
	assert.NoError(t, pool.Close())
}

func TestNewClientPool_ClosesOnFailure(t *testing.T) {
	closed := 0
	factory := func(_ context.Context, _ *Config, key string) (Client, error) {
		if key == "bad" {
			return nil, errors.New("boom")
		}
		return &MockLLMClient{CloseFunc: func() error { closed++; return nil }}, nil
	}

	_, err := NewClientPool(context.Background(), DefaultConfig(), []string{"good", "bad"}, factory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key#2")
	assert.Equal(t, 1, closed)
}
