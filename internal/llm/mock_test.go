package llm

import "context"

// MockLLMClient implements Client for testing
type MockLLMClient struct {
	GenerateContentFunc func(ctx context.Context, prompt string) (string, error)
	ModelFunc           func() string
	CloseFunc           func() error
	Calls               int
}

func (m *MockLLMClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	m.Calls++
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, prompt)
	}
	return "<explanation>Mock reasoning</explanation><top-3>1, 2, 3</top-3>", nil
}

func (m *MockLLMClient) Model() string {
	if m.ModelFunc != nil {
		return m.ModelFunc()
	}
	return "mock-model"
}

func (m *MockLLMClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
