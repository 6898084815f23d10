// Package testutil provides test utilities for code that depends on the llm package.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/coderonin/llm"
)

// MockLLMClient is a thread-safe stand-in for llm.Client.
// It captures every request passed to Complete and returns configured responses.
//
// Usage:
//
//	mock := &MockLLMClient{
//	    Responses: []*llm.Response{
//	        {Content: `{"sabotagedCode": "x", "explanation": "hint", "type": "logic"}`},
//	    },
//	}
//
//	// Error response
//	mock := &MockLLMClient{Err: errors.New("connection failed")}
type MockLLMClient struct {
	mu              sync.Mutex
	capturedContext context.Context
	requests        []llm.Request
	Responses       []*llm.Response // Responses to return in sequence
	Err             error           // Error to return (takes precedence over Responses)
	callCount       int
	responseIndex   int
}

// Complete returns the next response from Responses, or Err if set.
func (m *MockLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.capturedContext = ctx
	m.requests = append(m.requests, req)
	m.callCount++

	if m.Err != nil {
		return nil, m.Err
	}

	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	// Default response if no responses configured
	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// GetCapturedContext returns the last context passed to Complete().
func (m *MockLLMClient) GetCapturedContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturedContext
}

// GetCallCount returns the number of times Complete() was called.
func (m *MockLLMClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastRequest returns the most recent request, or the zero value if none was made.
func (m *MockLLMClient) LastRequest() llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return llm.Request{}
	}
	return m.requests[len(m.requests)-1]
}

// Reset resets the mock's state.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.responseIndex = 0
	m.requests = nil
	m.capturedContext = nil
}
