package judge_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

type EvaluateRequest struct {
	Code              string     `json:"code"`
	FunctionSignature string     `json:"functionSignature"`
	TestCases         []TestCase `json:"testCases"`
}

type TestResult struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
	Error    string `json:"error,omitempty"`
}

type EvaluateResponse struct {
	Passed      bool         `json:"passed"`
	Error       string       `json:"error,omitempty"`
	TestResults []TestResult `json:"testResults"`
}

func (c *JudgeClient) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.Post(ctx, EvaluateEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate submission: %w", err)
	}

	var response EvaluateResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}

	return &response, nil
}

func (c *JudgeClient) Health(ctx context.Context) error {
	if _, err := c.Get(ctx, HealthEndpoint); err != nil {
		return fmt.Errorf("judge health check failed: %w", err)
	}
	return nil
}
