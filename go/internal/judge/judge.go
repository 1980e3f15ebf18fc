// Package judge evaluates submitted solutions against a problem's test cases.
package judge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/codebattle/go/clients/judge_client"
	"github.com/mcdev12/codebattle/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrJudgeUnavailable covers every failure to obtain a verdict: transport
// errors, bad responses and timeouts.
var ErrJudgeUnavailable = errors.New("judge unavailable")

// Judge evaluates a submission.
type Judge interface {
	Evaluate(ctx context.Context, code string, problem models.Problem) (models.JudgeResult, error)
}

// evaluator is the remote call the HTTP judge depends on.
type evaluator interface {
	Evaluate(ctx context.Context, req judge_client.EvaluateRequest) (*judge_client.EvaluateResponse, error)
	Health(ctx context.Context) error
}

// HTTPJudge delegates to a remote execution service.
type HTTPJudge struct {
	client  evaluator
	timeout time.Duration
}

// NewHTTPJudge creates a judge backed by the judge service at baseURL.
func NewHTTPJudge(baseURL, apiKey string, timeout time.Duration) *HTTPJudge {
	client := judge_client.NewJudgeClient(baseURL, apiKey)
	client.SetTimeout(timeout + time.Second)
	return &HTTPJudge{client: client, timeout: timeout}
}

// Ping checks that the judge service is reachable.
func (j *HTTPJudge) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	if err := j.client.Health(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrJudgeUnavailable, err)
	}
	return nil
}

// Evaluate sends the submission to the judge service.
func (j *HTTPJudge) Evaluate(ctx context.Context, code string, problem models.Problem) (models.JudgeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	req := judge_client.EvaluateRequest{
		Code:              code,
		FunctionSignature: problem.FunctionSignature,
		TestCases:         make([]judge_client.TestCase, 0, len(problem.TestCases)),
	}
	for _, tc := range problem.TestCases {
		req.TestCases = append(req.TestCases, judge_client.TestCase{
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
		})
	}

	start := time.Now()
	resp, err := j.client.Evaluate(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("problem", problem.ID).Msg("judge request failed")
		return models.JudgeResult{}, fmt.Errorf("%w: %v", ErrJudgeUnavailable, err)
	}

	log.Debug().
		Str("problem", problem.ID).
		Bool("passed", resp.Passed).
		Dur("elapsed", time.Since(start)).
		Msg("submission judged")

	return toResult(resp), nil
}

func toResult(resp *judge_client.EvaluateResponse) models.JudgeResult {
	result := models.JudgeResult{
		Passed:      resp.Passed,
		Diagnostics: resp.Error,
		TestResults: make([]models.TestResult, 0, len(resp.TestResults)),
	}
	for _, tr := range resp.TestResults {
		actual := tr.Actual
		if tr.Error != "" && actual == "" {
			actual = tr.Error
		}
		result.TestResults = append(result.TestResults, models.TestResult{
			Input:    tr.Input,
			Expected: tr.Expected,
			Actual:   actual,
			Passed:   tr.Passed,
		})
	}
	if result.Passed && len(result.TestResults) > 0 {
		for _, tr := range result.TestResults {
			if !tr.Passed {
				result.Passed = false
				break
			}
		}
	}
	return result
}

// Unavailable is used when no judge service is configured. Every submission fails.
type Unavailable struct{}

func (Unavailable) Evaluate(context.Context, string, models.Problem) (models.JudgeResult, error) {
	return models.JudgeResult{}, ErrJudgeUnavailable
}

// Func adapts a function to the Judge interface.
type Func func(ctx context.Context, code string, problem models.Problem) (models.JudgeResult, error)

func (f Func) Evaluate(ctx context.Context, code string, problem models.Problem) (models.JudgeResult, error) {
	return f(ctx, code, problem)
}
