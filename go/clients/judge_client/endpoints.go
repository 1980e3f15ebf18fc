package judge_client

const (
	// API Endpoints
	EvaluateEndpoint = "/evaluate"
	HealthEndpoint   = "/health"

	// Headers
	ContentTypeHeader = "Content-Type"
	ContentTypeJSON   = "application/json"
	APIKeyHeader      = "X-Judge-Key"
)
