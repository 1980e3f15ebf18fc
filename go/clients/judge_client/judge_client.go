package judge_client

import (
	"github.com/mcdev12/codebattle/go/clients"
)

// JudgeClient talks to the remote code execution service.
type JudgeClient struct {
	*clients.BaseClient
}

func NewJudgeClient(baseURL, apiKey string) *JudgeClient {
	client := &JudgeClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(ContentTypeHeader, ContentTypeJSON)
	if apiKey != "" {
		client.SetHeader(APIKeyHeader, apiKey)
	}

	return client
}
