package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rulesengine/rule"
)

// GraphQLClient executes GraphQL data-service calls per spec.md §4.4: a
// POST of {query, operationName?, variables}, requiring a top-level
// `data` object and treating a non-empty `errors` array as fatal.
type GraphQLClient struct {
	httpClient *http.Client
	policy     RetryPolicy
}

type graphQLRequestBody struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponseBody struct {
	Data   interface{}      `json:"data"`
	Errors []graphQLError   `json:"errors,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

func (c *GraphQLClient) Execute(ctx context.Context, cfg rule.DataServiceConfig, variables map[string]interface{}) (*Response, error) {
	timeout := timeoutOf(cfg)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := graphQLRequestBody{
		Query:         cfg.Query,
		OperationName: cfg.OperationName,
		Variables:     variables,
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, &DataServiceError{Endpoint: cfg.Endpoint, Cause: err}
	}

	resp, body, err := httpDo(callCtx, c.httpClient, c.policy, cfg.Endpoint, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if err := applyAuth(ctx, req, cfg.Auth); err != nil {
			return nil, err
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var decoded graphQLResponseBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &DataServiceError{Endpoint: cfg.Endpoint, Status: resp.StatusCode, Cause: fmt.Errorf("failed to decode GraphQL response: %w", err)}
	}
	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, e := range decoded.Errors {
			messages = append(messages, e.Message)
		}
		return nil, &DataServiceError{Endpoint: cfg.Endpoint, Status: resp.StatusCode, Cause: fmt.Errorf("graphql errors: %s", strings.Join(messages, "; "))}
	}
	if decoded.Data == nil {
		return nil, &DataServiceError{Endpoint: cfg.Endpoint, Status: resp.StatusCode, Cause: fmt.Errorf("graphql response missing top-level data object")}
	}

	return &Response{StatusCode: resp.StatusCode, Data: decoded.Data}, nil
}

// Validate issues a short introspection query to confirm the endpoint is
// reachable and serving GraphQL.
func (c *GraphQLClient) Validate(ctx context.Context, cfg rule.DataServiceConfig) error {
	callCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	probe := rule.DataServiceConfig{
		Kind:     rule.DataServiceGraphQL,
		Endpoint: cfg.Endpoint,
		Auth:     cfg.Auth,
		Query:    "query { __typename }",
	}
	_, err := c.Execute(callCtx, probe, nil)
	return err
}

func timeoutOf(cfg rule.DataServiceConfig) time.Duration {
	if cfg.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.TimeoutMs) * time.Millisecond
}
