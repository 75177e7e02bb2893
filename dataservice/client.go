// Package dataservice implements the data-service clients (C4): GraphQL
// and REST adapters sharing one retrying HTTP transport, auth application,
// and connection validation.
//
// The retry/backoff loop and request/response shape generalize the
// teacher's executor.HTTPExecutor (request building, status
// classification) and http.Execute's calculateBackoff idiom (exponential
// backoff, capped), restructured onto context.Context cancellation and a
// closed retry policy per spec.md §4.4 rather than the teacher's
// fire-and-forget CLI executor loop.
package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"rulesengine/common"
	"rulesengine/rule"
)

// Response is the decoded result of one data-service call. Data holds the
// JSON-decoded body (typically map[string]interface{}) ready for
// mapper.Extract/mapper.Get to traverse.
type Response struct {
	StatusCode int
	Data       interface{}
}

// Client executes one data-service call and validates connectivity.
type Client interface {
	Execute(ctx context.Context, cfg rule.DataServiceConfig, variables map[string]interface{}) (*Response, error)
	Validate(ctx context.Context, cfg rule.DataServiceConfig) error
}

// RetryPolicy configures the shared retry/backoff behavior (spec.md §4.4,
// §6 `dataService.maxRetries`/`backoffInitialMs`).
type RetryPolicy struct {
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffCap     time.Duration
}

// DefaultRetryPolicy matches spec.md §6's defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BackoffInitial: 200 * time.Millisecond, BackoffCap: 2 * time.Second}
}

// Dispatcher routes a DataServiceConfig to the GraphQL or REST client by
// Kind, giving callers (the resolver) a single Client to depend on.
type Dispatcher struct {
	GraphQL *GraphQLClient
	REST    *RESTClient
}

// NewDispatcher builds a Dispatcher sharing one *http.Client and retry
// policy across both protocol clients.
func NewDispatcher(httpClient *http.Client, policy RetryPolicy) *Dispatcher {
	return &Dispatcher{
		GraphQL: &GraphQLClient{httpClient: httpClient, policy: policy},
		REST:    &RESTClient{httpClient: httpClient, policy: policy},
	}
}

func (d *Dispatcher) Execute(ctx context.Context, cfg rule.DataServiceConfig, variables map[string]interface{}) (*Response, error) {
	switch cfg.Kind {
	case rule.DataServiceGraphQL:
		return d.GraphQL.Execute(ctx, cfg, variables)
	case rule.DataServiceREST:
		return d.REST.Execute(ctx, cfg, variables)
	default:
		return nil, &DataServiceError{Endpoint: cfg.Endpoint, Cause: fmt.Errorf("unknown data service kind %q", cfg.Kind)}
	}
}

func (d *Dispatcher) Validate(ctx context.Context, cfg rule.DataServiceConfig) error {
	switch cfg.Kind {
	case rule.DataServiceGraphQL:
		return d.GraphQL.Validate(ctx, cfg)
	case rule.DataServiceREST:
		return d.REST.Validate(ctx, cfg)
	default:
		return fmt.Errorf("unknown data service kind %q", cfg.Kind)
	}
}

// httpDo executes req with retry per policy: transient failures (network
// errors, 5xx, 408, 429) retry up to policy.MaxRetries times with
// exponential backoff starting at BackoffInitial, capped at BackoffCap.
// Any other 4xx is non-retryable. buildReq is called again for every
// attempt so the request body reader is fresh.
func httpDo(ctx context.Context, httpClient *http.Client, policy RetryPolicy, endpoint string, buildReq func(ctx context.Context) (*http.Request, error)) (*http.Response, []byte, error) {
	attempts := policy.MaxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		req, err := buildReq(ctx)
		if err != nil {
			return nil, nil, &DataServiceError{Endpoint: endpoint, Cause: err}
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < attempts-1 {
				sleepBackoff(ctx, policy, attempt)
				continue
			}
			break
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if attempt < attempts-1 {
				sleepBackoff(ctx, policy, attempt)
				continue
			}
			break
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, body, nil
		}

		if !isRetryableStatus(resp.StatusCode) {
			return resp, body, &DataServiceError{
				Endpoint: endpoint,
				Status:   resp.StatusCode,
				Cause:    fmt.Errorf("non-retryable HTTP status %d", resp.StatusCode),
			}
		}

		lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
		common.Logger.WithField("endpoint", endpoint).WithField("attempt", attempt+1).
			WithField("status", resp.StatusCode).Warn("data-service call failed, retrying")
		if attempt < attempts-1 {
			sleepBackoff(ctx, policy, attempt)
		}
	}

	return nil, nil, &DataServiceError{Endpoint: endpoint, Cause: fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)}
}

// isRetryableStatus reports whether status is transient: any 5xx, or 408
// (request timeout) / 429 (rate limited). Other 4xx are permanent.
func isRetryableStatus(status int) bool {
	if status >= 500 {
		return true
	}
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}

func sleepBackoff(ctx context.Context, policy RetryPolicy, attempt int) {
	backoff := policy.BackoffInitial * time.Duration(1<<uint(attempt))
	if backoff > policy.BackoffCap {
		backoff = policy.BackoffCap
	}
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
	}
}

func decodeJSON(body []byte) (interface{}, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}
	return decoded, nil
}

func marshalBody(body map[string]interface{}) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}
