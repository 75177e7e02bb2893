package dataservice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rulesengine/rule"
)

// RESTClient executes REST data-service calls per spec.md §4.4: URL
// templating of `{name}` placeholders from variables, with any remaining
// variables placed as query parameters (idempotent methods) or a JSON
// body (body-bearing methods).
type RESTClient struct {
	httpClient *http.Client
	policy     RetryPolicy
}

var idempotentMethods = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodDelete: true,
}

func (c *RESTClient) Execute(ctx context.Context, cfg rule.DataServiceConfig, variables map[string]interface{}) (*Response, error) {
	timeout := timeoutOf(cfg)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}

	endpoint, remaining := substitutePlaceholders(cfg.Endpoint, variables)

	resp, body, err := httpDo(callCtx, c.httpClient, c.policy, endpoint, func(ctx context.Context) (*http.Request, error) {
		var req *http.Request
		var err error
		if idempotentMethods[method] {
			withQuery, qerr := addQueryParams(endpoint, mergeStringMaps(cfg.QueryParams, remaining))
			if qerr != nil {
				return nil, qerr
			}
			req, err = http.NewRequestWithContext(ctx, method, withQuery, nil)
		} else {
			bodyMap := mergeBodyMaps(cfg.Body, remaining)
			reader, berr := marshalBody(bodyMap)
			if berr != nil {
				return nil, berr
			}
			req, err = http.NewRequestWithContext(ctx, method, endpoint, reader)
			if err == nil {
				req.Header.Set("Content-Type", "application/json")
			}
		}
		if err != nil {
			return nil, err
		}
		for k, v := range cfg.Headers {
			req.Header.Set(k, v)
		}
		if err := applyAuth(ctx, req, cfg.Auth); err != nil {
			return nil, err
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	decoded, derr := decodeJSON(body)
	if derr != nil {
		return nil, &DataServiceError{Endpoint: endpoint, Status: resp.StatusCode, Cause: derr}
	}
	return &Response{StatusCode: resp.StatusCode, Data: decoded}, nil
}

// Validate issues a HEAD request (falling back to GET) with a 1-second
// timeout to confirm connectivity.
func (c *RESTClient) Validate(ctx context.Context, cfg rule.DataServiceConfig) error {
	callCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	endpoint, _ := substitutePlaceholders(cfg.Endpoint, nil)
	req, err := http.NewRequestWithContext(callCtx, http.MethodHead, endpoint, nil)
	if err != nil {
		return err
	}
	if err := applyAuth(callCtx, req, cfg.Auth); err == nil {
		if resp, err := c.httpClient.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode < 500 {
				return nil
			}
		}
	}

	req, err = http.NewRequestWithContext(callCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if err := applyAuth(callCtx, req, cfg.Auth); err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &DataServiceError{Endpoint: endpoint, Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &DataServiceError{Endpoint: endpoint, Status: resp.StatusCode, Cause: fmt.Errorf("validation request failed")}
	}
	return nil
}

// substitutePlaceholders replaces every `{name}` occurrence in endpoint
// with variables[name] (as its string form), returning the substituted
// URL and the variables that were NOT consumed by a placeholder.
func substitutePlaceholders(endpoint string, variables map[string]interface{}) (string, map[string]interface{}) {
	remaining := make(map[string]interface{}, len(variables))
	for k, v := range variables {
		remaining[k] = v
	}
	result := endpoint
	for name, value := range variables {
		placeholder := "{" + name + "}"
		if strings.Contains(result, placeholder) {
			result = strings.ReplaceAll(result, placeholder, fmt.Sprintf("%v", value))
			delete(remaining, name)
		}
	}
	return result, remaining
}

func addQueryParams(endpoint string, params map[string]string) (string, error) {
	if len(params) == 0 {
		return endpoint, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func mergeStringMaps(base map[string]string, extra map[string]interface{}) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func mergeBodyMaps(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
