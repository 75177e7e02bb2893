package dataservice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulesengine/rule"
)

func TestGraphQLClientExecuteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"user": map[string]interface{}{"score": 92}},
		})
	}))
	defer srv.Close()

	d := NewDispatcher(srv.Client(), DefaultRetryPolicy())
	resp, err := d.Execute(t.Context(), rule.DataServiceConfig{
		Kind: rule.DataServiceGraphQL, Endpoint: srv.URL, Query: "query { user { score } }",
	}, nil)
	require.NoError(t, err)
	data := resp.Data.(map[string]interface{})
	user := data["user"].(map[string]interface{})
	assert.Equal(t, float64(92), user["score"])
}

func TestGraphQLClientErrorsArrayIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data":   nil,
			"errors": []map[string]string{{"message": "field not found"}},
		})
	}))
	defer srv.Close()

	d := NewDispatcher(srv.Client(), DefaultRetryPolicy())
	_, err := d.Execute(t.Context(), rule.DataServiceConfig{
		Kind: rule.DataServiceGraphQL, Endpoint: srv.URL, Query: "query { missing }",
	}, nil)
	require.Error(t, err)
	var dsErr *DataServiceError
	require.ErrorAs(t, err, &dsErr)
}

func TestRESTClientURLTemplatingAndQueryParams(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "active"})
	}))
	defer srv.Close()

	d := NewDispatcher(srv.Client(), DefaultRetryPolicy())
	resp, err := d.Execute(t.Context(), rule.DataServiceConfig{
		Kind: rule.DataServiceREST, Endpoint: srv.URL + "/users/{id}", Method: http.MethodGet,
	}, map[string]interface{}{"id": "42", "includeDetails": "true"})
	require.NoError(t, err)
	assert.Equal(t, "/users/42", gotPath)
	assert.Contains(t, gotQuery, "includeDetails=true")
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "active", data["status"])
}

func TestRESTClientBodyBearingMethod(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"created": true})
	}))
	defer srv.Close()

	d := NewDispatcher(srv.Client(), DefaultRetryPolicy())
	_, err := d.Execute(t.Context(), rule.DataServiceConfig{
		Kind: rule.DataServiceREST, Endpoint: srv.URL + "/orders", Method: http.MethodPost,
	}, map[string]interface{}{"amount": 10.0})
	require.NoError(t, err)
	assert.Equal(t, 10.0, gotBody["amount"])
}

func TestRetryExactlyMaxRetriesPlusOneAttempts(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.Client(), RetryPolicy{MaxRetries: 3, BackoffInitial: time.Millisecond, BackoffCap: 5 * time.Millisecond})
	_, err := d.Execute(t.Context(), rule.DataServiceConfig{
		Kind: rule.DataServiceREST, Endpoint: srv.URL, Method: http.MethodGet,
	}, nil)
	require.Error(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&attempts))
}

func TestNonRetryable4xxFailsImmediately(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.Client(), DefaultRetryPolicy())
	_, err := d.Execute(t.Context(), rule.DataServiceConfig{
		Kind: rule.DataServiceREST, Endpoint: srv.URL, Method: http.MethodGet,
	}, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestApplyAuthAPIKeySetsOnlyItsHeader(t *testing.T) {
	var gotHeader, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Api-Key")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
	}))
	defer srv.Close()

	d := NewDispatcher(srv.Client(), DefaultRetryPolicy())
	_, err := d.Execute(t.Context(), rule.DataServiceConfig{
		Kind: rule.DataServiceREST, Endpoint: srv.URL, Method: http.MethodGet,
		Auth: rule.AuthConfig{Kind: rule.AuthAPIKey, HeaderName: "X-Api-Key", Key: "secret"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "secret", gotHeader)
	assert.Empty(t, gotAuth)
}
