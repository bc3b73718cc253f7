package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecommendBody(t *testing.T) {
	cmd := recommendCmd
	require.NoError(t, cmd.Flags().Parse([]string{"--base", "42", "--min", "10", "--max", "50", "--exclude", "1,2", "--max-results", "3"}))

	body, err := recommendBody(cmd)
	require.NoError(t, err)
	assert.Equal(t, "42", body["base_product_id"])
	assert.Equal(t, map[string]float64{"min": 10, "max": 50}, body["price_range"])
	assert.Equal(t, []string{"1", "2"}, body["exclude_ids"])
	assert.Equal(t, 3, body["max_results"])
}

func TestCallWithStaticToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t1", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v1/products/7/related", r.URL.Path)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	opts.server = srv.URL
	opts.token = "t1"
	opts.tokenURL = ""

	var out bytes.Buffer
	require.NoError(t, call(context.Background(), http.MethodGet, "/api/v1/products/7/related", nil, &out))
	assert.JSONEq(t, `{"items":[]}`, out.String())
}

func TestCallReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"product not found: 9"}`))
	}))
	defer srv.Close()

	opts.server = srv.URL
	opts.token = "t1"
	opts.tokenURL = ""

	err := call(context.Background(), http.MethodGet, "/api/v1/products/9/related", nil, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
