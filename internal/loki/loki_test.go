package loki_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ogero/stremio-urn3/internal/loki"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoki(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/loki/api/v1/query", r.URL.Path)
		queries = append(queries, r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1760400000.123,"42"]}]}}`))
	}))
	defer srv.Close()

	l := loki.NewLoki(srv.URL, "stremio-urn3")

	n, err := l.GetExtractions24(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = l.GetStreams24(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	require.Len(t, queries, 2)
	assert.Equal(t, "sum(count_over_time({service_name=\"stremio-urn3\"} |= `MetaHandler` [24h]))", queries[0])
	assert.Contains(t, queries[1], "`StreamHandler`")
}

func TestLoki_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    int
		wantErr assert.ErrorAssertionFunc
	}{
		{"empty vector", http.StatusOK, `{"status":"success","data":{"resultType":"vector","result":[]}}`, 0, assert.NoError},
		{"failed status", http.StatusOK, `{"status":"error"}`, 0, assert.Error},
		{"matrix", http.StatusOK, `{"status":"success","data":{"resultType":"matrix","result":[]}}`, 0, assert.Error},
		{"non numeric", http.StatusOK, `{"status":"success","data":{"resultType":"vector","result":[{"value":[1,"x"]}]}}`, 0, assert.Error},
		{"numeric value", http.StatusOK, `{"status":"success","data":{"resultType":"vector","result":[{"value":[1,2]}]}}`, 0, assert.Error},
		{"bad gateway", http.StatusBadGateway, ``, 0, assert.Error},
		{"malformed", http.StatusOK, `{`, 0, assert.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			n, err := loki.NewLoki(srv.URL, "stremio-urn3").GetStreams24(context.Background())
			tt.wantErr(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}
