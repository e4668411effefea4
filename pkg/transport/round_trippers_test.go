package transport_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/ogero/stremio-urn3/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type mockRoundTripper struct {
	RoundTripFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.RoundTripFunc(req)
}

func TestModifyHeadersRoundTripper(t *testing.T) {
	mockRT := &mockRoundTripper{
		RoundTripFunc: func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "TestAgent", req.Header.Get("User-Agent"))
			assert.Equal(t, "en-US", req.Header.Get("Accept-Language"))
			return nil, nil
		},
	}

	rt := transport.NewModifyHeadersRoundTripper(mockRT,
		transport.WithUserAgent("TestAgent"),
		transport.WithAcceptLanguage("en-US"))

	req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, err)

	_, _ = rt.RoundTrip(req)

	assert.Empty(t, req.Header.Get("User-Agent"), "original request must not be mutated")
}

func TestRateLimitRoundTripper(t *testing.T) {
	calls := 0
	mockRT := &mockRoundTripper{
		RoundTripFunc: func(req *http.Request) (*http.Response, error) {
			calls++
			return &http.Response{StatusCode: http.StatusOK}, nil
		},
	}

	t.Run("allowed request is forwarded", func(t *testing.T) {
		rt := transport.NewRateLimitRoundTripper(mockRT, rate.NewLimiter(rate.Inf, 1))

		req, err := http.NewRequest(http.MethodGet, "http://example.com", nil)
		require.NoError(t, err)

		res, err := rt.RoundTrip(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled wait is not forwarded", func(t *testing.T) {
		calls = 0
		limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
		require.True(t, limiter.Allow())
		rt := transport.NewRateLimitRoundTripper(mockRT, limiter)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.com", nil)
		require.NoError(t, err)

		_, err = rt.RoundTrip(req)
		assert.Error(t, err)
		assert.Equal(t, 0, calls)
	})
}
