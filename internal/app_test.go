package internal_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/ogero/stremio-urn3/internal"
	"github.com/ogero/stremio-urn3/pkg/stremio"
	"github.com/ogero/stremio-urn3/pkg/urn3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAddonService struct {
	http.Handler

	gotID, gotIndex string
	err             error
}

func (f *fakeAddonService) GetRecord(_ context.Context, fhclID string) (*urn3.Record, error) {
	f.gotID = fhclID
	if f.err != nil {
		return nil, f.err
	}
	return &urn3.Record{ID: "460210620", Title: "Interview", Description: []string{}}, nil
}

func (f *fakeAddonService) GetMeta(_ context.Context, fhclID string) (*stremio.Meta, error) {
	f.gotID = fhclID
	if f.err != nil {
		return nil, f.err
	}
	return &stremio.Meta{ID: "urn3:" + fhclID, Type: "movie", Name: "Interview"}, nil
}

func (f *fakeAddonService) GetStreams(_ context.Context, fhclID, index string) ([]stremio.Stream, error) {
	f.gotID, f.gotIndex = fhclID, index
	if f.err != nil {
		return nil, f.err
	}
	return []stremio.Stream{{URL: "https://mps.lib.harvard.edu/a.m3u8", Name: "URN-3", Title: "Interview"}}, nil
}

func (f *fakeAddonService) BroadcastStats(func(stats *internal.Stats) error) error { return nil }
func (f *fakeAddonService) StartPollingStats(context.Context, time.Duration) {}
func (f *fakeAddonService) Shutdown(context.Context) error { return nil }

func newTestRouter(t *testing.T, svc internal.AddonService) http.Handler {
	t.Helper()
	app, err := internal.NewApp(svc, "http://127.0.0.1:3593")
	require.NoError(t, err)
	app.RequestLimit = 0
	return app.Router()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestManifestHandler(t *testing.T) {
	rec := get(t, newTestRouter(t, &fakeAddonService{}), "/manifest.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var m stremio.Manifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, []string{"urn3:"}, m.IDPrefixes)
	assert.Equal(t, []string{"meta", "stream"}, m.Resources)
}

func TestMetaHandler(t *testing.T) {
	svc := &fakeAddonService{}
	router := newTestRouter(t, svc)

	rec := get(t, router, "/meta/movie/urn3:10876709.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10876709", svc.gotID)
	assert.Equal(t, "public, max-age=86400", rec.Header().Get("Cache-Control"))

	var res stremio.MetaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "urn3:10876709", res.Meta.ID)

	rec = get(t, router, "/meta/series/urn3%3A10876709.json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10876709", svc.gotID)
}

func TestMetaHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		wantStatus int
	}{
		{"bad type", "/meta/channel/urn3:1.json", nil, http.StatusBadRequest},
		{"bad id", "/meta/movie/tt1234567.json", nil, http.StatusBadRequest},
		{"not found", "/meta/movie/urn3:1.json", fmt.Errorf("failed: %w", urn3.ErrNotFound), http.StatusNotFound},
		{"redirect loop", "/meta/movie/urn3:1.json", urn3.ErrTooManyRedirects, http.StatusBadGateway},
		{"other", "/meta/movie/urn3:1.json", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestRouter(t, &fakeAddonService{err: tt.err}), tt.target)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestStreamHandler(t *testing.T) {
	svc := &fakeAddonService{}
	router := newTestRouter(t, svc)

	rec := get(t, router, "/stream/series/urn3:10876709:2.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10876709", svc.gotID)
	assert.Equal(t, "2", svc.gotIndex)

	var res stremio.StreamsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Streams, 1)
	assert.Equal(t, "https://mps.lib.harvard.edu/a.m3u8", res.Streams[0].URL)

	rec = get(t, router, "/stream/series/urn3:10876709.json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, newTestRouter(t, &fakeAddonService{err: internal.ErrSegmentNotFound}), "/stream/series/urn3:10876709:9.json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtractHandler(t *testing.T) {
	svc := &fakeAddonService{}
	router := newTestRouter(t, svc)

	rec := get(t, router, "/extract?url="+url.QueryEscape("https://nrs.harvard.edu/urn-3:FHCL:10876709"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10876709", svc.gotID)

	var record urn3.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "460210620", record.ID)

	rec = get(t, router, "/extract?url="+url.QueryEscape("https://example.org/urn-3:FHCL:1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, router, "/extract")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_CORS(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/manifest.json", nil)
	req.Header.Set("Origin", "https://web.stremio.com")
	rec := httptest.NewRecorder()
	newTestRouter(t, &fakeAddonService{}).ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimit(t *testing.T) {
	app, err := internal.NewApp(&fakeAddonService{}, "http://127.0.0.1:3593")
	require.NoError(t, err)
	app.RequestLimit = 2
	router := app.Router()

	for range 2 {
		assert.Equal(t, http.StatusOK, get(t, router, "/meta/movie/urn3:1.json").Code)
	}
	rec := get(t, router, "/meta/movie/urn3:1.json")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// manifest is not limited
	assert.Equal(t, http.StatusOK, get(t, router, "/manifest.json").Code)
}
