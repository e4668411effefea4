package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/ogero/stremio-urn3/internal/common"
	"github.com/ogero/stremio-urn3/pkg/stremio"
	"github.com/ogero/stremio-urn3/pkg/urn3"
	slogchi "github.com/samber/slog-chi"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var manifest = stremio.Manifest{
	ID:          "edu.harvard.lib.urn3.go",
	Version:     "0.0.1",
	Name:        "Harvard Library",
	Description: "Harvard Library digital collections audio and video, addressed by URN-3 links",
	Types:       []string{"movie", "series"},
	Catalogs:    []stremio.CatalogItem{},
	IDPrefixes:  []string{common.IDPrefix},
	Resources:   []string{"meta", "stream"},
}

// App represents the main application structure that holds the addon service and addon host information.
type App struct {
	AddonService AddonService
	AddonHost    string

	// RequestLimit is the number of requests per minute accepted from a single IP. Zero disables the limit.
	RequestLimit int
}

/*
NewApp creates a new instance of the App struct.

Parameters:
  - addonService: The service resolving catalog items.
  - addonHost: The host address for the addon.

Returns:
  - A pointer to the newly created App instance.
*/
func NewApp(addonService AddonService, addonHost string) (*App, error) {
	return &App{
		AddonService: addonService,
		AddonHost:    addonHost,
		RequestLimit: 120,
	}, nil
}

// Router returns the addon HTTP routes with their middlewares.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(slogchi.NewWithConfig(common.Log, slogchi.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithSpanID:       true,
		WithTraceID:      true,
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{
			"Content-Type",
			"X-Requested-With",
			"Accept",
			"Accept-Language",
			"Accept-Encoding",
			"Content-Language",
			"Origin",
		},
		MaxAge: 300,
	}))

	r.Get("/manifest.json", a.ManifestHandler)
	r.Get("/connection/websocket", a.WebsocketHandler)

	r.Group(func(r chi.Router) {
		if a.RequestLimit > 0 {
			r.Use(httprate.Limit(
				a.RequestLimit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Retry-After", "60")
					w.WriteHeader(http.StatusTooManyRequests)
				}),
			))
		}
		r.Get("/meta/{type}/{id}.json", a.MetaHandler)
		r.Get("/stream/{type}/{id}.json", a.StreamHandler)
		r.Get("/extract", a.ExtractHandler)
	})

	return r
}

/*
ManifestHandler serves the manifest for the addon.

This method writes the manifest as a JSON response to the HTTP writer.
*/
func (a *App) ManifestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	common.Log.DebugContext(ctx, "ManifestHandler")

	w.Header().Set("Content-Type", "application/json")

	b, _ := json.Marshal(manifest)
	_, err := w.Write(b)
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to write response", "err", err)
		span.RecordError(err)
		return
	}

}

/*
MetaHandler handles requests for the meta of a catalog item.

This method validates the request parameters, extracts the item through the addon service, and writes it as a JSON response.
*/
func (a *App) MetaHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	common.Log.DebugContext(ctx, "MetaHandler")

	paramsType := chi.URLParam(r, "type")
	if err := common.ValidateType(paramsType); err != nil {
		common.Log.WarnContext(ctx, "Failed to common.ValidateType", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("params.type", paramsType))

	paramsID, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		common.Log.WarnContext(ctx, "Failed to url.PathUnescape", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("param.id", paramsID))

	if err = common.ValidateMetaID(paramsID); err != nil {
		common.Log.WarnContext(ctx, "Failed to common.ValidateMetaID", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	meta, err := a.AddonService.GetMeta(ctx, strings.TrimPrefix(paramsID, common.IDPrefix))
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to AddonService.GetMeta", "err", err)
		span.RecordError(err)
		w.WriteHeader(errorStatus(err))
		return
	}

	writeJSON(w, r, stremio.MetaResponse{Meta: *meta}, "public, max-age=86400")
}

/*
StreamHandler handles requests for the streams of a catalog item segment.

This method validates the video id, resolves the segment formats, and writes them as a JSON response.
*/
func (a *App) StreamHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	common.Log.DebugContext(ctx, "StreamHandler")

	paramsType := chi.URLParam(r, "type")
	if err := common.ValidateType(paramsType); err != nil {
		common.Log.WarnContext(ctx, "Failed to common.ValidateType", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("params.type", paramsType))

	paramsID, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		common.Log.WarnContext(ctx, "Failed to url.PathUnescape", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("param.id", paramsID))

	if err = common.ValidateVideoID(paramsID); err != nil {
		common.Log.WarnContext(ctx, "Failed to common.ValidateVideoID", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	fhclID, index := parseVideoID(paramsID)

	streams, err := a.AddonService.GetStreams(ctx, fhclID, index)
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to AddonService.GetStreams", "err", err)
		span.RecordError(err)
		w.WriteHeader(errorStatus(err))
		return
	}

	writeJSON(w, r, stremio.StreamsResponse{Streams: streams}, "public, max-age=3600")
}

/*
ExtractHandler handles requests for the raw record of an item link.

The item link is read from the url query parameter.
*/
func (a *App) ExtractHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	common.Log.DebugContext(ctx, "ExtractHandler")

	itemURL := r.URL.Query().Get("url")
	span.SetAttributes(attribute.String("params.url", itemURL))

	fhclID, ok := urn3.MatchURL(itemURL)
	if !ok {
		err := fmt.Errorf("%w: %q", urn3.ErrUnsupportedURL, itemURL)
		common.Log.WarnContext(ctx, "Failed to urn3.MatchURL", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	record, err := a.AddonService.GetRecord(ctx, fhclID)
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to AddonService.GetRecord", "err", err)
		span.RecordError(err)
		w.WriteHeader(errorStatus(err))
		return
	}

	writeJSON(w, r, record, "public, max-age=3600")
}

// WebsocketHandler handles WebSocket connections
func (a *App) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	common.Log.DebugContext(ctx, "WebsocketHandler")

	a.AddonService.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any, cacheControl string) {
	ctx := r.Context()

	w.Header().Set("CDN-Cache-Control", cacheControl)
	w.Header().Set("Cache-Control", cacheControl)
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		common.Log.ErrorContext(ctx, "Failed to write response", "err", err)
		trace.SpanFromContext(ctx).RecordError(err)
	}
}

// errorStatus maps service errors to response status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, urn3.ErrNotFound), errors.Is(err, ErrSegmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, urn3.ErrUnsupportedURL):
		return http.StatusBadRequest
	case errors.Is(err, urn3.ErrTooManyRedirects), errors.Is(err, urn3.ErrRedirectDeadEnd):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// parseVideoID splits a video id into its FHCL id and segment index.
func parseVideoID(id string) (string, string) {
	rest := strings.TrimPrefix(id, common.IDPrefix)
	fhclID, index, _ := strings.Cut(rest, ":")
	if _, err := strconv.Atoi(fhclID); err != nil {
		return "", ""
	}
	return fhclID, index
}
