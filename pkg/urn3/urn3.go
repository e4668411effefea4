// Package urn3 extracts playable records from Harvard Library digital collection items
// addressed by their URN-3 persistent links.
package urn3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ogero/stremio-urn3/pkg/transport"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	// ExtractorName is reported in Record.Extractor.
	ExtractorName = "URN3"
	// DefaultCatalogBaseURL is the LibraryCloud API root.
	DefaultCatalogBaseURL = "https://api.lib.harvard.edu"
	// DefaultMediaHost is the host every redirect chain must end at.
	DefaultMediaHost = "mps.lib.harvard.edu"
	// DefaultMaxRedirects bounds the redirect chain.
	DefaultMaxRedirects = 10
	// ItemURLPrefix prefixes the numeric FHCL id of an item link.
	ItemURLPrefix = "https://nrs.harvard.edu/urn-3:FHCL:"
)

var (
	// ErrUnsupportedURL is returned for URLs that are not item links.
	ErrUnsupportedURL = errors.New("unsupported url")
	// ErrNotFound is returned when the catalog has no record for the item.
	ErrNotFound = errors.New("item not found")
)

var itemURLRE = regexp.MustCompile(`^https?://nrs\.harvard\.edu/urn-3:FHCL:([0-9]+)`)

// MatchURL reports whether itemURL is an item link and returns its numeric FHCL id.
func MatchURL(itemURL string) (string, bool) {
	m := itemURLRE.FindStringSubmatch(itemURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ItemURL returns the item link of a numeric FHCL id.
func ItemURL(fhclID string) string {
	return ItemURLPrefix + fhclID
}

// Extractor defines the methods to extract items.
type Extractor interface {
	// Extract builds the record of the item at itemURL.
	Extract(ctx context.Context, itemURL string) (*Record, error)
}

// Option configures an Extractor.
type Option func(*urn3)

// WithHTTPClient sets the client used for every request. Redirects are still probed one hop at a time.
func WithHTTPClient(c *http.Client) Option {
	return func(u *urn3) {
		u.httpClient = c
	}
}

// WithCatalogBaseURL overrides DefaultCatalogBaseURL.
func WithCatalogBaseURL(baseURL string) Option {
	return func(u *urn3) {
		u.catalogBaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithMediaHost overrides DefaultMediaHost.
func WithMediaHost(host string) Option {
	return func(u *urn3) {
		u.mediaHost = host
	}
}

// WithMaxRedirects overrides DefaultMaxRedirects.
func WithMaxRedirects(n int) Option {
	return func(u *urn3) {
		if n > 0 {
			u.maxRedirects = n
		}
	}
}

// WithTimeout sets the timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(u *urn3) {
		u.timeout = d
	}
}

// WithRateLimit limits the outbound request rate of the default client.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(u *urn3) {
		u.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithLogger sets the logger. It defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(u *urn3) {
		u.logger = l
	}
}

// NewExtractor creates a new instance of the URN-3 extractor.
func NewExtractor(opts ...Option) Extractor {
	u := &urn3{
		catalogBaseURL: DefaultCatalogBaseURL,
		mediaHost:      DefaultMediaHost,
		maxRedirects:   DefaultMaxRedirects,
		timeout:        time.Second * 10,
	}
	for _, opt := range opts {
		opt(u)
	}

	if u.logger == nil {
		u.logger = slog.Default()
	}

	if u.httpClient == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConns = 100
		t.MaxConnsPerHost = 100
		t.MaxIdleConnsPerHost = 100

		var rt http.RoundTripper = transport.NewModifyHeadersRoundTripper(t,
			transport.WithAcceptLanguage("en-US,en;q=0.9"),
			transport.WithUserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/107.0.0.0 Safari/537.36"),
		)
		if u.limiter != nil {
			rt = transport.NewRateLimitRoundTripper(rt, u.limiter)
		}

		u.httpClient = &http.Client{
			Timeout:   u.timeout,
			Transport: otelhttp.NewTransport(rt),
		}
	}

	probe := *u.httpClient
	probe.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	u.probeClient = &probe

	return u
}

type urn3 struct {
	httpClient     *http.Client
	probeClient    *http.Client
	catalogBaseURL string
	mediaHost      string
	maxRedirects   int
	timeout        time.Duration
	limiter        *rate.Limiter
	logger         *slog.Logger
}

// Extract builds the record of the item at itemURL.
func (u *urn3) Extract(ctx context.Context, itemURL string) (*Record, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "urn3.Extractor.Extract")
	defer span.End()

	fhclID, ok := MatchURL(itemURL)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, itemURL)
	}
	span.SetAttributes(attribute.String("urn3.fhcl-id", fhclID))

	catalog, err := u.fetchCatalog(ctx, itemURL[strings.LastIndex(itemURL, "/")+1:])
	if err != nil {
		return nil, err
	}

	record := &Record{
		ID:          fhclID,
		URL:         itemURL,
		OriginalURL: itemURL,
		Extractor:   ExtractorName,
		Description: []string{},
	}

	resolved := 0
	for i := range catalog.Items.Mods {
		mods := &catalog.Items.Mods[i]
		if !mods.HasName() {
			continue
		}

		record.describe(mods)

		if resolved > 0 {
			u.logger.WarnContext(ctx, "Catalog returned several qualifying records, last one wins",
				"fhcl_id", fhclID, "record", i)
		}
		if err := u.resolveSegments(ctx, record); err != nil {
			return nil, err
		}
		resolved++
	}

	span.SetAttributes(
		attribute.String("urn3.id", record.ID),
		attribute.String("urn3.type", record.Type),
		attribute.Int("urn3.entries", len(record.Entries)),
	)

	return record, nil
}

// fetchCatalog queries the catalog for the given urn.
func (u *urn3) fetchCatalog(ctx context.Context, urn string) (*CatalogResponse, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "urn3.Extractor.fetchCatalog")
	defer span.End()

	q := url.Values{}
	q.Set("urn", urn)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.catalogBaseURL+"/v2/items.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	u.logger.DebugContext(ctx, "Fetching metadata", "urn", urn)

	res, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to http.Client.Do: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, urn)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invalid status code: %d", res.StatusCode)
	}

	catalog := &CatalogResponse{}
	err = json.NewDecoder(limitBody(res.Body, maxCatalogSize)).Decode(catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to json.NewDecoder.Decode: %w", err)
	}

	if catalog.Items == nil || len(catalog.Items.Mods) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, urn)
	}
	span.SetAttributes(attribute.Int("urn3.catalog.mods", len(catalog.Items.Mods)))

	return catalog, nil
}
