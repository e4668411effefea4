package urn3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/wlynxg/chardet"
	"github.com/wlynxg/chardet/consts"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const (
	maxCatalogSize  = 8 << 20
	maxPageSize     = 4 << 20
	maxManifestSize = 1 << 20
)

var (
	// ErrTooManyRedirects is returned when the media host is not reached within the hop limit.
	ErrTooManyRedirects = errors.New("too many redirects")
	// ErrRedirectDeadEnd is returned when a redirect chain stops on a host other than the media host.
	ErrRedirectDeadEnd = errors.New("redirect chain did not reach the media host")
	// ErrResponseTooLarge is returned when a response body exceeds its size limit.
	ErrResponseTooLarge = errors.New("response too large")
)

// followRedirect probes startURL and every location it redirects to, one hop per request,
// until the URL is on the media host.
func (u *urn3) followRedirect(ctx context.Context, startURL string) (string, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "urn3.Extractor.followRedirect")
	defer span.End()

	current := startURL
	for hops := 0; ; hops++ {
		target, err := url.Parse(current)
		if err != nil {
			return "", fmt.Errorf("failed to url.Parse: %w", err)
		}

		if target.Host == u.mediaHost {
			span.SetAttributes(attribute.Int("urn3.redirect.hops", hops))
			return current, nil
		}

		if hops >= u.maxRedirects {
			return "", fmt.Errorf("%w: %d hops from %s", ErrTooManyRedirects, hops, startURL)
		}

		u.logger.DebugContext(ctx, "Resolving final URL", "url", current)

		current, err = u.probe(ctx, target)
		if err != nil {
			return "", err
		}
	}
}

// probe issues a HEAD request to target without following redirects and returns where it points to.
func (u *urn3) probe(ctx context.Context, target *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to http.NewRequestWithContext: %w", err)
	}

	res, err := u.probeClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to http.Client.Do: %w", err)
	}
	_ = res.Body.Close()

	switch {
	case res.StatusCode >= 300 && res.StatusCode < 400:
		location := res.Header.Get("Location")
		if location == "" {
			return "", fmt.Errorf("%w: %s answered %d without location", ErrRedirectDeadEnd, target, res.StatusCode)
		}
		next, err := url.Parse(location)
		if err != nil {
			return "", fmt.Errorf("failed to url.Parse location: %w", err)
		}
		return target.ResolveReference(next).String(), nil
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return "", fmt.Errorf("%w: %s answered %d", ErrRedirectDeadEnd, target, res.StatusCode)
	default:
		return "", fmt.Errorf("invalid status code: %d", res.StatusCode)
	}
}

// fetchText downloads the document at textURL and returns it decoded to UTF-8.
func (u *urn3) fetchText(ctx context.Context, textURL string, limit int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, textURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to http.NewRequestWithContext: %w", err)
	}

	res, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to http.Client.Do: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("invalid status code: %d", res.StatusCode)
	}

	data, err := io.ReadAll(limitBody(res.Body, limit))
	if err != nil {
		return "", fmt.Errorf("failed to io.ReadAll: %w", err)
	}

	return decodeText(data)
}

// decodeText converts legacy single byte documents to UTF-8. Documents that are
// not valid UTF-8 and not detected as ISO-8859-1 are read as Windows-1252.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	decoder := charmap.Windows1252.NewDecoder()
	if chardet.Detect(data).Encoding == consts.ISO88591 {
		decoder = charmap.ISO8859_1.NewDecoder()
	}

	b, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), decoder))
	if err != nil {
		return "", fmt.Errorf("failed to decode text: %w", err)
	}
	return string(b), nil
}

type limitedBody struct {
	r io.Reader
	n int64
}

// limitBody returns a Reader that fails with ErrResponseTooLarge once more than n bytes were read from r.
func limitBody(r io.Reader, n int64) io.Reader {
	return &limitedBody{r: r, n: n}
}

func (l *limitedBody) Read(p []byte) (int, error) {
	if l.n < 0 {
		return 0, ErrResponseTooLarge
	}
	// read one byte past the limit to tell a body of exactly n bytes from a larger one
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	if l.n < 0 {
		return n - 1, ErrResponseTooLarge
	}
	return n, err
}
