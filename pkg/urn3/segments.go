package urn3

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/ogero/stremio-urn3/pkg/jwplayer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// deliveryPathPrefix precedes the manifest file name in delivery URLs.
const deliveryPathPrefix = "drs-delivery-prod/"

// resolveSegments follows the record URL to the media host and replaces the record entries
// with the segments of the player embedded there.
func (u *urn3) resolveSegments(ctx context.Context, r *Record) error {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "urn3.Extractor.resolveSegments")
	defer span.End()

	mediaURL, err := u.followRedirect(ctx, r.URL)
	if err != nil {
		return fmt.Errorf("failed to resolve final URL: %w", err)
	}
	r.URL = mediaURL

	page, err := u.fetchText(ctx, mediaURL, maxPageSize)
	if err != nil {
		return fmt.Errorf("failed to fetch player page: %w", err)
	}

	data, err := jwplayer.Parse(page, mediaURL, r.ID, false)
	if err != nil {
		return fmt.Errorf("failed to jwplayer.Parse: %w", err)
	}
	if data == nil {
		u.logger.InfoContext(ctx, "No player found", "url", mediaURL)
		return nil
	}

	releaseYear, _ := strconv.Atoi(r.UploadDate)

	r.Type = data.Type
	r.Entries = make([]Segment, 0, len(data.Entries))
	for position, entry := range data.Entries {
		formats := u.entryFormats(ctx, entry)
		if len(formats) == 0 {
			continue
		}

		index, ok := segmentIndex(formats[0].manifest(), entry.ID)
		if !ok {
			index = strconv.Itoa(position)
			u.logger.WarnContext(ctx, "Unexpected manifest URL, using playlist position", "url", formats[0].manifest(), "index", index)
		}

		r.Entries = append(r.Entries, Segment{
			ID:            entry.ID + "-" + index,
			PlaylistIndex: index,
			PlaylistID:    entry.ID,
			PlaylistTitle: r.Title,
			Title:         r.Title,
			Channel:       r.Channel,
			ChannelID:     r.ChannelID,
			Description:   slices.Clone(r.Description),
			Genre:         r.Genre,
			ReleaseYear:   releaseYear,
			Thumbnail:     entry.Thumbnail,
			Duration:      entry.Duration,
			Formats:       formats,
			Subtitles:     entrySubtitles(entry.Tracks),
		})
		r.Protocol = formats[0].Protocol
	}
	span.SetAttributes(attribute.Int("urn3.segments", len(r.Entries)))

	return nil
}

// segmentIndex derives the index of a segment from its manifest file name: "{id}.smil..." is
// segment 0 and "{id}_{n}.smil..." is segment n.
func segmentIndex(manifestURL, id string) (string, bool) {
	_, name, ok := strings.Cut(manifestURL, deliveryPathPrefix)
	if !ok || name == "" {
		return "", false
	}
	name, _, _ = strings.Cut(name, ".")
	tokens := strings.Split(name, "_")
	last := tokens[len(tokens)-1]
	if last == id {
		return "0", true
	}
	return last, true
}

func (f *Format) manifest() string {
	if f.ManifestURL != "" {
		return f.ManifestURL
	}
	return f.URL
}

// entryFormats lists the formats of every source of a player entry.
func (u *urn3) entryFormats(ctx context.Context, entry jwplayer.Entry) []Format {
	var formats []Format
	for _, source := range entry.Sources {
		switch source.Type {
		case jwplayer.SourceHLS:
			formats = append(formats, u.hlsFormats(ctx, source.File)...)
		default:
			formats = append(formats, fileFormat(source, len(formats)))
		}
	}
	return formats
}

// hlsFormats expands an HLS manifest into its variants. A manifest that cannot be fetched or
// parsed is kept as a single format.
func (u *urn3) hlsFormats(ctx context.Context, manifestURL string) []Format {
	fallback := []Format{{
		FormatID:    "hls",
		URL:         manifestURL,
		ManifestURL: manifestURL,
		Ext:         extMP4,
		Protocol:    protocolM3U8Native,
	}}

	content, err := u.fetchText(ctx, manifestURL, maxManifestSize)
	if err != nil {
		u.logger.WarnContext(ctx, "Failed to fetch HLS manifest", "url", manifestURL, "err", err)
		return fallback
	}

	formats := parseMasterPlaylist(content, manifestURL)
	if len(formats) == 0 {
		u.logger.WarnContext(ctx, "Failed to parse HLS manifest", "url", manifestURL)
		return fallback
	}

	return formats
}

// entrySubtitles groups the caption tracks of a player entry by label. Unlabeled tracks are
// filed under "en".
func entrySubtitles(tracks []jwplayer.Track) map[string][]Subtitle {
	var subtitles map[string][]Subtitle
	for _, t := range tracks {
		switch strings.ToLower(t.Kind) {
		case "captions", "subtitles":
		default:
			continue
		}
		lang := t.Label
		if lang == "" {
			lang = "en"
		}
		if subtitles == nil {
			subtitles = make(map[string][]Subtitle)
		}
		subtitles[lang] = append(subtitles[lang], Subtitle{URL: t.File, Ext: fileExt(t.File)})
	}
	return subtitles
}

func fileExt(file string) string {
	u, err := url.Parse(file)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(path.Ext(u.Path), ".")
}

func fileFormat(source jwplayer.Source, position int) Format {
	f := Format{
		FormatID: source.Label,
		URL:      source.File,
		Ext:      source.Type,
		Protocol: "https",
		Width:    source.Width,
		Height:   source.Height,
	}
	if source.Bitrate > 0 {
		f.TBR = float64(source.Bitrate) / 1000
	}
	if u, err := url.Parse(source.File); err == nil {
		if u.Scheme != "" {
			f.Protocol = u.Scheme
		}
		if ext := strings.TrimPrefix(path.Ext(u.Path), "."); ext != "" {
			f.Ext = ext
		}
	}
	if source.Type == jwplayer.SourceDASH {
		f.Protocol = "http_dash_segments"
	}
	if f.FormatID == "" {
		f.FormatID = strconv.Itoa(position)
	}
	return f
}
