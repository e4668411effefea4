package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/ogero/stremio-urn3/internal/cache"
	"github.com/ogero/stremio-urn3/internal/common"
	"github.com/ogero/stremio-urn3/internal/loki"
	"github.com/ogero/stremio-urn3/pkg/stremio"
	"github.com/ogero/stremio-urn3/pkg/urn3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrSegmentNotFound is returned when a record has no segment with the requested index.
var ErrSegmentNotFound = errors.New("segment not found")

const (
	recordCacheKeyPrefix = "urn3.record"
	recordCacheTTL       = 24 * time.Hour

	streamName = "URN-3"
)

// Stats represents statistical data including extraction and stream counts in the last 24 hours and instant title information.
type Stats struct {
	// ExtractionsCount24 represents the number of record extractions requested in the last 24 hours.
	ExtractionsCount24 int `json:"extractionsCount24"`
	// StreamsCount24 represents the number of stream lookups within the last 24 hours.
	StreamsCount24 int `json:"streamsCount24"`
	// TitleInstant holds the title of the last requested record.
	TitleInstant string `json:"titleInstant"`
}

// AddonService defines methods for retrieving catalog items as Stremio metas and streams.
type AddonService interface {
	// Handler handles incoming HTTP requests via a websocket handler
	http.Handler
	// GetRecord retrieves the extracted record of the item with the given numeric FHCL id.
	GetRecord(ctx context.Context, fhclID string) (*urn3.Record, error)
	// GetMeta retrieves the item with the given numeric FHCL id as a Stremio meta, one video per segment.
	GetMeta(ctx context.Context, fhclID string) (*stremio.Meta, error)
	// GetStreams retrieves one stream per format of the segment at index of the given item.
	GetStreams(ctx context.Context, fhclID, index string) ([]stremio.Stream, error)
	// BroadcastStats updates and publishes statistical data to a websocket channel.
	// Accepts a function to modify stats and returns an error if updating or publishing fails.
	BroadcastStats(statsUpdater func(stats *Stats) error) error
	// StartPollingStats begins the periodic fetching and broadcasting of statistical data at the specified interval.
	// It blocks until ctx is done.
	StartPollingStats(ctx context.Context, interval time.Duration)
	// Shutdown stops the websocket node.
	Shutdown(ctx context.Context) error
}

type addonService struct {
	statsWebsocketChannel string
	extractor             urn3.Extractor
	cache                 *cache.Cache
	loki                  loki.Loki

	node             *centrifuge.Node
	websocketHandler *centrifuge.WebsocketHandler
	statsMutex       *sync.Mutex
	stats            Stats
}

// NewAddonService creates a new instance of AddonService backed by the given extractor, cache and Loki clients.
func NewAddonService(statsWebsocketChannel string, extractor urn3.Extractor, c *cache.Cache, loki loki.Loki) (AddonService, error) {
	svc := &addonService{
		statsWebsocketChannel: statsWebsocketChannel,
		extractor:             extractor,
		cache:                 c,
		loki:                  loki,

		statsMutex: &sync.Mutex{},
	}

	node, err := centrifuge.New(centrifuge.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to centrifuge.New: %w", err)
	}
	svc.node = node

	node.OnConnecting(func(ctx context.Context, e centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
		return centrifuge.ConnectReply{}, nil
	})

	node.OnConnect(func(client *centrifuge.Client) {
		client.OnSubscribe(func(e centrifuge.SubscribeEvent, cb centrifuge.SubscribeCallback) {
			if e.Channel != statsWebsocketChannel {
				cb(centrifuge.SubscribeReply{}, centrifuge.ErrorPermissionDenied)
				return
			}

			cb(centrifuge.SubscribeReply{
				Options: centrifuge.SubscribeOptions{},
			}, nil)

			go func() {
				err := svc.BroadcastStats(func(data *Stats) error { return nil })
				if err != nil {
					common.Log.Warn("Failed to internal.AddonService.BroadcastStats", "err", err)
				}
			}()
		})
	})

	if err := node.Run(); err != nil {
		return nil, fmt.Errorf("failed to centrifuge.Node.Run: %w", err)
	}

	svc.websocketHandler = centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		ReadBufferSize:     1024,
		UseWriteBufferPool: true,
	})

	return svc, nil
}

// GetRecord retrieves the extracted record of the item with the given numeric FHCL id.
// Records are cached for a day.
func (s *addonService) GetRecord(ctx context.Context, fhclID string) (*urn3.Record, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "internal.AddonService.GetRecord")
	defer span.End()

	span.SetAttributes(attribute.String("urn3.fhcl_id", fhclID))

	cacheResult := common.ResultHit
	cacheKey := fmt.Sprintf("%s : %s", recordCacheKeyPrefix, fhclID)
	record, err := cache.Memoize[urn3.Record](s.cache, cacheKey, recordCacheTTL, func() (*urn3.Record, error) {

		cacheResult = common.ResultMiss
		record, err := s.extractor.Extract(ctx, urn3.ItemURL(fhclID))
		if err != nil {
			common.ExtractionsTotalIncr(ctx, common.ResultError, "")
			return nil, fmt.Errorf("failed to urn3.Extractor.Extract: %w", err)
		}
		common.ExtractionsTotalIncr(ctx, common.ResultSuccess, record.Type)

		return record, nil
	})
	span.SetAttributes(attribute.String("cache.urn3.record.result", cacheResult))
	common.CacheGetsTotalIncr(ctx, recordCacheKeyPrefix, cacheResult)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("urn3.id", record.ID),
		attribute.String("urn3.title", record.Title),
		attribute.Int("urn3.entries", len(record.Entries)),
	)

	return record, nil
}

// GetMeta retrieves the item with the given numeric FHCL id as a Stremio meta, one video per segment.
func (s *addonService) GetMeta(ctx context.Context, fhclID string) (*stremio.Meta, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "internal.AddonService.GetMeta")
	defer span.End()

	record, err := s.GetRecord(ctx, fhclID)
	if err != nil {
		return nil, err
	}

	go func() {
		err := s.BroadcastStats(func(data *Stats) error {
			data.TitleInstant = record.Title
			return nil
		})
		if err != nil {
			common.Log.WarnContext(ctx, "Failed to internal.AddonService.BroadcastStats", "err", err)
		}
	}()

	return recordMeta(fhclID, record), nil
}

// GetStreams retrieves one stream per format of the segment at index of the given item.
func (s *addonService) GetStreams(ctx context.Context, fhclID, index string) ([]stremio.Stream, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "internal.AddonService.GetStreams")
	defer span.End()

	span.SetAttributes(attribute.String("urn3.segment.index", index))

	record, err := s.GetRecord(ctx, fhclID)
	if err != nil {
		return nil, err
	}

	segment, ok := record.Segment(index)
	if !ok {
		return nil, fmt.Errorf("%w: %s of %s", ErrSegmentNotFound, index, fhclID)
	}

	subtitles := segmentSubtitles(segment)
	streams := make([]stremio.Stream, 0, len(segment.Formats))
	for _, f := range segment.Formats {
		if f.HasDRM {
			continue
		}
		title := segment.Title
		if f.TBR > 0 {
			title = fmt.Sprintf("%s · %d kbps", segment.Title, int(f.TBR))
		}
		streams = append(streams, stremio.Stream{
			URL:       f.URL,
			Name:      streamName,
			Title:     title,
			Subtitles: subtitles,
		})
	}
	common.Log.InfoContext(ctx, "Found streams", "id", segment.ID, "count", len(streams), "subtitles", len(subtitles))

	return streams, nil
}

// segmentSubtitles lists the caption files of a segment ordered by language label.
func segmentSubtitles(segment *urn3.Segment) []stremio.Subtitle {
	var subtitles []stremio.Subtitle
	for _, lang := range slices.Sorted(maps.Keys(segment.Subtitles)) {
		for i, sub := range segment.Subtitles[lang] {
			subtitles = append(subtitles, stremio.Subtitle{
				ID:   fmt.Sprintf("%s-%s-%d", segment.ID, lang, i),
				Lang: lang,
				URL:  sub.URL,
			})
		}
	}
	return subtitles
}

// BroadcastStats updates and publishes statistical data to a websocket channel.
// Accepts a function to modify stats and returns an error if updating or publishing fails.
func (s *addonService) BroadcastStats(statsUpdater func(stats *Stats) error) error {
	stats, err := func() (Stats, error) {
		s.statsMutex.Lock()
		defer s.statsMutex.Unlock()
		err := statsUpdater(&s.stats)
		if err != nil {
			return Stats{}, err
		}
		return s.stats, nil
	}()
	if err != nil {
		return fmt.Errorf("failed to statsUpdater: %w", err)
	}

	b, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to json.Marshal: %w", err)
	}

	_, err = s.node.Publish(s.statsWebsocketChannel, b)
	if err != nil {
		return fmt.Errorf("failed to centrifuge.Node.Publish: %w", err)
	}

	return nil
}

// StartPollingStats begins the periodic fetching and broadcasting of statistical data at the specified interval.
func (s *addonService) StartPollingStats(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.pollStats(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *addonService) pollStats(ctx context.Context) {
	extractions, err := s.loki.GetExtractions24(ctx)
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to loki.Loki.GetExtractions24", "err", err)
	}
	streams, err := s.loki.GetStreams24(ctx)
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to loki.Loki.GetStreams24", "err", err)
	}
	err = s.BroadcastStats(func(stats *Stats) error {
		if extractions != 0 {
			stats.ExtractionsCount24 = extractions
		}
		if streams != 0 {
			stats.StreamsCount24 = streams
		}
		return nil
	})
	if err != nil {
		common.Log.WarnContext(ctx, "Failed to internal.AddonService.BroadcastStats", "err", err)
	}
}

// ServeHTTP handles incoming HTTP requests via a websocket handler
func (s *addonService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	newCtx := centrifuge.SetCredentials(ctx, &centrifuge.Credentials{})
	r = r.WithContext(newCtx)

	s.websocketHandler.ServeHTTP(w, r)
}

// Shutdown stops the websocket node.
func (s *addonService) Shutdown(ctx context.Context) error {
	return s.node.Shutdown(ctx)
}

// recordMeta maps a record to a Stremio meta. Items with more than one segment are series.
func recordMeta(fhclID string, r *urn3.Record) *stremio.Meta {
	metaID := common.IDPrefix + fhclID

	meta := &stremio.Meta{
		ID:          metaID,
		Type:        "movie",
		Name:        r.Title,
		Description: strings.Join(r.Description, "\n"),
		Genres:      r.Categories,
		ReleaseInfo: r.ReleaseDate,
		Language:    r.Language,
		Website:     r.OriginalURL,
	}
	if len(r.Entries) > 1 {
		meta.Type = "series"
	}

	released := ""
	if t, err := time.Parse("20060102", r.UploadDate); err == nil {
		released = t.UTC().Format(time.RFC3339)
	}

	for i, segment := range r.Entries {
		meta.Videos = append(meta.Videos, stremio.Video{
			ID:        metaID + ":" + segment.PlaylistIndex,
			Title:     segment.Title,
			Released:  released,
			Thumbnail: segment.Thumbnail,
			Episode:   i + 1,
		})
		if meta.Poster == "" {
			meta.Poster = segment.Thumbnail
		}
	}

	return meta
}
