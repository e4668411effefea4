package internal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ogero/stremio-urn3/internal/cache"
	"github.com/ogero/stremio-urn3/pkg/stremio"
	"github.com/ogero/stremio-urn3/pkg/urn3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	mu      sync.Mutex
	records map[string]*urn3.Record
	calls   []string
}

func (f *fakeExtractor) Extract(_ context.Context, itemURL string) (*urn3.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, itemURL)
	r, ok := f.records[itemURL]
	if !ok {
		return nil, urn3.ErrNotFound
	}
	return r, nil
}

type fakeLoki struct {
	extractions, streams int
	err                  error
}

func (f *fakeLoki) GetExtractions24(context.Context) (int, error) { return f.extractions, f.err }
func (f *fakeLoki) GetStreams24(context.Context) (int, error) { return f.streams, f.err }

func testRecord() *urn3.Record {
	return &urn3.Record{
		ID:          "460210620",
		URL:         "https://mps.lib.harvard.edu/sds/audio/460210620",
		OriginalURL: "https://nrs.harvard.edu/urn-3:FHCL:10876709",
		Extractor:   urn3.ExtractorName,
		Type:        urn3.TypePlaylist,
		Title:       "Interview with Sanjabi: Tape 01",
		Description: []string{"Interviewee: Sanjabi, Karim", "Interviewer: Lajevardi, Habib"},
		Categories:  []string{"Iran--History"},
		Language:    "Persian",
		ReleaseDate: "1983",
		UploadDate:  "20181217",
		Entries: []urn3.Segment{
			{
				ID:            "460210620-0",
				PlaylistIndex: "0",
				Title:         "Interview with Sanjabi: Tape 01",
				Formats: []urn3.Format{
					{FormatID: "196", URL: "https://mps.lib.harvard.edu/a/chunklist.m3u8", TBR: 196.608},
					{FormatID: "hls", URL: "https://mps.lib.harvard.edu/a/playlist.m3u8"},
					{FormatID: "drm", URL: "https://mps.lib.harvard.edu/a/drm.m3u8", HasDRM: true},
				},
				Subtitles: map[string][]urn3.Subtitle{
					"Persian": {{URL: "https://mps.lib.harvard.edu/a/fa.vtt", Ext: "vtt"}},
					"English": {{URL: "https://mps.lib.harvard.edu/a/en.vtt", Ext: "vtt"}},
				},
			},
			{
				ID:            "460210620-1",
				PlaylistIndex: "1",
				Title:         "Interview with Sanjabi: Tape 01",
				Thumbnail:     "https://mps.lib.harvard.edu/b.jpg",
			},
		},
	}
}

func newTestService(t *testing.T, extractor urn3.Extractor, l *fakeLoki) *addonService {
	t.Helper()

	c, err := cache.Open(cache.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	svc, err := NewAddonService("stats", extractor, c, l)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	return svc.(*addonService)
}

func TestAddonService_GetRecord(t *testing.T) {
	extractor := &fakeExtractor{records: map[string]*urn3.Record{
		urn3.ItemURL("10876709"): testRecord(),
	}}
	svc := newTestService(t, extractor, &fakeLoki{})

	record, err := svc.GetRecord(context.Background(), "10876709")
	require.NoError(t, err)
	assert.Equal(t, testRecord(), record)

	// served from the cache
	record, err = svc.GetRecord(context.Background(), "10876709")
	require.NoError(t, err)
	assert.Equal(t, "460210620", record.ID)
	assert.Equal(t, []string{urn3.ItemURL("10876709")}, extractor.calls)

	_, err = svc.GetRecord(context.Background(), "1")
	assert.ErrorIs(t, err, urn3.ErrNotFound)
	_, err = svc.GetRecord(context.Background(), "1")
	assert.ErrorIs(t, err, urn3.ErrNotFound)
	assert.Len(t, extractor.calls, 3)
}

func TestAddonService_GetMeta(t *testing.T) {
	extractor := &fakeExtractor{records: map[string]*urn3.Record{
		urn3.ItemURL("10876709"): testRecord(),
	}}
	svc := newTestService(t, extractor, &fakeLoki{})

	meta, err := svc.GetMeta(context.Background(), "10876709")
	require.NoError(t, err)

	assert.Equal(t, &stremio.Meta{
		ID:          "urn3:10876709",
		Type:        "series",
		Name:        "Interview with Sanjabi: Tape 01",
		Description: "Interviewee: Sanjabi, Karim\nInterviewer: Lajevardi, Habib",
		Genres:      []string{"Iran--History"},
		ReleaseInfo: "1983",
		Poster:      "https://mps.lib.harvard.edu/b.jpg",
		Language:    "Persian",
		Website:     "https://nrs.harvard.edu/urn-3:FHCL:10876709",
		Videos: []stremio.Video{
			{ID: "urn3:10876709:0", Title: "Interview with Sanjabi: Tape 01", Released: "2018-12-17T00:00:00Z", Episode: 1},
			{ID: "urn3:10876709:1", Title: "Interview with Sanjabi: Tape 01", Released: "2018-12-17T00:00:00Z", Thumbnail: "https://mps.lib.harvard.edu/b.jpg", Episode: 2},
		},
	}, meta)

	assert.Eventually(t, func() bool {
		svc.statsMutex.Lock()
		defer svc.statsMutex.Unlock()
		return svc.stats.TitleInstant == "Interview with Sanjabi: Tape 01"
	}, time.Second, 10*time.Millisecond)
}

func TestRecordMeta_SingleSegment(t *testing.T) {
	r := testRecord()
	r.Entries = r.Entries[:1]
	r.UploadDate = ""

	meta := recordMeta("10876709", r)
	assert.Equal(t, "movie", meta.Type)
	require.Len(t, meta.Videos, 1)
	assert.Empty(t, meta.Videos[0].Released)
	assert.Empty(t, meta.Poster)
}

func TestAddonService_GetStreams(t *testing.T) {
	extractor := &fakeExtractor{records: map[string]*urn3.Record{
		urn3.ItemURL("10876709"): testRecord(),
	}}
	svc := newTestService(t, extractor, &fakeLoki{})

	streams, err := svc.GetStreams(context.Background(), "10876709", "0")
	require.NoError(t, err)
	subtitles := []stremio.Subtitle{
		{ID: "460210620-0-English-0", Lang: "English", URL: "https://mps.lib.harvard.edu/a/en.vtt"},
		{ID: "460210620-0-Persian-0", Lang: "Persian", URL: "https://mps.lib.harvard.edu/a/fa.vtt"},
	}
	assert.Equal(t, []stremio.Stream{
		{URL: "https://mps.lib.harvard.edu/a/chunklist.m3u8", Name: "URN-3", Title: "Interview with Sanjabi: Tape 01 · 196 kbps", Subtitles: subtitles},
		{URL: "https://mps.lib.harvard.edu/a/playlist.m3u8", Name: "URN-3", Title: "Interview with Sanjabi: Tape 01", Subtitles: subtitles},
	}, streams)

	streams, err = svc.GetStreams(context.Background(), "10876709", "1")
	require.NoError(t, err)
	assert.Empty(t, streams)

	_, err = svc.GetStreams(context.Background(), "10876709", "7")
	assert.ErrorIs(t, err, ErrSegmentNotFound)

	_, err = svc.GetStreams(context.Background(), "1", "0")
	assert.ErrorIs(t, err, urn3.ErrNotFound)
}

func TestAddonService_BroadcastStats(t *testing.T) {
	svc := newTestService(t, &fakeExtractor{}, &fakeLoki{})

	require.NoError(t, svc.BroadcastStats(func(stats *Stats) error {
		stats.StreamsCount24 = 3
		return nil
	}))
	assert.Equal(t, 3, svc.stats.StreamsCount24)

	errBoom := errors.New("boom")
	err := svc.BroadcastStats(func(stats *Stats) error { return errBoom })
	assert.ErrorIs(t, err, errBoom)
}

func TestAddonService_StartPollingStats(t *testing.T) {
	svc := newTestService(t, &fakeExtractor{}, &fakeLoki{extractions: 12, streams: 34})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartPollingStats(ctx, time.Hour)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		svc.statsMutex.Lock()
		defer svc.statsMutex.Unlock()
		return svc.stats.ExtractionsCount24 == 12 && svc.stats.StreamsCount24 == 34
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartPollingStats did not return after cancel")
	}
}

func TestAddonService_PollStatsKeepsCountsOnError(t *testing.T) {
	l := &fakeLoki{extractions: 5, streams: 6}
	svc := newTestService(t, &fakeExtractor{}, l)

	svc.pollStats(context.Background())
	l.extractions, l.streams, l.err = 0, 0, errors.New("loki down")
	svc.pollStats(context.Background())

	assert.Equal(t, 5, svc.stats.ExtractionsCount24)
	assert.Equal(t, 6, svc.stats.StreamsCount24)
}
