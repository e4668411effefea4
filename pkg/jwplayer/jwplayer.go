// Package jwplayer extracts the media description that JW Player pages embed in their
// jwplayer(...).setup({...}) script calls.
package jwplayer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Data types.
const (
	TypeVideo    = "video"
	TypePlaylist = "playlist"
)

// Source types.
const (
	SourceHLS  = "hls"
	SourceDASH = "dash"
	SourceMP4  = "mp4"
)

// ErrMissingTitle is returned when a title is required and a playlist item has none.
var ErrMissingTitle = errors.New("playlist item has no title")

// Data is the normalized player setup.
type Data struct {
	// Type is TypeVideo for a single item and TypePlaylist otherwise.
	Type    string
	Entries []Entry
}

// Entry is a playlist item.
type Entry struct {
	ID          string
	Title       string
	Description string
	Thumbnail   string
	Duration    float64
	Sources     []Source
	Tracks      []Track
}

// Source is a playable file of an entry.
type Source struct {
	File    string
	Type    string
	Label   string
	Width   int
	Height  int
	Bitrate int
}

// Track is a side file of an entry, such as captions or thumbnails.
type Track struct {
	File  string
	Kind  string
	Label string
}

/*
Parse extracts the player setup embedded in page.

Parameters:
  - page: The HTML document.
  - pageURL: The URL the document was fetched from, used to resolve relative files.
  - videoID: The id given to every entry. Entries fall back to their mediaid when empty.
  - requireTitle: Whether an entry without title is an error.

Returns:
  - The setup data, or nil without error when the page embeds no player setup.
*/
func Parse(page, pageURL, videoID string, requireTitle bool) (*Data, error) {
	literal, ok := Find(page)
	if !ok {
		return nil, nil
	}

	raw, err := ToJSON(literal)
	if err != nil {
		return nil, fmt.Errorf("failed to jwplayer.ToJSON: %w", err)
	}

	var cfg setupConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("failed to json.Unmarshal: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to url.Parse: %w", err)
	}

	items, err := cfg.items()
	if err != nil {
		return nil, err
	}

	data := &Data{Type: TypePlaylist}
	for _, item := range items {
		entry, err := item.entry(base, videoID, requireTitle)
		if err != nil {
			return nil, err
		}
		if len(entry.Sources) == 0 {
			continue
		}
		data.Entries = append(data.Entries, *entry)
	}
	if len(data.Entries) == 1 {
		data.Type = TypeVideo
	}

	return data, nil
}

type setupConfig struct {
	playlistItem
	Playlist json.RawMessage `json:"playlist"`
}

func (c *setupConfig) items() ([]playlistItem, error) {
	p := bytes.TrimSpace(c.Playlist)
	switch {
	case len(p) == 0 || bytes.Equal(p, []byte("null")):
		// the setup itself describes the only item
		return []playlistItem{c.playlistItem}, nil
	case p[0] == '"':
		return nil, fmt.Errorf("remote playlist feeds are not supported")
	}

	var items list[playlistItem]
	if err := json.Unmarshal(p, &items); err != nil {
		return nil, fmt.Errorf("failed to json.Unmarshal playlist: %w", err)
	}
	return items, nil
}

type playlistItem struct {
	MediaID     flexString         `json:"mediaid"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Image       string             `json:"image"`
	Duration    flexFloat          `json:"duration"`
	File        string             `json:"file"`
	Type        string             `json:"type"`
	Sources     list[sourceConfig] `json:"sources"`
	Tracks      list[trackConfig]  `json:"tracks"`
}

type sourceConfig struct {
	File    string  `json:"file"`
	Type    string  `json:"type"`
	Label   string  `json:"label"`
	Width   flexInt `json:"width"`
	Height  flexInt `json:"height"`
	Bitrate flexInt `json:"bitrate"`
}

type trackConfig struct {
	File  string `json:"file"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
}

func (p *playlistItem) entry(base *url.URL, videoID string, requireTitle bool) (*Entry, error) {
	id := videoID
	if id == "" {
		id = string(p.MediaID)
	}

	title := html.UnescapeString(p.Title)
	if requireTitle && title == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingTitle, id)
	}

	sources := p.Sources
	if len(sources) == 0 && p.File != "" {
		sources = list[sourceConfig]{{File: p.File, Type: p.Type}}
	}

	entry := &Entry{
		ID:          id,
		Title:       title,
		Description: html.UnescapeString(p.Description),
		Thumbnail:   resolve(base, p.Image),
		Duration:    float64(p.Duration),
	}
	for _, s := range sources {
		if s.File == "" {
			continue
		}
		file := resolve(base, s.File)
		entry.Sources = append(entry.Sources, Source{
			File:    file,
			Type:    sourceType(s.Type, file),
			Label:   s.Label,
			Width:   int(s.Width),
			Height:  int(s.Height),
			Bitrate: int(s.Bitrate),
		})
	}
	for _, t := range p.Tracks {
		if t.File == "" {
			continue
		}
		entry.Tracks = append(entry.Tracks, Track{
			File:  resolve(base, t.File),
			Kind:  t.Kind,
			Label: t.Label,
		})
	}

	return entry, nil
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func sourceType(declared, file string) string {
	switch strings.ToLower(declared) {
	case "hls", "m3u8", "application/x-mpegurl", "application/vnd.apple.mpegurl":
		return SourceHLS
	case "dash", "mpd", "application/dash+xml":
		return SourceDASH
	case "mp4", "video/mp4":
		return SourceMP4
	}

	p := file
	if u, err := url.Parse(file); err == nil {
		p = u.Path
	}
	switch ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")); ext {
	case "m3u8":
		return SourceHLS
	case "mpd":
		return SourceDASH
	case "":
		return strings.ToLower(declared)
	default:
		return ext
	}
}

// list decodes a value that may be a single element or a list of them.
type list[T any] []T

func (l *list[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] == '[' {
		var items []T
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var item T
	if err := json.Unmarshal(b, &item); err != nil {
		return err
	}
	*l = list[T]{item}
	return nil
}

// flexString accepts strings and numbers.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	*s = flexString(b)
	return nil
}

// flexInt accepts numbers and numeric strings. Anything else decodes to zero.
type flexInt int

func (i *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		*i = 0
		return nil
	}
	*i = flexInt(v)
	return nil
}

// flexFloat accepts numbers and numeric strings. Anything else decodes to zero.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	v, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}
