package urn3

// Record types reported in Record.Type.
const (
	TypeAudio    = "audio"
	TypeVideo    = "video"
	TypePlaylist = "playlist"
)

// Series pairs the title preceding a part label with the label itself.
type Series struct {
	Title string `json:"title,omitempty"`
	Part  string `json:"part,omitempty"`
}

// Record is the normalized metadata of a catalog item.
type Record struct {
	ID           string   `json:"id"`
	ObjectID     string   `json:"objid,omitempty"`
	URL          string   `json:"url"`
	OriginalURL  string   `json:"original_url"`
	Extractor    string   `json:"extractor"`
	Type         string   `json:"_type,omitempty"`
	Title        string   `json:"title"`
	Series       *Series  `json:"series,omitempty"`
	Description  []string `json:"description"`
	Categories   []string `json:"categories,omitempty"`
	Subjects     []string `json:"subjects,omitempty"`
	Channel      string   `json:"channel,omitempty"`
	ChannelID    string   `json:"channel_id,omitempty"`
	ChannelURL   string   `json:"channel_url,omitempty"`
	ChannelTitle string   `json:"channel_title,omitempty"`
	Language     string   `json:"language,omitempty"`
	Location     string   `json:"location,omitempty"`
	Genre        string   `json:"genre,omitempty"`
	ReleaseDate  string   `json:"release_date,omitempty"`
	// UploadDate is formatted as YYYYMMDD.
	UploadDate string    `json:"upload_date,omitempty"`
	Protocol   string    `json:"protocol,omitempty"`
	Entries    []Segment `json:"entries,omitempty"`
}

// Segment finds the entry whose playlist index is index.
func (r *Record) Segment(index string) (*Segment, bool) {
	for i := range r.Entries {
		if r.Entries[i].PlaylistIndex == index {
			return &r.Entries[i], true
		}
	}
	return nil, false
}

// Segment is one playable part of a record.
type Segment struct {
	// ID is "{PlaylistID}-{PlaylistIndex}".
	ID            string   `json:"id"`
	PlaylistIndex string   `json:"playlist_index"`
	PlaylistID    string   `json:"playlist_id"`
	PlaylistTitle string   `json:"playlist_title"`
	Title         string   `json:"title"`
	Channel       string   `json:"channel,omitempty"`
	ChannelID     string   `json:"channel_id,omitempty"`
	Description   []string `json:"description"`
	Genre         string   `json:"genre,omitempty"`
	ReleaseYear   int      `json:"release_year,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	Duration      float64  `json:"duration,omitempty"`
	Formats       []Format `json:"formats"`
	// Subtitles maps a language label to its caption files.
	Subtitles map[string][]Subtitle `json:"subtitles,omitempty"`
}

// Subtitle is a caption file of a segment.
type Subtitle struct {
	URL string `json:"url"`
	Ext string `json:"ext,omitempty"`
}

// Format is a single playback variant of a segment.
type Format struct {
	FormatID    string `json:"format_id"`
	URL         string `json:"url"`
	ManifestURL string `json:"manifest_url,omitempty"`
	Ext         string `json:"ext"`
	Protocol    string `json:"protocol"`
	// TBR is the total bitrate in kbit/s.
	TBR    float64 `json:"tbr,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	Codecs string  `json:"codecs,omitempty"`
	HasDRM bool    `json:"has_drm"`
}
