package stremio

// Manifest represents a Stremio addon manifest
type Manifest struct {
	ID          string        `json:"id"`
	Version     string        `json:"version"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Types       []string      `json:"types"`
	IDPrefixes  []string      `json:"idPrefixes"`
	Catalogs    []CatalogItem `json:"catalogs"`
	Resources   []string      `json:"resources"`
}

// CatalogItem represents a Stremio manifest catalog item
type CatalogItem struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// MetaResponse is the body of a meta resource response
type MetaResponse struct {
	Meta Meta `json:"meta"`
}

// Meta represents a Stremio meta object
type Meta struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	ReleaseInfo string   `json:"releaseInfo,omitempty"`
	Poster      string   `json:"poster,omitempty"`
	Language    string   `json:"language,omitempty"`
	Website     string   `json:"website,omitempty"`
	Videos      []Video  `json:"videos,omitempty"`
}

// Video represents a Stremio video, a single playable part of a meta
type Video struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Released  string `json:"released,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Overview  string `json:"overview,omitempty"`
	Episode   int    `json:"episode,omitempty"`
}

// StreamsResponse is the body of a stream resource response
type StreamsResponse struct {
	Streams []Stream `json:"streams"`
}

// Stream represents a Stremio stream
type Stream struct {
	URL       string     `json:"url"`
	Name      string     `json:"name,omitempty"`
	Title     string     `json:"title,omitempty"`
	Subtitles []Subtitle `json:"subtitles,omitempty"`
}

// Subtitle represents a Stremio subtitle
type Subtitle struct {
	ID   string `json:"id"`
	Lang string `json:"lang"`
	URL  string `json:"url"`
}
