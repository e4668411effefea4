package urn3

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Many decodes a MODS node that the catalog renders either as a single object or as a list of them.
// A missing or null node decodes to a nil Many, an explicit empty list to a non-nil empty one.
type Many[T any] []T

// UnmarshalJSON implements json.Unmarshaler.
func (m *Many[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = nil
		return nil
	}

	if b[0] == '[' {
		var items []T
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		if items == nil {
			items = []T{}
		}
		*m = items
		return nil
	}

	var item T
	if err := json.Unmarshal(b, &item); err != nil {
		return err
	}
	*m = Many[T]{item}
	return nil
}

// First returns the first element, or the zero value when there is none.
func (m Many[T]) First() T {
	var zero T
	if len(m) == 0 {
		return zero
	}
	return m[0]
}

// Text is a MODS text node. The catalog emits it as a bare string, a bare number, or an
// object carrying the value under "#text" (or "text") next to "@type"/"type" attributes.
type Text struct {
	Value     string
	Type      string
	Authority string
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = Text{}
		return nil
	}

	switch b[0] {
	case '"':
		*t = Text{}
		return json.Unmarshal(b, &t.Value)
	case '{':
		node := struct {
			HashText  *Text  `json:"#text"`
			PlainText *Text  `json:"text"`
			AtType    string `json:"@type"`
			Type      string `json:"type"`
			Authority string `json:"@authority"`
		}{}
		if err := json.Unmarshal(b, &node); err != nil {
			return err
		}
		*t = Text{Type: node.AtType, Authority: node.Authority}
		if t.Type == "" {
			t.Type = node.Type
		}
		switch {
		case node.HashText != nil:
			t.Value = node.HashText.Value
		case node.PlainText != nil:
			t.Value = node.PlainText.Value
		}
		return nil
	case '[':
		// Mixed content; keep the text parts.
		var parts []Text
		if err := json.Unmarshal(b, &parts); err != nil {
			return err
		}
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if p.Value != "" {
				values = append(values, p.Value)
			}
		}
		*t = Text{Value: strings.Join(values, " ")}
		return nil
	default:
		// numbers and booleans keep their literal form
		*t = Text{Value: string(b)}
		return nil
	}
}

// String returns the node value.
func (t Text) String() string {
	return t.Value
}

// Values returns the non-empty values of a list of text nodes.
func Values(nodes Many[Text]) []string {
	values := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Value != "" {
			values = append(values, n.Value)
		}
	}
	return values
}

// CatalogResponse is the LibraryCloud items.json response.
type CatalogResponse struct {
	Pagination struct {
		NumFound int `json:"numFound"`
		Limit    int `json:"limit"`
		Start    int `json:"start"`
	} `json:"pagination"`
	// Items is nil when the catalog found nothing for the query.
	Items *CatalogItems `json:"items"`
}

// CatalogItems holds the MODS records of a catalog response.
type CatalogItems struct {
	Mods Many[Mods] `json:"mods"`
}

// Mods is a single MODS descriptive metadata record. Every field is optional.
type Mods struct {
	// TitleInfo is absent on some records; the record title is then left empty.
	TitleInfo Many[TitleInfo] `json:"titleInfo"`
	// Name is absent on records that carry no attribution; those records are skipped entirely.
	Name Many[Name] `json:"name"`
	// Note contributes one description line per node.
	Note Many[Text] `json:"note"`
	// Extension blocks carry the collection set and the delivery system metadata.
	Extension Many[Extension] `json:"extension"`
	// Subject entries without a topic are ignored.
	Subject    Many[Subject]    `json:"subject"`
	OriginInfo Many[OriginInfo] `json:"originInfo"`
	Genre      Many[Text]       `json:"genre"`
	// Language is only read from a typed "text" language term.
	Language Many[Language] `json:"language"`
}

// HasName reports whether the record carries a name field at all.
func (m *Mods) HasName() bool {
	return m.Name != nil
}

// TitleInfo is the MODS titleInfo node.
type TitleInfo struct {
	Title Text `json:"title"`
	// PartNumber is nil when the title has no part label.
	PartNumber *Text `json:"partNumber"`
}

// Name is the MODS name node.
type Name struct {
	NamePart Many[Text] `json:"namePart"`
	// Role is nil when the name has no role, in which case the name is not described.
	Role Many[Role] `json:"role"`
}

// DisplayName joins the name parts the way they are listed.
func (n *Name) DisplayName() string {
	return strings.Join(Values(n.NamePart), ", ")
}

// Role is the MODS role node.
type Role struct {
	RoleTerm Many[Text] `json:"roleTerm"`
}

// Subject is the MODS subject node.
type Subject struct {
	// Topic is nil for geographic or name subjects.
	Topic Many[Text] `json:"topic"`
}

// OriginInfo is the MODS originInfo node.
type OriginInfo struct {
	Place        Many[Place] `json:"place"`
	DateCaptured Many[Text]  `json:"dateCaptured"`
}

// Place is a MODS place node.
type Place struct {
	PlaceTerm Many[Text] `json:"placeTerm"`
}

// Language is the MODS language node.
type Language struct {
	LanguageTerm Many[Text] `json:"languageTerm"`
}

// Extension is a MODS extension block. Only one of its fields is set on a given block.
type Extension struct {
	Sets        *Sets        `json:"sets"`
	DRSMetadata *DRSMetadata `json:"DRSMetadata"`
}

// Sets lists the collection sets an item belongs to.
type Sets struct {
	Set Many[Set] `json:"set"`
}

// Set describes a collection set.
type Set struct {
	SystemID Text   `json:"systemId"`
	SetName  string `json:"setName"`
	SetSpec  string `json:"setSpec"`
	BaseURL  string `json:"baseUrl"`
}

// DRSMetadata is the Digital Repository Service delivery metadata.
type DRSMetadata struct {
	URIType       string `json:"uriType"`
	DRSFileID     Text   `json:"drsFileId"`
	DRSObjectID   Text   `json:"drsObjectId"`
	InsertionDate string `json:"insertionDate"`
}
