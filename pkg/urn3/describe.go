package urn3

import (
	"fmt"
	"strings"
	"unicode"
)

// Delivery system uri types of streamable items.
const (
	uriTypeAudio = "SDS"
	uriTypeVideo = "SDS_VIDEO"
)

var describedRoles = map[string]bool{
	"Interviewee": true,
	"Interviewer": true,
}

// describe copies the descriptive fields of a MODS record into r.
func (r *Record) describe(m *Mods) {
	for _, name := range m.Name {
		if name.Role == nil {
			continue
		}
		for _, role := range name.Role {
			for _, term := range role.RoleTerm {
				if describedRoles[term.Value] {
					r.Description = append(r.Description, fmt.Sprintf("%s: %s", term.Value, name.DisplayName()))
				}
			}
		}
	}

	for _, note := range m.Note {
		if note.Type == "" {
			r.Description = append(r.Description, note.Value)
			continue
		}
		r.Description = append(r.Description, fmt.Sprintf("%s: %s", note.Type, note.Value))
	}

	for _, e := range m.Extension {
		if e.Sets != nil && len(e.Sets.Set) > 0 {
			set := e.Sets.Set.First()
			r.ChannelID = set.SystemID.Value
			r.ChannelURL = set.BaseURL
			r.ChannelTitle = set.SetName
			r.Channel = set.SetSpec
		}
		if drs := e.DRSMetadata; drs != nil && (drs.URIType == uriTypeAudio || drs.URIType == uriTypeVideo) {
			if drs.URIType == uriTypeAudio {
				r.Type = TypeAudio
			}
			r.ID = drs.DRSFileID.Value
			r.ObjectID = drs.DRSObjectID.Value
			r.UploadDate = compactDate(drs.InsertionDate)
		}
	}

	title := m.TitleInfo.First()
	r.Title = title.Title.Value
	if title.PartNumber != nil {
		r.Series = &Series{
			Title: r.Title,
			Part:  title.PartNumber.Value,
		}
		r.Title = appendPart(r.Title, title.PartNumber.Value)
	}

	r.Categories = []string{}
	for _, s := range m.Subject {
		if s.Topic == nil {
			continue
		}
		r.Categories = append(r.Categories, Values(s.Topic)...)
	}
	r.Subjects = r.Categories

	origin := m.OriginInfo.First()
	var placeTerms Many[Text]
	for _, p := range origin.Place {
		placeTerms = append(placeTerms, p.PlaceTerm...)
	}
	r.Location = preferText(placeTerms)
	r.Genre = m.Genre.First().Value

	for _, term := range m.Language.First().LanguageTerm {
		if term.Type == "text" {
			r.Language = term.Value
			break
		}
	}

	r.ReleaseDate = origin.DateCaptured.First().Value
}

// appendPart appends a part label to a title, adding a space unless the title already ends with one.
func appendPart(title, part string) string {
	if title == "" || strings.TrimRightFunc(title, unicode.IsSpace) != title {
		return title + part
	}
	return title + " " + part
}

// compactDate turns an ISO timestamp into YYYYMMDD.
func compactDate(timestamp string) string {
	date, _, _ := strings.Cut(timestamp, "T")
	return strings.ReplaceAll(date, "-", "")
}

// preferText returns the first text typed value, falling back to the first value.
func preferText(nodes Many[Text]) string {
	for _, n := range nodes {
		if n.Type == "text" && n.Value != "" {
			return n.Value
		}
	}
	return nodes.First().Value
}
