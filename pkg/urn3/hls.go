package urn3

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
)

const (
	protocolM3U8Native = "m3u8_native"
	extMP4             = "mp4"
)

// drmTagRe matches the Adobe Access and FairPlay key tags of protected playlists.
var drmTagRe = regexp.MustCompile(`#EXT-X-FAXS-CM:|#EXT-X-(?:SESSION-)?KEY:.*?URI="skd://`)

// parseMasterPlaylist returns one format per variant stream of an HLS master playlist.
// A media playlist, which has no variants, yields a single format for the playlist itself.
// Every format of a playlist carrying DRM key tags is flagged HasDRM.
func parseMasterPlaylist(content, manifestURL string) []Format {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	playlist, listType, err := m3u8.DecodeFrom(strings.NewReader(content), true)
	if err != nil {
		return nil
	}
	hasDRM := drmTagRe.MatchString(content)

	var formats []Format
	switch listType {
	case m3u8.MASTER:
		master, ok := playlist.(*m3u8.MasterPlaylist)
		if !ok {
			return nil
		}
		for _, v := range master.Variants {
			if v == nil || v.URI == "" {
				continue
			}
			f := variantFormat(v, resolveURL(base, v.URI), manifestURL, len(formats))
			f.HasDRM = hasDRM
			formats = append(formats, f)
		}
	case m3u8.MEDIA:
		formats = append(formats, Format{
			FormatID:    "0",
			URL:         manifestURL,
			ManifestURL: manifestURL,
			Ext:         extMP4,
			Protocol:    protocolM3U8Native,
			HasDRM:      hasDRM,
		})
	}

	return formats
}

func variantFormat(v *m3u8.Variant, variantURL, manifestURL string, position int) Format {
	f := Format{
		URL:         variantURL,
		ManifestURL: manifestURL,
		Ext:         extMP4,
		Protocol:    protocolM3U8Native,
		Codecs:      v.Codecs,
	}

	bandwidth := v.AverageBandwidth
	if bandwidth == 0 {
		bandwidth = v.Bandwidth
	}
	if bandwidth > 0 {
		f.TBR = float64(bandwidth) / 1000
	}

	if w, h, ok := strings.Cut(v.Resolution, "x"); ok {
		f.Width, _ = strconv.Atoi(w)
		f.Height, _ = strconv.Atoi(h)
	}

	if f.TBR > 0 {
		f.FormatID = strconv.Itoa(int(f.TBR))
	} else {
		f.FormatID = strconv.Itoa(position)
	}

	return f
}

func resolveURL(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
