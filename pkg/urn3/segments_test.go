package urn3

import (
	"testing"

	"github.com/ogero/stremio-urn3/pkg/jwplayer"
	"github.com/stretchr/testify/assert"
)

func TestEntrySubtitles(t *testing.T) {
	got := entrySubtitles([]jwplayer.Track{
		{File: "https://mps.lib.harvard.edu/c/fa.vtt", Kind: "captions", Label: "Persian"},
		{File: "https://mps.lib.harvard.edu/c/fa.srt?v=2", Kind: "Captions", Label: "Persian"},
		{File: "https://mps.lib.harvard.edu/c/en.vtt", Kind: "subtitles"},
		{File: "https://mps.lib.harvard.edu/c/thumbs.vtt", Kind: "thumbnails"},
		{File: "https://mps.lib.harvard.edu/c/chapters.vtt", Kind: "chapters", Label: "Chapters"},
	})

	assert.Equal(t, map[string][]Subtitle{
		"Persian": {
			{URL: "https://mps.lib.harvard.edu/c/fa.vtt", Ext: "vtt"},
			{URL: "https://mps.lib.harvard.edu/c/fa.srt?v=2", Ext: "srt"},
		},
		"en": {{URL: "https://mps.lib.harvard.edu/c/en.vtt", Ext: "vtt"}},
	}, got)

	assert.Nil(t, entrySubtitles([]jwplayer.Track{{File: "a.vtt", Kind: "thumbnails"}}))
	assert.Nil(t, entrySubtitles(nil))
}
