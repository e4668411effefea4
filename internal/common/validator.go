package common

import (
	"errors"
	"regexp"
)

// IDPrefix prefixes every id the addon hands out to Stremio.
const IDPrefix = "urn3:"

var (
	metaIDRE  = regexp.MustCompile(`^urn3:[0-9]+$`)
	videoIDRE = regexp.MustCompile(`^urn3:[0-9]+:[0-9A-Za-z]+$`)
)

// ValidateMetaID checks if the given meta ID is valid.
// It expects the 'urn3:' prefix followed by a numeric FHCL id.
func ValidateMetaID(id string) error {
	if !metaIDRE.MatchString(id) {
		return errors.New("invalid meta id, expected urn3:<number>")
	}

	return nil
}

// ValidateVideoID checks if the given video ID is valid.
// It expects a meta ID followed by ':' and a segment index.
func ValidateVideoID(id string) error {
	if !videoIDRE.MatchString(id) {
		return errors.New("invalid video id, expected urn3:<number>:<index>")
	}

	return nil
}

// ValidateType checks if the content type is valid.
// It expects 'movie' and 'series' as valid types.
func ValidateType(t string) error {
	if t != "movie" && t != "series" {
		return errors.New("invalid type, only movie and series are supported")
	}

	return nil
}
