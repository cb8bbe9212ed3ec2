// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package source

import (
	"regexp"
	"strings"
)

var (
	versionSuffixRe = regexp.MustCompile(`(?i)\bv\d+(\.\d+)*$`)
	buildMarkerRe   = regexp.MustCompile(`(?i)\bbuild[ ._]\d+(\.\d+)*`)
	spacesRe        = regexp.MustCompile(`\s+`)
)

// Release is a parsed game-release title.
type Release struct {
	// Name is the cleaned game name with store/release tokens removed.
	Name string

	// Marker is the release identifier: a "vX.Y.Z" version suffix or a
	// lowercased "build N" marker.
	Marker string
}

// ParseTitle extracts a game name and release marker from a raw release
// title. Strip tokens come off first, then a trailing version suffix is
// preferred; failing that, a build marker anywhere in the raw title.
// Returns false when neither pattern matches.
func ParseTitle(raw string, stripTokens []string) (Release, bool) {
	cleaned := raw
	for _, tok := range stripTokens {
		if tok == "" {
			continue
		}
		// Case-insensitive removal, all occurrences.
		for {
			idx := strings.Index(strings.ToLower(cleaned), strings.ToLower(tok))
			if idx < 0 {
				break
			}
			cleaned = cleaned[:idx] + cleaned[idx+len(tok):]
		}
	}
	cleaned = collapseSpaces(cleaned)

	if m := versionSuffixRe.FindString(cleaned); m != "" {
		name := collapseSpaces(strings.TrimSuffix(cleaned, m))
		if name != "" {
			return Release{Name: name, Marker: strings.ToLower(m[:1]) + m[1:]}, true
		}
	}

	// Build markers are matched against the raw title: strip tokens can
	// carry the separator the pattern needs.
	if loc := buildMarkerRe.FindStringIndex(raw); loc != nil {
		m := strings.ToLower(raw[loc[0]:loc[1]])
		// Normalize the separator after "build" to a single space; the
		// number itself keeps its dots.
		marker := "build " + m[len("build")+1:]
		name := cleaned
		if idx := strings.Index(strings.ToLower(name), "build"); idx >= 0 {
			name = collapseSpaces(strings.TrimRight(name[:idx], " ._-"))
		}
		if name != "" {
			return Release{Name: name, Marker: marker}, true
		}
	}

	return Release{}, false
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}
