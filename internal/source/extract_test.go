// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package source

import "testing"

func TestParseTitle(t *testing.T) {
	strip := []string{"Download", "-GOG", "-DRM-Free", "[FULL]"}

	cases := []struct {
		name       string
		raw        string
		wantName   string
		wantMarker string
		wantOK     bool
	}{
		{
			name:       "version suffix with strip tokens",
			raw:        "Download SomeGame v1.2.3-GOG",
			wantName:   "SomeGame",
			wantMarker: "v1.2.3",
			wantOK:     true,
		},
		{
			name:       "build marker",
			raw:        "SomeGame Build 45.2",
			wantName:   "SomeGame",
			wantMarker: "build 45.2",
			wantOK:     true,
		},
		{
			name:       "build marker with dot separator",
			raw:        "OtherGame.Build.77",
			wantName:   "OtherGame",
			wantMarker: "build 77",
			wantOK:     true,
		},
		{
			name:       "single component version",
			raw:        "Roguelike Deluxe v2",
			wantName:   "Roguelike Deluxe",
			wantMarker: "v2",
			wantOK:     true,
		},
		{
			name:   "no release marker",
			raw:    "SomeGame Artbook [FULL]",
			wantOK: false,
		},
		{
			name:   "version not at end",
			raw:    "v2 SomeGame Edition",
			wantOK: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseTitle(tc.raw, strip)
			if ok != tc.wantOK {
				t.Fatalf("ParseTitle(%q) ok = %v, want %v", tc.raw, ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if got.Name != tc.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tc.wantName)
			}
			if got.Marker != tc.wantMarker {
				t.Errorf("Marker = %q, want %q", got.Marker, tc.wantMarker)
			}
		})
	}
}
