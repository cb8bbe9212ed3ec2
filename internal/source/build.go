// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package source

import "github.com/tomtom215/herald/internal/config"

const (
	outageColor  = 0xCC3300
	contestColor = 0xFFC107
)

// Build assembles the enabled adapters. The slice order is the
// scheduler's rotation order and follows the config layout.
func Build(cfg config.SourcesConfig, deps Deps) []Source {
	var out []Source
	if cfg.Alienware.Enabled {
		out = append(out, NewAlienware(cfg.Alienware, deps))
	}
	if cfg.Fanatical.Enabled {
		out = append(out, NewFanatical(cfg.Fanatical, deps))
	}
	if cfg.GameUpdates.Enabled {
		out = append(out, NewGameUpdates(cfg.GameUpdates, deps))
	}
	if cfg.ChatLog.Enabled {
		out = append(out, NewChatLog(cfg.ChatLog, deps))
	}
	if cfg.OutageFeed.Enabled {
		out = append(out, NewFeed("outagefeed", cfg.OutageFeed, deps, "Service status", outageColor))
	}
	if cfg.ContestFeed.Enabled {
		out = append(out, NewFeed("contestfeed", cfg.ContestFeed, deps, "Contests", contestColor))
	}
	if cfg.FreeGames.Enabled {
		out = append(out, NewFreeGames("freegames", cfg.FreeGames, deps))
	}
	if cfg.CrackWatch.Enabled {
		out = append(out, NewTaggedPosts("crackwatch", cfg.CrackWatch, deps))
	}
	return out
}
