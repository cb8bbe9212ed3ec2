// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package cache provides the fixed-capacity rings Herald relies on for
// deduplication and rolling time series.
//
// Ring is the per-source "seen" cache: a constant-length ordered list of
// identifiers where every insert evicts the oldest entry. SampleRing applies
// the same discipline to activity samples and adds block-averaging for
// decimation into a longer-horizon buffer.
//
// Both types are plain values with no internal locking; each is owned
// exclusively by one caller at a time.
package cache
