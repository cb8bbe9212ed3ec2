// Herald - Multi-Source Content Monitoring and Notification
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

package cache

// Sample is one activity measurement: total players and responding servers
// at a point in time.
type Sample struct {
	Players float64 `json:"players"`
	Servers float64 `json:"servers"`
}

// SampleRing is a fixed-length rolling buffer of activity samples with the
// same evict-oldest discipline as Ring. Two horizons use it: a short buffer
// at sampling resolution and a long buffer fed by block-averaged aggregates.
type SampleRing struct {
	samples []Sample
}

// NewSampleRing creates a ring of the given capacity, zero-filled.
func NewSampleRing(capacity int) *SampleRing {
	if capacity < 1 {
		capacity = 1
	}
	return &SampleRing{samples: make([]Sample, capacity)}
}

// SampleRingFrom restores a ring from a persisted snapshot, newest entries
// winning when the snapshot exceeds the capacity.
func SampleRingFrom(capacity int, samples []Sample) *SampleRing {
	r := NewSampleRing(capacity)
	if len(samples) > capacity {
		samples = samples[len(samples)-capacity:]
	}
	copy(r.samples[capacity-len(samples):], samples)
	return r
}

// Advance evicts the oldest sample and appends s as the newest.
func (r *SampleRing) Advance(s Sample) {
	copy(r.samples, r.samples[1:])
	r.samples[len(r.samples)-1] = s
}

// Len returns the ring capacity, which is also its constant length.
func (r *SampleRing) Len() int {
	return len(r.samples)
}

// Samples returns a copy of the buffer, oldest first.
func (r *SampleRing) Samples() []Sample {
	out := make([]Sample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Newest returns the most recent sample.
func (r *SampleRing) Newest() Sample {
	return r.samples[len(r.samples)-1]
}

// BlockAverage decimates the buffer into aggregate points by averaging
// consecutive groups of groupSize samples, oldest first.
func (r *SampleRing) BlockAverage(groupSize int) []Sample {
	return BlockAverages(r.samples, groupSize)
}

// BlockAverages averages consecutive groups of groupSize samples, oldest
// first. A trailing partial group is averaged over its actual size.
// groupSize below one yields nil.
func BlockAverages(samples []Sample, groupSize int) []Sample {
	if groupSize < 1 {
		return nil
	}
	out := make([]Sample, 0, (len(samples)+groupSize-1)/groupSize)
	for start := 0; start < len(samples); start += groupSize {
		end := start + groupSize
		if end > len(samples) {
			end = len(samples)
		}
		var agg Sample
		for _, s := range samples[start:end] {
			agg.Players += s.Players
			agg.Servers += s.Servers
		}
		n := float64(end - start)
		agg.Players /= n
		agg.Servers /= n
		out = append(out, agg)
	}
	return out
}
