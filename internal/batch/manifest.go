package batch

import (
	"sort"
	"sync"
	"time"

	"dubstitch/internal/subtitles"
)

// ManifestEntry records one published batch: its video, rendered sidecars,
// and the timeline data the stitcher needs to merge subtitles.
type ManifestEntry struct {
	VideoPath   string
	Sidecars    []string
	SourceStart time.Duration
	Duration    time.Duration
	Cues        []subtitles.Cue
}

// Manifest accumulates published batches. Batches finish out of order across
// the encoding pool, so every append happens under the lock and is
// deduplicated by video path; ordering is restored by Sorted before stitching.
type Manifest struct {
	mu        sync.Mutex
	entries   []ManifestEntry
	published map[string]struct{}
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{published: make(map[string]struct{})}
}

// Publish appends an entry unless its video path was already published.
// Reports whether the entry was accepted.
func (m *Manifest) Publish(entry ManifestEntry) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.published[entry.VideoPath]; seen {
		return false
	}
	m.published[entry.VideoPath] = struct{}{}
	m.entries = append(m.entries, entry)
	return true
}

// Len returns the number of published batches.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sorted returns the published entries ordered by source start time, so the
// stitch order is deterministic regardless of encode completion order.
func (m *Manifest) Sorted() []ManifestEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := make([]ManifestEntry, len(m.entries))
	copy(sorted, m.entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SourceStart < sorted[j].SourceStart
	})
	return sorted
}
