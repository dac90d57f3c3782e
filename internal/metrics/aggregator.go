// Package metrics turns native counter samples into per-period deltas.
package metrics

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Well-known counter names reported by engines.
const (
	CounterStalls           = "stalls"
	CounterBytesTransferred = "bytes_transferred"
	CounterDroppedFrames    = "dropped_frames"
	CounterPlaybackSeconds  = "playback_seconds"
	CounterStartupSeconds   = "startup_seconds"
)

// Counters maps counter names to values.
type Counters map[string]float64

func (c Counters) clone() Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Sample is one engine event. Negative, NaN and infinite values mean
// "unknown" and are treated as absent.
type Sample struct {
	Time     time.Time
	Counters Counters
}

// Cache is the aggregation state. EventCount only grows and Totals is the
// sum of every sample seen.
type Cache struct {
	EventCount int
	Totals     Counters
}

// DeltaSnapshot is an immutable view of one aggregation step.
type DeltaSnapshot struct {
	EventCount int
	Increment  Counters
	Total      Counters
}

// Update folds samples into cache. The caller's cache is not modified.
func Update(cache Cache, samples []Sample) (Cache, DeltaSnapshot) {
	totals := cache.Totals.clone()
	for _, s := range samples {
		for name, v := range s.Counters {
			totals[name] += clamp(v)
		}
	}

	increment := make(Counters, len(totals))
	for name, v := range totals {
		increment[name] = v - cache.Totals[name]
	}

	next := Cache{
		EventCount: cache.EventCount + len(samples),
		Totals:     totals,
	}
	return next, DeltaSnapshot{
		EventCount: next.EventCount,
		Increment:  increment,
		Total:      totals.clone(),
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Value returns the cumulative value of a counter.
func (s DeltaSnapshot) Value(name string) float64 {
	return s.Total[name]
}

// Delta returns the increment of a counter in this step.
func (s DeltaSnapshot) Delta(name string) float64 {
	return s.Increment[name]
}

func (s DeltaSnapshot) String() string {
	names := make([]string, 0, len(s.Total))
	for name := range s.Total {
		names = append(names, name)
	}
	slices.Sort(names)

	var b strings.Builder
	fmt.Fprintf(&b, "events=%d", s.EventCount)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%s(+%s)", name, format(name, s.Total[name]), format(name, s.Increment[name]))
	}
	return b.String()
}

func format(name string, v float64) string {
	switch name {
	case CounterBytesTransferred:
		return humanize.Bytes(uint64(v))
	case CounterPlaybackSeconds, CounterStartupSeconds:
		return (time.Duration(v * float64(time.Second))).Round(time.Millisecond).String()
	default:
		return humanize.FtoaWithDigits(v, 2)
	}
}

// Aggregator keeps the cache for one engine item's sample stream.
type Aggregator struct {
	cache Cache
	last  DeltaSnapshot
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	a := &Aggregator{}
	a.Reset()
	return a
}

// Add folds samples and returns the resulting snapshot.
func (a *Aggregator) Add(samples ...Sample) DeltaSnapshot {
	a.cache, a.last = Update(a.cache, samples)
	return a.last
}

// Snapshot returns the latest snapshot.
func (a *Aggregator) Snapshot() DeltaSnapshot {
	return a.last
}

// Reset starts a new stream, used when the engine's current item changes.
func (a *Aggregator) Reset() {
	a.cache = Cache{Totals: Counters{}}
	a.last = DeltaSnapshot{Increment: Counters{}, Total: Counters{}}
}
