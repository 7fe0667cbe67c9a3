// Package stats keeps a rolling window of conversion measurements for the
// stats endpoint.
package stats

import (
	"math"
	"slices"
	"sync"
	"time"
)

// Conversion is the measurement of one finished conversion.
type Conversion struct {
	Decode    time.Duration
	Assemble  time.Duration
	Pages     int
	Questions int
}

func (c Conversion) total() time.Duration {
	return c.Decode + c.Assemble
}

type entry struct {
	at     time.Time
	conv   Conversion
	failed bool
}

// Distribution summarizes one phase duration in milliseconds.
type Distribution struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Snapshot aggregates the conversions inside the window.
type Snapshot struct {
	Count      int          `json:"count"`
	Failures   int          `json:"failures"`
	Pages      int          `json:"pages"`
	Questions  int          `json:"questions"`
	MsPerPage  float64      `json:"ms_per_page"`
	DecodeMs   Distribution `json:"decode_ms"`
	AssembleMs Distribution `json:"assemble_ms"`
	TotalMs    Distribution `json:"total_ms"`
}

// Recorder collects conversions and failures for maxAge.
type Recorder struct {
	mu      sync.Mutex
	entries []entry
	maxAge  time.Duration
	now     func() time.Time
}

func NewRecorder(maxAge time.Duration) *Recorder {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Recorder{maxAge: maxAge, now: time.Now}
}

// Record adds a successful conversion. Negative phase durations count as
// zero.
func (r *Recorder) Record(c Conversion) {
	c.Decode = max(c.Decode, 0)
	c.Assemble = max(c.Assemble, 0)
	r.add(entry{conv: c})
}

// RecordFailure counts a conversion that did not produce a result.
func (r *Recorder) RecordFailure() {
	r.add(entry{failed: true})
}

func (r *Recorder) add(e entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.at = r.now()
	r.entries = append(r.expiredLocked(e.at), e)
}

// expiredLocked drops entries older than the window. Entries are appended in
// time order, so the expired ones form a prefix.
func (r *Recorder) expiredLocked(now time.Time) []entry {
	cutoff := now.Add(-r.maxAge)
	i, _ := slices.BinarySearchFunc(r.entries, cutoff, func(e entry, t time.Time) int {
		return e.at.Compare(t)
	})
	return r.entries[i:]
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	r.entries = r.expiredLocked(r.now())
	entries := slices.Clone(r.entries)
	r.mu.Unlock()

	var snap Snapshot
	var decode, assemble, total []float64
	for _, e := range entries {
		if e.failed {
			snap.Failures++
			continue
		}
		snap.Count++
		snap.Pages += e.conv.Pages
		snap.Questions += e.conv.Questions
		decode = append(decode, millis(e.conv.Decode))
		assemble = append(assemble, millis(e.conv.Assemble))
		total = append(total, millis(e.conv.total()))
	}
	snap.DecodeMs = distribution(decode)
	snap.AssembleMs = distribution(assemble)
	snap.TotalMs = distribution(total)
	if snap.Pages > 0 {
		var sum float64
		for _, v := range total {
			sum += v
		}
		snap.MsPerPage = sum / float64(snap.Pages)
	}
	return snap
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func distribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	slices.Sort(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	return Distribution{
		Min: values[0],
		Max: values[len(values)-1],
		Avg: sum / float64(len(values)),
		P50: nearestRank(values, 50),
		P95: nearestRank(values, 95),
		P99: nearestRank(values, 99),
	}
}

// nearestRank returns the smallest value with at least pct percent of the
// sorted values at or below it.
func nearestRank(sorted []float64, pct float64) float64 {
	rank := int(math.Ceil(pct / 100 * float64(len(sorted))))
	rank = min(max(rank, 1), len(sorted))
	return sorted[rank-1]
}
