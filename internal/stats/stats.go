// Package stats computes the per-user summary shown on the dashboard,
// the analytics charts and the calendar heatmap. Everything is derived in a
// single pass over the user's contacts on every request; nothing is cached.
package stats

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/iliyamo/qslx/internal/model"
)

// Stats is a snapshot of one user's logbook. Count maps never contain
// entries for contacts whose field is empty.
type Stats struct {
	TotalContacts   int            `json:"totalContacts"`
	UniqueCallsigns int            `json:"uniqueCallsigns"`
	UniqueCountries int            `json:"uniqueCountries"`
	BandCounts      map[string]int `json:"bandCounts"`
	ModeCounts      map[string]int `json:"modeCounts"`
	PathTypeCounts  map[string]int `json:"pathTypeCounts"`
	FrequencyRanges map[string]int `json:"frequencyRanges"`
	ContactsByDate  map[string]int `json:"contactsByDate"`
}

// Compute aggregates contacts. The input is not modified and an empty or
// nil slice yields zero counts and empty maps.
//
// Callsigns are compared exactly as stored; case folding belongs to
// ingestion.
func Compute(contacts []*model.Contact) Stats {
	s := Stats{
		BandCounts:      map[string]int{},
		ModeCounts:      map[string]int{},
		PathTypeCounts:  map[string]int{},
		FrequencyRanges: map[string]int{},
		ContactsByDate:  map[string]int{},
	}
	callsigns := make(map[string]struct{}, len(contacts))
	countries := make(map[string]struct{})

	for _, c := range contacts {
		if c == nil {
			continue
		}
		s.TotalContacts++
		callsigns[c.Callsign] = struct{}{}
		if c.Country != "" {
			countries[c.Country] = struct{}{}
		}
		tally(s.BandCounts, c.Band)
		tally(s.ModeCounts, c.Mode)
		tally(s.PathTypeCounts, c.PathType)
		if c.Frequency != nil && *c.Frequency != 0 {
			tally(s.FrequencyRanges, FrequencyBucket(*c.Frequency))
		}
		s.ContactsByDate[DateKey(c.Date)]++
	}

	s.UniqueCallsigns = len(callsigns)
	s.UniqueCountries = len(countries)
	return s
}

// BandsActive is the number of distinct bands with at least one contact.
func (s Stats) BandsActive() int { return len(s.BandCounts) }

// FrequencyBucket returns the integer-MHz bucket label for mhz, e.g. 14.999
// falls in "14MHz".
func FrequencyBucket(mhz float64) string {
	return strconv.FormatInt(int64(math.Floor(mhz)), 10) + "MHz"
}

// DateKey formats t as a calendar day in t's own location.
func DateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

func tally(m map[string]int, key string) {
	if key != "" {
		m[key]++
	}
}

// Bucket is one entry of a count map in display order.
type Bucket struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Sorted orders a count map by descending count, then by key.
func Sorted(m map[string]int) []Bucket {
	out := toBuckets(m)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// SortedFrequencies orders frequency buckets numerically by their MHz value.
func SortedFrequencies(m map[string]int) []Bucket {
	out := toBuckets(m)
	sort.Slice(out, func(i, j int) bool {
		a, b := bucketMHz(out[i].Key), bucketMHz(out[j].Key)
		if a != b {
			return a < b
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func toBuckets(m map[string]int) []Bucket {
	out := make([]Bucket, 0, len(m))
	for k, v := range m {
		out = append(out, Bucket{Key: k, Count: v})
	}
	return out
}

func bucketMHz(key string) int64 {
	n := len(key)
	if n > 3 && key[n-3:] == "MHz" {
		key = key[:n-3]
	}
	v, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return v
}
