package dataset

import (
	"sort"
	"time"

	"trace-go/internal/aggregator"
	"trace-go/internal/types"
)

// Count is one value and how many records mention it.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CorpusSummary is a compact overview of the stored records.
type CorpusSummary struct {
	TotalRecords        int                `json:"total_records"`
	Newest              *time.Time         `json:"newest,omitempty"`
	Oldest              *time.Time         `json:"oldest,omitempty"`
	TopActions          []Count            `json:"top_actions"`
	TopObjects          []Count            `json:"top_objects"`
	TopLocations        []Count            `json:"top_locations"`
	TopTags             []Count            `json:"top_tags"`
	RecordsByDayPart    map[string]int     `json:"records_by_day_part"`
	ConfidenceByDayPart map[string]float64 `json:"confidence_by_day_part"`
	Unparsed            int                `json:"unparsed"`
}

// Summarize builds the overview, keeping the topN most frequent values per
// field. Ties are ordered alphabetically.
func Summarize(records []types.AnalysisRecord, topN int, loc *time.Location) CorpusSummary {
	in := aggregator.Aggregate(records, loc)
	s := CorpusSummary{
		TotalRecords:        len(records),
		TopActions:          top(in.ActionCounts, topN),
		TopObjects:          top(in.ObjectCounts, topN),
		TopLocations:        top(in.LocationCounts, topN),
		TopTags:             top(in.TagCounts, topN),
		RecordsByDayPart:    in.RecordsByDayPart,
		ConfidenceByDayPart: in.ConfidenceByDayPart,
	}

	for _, r := range records {
		if r.Analysis.RawResponse != "" {
			s.Unparsed++
		}
		if r.SentAt.IsZero() {
			continue
		}
		at := r.SentAt
		if s.Newest == nil || at.After(*s.Newest) {
			s.Newest = &at
		}
		if s.Oldest == nil || at.Before(*s.Oldest) {
			s.Oldest = &at
		}
	}
	return s
}

func top(m map[string]int, n int) []Count {
	arr := make([]Count, 0, len(m))
	for k, v := range m {
		arr = append(arr, Count{Value: k, Count: v})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].Count != arr[j].Count {
			return arr[i].Count > arr[j].Count
		}
		return arr[i].Value < arr[j].Value
	})
	if n > 0 && len(arr) > n {
		arr = arr[:n]
	}
	return arr
}
