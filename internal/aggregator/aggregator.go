package aggregator

import (
	"strings"
	"time"

	"trace-go/internal/extractor"
	"trace-go/internal/types"
)

// Insight counts how often each value appears across a set of records.
// Values are lower-cased and trimmed before counting.
type Insight struct {
	ActionCounts        map[string]int     `json:"action_counts"`
	ObjectCounts        map[string]int     `json:"object_counts"`
	LocationCounts      map[string]int     `json:"location_counts"`
	TagCounts           map[string]int     `json:"tag_counts"`
	RecordsByDayPart    map[string]int     `json:"records_by_day_part"`
	ConfidenceByDayPart map[string]float64 `json:"confidence_by_day_part"`
}

func Aggregate(records []types.AnalysisRecord, loc *time.Location) Insight {
	if loc == nil {
		loc = time.Local
	}
	in := Insight{
		ActionCounts:        map[string]int{},
		ObjectCounts:        map[string]int{},
		LocationCounts:      map[string]int{},
		TagCounts:           map[string]int{},
		RecordsByDayPart:    map[string]int{},
		ConfidenceByDayPart: map[string]float64{},
	}
	confidenceSum := map[string]float64{}
	for _, r := range records {
		a := r.Analysis
		count(in.ActionCounts, a.Actions)
		count(in.ObjectCounts, a.Objects)
		count(in.LocationCounts, a.Locations)
		count(in.TagCounts, a.Tags)

		if r.SentAt.IsZero() {
			continue
		}
		part := string(extractor.DayPartOf(r.SentAt.In(loc).Hour()))
		in.RecordsByDayPart[part]++
		confidenceSum[part] += a.Confidence
	}
	for part, total := range in.RecordsByDayPart {
		if total > 0 {
			in.ConfidenceByDayPart[part] = confidenceSum[part] / float64(total)
		} else {
			in.ConfidenceByDayPart[part] = 0
		}
	}
	return in
}

// count adds each distinct value of one record once.
func count(into map[string]int, values []string) {
	seen := map[string]bool{}
	for _, v := range values {
		k := strings.ToLower(strings.TrimSpace(v))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		into[k]++
	}
}
