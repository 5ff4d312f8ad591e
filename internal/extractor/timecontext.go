package extractor

import (
	"time"

	"trace-go/internal/types"
)

const (
	DateLayout = "Monday, January 2, 2006"
	TimeLayout = "03:04 PM"
)

// DayPartOf buckets an hour with half-open intervals: morning [5,12),
// afternoon [12,17), evening [17,21), night otherwise.
func DayPartOf(hour int) types.DayPart {
	switch {
	case hour >= 5 && hour < 12:
		return types.Morning
	case hour >= 12 && hour < 17:
		return types.Afternoon
	case hour >= 17 && hour < 21:
		return types.Evening
	default:
		return types.Night
	}
}

// BuildTimeContext describes t in the form embedded into prompts.
func BuildTimeContext(t time.Time) types.TimeContext {
	return types.TimeContext{
		Date:    t.Format(DateLayout),
		Time:    t.Format(TimeLayout),
		DayPart: DayPartOf(t.Hour()),
	}
}
