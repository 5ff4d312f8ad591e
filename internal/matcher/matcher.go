// Package matcher ranks stored analysis records against search parameters.
//
// Matching is a linear scan: every record is scored independently and the
// corpus is never mutated, so Match is safe to call from concurrent requests.
// time_context is carried on the parameters but does not affect scoring.
package matcher

import (
	"sort"
	"strings"

	"trace-go/internal/types"
)

const (
	actionWeight   = 3
	objectWeight   = 2
	tagWeight      = 1
	locationWeight = 1
)

// Score returns the additive score of record for params along with the
// fields that contributed to it.
func Score(params types.SearchParameters, record types.AnalysisRecord) (int, []string) {
	a := record.Analysis
	score := 0
	fields := []string{}

	if action := params.Action(); anyMatch(action, a.Actions) {
		score += actionWeight
		fields = append(fields, "action")
	}

	for _, target := range params.TargetObjects {
		if anyMatch(target, a.Objects) {
			score += objectWeight
			fields = append(fields, "object:"+target)
		}
	}

	for _, target := range params.TargetObjects {
		if anyMatch(target, a.Tags) {
			score += tagWeight
			fields = append(fields, "tag:"+target)
		}
	}

	if location := params.Location(); anyMatch(location, a.Locations) {
		score += locationWeight
		fields = append(fields, "location")
	}

	return score, fields
}

// Match scores every record and returns those with a positive score, best
// first. Ties keep corpus order.
func Match(params types.SearchParameters, corpus []types.AnalysisRecord) []types.ScoredMatch {
	matches := []types.ScoredMatch{}
	for _, record := range corpus {
		score, fields := Score(params, record)
		if score <= 0 {
			continue
		}
		matches = append(matches, types.ScoredMatch{Record: record, Score: score, MatchedFields: fields})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// Best returns the top match, or false when nothing matched.
func Best(matches []types.ScoredMatch) (types.ScoredMatch, bool) {
	if len(matches) == 0 {
		return types.ScoredMatch{}, false
	}
	return matches[0], true
}

// Similar reports whether one string contains the other, ignoring case.
// Blank strings never match.
func Similar(target, candidate string) bool {
	t := strings.ToLower(strings.TrimSpace(target))
	c := strings.ToLower(strings.TrimSpace(candidate))
	if t == "" || c == "" {
		return false
	}
	return strings.Contains(t, c) || strings.Contains(c, t)
}

func anyMatch(target string, candidates []string) bool {
	for _, c := range candidates {
		if Similar(target, c) {
			return true
		}
	}
	return false
}
