// Package dataset imports and exports analysis records as Excel workbooks
// and summarizes the stored corpus.
package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"trace-go/internal/logger"
	"trace-go/internal/types"
)

// columns holds the index of each recognized header, -1 when absent.
type columns struct {
	sentAt, summary, actions, objects, locations, tags      int
	confidence, filename, filesize, duration, before, after int
}

func detectColumns(header []string) columns {
	c := columns{-1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1}
	set := func(idx *int, i int) {
		if *idx == -1 {
			*idx = i
		}
	}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "summary") || strings.Contains(l, "description"):
			set(&c.summary, i)
		case strings.Contains(l, "action"):
			set(&c.actions, i)
		case strings.Contains(l, "object"):
			set(&c.objects, i)
		case strings.Contains(l, "location") || strings.Contains(l, "place"):
			set(&c.locations, i)
		case strings.Contains(l, "tag"):
			set(&c.tags, i)
		case strings.Contains(l, "confidence"):
			set(&c.confidence, i)
		case strings.Contains(l, "before"):
			set(&c.before, i)
		case strings.Contains(l, "after"):
			set(&c.after, i)
		case strings.Contains(l, "duration"):
			set(&c.duration, i)
		case strings.Contains(l, "size"):
			set(&c.filesize, i)
		case strings.Contains(l, "file") || strings.Contains(l, "name"):
			set(&c.filename, i)
		case strings.Contains(l, "sent") || strings.Contains(l, "date") || strings.Contains(l, "time"):
			set(&c.sentAt, i)
		}
	}
	return c
}

// LoadRecords reads seed records from the first sheet of an .xlsx workbook.
// Headers are matched loosely (e.g. "Objects seen" feeds objects); list cells
// are split on commas or semicolons. Rows without any analysis content are
// skipped. Timestamps without a zone are read in loc.
func LoadRecords(path string, loc *time.Location) ([]types.AnalysisRecord, error) {
	log := logger.New().Component("dataset").WithField("path", path)
	if loc == nil {
		loc = time.Local
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("no data rows")
	}

	cols := detectColumns(rows[0])
	log.WithFields(map[string]interface{}{
		"sentAtIdx":  cols.sentAt,
		"summaryIdx": cols.summary,
		"objectsIdx": cols.objects,
	}).Debug("detected column indices")

	out := []types.AnalysisRecord{}
	skipped := 0
	for i, r := range rows {
		if i == 0 {
			continue
		}
		cell := func(idx int) string {
			if idx >= 0 && idx < len(r) {
				return strings.TrimSpace(r[idx])
			}
			return ""
		}

		a := types.Analysis{
			Summary:   cell(cols.summary),
			Actions:   splitList(cell(cols.actions)),
			Objects:   splitList(cell(cols.objects)),
			Locations: splitList(cell(cols.locations)),
			Tags:      splitList(cell(cols.tags)),
		}
		if before, after := cell(cols.before), cell(cols.after); before != "" || after != "" {
			a.Context = &types.AnalysisContext{Before: before, After: after}
		}
		if v := cell(cols.confidence); v != "" {
			a.Confidence, _ = strconv.ParseFloat(v, 64)
		}
		if a.Summary == "" && len(a.Actions)+len(a.Objects)+len(a.Locations)+len(a.Tags) == 0 {
			skipped++
			continue
		}

		rec := types.AnalysisRecord{
			Filename: cell(cols.filename),
			Filesize: cell(cols.filesize),
			Duration: cell(cols.duration),
			Analysis: a,
		}
		if v := cell(cols.sentAt); v != "" {
			at, err := parseTime(v, loc)
			if err != nil {
				log.WithError(err).WithField("row", i+1).Warn("unreadable timestamp, leaving it empty")
			}
			rec.SentAt = at
		}
		out = append(out, rec)
	}

	log.WithFields(map[string]interface{}{"records": len(out), "skipped": skipped}).Info("dataset loaded")
	return out, nil
}

func splitList(cell string) []string {
	if cell == "" {
		return nil
	}
	parts := strings.FieldsFunc(cell, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"01/02/2006 15:04",
	"2006-01-02",
}

// parseTime accepts common textual layouts and Excel serial dates.
func parseTime(v string, loc *time.Location) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", v)
}
