package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"trace-go/internal/types"
)

const sheetName = "Records"

var exportHeader = []interface{}{
	"id", "sent_at", "filename", "filesize", "duration", "summary",
	"actions", "objects", "locations", "tags", "confidence", "before", "after",
}

// Export writes records to a new workbook at path in the layout LoadRecords
// reads back.
func Export(path string, records []types.AnalysisRecord) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		a := r.Analysis
		var before, after, sentAt string
		if a.Context != nil {
			before, after = a.Context.Before, a.Context.After
		}
		if !r.SentAt.IsZero() {
			sentAt = r.SentAt.Format(time.RFC3339)
		}
		row := []interface{}{
			r.ID, sentAt, r.Filename, r.Filesize, r.Duration, a.Summary,
			strings.Join(a.Actions, ", "), strings.Join(a.Objects, ", "),
			strings.Join(a.Locations, ", "), strings.Join(a.Tags, ", "),
			a.Confidence, before, after,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
