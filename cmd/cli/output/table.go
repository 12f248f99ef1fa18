package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/crucial707/alloc8/internal/lifecycle"
	"github.com/jedib0t/go-pretty/v6/table"
)

// TimeLayout is how timestamps are shown in tables.
const TimeLayout = "2006-01-02 15:04"

// RenderTable prints a pretty table to stdout
func RenderTable(headers []string, rows [][]interface{}) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	headerRow := table.Row{}
	for _, h := range headers {
		headerRow = append(headerRow, h)
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		t.AppendRow(table.Row(row))
	}

	t.Render()
}

// PrintJSON writes v to stdout as indented JSON.
func PrintJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

// Date renders an optional timestamp as a calendar date, or "-".
func Date(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}

// OrDash renders an optional id, or "-".
func OrDash(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}

// RenderTimeline prints assignment intervals; open intervals show "current".
func RenderTimeline(intervals []lifecycle.Interval) {
	rows := make([][]interface{}, 0, len(intervals))
	for _, iv := range intervals {
		to, days := "current", "-"
		if iv.To != nil {
			to = iv.To.Format(TimeLayout)
		}
		if iv.DurationDays != nil {
			days = strconv.Itoa(*iv.DurationDays)
		}
		rows = append(rows, []interface{}{iv.AssetID, iv.HolderID, iv.From.Format(TimeLayout), to, days})
	}
	RenderTable([]string{"Asset", "Holder", "From", "To", "Days"}, rows)
}
