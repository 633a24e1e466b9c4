package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/starford/tankobon/internal/models"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, footer string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	if footer != "" {
		tw.SetCaption("%s", footer)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func statusColor(s models.Status) text.Colors {
	switch s {
	case models.StatusOK:
		return text.Colors{text.FgGreen}
	case models.StatusMissing:
		return text.Colors{text.FgYellow}
	default:
		return text.Colors{text.FgRed}
	}
}

func renderScan(recs []models.ArchiveRecord, color bool) string {
	rows := make([][]string, 0, len(recs))
	counts := map[models.Status]int{}
	for _, r := range recs {
		counts[r.Status]++
		status := string(r.Status)
		if color {
			status = statusColor(r.Status).Sprint(status)
		}
		embedded := ""
		if r.EmbeddedDate != nil {
			embedded = r.EmbeddedDate.String()
		}
		rows = append(rows, []string{r.Path, r.ParsedVolume, r.ParsedChapter, r.ParsedDate, embedded, r.FileModDate, status})
	}
	footer := fmt.Sprintf("%d archives: %d ok, %d missing, %d wrong",
		len(recs), counts[models.StatusOK], counts[models.StatusMissing], counts[models.StatusWrong])
	return renderTable(
		[]string{"Path", "Vol", "Ch", "Filename date", "Embedded", "Modified", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
		footer,
	)
}

func renderRepair(results []models.RepairResult, color bool) string {
	rows := make([][]string, 0, len(results))
	failed := 0
	for _, r := range results {
		outcome := "written"
		switch {
		case r.DryRun:
			outcome = "planned"
		case !r.OK:
			failed++
			outcome = "failed: " + r.Error
		}
		if color && !r.OK && !r.DryRun {
			outcome = text.FgRed.Sprint(outcome)
		}
		rows = append(rows, []string{r.Path, r.Date, outcome})
	}
	footer := fmt.Sprintf("%d archives, %d failed", len(results), failed)
	return renderTable([]string{"Path", "Date", "Result"}, rows, nil, footer)
}
