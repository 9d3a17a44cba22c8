package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const maxCellWidth = 48

// renderTable draws rows with the rounded style. Cells wider than
// maxCellWidth are truncated; a non-empty footer is printed under the rows.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment, footer ...string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	if len(footer) > 0 {
		f := make(table.Row, columns)
		for i := range columns {
			if i < len(footer) {
				f[i] = footer[i]
			}
		}
		tw.AppendFooter(f)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			AlignFooter: align,
			Transformer: truncateCell,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func truncateCell(val any) string {
	s := fmt.Sprint(val)
	if text.RuneWidthWithoutEscSequences(s) <= maxCellWidth {
		return s
	}
	return text.Trim(s, maxCellWidth-1) + "…"
}
