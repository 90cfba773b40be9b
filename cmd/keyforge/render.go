package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kmertens/keyforge/internal/board"
	"github.com/kmertens/keyforge/internal/job"
)

// renderResults prints the ranked batch results as a table, followed by the
// top boards rendered in full.
func renderResults(w io.Writer, results []job.Result, top int) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Score", "Home Row"})
	for i, r := range results {
		tw.AppendRow(table.Row{i + 1, fmt.Sprintf("%.2f", r.Score), homeRow(r.Layout)})
	}
	tw.Render()

	if top > len(results) {
		top = len(results)
	}
	if top < 0 {
		top = 0
	}
	for i, r := range results[:top] {
		header := text.FgGreen.Sprintf("#%d  score %.2f", i+1, r.Score)
		fmt.Fprintf(w, "\n%s\n%s", header, r.Layout)
	}
}

// homeRow extracts the home-row labels (positions 26..36) for the summary
// table.
func homeRow(l *board.Layout) string {
	var sb strings.Builder
	for pos := uint8(26); pos < 37; pos++ {
		if pos > 26 {
			sb.WriteByte(' ')
		}
		sb.WriteString(l.Key(pos).Label())
	}
	return sb.String()
}
