// Package report renders a human-readable run summary for the CLI.
package report

import (
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/filmdata/critic-harvester/internal/harvest"
)

// Write renders the outcome as two tables: per-movie results and, when
// present, the unresolved queries. Color is the caller's choice based on
// the terminal.
func Write(w io.Writer, outcome harvest.RunOutcome, color bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Run " + outcome.RunID)
	t.AppendHeader(table.Row{"Movie", "Year", "Strategy", "Reviews", "Stopped"})
	items := 0
	for _, res := range outcome.Resolved {
		t.AppendRow(table.Row{
			res.Entity.Query.Name,
			res.Entity.Query.Year,
			string(res.Entity.Strategy),
			len(res.Items),
			string(res.Reason),
		})
		items += len(res.Items)
	}
	t.AppendFooter(table.Row{
		"total", "",
		strconv.Itoa(len(outcome.Resolved)) + " resolved",
		items,
		outcome.Finished.Sub(outcome.Started).Round(time.Second).String(),
	})
	style(t, color)
	t.Render()

	if len(outcome.Unresolved) == 0 {
		return
	}
	f := table.NewWriter()
	f.SetOutputMirror(w)
	f.SetTitle("Unresolved")
	f.AppendHeader(table.Row{"Movie", "Year", "Reason"})
	for _, fq := range outcome.Unresolved {
		f.AppendRow(table.Row{fq.Query.Name, fq.Query.Year, string(fq.Reason)})
	}
	style(f, color)
	f.Render()
}

func style(t table.Writer, color bool) {
	if !color {
		t.SetStyle(table.StyleLight)
		return
	}
	s := table.StyleColoredBright
	s.Title.Colors = text.Colors{text.FgHiWhite, text.Bold}
	t.SetStyle(s)
}
