// Package format renders command output: scan results and the journal.
package format

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/cristianoliveira/maildirwatch/internal/journal"
	"github.com/cristianoliveira/maildirwatch/internal/scanner"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	watchStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	ignoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

var outcomeStyles = map[journal.Outcome]lipgloss.Style{
	journal.OutcomeShown:     watchStyle,
	journal.OutcomeInhibited: ignoreStyle,
	journal.OutcomeFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
}

// ScanResult writes one line per maildir found, marked WATCH or IGNORE.
func ScanResult(w io.Writer, res scanner.Result) {
	if len(res.Maildirs) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No maildirs found"))
		return
	}
	for _, c := range res.Maildirs {
		status := watchStyle.Render("WATCH ")
		if !c.Watch {
			status = ignoreStyle.Render("IGNORE")
		}
		fmt.Fprintf(w, "%s  %s\n", status, c.RelativePath)
	}
	for dir, err := range res.Skipped {
		fmt.Fprintf(w, "%s  %s: %v\n", dimStyle.Render("SKIP  "), dir, err)
	}
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d of %d maildirs watched", len(res.Accepted()), len(res.Maildirs))))
}

// Journal renders entries as a table, newest first. Times are relative to now.
func Journal(w io.Writer, entries []journal.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No notifications recorded"))
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			humanize.RelTime(e.CreatedAt, now, "ago", "from now"),
			e.RelativePath,
			strconv.Itoa(e.MessageCount),
			unseen(e.Unseen),
			string(e.Outcome),
			shortID(e.ID),
		})
	}
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("WHEN", "MAILDIR", "NEW", "UNSEEN", "OUTCOME", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.PaddingRight(1)
			}
			if col == 4 && row >= 0 && row < len(entries) {
				if s, ok := outcomeStyles[entries[row].Outcome]; ok {
					return s.PaddingRight(1)
				}
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.String())
}

func unseen(n int) string {
	if n < 0 {
		return "-"
	}
	return humanize.Comma(int64(n))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
