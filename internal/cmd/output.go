package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Digital-Shane/mediameta/internal/provider"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7c3aed")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af")).Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10b981")).Padding(0, 1)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4a5568"))
)

// newTable returns a bordered table with the shared header styling. style
// may override the style of body cells; it receives the row values.
func newTable(headers []string, rows [][]string, style func(row []string, col int) *lipgloss.Style) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if style != nil && row >= 0 && row < len(rows) {
				if s := style(rows[row], col); s != nil {
					return *s
				}
			}
			return cellStyle
		})
	return t.String()
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// sourcesTable renders source settings together with their status
func sourcesTable(statuses []provider.SourceStatus) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		rows = append(rows, []string{
			fmt.Sprint(s.DisplayOrder),
			s.ProviderName,
			yesNo(s.IsAuxSearchEnabled),
			yesNo(s.UseProxy),
			s.Status,
		})
	}
	return newTable([]string{"Order", "Source", "Aux Search", "Proxy", "Status"}, rows, func(row []string, col int) *lipgloss.Style {
		if col != 4 {
			return nil
		}
		if row[col] == provider.StatusConnected {
			return &okStyle
		}
		return &failStyle
	})
}

// recordsTable renders search results
func recordsTable(records []provider.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.ID, r.Title, truncate(r.Details, 60), r.ImdbID})
	}
	return newTable([]string{"ID", "Title", "Details", "IMDb"}, rows, func(_ []string, col int) *lipgloss.Style {
		if col == 2 {
			return &mutedStyle
		}
		return nil
	})
}

// recordText renders a single record as aligned key/value lines, skipping
// empty fields.
func recordText(r provider.Record) string {
	fields := [][2]string{
		{"Source", r.Provider},
		{"ID", r.ID},
		{"Title", r.Title},
		{"English", r.NameEn},
		{"Japanese", r.NameJp},
		{"Romaji", r.NameRomaji},
		{"Aliases", strings.Join(r.AliasesCN, ", ")},
		{"IMDb", r.ImdbID},
		{"TVDB", r.TvdbID},
		{"Image", r.ImageURL},
		{"Details", r.Details},
	}
	var b strings.Builder
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("#60a5fa")).Width(10)
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		b.WriteString(label.Render(f[0]))
		b.WriteString(f[1])
		b.WriteString("\n")
	}
	return b.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
