package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/pity-fox/cleantools/pkg/messages"
	"github.com/pity-fox/cleantools/pkg/status"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: File descriptors fit in int.
}

// writerIsTerminal reports whether w is a terminal.
func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && isTerminal(f)
}

func statusStyle(s status.Status) lipgloss.Style {
	switch s {
	case status.Valid:
		return okStyle
	case status.PlainUnencrypted:
		return dimStyle
	case status.CannotVerify:
		return warnStyle
	default:
		return errStyle
	}
}

func levelStyle(level slog.Level) lipgloss.Style {
	switch {
	case level >= slog.LevelError:
		return errStyle
	case level >= slog.LevelWarn:
		return warnStyle
	default:
		return lipgloss.NewStyle()
	}
}

// newOutputSink writes progress lines to w, colored by level on terminals.
func newOutputSink(w io.Writer) messages.Sink {
	if !writerIsTerminal(w) {
		return messages.NewWriterSink(w)
	}

	return messages.SinkFunc(func(level slog.Level, msg string) {
		mustN(fmt.Fprintln(w, levelStyle(level).Render(msg)))
	})
}

// renderTable renders rows under headers. styleCell may return a style for
// a body cell; row and col are zero-based.
func renderTable(headers []string, rows [][]string, styleCell func(row, col int) (lipgloss.Style, bool)) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		BorderColumn(false).
		BorderLeft(false).
		BorderRight(false).
		BorderTop(false).
		BorderBottom(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Inherit(cellStyle)
			}

			if styleCell != nil {
				if s, ok := styleCell(row, col); ok {
					return s.Inherit(cellStyle)
				}
			}

			return cellStyle
		})

	return t.Render()
}
