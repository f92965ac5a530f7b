// Package report is the narrow UI abstraction every skillyard component
// reports through instead of writing to stdout/stderr directly: status
// lines, tables, and progress bars, styled only when the destination is a
// terminal.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
)

//go:generate mockgen -destination mocks/reporter.go -package mocks github.com/skillyard/skillyard/internal/report Reporter,ProgressHandle

// Reporter is the sink every service writes status, warnings, tabular
// reports, and progress to. Callers (tests, a JSON-output mode) can supply
// their own implementation; the CLI uses New() by default.
type Reporter interface {
	Info(msg string)
	Success(msg string)
	Warn(msg string)
	Error(msg string)
	Table(headers []string, rows [][]string)
	Progress(phase string, total int64) ProgressHandle
}

// ProgressHandle tracks a single long-running operation's progress.
type ProgressHandle interface {
	Add(n int64)
	Finish()
}

// consoleReporter is the default Reporter, styled with lipgloss when its
// destination is a terminal and plain otherwise.
type consoleReporter struct {
	out      io.Writer
	styled   bool
	infoSty  lipgloss.Style
	okSty    lipgloss.Style
	warnSty  lipgloss.Style
	errSty   lipgloss.Style
}

// New builds the default Reporter, writing to out. Styling is enabled only
// when out is a terminal (checked via go-isatty), so piped output and
// --json modes get plain, ANSI-free text.
func New(out *os.File) Reporter {
	styled := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())
	return &consoleReporter{
		out:     out,
		styled:  styled,
		infoSty: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		okSty:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		warnSty: lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		errSty:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

func (r *consoleReporter) line(sty lipgloss.Style, prefix, msg string) {
	if r.styled {
		fmt.Fprintln(r.out, sty.Render(prefix)+" "+msg)
		return
	}
	fmt.Fprintln(r.out, prefix+" "+msg)
}

func (r *consoleReporter) Info(msg string)    { r.line(r.infoSty, "info:", msg) }
func (r *consoleReporter) Success(msg string) { r.line(r.okSty, "ok:", msg) }
func (r *consoleReporter) Warn(msg string)    { r.line(r.warnSty, "warn:", msg) }
func (r *consoleReporter) Error(msg string)   { r.line(r.errSty, "error:", msg) }

// Table renders a headers+rows report.
func (r *consoleReporter) Table(headers []string, rows [][]string) {
	table := tablewriter.NewWriter(r.out)
	headerInterfaces := make([]any, len(headers))
	for i, h := range headers {
		headerInterfaces[i] = h
	}
	table.Header(headerInterfaces...)
	for _, row := range rows {
		_ = table.Append(row)
	}
	_ = table.Render()
}

// barHandle adapts progressbar.ProgressBar to ProgressHandle.
type barHandle struct{ bar *progressbar.ProgressBar }

func (b *barHandle) Add(n int64) { _ = b.bar.Add64(n) }
func (b *barHandle) Finish()     { _ = b.bar.Finish() }

// Progress starts a phase-labeled progress bar for a long-running operation
// (upgrade staging, extraction of many skills). When output is not a
// terminal, a no-op handle is returned so non-interactive runs stay quiet.
func (r *consoleReporter) Progress(phase string, total int64) ProgressHandle {
	if !r.styled {
		return noopProgress{}
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(phase),
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionClearOnFinish(),
	)
	return &barHandle{bar: bar}
}

type noopProgress struct{}

func (noopProgress) Add(int64) {}
func (noopProgress) Finish()   {}
