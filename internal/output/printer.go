// Package output formats search and indexing results for the terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/sha1n/relic-history/internal/history"
	"github.com/sha1n/relic-history/internal/search"
)

const dateLayout = "2006-01-02 15:04"

// Printer writes formatted results and messages.
type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
}

// NewPrinter creates a printer on stdout and stderr. Colors are disabled
// when NO_COLOR is set or the terminal is dumb.
func NewPrinter(useColors bool) *Printer {
	if _, ok := os.LookupEnv("NO_COLOR"); ok || os.Getenv("TERM") == "dumb" {
		useColors = false
	}
	return NewPrinterWithWriters(os.Stdout, os.Stderr, useColors)
}

// NewPrinterWithWriters creates a printer on the given writers.
func NewPrinterWithWriters(out, err io.Writer, useColors bool) *Printer {
	return &Printer{out: out, err: err, useColors: useColors}
}

// Info prints an informational message.
func (p *Printer) Info(format string, args ...any) {
	if p.useColors {
		_, _ = color.New(color.FgCyan).Fprintf(p.out, format+"\n", args...)
	} else {
		_, _ = fmt.Fprintf(p.out, format+"\n", args...)
	}
}

// Success prints a success message.
func (p *Printer) Success(format string, args ...any) {
	if p.useColors {
		_, _ = color.New(color.FgGreen).Fprintf(p.out, "✓ "+format+"\n", args...)
	} else {
		_, _ = fmt.Fprintf(p.out, "[OK] "+format+"\n", args...)
	}
}

// Error prints an error message.
func (p *Printer) Error(format string, args ...any) {
	if p.useColors {
		_, _ = color.New(color.FgRed).Fprintf(p.err, "✗ "+format+"\n", args...)
	} else {
		_, _ = fmt.Fprintf(p.err, "[ERROR] "+format+"\n", args...)
	}
}

// Header prints a section header.
func (p *Printer) Header(title string) {
	if p.useColors {
		_, _ = color.New(color.FgWhite, color.Bold).Fprintf(p.out, "\n%s\n", title)
		_, _ = color.New(color.FgWhite).Fprintf(p.out, "%s\n", strings.Repeat("─", len(title)))
	} else {
		_, _ = fmt.Fprintf(p.out, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
	}
}

// Bold returns text in bold.
func (p *Printer) Bold(text string) string {
	if p.useColors {
		return color.New(color.Bold).Sprint(text)
	}
	return text
}

// Dim returns dimmed text.
func (p *Printer) Dim(text string) string {
	if p.useColors {
		return color.New(color.Faint).Sprint(text)
	}
	return text
}

// IndexResult prints the outcome of an indexing run.
func (p *Printer) IndexResult(result history.IndexResult) {
	p.Success("Indexed %d revisions", result.Added)
	p.Info("Index size: %d documents", result.IndexDocuments)
	p.Info("Taxonomy size: %d categories", result.TaxonomySize)
}

// SearchResult prints ranked hits followed by one table per facet.
func (p *Printer) SearchResult(result *search.Result) error {
	if result.TotalHits == 0 {
		p.Info("No matching revisions")
	} else {
		p.Header(fmt.Sprintf("%d matching revisions", result.TotalHits))

		hits := NewTable(p.out, []string{"Revision", "Author", "Date", "Message"})
		for _, hit := range result.Hits {
			date := ""
			if d, ok := hit.Date(); ok {
				date = d.Format(dateLayout)
			}
			hits.AddRow(
				p.Bold(strconv.FormatInt(hit.RevisionNumber(), 10)),
				hit.Author(),
				p.Dim(date),
				history.FirstLine(hit.Message()),
			)
		}
		if err := hits.Render(); err != nil {
			return err
		}
		if shown := uint64(len(result.Hits)); result.TotalHits > shown {
			p.Info("... and %d more", result.TotalHits-shown)
		}
	}

	for _, facet := range result.Facets {
		p.Header(fmt.Sprintf("%s (%d)", facet.Path, facet.Value))
		if len(facet.Children) == 0 {
			p.Info("No values")
			continue
		}

		counts := NewTable(p.out, []string{"Label", "Count"})
		for _, child := range facet.Children {
			counts.AddRow(child.Label, strconv.Itoa(child.Count))
		}
		if err := counts.Render(); err != nil {
			return err
		}
	}
	return nil
}
