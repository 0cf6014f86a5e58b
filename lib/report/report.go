// Package report renders result sets as an html page, markdown or a
// terminal table.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"infojobs-candidatures/lib/candidature"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	ResultsPage       = "results.html"
	SortedResultsPage = "results_sorted.html"
)

//go:embed templates/*.tmpl
var templates embed.FS

var resultsTemplate = template.Must(
	template.New("results.html.tmpl").
		Funcs(template.FuncMap{
			"rowClass":   rowClass,
			"changeText": func(c candidature.Change) string { return c.String() },
		}).
		ParseFS(templates, "templates/results.html.tmpl"),
)

func rowClass(status candidature.Status) string {
	switch status.Symbol {
	case candidature.SymbolIncluded:
		return "included"
	case candidature.SymbolRejected:
		return "rejected"
	}
	return ""
}

type Page struct {
	Title        string
	GeneratedAt  time.Time
	Sorted       bool
	Candidatures []candidature.Candidature
	Changes      []candidature.Change
}

// NewPage orders set for presentation.
func NewPage(set []candidature.Candidature, order candidature.Order, generatedAt time.Time) Page {
	title := "InfoJobs candidatures"
	if order == candidature.OrderByStatus {
		title += " by status"
	}
	return Page{
		Title:        title,
		GeneratedAt:  generatedAt,
		Sorted:       order == candidature.OrderByStatus,
		Candidatures: order.Apply(set),
	}
}

func HTML(w io.Writer, page Page) error {
	return resultsTemplate.Execute(w, page)
}

var converter = md.NewConverter("", true, nil)

// Markdown renders the html page and converts it to markdown.
func Markdown(w io.Writer, page Page) error {
	var buff bytes.Buffer
	err := HTML(&buff, page)
	if err != nil {
		return err
	}
	out, err := converter.ConvertString(buff.String())
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out+"\n")
	return err
}

// WritePages writes the natural and the status sorted page to dir and
// returns their paths.
func WritePages(dir string, set []candidature.Candidature, changes []candidature.Change, generatedAt time.Time) (natural, sorted string, err error) {
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return "", "", err
	}

	write := func(name string, order candidature.Order) (string, error) {
		page := NewPage(set, order, generatedAt)
		page.Changes = changes

		var buff bytes.Buffer
		err := HTML(&buff, page)
		if err != nil {
			return "", fmt.Errorf("render %s: %w", name, err)
		}
		path := filepath.Join(dir, name)
		return path, os.WriteFile(path, buff.Bytes(), 0644)
	}

	natural, err = write(ResultsPage, candidature.OrderNatural)
	if err != nil {
		return "", "", err
	}
	sorted, err = write(SortedResultsPage, candidature.OrderByStatus)
	if err != nil {
		return "", "", err
	}
	return natural, sorted, nil
}

// PagePath returns where WritePages puts the page for order.
func PagePath(dir string, order candidature.Order) string {
	if order == candidature.OrderByStatus {
		return filepath.Join(dir, SortedResultsPage)
	}
	return filepath.Join(dir, ResultsPage)
}

// Table prints set with included candidatures in green and rejected ones
// in red.
func Table(w io.Writer, set []candidature.Candidature) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Title", "Company", "Status"})
	for _, c := range set {
		t.AppendRow(table.Row{c.Title, c.CompanyName, c.Status.Symbol})
	}
	t.SetRowPainter(table.RowPainter(func(row table.Row) text.Colors {
		if len(row) < 3 {
			return nil
		}
		switch row[2] {
		case candidature.SymbolIncluded:
			return text.Colors{text.FgGreen}
		case candidature.SymbolRejected:
			return text.Colors{text.FgRed}
		}
		return nil
	}))
	t.Render()
}

// Changes prints one line per change.
func Changes(w io.Writer, changes []candidature.Change) error {
	if len(changes) == 0 {
		_, err := fmt.Fprintln(w, "no changes")
		return err
	}
	for _, c := range changes {
		_, err := fmt.Fprintln(w, c.String())
		if err != nil {
			return err
		}
	}
	return nil
}
