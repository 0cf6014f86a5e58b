// Package infojobs parses the candidature pages of infojobs.net.
package infojobs

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"infojobs-candidatures/lib/candidature"
	"infojobs-candidatures/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/infojobs")

// Row is the summary of one candidature as shown on the list page.
type Row struct {
	Title       string
	CompanyName string
	LastSeen    string
	StatusIcon  candidature.IconKey
	DetailsURL  string
}

func (r Row) Key() candidature.Key {
	return candidature.Key{Title: r.Title, CompanyName: r.CompanyName}
}

// RowParseError is returned for a row that carries the application marker
// but whose content could not be extracted.
type RowParseError struct {
	RowID  string
	Reason string
}

func (e *RowParseError) Error() string {
	return fmt.Sprintf("parse row %q: %s", e.RowID, e.Reason)
}

// RowErrorBudget is the per page tolerance for row failures. Up to Max
// errors are absorbed, the one after that abandons the rest of the page.
type RowErrorBudget struct {
	Max    int
	Errors []error
}

func NewRowErrorBudget(max int) RowErrorBudget {
	return RowErrorBudget{Max: max}
}

// Record returns a budget with err accounted for, b is left untouched.
func (b RowErrorBudget) Record(err error) RowErrorBudget {
	b.Errors = append(slices.Clip(b.Errors), err)
	return b
}

func (b RowErrorBudget) Exhausted() bool {
	return len(b.Errors) > b.Max
}

// ListPage is the parsed content of one page of the candidature list.
type ListPage struct {
	Rows []Row
	// NextPage is only meaningful if HasNext is set.
	NextPage int
	HasNext  bool
	// TokenError is set when the next control exists but carries no
	// usable page token, the page is then treated as the last one.
	TokenError error
	// Budget is the input budget with this page's row errors recorded.
	Budget    RowErrorBudget
	Abandoned bool
}

var pageTokenRegex = regexp.MustCompile(`pag=(\d+)`)

// ParsePageToken extracts the page number from the action expression of
// the "next" control.
func ParsePageToken(onclick string) (int, error) {
	groups := pageTokenRegex.FindStringSubmatch(onclick)
	if len(groups) < 2 {
		return 0, fmt.Errorf("no page token in %q", onclick)
	}
	return strconv.Atoi(groups[1])
}

// ParseListPage extracts the candidature rows and the pagination token from
// the markup of a list page. Relative detail links are resolved against
// base.
func ParseListPage(ctx context.Context, markup string, base *url.URL, budget RowErrorBudget) (ListPage, error) {
	_, span := tracer.Start(ctx, "ParseListPage")
	defer span.End()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse html")
		return ListPage{}, err
	}

	page := ListPage{Budget: budget}
	doc.Find("ul#application-list li").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		id := item.AttrOr("id", "")
		if !strings.HasPrefix(id, "inscription") {
			return true
		}

		row, err := parseRow(item, base)
		if err != nil {
			page.Budget = page.Budget.Record(err)
			if page.Budget.Exhausted() {
				page.Abandoned = true
				return false
			}
			return true
		}
		page.Rows = append(page.Rows, row)
		return true
	})

	next := doc.Find("button.pagination-btn--next").First()
	if next.Length() > 0 {
		token, err := ParsePageToken(next.AttrOr("onclick", ""))
		if err != nil {
			page.TokenError = err
		} else {
			page.NextPage = token
			page.HasNext = true
		}
	}

	span.SetAttributes(
		attribute.Int("rows", len(page.Rows)),
		attribute.Int("row_errors", len(page.Budget.Errors)),
		attribute.Bool("has_next", page.HasNext),
	)
	return page, nil
}

func parseRow(item *goquery.Selection, base *url.URL) (Row, error) {
	id := item.AttrOr("id", "")
	fail := func(reason string) (Row, error) {
		return Row{}, &RowParseError{RowID: id, Reason: reason}
	}

	div := item.Find("div").First()
	if div.Length() == 0 {
		return fail("missing content block")
	}

	infoItems := div.Find("ul > li")
	if infoItems.Length() != 2 {
		return fail(fmt.Sprintf("expected 2 info items, got %d", infoItems.Length()))
	}
	lastSeen := infoItems.Eq(0).Find("span").First()
	if lastSeen.Length() == 0 {
		return fail("missing last seen")
	}
	statusClasses := htmlutil.Classes(infoItems.Eq(1).Find("span").First())
	if len(statusClasses) == 0 {
		return fail("missing status icon")
	}

	anchor := div.Find("h2").First().Find("a").First()
	title := anchor.Find("span").First()
	if title.Length() == 0 {
		return fail("missing title")
	}
	href, ok := anchor.Attr("href")
	if !ok {
		return fail("missing details link")
	}

	company := div.Find("h3").First().
		Find("span").First().
		Find("a").First().
		Find("span").First()
	if company.Length() == 0 {
		return fail("missing company")
	}

	return Row{
		Title:       htmlutil.Text(title),
		CompanyName: htmlutil.Text(company),
		LastSeen:    htmlutil.Text(lastSeen),
		StatusIcon:  candidature.ParseIconKey(statusClasses[len(statusClasses)-1]),
		DetailsURL:  htmlutil.ResolveHref(base, href),
	}, nil
}
