package infojobs

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"infojobs-candidatures/lib/candidature"
	"infojobs-candidatures/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Detail is the content of a candidature's detail page.
type Detail struct {
	Location               string
	RegisteredAndVacancies string
	OfferURL               string
	// Events are in page order, newest first.
	Events []candidature.Event
}

type DetailParseError struct {
	Reason string
}

func (e *DetailParseError) Error() string {
	return fmt.Sprintf("parse detail page: %s", e.Reason)
}

// ParseDetailPage extracts the offer metadata and the timeline events of a
// detail page.
func ParseDetailPage(ctx context.Context, markup string, base *url.URL) (Detail, error) {
	_, span := tracer.Start(ctx, "ParseDetailPage")
	defer span.End()

	detail, err := parseDetailPage(markup, base)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse detail page")
		return Detail{}, err
	}
	span.SetAttributes(attribute.Int("events", len(detail.Events)))
	return detail, nil
}

func parseDetailPage(markup string, base *url.URL) (Detail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Detail{}, err
	}

	container := doc.Find("div.job-list").First()
	if container.Length() == 0 {
		return Detail{}, &DetailParseError{Reason: "missing job-list container"}
	}

	items := container.Find("div").First().Find("ul > li")
	if items.Length() != 2 {
		return Detail{}, &DetailParseError{
			Reason: fmt.Sprintf("expected 2 offer items, got %d", items.Length()),
		}
	}

	href, ok := container.Find("h2").First().Find("a").First().Attr("href")
	if !ok {
		return Detail{}, &DetailParseError{Reason: "missing offer link"}
	}

	detail := Detail{
		Location:               htmlutil.Text(items.Eq(0)),
		RegisteredAndVacancies: htmlutil.Text(items.Eq(1)),
		OfferURL:               htmlutil.ResolveHref(base, href),
	}

	var eventErr error
	doc.Find("li.timeline-event").EachWithBreak(func(i int, item *goquery.Selection) bool {
		event, err := parseEvent(item)
		if err != nil {
			eventErr = fmt.Errorf("event %d: %w", i, err)
			return false
		}
		detail.Events = append(detail.Events, event)
		return true
	})
	if eventErr != nil {
		return Detail{}, eventErr
	}
	if len(detail.Events) == 0 {
		return Detail{}, &DetailParseError{Reason: "timeline has no events"}
	}

	return detail, nil
}

func parseEvent(item *goquery.Selection) (candidature.Event, error) {
	label := item.Find("p").First()
	if label.Length() == 0 {
		return candidature.Event{}, &DetailParseError{Reason: "missing event label"}
	}
	date := item.Find("time").First()
	if date.Length() == 0 {
		return candidature.Event{}, &DetailParseError{Reason: "missing event date"}
	}
	classes := htmlutil.Classes(item.Find("span").First())
	// the first class is the generic icon class shared by every marker
	if len(classes) < 2 {
		return candidature.Event{}, &DetailParseError{Reason: "missing event icon"}
	}

	return candidature.Event{
		Label: htmlutil.Text(label),
		Date:  htmlutil.Text(date),
		Icon:  candidature.ParseIconKey(strings.Join(classes[1:], " ")),
	}, nil
}
