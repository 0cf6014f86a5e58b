// Package reconcile crawls the candidature list and merges it with the
// snapshot of the previous run, fetching detail pages only for
// candidatures whose status may have moved.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"infojobs-candidatures/internal/assert"
	"infojobs-candidatures/lib/candidature"
	"infojobs-candidatures/lib/infojobs"
	"infojobs-candidatures/lib/telemetry"

	"github.com/PuerkitoBio/purell"
	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/reconcile")
var meter = otel.Meter("lib/reconcile")

var listPageCounter, _ = meter.Int64Counter("reconcile.list_pages")
var detailFetchCounter, _ = meter.Int64Counter("reconcile.detail_fetches")
var reusedCounter, _ = meter.Int64Counter("reconcile.reused")

const (
	DefaultBaseURL     = "https://www.infojobs.net"
	DefaultListURL     = DefaultBaseURL + "/candidate/applications/list.xhtml"
	DefaultNextPageURL = DefaultListURL + "?&showDescartadas=false&pag="

	DefaultMaxRowErrors = 3

	// NearMatchThreshold is the Jaro-Winkler similarity above which an
	// unmatched title is reported as a likely rename.
	NearMatchThreshold = 0.9
)

// ErrPageLimit is returned when the crawl would fetch more list pages than
// Config.MaxPages allows.
var ErrPageLimit = errors.New("list page limit exceeded")

// Fetcher retrieves the markup behind a url, pausing for delay after the
// page has been retrieved.
type Fetcher interface {
	Fetch(ctx context.Context, url string, delay time.Duration) (string, error)
}

type Config struct {
	// ListURL is the first page of the candidature list.
	ListURL string
	// NextPageURL is the prefix the pagination token is appended to.
	NextPageURL string
	// BaseURL resolves relative links on the parsed pages.
	BaseURL string
	Delay   time.Duration
	// MaxRowErrors is the number of row failures absorbed per page.
	MaxRowErrors int
	// MaxPages bounds the crawl, 0 means unbounded.
	MaxPages int
}

func (c Config) withDefaults() Config {
	if c.ListURL == "" {
		c.ListURL = DefaultListURL
	}
	if c.NextPageURL == "" {
		c.NextPageURL = DefaultNextPageURL
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.MaxRowErrors <= 0 {
		c.MaxRowErrors = DefaultMaxRowErrors
	}
	return c
}

type Stats struct {
	ListPages      int
	DetailFetches  int
	Reused         int
	RowErrors      int
	AbandonedPages int
}

type Result struct {
	// Candidatures are in the order they were encountered while crawling.
	Candidatures []candidature.Candidature
	Stats        Stats
}

type Engine struct {
	config  Config
	base    *url.URL
	fetcher Fetcher
	tel     telemetry.API
}

func New(config Config, fetcher Fetcher, tel telemetry.API) (*Engine, error) {
	assert.NotNil(fetcher)
	assert.NotNil(tel)

	config = config.withDefaults()
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Engine{
		config:  config,
		base:    base,
		fetcher: fetcher,
		tel:     telemetry.NewScopedAPI("reconcile", tel),
	}, nil
}

// ShouldReuse decides whether a snapshot record can stand in for a list
// row without fetching its detail page. The record is reused if its latest
// event starts with the row's status token or if the row only shows the
// applied marker.
func ShouldReuse(past candidature.Candidature, rowIcon candidature.IconKey) bool {
	if rowIcon == candidature.IconCheck || rowIcon == candidature.IconApplied {
		return true
	}
	latest, ok := past.LatestEvent()
	if !ok {
		return false
	}
	return latest.Icon.HasPrefix(rowIcon)
}

func normalizePageURL(raw string) string {
	normalized, err := purell.NormalizeURLString(
		raw,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)
	if err != nil {
		return raw
	}
	return normalized
}

// Run crawls every list page and returns the reconciled result set. past
// is only read. Nothing is returned on error, a partial crawl must not be
// persisted.
func (e *Engine) Run(ctx context.Context, past []candidature.Candidature) (Result, error) {
	ctx, span := tracer.Start(ctx, "Engine.Run")
	defer span.End()

	result, err := e.run(ctx, past)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconciliation failed")
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("list_pages", result.Stats.ListPages),
		attribute.Int("detail_fetches", result.Stats.DetailFetches),
		attribute.Int("reused", result.Stats.Reused),
		attribute.Int("row_errors", result.Stats.RowErrors),
	)
	e.tel.ReportCount("list-pages", int64(result.Stats.ListPages))
	e.tel.ReportCount("detail-fetches", int64(result.Stats.DetailFetches))
	e.tel.ReportCount("reused", int64(result.Stats.Reused))
	return result, nil
}

func (e *Engine) run(ctx context.Context, past []candidature.Candidature) (Result, error) {
	var result Result
	visited := map[string]struct{}{}

	pageURL := e.config.ListURL
	pageNumber := 1
	for {
		if e.config.MaxPages > 0 && result.Stats.ListPages >= e.config.MaxPages {
			return Result{}, fmt.Errorf("%w: next page %d, limit %d", ErrPageLimit, pageNumber, e.config.MaxPages)
		}
		visited[normalizePageURL(pageURL)] = struct{}{}

		page, err := e.fetchListPage(ctx, pageURL, pageNumber)
		if err != nil {
			return Result{}, err
		}
		result.Stats.ListPages++

		err = e.reconcilePage(ctx, pageNumber, page, past, &result)
		if err != nil {
			return Result{}, err
		}

		if !page.HasNext {
			if page.TokenError != nil {
				e.tel.ReportWarning(
					"pagination",
					page.TokenError,
					telemetry.KV{Key: "page", Value: pageNumber},
				)
			}
			return result, nil
		}

		next := e.config.NextPageURL + strconv.Itoa(page.NextPage)
		if _, seen := visited[normalizePageURL(next)]; seen {
			e.tel.ReportWarning(
				"pagination",
				"next page was already visited",
				telemetry.KV{Key: "page", Value: pageNumber},
				telemetry.KV{Key: "url", Value: next},
			)
			return result, nil
		}
		pageURL = next
		pageNumber = page.NextPage
	}
}

func (e *Engine) fetchListPage(ctx context.Context, pageURL string, pageNumber int) (infojobs.ListPage, error) {
	markup, err := e.fetcher.Fetch(ctx, pageURL, e.config.Delay)
	if err != nil {
		return infojobs.ListPage{}, fmt.Errorf("fetch list page %d: %w", pageNumber, err)
	}
	listPageCounter.Add(ctx, 1)
	e.tel.ReportDebug("fetched list page", telemetry.KV{Key: "page", Value: pageNumber})

	page, err := infojobs.ParseListPage(ctx, markup, e.base, infojobs.NewRowErrorBudget(e.config.MaxRowErrors))
	if err != nil {
		return infojobs.ListPage{}, fmt.Errorf("parse list page %d: %w", pageNumber, err)
	}
	return page, nil
}

// reconcilePage appends the candidatures of a single list page to result.
// Detail pages that fail to parse are charged to the page's row budget.
func (e *Engine) reconcilePage(
	ctx context.Context,
	pageNumber int,
	page infojobs.ListPage,
	past []candidature.Candidature,
	result *Result,
) error {
	budget := page.Budget
	abandoned := page.Abandoned

	for _, row := range page.Rows {
		record, reused, err := e.reconcileRow(ctx, row, past)
		var detailErr *infojobs.DetailParseError
		if errors.As(err, &detailErr) {
			budget = budget.Record(fmt.Errorf("%s: %w", row.Key(), err))
			if budget.Exhausted() {
				abandoned = true
				break
			}
			continue
		}
		if err != nil {
			return err
		}

		if reused {
			result.Stats.Reused++
		} else {
			result.Stats.DetailFetches++
		}
		result.Candidatures = append(result.Candidatures, record)
	}

	for _, err := range budget.Errors {
		e.tel.ReportWarning("row-parse", err, telemetry.KV{Key: "page", Value: pageNumber})
	}
	result.Stats.RowErrors += len(budget.Errors)
	if abandoned {
		result.Stats.AbandonedPages++
		e.tel.ReportWarning(
			"row-parse",
			"too many row errors, abandoned the rest of the page",
			telemetry.KV{Key: "page", Value: pageNumber},
		)
	}
	return nil
}

func (e *Engine) reconcileRow(
	ctx context.Context,
	row infojobs.Row,
	past []candidature.Candidature,
) (candidature.Candidature, bool, error) {
	prior, found := candidature.Find(past, row.Key())
	if found && ShouldReuse(prior, row.StatusIcon) {
		reusedCounter.Add(ctx, 1)
		e.tel.ReportDebug("reused", telemetry.KV{Key: "candidature", Value: row.Key().String()})
		return prior, true, nil
	}
	if !found {
		e.reportNearMatch(row, past)
	}

	markup, err := e.fetcher.Fetch(ctx, row.DetailsURL, e.config.Delay)
	if err != nil {
		return candidature.Candidature{}, false, fmt.Errorf("fetch detail page of %s: %w", row.Key(), err)
	}
	detailFetchCounter.Add(ctx, 1)

	detail, err := infojobs.ParseDetailPage(ctx, markup, e.base)
	if err != nil {
		return candidature.Candidature{}, false, err
	}
	status, err := candidature.Resolve(detail.Events)
	if err != nil {
		return candidature.Candidature{}, false, fmt.Errorf("resolve status of %s: %w", row.Key(), err)
	}

	return candidature.Candidature{
		Title:                  row.Title,
		CompanyName:            row.CompanyName,
		LastSeen:               row.LastSeen,
		Location:               detail.Location,
		RegisteredAndVacancies: detail.RegisteredAndVacancies,
		Status:                 status,
		DetailsURL:             row.DetailsURL,
		OfferURL:               detail.OfferURL,
		Events:                 detail.Events,
	}, false, nil
}

func (e *Engine) reportNearMatch(row infojobs.Row, past []candidature.Candidature) {
	for _, c := range past {
		if c.CompanyName != row.CompanyName {
			continue
		}
		similarity := matchr.JaroWinkler(c.Title, row.Title, false)
		if similarity >= NearMatchThreshold {
			e.tel.ReportWarning(
				"near-match",
				"candidature not in snapshot but a similar title is",
				telemetry.KV{Key: "row", Value: row.Key().String()},
				telemetry.KV{Key: "snapshot", Value: c.Key().String()},
				telemetry.KV{Key: "similarity", Value: similarity},
			)
		}
	}
}
