package infojobs

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"infojobs-candidatures/lib/candidature"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testBase, _ = url.Parse("https://www.infojobs.net")

func readFixture(t testing.TB, name string) string {
	t.Helper()
	buff, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(buff)
}

func TestParseListPage(t *testing.T) {
	page, err := ParseListPage(context.Background(), readFixture(t, "list_page.html"), testBase, NewRowErrorBudget(3))
	require.NoError(t, err)

	expected := []Row{
		{
			Title:       "Backend Developer",
			CompanyName: "Acme Corp",
			LastSeen:    "Última actualización: hace 2 días",
			StatusIcon:  candidature.IconCheck,
			DetailsURL:  "https://www.infojobs.net/candidate/applications/detail.xhtml?id=1001",
		},
		{
			Title:       "Data Engineer",
			CompanyName: "Globex",
			LastSeen:    "hace 5 días",
			StatusIcon:  "close",
			DetailsURL:  "https://www.infojobs.net/candidate/applications/detail.xhtml?id=1002",
		},
	}
	if diff := cmp.Diff(expected, page.Rows); diff != "" {
		t.Fatal(diff)
	}

	require.True(t, page.HasNext)
	require.Equal(t, 12, page.NextPage)
	require.NoError(t, page.TokenError)
	require.Empty(t, page.Budget.Errors)
	require.False(t, page.Abandoned)
}

func TestParseListPageLast(t *testing.T) {
	page, err := ParseListPage(context.Background(), readFixture(t, "list_page_last.html"), testBase, NewRowErrorBudget(3))
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	require.Equal(t, candidature.IconKey("view-details"), page.Rows[0].StatusIcon)
	require.False(t, page.HasNext)
	require.NoError(t, page.TokenError)
}

func TestParseListPageRowErrors(t *testing.T) {
	page, err := ParseListPage(context.Background(), readFixture(t, "list_page_broken.html"), testBase, NewRowErrorBudget(3))
	require.NoError(t, err)

	require.Len(t, page.Rows, 1)
	require.Equal(t, "Survivor", page.Rows[0].Title)

	require.True(t, page.Abandoned)
	require.Len(t, page.Budget.Errors, 4)
	for _, err := range page.Budget.Errors {
		var rowErr *RowParseError
		require.True(t, errors.As(err, &rowErr), err)
	}

	var rowErr *RowParseError
	require.ErrorAs(t, page.Budget.Errors[0], &rowErr)
	require.Equal(t, "inscription-3001", rowErr.RowID)

	require.False(t, page.HasNext)
	require.Error(t, page.TokenError)
}

func TestParseListPageLargerBudget(t *testing.T) {
	page, err := ParseListPage(context.Background(), readFixture(t, "list_page_broken.html"), testBase, NewRowErrorBudget(10))
	require.NoError(t, err)
	require.False(t, page.Abandoned)
	require.Len(t, page.Budget.Errors, 4)
	require.Equal(t, []string{"Survivor", "Never Reached"}, []string{page.Rows[0].Title, page.Rows[1].Title})
}

func TestParseListPageNoList(t *testing.T) {
	page, err := ParseListPage(context.Background(), "<html><body><p>login</p></body></html>", testBase, NewRowErrorBudget(3))
	require.NoError(t, err)
	require.Empty(t, page.Rows)
	require.False(t, page.HasNext)
}

func TestRowErrorBudget(t *testing.T) {
	budget := NewRowErrorBudget(1)
	first := budget.Record(errors.New("a"))
	require.Empty(t, budget.Errors)
	require.False(t, first.Exhausted())

	second := first.Record(errors.New("b"))
	other := first.Record(errors.New("c"))
	require.True(t, second.Exhausted())
	require.Len(t, first.Errors, 1)
	require.Equal(t, "b", second.Errors[1].Error())
	require.Equal(t, "c", other.Errors[1].Error())
}

func TestParsePageToken(t *testing.T) {
	cases := []struct {
		onclick string
		token   int
		err     bool
	}{
		{onclick: "location.href='?&showDescartadas=false&pag=2';", token: 2},
		{onclick: "location.href='?pag=15'", token: 15},
		{onclick: "pag=3&other=9", token: 3},
		{onclick: "goTo(next)", err: true},
		{onclick: "pag=", err: true},
		{onclick: "", err: true},
	}

	for _, c := range cases {
		t.Run(c.onclick, func(t *testing.T) {
			token, err := ParsePageToken(c.onclick)
			if c.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.token, token)
		})
	}
}

func TestParseDetailPage(t *testing.T) {
	detail, err := ParseDetailPage(context.Background(), readFixture(t, "detail_page.html"), testBase)
	require.NoError(t, err)

	expected := Detail{
		Location:               "Madrid",
		RegisteredAndVacancies: "57 inscritos / 1 vacante",
		OfferURL:               "https://www.infojobs.net/madrid/backend-developer/of-i1234567890",
		Events: []candidature.Event{
			{Label: "Tu CV ha sido leído", Date: "03/02/2024", Icon: candidature.IconCVRead},
			{Label: "Inscrito en la oferta", Date: "01/02/2024", Icon: candidature.IconApplied},
		},
	}
	if diff := cmp.Diff(expected, detail); diff != "" {
		t.Fatal(diff)
	}

	status, err := candidature.Resolve(detail.Events)
	require.NoError(t, err)
	require.Equal(t, candidature.KindCVRead.Status(), status)
}

func TestParseDetailPageErrors(t *testing.T) {
	cases := []struct {
		name   string
		markup string
	}{
		{name: "no events", markup: readFixture(t, "detail_page_no_events.html")},
		{name: "no container", markup: "<html><body><div class='other'></div></body></html>"},
		{
			name:   "one offer item",
			markup: `<div class="job-list"><h2><a href="/x">x</a></h2><div><ul><li>Madrid</li></ul></div></div>`,
		},
		{
			name:   "no offer link",
			markup: `<div class="job-list"><h2>x</h2><div><ul><li>a</li><li>b</li></ul></div></div>`,
		},
		{
			name: "event without icon modifier",
			markup: `<div class="job-list"><h2><a href="/x">x</a></h2><div><ul><li>a</li><li>b</li></ul></div></div>
<ul><li class="timeline-event"><span class="icon"></span><p>Inscrito</p><time>hoy</time></li></ul>`,
		},
		{
			name: "event without date",
			markup: `<div class="job-list"><h2><a href="/x">x</a></h2><div><ul><li>a</li><li>b</li></ul></div></div>
<ul><li class="timeline-event"><span class="icon iconfont-Check focus"></span><p>Inscrito</p></li></ul>`,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseDetailPage(context.Background(), c.markup, testBase)
			var parseErr *DetailParseError
			require.ErrorAs(t, err, &parseErr)
		})
	}
}
