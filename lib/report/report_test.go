package report

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"infojobs-candidatures/lib/candidature"

	"github.com/stretchr/testify/require"
)

func sampleSet() []candidature.Candidature {
	return []candidature.Candidature{
		{
			Title:       "Ops",
			CompanyName: "Globex",
			Location:    "Remoto",
			Status:      candidature.KindRejected.Status(),
			DetailsURL:  "https://www.infojobs.net/d?id=2",
		},
		{
			Title:       "Dev <senior>",
			CompanyName: "Acme & Sons",
			Location:    "Madrid",
			Status:      candidature.KindIncluded.Status(),
			OfferURL:    "https://www.infojobs.net/of-i1",
			DetailsURL:  "https://www.infojobs.net/d?id=1",
		},
	}
}

var generatedAt = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func TestHTML(t *testing.T) {
	var buff bytes.Buffer
	page := NewPage(sampleSet(), candidature.OrderNatural, generatedAt)
	page.Changes = []candidature.Change{{
		Kind: candidature.ChangeNew,
		Key:  candidature.Key{Title: "Dev <senior>", CompanyName: "Acme & Sons"},
		To:   candidature.KindIncluded.Status(),
	}}
	require.NoError(t, HTML(&buff, page))

	out := buff.String()
	require.Contains(t, out, "<title>InfoJobs candidatures</title>")
	require.Contains(t, out, "Dev &lt;senior&gt;")
	require.NotContains(t, out, "Dev <senior>")
	require.Contains(t, out, `<a href="https://www.infojobs.net/of-i1">`)
	require.Contains(t, out, `class="rejected"`)
	require.Contains(t, out, "2024-03-01 09:30")
	require.Contains(t, out, "new: Dev &lt;senior&gt; @ Acme &amp; Sons")

	// the changes list is rendered above the table, only rows count for order
	_, rows, ok := strings.Cut(out, "<tbody>")
	require.True(t, ok)
	require.Less(t, strings.Index(rows, "Ops"), strings.Index(rows, "Dev &lt;senior&gt;"))
	require.NotContains(t, rows, "new:")
}

func TestSortedPage(t *testing.T) {
	page := NewPage(sampleSet(), candidature.OrderByStatus, generatedAt)
	require.True(t, page.Sorted)
	require.Equal(t, "Dev <senior>", page.Candidatures[0].Title)
	require.Equal(t, "Ops", page.Candidatures[1].Title)

	var buff bytes.Buffer
	require.NoError(t, HTML(&buff, page))
	require.Contains(t, buff.String(), "sorted by status")
}

func TestMarkdown(t *testing.T) {
	var buff bytes.Buffer
	require.NoError(t, Markdown(&buff, NewPage(sampleSet(), candidature.OrderNatural, generatedAt)))

	out := buff.String()
	require.Contains(t, out, "# InfoJobs candidatures")
	require.Contains(t, out, "](https://www.infojobs.net/of-i1)")
	require.Contains(t, out, "Globex")
	require.NotContains(t, out, "<table>")
}

func TestWritePages(t *testing.T) {
	dir := t.TempDir()
	natural, sorted, err := WritePages(dir, sampleSet(), nil, generatedAt)
	require.NoError(t, err)
	require.Equal(t, PagePath(dir, candidature.OrderNatural), natural)
	require.Equal(t, PagePath(dir, candidature.OrderByStatus), sorted)

	for _, path := range []string{natural, sorted} {
		buff, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Contains(t, string(buff), "Globex")
	}
}

func TestTable(t *testing.T) {
	var buff bytes.Buffer
	Table(&buff, sampleSet())

	out := buff.String()
	require.Contains(t, out, "TITLE")
	require.Contains(t, out, "Acme & Sons")
	require.Contains(t, out, candidature.SymbolRejected)
	require.Contains(t, out, "╭")
}

func TestChanges(t *testing.T) {
	var buff bytes.Buffer
	require.NoError(t, Changes(&buff, nil))
	require.Equal(t, "no changes\n", buff.String())

	buff.Reset()
	require.NoError(t, Changes(&buff, []candidature.Change{{
		Kind: candidature.ChangeGone,
		Key:  candidature.Key{Title: "Ops", CompanyName: "Globex"},
		From: candidature.KindRejected.Status(),
	}}))
	require.Equal(t, "gone: Ops @ Globex (was ❌ Rejected)\n", buff.String())
}
