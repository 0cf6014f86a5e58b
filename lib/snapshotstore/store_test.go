package snapshotstore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"infojobs-candidatures/lib/candidature"
	"infojobs-candidatures/lib/chrono"
	configlibsql "infojobs-candidatures/lib/configutil/libsql"
	"infojobs-candidatures/lib/telemetry"

	"github.com/gofrs/flock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() []candidature.Candidature {
	return []candidature.Candidature{
		{
			Title:                  "Dev",
			CompanyName:            "Acme",
			LastSeen:               "hace 2 días",
			Location:               "Madrid",
			RegisteredAndVacancies: "12 inscritos / 1 vacante",
			Status:                 candidature.KindCVRead.Status(),
			DetailsURL:             "https://www.infojobs.net/candidate/applications/detail.xhtml?id=1",
			OfferURL:               "https://www.infojobs.net/madrid/dev/of-i1",
			Events: []candidature.Event{
				{Label: "CV leído", Date: "02/01/2024", Icon: candidature.IconCVRead},
				{Label: "Inscrito", Date: "01/01/2024", Icon: candidature.IconApplied},
			},
		},
		{
			Title:       "Ops <script>",
			CompanyName: "Globex & Co",
			Status:      candidature.KindRejected.Status(),
			Events: []candidature.Event{
				{Label: "Descartado", Date: "03/01/2024", Icon: candidature.IconRejected},
			},
		},
	}
}

func TestJSONFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewJSONFile(filepath.Join(t.TempDir(), "data", "results.json"))

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = store.SavedAt(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Save(ctx, sampleSnapshot()))

	loaded, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(sampleSnapshot(), loaded); diff != "" {
		t.Fatal(diff)
	}

	savedAt, ok, err := store.SavedAt(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.WithinDuration(t, time.Now(), savedAt, time.Minute)

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	require.Contains(t, string(raw), `"company_name": "Globex & Co"`)
	require.Contains(t, string(raw), `"emoji": "👀"`)
	require.Contains(t, string(raw), `"icon": "iconfont-Viewdetails focus"`)

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}
}

func TestJSONFileLoadsLegacyResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	// statuses written by older versions are not trusted
	legacy := `[
  {
    "title": "Dev",
    "company_name": "Acme",
    "last_seen": "hace 2 días",
    "location": "Madrid",
    "registered_and_vacancies": "12 inscritos",
    "status": {"name": "Applied", "value": 0, "emoji": "✅"},
    "details_url": "https://www.infojobs.net/d?id=1",
    "offer_url": "https://www.infojobs.net/of-i1",
    "events": [
      {"event": "Descartado", "date": "03/01/2024", "icon": "iconfont-Close alert"},
      {"event": "Inscrito", "date": "01/01/2024", "icon": "iconfont-Check focus"}
    ]
  }
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0600))

	loaded, ok, err := NewJSONFile(path).Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, loaded, 1)
	require.Equal(t, candidature.KindRejected.Status(), loaded[0].Status)
	require.Equal(t, candidature.IconRejected, loaded[0].Events[0].Icon)
}

func TestJSONFileSaveLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	other := flock.New(path + ".lock")
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer other.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err = NewJSONFile(path).Save(ctx, sampleSnapshot())
	require.ErrorIs(t, err, ErrLocked)

	_, err = os.Stat(path)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestEncodeEmptySnapshot(t *testing.T) {
	buff, err := EncodeJSON(nil)
	require.NoError(t, err)
	require.Equal(t, "[]\n", string(buff))
}

func newMemorySQL(t testing.TB, clock chrono.TimeAPI, keep int) *SQL {
	t.Helper()
	database, err := configlibsql.Struct{File: ":memory:"}.OpenDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store, err := NewSQL(context.Background(), database, clock, keep)
	require.NoError(t, err)
	return store
}

type steppingClock struct {
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.now = c.now.Add(time.Minute)
	return c.now
}

func TestSQLStore(t *testing.T) {
	ctx := context.Background()
	clock := &steppingClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := newMemorySQL(t, clock, 2)

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	first := sampleSnapshot()
	require.NoError(t, store.Save(ctx, first))
	second := first[:1]
	require.NoError(t, store.Save(ctx, second))

	loaded, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(second, loaded); diff != "" {
		t.Fatal(diff)
	}

	savedAt, ok, err := store.SavedAt(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, savedAt.Equal(time.Date(2024, 1, 1, 0, 2, 0, 0, time.UTC)))

	require.NoError(t, store.Save(ctx, nil))
	runs, err := store.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, 0, runs[0].Count)
	require.Equal(t, 1, runs[1].Count)

	older, err := store.LoadRun(ctx, runs[1].ID)
	require.NoError(t, err)
	if diff := cmp.Diff(second, older); diff != "" {
		t.Fatal(diff)
	}

	empty, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, empty)

	var orphans int
	err = store.db.QueryRow(`select count(*) from snapshot_candidature where run_id not in (select id from snapshot_run)`).Scan(&orphans)
	require.NoError(t, err)
	require.Equal(t, 0, orphans)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	clock := chrono.NewStandardTime()

	store, closer, err := Open(ctx, Config{Path: filepath.Join(t.TempDir(), "results.json")}, clock)
	require.NoError(t, err)
	require.IsType(t, JSONFile{}, store)
	require.NoError(t, closer())

	store, closer, err = Open(ctx, Config{
		Kind:     KindSQL,
		Database: configlibsql.Struct{File: filepath.Join(t.TempDir(), "snapshots.db")},
	}, clock)
	require.NoError(t, err)
	require.IsType(t, &SQL{}, store)
	require.NoError(t, store.Save(ctx, sampleSnapshot()))
	require.NoError(t, closer())

	_, _, err = Open(ctx, Config{Kind: "mongo"}, clock)
	require.Error(t, err)
	_, _, err = Open(ctx, Config{}, clock)
	require.Error(t, err)
}

type fakeStore struct {
	savedAt time.Time
	saved   bool
	err     error
}

func (f fakeStore) Load(context.Context) ([]candidature.Candidature, bool, error) {
	return nil, f.saved, f.err
}

func (f fakeStore) Save(context.Context, []candidature.Candidature) error {
	return nil
}

func (f fakeStore) SavedAt(context.Context) (time.Time, bool, error) {
	return f.savedAt, f.saved, f.err
}

type fakePrompter struct {
	answer bool
	asked  *int
}

func (p fakePrompter) Confirm(string) (bool, error) {
	*p.asked++
	return p.answer, nil
}

func TestCanRefresh(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := chrono.FixedTime{At: now}

	cases := []struct {
		name    string
		store   fakeStore
		force   bool
		answer  bool
		refresh bool
		asked   int
	}{
		{name: "force", store: fakeStore{saved: true, savedAt: now}, force: true, refresh: true},
		{name: "no snapshot", store: fakeStore{}, refresh: true},
		{name: "stale", store: fakeStore{saved: true, savedAt: now.Add(-time.Hour)}, refresh: true},
		{name: "stale by days", store: fakeStore{saved: true, savedAt: now.Add(-49 * time.Hour)}, refresh: true},
		{name: "fresh confirmed", store: fakeStore{saved: true, savedAt: now.Add(-time.Minute)}, answer: true, refresh: true, asked: 1},
		{name: "fresh declined", store: fakeStore{saved: true, savedAt: now.Add(-time.Minute)}, answer: false, refresh: false, asked: 1},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			asked := 0
			refresh, err := CanRefresh(
				context.Background(), c.store, clock,
				fakePrompter{answer: c.answer, asked: &asked},
				RefreshOptions{Force: c.force, Tel: &telemetry.Recorder{}},
			)
			require.NoError(t, err)
			require.Equal(t, c.refresh, refresh)
			require.Equal(t, c.asked, asked)
		})
	}

	_, err := CanRefresh(
		context.Background(), fakeStore{err: errors.New("disk")}, clock,
		fakePrompter{asked: new(int)}, RefreshOptions{},
	)
	require.Error(t, err)
}

func TestInputPrompter(t *testing.T) {
	cases := []struct {
		input  string
		answer bool
	}{
		{input: "y\n", answer: true},
		{input: "YES\n", answer: true},
		{input: "n\n", answer: false},
		{input: "\n", answer: false},
	}
	for _, c := range cases {
		var out bytes.Buffer
		prompter := NewInputPrompter(strings.NewReader(c.input), &out)
		answer, err := prompter.Confirm("Existing results will be overwritten, continue?")
		require.NoError(t, err)
		require.Equal(t, c.answer, answer, c.input)
		require.Contains(t, out.String(), "overwritten")
	}
}
