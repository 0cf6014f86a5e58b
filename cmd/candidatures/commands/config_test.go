package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"infojobs-candidatures/lib/snapshotstore"

	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	t.Setenv(dataDirEnv, "")
	config := Config{DataDir: "/tmp/candidatures", DumpDir: "/tmp/pages"}.withDefaults()

	require.Equal(t, "/tmp/candidatures", config.DataDir)
	require.Equal(t, defaultDelay, config.delay())
	require.Equal(t, defaultKind, config.Fetcher.Kind)
	require.Equal(t, "/tmp/pages", config.Fetcher.Dir)
	require.Equal(t, defaultWatch, config.Watch.Schedule)
	require.Equal(t, snapshotstore.KindJSON, config.Snapshot.Kind)
	require.Equal(t, filepath.Join("/tmp/candidatures", resultsFile), config.Snapshot.Path)
	require.Empty(t, config.Snapshot.Database.File)

	config = Config{
		DataDir:  "/tmp/candidatures",
		Delay:    0.5,
		Snapshot: snapshotstore.Config{Kind: snapshotstore.KindSQL},
	}.withDefaults()
	require.Equal(t, 500*time.Millisecond, config.reconcileConfig().Delay)
	require.Equal(t, filepath.Join("/tmp/candidatures", snapshotsFile), config.Snapshot.Database.File)
}

func TestConfigDataDirFromEnv(t *testing.T) {
	t.Setenv(dataDirEnv, "/srv/candidatures")
	config := Config{DataDir: "/tmp/ignored"}.withDefaults()
	require.Equal(t, "/srv/candidatures", config.DataDir)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv(dataDirEnv, "")
	t.Setenv("TEST_COOKIE", "session=abc")

	dir := t.TempDir()
	path := filepath.Join(dir, configName)
	err := os.WriteFile(path, []byte(`{
	// comments are allowed
	data_dir: "`+dir+`",
	fetcher: {kind: "http", http: {cookie: "$TEST_COOKIE", retries: 2}},
	reconcile: {max_pages: 5},
}`), 0600)
	require.NoError(t, err)

	config, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, dir, config.DataDir)
	require.Equal(t, "http", config.Fetcher.Kind)
	require.Equal(t, "session=abc", config.Fetcher.HTTP.Cookie)
	require.Equal(t, 5, config.reconcileConfig().MaxPages)
}
