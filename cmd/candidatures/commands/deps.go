package commands

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"infojobs-candidatures/lib/chrono"
	"infojobs-candidatures/lib/configutil"
	"infojobs-candidatures/lib/fetcher"
	"infojobs-candidatures/lib/snapshotstore"

	"github.com/go-rod/rod/lib/launcher"
)

func openStore(ctx context.Context) (snapshotstore.Store, func() error, error) {
	return snapshotstore.Open(ctx, config.Snapshot, chrono.NewStandardTime())
}

// newFetcher builds the fetcher of the given kind, the returned closer
// releases the browser if one was started.
func newFetcher(ctx context.Context, kind string) (fetcher.Fetcher, func() error, error) {
	var dump fetcher.Dump
	if config.DumpDir != "" {
		d, err := fetcher.NewDirectoryDump(configutil.ExpandPath(config.DumpDir))
		if err != nil {
			return nil, nil, fmt.Errorf("create dump dir: %w", err)
		}
		dump = d
	}
	noop := func() error { return nil }

	switch kind {
	case "browser":
		b, err := fetcher.NewBrowser(ctx, fetcher.BrowserOptions{
			RemoteURL:         config.Fetcher.Browser.RemoteURL,
			UserDataDir:       configutil.ExpandPath(config.Fetcher.Browser.UserDataDir),
			Headless:          config.Fetcher.Browser.Headless,
			NavigationTimeout: time.Duration(config.Fetcher.Browser.NavigationTimeout) * time.Second,
			Dump:              dump,
		})
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	case "http":
		return fetcher.NewHTTP(fetcher.HTTPOptions{
			Cookie:  config.Fetcher.HTTP.Cookie,
			Retries: config.Fetcher.HTTP.Retries,
			Timeout: time.Duration(config.Fetcher.HTTP.Timeout) * time.Second,
			Dump:    dump,
		}), noop, nil
	case "dir":
		if config.Fetcher.Dir == "" {
			return nil, nil, fmt.Errorf("the dir fetcher needs fetcher.dir or dump_dir to be configured")
		}
		return fetcher.NewDirectory(configutil.ExpandPath(config.Fetcher.Dir)), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown fetcher %q, expected browser, http or dir", kind)
	}
}

// openInBrowser opens a local file in the default browser.
func openInBrowser(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	launcher.Open(u.String())
	return nil
}
