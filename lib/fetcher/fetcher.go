// Package fetcher retrieves the markup of infojobs pages, either through a
// real browser session, plain HTTP with a copied session cookie or a
// directory of previously dumped pages.
package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("lib/fetcher")

// Fetcher retrieves the markup behind a url and then waits for delay so
// consecutive requests are paced.
type Fetcher interface {
	Fetch(ctx context.Context, url string, delay time.Duration) (string, error)
}

// Pause blocks for delay, returning early with the context's error if ctx
// is done first.
func Pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dump receives every page a fetcher retrieves.
type Dump interface {
	Write(pageURL, markup string)
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// PageFileName is the name a page is dumped under, it is stable for a
// given url so a dump directory can be replayed with Directory.
func PageFileName(pageURL string) string {
	name := pageURL
	if _, rest, ok := strings.Cut(name, "://"); ok {
		name = rest
	}
	name = unsafeFileChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	return name + ".html"
}

// DirectoryDump writes pages to a directory, one file per url.
type DirectoryDump struct {
	directory string
}

func NewDirectoryDump(dir string) (DirectoryDump, error) {
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return DirectoryDump{}, err
	}
	return DirectoryDump{directory: dir}, nil
}

func (o DirectoryDump) Write(pageURL, markup string) {
	path := filepath.Join(o.directory, PageFileName(pageURL))
	err := os.WriteFile(path, []byte(markup), 0600)
	if err != nil {
		slog.Warn("failed to write page dump", "url", pageURL, "path", path, "err", err)
	}
}

var ErrPageNotSaved = errors.New("page not saved")

// Directory serves pages previously written by a DirectoryDump. It never
// pauses since nothing goes over the network.
type Directory struct {
	dir string
}

func NewDirectory(dir string) Directory {
	return Directory{dir: dir}
}

func (d Directory) Fetch(ctx context.Context, pageURL string, _ time.Duration) (string, error) {
	_, span := tracer.Start(ctx, "Directory.Fetch")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	buff, err := os.ReadFile(filepath.Join(d.dir, PageFileName(pageURL)))
	if errors.Is(err, os.ErrNotExist) {
		return "", &PageNotSavedError{URL: pageURL}
	}
	if err != nil {
		return "", err
	}
	return string(buff), nil
}

type PageNotSavedError struct {
	URL string
}

func (e *PageNotSavedError) Error() string {
	return "page not saved: " + e.URL
}

func (e *PageNotSavedError) Is(target error) bool {
	return target == ErrPageNotSaved
}
