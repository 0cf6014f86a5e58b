package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type BrowserOptions struct {
	// RemoteURL is the devtools websocket url of an already running
	// Chrome, when empty a local Chrome is launched.
	RemoteURL string
	// UserDataDir is the profile the local Chrome is launched with, it
	// must already be logged in to infojobs.
	UserDataDir string
	// Headless hides the launched Chrome window.
	Headless          bool
	NavigationTimeout time.Duration
	Dump              Dump
}

// Browser fetches pages through a real Chrome session, so they render the
// same way they do for the user.
type Browser struct {
	opts     BrowserOptions
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func NewBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}

	b := &Browser{opts: opts}
	controlURL := opts.RemoteURL
	if controlURL == "" {
		l := launcher.New().
			Headless(opts.Headless).
			Set("disable-blink-features", "AutomationControlled")
		if opts.UserDataDir != "" {
			l = l.UserDataDir(opts.UserDataDir)
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
		b.launcher = l
		slog.DebugContext(ctx, "launched local chrome", "url", controlURL, "user_data_dir", opts.UserDataDir)
	}

	b.browser = rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.browser.Connect(); err != nil {
		b.browser = nil
		b.Close()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	return b, nil
}

func (b *Browser) Fetch(ctx context.Context, pageURL string, delay time.Duration) (string, error) {
	ctx, span := tracer.Start(ctx, "Browser.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", pageURL))

	markup, err := b.render(ctx, pageURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to render page")
		return "", err
	}
	if b.opts.Dump != nil {
		b.opts.Dump.Write(pageURL, markup)
	}
	return markup, Pause(ctx, delay)
}

func (b *Browser) render(ctx context.Context, pageURL string) (string, error) {
	page, err := stealth.Page(b.browser)
	if err != nil {
		return "", fmt.Errorf("open tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, b.opts.NavigationTimeout)
	defer cancel()

	err = page.Context(navCtx).Navigate(pageURL)
	if err != nil {
		return "", fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		slog.WarnContext(ctx, "wait load timed out, using what has rendered", "url", pageURL, "err", err)
	}

	markup, err := page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("read html of %s: %w", pageURL, err)
	}
	return markup, nil
}

func (b *Browser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.launcher != nil {
		// Cleanup removes the user data dir, which must survive when it
		// holds the logged in profile
		if b.opts.UserDataDir != "" {
			b.launcher.Kill()
		} else {
			b.launcher.Cleanup()
		}
		b.launcher = nil
	}
	return err
}
