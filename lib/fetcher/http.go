package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type HTTPOptions struct {
	// Cookie is the raw Cookie header of a logged in browser session.
	Cookie    string
	UserAgent string
	Timeout   time.Duration
	// Retries is the number of extra attempts made on network errors and
	// 5xx responses.
	Retries   int
	RetryWait time.Duration
	Dump      Dump
}

// HTTP fetches pages with plain requests, reusing a session cookie copied
// from a browser. Pages that need javascript to render will come back
// incomplete, use Browser for those.
type HTTP struct {
	client *resty.Client
	dump   Dump
}

func NewHTTP(opts HTTPOptions) *HTTP {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", opts.UserAgent)
	if opts.Cookie != "" {
		client.SetHeader("cookie", opts.Cookie)
	}
	client.SetTimeout(opts.Timeout)
	client.SetRetryCount(opts.Retries)
	client.SetRetryWaitTime(opts.RetryWait)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		return err != nil || res.StatusCode() >= 500
	})
	instrumentClient(client)

	return &HTTP{client: client, dump: opts.Dump}
}

func (h *HTTP) Fetch(ctx context.Context, pageURL string, delay time.Duration) (string, error) {
	res, err := h.client.R().
		SetContext(ctx).
		Get(pageURL)
	if err != nil {
		return "", err
	}
	if res.IsError() {
		return "", fmt.Errorf("GET %s: %s", pageURL, res.Status())
	}
	if loginRedirect(pageURL, res) {
		return "", fmt.Errorf("GET %s: redirected to %s, is the session cookie still valid?", pageURL, res.RawResponse.Request.URL)
	}

	markup := res.String()
	if h.dump != nil {
		h.dump.Write(pageURL, markup)
	}
	return markup, Pause(ctx, delay)
}

// loginRedirect reports whether the request ended up on a different
// path than requested, which is what an expired session looks like.
func loginRedirect(pageURL string, res *resty.Response) bool {
	if res.RawResponse == nil || res.RawResponse.Request == nil {
		return false
	}
	requested, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return res.RawResponse.Request.URL.Path != requested.Path
}

func instrumentClient(client *resty.Client) {
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), fmt.Sprintf("http %s", req.Method))
		slog.DebugContext(ctx, "start request", "method", req.Method, "url", req.URL)
		req.SetContext(ctx)
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		span := trace.SpanFromContext(res.Request.Context())
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", res.Request.Method),
			attribute.String("http.url", res.Request.URL),
			attribute.Int("http.status_code", res.StatusCode()),
		)
		slog.DebugContext(
			res.Request.Context(), "request finished",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"status", res.StatusCode(),
			"duration", res.Time(),
		)
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		span := trace.SpanFromContext(req.Context())
		defer span.End()

		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		slog.ErrorContext(
			req.Context(), "request failed",
			"method", req.Method,
			"url", req.URL,
			"err", err,
		)
	})
}
