// Package fetch retrieves linked stylesheets for documents processed
// statically. Retrieval is same-origin only, size-capped and
// context-cancellable; bodies come back decoded to UTF-8.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/devknoll/container-query-polyfill/config"
)

var (
	// ErrCrossOrigin rejects references whose resolved URL does not share
	// scheme and host with the document base.
	ErrCrossOrigin = errors.New("stylesheet is not same-origin")
	// ErrTooLarge rejects bodies over the configured transfer cap.
	ErrTooLarge = errors.New("stylesheet exceeds size limit")
)

// Stylesheet is one retrieved stylesheet: the resolved URL it came from and
// its body, decoded to UTF-8.
type Stylesheet struct {
	URL  *url.URL
	Body []byte
}

// Fetcher retrieves stylesheets over http(s) within configured limits. Safe
// for concurrent use.
type Fetcher struct {
	client  *http.Client
	maxSize int64
	log     *zap.Logger
}

func New(cfg config.FetchConfig, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		maxSize: cfg.MaxSize,
		log:     log.Named("fetch"),
	}
}

// Fetch resolves href against base and retrieves the stylesheet body. The
// resolved URL must keep the base's scheme and host; anything else is
// rejected before a request goes out. Canceling the context aborts the
// transfer and nothing is returned.
func (f *Fetcher) Fetch(ctx context.Context, base *url.URL, href string) (*Stylesheet, error) {
	if base == nil {
		return nil, errors.New("no base url to resolve stylesheet reference against")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("unable to parse stylesheet reference %q: %w", href, err)
	}
	src := base.ResolveReference(ref)
	if src.Scheme != base.Scheme || src.Host != base.Host {
		return nil, fmt.Errorf("%w: %s", ErrCrossOrigin, src.Redacted())
	}
	if src.Scheme != "http" && src.Scheme != "https" {
		return nil, fmt.Errorf("unsupported stylesheet scheme %q", src.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("unable to prepare stylesheet request: %w", err)
	}
	req.Header.Set("Accept", "text/css,*/*;q=0.1")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve stylesheet: %w", err)
	}
	defer cleanupResponseBody(res.Body)

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stylesheet request returned non success: %d (%s)", res.StatusCode, src.Redacted())
	}

	// Cap on the wire size, before any decoding can inflate it.
	raw, err := io.ReadAll(io.LimitReader(res.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("unable to read stylesheet body: %w", err)
	}
	if int64(len(raw)) > f.maxSize {
		return nil, fmt.Errorf("%w: %s is over %d bytes", ErrTooLarge, src.Redacted(), f.maxSize)
	}

	r, err := charset.NewReader(bytes.NewReader(raw), res.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("unable to decode stylesheet body: %w", err)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to decode stylesheet body: %w", err)
	}

	f.log.Debug("stylesheet retrieved",
		zap.String("url", src.Redacted()),
		zap.Int("size", len(body)))
	return &Stylesheet{URL: src, Body: body}, nil
}

// cleanupResponseBody drains the body so the connection can be reused.
func cleanupResponseBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
