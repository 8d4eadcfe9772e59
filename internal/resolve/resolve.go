// Package resolve looks up display metadata for stream URLs.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mixtape/mixtape/internal/song"
)

var (
	// ErrUnsupported is returned for URLs the resolver cannot look up.
	ErrUnsupported = errors.New("resolve: unsupported url")
	// ErrNotFound is returned when the service knows nothing about the URL,
	// which includes private and removed videos.
	ErrNotFound = errors.New("resolve: not found")
)

// DefaultEndpoint is YouTube's oEmbed endpoint.
const DefaultEndpoint = "https://www.youtube.com/oembed"

// Metadata describes a stream. Duration is 0 when the service does not
// report it.
type Metadata struct {
	Title        string
	Author       string
	ThumbnailURL string
	Duration     float64
}

// Resolver fetches stream metadata.
type Resolver interface {
	Resolve(ctx context.Context, url string) (Metadata, error)
}

type Options struct {
	Endpoint   string
	Timeout    time.Duration
	Retries    int
	RetryWait  time.Duration
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// OEmbed resolves YouTube URLs through an oEmbed endpoint.
type OEmbed struct {
	client   *resty.Client
	endpoint string
	logger   *slog.Logger
}

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func NewOEmbed(opts Options) *OEmbed {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	client := resty.New()
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	}
	client.
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(4 * opts.RetryWait).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &OEmbed{client: client, endpoint: opts.Endpoint, logger: opts.Logger}
}

// Resolve looks up a YouTube URL. Other URLs return ErrUnsupported.
func (o *OEmbed) Resolve(ctx context.Context, url string) (Metadata, error) {
	id := song.VideoID(url)
	if id == "" {
		return Metadata{}, fmt.Errorf("%w: %s", ErrUnsupported, url)
	}

	var body oembedResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"url":    url,
			"format": "json",
		}).
		SetResult(&body).
		Get(o.endpoint)
	if err != nil {
		return Metadata{}, fmt.Errorf("oembed request: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden:
		return Metadata{}, fmt.Errorf("%w: %s", ErrNotFound, url)
	default:
		return Metadata{}, fmt.Errorf("oembed request: unexpected status %d", resp.StatusCode())
	}

	md := Metadata{
		Title:        body.Title,
		Author:       body.AuthorName,
		ThumbnailURL: body.ThumbnailURL,
	}
	if md.ThumbnailURL == "" {
		md.ThumbnailURL = song.NewStream(url, "", song.KindYouTube, 0, "").ThumbnailURL
	}
	o.logger.Debug("resolved stream", slog.String("video_id", id), slog.String("title", md.Title))
	return md, nil
}

// Fill copies resolved metadata into fields of rec that are still empty or
// hold the placeholder title. Lookup failures are logged and ignored; the
// record stays valid without them. It reports whether rec changed.
func Fill(ctx context.Context, r Resolver, rec *song.Record, logger *slog.Logger) bool {
	if r == nil || rec.IsRaw() || !rec.Kind().IsStream() {
		return false
	}
	needTitle := rec.Title == "" || rec.Title == song.PlaceholderTitle
	if !needTitle && rec.ThumbnailURL != "" && rec.Artist != "" {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}
	md, err := r.Resolve(ctx, rec.URL)
	if err != nil {
		logger.Debug("resolve stream metadata", slog.String("url", rec.URL), slog.Any("err", err))
		return false
	}

	changed := false
	set := func(dst *string, val string, ok bool) {
		if ok && val != "" && *dst != val {
			*dst = val
			changed = true
		}
	}
	set(&rec.Title, md.Title, needTitle)
	set(&rec.Name, md.Title, needTitle || rec.Name == "")
	set(&rec.Artist, md.Author, rec.Artist == "")
	set(&rec.ThumbnailURL, md.ThumbnailURL, rec.ThumbnailURL == "")
	if md.Duration > 0 && rec.Duration == 0 {
		rec.Duration = md.Duration
		changed = true
	}
	return changed
}
