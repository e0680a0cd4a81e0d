// Package gcs is a small client for the Cloud Storage JSON API scoped to the
// one bucket that holds product images.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/0111v/projeto-faculdade/pkg/config"
	"github.com/0111v/projeto-faculdade/pkg/logger"
)

const (
	storageAPI     = "https://storage.googleapis.com"
	requestTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

var errNotInitialized = errors.New("gcs client not initialized")

type Client struct {
	httpClient *http.Client
	bucket     string
	token      *cachedToken
	apiBase    string
	publicBase string
}

// NewClient resolves credentials and verifies the bucket is listable before
// returning.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	httpClient := &http.Client{Timeout: requestTimeout}
	fetch, err := fetcherFromConfig(httpClient, gcp)
	if err != nil {
		return nil, err
	}

	c := &Client{
		httpClient: httpClient,
		bucket:     cfg.BucketName,
		token:      &cachedToken{fetch: fetch},
		apiBase:    storageAPI,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
	if err := c.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", c.bucket), "gcs client initialized")
	}
	return c, nil
}

// Ping lists at most one object, which needs storage.objects.list on the bucket.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.token == nil || c.bucket == "" {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	u := c.endpoint("/storage/v1/b/%s/o", c.bucket) + "?maxResults=1"
	return c.do(ctx, http.MethodGet, u, nil, "", "gcs list objects")
}

// Upload stores body as object with a single media upload.
func (c *Client) Upload(ctx context.Context, object, contentType string, body io.Reader) error {
	if c == nil || c.token == nil || c.bucket == "" {
		return errNotInitialized
	}
	switch {
	case object == "":
		return errors.New("object name is required")
	case contentType == "":
		return errors.New("content type is required")
	case body == nil:
		return errors.New("body is required")
	}

	query := url.Values{"uploadType": {"media"}, "name": {object}}
	u := c.endpoint("/upload/storage/v1/b/%s/o", c.bucket) + "?" + query.Encode()
	return c.do(ctx, http.MethodPost, u, body, contentType, "gcs upload")
}

// DeleteObject removes object from bucket (the default bucket when empty).
// A missing object is not an error.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string) error {
	if c == nil || c.token == nil {
		return errNotInitialized
	}
	if bucket == "" {
		bucket = c.bucket
	}
	if bucket == "" || object == "" {
		return errors.New("bucket and object name are required")
	}

	u := c.endpoint("/storage/v1/b/%s/o/%s", bucket, object)
	err := c.do(ctx, http.MethodDelete, u, nil, "", "gcs delete")
	var se *httpStatusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return nil
	}
	return err
}

// PublicURL is where browsers fetch object from.
func (c *Client) PublicURL(object string) string {
	if c == nil {
		return ""
	}
	return c.publicPrefix() + strings.TrimLeft(object, "/")
}

// ObjectFromURL inverts PublicURL; URLs outside this bucket report false.
func (c *Client) ObjectFromURL(rawURL string) (string, bool) {
	if c == nil || c.bucket == "" {
		return "", false
	}
	object, found := strings.CutPrefix(rawURL, c.publicPrefix())
	if !found || object == "" {
		return "", false
	}
	if unescaped, err := url.PathUnescape(object); err == nil {
		object = unescaped
	}
	return object, true
}

func (c *Client) Close() error { return nil }

func (c *Client) publicPrefix() string {
	base := c.publicBase
	if base == "" {
		base = storageAPI
	}
	return base + "/" + c.bucket + "/"
}

// endpoint path-escapes every segment argument.
func (c *Client) endpoint(format string, segments ...string) string {
	args := make([]any, len(segments))
	for i, s := range segments {
		args[i] = url.PathEscape(s)
	}
	base := strings.TrimRight(c.apiBase, "/")
	if base == "" {
		base = storageAPI
	}
	return base + fmt.Sprintf(format, args...)
}

func (c *Client) do(ctx context.Context, method, u string, body io.Reader, contentType, op string) error {
	token, err := c.token.get(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type httpStatusError struct {
	op     string
	code   int
	status string
	body   string
}

func (e *httpStatusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("%s: %s", e.op, e.status)
	}
	return fmt.Sprintf("%s: %s: %s", e.op, e.status, e.body)
}

func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &httpStatusError{op: op, code: resp.StatusCode, status: resp.Status, body: strings.TrimSpace(string(b))}
}
