package reloadclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/jpalmerr/appletdev/internal/sse"
)

// ErrUnexpectedResponse is returned when the server does not answer with an
// event stream.
var ErrUnexpectedResponse = errors.New("unexpected reload channel response")

// connection pooling limits; a follower holds at most one stream at a time
const (
	defaultMaxIdleConns    = 2
	defaultIdleConnTimeout = 60 * time.Second
	defaultDialTimeout     = 5 * time.Second
)

// Stream is one open reload channel.
type Stream interface {
	// Next blocks until the next event. Keepalive comments are skipped.
	Next() (sse.Event, error)

	// Close releases the channel. Safe to call multiple times and
	// concurrently with Next, which then returns an error.
	Close() error
}

// Transport opens reload channels.
type Transport interface {
	Open(ctx context.Context) (Stream, error)
}

// HTTPTransport opens reload channels over HTTP.
//
// No client-wide timeout is set: the stream is long-lived and bounded by the
// context passed to [HTTPTransport.Open].
type HTTPTransport struct {
	url        string
	httpClient *http.Client
}

// NewHTTPTransport returns a transport for the reload channel at url.
func NewHTTPTransport(url string) *HTTPTransport {
	return &HTTPTransport{
		url: url,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          defaultMaxIdleConns,
				IdleConnTimeout:       defaultIdleConnTimeout,
				TLSHandshakeTimeout:   defaultDialTimeout,
				ResponseHeaderTimeout: defaultDialTimeout,
			},
		},
	}
}

// Open issues the GET request and validates the response.
func (t *HTTPTransport) Open(ctx context.Context) (Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("%w: content type %q", ErrUnexpectedResponse, mediaType)
	}

	return &httpStream{body: resp.Body, reader: sse.NewReader(resp.Body)}, nil
}

// Close closes idle connections in the transport's pool.
func (t *HTTPTransport) Close() {
	if tr, ok := t.httpClient.Transport.(*http.Transport); ok {
		tr.CloseIdleConnections()
	}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}

type httpStream struct {
	body   io.ReadCloser
	reader *sse.Reader
}

func (s *httpStream) Next() (sse.Event, error) { return s.reader.Next() }

func (s *httpStream) Close() error { return s.body.Close() }
