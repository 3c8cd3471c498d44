// Package client provides the browser side of the live-reload protocol.
//
// The script is embedded at compile time and rendered once per server with
// the reload endpoint and retry policy filled in. It implements the same
// transition table as the internal reconnect package: it reloads the page on
// a "reload" frame, treats "connected" frames as liveness only, and retries
// with linear backoff up to a bounded number of attempts.
package client

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
	"time"
)

// source is the reload client script template.
//
//go:embed livereload.js
var source string

var scriptTemplate = template.Must(template.New("livereload.js").Parse(source))

// Config fills in the script template.
type Config struct {
	// Endpoint is the path of the reload channel, e.g. "/__reload".
	Endpoint string

	// MaxAttempts is the number of reconnect attempts before giving up.
	MaxAttempts int

	// BaseBackoff is the linear backoff step between attempts.
	BaseBackoff time.Duration
}

// Script renders the reload client wrapped in a <script> element, ready for
// injection into an HTML page.
func Script(cfg Config) ([]byte, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("script endpoint is required")
	}

	data := struct {
		Endpoint      string
		MaxAttempts   int
		BaseBackoffMs int64
	}{
		Endpoint:      cfg.Endpoint,
		MaxAttempts:   cfg.MaxAttempts,
		BaseBackoffMs: cfg.BaseBackoff.Milliseconds(),
	}

	var buf bytes.Buffer
	buf.WriteString("<script>\n")
	if err := scriptTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render reload script: %w", err)
	}
	buf.WriteString("</script>\n")
	return buf.Bytes(), nil
}
