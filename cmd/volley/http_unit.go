package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/volleyhq/volley/internal/config"
	"github.com/volleyhq/volley/internal/httpclient"
	"github.com/volleyhq/volley/internal/runner"
	"github.com/volleyhq/volley/internal/tracing"
)

const maxBodySnippetBytes = 1024

// maxExpectBodyBytes bounds how much of a response is buffered for JSON
// field assertions.
const maxExpectBodyBytes = 1 << 20

// httpUnit issues one HTTP request per attempt.
type httpUnit struct {
	client  *http.Client
	builder *httpclient.RequestBuilder
	target  string

	expectPath  string
	expectValue string

	tracer    trace.Tracer
	propagate bool
}

func newHTTPUnit(cfg *config.Config, provider *tracing.Provider) (*httpUnit, error) {
	builder, err := httpclient.NewRequestBuilder(cfg)
	if err != nil {
		return nil, err
	}
	proxy, err := cfg.ProxyURL()
	if err != nil {
		return nil, err
	}

	u := &httpUnit{
		client:    httpclient.NewClient(cfg.Timeout, proxy),
		builder:   builder,
		target:    cfg.TargetURL,
		tracer:    provider.Tracer(),
		propagate: provider.ShouldPropagate(),
	}
	u.expectPath, u.expectValue, err = parseExpectJSON(cfg.ExpectJSON)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// parseExpectJSON splits a "path=value" assertion. The value may itself
// contain '='; only the first separator counts.
func parseExpectJSON(s string) (path, value string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", nil
	}
	path, value, found := strings.Cut(s, "=")
	if !found || strings.TrimSpace(path) == "" {
		return "", "", fmt.Errorf("expect-json must be in path=value form, got %q", s)
	}
	return strings.TrimSpace(path), value, nil
}

func (u *httpUnit) Execute(ctx context.Context, attempt int) (int, error) {
	ctx, span := tracing.StartAttemptSpan(ctx, u.tracer, "http", u.target, attempt)

	status, err := u.do(ctx)
	tracing.EndSpan(span, err, attribute.Int("http.response.status_code", status))
	return status, err
}

func (u *httpUnit) do(ctx context.Context) (int, error) {
	req, err := u.builder.Build(ctx)
	if err != nil {
		return 0, err
	}
	if u.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySnippetBytes))
		_, _ = io.Copy(io.Discard, resp.Body)
		if readErr != nil {
			return resp.StatusCode, readErr
		}
		return resp.StatusCode, &runner.StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if u.expectPath != "" {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxExpectBodyBytes))
		_, _ = io.Copy(io.Discard, resp.Body)
		if readErr != nil {
			return resp.StatusCode, readErr
		}
		got := gjson.GetBytes(body, u.expectPath)
		if !got.Exists() {
			return resp.StatusCode, fmt.Errorf("expect-json: field %q missing from response", u.expectPath)
		}
		if got.String() != u.expectValue {
			return resp.StatusCode, fmt.Errorf("expect-json: field %q = %q, want %q", u.expectPath, got.String(), u.expectValue)
		}
		return resp.StatusCode, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
