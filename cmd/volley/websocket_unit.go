package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gws "github.com/gorilla/websocket"

	"github.com/volleyhq/volley/internal/config"
	"github.com/volleyhq/volley/internal/tracing"
	ws "github.com/volleyhq/volley/internal/websocket"
	"go.opentelemetry.io/otel/trace"
)

// websocketUnit performs one connect(-send-echo)-close cycle per attempt.
type websocketUnit struct {
	cfg     ws.Config
	message string
	tracer  trace.Tracer
}

func newWebSocketUnit(cfg *config.Config, provider *tracing.Provider) (*websocketUnit, error) {
	target := cfg.TargetURL
	switch {
	case strings.HasPrefix(target, "http://"):
		target = "ws" + strings.TrimPrefix(target, "http")
	case strings.HasPrefix(target, "https://"):
		target = "wss" + strings.TrimPrefix(target, "https")
	}

	headers := make(http.Header, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}
	if cfg.UserAgent != "" {
		headers.Set("User-Agent", cfg.UserAgent)
	}

	proxy, err := cfg.ProxyURL()
	if err != nil {
		return nil, err
	}

	return &websocketUnit{
		cfg: ws.Config{
			URL:              target,
			Headers:          headers,
			Proxy:            proxy,
			HandshakeTimeout: cfg.Timeout,
			ReadTimeout:      cfg.Timeout,
			WriteTimeout:     cfg.Timeout,
		},
		message: cfg.WSMessage,
		tracer:  provider.Tracer(),
	}, nil
}

func (u *websocketUnit) Execute(ctx context.Context, attempt int) (int, error) {
	ctx, span := tracing.StartAttemptSpan(ctx, u.tracer, "websocket", u.cfg.URL, attempt)

	status, err := u.do(ctx)
	tracing.EndSpan(span, err)
	return status, err
}

func (u *websocketUnit) do(ctx context.Context) (int, error) {
	client := ws.NewClient(u.cfg)
	status, err := client.Connect(ctx)
	if err != nil {
		return status, err
	}
	defer client.Close()

	if u.message == "" {
		return status, nil
	}

	if err := client.Send(ws.Message{Type: gws.TextMessage, Data: []byte(u.message)}); err != nil {
		return status, fmt.Errorf("send message: %w", err)
	}
	if _, err := client.Receive(); err != nil {
		return status, fmt.Errorf("receive echo: %w", err)
	}
	return status, nil
}
