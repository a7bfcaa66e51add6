package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

type Protocol string

const (
	ProtocolHTTP      Protocol = "http"
	ProtocolWebSocket Protocol = "websocket"
)

// Config is the complete in-memory configuration for one run. There is no
// ambient global state; everything the engine and the work units need is
// passed in explicitly.
type Config struct {
	TargetURL string            `mapstructure:"target"`
	Method    string            `mapstructure:"method"`
	Headers   map[string]string `mapstructure:"headers"`

	Total       int           `mapstructure:"total"`
	Concurrency int           `mapstructure:"concurrency"`
	Rate        int           `mapstructure:"rate"`
	Window      time.Duration `mapstructure:"window"`
	Scheduler   string        `mapstructure:"scheduler"`
	Pacing      string        `mapstructure:"pacing"`

	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	Proxy     string        `mapstructure:"proxy"`

	Protocol   Protocol `mapstructure:"protocol"`
	WSMessage  string   `mapstructure:"ws_message"`
	ExpectJSON string   `mapstructure:"expect_json"`

	JSONOutput bool     `mapstructure:"json_output"`
	Output     string   `mapstructure:"output"`
	LogErrors  bool     `mapstructure:"log_errors"`
	Thresholds []string `mapstructure:"thresholds"`
	DumpConfig bool     `mapstructure:"-"`

	Tracing TracingConfig `mapstructure:"tracing"`

	ConfigFile string `mapstructure:"-"`
}

// TracingConfig controls optional OTLP span export for attempts.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   bool    `mapstructure:"propagate"`
}

// Enabled reports whether span export is configured.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// ShouldPropagate reports whether W3C trace headers are injected into
// outgoing requests.
func (t TracingConfig) ShouldPropagate() bool {
	return t.Enabled() && t.Propagate
}

// ValidationError collects every configuration issue found in one pass.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if !c.DumpConfig && strings.TrimSpace(c.TargetURL) == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	}

	if c.Rate > 1000 {
		fmt.Fprintf(os.Stderr, "WARNING: High rate limit configured (%d per window). Ensure you have authorization to test the target system.\n", c.Rate)
	}
	if c.Concurrency > 500 {
		fmt.Fprintf(os.Stderr, "WARNING: High concurrency configured (%d in flight). Ensure you have authorization to test the target system.\n", c.Concurrency)
	}

	if c.Total < 0 {
		issues = append(issues, "total must be >= 0")
	}
	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Rate < 1 {
		issues = append(issues, "rate must be >= 1")
	}
	if c.Window < 0 {
		issues = append(issues, "window must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}

	switch c.Scheduler {
	case "", "workers", "semaphore":
	default:
		issues = append(issues, fmt.Sprintf("scheduler %q is not supported (use 'workers' or 'semaphore')", c.Scheduler))
	}
	switch c.Pacing {
	case "", "window", "smooth":
	default:
		issues = append(issues, fmt.Sprintf("pacing %q is not supported (use 'window' or 'smooth')", c.Pacing))
	}
	switch c.Protocol {
	case "", ProtocolHTTP, ProtocolWebSocket:
	default:
		issues = append(issues, fmt.Sprintf("protocol %q is not supported (use 'http' or 'websocket')", c.Protocol))
	}

	if p := strings.TrimSpace(c.Proxy); p != "" {
		if _, err := url.Parse(p); err != nil {
			issues = append(issues, fmt.Sprintf("proxy: %v", err))
		}
	}

	if e := strings.TrimSpace(c.ExpectJSON); e != "" {
		if !strings.Contains(e, "=") {
			issues = append(issues, "expect-json must be in path=value form")
		}
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing sample_rate must be between 0.0 and 1.0, got %g", c.Tracing.SampleRate))
	}
	switch strings.ToLower(c.Tracing.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol %q is not supported (use 'grpc' or 'http')", c.Tracing.Protocol))
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// ProxyURL returns the proxy URL with credentials from the environment
// folded in (VOLLEY_PROXY_USER / VOLLEY_PROXY_PASS). Returns nil when no
// proxy is configured.
func (c Config) ProxyURL() (*url.URL, error) {
	p := strings.TrimSpace(c.Proxy)
	if p == "" {
		return nil, nil
	}
	u, err := url.Parse(p)
	if err != nil {
		return nil, fmt.Errorf("proxy: %w", err)
	}
	if u.User == nil {
		user := os.Getenv("VOLLEY_PROXY_USER")
		pass := os.Getenv("VOLLEY_PROXY_PASS")
		if user != "" {
			if pass != "" {
				u.User = url.UserPassword(user, pass)
			} else {
				u.User = url.User(user)
			}
		}
	}
	return u, nil
}
