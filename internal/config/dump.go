package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// dumpView mirrors Config with file-format field names and human-readable
// durations, so the dump can be fed back in via --config.
type dumpView struct {
	Target      string            `yaml:"target"`
	Method      string            `yaml:"method"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	UserAgent   string            `yaml:"user_agent,omitempty"`
	Proxy       string            `yaml:"proxy,omitempty"`
	Total       int               `yaml:"total"`
	Concurrency int               `yaml:"concurrency"`
	Rate        int               `yaml:"rate"`
	Window      string            `yaml:"window"`
	Scheduler   string            `yaml:"scheduler"`
	Pacing      string            `yaml:"pacing"`
	Timeout     string            `yaml:"timeout"`
	Protocol    string            `yaml:"protocol"`
	WSMessage   string            `yaml:"ws_message,omitempty"`
	ExpectJSON  string            `yaml:"expect_json,omitempty"`
	JSONOutput  bool              `yaml:"json_output"`
	Output      string            `yaml:"output,omitempty"`
	LogErrors   bool              `yaml:"log_errors"`
	Thresholds  []string          `yaml:"thresholds,omitempty"`
	Tracing     *tracingView      `yaml:"tracing,omitempty"`
}

type tracingView struct {
	Endpoint    string  `yaml:"endpoint"`
	Protocol    string  `yaml:"protocol,omitempty"`
	ServiceName string  `yaml:"service_name,omitempty"`
	SampleRate  float64 `yaml:"sample_rate"`
	Insecure    bool    `yaml:"insecure,omitempty"`
	Propagate   bool    `yaml:"propagate,omitempty"`
}

// DumpYAML renders the effective configuration as YAML.
func (c Config) DumpYAML() (string, error) {
	view := dumpView{
		Target:      c.TargetURL,
		Method:      c.Method,
		Headers:     c.Headers,
		UserAgent:   c.UserAgent,
		Proxy:       c.Proxy,
		Total:       c.Total,
		Concurrency: c.Concurrency,
		Rate:        c.Rate,
		Window:      durationString(c.Window),
		Scheduler:   c.Scheduler,
		Pacing:      c.Pacing,
		Timeout:     durationString(c.Timeout),
		Protocol:    string(c.Protocol),
		WSMessage:   c.WSMessage,
		ExpectJSON:  c.ExpectJSON,
		JSONOutput:  c.JSONOutput,
		Output:      c.Output,
		LogErrors:   c.LogErrors,
		Thresholds:  c.Thresholds,
	}
	if c.Tracing.Enabled() {
		view.Tracing = &tracingView{
			Endpoint:    c.Tracing.Endpoint,
			Protocol:    c.Tracing.Protocol,
			ServiceName: c.Tracing.ServiceName,
			SampleRate:  c.Tracing.SampleRate,
			Insecure:    c.Tracing.Insecure,
			Propagate:   c.Tracing.Propagate,
		}
	}
	data, err := yaml.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("dump config: %w", err)
	}
	return string(data), nil
}

func durationString(d time.Duration) string {
	return d.String()
}
