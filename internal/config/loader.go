package config

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and an optional configuration file to
// produce a Config. Flags override file settings.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfg := &Config{
		Method:      "GET",
		Headers:     map[string]string{},
		Total:       60,
		Concurrency: 5,
		Rate:        5,
		Window:      time.Second,
		Scheduler:   "workers",
		Pacing:      "window",
		Timeout:     30 * time.Second,
		Protocol:    ProtocolHTTP,
		Tracing:     TracingConfig{Protocol: "grpc", SampleRate: 1.0},
		ConfigFile:  configPath,
	}

	if configPath != "" {
		v := viper.New()
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
		applyFileSettings(cfg, v)
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}

	return cfg, nil
}

// applyFileSettings copies recognized keys from the config file onto cfg.
// Viper normalizes keys to lower case; durations accept Go duration strings.
func applyFileSettings(cfg *Config, v *viper.Viper) {
	if v.IsSet("target") {
		cfg.TargetURL = strings.TrimSpace(v.GetString("target"))
	}
	if v.IsSet("method") {
		cfg.Method = v.GetString("method")
	}
	if v.IsSet("headers") {
		for key, value := range v.GetStringMapString("headers") {
			cfg.Headers[http.CanonicalHeaderKey(key)] = value
		}
	}
	if v.IsSet("user_agent") {
		cfg.UserAgent = v.GetString("user_agent")
	}
	if v.IsSet("proxy") {
		cfg.Proxy = strings.TrimSpace(v.GetString("proxy"))
	}
	if v.IsSet("total") {
		cfg.Total = v.GetInt("total")
	}
	if v.IsSet("concurrency") {
		cfg.Concurrency = v.GetInt("concurrency")
	}
	if v.IsSet("rate") {
		cfg.Rate = v.GetInt("rate")
	}
	if v.IsSet("window") {
		cfg.Window = v.GetDuration("window")
	}
	if v.IsSet("scheduler") {
		cfg.Scheduler = strings.ToLower(strings.TrimSpace(v.GetString("scheduler")))
	}
	if v.IsSet("pacing") {
		cfg.Pacing = strings.ToLower(strings.TrimSpace(v.GetString("pacing")))
	}
	if v.IsSet("timeout") {
		cfg.Timeout = v.GetDuration("timeout")
	}
	if v.IsSet("protocol") {
		cfg.Protocol = Protocol(strings.ToLower(strings.TrimSpace(v.GetString("protocol"))))
	}
	if v.IsSet("ws_message") {
		cfg.WSMessage = v.GetString("ws_message")
	}
	if v.IsSet("expect_json") {
		cfg.ExpectJSON = strings.TrimSpace(v.GetString("expect_json"))
	}
	if v.IsSet("json_output") {
		cfg.JSONOutput = v.GetBool("json_output")
	}
	if v.IsSet("output") {
		cfg.Output = strings.TrimSpace(v.GetString("output"))
	}
	if v.IsSet("log_errors") {
		cfg.LogErrors = v.GetBool("log_errors")
	}
	if v.IsSet("thresholds") {
		cfg.Thresholds = v.GetStringSlice("thresholds")
	}
	if v.IsSet("tracing.endpoint") {
		cfg.Tracing.Endpoint = strings.TrimSpace(v.GetString("tracing.endpoint"))
	}
	if v.IsSet("tracing.protocol") {
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(v.GetString("tracing.protocol")))
	}
	if v.IsSet("tracing.service_name") {
		cfg.Tracing.ServiceName = strings.TrimSpace(v.GetString("tracing.service_name"))
	}
	if v.IsSet("tracing.sample_rate") {
		cfg.Tracing.SampleRate = v.GetFloat64("tracing.sample_rate")
	}
	if v.IsSet("tracing.insecure") {
		cfg.Tracing.Insecure = v.GetBool("tracing.insecure")
	}
	if v.IsSet("tracing.propagate") {
		cfg.Tracing.Propagate = v.GetBool("tracing.propagate")
	}
}
