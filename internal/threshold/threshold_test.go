package threshold

import (
	"strings"
	"testing"
	"time"

	"github.com/volleyhq/volley/internal/metrics"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Threshold
		wantError bool
	}{
		{
			name:  "p99 latency",
			input: "latency:p99 < 500",
			want: Threshold{
				Metric:    "latency",
				Aggregate: "p99",
				Operator:  "<",
				Value:     500,
				Raw:       "latency:p99 < 500",
			},
		},
		{
			name:  "failure rate",
			input: "failures:rate < 0.01",
			want: Threshold{
				Metric:    "failures",
				Aggregate: "rate",
				Operator:  "<",
				Value:     0.01,
				Raw:       "failures:rate < 0.01",
			},
		},
		{
			name:  "requests rate with >",
			input: "requests:rate > 100",
			want: Threshold{
				Metric:    "requests",
				Aggregate: "rate",
				Operator:  ">",
				Value:     100,
				Raw:       "requests:rate > 100",
			},
		},
		{
			name:  "average latency with <=",
			input: "latency:avg <= 200",
			want: Threshold{
				Metric:    "latency",
				Aggregate: "avg",
				Operator:  "<=",
				Value:     200,
				Raw:       "latency:avg <= 200",
			},
		},
		{name: "empty string", input: "", wantError: true},
		{name: "missing aggregate", input: "latency < 500", wantError: true},
		{name: "unknown metric", input: "cpu:avg < 50", wantError: true},
		{name: "unknown aggregate", input: "latency:p42 < 500", wantError: true},
		{name: "bad operator", input: "latency:p99 !> 500", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantError {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %+v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseMultiple(t *testing.T) {
	parsed, err := ParseMultiple([]string{"latency:p99 < 500", "failures:rate < 0.05"})
	if err != nil {
		t.Fatalf("ParseMultiple: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 thresholds, got %d", len(parsed))
	}

	_, err = ParseMultiple([]string{"latency:p99 < 500", "nope"})
	if err == nil {
		t.Fatal("expected error for malformed threshold in list")
	}
	if !strings.Contains(err.Error(), "threshold[1]") {
		t.Errorf("error should name the failing index, got %q", err)
	}
}

func summaryFixture() metrics.Summary {
	return metrics.Summary{
		Total:          100,
		Successes:      95,
		Failures:       5,
		SuccessRate:    95,
		Duration:       10 * time.Second,
		RequestsPerSec: 10,
		Latency: &metrics.LatencyStats{
			MinMs:  5,
			MaxMs:  900,
			MeanMs: 120,
			P50Ms:  100,
			P90Ms:  300,
			P99Ms:  450,
		},
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantPass bool
	}{
		{"p99 under limit", "latency:p99 < 500", true},
		{"p99 over limit", "latency:p99 < 400", false},
		{"failure rate under limit", "failures:rate < 0.1", true},
		{"failure rate over limit", "failures:rate < 0.01", false},
		{"failure count equality", "failures:count == 5", true},
		{"request rate", "requests:rate >= 10", true},
		{"average latency", "latency:avg <= 120", true},
	}

	s := summaryFixture()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			results := NewEvaluator([]Threshold{th}).Evaluate(s)
			if len(results) != 1 {
				t.Fatalf("expected 1 result, got %d", len(results))
			}
			if results[0].Pass != tt.wantPass {
				t.Errorf("%s: pass = %v, want %v (%s)", tt.input, results[0].Pass, tt.wantPass, results[0].Message)
			}
		})
	}
}

func TestEvaluateNoLatencyData(t *testing.T) {
	s := metrics.Summary{Total: 10, Failures: 10}
	th, err := Parse("latency:p99 < 500")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	results := NewEvaluator([]Threshold{th}).Evaluate(s)
	if results[0].Pass {
		t.Error("latency threshold should fail when no successes exist")
	}
	if !strings.Contains(results[0].Message, "latency unavailable") {
		t.Errorf("expected unavailable message, got %q", results[0].Message)
	}
}

func TestEvaluateEmpty(t *testing.T) {
	if got := NewEvaluator(nil).Evaluate(summaryFixture()); got != nil {
		t.Errorf("expected nil results for no thresholds, got %v", got)
	}
}
