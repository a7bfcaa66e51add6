package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/oklog/ulid/v2"

	"github.com/volleyhq/volley/internal/metrics"
)

// Report pairs a run identifier with its summary so archived reports from
// repeated runs against the same target stay distinguishable.
type Report struct {
	RunID string `json:"run_id"`
	metrics.Summary
}

// NewRunID returns a fresh lexicographically sortable run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", r.RunID)
	fmt.Fprintf(w, "Total Attempts:    %d\n", r.Total)
	fmt.Fprintf(w, "Successful:        %d\n", r.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", r.Failures)
	fmt.Fprintf(w, "Success Rate:      %.1f%%\n", r.SuccessRate)
	fmt.Fprintf(w, "Duration:          %s\n", r.Duration)
	fmt.Fprintf(w, "Attempts/sec:      %.2f\n", r.RequestsPerSec)
	if r.Partial {
		fmt.Fprintln(w, "Partial:           run stopped before all attempts completed")
	}

	if r.Latency != nil {
		fmt.Fprintln(w, "\nLatency (successful attempts):")
		fmt.Fprintf(w, "  Min:             %s\n", r.Latency.Min)
		fmt.Fprintf(w, "  Max:             %s\n", r.Latency.Max)
		fmt.Fprintf(w, "  Mean:            %s\n", r.Latency.Mean)
		fmt.Fprintf(w, "  P50:             %s\n", r.Latency.P50)
		fmt.Fprintf(w, "  P90:             %s\n", r.Latency.P90)
		fmt.Fprintf(w, "  P99:             %s\n", r.Latency.P99)
	} else {
		fmt.Fprintln(w, "\nLatency:           no successful attempts to measure")
	}

	if len(r.StatusCodes) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		for _, code := range sortedKeys(r.StatusCodes) {
			fmt.Fprintf(w, "  %s: %d\n", code, r.StatusCodes[code])
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, label := range sortedKeys(r.Errors) {
			fmt.Fprintf(w, "  %s: %d\n", label, r.Errors[label])
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
